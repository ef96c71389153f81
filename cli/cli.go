// Package cli runs a brainfuck program from the command line. It is shared
// by the standalone interpreter and the shim's "brainfuck" mode.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/containerd/log"

	"github.com/MarcinKonowalczyk/bftape/bf"
)

const (
	ExitOK      = 0
	ExitRuntime = 1
	ExitParsing = 2
	ExitUsage   = 3
)

type options struct {
	file  string
	input string
	stdin bool
	strip bool
	debug bool
}

func parseFlags(name string, args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	flagset := flag.NewFlagSet(name, flag.ContinueOnError)
	flagset.SetOutput(stderr)
	flagset.StringVar(&opts.file, "file", "", "brainfuck source file")
	flagset.StringVar(&opts.input, "input", "", "input for the program")
	flagset.BoolVar(&opts.stdin, "stdin", false, "read the program input from stdin")
	flagset.BoolVar(&opts.strip, "strip", false, "print the source without comments instead of running it")
	flagset.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	if err := flagset.Parse(args); err != nil {
		return nil, err
	}

	if opts.file == "" {
		return nil, fmt.Errorf("invalid argument: -file is required")
	}
	if opts.stdin && opts.input != "" {
		return nil, fmt.Errorf("invalid argument: -input and -stdin are mutually exclusive")
	}
	return opts, nil
}

// Main runs the interpreter with the given arguments and returns the exit
// code.
func Main(name string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseFlags(name, args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, "Error:", err)
		}
		return ExitUsage
	}

	if opts.debug || bf.DebugBuild() {
		if err := log.SetLevel("debug"); err != nil {
			fmt.Fprintln(stderr, "Error:", err)
			return ExitUsage
		}
	}

	source, err := os.ReadFile(opts.file)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return ExitUsage
	}
	log.L.WithField("file", opts.file).Debug("read source")

	if opts.strip {
		fmt.Fprintln(stdout, bf.PreLex(string(source)))
		return ExitOK
	}

	var input io.Reader
	switch {
	case opts.stdin:
		input = stdin
	case opts.input != "":
		input = strings.NewReader(opts.input)
	}

	if err := bf.Run(string(source), input, stdout); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitCode(err)
	}
	return ExitOK
}

func exitCode(err error) int {
	switch bf.Stage(err) {
	case "parsing":
		return ExitParsing
	case "runtime", "output":
		return ExitRuntime
	default:
		return ExitUsage
	}
}

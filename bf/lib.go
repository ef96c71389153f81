package bf

import (
	"fmt"
	"io"
	"slices"
	"unicode/utf8"

	"github.com/containerd/log"
)

// comptime override for debug flag
// set with `-ldflags="-X 'github.com/MarcinKonowalczyk/bftape/bf.debug=true'"`
var debug string

// DebugBuild reports whether debug logging was forced at link time
func DebugBuild() bool {
	return debug != ""
}

// Interpret runs the program in source against input and returns whatever
// it wrote. Errors are either a *ParsingError, a *RuntimeError or wrap
// ErrInvalidOutput.
func Interpret(source string, input string) (string, error) {
	// The interpreter pops input from the tail
	in := []byte(input)
	slices.Reverse(in)

	tokens := Tokenize(source)
	log.L.WithField("tokens", len(tokens)).Debug("tokenized source")

	program, err := Parse(tokens)
	if err != nil {
		return "", err
	}
	log.L.WithField("constructs", len(program)).Debug("parsed program")

	output, err := Execute(program, in)
	if err != nil {
		return "", err
	}

	if !utf8.Valid(output) {
		return "", fmt.Errorf("%w: %d bytes", ErrInvalidOutput, len(output))
	}
	return string(output), nil
}

// Run reads all of input, interprets source against it and writes the
// result to output. A nil input means no input.
func Run(source string, input io.Reader, output io.Writer) error {
	var in []byte
	if input != nil {
		var err error
		if in, err = io.ReadAll(input); err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
	}

	result, err := Interpret(source, string(in))
	if err != nil {
		return err
	}

	if output != nil {
		if _, err := io.WriteString(output, result); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	return nil
}

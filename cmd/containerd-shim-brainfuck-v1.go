package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/containerd/containerd/v2/pkg/shim"

	"github.com/MarcinKonowalczyk/bftape/cli"
	bf_shim "github.com/MarcinKonowalczyk/bftape/shim"
)

func main() {
	// The task service re-executes this binary with the "brainfuck"
	// argument to run the container's entrypoint.
	if args, ok := brainfuckArgs(os.Args[1:]); ok {
		os.Exit(cli.Main(bf_shim.InterpreterArg, args, os.Stdin, os.Stdout, os.Stderr))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shim.Run(ctx, bf_shim.NewManager(bf_shim.RuntimeName))
}

func brainfuckArgs(args []string) ([]string, bool) {
	for i, arg := range args {
		if arg == bf_shim.InterpreterArg {
			rest := make([]string, 0, len(args)-1)
			rest = append(rest, args[:i]...)
			return append(rest, args[i+1:]...), true
		}
	}
	return args, false
}

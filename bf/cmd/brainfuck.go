package main

import (
	"os"

	"github.com/MarcinKonowalczyk/bftape/cli"
)

func main() {
	os.Exit(cli.Main("brainfuck", os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

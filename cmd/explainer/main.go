// Package main is the entry point for the explainer command.
package main

import (
	"context"
	"os"

	"github.com/dshills/explainer/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	// fang prints the error; only the exit code is left to us.
	if err := cli.Execute(context.Background(), os.Args[1:]); err != nil {
		return 1
	}
	return 0
}

// Package main provides the entry point for redis-cli, the
// command-line client for the key-value server.
package main

import (
	"fmt"
	"os"

	"github.com/nishanthrs/redis-from-scratch/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// Package main provides the entry point for the memmcp CLI.
package main

import (
	"os"

	"github.com/memmcp/memmcp/cmd/memmcp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Package main provides the entry point for the coderet CLI.
package main

import (
	"os"

	"github.com/coderet/coderet/cmd/coderet/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Package main is the entry point for the premium-rating CLI.
package main

import (
	"os"

	"premium-rating/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

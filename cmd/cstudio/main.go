// Package main is the entry point for the cstudio CLI tool.
package main

import (
	"os"

	"github.com/aidanlsb/cstudio/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

// Package main provides the kiln CLI entry point.
package main

import (
	"os"

	"github.com/calder-labs/kiln/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

// Package main is the entry point for the osc-tap CLI.
package main

import (
	"os"

	"github.com/yosagi/osc-tap/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

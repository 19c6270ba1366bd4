// Package main is the entry point for the cubesql binary.
package main

import (
	"os"

	"cubesql/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}

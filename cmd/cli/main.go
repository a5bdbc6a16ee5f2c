// Package main is the entry point for the metricql CLI binary.
package main

import (
	"os"

	cli "metricql/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}

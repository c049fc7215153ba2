// Package main is the entry point for the fleetops CLI.
package main

import (
	"os"

	"github.com/fleetops/fleetops/cmd/fleetops/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Package main is the entry point for the adforge server and tooling CLI.
//
// Usage:
//
//	adforge [flags] <command> [args]
//
// Commands:
//
//	serve      - Run the chat and generation server
//	templates  - Manage the ad template catalog (seed, list)
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/adforge/adforge/cmd/adforge/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

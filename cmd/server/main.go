// Package main implements the entry point for the keeper API server, which
// schedules small transfers between a user's bank accounts so that dormant
// accounts stay active.
package main

import (
	"fmt"
	"os"
)

// version is set at build time using -ldflags.
var version = "dev"

func main() {
	if err := newRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

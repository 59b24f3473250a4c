// Package main provides the entry point for the amanlex CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/amanlex/cmd/amanlex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

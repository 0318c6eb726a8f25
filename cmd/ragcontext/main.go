// Package main provides the entry point for the ragcontext CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/ragcontext/cmd/ragcontext/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Package main is the entry point for the iptv-checker application.
package main

import (
	"os"

	"github.com/Jelikton/iptv-checker/cmd/iptv-checker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

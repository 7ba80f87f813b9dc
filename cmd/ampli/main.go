// Package main is the single-binary entrypoint for Ampli.
package main

import "github.com/ampli-network/ampli/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}

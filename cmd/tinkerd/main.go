// Package main is the single-binary entrypoint for tinkerd, the
// fine-tuning run manager for the Tinker training platform.
package main

import "github.com/bledden/tinker-voice/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}

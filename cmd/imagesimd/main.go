// Package main is the entry point for the imagesimd CLI.
//
// Usage:
//
//	imagesimd [flags] <command> [args]
//
// Commands:
//
//	serve        - Run the feature extraction pipeline
//	ingest       - Store an image file and queue it for extraction
//	similar      - Query images similar to a stored image
//	deadletters  - List jobs that exhausted their retry budget
package main

import (
	"fmt"
	"os"

	"github.com/hupe1980/imagesim/cmd/imagesimd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

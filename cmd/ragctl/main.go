package main

import (
	"os"

	"github.com/katakuxiko/vectorbrain/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

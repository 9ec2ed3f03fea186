package main

import (
	"os"

	"github.com/telhawk-systems/announcer/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/quantbrew/trader/cmd/trader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

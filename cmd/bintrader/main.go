package main

import (
	"os"

	"github.com/rustyeddy/bintrader/cmd/bintrader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

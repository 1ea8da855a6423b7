package main

import (
	"os"

	"github.com/celerix-dev/negmarket/cmd/negmarket/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

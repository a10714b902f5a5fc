package main

import (
	"os"

	"github.com/holst/aegis/cmd/aegis/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"skiff/cmd/skiff/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/umeshbist27/notetaking/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

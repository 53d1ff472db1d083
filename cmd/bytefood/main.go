package main

import (
	"os"

	"github.com/phantom-eng/bytefood-web/cmd/bytefood/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

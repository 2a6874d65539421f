package main

import (
	"os"

	"github.com/hmngo/vidcast/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

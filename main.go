package main

import (
	"os"

	"github.com/simview/simview/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/packhouse/packhouse/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/wattplan/wattplan/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

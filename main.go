package main

import (
	"os"

	"attendance-bridge/cmd/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/bcraddock/reverie/internal/reverie/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

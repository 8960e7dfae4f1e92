package main

import (
	"os"

	"github.com/jwalitptl/certify-api/cmd/certctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

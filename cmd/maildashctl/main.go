package main

import (
	"os"

	"maildash/cmd/maildashctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"npcgateway/cmd/gateway/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

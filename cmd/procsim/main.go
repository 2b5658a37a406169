package main

import (
	"fmt"
	"os"

	"github.com/arctir/procsim/internal/cli"
)

func main() {
	procsimCmd := cli.SetupCLI()
	if err := procsimCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

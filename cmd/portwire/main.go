package main

import (
	"fmt"
	"os"

	"github.com/roach88/portwire/internal/cli"
)

func main() {
	rootCmd := cli.NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "portwire:", err)
		os.Exit(cli.GetExitCode(err))
	}
}

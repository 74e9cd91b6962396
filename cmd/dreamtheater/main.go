// Command dreamtheater parses, plays and tests DreamTheater worlds.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/dreamtheater/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}

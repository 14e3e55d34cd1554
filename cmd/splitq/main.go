// Command splitq simplifies filter expressions and splits queries across
// the sources that can answer them.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/splitq/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}

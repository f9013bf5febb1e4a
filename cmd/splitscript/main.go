// Command splitscript runs auto-splitter scripts against game processes.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/splitscript/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}

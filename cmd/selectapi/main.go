// Command selectapi compiles model definitions and serves field-selected
// queries over a record store.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/selectapi/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}

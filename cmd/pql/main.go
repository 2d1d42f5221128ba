// Command pql compiles and evaluates query plans.
package main

import (
	"os"

	"github.com/roach88/pql/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}

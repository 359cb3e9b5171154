// Command animgraph compiles, runs and verifies reactive animation graphs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/animgraph/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}

// Command rapi compiles, evaluates and persists sensor expression documents.
package main

import (
	"fmt"
	"os"

	"github.com/roboticsapi/robotics-api-sub003/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}

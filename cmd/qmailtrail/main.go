// Command qmailtrail correlates qmail-send log lines into one record per
// delivery attempt.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/qmailtrail/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}

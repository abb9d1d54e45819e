// Command auth runs the CRM authentication service and its maintenance
// tasks.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/aussiebroadwan/crm/internal/auth/app"
)

// out receives command results.
var out io.Writer = os.Stdout

func main() {
	cmd := &cli.Command{
		Name:     "auth",
		Usage:    "CRM authentication service",
		Version:  app.BuildVersion,
		Commands: getCommands(),
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func getCommands() []*cli.Command {
	cmds := []*cli.Command{}
	cmds = append(cmds, getSystemCommands()...)
	cmds = append(cmds, getEmployeeCommands())
	return cmds
}

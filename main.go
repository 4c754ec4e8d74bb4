package main

import (
	"os"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/catalystcommunity/enginecore/cmd"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "enginecore",
		Usage: "Game engine runtime: resource packing and runtime bootstrap",
		Commands: []*cli.Command{
			cmd.ResourceBuildCommand,
			cmd.ServeCommand,
		},
	}
	err := app.Run(os.Args)
	if err != nil {
		// app.Run already os.Exit'd with the command's exit code for any
		// error implementing cli.ExitCoder (resource_build's -1/-2/-3); a
		// non-nil error reaching here is an uncoded failure.
		logging.Log.WithError(err).Fatal("runtime error")
	}
}

// Package cmd implements the remindme command line: the interactive
// terminal UI, the headless daemon and one-shot commands for notifications
// and accounts.
package cmd

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli"
)

type BuildArgs struct {
	Version string
	Date    string
	Commit  string
}

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "config",
		Usage:  "path to the configuration file (default: ~/.config/remindme/config.yaml)",
		EnvVar: "REMINDME_CONFIG",
	},
}

// Execute runs the command line described by args.
func Execute(args []string, bArgs BuildArgs) error {
	return newApp(bArgs).Run(args)
}

func newApp(bArgs BuildArgs) *cli.App {
	app := cli.NewApp()
	app.Name = "remindme"
	app.HelpName = "remindme"
	app.Usage = "Personal notification scheduler synced with a reminder service."
	app.UsageText = "remindme [--config FILE] <command> [arguments...]"
	app.Version = bArgs.Version
	app.Flags = globalFlags
	app.Commands = []cli.Command{
		{
			Name:   "tui",
			Usage:  "open the interactive terminal interface (default)",
			Action: tui,
		},
		{
			Name:   "daemon",
			Usage:  "fire notifications headlessly and print them to stdout",
			Action: daemon,
		},
		{
			Name:      "add",
			Aliases:   []string{"a"},
			Usage:     "schedule a notification",
			UsageText: "remindme add --title TITLE [--payload TEXT] [--delay SECONDS] [--upload]",
			Flags:     addFlags,
			Action:    add,
		},
		{
			Name:    "list",
			Aliases: []string{"ls"},
			Usage:   "list pending notifications",
			Action:  list,
		},
		{
			Name:  "remote",
			Usage: "inspect or delete notifications held by the service",
			Subcommands: []cli.Command{
				{
					Name:   "list",
					Usage:  "list your notifications on the service",
					Action: remoteList,
				},
				{
					Name:      "delete",
					Usage:     "delete notifications on the service",
					UsageText: "remindme remote delete ID[,ID...]",
					Action:    remoteDelete,
				},
			},
		},
		{
			Name:   "login",
			Usage:  "validate and store your credentials",
			Flags:  credentialFlags,
			Action: login,
		},
		{
			Name:   "register",
			Usage:  "create an account on the service and log in",
			Flags:  credentialFlags,
			Action: register,
		},
		{
			Name:   "admin",
			Usage:  "show whether you have administrative privileges",
			Action: admin,
		},
		{
			Name:  "users",
			Usage: "manage accounts (administrators only)",
			Subcommands: []cli.Command{
				{
					Name:   "add",
					Usage:  "create or update an account",
					Flags:  append(credentialFlags, cli.BoolFlag{Name: "admin", Usage: "grant administrative privileges"}),
					Action: usersAdd,
				},
				{
					Name:      "delete",
					Usage:     "delete accounts",
					UsageText: "remindme users delete NAME[,NAME...]",
					Action:    usersDelete,
				},
			},
		},
	}
	app.Action = tui
	app.Metadata = map[string]interface{}{
		"build": fmt.Sprintf("%s (%s_%s) %s=%s", app.Version, runtime.GOOS, runtime.GOARCH, bArgs.Date, bArgs.Commit),
	}
	return app
}

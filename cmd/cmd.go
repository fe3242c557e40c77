// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand initializes the config file, local database, and migrations.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and local database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// authCommand handles authentication operations.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the upstream session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in with email and password",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Aliases:  []string{"e"},
						Usage:    "Account email",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "password",
						Aliases:  []string{"p"},
						Usage:    "Account password",
						Required: true,
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Discard the stored session",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show the current session state",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
				Action: r.AuthStatus,
			},
			{
				Name:   "open",
				Usage:  "Open the hosted sign-in page in the default browser",
				Action: r.AuthOpen,
			},
			{
				Name:  "token",
				Usage: "Install a bearer token captured from browser DevTools (Copy as cURL)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "from-curl",
						Usage: "Path to a file containing the copied cURL command",
					},
					&cli.StringFlag{
						Name:  "value",
						Usage: "Raw bearer token value",
					},
				},
				Action: r.AuthToken,
			},
		},
	}
}

// tasksCommand lists the training plan for the active cohort.
func tasksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tasks",
		Aliases: []string{"ls", "bootstrap"},
		Usage:   "Fetch and list training plan tasks",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Tasks,
	}
}

// logCommand records progress against a task in one shot.
func logCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "log",
		Usage: "Log progress on a task (name prefix or ID)",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "task",
			},
		},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Count increment (ignored for time-only tasks)",
				Value:   1,
			},
			&cli.IntFlag{
				Name:     "minutes",
				Aliases:  []string{"m"},
				Usage:    "Minutes spent",
				Required: true,
			},
		},
		Action: r.Log,
	}
}

// prefsCommand manages pins and per-task display preferences.
func prefsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "prefs",
		Usage: "Manage pins and task display preferences",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the current preference aggregate",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print output", Value: true},
				},
				Action: r.PrefsShow,
			},
			{
				Name:  "pin",
				Usage: "Pin a task (name prefix or ID)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "task"},
				},
				Action: r.PrefsPin,
			},
			{
				Name:  "unpin",
				Usage: "Unpin a task (name prefix or ID)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "task"},
				},
				Action: r.PrefsUnpin,
			},
			{
				Name:  "set",
				Usage: "Set display preferences for a task",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "task"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "label-mode",
						Usage: "Count label mode: increment or absolute",
					},
					&cli.StringFlag{
						Name:  "tile-size",
						Usage: "Tile size: small, medium, or large",
					},
					&cli.IntFlag{
						Name:  "count-cap",
						Usage: "Maximum count tile value (1-200)",
					},
				},
				Action: r.PrefsSet,
			},
			{
				Name:   "sync",
				Usage:  "Push local preference edits upstream now",
				Action: r.PrefsSync,
			},
		},
	}
}

// pinCommand is a top-level shortcut for prefs pin.
func pinCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "pin",
		Usage: "Pin a task (name prefix or ID)",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "task"},
		},
		Action: r.PrefsPin,
	}
}

// unpinCommand is a top-level shortcut for prefs unpin.
func unpinCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "unpin",
		Usage: "Unpin a task (name prefix or ID)",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "task"},
		},
		Action: r.PrefsUnpin,
	}
}

// timelineCommand shows upstream submission history for a task.
func timelineCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "timeline",
		Usage: "Show upstream progress history for a task",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "task",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "csv",
				Usage: "Output CSV instead of a table",
			},
		},
		Action: r.Timeline,
	}
}

// historyCommand shows locally recorded submissions.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show locally recorded submissions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "task",
				Usage: "Restrict to a single task ID",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum rows to show",
				Value: 20,
			},
		},
		Action: r.History,
	}
}

// serveCommand runs the local HTTP proxy.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the local HTTP proxy for browser extensions and scripts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Bind address (overrides config)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Bind port (overrides config)",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive logging.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive logging TUI",
		Action:  r.TUI,
	}
}

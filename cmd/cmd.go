// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// Flags hold parsed state, so every command builds its own.
func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: text, csv or md",
		Value:   "text",
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Write output to a file instead of stdout",
	}
}

func channelFlag() cli.Flag {
	return &cli.StringFlag{Name: "channel", Usage: "Channel ID or title"}
}

func mountFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "mount",
		Aliases: []string{"m"},
		Usage:   "Device mount point (defaults to device.mount from config)",
	}
}

func destFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "dest",
		Aliases: []string{"d"},
		Usage:   "Destination folder (defaults to filesystem.destination from config)",
	}
}

// setupCommand handles setup operations for configuration and the library database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the configuration file, initialize the library database and run migrations",
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

// channelCommand manages podcast channels in the local library
func channelCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "channel",
		Aliases: []string{"ch"},
		Usage:   "Manage podcast channels",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a channel",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "title"},
					&cli.StringArg{Name: "url"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "playlist",
						Usage: "Sync into this named device playlist (music channel)",
					},
					&cli.BoolFlag{
						Name:  "no-sync",
						Usage: "Exclude the channel from device and folder sync",
					},
				},
				Action: r.ChannelAdd,
			},
			{
				Name:  "list",
				Usage: "List channels",
				Flags: []cli.Flag{
					formatFlag(),
					outputFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ChannelList,
			},
		},
	}
}

// episodeCommand manages episodes in the local library
func episodeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "episode",
		Aliases: []string{"ep"},
		Usage:   "Manage episodes",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add an episode to a channel",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "channel", Usage: "Channel ID or title", Required: true},
					&cli.StringFlag{Name: "url", Usage: "Enclosure URL", Required: true},
					&cli.StringFlag{Name: "title", Usage: "Episode title"},
					&cli.StringFlag{Name: "file", Usage: "Path of the downloaded file"},
					&cli.StringFlag{Name: "pub-date", Usage: "Publication date (RFC 822)"},
					&cli.StringFlag{Name: "description", Usage: "Episode description"},
				},
				Action: r.EpisodeAdd,
			},
			{
				Name:  "list",
				Usage: "List episodes of a channel",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "channel", Usage: "Channel ID or title", Required: true},
					formatFlag(),
					outputFlag(),
				},
				Action: r.EpisodeList,
			},
			{
				Name:  "played",
				Usage: "Mark an episode as played",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url"},
				},
				Action: r.EpisodePlayed,
			},
		},
	}
}

// syncCommand runs sync jobs against the configured targets
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Copy downloaded episodes to a sync target",
		Commands: []*cli.Command{
			{
				Name:  "fs",
				Usage: "Sync to a folder, such as a mounted MP3 player",
				Flags: []cli.Flag{
					destFlag(),
					channelFlag(),
					&cli.BoolFlag{
						Name:  "subfolders",
						Usage: "Create one folder per channel",
					},
				},
				Action: r.SyncFilesystem,
			},
			{
				Name:  "device",
				Usage: "Sync to a player with an on-device media database",
				Flags: []cli.Flag{
					mountFlag(),
					channelFlag(),
				},
				Action: r.SyncDevice,
			},
		},
	}
}

// deviceCommand inspects and maintains the on-device database
func deviceCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "device",
		Usage: "Device database operations",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Create an empty device database with the library and podcasts playlists",
				Flags:  []cli.Flag{mountFlag()},
				Action: r.DeviceInit,
			},
			{
				Name:  "tracks",
				Usage: "List tracks of a device playlist",
				Flags: []cli.Flag{
					mountFlag(),
					&cli.StringFlag{
						Name:  "playlist",
						Usage: "Playlist name (defaults to the podcasts playlist)",
					},
					formatFlag(),
					outputFlag(),
				},
				Action: r.DeviceTracks,
			},
			{
				Name:   "clean",
				Usage:  "Remove every podcast track from the device",
				Flags:  []cli.Flag{mountFlag()},
				Action: r.DeviceClean,
			},
		},
	}
}

// cleanCommand empties folder sync targets
func cleanCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "clean",
		Usage: "Remove synced files from a target",
		Commands: []*cli.Command{
			{
				Name:   "fs",
				Usage:  "Remove everything below the destination folder except hidden entries",
				Flags:  []cli.Flag{destFlag()},
				Action: r.CleanFilesystem,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive syncing.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for syncing channels",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage:   "Sync target: fs or device",
				Value:   "fs",
			},
		},
		Action: r.TUI,
	}
}

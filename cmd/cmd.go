// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the playlist & weather HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to [server] host:port)",
			},
		},
		Action: r.Serve,
	}
}

// playlistCommand derives a playlist once and prints it
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Fetch a playlist and match its tracks against Deezer",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "id",
				Usage: "Spotify playlist ID (defaults to [playlist] default_id)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: json, text, markdown or csv",
				Value:   "json",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to a file instead of stdout",
			},
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "Skip stored entries and derive from scratch",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
				Value: true,
			},
		},
		Action: r.Playlist,
	}
}

// weatherCommand prints current conditions for a coordinate
func weatherCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "weather",
		Usage: "Show current weather for a location",
		Flags: []cli.Flag{
			&cli.FloatFlag{
				Name:     "lat",
				Usage:    "Latitude in degrees",
				Required: true,
			},
			&cli.FloatFlag{
				Name:     "lon",
				Usage:    "Longitude in degrees",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "timezone",
				Usage: "IANA timezone or auto (defaults to [weather] default_timezone)",
			},
			&cli.StringFlag{
				Name:  "units",
				Usage: "metric or imperial (defaults to [weather] default_units)",
			},
		},
		Action: r.Weather,
	}
}

// configCommand manages the configuration file
func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration file helpers",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Write an example config.toml",
				Action: r.ConfigInit,
			},
			{
				Name:   "show",
				Usage:  "Print the effective configuration with secrets redacted",
				Action: r.ConfigShow,
			},
		},
	}
}

// cacheCommand inspects persisted playlist entries
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect & clear persisted derived playlists",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List persisted playlists",
				Action: r.CacheList,
			},
			{
				Name:  "clear",
				Usage: "Delete persisted playlists",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "id",
						Usage: "Only delete this playlist",
					},
				},
				Action: r.CacheClear,
			},
		},
	}
}

// setupCommand handles setup operations for the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "down",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

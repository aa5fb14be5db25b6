package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/deezify/internal/server"
)

// Serve runs the HTTP API until the process is interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	s, err := r.build()
	if err != nil {
		return err
	}
	defer s.Close()

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	if r.config.Playlist.DefaultID == "" {
		r.logger.Warn("no default playlist configured; /api/playlist requires ?id=")
	}
	if s.entries == nil {
		r.logger.Info("persistence disabled, derived playlists are kept in memory only")
	}

	defaults := server.WeatherDefaults{
		Timezone: r.config.Weather.DefaultTimezone,
		Units:    r.config.Weather.DefaultUnits,
	}
	return server.New(addr, s.engine, s.weather, defaults, r.logger).ListenAndServe(ctx)
}

package main

import (
	"context"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/deezify/internal/shared"
)

const redacted = "********"

// ConfigInit writes the example configuration to the --config path.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", r.configPath)
	return r.writePlain("✓ Wrote %s\n", r.configPath)
}

// ConfigShow prints the effective configuration (file + environment) as TOML.
func (r *Runner) ConfigShow(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensureConfig(); err != nil {
		return err
	}

	view := *r.config
	if view.Credentials.Spotify.ClientID != "" {
		view.Credentials.Spotify.ClientID = redacted
	}
	if view.Credentials.Spotify.ClientSecret != "" {
		view.Credentials.Spotify.ClientSecret = redacted
	}

	if err := toml.NewEncoder(r.output).Encode(view); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

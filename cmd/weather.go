package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/deezify/internal/models"
)

// Weather prints the current conditions for --lat/--lon as JSON.
func (r *Runner) Weather(ctx context.Context, cmd *cli.Command) error {
	s, err := r.build()
	if err != nil {
		return err
	}
	defer s.Close()

	timezone := cmd.String("timezone")
	if timezone == "" {
		timezone = r.config.Weather.DefaultTimezone
	}
	units := cmd.String("units")
	if units == "" {
		units = r.config.Weather.DefaultUnits
	}

	query, err := models.NewWeatherQuery(cmd.Float("lat"), cmd.Float("lon"), timezone, units)
	if err != nil {
		return err
	}

	payload, err := s.weather.Current(ctx, query)
	if err != nil {
		return err
	}
	return r.writeJSON(payload, true)
}

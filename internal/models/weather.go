package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/deezify/internal/shared"
	"github.com/go-playground/validator/v10"
)

// Units is the unit system of a weather query.
type Units string

const (
	Metric   Units = "metric"
	Imperial Units = "imperial"
)

// WeatherKind is the closed taxonomy weather codes are mapped onto.
type WeatherKind string

const (
	Clear        WeatherKind = "clear"
	MostlyClear  WeatherKind = "mostly-clear"
	PartlyCloudy WeatherKind = "partly-cloudy"
	Overcast     WeatherKind = "overcast"
	Fog          WeatherKind = "fog"
	Drizzle      WeatherKind = "drizzle"
	Rain         WeatherKind = "rain"
	FreezingRain WeatherKind = "freezing-rain"
	Snow         WeatherKind = "snow"
	Thunderstorm WeatherKind = "thunderstorm"
)

// WeatherKinds lists every [WeatherKind].
var WeatherKinds = []WeatherKind{
	Clear, MostlyClear, PartlyCloudy, Overcast, Fog, Drizzle, Rain, FreezingRain, Snow, Thunderstorm,
}

// WeatherQuery identifies one current-weather lookup.
type WeatherQuery struct {
	Latitude  float64 `json:"latitude"  validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Timezone  string  `json:"timezone"  validate:"required"`
	Units     Units   `json:"units"     validate:"oneof=metric imperial"`
}

// WeatherPayload is the current conditions for a [WeatherQuery].
type WeatherPayload struct {
	Temperature *float64    `json:"temperature"`
	WeatherCode *int        `json:"weatherCode"`
	ObservedAt  *string     `json:"observedAt"`
	Units       Units       `json:"units"`
	Kind        WeatherKind `json:"kind"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the query ranges and unit system.
func (q WeatherQuery) Validate() error {
	if err := validate.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %s=%s", shared.ErrInvalidInput, strings.ToLower(fe.Field()), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

// NewWeatherQuery trims and defaults timezone and units, then validates.
func NewWeatherQuery(lat, lon float64, timezone, units string) (WeatherQuery, error) {
	q := WeatherQuery{
		Latitude:  lat,
		Longitude: lon,
		Timezone:  strings.TrimSpace(timezone),
		Units:     Units(strings.ToLower(strings.TrimSpace(units))),
	}
	if q.Timezone == "" {
		q.Timezone = "auto"
	}
	if q.Units == "" {
		q.Units = Metric
	}
	return q, q.Validate()
}

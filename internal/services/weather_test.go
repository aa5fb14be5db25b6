package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/desertthunder/deezify/internal/models"
	"github.com/desertthunder/deezify/internal/shared"
	tu "github.com/desertthunder/deezify/internal/testing"
)

func TestWeatherKindFor(t *testing.T) {
	tests := []struct {
		code *int
		want models.WeatherKind
	}{
		{ptr(0), models.Clear},
		{ptr(1), models.MostlyClear},
		{ptr(2), models.PartlyCloudy},
		{ptr(3), models.Overcast},
		{ptr(48), models.Fog},
		{ptr(57), models.Drizzle},
		{ptr(63), models.Rain},
		{ptr(82), models.Rain},
		{ptr(67), models.FreezingRain},
		{ptr(77), models.Snow},
		{ptr(86), models.Snow},
		{ptr(95), models.Thunderstorm},
		{ptr(99), models.Thunderstorm},
		{ptr(9999), models.Clear},
		{ptr(-1), models.Clear},
		{nil, models.Clear},
	}
	for _, tt := range tests {
		name := "nil"
		if tt.code != nil {
			name = fmt.Sprintf("%d", *tt.code)
		}
		t.Run(name, func(t *testing.T) {
			if got := WeatherKindFor(tt.code); got != tt.want {
				t.Errorf("code %v: expected %s, got %s", tt.code, tt.want, got)
			}
		})
	}

	t.Run("Every Kind Is Reachable", func(t *testing.T) {
		seen := map[models.WeatherKind]bool{}
		for _, k := range weatherKindByCode {
			seen[k] = true
		}
		for _, k := range models.WeatherKinds {
			if !seen[k] {
				t.Errorf("kind %s has no code", k)
			}
		}
	})
}

func TestWeatherService(t *testing.T) {
	current := map[string]any{"temperature": 21.5, "weathercode": 2, "time": "2026-10-16T12:00"}

	newService := func(t *testing.T, f *tu.FakeOpenMeteo) *WeatherService {
		w := NewWeatherService(WeatherOptions{BaseURL: f.ForecastURL()})
		t.Cleanup(w.Close)
		return w
	}

	t.Run("Metric", func(t *testing.T) {
		f := tu.NewFakeOpenMeteo(t, current)
		w := newService(t, f)

		q, err := models.NewWeatherQuery(52.52, 13.41, "", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, err := w.Current(context.Background(), q)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got.Kind != models.PartlyCloudy {
			t.Errorf("expected partly-cloudy, got %s", got.Kind)
		}
		if got.Temperature == nil || *got.Temperature != 21.5 {
			t.Errorf("unexpected temperature: %v", got.Temperature)
		}
		if got.ObservedAt == nil || *got.ObservedAt != "2026-10-16T12:00" {
			t.Errorf("unexpected observedAt: %v", got.ObservedAt)
		}
		if got.Units != models.Metric {
			t.Errorf("expected metric, got %s", got.Units)
		}

		params := f.LastQuery()
		want := map[string]string{
			"latitude":         "52.52",
			"longitude":        "13.41",
			"current_weather":  "true",
			"timezone":         "auto",
			"temperature_unit": "celsius",
			"windspeed_unit":   "kmh",
		}
		for k, v := range want {
			if params[k] != v {
				t.Errorf("param %s: expected %s, got %s", k, v, params[k])
			}
		}
	})

	t.Run("Imperial", func(t *testing.T) {
		f := tu.NewFakeOpenMeteo(t, current)
		w := newService(t, f)

		q, _ := models.NewWeatherQuery(40.7, -74, "America/New_York", "imperial")
		if _, err := w.Current(context.Background(), q); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		params := f.LastQuery()
		if params["temperature_unit"] != "fahrenheit" || params["windspeed_unit"] != "mph" {
			t.Errorf("unexpected unit params: %v", params)
		}
		if params["timezone"] != "America/New_York" {
			t.Errorf("unexpected timezone: %s", params["timezone"])
		}
	})

	t.Run("Cached Per Query", func(t *testing.T) {
		f := tu.NewFakeOpenMeteo(t, current)
		w := newService(t, f)

		q1, _ := models.NewWeatherQuery(1, 2, "UTC", "metric")
		q2, _ := models.NewWeatherQuery(1, 2, "UTC", "imperial")
		for range 3 {
			_, _ = w.Current(context.Background(), q1)
		}
		_, _ = w.Current(context.Background(), q2)

		if f.Requests.Load() != 2 {
			t.Errorf("expected 2 requests, got %d", f.Requests.Load())
		}
	})

	t.Run("Missing Current Weather", func(t *testing.T) {
		f := tu.NewFakeOpenMeteo(t, nil)
		w := newService(t, f)

		q, _ := models.NewWeatherQuery(0, 0, "", "")
		_, err := w.Current(context.Background(), q)
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Null Code Is Clear", func(t *testing.T) {
		f := tu.NewFakeOpenMeteo(t, map[string]any{"temperature": 3.0, "weathercode": nil})
		w := newService(t, f)

		q, _ := models.NewWeatherQuery(0, 0, "", "")
		got, err := w.Current(context.Background(), q)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Kind != models.Clear || got.WeatherCode != nil || got.ObservedAt != nil {
			t.Errorf("unexpected payload: %+v", got)
		}
	})

	t.Run("Rejected", func(t *testing.T) {
		f := tu.NewFakeOpenMeteo(t, current)
		f.Status.Store(http.StatusBadRequest)
		w := newService(t, f)

		q, _ := models.NewWeatherQuery(0, 0, "", "")
		_, err := w.Current(context.Background(), q)
		if !errors.Is(err, shared.ErrUpstreamRejected) {
			t.Errorf("expected ErrUpstreamRejected, got %v", err)
		}
	})

	t.Run("Invalid Query", func(t *testing.T) {
		f := tu.NewFakeOpenMeteo(t, current)
		w := newService(t, f)

		_, err := w.Current(context.Background(), models.WeatherQuery{Latitude: 91, Longitude: 0, Timezone: "auto", Units: models.Metric})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if f.Requests.Load() != 0 {
			t.Errorf("expected no requests, got %d", f.Requests.Load())
		}
	})
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"

	"github.com/desertthunder/deezify/internal/models"
	"github.com/desertthunder/deezify/internal/shared"
)

// PlaylistGetter serves derived playlists (tasks.PlaylistEngine).
type PlaylistGetter interface {
	Get(ctx context.Context, id string) (*models.DerivedPlaylist, error)
}

// WeatherGetter serves current weather (services.WeatherService).
type WeatherGetter interface {
	Current(ctx context.Context, q models.WeatherQuery) (*models.WeatherPayload, error)
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrConfiguration), errors.Is(err, shared.ErrInvalidConfig):
		return http.StatusPreconditionFailed
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrMissingArgument), errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrUpstreamRejected), errors.Is(err, shared.ErrUpstreamMalformed):
		return http.StatusBadGateway
	case errors.Is(err, shared.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// PlaylistHandler serves GET /api/playlist[?id=].
type PlaylistHandler struct {
	playlists PlaylistGetter
	logger    *log.Logger
}

func NewPlaylistHandler(playlists PlaylistGetter, logger *log.Logger) *PlaylistHandler {
	return &PlaylistHandler{playlists: playlists, logger: logger}
}

func (h *PlaylistHandler) Routes() []string { return []string{"/api/playlist"} }

func (h *PlaylistHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	playlist, err := h.playlists.Get(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

func (h *PlaylistHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	failWith(h.logger, w, r, err)
}

// WeatherDefaults fill blank timezone and units parameters ([weather] in the config).
type WeatherDefaults struct {
	Timezone string
	Units    string
}

// WeatherHandler serves GET /api/weather?latitude=&longitude=[&timezone=][&units=].
type WeatherHandler struct {
	weather  WeatherGetter
	defaults WeatherDefaults
	logger   *log.Logger
}

func NewWeatherHandler(weather WeatherGetter, defaults WeatherDefaults, logger *log.Logger) *WeatherHandler {
	return &WeatherHandler{weather: weather, defaults: defaults, logger: logger}
}

func (h *WeatherHandler) Routes() []string { return []string{"/api/weather"} }

func (h *WeatherHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	q, err := ParseWeatherQuery(r, h.defaults)
	if err != nil {
		failWith(h.logger, w, r, err)
		return
	}

	payload, err := h.weather.Current(r.Context(), q)
	if err != nil {
		failWith(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// ParseWeatherQuery reads and validates the weather query parameters. Blank timezone or units fall back to
// defaults, then to auto and metric.
func ParseWeatherQuery(r *http.Request, defaults WeatherDefaults) (models.WeatherQuery, error) {
	values := r.URL.Query()

	lat, err := parseCoordinate(values.Get("latitude"), "latitude")
	if err != nil {
		return models.WeatherQuery{}, err
	}
	lon, err := parseCoordinate(values.Get("longitude"), "longitude")
	if err != nil {
		return models.WeatherQuery{}, err
	}

	timezone := strings.TrimSpace(values.Get("timezone"))
	if timezone == "" {
		timezone = defaults.Timezone
	}
	units := strings.TrimSpace(values.Get("units"))
	if units == "" {
		units = defaults.Units
	}

	return models.NewWeatherQuery(lat, lon, timezone, units)
}

func parseCoordinate(raw, name string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", shared.ErrInvalidInput, name)
	}
	return v, nil
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", http.MethodGet)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	return false
}

func failWith(logger *log.Logger, w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError || status == http.StatusBadGateway || status == http.StatusPreconditionFailed {
		logger.Warn("request failed", "path", r.URL.Path, "kind", shared.Kind(err), "error", err, "request_id", RequestIDFrom(r.Context()))
	}
	writeError(w, status, shared.Kind(err), err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, ErrorResponse{Error: kind, Message: message})
}

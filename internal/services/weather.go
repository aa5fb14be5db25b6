// Open-Meteo current weather client and cache.
//
// Forecast API: https://open-meteo.com/en/docs
package services

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"

	"github.com/desertthunder/deezify/internal/cache"
	"github.com/desertthunder/deezify/internal/models"
	"github.com/desertthunder/deezify/internal/shared"
)

const (
	openMeteoURL = "https://api.open-meteo.com/v1/forecast"

	DefaultWeatherTTL      = 5 * time.Minute
	DefaultWeatherCapacity = 64
)

var weatherKindByCode = map[int]models.WeatherKind{
	0:  models.Clear,
	1:  models.MostlyClear,
	2:  models.PartlyCloudy,
	3:  models.Overcast,
	45: models.Fog,
	48: models.Fog,
	51: models.Drizzle,
	53: models.Drizzle,
	55: models.Drizzle,
	56: models.Drizzle,
	57: models.Drizzle,
	61: models.Rain,
	63: models.Rain,
	65: models.Rain,
	66: models.FreezingRain,
	67: models.FreezingRain,
	71: models.Snow,
	73: models.Snow,
	75: models.Snow,
	77: models.Snow,
	80: models.Rain,
	81: models.Rain,
	82: models.Rain,
	85: models.Snow,
	86: models.Snow,
	95: models.Thunderstorm,
	96: models.Thunderstorm,
	99: models.Thunderstorm,
}

var unitParams = map[models.Units][2]string{
	models.Metric:   {"celsius", "kmh"},
	models.Imperial: {"fahrenheit", "mph"},
}

type openMeteoResponse struct {
	CurrentWeather *struct {
		Temperature *float64 `json:"temperature"`
		WeatherCode *int     `json:"weathercode"`
		Time        *string  `json:"time"`
	} `json:"current_weather"`
}

// WeatherKindFor maps a WMO weather code onto a [models.WeatherKind]. Nil and unknown codes are clear.
func WeatherKindFor(code *int) models.WeatherKind {
	if code == nil {
		return models.Clear
	}
	if kind, ok := weatherKindByCode[*code]; ok {
		return kind
	}
	return models.Clear
}

// WeatherOptions configures a [WeatherService].
type WeatherOptions struct {
	BaseURL    string
	TTL        time.Duration
	Capacity   int64
	HTTPClient *http.Client
	Logger     *log.Logger
}

// WeatherService serves current conditions from a short-lived cache.
type WeatherService struct {
	upstream *Upstream
	baseURL  string
	cache    *cache.Cache[*models.WeatherPayload]
}

// NewWeatherService creates the service and its cache.
func NewWeatherService(opts WeatherOptions) *WeatherService {
	if opts.BaseURL == "" {
		opts.BaseURL = openMeteoURL
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultWeatherTTL
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultWeatherCapacity
	}

	w := &WeatherService{
		upstream: NewUpstream(OpenMeteo, opts.HTTPClient, opts.Logger),
		baseURL:  opts.BaseURL,
	}
	w.cache = cache.New(cache.Options{
		Name:     "weather",
		Capacity: opts.Capacity,
		TTL:      opts.TTL,
		Logger:   opts.Logger,
	}, w.lookup)
	return w
}

// Close stops the weather cache.
func (w *WeatherService) Close() { w.cache.Close() }

// Current returns the current weather for a validated query.
func (w *WeatherService) Current(ctx context.Context, q models.WeatherQuery) (*models.WeatherPayload, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	key, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	return w.cache.Get(ctx, string(key))
}

func (w *WeatherService) lookup(ctx context.Context, key string) (*models.WeatherPayload, error) {
	var q models.WeatherQuery
	if err := json.Unmarshal([]byte(key), &q); err != nil {
		return nil, err
	}

	var resp openMeteoResponse
	if err := w.upstream.doJSON(ctx, request{url: w.requestURL(q)}, &resp); err != nil {
		return nil, err
	}

	cw := resp.CurrentWeather
	if cw == nil {
		return nil, errorf(OpenMeteo, shared.ErrNotFound, "no current weather data for %.4f,%.4f", q.Latitude, q.Longitude)
	}

	return &models.WeatherPayload{
		Temperature: cw.Temperature,
		WeatherCode: cw.WeatherCode,
		ObservedAt:  cw.Time,
		Units:       q.Units,
		Kind:        WeatherKindFor(cw.WeatherCode),
	}, nil
}

func (w *WeatherService) requestURL(q models.WeatherQuery) string {
	units := unitParams[q.Units]
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(q.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(q.Longitude, 'f', -1, 64))
	params.Set("current_weather", "true")
	params.Set("timezone", q.Timezone)
	params.Set("temperature_unit", units[0])
	params.Set("windspeed_unit", units[1])

	sep := "?"
	if strings.Contains(w.baseURL, "?") {
		sep = "&"
	}
	return w.baseURL + sep + params.Encode()
}

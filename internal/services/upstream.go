package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/desertthunder/deezify/internal/metrics"
	"github.com/desertthunder/deezify/internal/shared"
)

const (
	breakerFailures = 5
	breakerTimeout  = 30 * time.Second
	maxBodyBytes    = 8 << 20
)

// Upstream names used in errors, logs and metric labels.
const (
	SpotifyAccounts = "spotify-accounts"
	SpotifyAPI      = "spotify-api"
	Deezer          = "deezer"
	OpenMeteo       = "open-meteo"
)

// Upstream sends requests to one third-party API through a circuit breaker and maps every failure onto an
// error kind from [shared].
type Upstream struct {
	name       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *log.Logger
}

// NewUpstream creates an [Upstream]. A nil client uses [http.DefaultClient].
func NewUpstream(name string, client *http.Client, logger *log.Logger) *Upstream {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NopLogger()
	}
	logger = shared.WithLogger(logger, "upstream", name)

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		IsSuccessful: func(err error) bool {
			return !countsAsFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})

	return &Upstream{name: name, httpClient: client, breaker: breaker, logger: logger}
}

// Name returns the upstream's name.
func (u *Upstream) Name() string { return u.name }

// Client returns the HTTP client requests are sent with.
func (u *Upstream) Client() *http.Client { return u.httpClient }

// request describes a single upstream call.
type request struct {
	method   string
	url      string
	header   http.Header
	body     io.Reader
	notFound bool // map 404 to [shared.ErrNotFound] instead of [shared.ErrUpstreamRejected]
}

// do performs the request and returns the raw body of a 2xx response.
func (u *Upstream) do(ctx context.Context, r request) ([]byte, error) {
	return u.exec(r.url, func() ([]byte, error) {
		return u.send(ctx, r)
	})
}

// exec runs fn through the breaker and records the outcome. target is only used for logging.
func (u *Upstream) exec(target string, fn func() ([]byte, error)) ([]byte, error) {
	start := time.Now()
	body, err := u.breaker.Execute(fn)
	metrics.UpstreamDuration.WithLabelValues(u.name).Observe(time.Since(start).Seconds())

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &shared.UpstreamError{Upstream: u.name, Kind: shared.ErrUpstreamUnavailable, Message: "circuit open", Err: err}
	}

	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(u.name, shared.Kind(err)).Inc()
		u.logger.Warn("upstream request failed", "target", target, "kind", shared.Kind(err), "error", err)
		return nil, err
	}

	metrics.UpstreamRequests.WithLabelValues(u.name, "success").Inc()
	return body, nil
}

func (u *Upstream) send(ctx context.Context, r request) ([]byte, error) {
	method := r.method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, r.url, r.body)
	if err != nil {
		return nil, &shared.UpstreamError{Upstream: u.name, Kind: shared.ErrUpstreamRejected, Message: "failed to create request", Err: err}
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, &shared.UpstreamError{Upstream: u.name, Kind: shared.ErrUpstreamUnavailable, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if r.notFound && resp.StatusCode == http.StatusNotFound {
		return nil, &shared.UpstreamError{Upstream: u.name, Status: resp.StatusCode, Kind: shared.ErrNotFound}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &shared.UpstreamError{Upstream: u.name, Status: resp.StatusCode, Kind: shared.ErrUpstreamRejected}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &shared.UpstreamError{Upstream: u.name, Kind: shared.ErrUpstreamUnavailable, Message: "failed to read response", Err: err}
	}
	return body, nil
}

// doJSON performs the request and decodes a 2xx body into result.
func (u *Upstream) doJSON(ctx context.Context, r request, result any) error {
	body, err := u.do(ctx, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return u.malformed("failed to decode response", err)
	}
	return nil
}

func (u *Upstream) malformed(msg string, err error) error {
	return &shared.UpstreamError{Upstream: u.name, Kind: shared.ErrUpstreamMalformed, Message: msg, Err: err}
}

// countsAsFailure reports whether err should move the breaker towards open: network failures and 5xx only.
func countsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, shared.ErrUpstreamUnavailable) {
		return true
	}
	var ue *shared.UpstreamError
	if errors.As(err, &ue) && errors.Is(ue.Kind, shared.ErrUpstreamRejected) {
		return ue.Status >= 500
	}
	return false
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// errorf builds an untyped-status upstream error of the given kind.
func errorf(upstream string, kind error, format string, args ...any) error {
	return &shared.UpstreamError{Upstream: upstream, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

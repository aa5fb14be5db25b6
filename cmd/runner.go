package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/tidwall/pretty"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/deezify/internal/repositories"
	"github.com/desertthunder/deezify/internal/services"
	"github.com/desertthunder/deezify/internal/shared"
	"github.com/desertthunder/deezify/internal/tasks"
)

const defaultHTTPTimeout = 15 * time.Second

// Endpoints overrides upstream base URLs. Zero values use the public APIs.
type Endpoints struct {
	SpotifyTokenURL string
	SpotifyBaseURL  string
	DeezerBaseURL   string
	OpenMeteoURL    string
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	env        func(string) (string, bool)
	endpoints  Endpoints
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config // Skips loading from ConfigPath when set
	ConfigPath string
	Env        func(string) (string, bool)
	Endpoints  Endpoints
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if opts.Env == nil {
		opts.Env = os.LookupEnv
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		env:        opts.Env,
		endpoints:  opts.Endpoints,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, playlistCommand, weatherCommand, configCommand, cacheCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Load resolves the configuration before any command runs: file (when present), then environment, then flags.
func (r *Runner) Load(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	if err := r.loadConfig(); err != nil {
		return ctx, err
	}

	if level := cmd.String("log-level"); level != "" {
		r.config.Log.Level = level
	}
	shared.SetLogLevel(r.logger, r.config.LogLevel())
	return ctx, nil
}

func (r *Runner) loadConfig() error {
	if r.config != nil {
		return r.config.ApplyEnv(r.env)
	}

	config := shared.DefaultConfig()
	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); err == nil {
			loaded, err := shared.LoadConfig(r.configPath)
			if err != nil {
				return err
			}
			config = loaded
		} else {
			r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		}
	}

	if err := config.ApplyEnv(r.env); err != nil {
		return err
	}
	r.config = config
	return nil
}

func (r *Runner) ensureConfig() error {
	if r.config != nil {
		return nil
	}
	return r.loadConfig()
}

// stack is the set of services behind playlist & weather requests.
type stack struct {
	spotify *services.SpotifyService
	deezer  *services.DeezerService
	weather *services.WeatherService
	engine  *tasks.PlaylistEngine
	entries *repositories.PlaylistEntryRepository // nil when persistence is disabled
	db      *sql.DB
}

// build wires the services from the loaded configuration.
func (r *Runner) build() (*stack, error) {
	if err := r.ensureConfig(); err != nil {
		return nil, err
	}
	cfg := r.config

	db, err := shared.OpenDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	s := &stack{db: db}
	s.spotify = services.NewSpotifyService(services.SpotifyOptions{
		ClientID:     cfg.Credentials.Spotify.ClientID,
		ClientSecret: cfg.Credentials.Spotify.ClientSecret,
		TokenURL:     r.endpoints.SpotifyTokenURL,
		BaseURL:      r.endpoints.SpotifyBaseURL,
		TokenTTL:     cfg.Cache.TokenTTL.Duration,
		HTTPClient:   r.httpClient,
		Logger:       r.logger,
	})
	s.deezer = services.NewDeezerService(services.DeezerOptions{
		BaseURL:           r.endpoints.DeezerBaseURL,
		MatchTTL:          cfg.Cache.MatchTTL.Duration,
		MatchCapacity:     int64(cfg.Cache.MatchCapacity),
		RequestsPerSecond: cfg.Deezer.RequestsPerSecond,
		HTTPClient:        r.httpClient,
		Logger:            r.logger,
	})
	s.weather = services.NewWeatherService(services.WeatherOptions{
		BaseURL:    r.endpoints.OpenMeteoURL,
		TTL:        cfg.Cache.WeatherTTL.Duration,
		Capacity:   int64(cfg.Cache.WeatherCapacity),
		HTTPClient: r.httpClient,
		Logger:     r.logger,
	})

	opts := tasks.Options{
		DefaultPlaylistID: cfg.Playlist.DefaultID,
		Capacity:          int64(cfg.Cache.PlaylistCapacity),
		Concurrency:       cfg.Deezer.Concurrency,
		Logger:            r.logger,
	}
	if db != nil {
		s.entries = repositories.NewPlaylistEntryRepository(db)
		opts.Store = s.entries
	}
	s.engine = tasks.NewPlaylistEngine(s.spotify, s.deezer, opts)

	return s, nil
}

func (s *stack) Close() {
	s.engine.Close()
	s.spotify.Close()
	s.deezer.Close()
	s.weather.Close()
	if s.db != nil {
		s.db.Close()
	}
}

// writeJSON encodes data and writes it with a trailing newline, indented when indent is set.
func (r *Runner) writeJSON(data any, indent bool) error {
	output, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if indent {
		output = pretty.Pretty(output)
	}
	if !bytes.HasSuffix(output, []byte("\n")) {
		output = append(output, '\n')
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// Spotify Web API client: client-credentials token cache, snapshot probe and paginated playlist fetch.
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/get-playlist
package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/desertthunder/deezify/internal/cache"
	"github.com/desertthunder/deezify/internal/models"
	"github.com/desertthunder/deezify/internal/shared"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// DefaultTokenTTL is shorter than the hour Spotify grants so a cached token is never used after expiry.
	DefaultTokenTTL = 50 * time.Minute

	tokenKey = "token"
)

type spotifyImage struct {
	URL *string `json:"url"`
}

type spotifyArtist struct {
	Name *string `json:"name"`
}

type spotifyTrack struct {
	ID           *string          `json:"id"`
	Name         *string          `json:"name"`
	DurationMS   *int             `json:"duration_ms"`
	ExternalURLs *externalURLs    `json:"external_urls"`
	Artists      []*spotifyArtist `json:"artists"`
	IsLocal      bool             `json:"is_local"`
	Type         *string          `json:"type"`
}

type externalURLs struct {
	Spotify *string `json:"spotify"`
}

type spotifyPlaylistItem struct {
	Track *spotifyTrack `json:"track"`
}

type spotifyTracksPage struct {
	Items []*spotifyPlaylistItem `json:"items"`
	Next  *string                `json:"next"`
}

type spotifyOwner struct {
	DisplayName *string `json:"display_name"`
}

type spotifyPlaylist struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Description  *string            `json:"description"`
	ExternalURLs *externalURLs      `json:"external_urls"`
	SnapshotID   *string            `json:"snapshot_id"`
	Images       []*spotifyImage    `json:"images"`
	Owner        *spotifyOwner      `json:"owner"`
	Tracks       *spotifyTracksPage `json:"tracks"`
}

// SpotifyOptions configures a [SpotifyService]. Empty URLs use the public Spotify endpoints.
type SpotifyOptions struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	BaseURL      string
	TokenTTL     time.Duration
	HTTPClient   *http.Client
	Logger       *log.Logger
}

// SpotifyService reads public playlists with an app-only (client credentials) token.
type SpotifyService struct {
	accounts *Upstream
	api      *Upstream
	creds    clientcredentials.Config
	baseURL  string
	tokens   *cache.Cache[string]
	logger   *log.Logger
}

// NewSpotifyService creates the service. Missing credentials are reported on first use as [shared.ErrConfiguration].
func NewSpotifyService(opts SpotifyOptions) *SpotifyService {
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyTokenURL
	}
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = DefaultTokenTTL
	}
	if opts.Logger == nil {
		opts.Logger = shared.NopLogger()
	}

	// AuthStyleInHeader form-encodes id and secret before base64 (RFC 6749 section 2.3.1). Spotify issues
	// alphanumeric credentials, for which the header equals base64(id:secret).
	s := &SpotifyService{
		accounts: NewUpstream(SpotifyAccounts, opts.HTTPClient, opts.Logger),
		api:      NewUpstream(SpotifyAPI, opts.HTTPClient, opts.Logger),
		creds: clientcredentials.Config{
			ClientID:     strings.TrimSpace(opts.ClientID),
			ClientSecret: strings.TrimSpace(opts.ClientSecret),
			TokenURL:     opts.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		logger:  shared.WithLogger(opts.Logger, "service", "spotify"),
	}
	s.tokens = cache.New(cache.Options{
		Name:     "spotify_token",
		Capacity: 1,
		TTL:      opts.TokenTTL,
		Logger:   opts.Logger,
	}, s.fetchToken)
	return s
}

// Token returns the cached access token, requesting a new one when it is missing or expired.
func (s *SpotifyService) Token(ctx context.Context) (string, error) {
	return s.tokens.Get(ctx, tokenKey)
}

// Close stops the token cache.
func (s *SpotifyService) Close() { s.tokens.Close() }

func (s *SpotifyService) fetchToken(ctx context.Context, _ string) (string, error) {
	if s.creds.ClientID == "" || s.creds.ClientSecret == "" {
		return "", fmt.Errorf("%w: spotify client credentials are not configured", shared.ErrConfiguration)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.accounts.Client())
	body, err := s.accounts.exec(s.creds.TokenURL, func() ([]byte, error) {
		tok, err := s.creds.Token(ctx)
		if err != nil {
			return nil, tokenError(err)
		}
		value := strings.TrimSpace(tok.AccessToken)
		if value == "" {
			return nil, s.accounts.malformed("token response did not include an access token", nil)
		}
		return []byte(value), nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Debug("acquired access token")
	return string(body), nil
}

// tokenError maps an [oauth2] exchange failure onto an error kind.
func tokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return &shared.UpstreamError{Upstream: SpotifyAccounts, Status: status, Kind: shared.ErrUpstreamRejected, Message: "token request failed"}
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return &shared.UpstreamError{Upstream: SpotifyAccounts, Kind: shared.ErrUpstreamUnavailable, Message: "failed to reach token endpoint", Err: err}
	}

	return &shared.UpstreamError{Upstream: SpotifyAccounts, Kind: shared.ErrUpstreamMalformed, Message: "invalid token response", Err: err}
}

func (s *SpotifyService) authorized(ctx context.Context, target string, notFound bool) (request, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return request{}, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	return request{url: s.resolveURL(target), header: header, notFound: notFound}, nil
}

// resolveURL keeps absolute pagination cursors as-is and prefixes relative paths with the API base.
func (s *SpotifyService) resolveURL(target string) string {
	if strings.HasPrefix(target, "http") {
		return target
	}
	return s.baseURL + target
}

func playlistPath(playlistID string) string {
	return "/playlists/" + url.PathEscape(playlistID)
}

// FetchSnapshotID fetches only the playlist's snapshot id. A blank id is returned as nil.
func (s *SpotifyService) FetchSnapshotID(ctx context.Context, playlistID string) (*string, error) {
	req, err := s.authorized(ctx, playlistPath(playlistID)+"?fields=snapshot_id", true)
	if err != nil {
		return nil, err
	}

	body, err := s.api.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, s.api.malformed("invalid snapshot response", nil)
	}

	snapshot := strings.TrimSpace(gjson.GetBytes(body, "snapshot_id").String())
	return models.StringPtr(snapshot), nil
}

// FetchPlaylistData fetches playlist metadata and drains every track page in cursor order.
func (s *SpotifyService) FetchPlaylistData(ctx context.Context, playlistID string) (*models.CatalogPlaylist, error) {
	req, err := s.authorized(ctx, playlistPath(playlistID), true)
	if err != nil {
		return nil, err
	}

	var raw spotifyPlaylist
	if err := s.api.doJSON(ctx, req, &raw); err != nil {
		return nil, err
	}
	if raw.ID == "" && raw.Name == "" {
		return nil, s.api.malformed("playlist response missing expected fields", nil)
	}

	var tracks []models.CatalogTrack
	var next *string
	if raw.Tracks != nil {
		tracks = append(tracks, extractTracks(raw.Tracks.Items)...)
		next = raw.Tracks.Next
	}

	for page := 2; next != nil && *next != ""; page++ {
		req, err := s.authorized(ctx, *next, false)
		if err != nil {
			return nil, err
		}

		var tp spotifyTracksPage
		if err := s.api.doJSON(ctx, req, &tp); err != nil {
			return nil, fmt.Errorf("playlist %s page %d: %w", playlistID, page, err)
		}
		tracks = append(tracks, extractTracks(tp.Items)...)
		next = tp.Next
		s.logger.Debug("fetched playlist page", "playlist", playlistID, "page", page, "tracks", len(tracks))
	}

	playlist := &models.CatalogPlaylist{
		ID:          raw.ID,
		Name:        raw.Name,
		Description: raw.Description,
		SnapshotID:  trimmedPtr(raw.SnapshotID),
		Tracks:      tracks,
	}
	if playlist.Tracks == nil {
		playlist.Tracks = []models.CatalogTrack{}
	}
	if raw.ExternalURLs != nil {
		playlist.ExternalURL = raw.ExternalURLs.Spotify
	}
	if len(raw.Images) > 0 && raw.Images[0] != nil {
		playlist.ImageURL = raw.Images[0].URL
	}
	if raw.Owner != nil {
		playlist.OwnerName = raw.Owner.DisplayName
	}
	return playlist, nil
}

// extractTracks keeps playable tracks with a non-blank name; everything else is dropped silently.
func extractTracks(items []*spotifyPlaylistItem) []models.CatalogTrack {
	return lo.FilterMap(items, func(item *spotifyPlaylistItem, _ int) (models.CatalogTrack, bool) {
		if item == nil || item.Track == nil {
			return models.CatalogTrack{}, false
		}
		t := item.Track
		if t.IsLocal || t.Type == nil || *t.Type != "track" {
			return models.CatalogTrack{}, false
		}

		name := strings.TrimSpace(models.Deref(t.Name))
		if name == "" {
			return models.CatalogTrack{}, false
		}

		id := models.Deref(t.ID)
		if id == "" {
			id = "unknown-" + shared.GenerateID()
		}

		track := models.CatalogTrack{
			ID:         id,
			Name:       name,
			Artists:    artistNames(t.Artists),
			DurationMs: t.DurationMS,
		}
		if t.ExternalURLs != nil {
			track.ExternalURL = t.ExternalURLs.Spotify
		}
		return track, true
	})
}

func artistNames(artists []*spotifyArtist) []string {
	return lo.FilterMap(artists, func(a *spotifyArtist, _ int) (string, bool) {
		if a == nil {
			return "", false
		}
		name := strings.TrimSpace(models.Deref(a.Name))
		return name, name != ""
	})
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return models.StringPtr(strings.TrimSpace(*s))
}

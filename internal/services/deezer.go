// Deezer search client and track match cache.
//
// Search API: https://developers.deezer.com/api/search
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/desertthunder/deezify/internal/cache"
	"github.com/desertthunder/deezify/internal/models"
	"github.com/desertthunder/deezify/internal/shared"
)

const (
	deezerBaseURL = "https://api.deezer.com"

	searchLimit = 5

	DefaultMatchTTL      = 30 * time.Minute
	DefaultMatchCapacity = 256
	DefaultDeezerBurst   = 6
)

type deezerArtist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type deezerAlbum struct {
	Cover       *string `json:"cover"`
	CoverMedium *string `json:"cover_medium"`
	CoverBig    *string `json:"cover_big"`
	CoverXL     *string `json:"cover_xl"`
}

type deezerTrack struct {
	ID           int64           `json:"id"`
	Title        string          `json:"title"`
	Link         *string         `json:"link"`
	Duration     *int            `json:"duration"`
	Preview      *string         `json:"preview"`
	Artist       *deezerArtist   `json:"artist"`
	Contributors []*deezerArtist `json:"contributors"`
	Album        *deezerAlbum    `json:"album"`
}

type deezerSearchResponse struct {
	Data []*deezerTrack `json:"data"`
}

// matchKey identifies a catalog track in the match cache. Artist order is part of the key.
type matchKey struct {
	Name    string   `json:"name"`
	Artists []string `json:"artists"`
}

// DeezerOptions configures a [DeezerService].
type DeezerOptions struct {
	BaseURL           string
	MatchTTL          time.Duration
	MatchCapacity     int64
	RequestsPerSecond float64 // Zero disables pacing
	Burst             int
	HTTPClient        *http.Client
	Logger            *log.Logger
}

// DeezerService finds the Deezer track that best matches a catalog track.
type DeezerService struct {
	upstream *Upstream
	baseURL  string
	limiter  *rate.Limiter
	matches  *cache.Cache[*models.MatchedTrack]
	logger   *log.Logger
}

// NewDeezerService creates the service and its match cache.
func NewDeezerService(opts DeezerOptions) *DeezerService {
	if opts.BaseURL == "" {
		opts.BaseURL = deezerBaseURL
	}
	if opts.MatchTTL <= 0 {
		opts.MatchTTL = DefaultMatchTTL
	}
	if opts.MatchCapacity <= 0 {
		opts.MatchCapacity = DefaultMatchCapacity
	}
	if opts.Burst <= 0 {
		opts.Burst = DefaultDeezerBurst
	}
	if opts.Logger == nil {
		opts.Logger = shared.NopLogger()
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	d := &DeezerService{
		upstream: NewUpstream(Deezer, opts.HTTPClient, opts.Logger),
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		limiter:  rate.NewLimiter(limit, opts.Burst),
		logger:   shared.WithLogger(opts.Logger, "service", "deezer"),
	}
	d.matches = cache.New(cache.Options{
		Name:     "deezer_match",
		Capacity: opts.MatchCapacity,
		TTL:      opts.MatchTTL,
		Logger:   opts.Logger,
	}, d.lookupMatch)
	return d
}

// Close stops the match cache.
func (d *DeezerService) Close() { d.matches.Close() }

// Match returns the best Deezer match for track, or nil when the search has no candidates.
// A nil result is cached like any other value.
func (d *DeezerService) Match(ctx context.Context, track models.CatalogTrack) (*models.MatchedTrack, error) {
	return d.matches.Get(ctx, MatchKey(track))
}

// MatchKey builds the match cache key for a track from its name and its artists in order.
func MatchKey(track models.CatalogTrack) string {
	artists := track.Artists
	if artists == nil {
		artists = []string{}
	}
	b, _ := json.Marshal(matchKey{Name: track.Name, Artists: artists})
	return string(b)
}

// SearchQuery builds the advanced search query for a track name and its primary artist.
func SearchQuery(name string, artists []string) string {
	if len(artists) > 0 && artists[0] != "" {
		return fmt.Sprintf(`artist:"%s" track:"%s"`, artists[0], name)
	}
	return fmt.Sprintf(`track:"%s"`, name)
}

func (d *DeezerService) lookupMatch(ctx context.Context, key string) (*models.MatchedTrack, error) {
	var k matchKey
	if err := json.Unmarshal([]byte(key), &k); err != nil {
		return nil, fmt.Errorf("%w: invalid match key %q", shared.ErrInvalidArgument, key)
	}

	candidates, err := d.search(ctx, SearchQuery(k.Name, k.Artists))
	if err != nil {
		return nil, err
	}

	match := selectMatch(k, candidates)
	if match == nil {
		d.logger.Debug("no match", "name", k.Name, "candidates", len(candidates))
	}
	return match, nil
}

// search runs one paced search request and returns up to five candidates in Deezer's relevance order.
func (d *DeezerService) search(ctx context.Context, query string) ([]*deezerTrack, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, &shared.UpstreamError{Upstream: Deezer, Kind: shared.ErrUpstreamUnavailable, Message: "rate limiter", Err: err}
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(searchLimit))

	var resp deezerSearchResponse
	if err := d.upstream.doJSON(ctx, request{url: d.baseURL + "/search?" + params.Encode()}, &resp); err != nil {
		return nil, err
	}
	return lo.Filter(resp.Data, func(t *deezerTrack, _ int) bool { return t != nil }), nil
}

// selectMatch prefers the first candidate whose normalized title equals the query name and that shares at
// least one normalized artist with the query. Without such a candidate, Deezer's top result is used.
func selectMatch(k matchKey, candidates []*deezerTrack) *models.MatchedTrack {
	if len(candidates) == 0 {
		return nil
	}

	name := shared.Normalize(k.Name)
	artists := lo.Compact(lo.Map(k.Artists, func(a string, _ int) string { return shared.Normalize(a) }))

	chosen, ok := lo.Find(candidates, func(c *deezerTrack) bool {
		if c.Title == "" || shared.Normalize(c.Title) != name {
			return false
		}
		if len(artists) == 0 {
			return true
		}
		candidateArtists := lo.Map(c.artistList(), func(a string, _ int) string { return shared.Normalize(a) })
		return lo.Some(artists, candidateArtists)
	})
	if !ok {
		chosen = candidates[0]
	}

	if chosen.ID == 0 || chosen.Title == "" {
		return nil
	}
	return chosen.payload()
}

// artistList is the primary artist followed by contributors, de-duplicated in first-seen order.
func (t *deezerTrack) artistList() []string {
	var names []string
	if t.Artist != nil && t.Artist.Name != "" {
		names = append(names, t.Artist.Name)
	}
	for _, c := range t.Contributors {
		if c != nil && c.Name != "" {
			names = append(names, c.Name)
		}
	}
	return lo.Uniq(names)
}

func (t *deezerTrack) payload() *models.MatchedTrack {
	m := &models.MatchedTrack{
		ID:          strconv.FormatInt(t.ID, 10),
		Name:        t.Title,
		Artists:     t.artistList(),
		ExternalURL: t.Link,
		PreviewURL:  t.Preview,
	}
	if m.Artists == nil {
		m.Artists = []string{}
	}
	if t.Duration != nil {
		ms := *t.Duration * 1000
		m.DurationMs = &ms
	}
	if t.Album != nil {
		m.ImageURL = firstPresent(t.Album.CoverXL, t.Album.CoverBig, t.Album.CoverMedium, t.Album.Cover)
	}
	return m
}

func firstPresent(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

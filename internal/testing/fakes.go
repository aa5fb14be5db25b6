package testing

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

const (
	FakeClientID     = "test-client-id"
	FakeClientSecret = "test-client-secret"
	FakeAccessToken  = "test-access-token"
)

// FakeTrack is a playlist item served by [FakeSpotify].
type FakeTrack struct {
	ID         string
	Name       string
	Artists    []string
	DurationMs int
	Local      bool
	Type       string // Defaults to "track"
	NoTrack    bool   // Serve the item with a null track object
}

// FakePlaylist is a playlist served by [FakeSpotify].
type FakePlaylist struct {
	ID         string
	Name       string
	Owner      string
	Snapshot   string // Empty serves a null snapshot_id
	ImageURL   string
	Tracks     []FakeTrack
	PageSize   int // Zero serves every track on the first page
	NoMetadata bool
}

// FakeSpotify serves the token and playlist endpoints of the Spotify Web API.
//
// TokenURL and BaseURL point a client at it.
type FakeSpotify struct {
	*httptest.Server

	mu        sync.Mutex
	playlists map[string]*FakePlaylist

	TokenStatus    atomic.Int32 // Non-zero fails the token endpoint with this status
	PlaylistStatus atomic.Int32 // Non-zero fails the playlist endpoints with this status
	Token          atomic.Value

	TokenRequests    atomic.Int32
	SnapshotRequests atomic.Int32
	PlaylistRequests atomic.Int32
	PageRequests     atomic.Int32
}

// NewFakeSpotify starts a [FakeSpotify] that is closed with the test.
func NewFakeSpotify(t *testing.T, playlists ...*FakePlaylist) *FakeSpotify {
	t.Helper()

	f := &FakeSpotify{playlists: map[string]*FakePlaylist{}}
	f.Token.Store(FakeAccessToken)
	for _, p := range playlists {
		f.playlists[p.ID] = p
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", f.handleToken)
	mux.HandleFunc("GET /v1/playlists/{id}", f.handlePlaylist)
	mux.HandleFunc("GET /v1/playlists/{id}/tracks", f.handlePage)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *FakeSpotify) TokenURL() string { return f.URL + "/api/token" }
func (f *FakeSpotify) BaseURL() string  { return f.URL + "/v1" }

// SetPlaylist adds or replaces a playlist.
func (f *FakeSpotify) SetPlaylist(p *FakePlaylist) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playlists[p.ID] = p
}

// SetSnapshot changes the snapshot id of an existing playlist.
func (f *FakeSpotify) SetSnapshot(id, snapshot string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.playlists[id]; ok {
		p.Snapshot = snapshot
	}
}

func (f *FakeSpotify) playlist(id string) (FakePlaylist, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.playlists[id]
	if !ok {
		return FakePlaylist{}, false
	}
	return *p, true
}

func (f *FakeSpotify) handleToken(w http.ResponseWriter, r *http.Request) {
	f.TokenRequests.Add(1)
	if status := f.TokenStatus.Load(); status != 0 {
		writeJSON(w, int(status), map[string]any{"error": "invalid_client"})
		return
	}

	id, secret, ok := r.BasicAuth()
	if !ok || id != FakeClientID || secret != FakeClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid_client"})
		return
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unsupported_grant_type"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": f.Token.Load(),
		"token_type":   "bearer",
		"expires_in":   3600,
	})
}

func (f *FakeSpotify) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Bearer "+f.Token.Load().(string) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"status": 401}})
		return false
	}
	if status := f.PlaylistStatus.Load(); status != 0 {
		writeJSON(w, int(status), map[string]any{"error": map[string]any{"status": status}})
		return false
	}
	return true
}

func (f *FakeSpotify) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}

	p, ok := f.playlist(r.PathValue("id"))
	if r.URL.Query().Get("fields") == "snapshot_id" {
		f.SnapshotRequests.Add(1)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"status": 404}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"snapshot_id": nullable(p.Snapshot)})
		return
	}

	f.PlaylistRequests.Add(1)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"status": 404}})
		return
	}
	if p.NoMetadata {
		writeJSON(w, http.StatusOK, map[string]any{"tracks": f.page(p, 0)})
		return
	}

	body := map[string]any{
		"id":            p.ID,
		"name":          p.Name,
		"description":   "",
		"snapshot_id":   nullable(p.Snapshot),
		"external_urls": map[string]any{"spotify": "https://open.spotify.com/playlist/" + p.ID},
		"owner":         map[string]any{"display_name": nullable(p.Owner)},
		"images":        []any{},
		"tracks":        f.page(p, 0),
	}
	if p.ImageURL != "" {
		body["images"] = []any{map[string]any{"url": p.ImageURL}}
	}
	writeJSON(w, http.StatusOK, body)
}

func (f *FakeSpotify) handlePage(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	f.PageRequests.Add(1)

	p, ok := f.playlist(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"status": 404}})
		return
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	writeJSON(w, http.StatusOK, f.page(p, offset))
}

func (f *FakeSpotify) page(p FakePlaylist, offset int) map[string]any {
	size := p.PageSize
	if size <= 0 {
		size = len(p.Tracks) + 1
	}
	end := min(offset+size, len(p.Tracks))
	if offset > end {
		offset = end
	}

	items := make([]any, 0, end-offset)
	for _, t := range p.Tracks[offset:end] {
		items = append(items, spotifyItem(t))
	}

	var next any
	if end < len(p.Tracks) {
		next = fmt.Sprintf("%s/v1/playlists/%s/tracks?offset=%d&limit=%d", f.URL, p.ID, end, size)
	}
	return map[string]any{"items": items, "next": next, "total": len(p.Tracks)}
}

func spotifyItem(t FakeTrack) map[string]any {
	if t.NoTrack {
		return map[string]any{"track": nil}
	}
	kind := t.Type
	if kind == "" {
		kind = "track"
	}
	artists := make([]any, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, map[string]any{"name": a})
	}
	return map[string]any{
		"track": map[string]any{
			"id":            nullable(t.ID),
			"name":          t.Name,
			"duration_ms":   t.DurationMs,
			"external_urls": map[string]any{"spotify": "https://open.spotify.com/track/" + t.ID},
			"artists":       artists,
			"is_local":      t.Local,
			"type":          kind,
		},
	}
}

// DeezerCandidate is a search result served by [FakeDeezer].
type DeezerCandidate struct {
	ID           int64
	Title        string
	Artist       string
	Contributors []string
	Preview      string
	Link         string
	Duration     int
	CoverXL      string
	Cover        string
}

// FakeDeezer serves the Deezer search endpoint from a map of query to candidates.
type FakeDeezer struct {
	*httptest.Server

	mu      sync.Mutex
	results map[string][]DeezerCandidate
	delays  map[string]time.Duration
	queries []string

	Status   atomic.Int32
	Searches atomic.Int32
}

// NewFakeDeezer starts a [FakeDeezer] that is closed with the test. Unknown queries return no candidates.
func NewFakeDeezer(t *testing.T) *FakeDeezer {
	t.Helper()

	f := &FakeDeezer{results: map[string][]DeezerCandidate{}, delays: map[string]time.Duration{}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /search", f.handleSearch)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

// SetResults registers the candidates returned for an exact query string.
func (f *FakeDeezer) SetResults(query string, candidates ...DeezerCandidate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[query] = candidates
}

// SetDelay makes searches for query wait before responding.
func (f *FakeDeezer) SetDelay(query string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[query] = d
}

// Queries returns every query received, in arrival order.
func (f *FakeDeezer) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func (f *FakeDeezer) handleSearch(w http.ResponseWriter, r *http.Request) {
	f.Searches.Add(1)
	q := r.URL.Query().Get("q")

	f.mu.Lock()
	f.queries = append(f.queries, q)
	candidates := f.results[q]
	delay := f.delays[q]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if status := f.Status.Load(); status != 0 {
		writeJSON(w, int(status), map[string]any{"error": map[string]any{"code": status}})
		return
	}

	data := make([]any, 0, len(candidates))
	for _, c := range candidates {
		contributors := make([]any, 0, len(c.Contributors))
		for _, name := range c.Contributors {
			contributors = append(contributors, map[string]any{"name": name})
		}
		album := map[string]any{"cover": nullable(c.Cover), "cover_xl": nullable(c.CoverXL)}
		data = append(data, map[string]any{
			"id":           c.ID,
			"title":        c.Title,
			"link":         nullable(c.Link),
			"duration":     c.Duration,
			"preview":      nullable(c.Preview),
			"artist":       map[string]any{"name": c.Artist},
			"contributors": contributors,
			"album":        album,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data, "total": len(data)})
}

// FakeOpenMeteo serves the Open-Meteo forecast endpoint.
type FakeOpenMeteo struct {
	*httptest.Server

	mu      sync.Mutex
	current map[string]any
	last    map[string]string

	Status   atomic.Int32
	Requests atomic.Int32
}

// NewFakeOpenMeteo starts a [FakeOpenMeteo] that is closed with the test.
// A nil current serves a response without a current_weather section.
func NewFakeOpenMeteo(t *testing.T, current map[string]any) *FakeOpenMeteo {
	t.Helper()

	f := &FakeOpenMeteo{current: current}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/forecast", f.handleForecast)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *FakeOpenMeteo) ForecastURL() string { return f.URL + "/v1/forecast" }

// LastQuery returns the query parameters of the most recent request.
func (f *FakeOpenMeteo) LastQuery() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *FakeOpenMeteo) handleForecast(w http.ResponseWriter, r *http.Request) {
	f.Requests.Add(1)

	params := map[string]string{}
	for k := range r.URL.Query() {
		params[k] = r.URL.Query().Get(k)
	}
	f.mu.Lock()
	f.last = params
	current := f.current
	f.mu.Unlock()

	if status := f.Status.Load(); status != 0 {
		writeJSON(w, int(status), map[string]any{"error": true, "reason": "fail"})
		return
	}

	body := map[string]any{"latitude": params["latitude"], "longitude": params["longitude"]}
	if current != nil {
		body["current_weather"] = current
	}
	writeJSON(w, http.StatusOK, body)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

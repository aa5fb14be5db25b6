package tasks

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/deezify/internal/models"
	"github.com/desertthunder/deezify/internal/services"
	"github.com/desertthunder/deezify/internal/shared"
	tu "github.com/desertthunder/deezify/internal/testing"
)

type mockCatalog struct {
	mu        sync.Mutex
	playlists map[string]*models.CatalogPlaylist
	snapshots map[string]*string
	fetchErr  error
	delay     time.Duration
	jitter    time.Duration

	fetches        atomic.Int32
	snapshotChecks atomic.Int32
}

func newMockCatalog(playlists ...*models.CatalogPlaylist) *mockCatalog {
	m := &mockCatalog{playlists: map[string]*models.CatalogPlaylist{}, snapshots: map[string]*string{}}
	for _, p := range playlists {
		m.playlists[p.ID] = p
		m.snapshots[p.ID] = p.SnapshotID
	}
	return m
}

func (m *mockCatalog) setSnapshot(id string, snapshot *string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[id] = snapshot
	if p, ok := m.playlists[id]; ok {
		cp := *p
		cp.SnapshotID = snapshot
		m.playlists[id] = &cp
	}
}

func (m *mockCatalog) FetchSnapshotID(ctx context.Context, id string) (*string, error) {
	m.snapshotChecks.Add(1)
	sleepUpTo(m.jitter)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.playlists[id]; !ok {
		return nil, shared.ErrNotFound
	}
	return m.snapshots[id], nil
}

func (m *mockCatalog) FetchPlaylistData(ctx context.Context, id string) (*models.CatalogPlaylist, error) {
	m.fetches.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	sleepUpTo(m.jitter)
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.playlists[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

// mockMatcher matches tracks whose name has an entry in previews. Earlier indices finish last.
type mockMatcher struct {
	previews map[string]string
	err      error
	reverse  bool
	calls    atomic.Int32
}

func (m *mockMatcher) Match(ctx context.Context, track models.CatalogTrack) (*models.MatchedTrack, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	if m.reverse {
		var n int
		fmt.Sscanf(track.ID, "t%d", &n)
		time.Sleep(time.Duration(10-n) * 3 * time.Millisecond)
	}
	preview, ok := m.previews[track.Name]
	if !ok {
		return nil, nil
	}
	return &models.MatchedTrack{ID: "dz-" + track.ID, Name: track.Name, Artists: track.Artists, PreviewURL: &preview}, nil
}

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]*models.PlaylistEntry
	saveErr error
	jitter  time.Duration
	saves   atomic.Int32
}

func (s *memoryStore) Save(entry *models.PlaylistEntry) error {
	s.saves.Add(1)
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.PlaylistID] = entry
	return nil
}

func (s *memoryStore) GetByPlaylistID(id string) (*models.PlaylistEntry, error) {
	sleepUpTo(s.jitter)
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrNotFound, id)
}

func strPtr(s string) *string { return &s }

func sleepUpTo(d time.Duration) {
	if d > 0 {
		time.Sleep(rand.N(d))
	}
}

func catalogPlaylist(id, snapshot string, n int) *models.CatalogPlaylist {
	p := &models.CatalogPlaylist{ID: id, Name: "Playlist " + id, SnapshotID: strPtr(snapshot), ImageURL: strPtr("https://img/" + id)}
	for i := range n {
		p.Tracks = append(p.Tracks, models.CatalogTrack{ID: fmt.Sprintf("t%d", i), Name: fmt.Sprintf("Song %d", i), Artists: []string{"Artist"}})
	}
	return p
}

func TestPlaylistEngineGet(t *testing.T) {
	t.Run("Configuration Error Without ID", func(t *testing.T) {
		e := NewPlaylistEngine(newMockCatalog(), &mockMatcher{}, Options{})
		defer e.Close()

		_, err := e.Get(context.Background(), "   ")
		if !errors.Is(err, shared.ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})

	t.Run("Uses Default ID", func(t *testing.T) {
		catalog := newMockCatalog(catalogPlaylist("default", "S1", 1))
		e := NewPlaylistEngine(catalog, &mockMatcher{}, Options{DefaultPlaylistID: "default"})
		defer e.Close()

		got, err := e.Get(context.Background(), "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.ID != "default" {
			t.Errorf("expected default playlist, got %s", got.ID)
		}
	})

	t.Run("Idempotent Hit", func(t *testing.T) {
		catalog := newMockCatalog(catalogPlaylist("p", "S1", 3))
		e := NewPlaylistEngine(catalog, &mockMatcher{}, Options{})
		defer e.Close()

		first, err := e.Get(context.Background(), "p")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := e.Get(context.Background(), "p")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if catalog.fetches.Load() != 1 {
			t.Errorf("expected 1 full fetch, got %d", catalog.fetches.Load())
		}
		if catalog.snapshotChecks.Load() != 1 {
			t.Errorf("expected 1 snapshot check, got %d", catalog.snapshotChecks.Load())
		}
		if first != second {
			t.Error("expected the cached playlist to be returned unchanged")
		}
	})

	t.Run("Snapshot Driven Invalidation", func(t *testing.T) {
		catalog := newMockCatalog(catalogPlaylist("p", "A", 2))
		e := NewPlaylistEngine(catalog, &mockMatcher{}, Options{})
		defer e.Close()

		first, _ := e.Get(context.Background(), "p")

		catalog.setSnapshot("p", strPtr("B"))
		second, err := e.Get(context.Background(), "p")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if catalog.fetches.Load() != 2 {
			t.Errorf("expected recompute on snapshot change, got %d fetches", catalog.fetches.Load())
		}
		if first == second {
			t.Error("expected a new playlist after recompute")
		}

		third, _ := e.Get(context.Background(), "p")
		if catalog.fetches.Load() != 2 {
			t.Errorf("expected no recompute for unchanged snapshot, got %d fetches", catalog.fetches.Load())
		}
		if third != second {
			t.Error("expected identical cached playlist")
		}
		entry, ok := e.cached("p")
		if !ok || entry.SnapshotID == nil || *entry.SnapshotID != "B" {
			t.Errorf("expected cached snapshot B, got %+v", entry)
		}
	})

	t.Run("Null Snapshot Transitions", func(t *testing.T) {
		catalog := newMockCatalog(catalogPlaylist("p", "A", 1))
		e := NewPlaylistEngine(catalog, &mockMatcher{}, Options{})
		defer e.Close()

		_, _ = e.Get(context.Background(), "p")
		catalog.setSnapshot("p", nil)
		_, _ = e.Get(context.Background(), "p")
		if catalog.fetches.Load() != 2 {
			t.Errorf("expected recompute when snapshot becomes null, got %d", catalog.fetches.Load())
		}

		_, _ = e.Get(context.Background(), "p")
		if catalog.fetches.Load() != 2 {
			t.Errorf("expected null to equal null, got %d", catalog.fetches.Load())
		}

		catalog.setSnapshot("p", strPtr("C"))
		_, _ = e.Get(context.Background(), "p")
		if catalog.fetches.Load() != 3 {
			t.Errorf("expected recompute when snapshot appears, got %d", catalog.fetches.Load())
		}
	})

	t.Run("Coalescing", func(t *testing.T) {
		catalog := newMockCatalog(catalogPlaylist("abc123", "S1", 2))
		catalog.delay = 50 * time.Millisecond
		e := NewPlaylistEngine(catalog, &mockMatcher{}, Options{})
		defer e.Close()

		var wg sync.WaitGroup
		results := make([]*models.DerivedPlaylist, 10)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p, err := e.Get(context.Background(), "abc123")
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				results[i] = p
			}()
		}
		wg.Wait()

		if catalog.fetches.Load() != 1 {
			t.Errorf("expected 1 derivation, got %d", catalog.fetches.Load())
		}
		for i, p := range results {
			if p != results[0] {
				t.Errorf("caller %d got a different playlist", i)
			}
		}
	})

	t.Run("Errors Are Not Cached", func(t *testing.T) {
		catalog := newMockCatalog(catalogPlaylist("p", "S1", 1))
		catalog.fetchErr = shared.ErrUpstreamUnavailable
		e := NewPlaylistEngine(catalog, &mockMatcher{}, Options{})
		defer e.Close()

		if _, err := e.Get(context.Background(), "p"); !errors.Is(err, shared.ErrUpstreamUnavailable) {
			t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
		}

		catalog.fetchErr = nil
		if _, err := e.Get(context.Background(), "p"); err != nil {
			t.Errorf("expected retry to succeed, got %v", err)
		}
		if catalog.snapshotChecks.Load() != 0 {
			t.Errorf("expected no snapshot check after a failed first derivation, got %d", catalog.snapshotChecks.Load())
		}
	})

	t.Run("Match Failure Fails Derivation", func(t *testing.T) {
		catalog := newMockCatalog(catalogPlaylist("p", "S1", 3))
		e := NewPlaylistEngine(catalog, &mockMatcher{err: shared.ErrUpstreamRejected}, Options{})
		defer e.Close()

		_, err := e.Get(context.Background(), "p")
		if !errors.Is(err, shared.ErrUpstreamRejected) {
			t.Errorf("expected ErrUpstreamRejected, got %v", err)
		}
		if _, ok := e.cached("p"); ok {
			t.Error("expected nothing cached")
		}
	})

	t.Run("Snapshot Probe Failure", func(t *testing.T) {
		catalog := newMockCatalog(catalogPlaylist("p", "S1", 1))
		e := NewPlaylistEngine(catalog, &mockMatcher{}, Options{})
		defer e.Close()

		_, _ = e.Get(context.Background(), "p")
		catalog.mu.Lock()
		delete(catalog.playlists, "p")
		catalog.mu.Unlock()

		if _, err := e.Get(context.Background(), "p"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestPlaylistEngineDerive(t *testing.T) {
	t.Run("Order Preservation", func(t *testing.T) {
		p := catalogPlaylist("p", "S1", 8)
		previews := map[string]string{}
		for _, tr := range p.Tracks {
			previews[tr.Name] = "https://cdn/" + tr.ID
		}
		e := NewPlaylistEngine(newMockCatalog(p), &mockMatcher{previews: previews, reverse: true}, Options{Concurrency: 8})
		defer e.Close()

		got, err := e.Get(context.Background(), "p")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i, tr := range got.Tracks {
			if tr.ID != "dz-"+p.Tracks[i].ID {
				t.Errorf("index %d: expected dz-%s, got %s", i, p.Tracks[i].ID, tr.ID)
			}
		}
	})

	t.Run("Fallback Synthesis", func(t *testing.T) {
		p := catalogPlaylist("p", "S1", 3)
		p.Tracks[1].DurationMs = func() *int { v := 1234; return &v }()
		matcher := &mockMatcher{previews: map[string]string{"Song 0": "a", "Song 2": "c"}}
		e := NewPlaylistEngine(newMockCatalog(p), matcher, Options{})
		defer e.Close()

		got, err := e.Get(context.Background(), "p")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		fb := got.Tracks[1]
		if fb.ID != "primary:t1" {
			t.Errorf("expected primary:t1, got %s", fb.ID)
		}
		if fb.PreviewURL != nil {
			t.Errorf("expected nil preview, got %s", *fb.PreviewURL)
		}
		if fb.ImageURL == nil || *fb.ImageURL != "https://img/p" {
			t.Errorf("expected playlist image, got %v", fb.ImageURL)
		}
		if fb.DurationMs == nil || *fb.DurationMs != 1234 {
			t.Errorf("expected original duration, got %v", fb.DurationMs)
		}
		if !fb.IsFallback() || got.Tracks[0].IsFallback() {
			t.Error("unexpected fallback flags")
		}
	})

	t.Run("Total Tracks Invariant", func(t *testing.T) {
		for _, n := range []int{0, 1, 7, 30} {
			p := catalogPlaylist(fmt.Sprintf("p%d", n), "S", n)
			e := NewPlaylistEngine(newMockCatalog(p), &mockMatcher{}, Options{})

			got, err := e.Get(context.Background(), p.ID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.TotalTracks != len(got.Tracks) || got.TotalTracks != n {
				t.Errorf("n=%d: totalTracks %d, len %d", n, got.TotalTracks, len(got.Tracks))
			}
			e.Close()
		}
	})

	t.Run("External URL Default", func(t *testing.T) {
		p := catalogPlaylist("xyz", "S", 0)
		e := NewPlaylistEngine(newMockCatalog(p), &mockMatcher{}, Options{})
		defer e.Close()

		got, _ := e.Get(context.Background(), "xyz")
		if got.ExternalURL != "https://open.spotify.com/playlist/xyz" {
			t.Errorf("unexpected external url: %s", got.ExternalURL)
		}
	})

	t.Run("Progress Updates", func(t *testing.T) {
		p := catalogPlaylist("p", "S", 3)
		e := NewPlaylistEngine(newMockCatalog(p), &mockMatcher{previews: map[string]string{"Song 1": "x"}}, Options{})
		defer e.Close()

		progress := make(chan ProgressUpdate, 16)
		entry, err := e.Derive(context.Background(), "p", progress)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		close(progress)

		phases := map[Phase]int{}
		for u := range progress {
			phases[u.Phase]++
		}
		if phases[FetchPlaylist] != 2 || phases[MatchTracks] != 3 || phases[Assemble] != 1 {
			t.Errorf("unexpected phase counts: %v", phases)
		}
		if cached, ok := e.cached("p"); !ok || cached != entry {
			t.Error("expected Derive to replace the cached entry")
		}
	})

	t.Run("Progress Never Blocks", func(t *testing.T) {
		p := catalogPlaylist("p", "S", 5)
		e := NewPlaylistEngine(newMockCatalog(p), &mockMatcher{}, Options{})
		defer e.Close()

		progress := make(chan ProgressUpdate)
		if _, err := e.Derive(context.Background(), "p", progress); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestPlaylistEngineStore(t *testing.T) {
	t.Run("Write Through", func(t *testing.T) {
		store := &memoryStore{entries: map[string]*models.PlaylistEntry{}}
		e := NewPlaylistEngine(newMockCatalog(catalogPlaylist("p", "S1", 2)), &mockMatcher{}, Options{Store: store})
		defer e.Close()

		if _, err := e.Get(context.Background(), "p"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if store.saves.Load() != 1 {
			t.Errorf("expected 1 save, got %d", store.saves.Load())
		}
	})

	t.Run("Warm Start Probes Snapshot", func(t *testing.T) {
		store := &memoryStore{entries: map[string]*models.PlaylistEntry{}}
		catalog := newMockCatalog(catalogPlaylist("p", "S1", 2))

		first := NewPlaylistEngine(catalog, &mockMatcher{}, Options{Store: store})
		_, _ = first.Get(context.Background(), "p")
		first.Close()

		second := NewPlaylistEngine(catalog, &mockMatcher{}, Options{Store: store})
		defer second.Close()
		if _, err := second.Get(context.Background(), "p"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if catalog.fetches.Load() != 1 {
			t.Errorf("expected seeded entry to avoid a derivation, got %d fetches", catalog.fetches.Load())
		}
		if catalog.snapshotChecks.Load() != 1 {
			t.Errorf("expected 1 snapshot check, got %d", catalog.snapshotChecks.Load())
		}
	})

	t.Run("Stale Stored Entry Is Recomputed", func(t *testing.T) {
		store := &memoryStore{entries: map[string]*models.PlaylistEntry{}}
		catalog := newMockCatalog(catalogPlaylist("p", "S1", 2))

		first := NewPlaylistEngine(catalog, &mockMatcher{}, Options{Store: store})
		_, _ = first.Get(context.Background(), "p")
		first.Close()

		catalog.setSnapshot("p", strPtr("S2"))
		second := NewPlaylistEngine(catalog, &mockMatcher{}, Options{Store: store})
		defer second.Close()
		_, _ = second.Get(context.Background(), "p")

		if catalog.fetches.Load() != 2 {
			t.Errorf("expected recompute, got %d fetches", catalog.fetches.Load())
		}
		if s := store.entries["p"].SnapshotID; s == nil || *s != "S2" {
			t.Errorf("expected stored snapshot S2, got %v", s)
		}
	})

	t.Run("Concurrent Callers Skip Stale Stored Entry", func(t *testing.T) {
		const callers, rounds = 40, 20

		for round := range rounds {
			stale := &models.PlaylistEntry{
				PlaylistID: "p",
				SnapshotID: strPtr("S1"),
				Playlist:   &models.DerivedPlaylist{ID: "p", Name: "OLD", Tracks: []models.MatchedTrack{}},
			}
			store := &memoryStore{entries: map[string]*models.PlaylistEntry{"p": stale}, jitter: 3 * time.Millisecond}
			catalog := newMockCatalog(catalogPlaylist("p", "S2", 2))
			catalog.jitter = 3 * time.Millisecond
			e := NewPlaylistEngine(catalog, &mockMatcher{}, Options{Store: store})

			var wg sync.WaitGroup
			names := make([]string, callers)
			for i := range callers {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					playlist, err := e.Get(context.Background(), "p")
					if err != nil {
						t.Errorf("round %d caller %d: unexpected error: %v", round, i, err)
						return
					}
					names[i] = playlist.Name
				}(i)
			}
			wg.Wait()
			e.Close()

			for i, name := range names {
				if name == "OLD" {
					t.Fatalf("round %d caller %d got the stored entry for a superseded snapshot", round, i)
				}
			}
			if catalog.fetches.Load() != 1 {
				t.Errorf("round %d: expected 1 derivation, got %d", round, catalog.fetches.Load())
			}
		}
	})

	t.Run("Snapshot Change Replaces Warm Started Entry", func(t *testing.T) {
		store := &memoryStore{entries: map[string]*models.PlaylistEntry{}}
		catalog := newMockCatalog(catalogPlaylist("p", "S1", 2))

		first := NewPlaylistEngine(catalog, &mockMatcher{}, Options{Store: store})
		_, _ = first.Get(context.Background(), "p")
		first.Close()

		second := NewPlaylistEngine(catalog, &mockMatcher{}, Options{Store: store})
		defer second.Close()
		if _, err := second.Get(context.Background(), "p"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		catalog.setSnapshot("p", strPtr("S2"))
		catalog.jitter = 2 * time.Millisecond
		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := second.Get(context.Background(), "p"); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		entry, ok := second.cached("p")
		if !ok || models.Deref(entry.SnapshotID) != "S2" {
			t.Errorf("expected cached snapshot S2, got %+v", entry)
		}
		if s := store.entries["p"].SnapshotID; s == nil || *s != "S2" {
			t.Errorf("expected stored snapshot S2, got %v", s)
		}
	})

	t.Run("Store Errors Are Ignored", func(t *testing.T) {
		store := &memoryStore{entries: map[string]*models.PlaylistEntry{}, saveErr: errors.New("disk full")}
		e := NewPlaylistEngine(newMockCatalog(catalogPlaylist("p", "S1", 1)), &mockMatcher{}, Options{Store: store})
		defer e.Close()

		if _, err := e.Get(context.Background(), "p"); err != nil {
			t.Errorf("expected store failure to be ignored, got %v", err)
		}
	})
}

func TestPlaylistEngineEndToEnd(t *testing.T) {
	spotify := tu.NewFakeSpotify(t, &tu.FakePlaylist{
		ID:       "abc123",
		Name:     "Scenario",
		Snapshot: "S1",
		ImageURL: "https://img/abc123",
		Tracks: []tu.FakeTrack{
			{ID: "sa", Name: "Song A", Artists: []string{"Artist X"}, DurationMs: 200000},
			{ID: "sb", Name: "Song B", DurationMs: 180000},
		},
	})
	deezer := tu.NewFakeDeezer(t)
	deezer.SetResults(`artist:"Artist X" track:"Song A"`, tu.DeezerCandidate{
		ID: 3135556, Title: "Song A", Artist: "Artist X", Preview: "https://cdn/song-a.mp3", Duration: 200,
	})

	catalog := services.NewSpotifyService(services.SpotifyOptions{
		ClientID:     tu.FakeClientID,
		ClientSecret: tu.FakeClientSecret,
		TokenURL:     spotify.TokenURL(),
		BaseURL:      spotify.BaseURL(),
	})
	defer catalog.Close()
	matcher := services.NewDeezerService(services.DeezerOptions{BaseURL: deezer.URL})
	defer matcher.Close()

	e := NewPlaylistEngine(catalog, matcher, Options{DefaultPlaylistID: "abc123"})
	defer e.Close()

	got, err := e.Get(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.TotalTracks != 2 || len(got.Tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d/%d", got.TotalTracks, len(got.Tracks))
	}
	if got.Tracks[0].PreviewURL == nil || *got.Tracks[0].PreviewURL != "https://cdn/song-a.mp3" {
		t.Errorf("expected matched preview, got %v", got.Tracks[0].PreviewURL)
	}
	if got.Tracks[0].ID != "3135556" {
		t.Errorf("expected deezer id, got %s", got.Tracks[0].ID)
	}
	if got.Tracks[1].ID != "primary:sb" || got.Tracks[1].PreviewURL != nil {
		t.Errorf("expected fallback for Song B, got %+v", got.Tracks[1])
	}
	if got.ExternalURL != "https://open.spotify.com/playlist/abc123" {
		t.Errorf("unexpected external url: %s", got.ExternalURL)
	}

	if _, err := e.Get(context.Background(), "abc123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spotify.PlaylistRequests.Load() != 1 || spotify.SnapshotRequests.Load() != 1 {
		t.Errorf("expected 1 fetch and 1 snapshot probe, got %d and %d",
			spotify.PlaylistRequests.Load(), spotify.SnapshotRequests.Load())
	}
	if spotify.TokenRequests.Load() != 1 {
		t.Errorf("expected a single token request, got %d", spotify.TokenRequests.Load())
	}
	if deezer.Searches.Load() != 2 {
		t.Errorf("expected 2 searches, got %d", deezer.Searches.Load())
	}

	spotify.SetSnapshot("abc123", "S2")
	if _, err := e.Get(context.Background(), "abc123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spotify.PlaylistRequests.Load() != 2 {
		t.Errorf("expected recompute after snapshot change, got %d fetches", spotify.PlaylistRequests.Load())
	}
	if deezer.Searches.Load() != 2 {
		t.Errorf("expected match cache hits on recompute, got %d searches", deezer.Searches.Load())
	}
}

// package tasks implements the derived playlist cache and the derivation pipeline behind it.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/deezify/internal/cache"
	"github.com/desertthunder/deezify/internal/metrics"
	"github.com/desertthunder/deezify/internal/models"
	"github.com/desertthunder/deezify/internal/shared"
)

const (
	DefaultCapacity    = 4
	DefaultConcurrency = 6

	playlistURLPrefix = "https://open.spotify.com/playlist/"
)

// Catalog is the primary provider: snapshot probe and full playlist fetch.
type Catalog interface {
	FetchSnapshotID(ctx context.Context, playlistID string) (*string, error)
	FetchPlaylistData(ctx context.Context, playlistID string) (*models.CatalogPlaylist, error)
}

// Matcher finds a preview-bearing match for a catalog track. A nil result means no match.
type Matcher interface {
	Match(ctx context.Context, track models.CatalogTrack) (*models.MatchedTrack, error)
}

// EntryStore persists derived entries across restarts (repositories.PlaylistEntryRepository).
//
// GetByPlaylistID returns an error wrapping [shared.ErrNotFound] when nothing is stored.
type EntryStore interface {
	Save(entry *models.PlaylistEntry) error
	GetByPlaylistID(playlistID string) (*models.PlaylistEntry, error)
}

// Options configures a [PlaylistEngine].
type Options struct {
	DefaultPlaylistID string
	Capacity          int64
	Concurrency       int
	Store             EntryStore // Optional
	Logger            *log.Logger
}

// PlaylistEngine is the derived playlist cache. It is safe for concurrent use.
type PlaylistEngine struct {
	catalog     Catalog
	matcher     Matcher
	store       EntryStore
	entries     *cache.Cache[*models.PlaylistEntry]
	defaultID   string
	concurrency int
	logger      *log.Logger

	// ids whose next derivation was caused by a snapshot change
	stale sync.Map
}

// NewPlaylistEngine creates a new PlaylistEngine with the provided catalog and matcher.
func NewPlaylistEngine(catalog Catalog, matcher Matcher, opts Options) *PlaylistEngine {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = shared.NopLogger()
	}

	e := &PlaylistEngine{
		catalog:     catalog,
		matcher:     matcher,
		store:       opts.Store,
		defaultID:   strings.TrimSpace(opts.DefaultPlaylistID),
		concurrency: opts.Concurrency,
		logger:      shared.WithLogger(opts.Logger, "component", "playlist"),
	}
	e.entries = cache.New(cache.Options{
		Name:     "derived_playlist",
		Capacity: opts.Capacity,
		TTL:      cache.Forever,
		Logger:   opts.Logger,
	}, e.lookup)
	return e
}

// Close stops the entry cache.
func (e *PlaylistEngine) Close() { e.entries.Close() }

// ResolveID trims id and falls back to the configured default.
func (e *PlaylistEngine) ResolveID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = e.defaultID
	}
	if id == "" {
		return "", fmt.Errorf("%w: no playlist id given and no default playlist configured", shared.ErrConfiguration)
	}
	return id, nil
}

// Get returns the derived playlist for id (or the default playlist when id is blank).
//
// A cached entry is only returned after the upstream snapshot id has been confirmed unchanged.
func (e *PlaylistEngine) Get(ctx context.Context, id string) (*models.DerivedPlaylist, error) {
	id, err := e.ResolveID(id)
	if err != nil {
		return nil, err
	}

	entry, ok := e.entries.GetIfPresent(id)
	if !ok {
		entry, err = e.entries.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return entry.Playlist, nil
	}

	latest, err := e.catalog.FetchSnapshotID(ctx, id)
	if err != nil {
		return nil, err
	}
	if models.SameSnapshot(latest, entry.SnapshotID) {
		e.logger.Debug("snapshot unchanged", "playlist", id, "snapshot", models.Deref(latest))
		return entry.Playlist, nil
	}

	e.logger.Info("snapshot changed", "playlist", id, "cached", models.Deref(entry.SnapshotID), "latest", models.Deref(latest))
	return e.refresh(ctx, id, entry.SnapshotID)
}

// refresh drops the entry built from snapshot old and waits for its replacement.
//
// A flight that started before the change may still store an entry for old after the invalidation,
// so such a result is dropped once more and recomputed.
func (e *PlaylistEngine) refresh(ctx context.Context, id string, old *string) (*models.DerivedPlaylist, error) {
	var entry *models.PlaylistEntry
	for range 2 {
		e.stale.Store(id, struct{}{})
		e.entries.Invalidate(id)

		var err error
		entry, err = e.entries.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !models.SameSnapshot(entry.SnapshotID, old) {
			break
		}
	}
	return entry.Playlist, nil
}

// cached returns the in-memory entry for id without contacting any upstream.
func (e *PlaylistEngine) cached(id string) (*models.PlaylistEntry, bool) {
	return e.entries.GetIfPresent(id)
}

// stored loads a persisted entry for id. It runs inside the cache lookup so that a stored entry
// is only ever cached by the flight that owns the key.
func (e *PlaylistEngine) stored(id string) (*models.PlaylistEntry, bool) {
	if e.store == nil {
		return nil, false
	}

	entry, err := e.store.GetByPlaylistID(id)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			e.logger.Warn("failed to load stored entry", "playlist", id, "error", err)
		}
		return nil, false
	}
	if err := entry.Validate(); err != nil {
		e.logger.Warn("ignoring invalid stored entry", "playlist", id, "error", err)
		return nil, false
	}
	return entry, true
}

// lookup fills a cache miss. A stored entry is reused when its snapshot is still current;
// ids marked stale always recompute.
func (e *PlaylistEngine) lookup(ctx context.Context, id string) (*models.PlaylistEntry, error) {
	reason := "miss"
	if _, ok := e.stale.LoadAndDelete(id); ok {
		reason = "snapshot_changed"
	} else if entry, ok := e.stored(id); ok {
		latest, err := e.catalog.FetchSnapshotID(ctx, id)
		if err != nil {
			return nil, err
		}
		if models.SameSnapshot(latest, entry.SnapshotID) {
			e.logger.Debug("warm start from store", "playlist", id, "snapshot", models.Deref(latest))
			return entry, nil
		}
		e.logger.Info("stored snapshot changed", "playlist", id, "stored", models.Deref(entry.SnapshotID), "latest", models.Deref(latest))
		reason = "snapshot_changed"
	}
	metrics.PlaylistRecomputes.WithLabelValues(reason).Inc()

	return e.derive(ctx, id, nil)
}

// Derive runs a full derivation for id, bypassing the snapshot check, and replaces the cached entry.
func (e *PlaylistEngine) Derive(ctx context.Context, id string, progress chan<- ProgressUpdate) (*models.PlaylistEntry, error) {
	id, err := e.ResolveID(id)
	if err != nil {
		return nil, err
	}

	metrics.PlaylistRecomputes.WithLabelValues("forced").Inc()
	entry, err := e.derive(ctx, id, progress)
	if err != nil {
		return nil, err
	}
	e.entries.Set(id, entry)
	return entry, nil
}

func (e *PlaylistEngine) derive(ctx context.Context, id string, progress chan<- ProgressUpdate) (*models.PlaylistEntry, error) {
	start := time.Now()

	e.sendProgress(progress, fetchingPlaylistUpdate(id))
	catalog, err := e.catalog.FetchPlaylistData(ctx, id)
	if err != nil {
		return nil, err
	}
	e.sendProgress(progress, foundPlaylistUpdate(catalog))

	matches, err := e.matchTracks(ctx, catalog.Tracks, progress)
	if err != nil {
		return nil, err
	}

	playlist, matched := assemble(id, catalog, matches)
	e.sendProgress(progress, assembledUpdate(playlist, matched))

	now := time.Now()
	entry := &models.PlaylistEntry{
		PlaylistID: id,
		SnapshotID: catalog.SnapshotID,
		Playlist:   playlist,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	e.logger.Info("derived playlist",
		"playlist", id,
		"snapshot", models.Deref(entry.SnapshotID),
		"tracks", playlist.TotalTracks,
		"matched", matched,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	if e.store != nil {
		if err := e.store.Save(entry); err != nil {
			e.logger.Warn("failed to persist entry", "playlist", id, "error", err)
		}
	}
	return entry, nil
}

// matchTracks resolves every track with at most e.concurrency lookups in flight.
// results[i] always belongs to tracks[i].
func (e *PlaylistEngine) matchTracks(ctx context.Context, tracks []models.CatalogTrack, progress chan<- ProgressUpdate) ([]*models.MatchedTrack, error) {
	results := make([]*models.MatchedTrack, len(tracks))
	total := len(tracks)
	var done atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, track := range tracks {
		g.Go(func() error {
			m, err := e.matcher.Match(gctx, track)
			if err != nil {
				return fmt.Errorf("match %q: %w", track.Name, err)
			}
			results[i] = m
			e.sendProgress(progress, matchTrackUpdate(int(done.Add(1)), total, track, m != nil))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// assemble builds the derived playlist, synthesizing a fallback for every unmatched index.
func assemble(id string, catalog *models.CatalogPlaylist, matches []*models.MatchedTrack) (*models.DerivedPlaylist, int) {
	tracks := make([]models.MatchedTrack, len(catalog.Tracks))
	matched := 0
	for i, track := range catalog.Tracks {
		if m := matches[i]; m != nil {
			tracks[i] = *m
			matched++
			continue
		}
		tracks[i] = models.FallbackTrack(track, catalog.ImageURL)
	}

	externalURL := models.Deref(catalog.ExternalURL)
	if externalURL == "" {
		externalURL = playlistURLPrefix + url.PathEscape(id)
	}

	return &models.DerivedPlaylist{
		ID:          catalog.ID,
		Name:        catalog.Name,
		Description: catalog.Description,
		ExternalURL: externalURL,
		ImageURL:    catalog.ImageURL,
		CuratorName: catalog.OwnerName,
		TotalTracks: len(tracks),
		Tracks:      tracks,
	}, matched
}

// sendProgress sends a progress update through the channel without blocking.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

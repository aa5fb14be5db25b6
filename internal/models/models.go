// package models defines the data model for the derived playlist and weather services
package models

import (
	"fmt"
	"strings"
	"time"
)

// FallbackIDPrefix marks a [MatchedTrack] synthesized from a catalog track that had no Deezer match.
const FallbackIDPrefix = "primary:"

// CatalogTrack is a playable track extracted from a Spotify playlist page.
type CatalogTrack struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Artists     []string `json:"artists"`
	ExternalURL *string  `json:"externalUrl"`
	DurationMs  *int     `json:"durationMs"`
}

// CatalogPlaylist is one complete fetch of playlist metadata plus every page of tracks.
type CatalogPlaylist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description *string        `json:"description"`
	ExternalURL *string        `json:"externalUrl"`
	ImageURL    *string        `json:"imageUrl"`
	OwnerName   *string        `json:"ownerName"`
	SnapshotID  *string        `json:"snapshotId"`
	Tracks      []CatalogTrack `json:"tracks"`
}

// MatchedTrack is the per-track payload served to the UI (a Deezer match or a fallback).
type MatchedTrack struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Artists     []string `json:"artists"`
	ExternalURL *string  `json:"externalUrl"`
	PreviewURL  *string  `json:"previewUrl"`
	DurationMs  *int     `json:"durationMs"`
	ImageURL    *string  `json:"imageUrl"`
}

// IsFallback reports whether the track was synthesized because no match was found.
func (t MatchedTrack) IsFallback() bool {
	return strings.HasPrefix(t.ID, FallbackIDPrefix)
}

// FallbackTrack synthesizes a [MatchedTrack] for a catalog track without a match.
func FallbackTrack(track CatalogTrack, imageURL *string) MatchedTrack {
	return MatchedTrack{
		ID:          FallbackIDPrefix + track.ID,
		Name:        track.Name,
		Artists:     track.Artists,
		ExternalURL: track.ExternalURL,
		PreviewURL:  nil,
		DurationMs:  track.DurationMs,
		ImageURL:    imageURL,
	}
}

// DerivedPlaylist is the catalog playlist with one [MatchedTrack] per catalog track.
//
// TotalTracks always equals len(Tracks).
type DerivedPlaylist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description *string        `json:"description"`
	ExternalURL string         `json:"externalUrl"`
	ImageURL    *string        `json:"imageUrl"`
	CuratorName *string        `json:"curatorName"`
	TotalTracks int            `json:"totalTracks"`
	Tracks      []MatchedTrack `json:"tracks"`
}

// PlaylistEntry is the cached unit: a derived playlist and the snapshot id it was computed from.
type PlaylistEntry struct {
	ID         string           `json:"-"`
	PlaylistID string           `json:"playlistId"`
	SnapshotID *string          `json:"snapshotId"`
	Playlist   *DerivedPlaylist `json:"playlist"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// Validate checks the invariants a stored entry must satisfy.
func (e *PlaylistEntry) Validate() error {
	if e.PlaylistID == "" {
		return fmt.Errorf("playlist entry: playlist id is required")
	}
	if e.Playlist == nil {
		return fmt.Errorf("playlist entry: playlist is required")
	}
	if e.Playlist.TotalTracks != len(e.Playlist.Tracks) {
		return fmt.Errorf("playlist entry: totalTracks %d != %d tracks", e.Playlist.TotalTracks, len(e.Playlist.Tracks))
	}
	return nil
}

// SameSnapshot compares two optional snapshot ids; nil only equals nil.
func SameSnapshot(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// StringPtr returns nil for the empty string, else a pointer to s.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

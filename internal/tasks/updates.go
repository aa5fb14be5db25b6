package tasks

import (
	"fmt"

	"github.com/desertthunder/deezify/internal/models"
)

// ProgressUpdate represents a progress event during a derivation.
//
// Used to send real-time updates to the CLI or server logs.
type ProgressUpdate struct {
	Phase   Phase  // Derivation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Derivation phase enumeration
type Phase int

const (
	FetchPlaylist Phase = iota
	MatchTracks
	Assemble
)

func (p Phase) String() string {
	switch p {
	case FetchPlaylist:
		return "fetch_playlist"
	case MatchTracks:
		return "match_tracks"
	case Assemble:
		return "assemble"
	default:
		return ""
	}
}

func fetchingPlaylistUpdate(id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylist,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Fetching playlist %s from Spotify...", id),
	}
}

func foundPlaylistUpdate(p *models.CatalogPlaylist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks)", p.Name, len(p.Tracks)),
		Data:    p,
	}
}

func matchTrackUpdate(step, total int, track models.CatalogTrack, matched bool) ProgressUpdate {
	mark := "✓"
	if !matched {
		mark = "✗"
	}
	artist := ""
	if len(track.Artists) > 0 {
		artist = track.Artists[0] + " - "
	}
	return ProgressUpdate{
		Phase:   MatchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s%s", step, total, mark, artist, track.Name),
	}
}

func assembledUpdate(p *models.DerivedPlaylist, matched int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Assemble,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Derived %s: %d/%d tracks with previews", p.Name, matched, p.TotalTracks),
		Data:    p,
	}
}

// Package tasks derives the served playlist from Spotify and Deezer and keeps it fresh.
//
// # Derived Playlist Cache
//
// [PlaylistEngine.Get] holds one [models.PlaylistEntry] per playlist id. Entries never expire by time:
//
//  1. No entry: derive the playlist, store the entry, return it.
//  2. Entry present: probe the playlist's snapshot id. If it differs from the entry's (nil only equals nil),
//     the entry is invalidated and derived again; otherwise the cached playlist is returned as is.
//
// Concurrent misses for one id share a single derivation.
//
// # Derivation
//
// [PlaylistEngine.Derive] fetches the full catalog playlist, matches every track through a [Matcher] with
// bounded concurrency, and assembles a [models.DerivedPlaylist] whose tracks line up 1:1 with the catalog
// tracks by index. Unmatched tracks get a fallback with id "primary:<track id>" and no preview.
//
// # Progress Reporting
//
// Derive accepts an optional channel of [ProgressUpdate]. Sends never block; updates are dropped when the
// channel is full.
//
// # Warm Start
//
// The optional [EntryStore] receives every derived entry. A memory miss first loads the stored entry inside the
// coalesced lookup and reuses it when the snapshot probe still matches, so a restart costs one probe per
// playlist instead of a full derivation. Ids whose snapshot was just seen to change skip the store. Store errors
// are logged and ignored.
package tasks

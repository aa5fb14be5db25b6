// Package repositories implements SQLite persistence for derived playlist entries.
//
// [PlaylistEntryRepository] keeps one row per playlist id in the playlist_entries table: the snapshot id the
// entry was derived from and the derived playlist as a JSON payload. Rows are upserted on every derivation
// and read back to warm the in-memory cache after a restart.
//
// Lookups that find nothing return errors wrapping [shared.ErrNotFound].
package repositories

// package repositories provides the SQLite persistence layer for derived playlist entries.
package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/desertthunder/deezify/internal/models"
	"github.com/desertthunder/deezify/internal/shared"
)

const entryColumns = `id, playlist_id, snapshot_id, payload, created_at, updated_at`

// PlaylistEntryRepository stores one [models.PlaylistEntry] per playlist id.
type PlaylistEntryRepository struct {
	db *sql.DB
}

// NewPlaylistEntryRepository creates a new PlaylistEntryRepository with the given database connection
func NewPlaylistEntryRepository(db *sql.DB) *PlaylistEntryRepository {
	return &PlaylistEntryRepository{db: db}
}

// Save inserts the entry or replaces the stored entry for the same playlist id.
//
// The entry's ID is set from the stored row; an existing row keeps its id and created_at.
func (r *PlaylistEntryRepository) Save(entry *models.PlaylistEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	payload, err := json.Marshal(entry.Playlist)
	if err != nil {
		return fmt.Errorf("failed to encode playlist: %w", err)
	}

	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	id := entry.ID
	if id == "" {
		id = shared.GenerateID()
	}

	query := `
		INSERT INTO playlist_entries (id, playlist_id, snapshot_id, payload, total_tracks, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (playlist_id) DO UPDATE SET
			snapshot_id = excluded.snapshot_id,
			payload = excluded.payload,
			total_tracks = excluded.total_tracks,
			updated_at = excluded.updated_at
		RETURNING id
	`

	err = r.db.QueryRow(query,
		id,
		entry.PlaylistID,
		nullString(entry.SnapshotID),
		string(payload),
		entry.Playlist.TotalTracks,
		entry.CreatedAt.UTC(),
		now,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to save playlist entry: %w", err)
	}

	entry.ID = id
	return nil
}

// GetByPlaylistID retrieves the entry for a playlist id.
func (r *PlaylistEntryRepository) GetByPlaylistID(playlistID string) (*models.PlaylistEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM playlist_entries WHERE playlist_id = ?`
	return r.scan(r.db.QueryRow(query, playlistID))
}

// List retrieves every stored entry, most recently updated first.
func (r *PlaylistEntryRepository) List() ([]*models.PlaylistEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM playlist_entries ORDER BY updated_at DESC, playlist_id ASC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.PlaylistEntry
	for rows.Next() {
		entry, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

// Delete removes the entry for a playlist id.
func (r *PlaylistEntryRepository) Delete(playlistID string) error {
	result, err := r.db.Exec(`DELETE FROM playlist_entries WHERE playlist_id = ?`, playlistID)
	if err != nil {
		return fmt.Errorf("failed to delete playlist entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: playlist entry %s", shared.ErrNotFound, playlistID)
	}

	return nil
}

// Clear removes every entry and returns how many were removed.
func (r *PlaylistEntryRepository) Clear() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM playlist_entries`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear playlist entries: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

// scan reads one row into a [models.PlaylistEntry]
func (r *PlaylistEntryRepository) scan(row scanner) (*models.PlaylistEntry, error) {
	var (
		id         string
		playlistID string
		snapshotID sql.NullString
		payload    string
		createdAt  time.Time
		updatedAt  time.Time
	)

	err := row.Scan(&id, &playlistID, &snapshotID, &payload, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: playlist entry", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist entry: %w", err)
	}

	var playlist models.DerivedPlaylist
	if err := json.Unmarshal([]byte(payload), &playlist); err != nil {
		return nil, fmt.Errorf("failed to decode playlist %s: %w", playlistID, err)
	}

	entry := &models.PlaylistEntry{
		ID:         id,
		PlaylistID: playlistID,
		Playlist:   &playlist,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}
	if snapshotID.Valid {
		entry.SnapshotID = &snapshotID.String
	}
	return entry, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

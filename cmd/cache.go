package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/deezify/internal/models"
	"github.com/desertthunder/deezify/internal/repositories"
	"github.com/desertthunder/deezify/internal/shared"
)

// openEntries opens the persisted playlist store, failing when persistence is disabled.
func (r *Runner) openEntries() (*repositories.PlaylistEntryRepository, func(), error) {
	if err := r.ensureConfig(); err != nil {
		return nil, nil, err
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, nil, err
	}
	if db == nil {
		return nil, nil, fmt.Errorf("%w: [database] path is empty, nothing is persisted", shared.ErrConfiguration)
	}
	return repositories.NewPlaylistEntryRepository(db), func() { db.Close() }, nil
}

// CacheList prints one line per persisted playlist, most recently updated first.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	entries, closeDB, err := r.openEntries()
	if err != nil {
		return err
	}
	defer closeDB()

	list, err := entries.List()
	if err != nil {
		return err
	}

	if len(list) == 0 {
		return r.writePlain("No persisted playlists\n")
	}

	for _, e := range list {
		if err := r.writePlain("%s\t%s\t%d tracks\tsnapshot=%s\tupdated=%s\n",
			e.PlaylistID,
			e.Playlist.Name,
			e.Playlist.TotalTracks,
			models.Deref(e.SnapshotID),
			e.UpdatedAt.Format("2006-01-02 15:04:05"),
		); err != nil {
			return err
		}
	}
	return nil
}

// CacheClear deletes one persisted playlist (--id) or all of them.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	entries, closeDB, err := r.openEntries()
	if err != nil {
		return err
	}
	defer closeDB()

	if id := cmd.String("id"); id != "" {
		if err := entries.Delete(id); err != nil {
			return err
		}
		r.logger.Info("deleted persisted playlist", "playlist", id)
		return r.writePlain("✓ Deleted %s\n", id)
	}

	n, err := entries.Clear()
	if err != nil {
		return err
	}
	r.logger.Info("cleared persisted playlists", "count", n)
	return r.writePlain("✓ Deleted %d playlists\n", n)
}

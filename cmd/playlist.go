package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/deezify/internal/formatter"
	"github.com/desertthunder/deezify/internal/models"
	"github.com/desertthunder/deezify/internal/tasks"
)

// Playlist derives a playlist and prints it (or writes it with --output).
//
// With --refresh the derivation is forced and progress is logged at debug level.
func (r *Runner) Playlist(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	s, err := r.build()
	if err != nil {
		return err
	}
	defer s.Close()

	var playlist *models.DerivedPlaylist
	if cmd.Bool("refresh") {
		entry, err := r.derive(ctx, s.engine, cmd.String("id"))
		if err != nil {
			return err
		}
		playlist = entry.Playlist
	} else {
		if playlist, err = s.engine.Get(ctx, cmd.String("id")); err != nil {
			return err
		}
	}

	return r.writePlaylist(playlist, format, cmd.String("output"), cmd.Bool("pretty"))
}

func (r *Runner) derive(ctx context.Context, engine *tasks.PlaylistEngine, id string) (*models.PlaylistEntry, error) {
	progress := make(chan tasks.ProgressUpdate, 32)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Debug(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
		}
	}()

	entry, err := engine.Derive(ctx, id, progress)
	close(progress)
	<-done

	return entry, err
}

func (r *Runner) writePlaylist(playlist *models.DerivedPlaylist, format formatter.Format, output string, indent bool) error {
	if output != "" {
		if format == formatter.JSON {
			return fmt.Errorf("--output supports text, markdown and csv; redirect stdout for json")
		}
		path, err := formatter.WriteExport(playlist, format, output)
		if err != nil {
			return err
		}
		r.logger.Info("playlist written", "path", path, "tracks", playlist.TotalTracks)
		return nil
	}

	switch format {
	case formatter.JSON:
		return r.writeJSON(playlist, indent)
	case formatter.Text:
		return r.writePlain("%s", formatter.RenderText(playlist))
	default:
		data, err := formatter.Render(playlist, format)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	}
}

// package formatter renders derived playlists as CSV, Markdown & plain text for the CLI
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/deezify/internal/models"
)

// Format names an output rendering.
type Format string

const (
	JSON     Format = "json"
	Text     Format = "text"
	Markdown Format = "markdown"
	CSV      Format = "csv"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case JSON, Text, Markdown, CSV:
		return f, nil
	case "md":
		return Markdown, nil
	case "txt":
		return Text, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json, text, markdown or csv)", s)
	}
}

// Extension returns the file extension used by [WriteExport].
func (f Format) Extension() string {
	switch f {
	case Markdown:
		return ".md"
	case CSV:
		return ".csv"
	case Text:
		return ".txt"
	default:
		return ".json"
	}
}

var (
	titleStyle = newStyle("#7D56F4").Bold(true)
	mutedStyle = newStyle("#626262").Italic(true)
	missStyle  = newStyle("#FFA500")
)

func newStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

// FormatDuration renders milliseconds as m:ss, or "--:--" when unknown.
func FormatDuration(ms *int) string {
	if ms == nil || *ms < 0 {
		return "--:--"
	}
	total := *ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func artists(t models.MatchedTrack) string {
	if len(t.Artists) == 0 {
		return "Unknown Artist"
	}
	return strings.Join(t.Artists, ", ")
}

// ExportToCSV converts a playlist to CSV with columns: ID, Title, Artists, Duration, Preview, Matched
func ExportToCSV(playlist *models.DerivedPlaylist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artists", "Duration", "Preview", "Matched"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range playlist.Tracks {
		duration := ""
		if track.DurationMs != nil {
			duration = strconv.Itoa(*track.DurationMs)
		}
		record := []string{
			track.ID,
			track.Name,
			strings.Join(track.Artists, "; "),
			duration,
			models.Deref(track.PreviewURL),
			strconv.FormatBool(!track.IsFallback()),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a playlist to Markdown, linking previews where a match exists
func ExportToMarkdown(playlist *models.DerivedPlaylist) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", playlist.Name)
	if img := models.Deref(playlist.ImageURL); img != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", img)
	}
	if desc := models.Deref(playlist.Description); desc != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", desc)
	}
	if curator := models.Deref(playlist.CuratorName); curator != "" {
		fmt.Fprintf(&buf, "**Curator**: %s\n", curator)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n", playlist.TotalTracks)
	fmt.Fprintf(&buf, "**Source**: <%s>\n\n", playlist.ExternalURL)

	buf.WriteString("## Tracks\n\n")
	for i, track := range playlist.Tracks {
		title := track.Name
		if preview := models.Deref(track.PreviewURL); preview != "" {
			title = fmt.Sprintf("[%s](%s)", track.Name, preview)
		}
		suffix := ""
		if track.IsFallback() {
			suffix = " _(unmatched)_"
		}
		fmt.Fprintf(&buf, "%d. %s - %s [%s]%s\n", i+1, artists(track), title, FormatDuration(track.DurationMs), suffix)
	}

	return buf.Bytes(), nil
}

// ExportToText converts a playlist to plain text
func ExportToText(playlist *models.DerivedPlaylist) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", playlist.Name)
	if desc := models.Deref(playlist.Description); desc != "" {
		fmt.Fprintf(&buf, "Description: %s\n", desc)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", playlist.TotalTracks)

	for i, track := range playlist.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, artists(track), track.Name)
	}

	return buf.Bytes(), nil
}

// RenderText is [ExportToText] styled for a terminal. Unmatched tracks are highlighted.
func RenderText(playlist *models.DerivedPlaylist) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(playlist.Name))
	b.WriteString("\n")
	if desc := models.Deref(playlist.Description); desc != "" {
		b.WriteString(mutedStyle.Render(desc))
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%d tracks · %s", playlist.TotalTracks, playlist.ExternalURL)))
	b.WriteString("\n\n")

	for i, track := range playlist.Tracks {
		line := fmt.Sprintf("%3d. %s - %s %s", i+1, artists(track), track.Name, mutedStyle.Render(FormatDuration(track.DurationMs)))
		if track.IsFallback() {
			line += " " + missStyle.Render("(unmatched)")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// Render dispatches on format. JSON is left to the caller.
func Render(playlist *models.DerivedPlaylist, format Format) ([]byte, error) {
	switch format {
	case CSV:
		return ExportToCSV(playlist)
	case Markdown:
		return ExportToMarkdown(playlist)
	case Text:
		return ExportToText(playlist)
	default:
		return nil, fmt.Errorf("format %q is not rendered by the formatter", format)
	}
}

// WriteExport renders the playlist and writes it to path.
//
// Defaults to {playlist.ID}{ext} in the working directory. Parent directories are created.
func WriteExport(playlist *models.DerivedPlaylist, format Format, path string) (string, error) {
	if path == "" {
		path = playlist.ID + format.Extension()
	}

	data, err := Render(playlist, format)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", format, err)
	}

	return path, nil
}

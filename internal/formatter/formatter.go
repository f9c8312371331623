// package formatter renders library and device listings as CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/desertthunder/podsync/internal/device"
	"github.com/desertthunder/podsync/internal/models"
	"github.com/desertthunder/podsync/internal/shared"
	"github.com/desertthunder/podsync/internal/tasks"
)

// Format selects an output encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
)

// ParseFormat maps a flag value to a [Format]. Unknown values are an error.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "", FormatText:
		return FormatText, nil
	case FormatCSV, FormatMarkdown:
		return f, nil
	case "markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

func writeCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, record := range rows {
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

func downloadedCount(ch *models.Channel) int {
	n := 0
	for _, ep := range ch.Episodes {
		if ep.IsDownloaded() {
			n++
		}
	}
	return n
}

// Channels renders a channel overview.
func Channels(channels []*models.Channel, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		rows := make([][]string, 0, len(channels))
		for _, ch := range channels {
			rows = append(rows, []string{
				ch.ID,
				ch.Title,
				ch.URL,
				strconv.Itoa(len(ch.Episodes)),
				strconv.Itoa(downloadedCount(ch)),
				strconv.FormatBool(ch.SyncToDevices),
				ch.DevicePlaylistName,
			})
		}
		return writeCSV([]string{"ID", "Title", "URL", "Episodes", "Downloaded", "Sync", "Playlist"}, rows)

	case FormatMarkdown:
		var buf bytes.Buffer
		buf.WriteString("# Channels\n\n")
		buf.WriteString("| Title | Episodes | Downloaded | Sync | Playlist |\n")
		buf.WriteString("|---|---|---|---|---|\n")
		for _, ch := range channels {
			fmt.Fprintf(&buf, "| %s | %d | %d | %s | %s |\n",
				ch.Title, len(ch.Episodes), downloadedCount(ch), yesNo(ch.SyncToDevices), playlistName(ch))
		}
		return buf.Bytes(), nil

	default:
		var buf bytes.Buffer
		for i, ch := range channels {
			fmt.Fprintf(&buf, "%d. %s (%d episodes, %d downloaded)", i+1, ch.Title, len(ch.Episodes), downloadedCount(ch))
			if ch.IsMusicChannel {
				fmt.Fprintf(&buf, " -> %q", ch.DevicePlaylistName)
			}
			if !ch.SyncToDevices {
				buf.WriteString(" [sync disabled]")
			}
			buf.WriteString("\n")
		}
		return buf.Bytes(), nil
	}
}

// Episodes renders the episodes of one channel.
func Episodes(ch *models.Channel, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		rows := make([][]string, 0, len(ch.Episodes))
		for _, ep := range ch.Episodes {
			rows = append(rows, []string{
				ep.ID,
				ep.Title,
				ep.PubDate,
				ep.URL,
				ep.LocalPath,
				strconv.FormatBool(ep.Played),
			})
		}
		return writeCSV([]string{"ID", "Title", "Published", "URL", "LocalPath", "Played"}, rows)

	case FormatMarkdown:
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "# %s\n\n", ch.Title)
		if ch.URL != "" {
			fmt.Fprintf(&buf, "**Feed**: %s\n\n", ch.URL)
		}
		fmt.Fprintf(&buf, "**Episodes**: %d\n\n", len(ch.Episodes))
		buf.WriteString("## Episodes\n\n")
		for i, ep := range ch.Episodes {
			mark := " "
			if ep.Played {
				mark = "x"
			}
			fmt.Fprintf(&buf, "%d. [%s] %s%s\n", i+1, mark, ep.Title, published(ep))
		}
		return buf.Bytes(), nil

	default:
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "Channel: %s\n", ch.Title)
		fmt.Fprintf(&buf, "Episodes: %d\n\n", len(ch.Episodes))
		for i, ep := range ch.Episodes {
			state := "remote"
			if ep.IsDownloaded() {
				state = string(ep.FileKind())
			}
			if ep.Played {
				state += ", played"
			}
			fmt.Fprintf(&buf, "%d. %s [%s]\n", i+1, ep.Title, state)
		}
		return buf.Bytes(), nil
	}
}

// Tracks renders tracks of a device playlist. Paths are resolved through db.
func Tracks(db device.Database, pl *device.Playlist, f Format) ([]byte, error) {
	tracks := db.TracksOf(pl)

	switch f {
	case FormatCSV:
		rows := make([][]string, 0, len(tracks))
		for _, t := range tracks {
			rows = append(rows, []string{
				t.ID,
				t.Title,
				t.Album,
				strconv.FormatInt(t.Length, 10),
				strconv.FormatInt(t.Size, 10),
				strconv.FormatUint(uint64(t.PlayCount), 10),
				t.Path,
			})
		}
		return writeCSV([]string{"ID", "Title", "Album", "LengthMs", "Size", "PlayCount", "Path"}, rows)

	case FormatMarkdown:
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "# %s\n\n", pl.Name)
		fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(tracks))
		for i, t := range tracks {
			fmt.Fprintf(&buf, "%d. %s (%s) [%s, %s]\n", i+1, t.Title, t.Album,
				formatLength(t.Length), shared.FormatSize(t.Size))
		}
		return buf.Bytes(), nil

	default:
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "Playlist: %s\n", pl.Name)
		fmt.Fprintf(&buf, "Tracks: %d\n\n", len(tracks))
		for i, t := range tracks {
			fmt.Fprintf(&buf, "%d. %s - %s (%s, played %d)\n", i+1, t.Album, t.Title, shared.FormatSize(t.Size), t.PlayCount)
			if path := db.PathOnDevice(t); path != "" {
				fmt.Fprintf(&buf, "   %s\n", path)
			}
		}
		return buf.Bytes(), nil
	}
}

// Summary renders a finished job as plain text.
func Summary(sum *tasks.Summary) []byte {
	var buf bytes.Buffer
	c := sum.Completion
	fmt.Fprintf(&buf, "%s\n", c.String())
	if sum.Channels > 0 {
		fmt.Fprintf(&buf, "Channels: %d/%d synced\n", sum.Synced, sum.Channels)
	}
	fmt.Fprintf(&buf, "Elapsed: %s\n", sum.Elapsed.Round(time.Millisecond))
	if len(c.Errors) > 0 {
		fmt.Fprintf(&buf, "\nErrors (%d):\n", len(c.Errors))
		for _, e := range c.Errors {
			fmt.Fprintf(&buf, "  - %s\n", e)
		}
	}
	return buf.Bytes()
}

// WriteExport writes rendered data to path on fs, creating parent directories.
func WriteExport(fs afero.Fs, path string, data []byte) error {
	if dir := parentDir(path); dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

func parentDir(path string) string {
	i := strings.LastIndexAny(path, `/\`)
	if i <= 0 {
		return ""
	}
	return path[:i]
}

func formatLength(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func published(ep *models.Episode) string {
	if t, ok := ep.PublishedAt(); ok {
		return " (" + t.Format("2006-01-02") + ")"
	}
	return ""
}

func playlistName(ch *models.Channel) string {
	if ch.IsMusicChannel {
		return ch.DevicePlaylistName
	}
	return "Podcasts"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

package media

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/podsync/internal/shared"
)

// FFmpeg converts files to MP3 with the ffmpeg binary.
type FFmpeg struct {
	Path       string
	Bitrate    string
	Extensions []string    // lowercase, without dot
	Length     LengthProbe // total duration for progress; optional
	TempDir    string
}

// NewFFmpeg returns a transcoder for the configured extensions.
func NewFFmpeg(cfg shared.MediaConfig) *FFmpeg {
	path := cfg.FFmpegPath
	if path == "" {
		path = "ffmpeg"
	}
	bitrate := cfg.Bitrate
	if bitrate == "" {
		bitrate = "128k"
	}
	exts := make([]string, 0, len(cfg.Transcode))
	for _, e := range cfg.Transcode {
		exts = append(exts, strings.ToLower(strings.TrimPrefix(e, ".")))
	}
	return &FFmpeg{Path: path, Bitrate: bitrate, Extensions: exts, Length: NewFFprobe(cfg.FFprobePath)}
}

// Supports reports whether files with ext (with or without dot) are converted.
func (t *FFmpeg) Supports(ext string) bool {
	return slices.Contains(t.Extensions, strings.ToLower(strings.TrimPrefix(ext, ".")))
}

// Convert writes an MP3 copy of path to a temporary file and returns its name.
// The caller removes the file.
func (t *FFmpeg) Convert(ctx context.Context, path string, progress func(percent int)) (string, error) {
	out, err := os.CreateTemp(t.TempDir, "podsync-*.mp3")
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrTranscode, err)
	}
	output := out.Name()
	out.Close()

	var total time.Duration
	if t.Length != nil {
		total, _ = t.Length.Probe(ctx, path)
	}

	args := []string{
		"-y",
		"-i", path,
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", t.Bitrate,
		"-progress", "pipe:1",
		"-nostats",
		output,
	}

	cmd := exec.CommandContext(ctx, t.Path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		os.Remove(output)
		return "", fmt.Errorf("%w: %v", shared.ErrTranscode, err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		os.Remove(output)
		return "", fmt.Errorf("%w: ffmpeg failed to start: %v", shared.ErrTranscode, err)
	}
	readProgress(stdout, total, progress)

	if err := cmd.Wait(); err != nil {
		os.Remove(output)
		return "", fmt.Errorf("%w: ffmpeg failed for %s: %v: %s", shared.ErrTranscode, path, err, stderr.String())
	}

	if info, err := os.Stat(output); err != nil || info.Size() == 0 {
		os.Remove(output)
		return "", fmt.Errorf("%w: empty output for %s", shared.ErrTranscode, path)
	}
	return output, nil
}

// readProgress parses ffmpeg "-progress" key=value lines and reports distinct percentages.
func readProgress(r io.Reader, total time.Duration, progress func(int)) {
	last := -1
	report := func(p int) {
		p = min(max(p, 0), 100)
		if progress != nil && p != last {
			last = p
			progress(p)
		}
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			// both keys carry microseconds
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || total <= 0 {
				continue
			}
			report(int(time.Duration(us) * time.Microsecond * 100 / total))
		case "progress":
			if value == "end" {
				report(100)
			}
		}
	}
	io.Copy(io.Discard, r)
}

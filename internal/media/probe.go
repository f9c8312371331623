package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/bogem/id3v2/v2"
	"github.com/gopxl/beep/v2/mp3"

	"github.com/desertthunder/podsync/internal/shared"
)

// FFprobe reads the container duration with the ffprobe binary.
type FFprobe struct {
	Path string
}

// NewFFprobe returns a probe using the given binary, "ffprobe" when empty.
func NewFFprobe(path string) *FFprobe {
	if path == "" {
		path = "ffprobe"
	}
	return &FFprobe{Path: path}
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (p *FFprobe) Probe(ctx context.Context, path string) (time.Duration, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	}

	cmd := exec.CommandContext(ctx, p.Path, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("%w: ffprobe failed for %s: %v: %s", shared.ErrLengthProbe, path, err, stderr.String())
	}
	return parseFFprobe(out.Bytes())
}

func parseFFprobe(out []byte) (time.Duration, error) {
	var data ffprobeOutput
	if err := json.Unmarshal(out, &data); err != nil {
		return 0, fmt.Errorf("%w: failed to unmarshal ffprobe output: %v", shared.ErrLengthProbe, err)
	}
	if data.Format.Duration == "" {
		return 0, fmt.Errorf("%w: duration not found in ffprobe output", shared.ErrLengthProbe)
	}
	secs, err := strconv.ParseFloat(data.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to parse duration %q: %v", shared.ErrLengthProbe, data.Format.Duration, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// MP3Decoder counts decoded samples.
type MP3Decoder struct{}

func (MP3Decoder) Probe(_ context.Context, path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrLengthProbe, err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return 0, fmt.Errorf("%w: mp3 decode failed for %s: %v", shared.ErrLengthProbe, path, err)
	}
	defer streamer.Close()

	return format.SampleRate.D(streamer.Len()), nil
}

// ID3Length reads the TLEN frame, stored in milliseconds.
type ID3Length struct{}

func (ID3Length) Probe(_ context.Context, path string) (time.Duration, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true, ParseFrames: []string{"Length"}})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrLengthProbe, err)
	}
	defer tag.Close()

	tf := tag.GetTextFrame(tag.CommonID("Length"))
	if tf.Text == "" {
		return 0, fmt.Errorf("%w: no TLEN frame in %s", shared.ErrLengthProbe, path)
	}
	ms, err := strconv.ParseInt(tf.Text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad TLEN %q: %v", shared.ErrLengthProbe, tf.Text, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// DefaultProbes returns the standard fallback chain.
func DefaultProbes(ffprobePath string) []LengthProbe {
	return []LengthProbe{NewFFprobe(ffprobePath), MP3Decoder{}, ID3Length{}}
}

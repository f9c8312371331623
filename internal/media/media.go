// Package media holds best-effort helpers for inspecting and converting episode files:
// length probes, cover art extraction, tag rewriting, and transcoding.
//
// Every helper reports failure through an error wrapping one of the shared sentinels so
// callers can decide whether to log or escalate.
package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/podsync/internal/shared"
)

// LengthProbe determines the playing time of a local file.
type LengthProbe interface {
	Probe(ctx context.Context, path string) (time.Duration, error)
}

// LengthProbeFunc adapts a function to [LengthProbe].
type LengthProbeFunc func(ctx context.Context, path string) (time.Duration, error)

func (f LengthProbeFunc) Probe(ctx context.Context, path string) (time.Duration, error) {
	return f(ctx, path)
}

// CoverExtractor reads embedded artwork.
type CoverExtractor interface {
	CoverArt(path string) (*Image, error)
}

// TagWriter rewrites the title and artist of a file.
type TagWriter interface {
	Update(path, title, artist string) error
}

// Transcoder converts files a device cannot play. progress receives whole percentages.
type Transcoder interface {
	Supports(ext string) bool
	Convert(ctx context.Context, path string, progress func(percent int)) (string, error)
}

// Image is raw artwork bytes.
type Image struct {
	Data     []byte
	MIMEType string
}

// Ext returns a file extension (with dot) for the image's MIME type.
func (i *Image) Ext() string {
	switch strings.ToLower(i.MIMEType) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

// FirstLength tries each probe in order and returns the first positive duration.
// The returned error joins every probe failure and wraps [shared.ErrLengthProbe].
func FirstLength(ctx context.Context, probes []LengthProbe, path string) (time.Duration, error) {
	var errs []error
	for _, p := range probes {
		if p == nil {
			continue
		}
		d, err := p.Probe(ctx, path)
		if err == nil && d > 0 {
			return d, nil
		}
		if err == nil {
			err = fmt.Errorf("zero length")
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return 0, shared.ErrLengthProbe
	}
	return 0, fmt.Errorf("%w: %w", shared.ErrLengthProbe, errors.Join(errs...))
}

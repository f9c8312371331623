// package models defines the podcast library data model read by the sync engine
package models

import (
	"fmt"
	"net/mail"
	"path/filepath"
	"strings"
	"time"
)

// FileKind classifies an episode's media file.
type FileKind string

const (
	KindAudio FileKind = "audio"
	KindVideo FileKind = "video"
	KindOther FileKind = "other"
)

var (
	audioExtensions = map[string]bool{
		"mp3": true, "m4a": true, "aac": true, "ogg": true, "oga": true,
		"opus": true, "flac": true, "wav": true, "wma": true,
	}
	videoExtensions = map[string]bool{
		"mp4": true, "m4v": true, "mov": true, "divx": true, "avi": true,
		"mkv": true, "webm": true, "wmv": true, "3gp": true,
	}
)

// Channel is a podcast subscription.
type Channel struct {
	ID                 string
	Sequence           int
	Title              string
	URL                string
	IsMusicChannel     bool   // sync into a named device playlist instead of the podcasts playlist
	DevicePlaylistName string // only meaningful for music channels
	SyncToDevices      bool
	Episodes           []*Episode
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Validate checks required fields.
func (c *Channel) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("channel title is required")
	}
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("channel url is required")
	}
	if c.IsMusicChannel && strings.TrimSpace(c.DevicePlaylistName) == "" {
		return fmt.Errorf("music channel %q needs a device playlist name", c.Title)
	}
	return nil
}

func (c *Channel) String() string { return c.Title }

// Episode is a single podcast item.
type Episode struct {
	ID          string
	ChannelID   string
	Title       string
	Description string
	PubDate     string // RFC 822 style, as found in the feed
	URL         string
	LocalPath   string // empty until downloaded
	SyncName    string // optional pre-sanitized name for sync targets
	Played      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks required fields.
func (e *Episode) Validate() error {
	if e.ChannelID == "" {
		return fmt.Errorf("episode channel is required")
	}
	if strings.TrimSpace(e.URL) == "" {
		return fmt.Errorf("episode url is required")
	}
	return nil
}

// IsDownloaded reports whether the episode has a local file.
func (e *Episode) IsDownloaded() bool {
	return e.LocalPath != ""
}

// FileKind derives the media kind from the local file extension.
func (e *Episode) FileKind() FileKind {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(e.LocalPath), "."))
	switch {
	case audioExtensions[ext]:
		return KindAudio
	case videoExtensions[ext]:
		return KindVideo
	default:
		return KindOther
	}
}

// SyncFilename returns the name used on sync targets: SyncName when set, else the title.
func (e *Episode) SyncFilename() string {
	if e.SyncName != "" {
		return e.SyncName
	}
	return strings.TrimSpace(e.Title)
}

// PublishedAt parses PubDate. ok is false when the feed date is missing or malformed.
func (e *Episode) PublishedAt() (t time.Time, ok bool) {
	if strings.TrimSpace(e.PubDate) == "" {
		return time.Time{}, false
	}
	t, err := mail.ParseDate(e.PubDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (e *Episode) String() string { return e.Title }

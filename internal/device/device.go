// Package device abstracts a portable player's on-device media database.
//
// A [Binding] parses the database of a mounted device into a [Database]. Edits are
// kept in memory and persisted by [Database.WriteBack]. [SQLiteBinding] stores the
// database under the mount in [DatabaseFile]; [MemoryDatabase] backs it.
package device

import (
	"errors"
	"fmt"
)

// MacEpochOffset is the number of seconds between 1904-01-01 (device epoch) and 1970-01-01.
const MacEpochOffset = 2082844800

// MediaType values stored in a track's media type field.
const (
	MediaAudio uint32 = 0x00000004
	MediaVideo uint32 = 0x00000006
)

// Unplayed marker values.
const (
	MarkPlayed   uint8 = 0x01
	MarkUnplayed uint8 = 0x02
)

var (
	ErrTrackNotInPlaylist = errors.New("track not in playlist")
	ErrTimeOutOfRange     = errors.New("time outside device epoch range")
)

// Track is the on-device record of a synced episode.
type Track struct {
	ID          string
	Title       string
	Album       string
	Artist      string
	Description string
	PodcastURL  string
	PodcastRSS  string
	Length      int64 // milliseconds
	Size        int64
	FileType    string
	// MediaType is used by bindings with [Features.MediaTypeField]; older ones read Unk208.
	MediaType    uint32
	Unk208       uint32
	TimeReleased uint32 // seconds since 1904-01-01
	PlayCount    uint32
	MarkUnplayed uint8

	RememberPlaybackPosition uint8
	Flag1, Flag2, Flag3, Flag4 uint8

	Path    string // relative to the mount, slash separated
	Artwork string
}

// Playlist is an ordered list of tracks.
type Playlist struct {
	ID       string
	Name     string
	Master   bool
	Podcasts bool
	tracks   []*Track
}

// Len returns the number of tracks in the playlist.
func (p *Playlist) Len() int { return len(p.tracks) }

// Features describes what a database binding supports. Resolved once when the database is parsed.
type Features struct {
	MediaTypeField  bool // MediaType is honoured; otherwise the legacy Unk208 field is
	EpochConversion bool // HostTimeToDevice is available
	PodcastFlags    bool // marker/remember/legacy flag fields are honoured
}

// Binding parses the database found on a mounted device.
type Binding interface {
	Parse(mount string) (Database, error)
}

// BindingFunc adapts a function to [Binding].
type BindingFunc func(mount string) (Database, error)

// Parse calls f(mount).
func (f BindingFunc) Parse(mount string) (Database, error) { return f(mount) }

// Database is an open on-device media database.
//
// Mutations stay in memory until WriteBack. A Database is not safe for concurrent use.
type Database interface {
	Features() Features
	Mount() string

	Playlists() []*Playlist
	PodcastsPlaylist() *Playlist
	NewPlaylist(name string) *Playlist
	AddPlaylist(pl *Playlist)

	TracksOf(pl *Playlist) []*Track
	NewTrack() *Track
	AddTrack(t *Track)
	AddTrackToPlaylist(pl *Playlist, t *Track)
	RemoveTrackFromPlaylist(pl *Playlist, t *Track) error
	UnlinkTrack(t *Track)

	PathOnDevice(t *Track) string
	CopyFileToDevice(t *Track, localPath string) error
	SetThumbnail(t *Track, imagePath string) error
	HostTimeToDevice(unix int64) (uint32, error)

	WriteBack() error
	Close() error
}

// ToDeviceTime converts unix seconds to the device epoch by offset arithmetic.
func ToDeviceTime(unix int64) (uint32, error) {
	v := unix + MacEpochOffset
	if v < 0 || v > int64(^uint32(0)) {
		return 0, fmt.Errorf("%w: %d", ErrTimeOutOfRange, unix)
	}
	return uint32(v), nil
}

package device

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// MusicDir holds copied media below the mount, spread over numbered subfolders.
const (
	MusicDir     = "Podcasts"
	ArtworkDir   = ".podsync/artwork"
	musicFolders = 20
)

// MemoryDatabase keeps playlists and tracks in memory and copies media onto the mount.
//
// It is the storage core of [SQLiteBinding] and is usable on its own when nothing needs persisting.
type MemoryDatabase struct {
	mount     string
	features  Features
	playlists []*Playlist
	tracks    []*Track
}

// NewMemoryDatabase creates an empty database rooted at mount with a master and a podcasts playlist.
func NewMemoryDatabase(mount string, features Features) *MemoryDatabase {
	db := &MemoryDatabase{mount: mount, features: features}
	db.playlists = []*Playlist{
		{ID: uuid.NewString(), Name: "Library", Master: true},
		{ID: uuid.NewString(), Name: "Podcasts", Podcasts: true},
	}
	return db
}

func (m *MemoryDatabase) Features() Features { return m.features }
func (m *MemoryDatabase) Mount() string      { return m.mount }

// Playlists returns playlists in device order; the master playlist comes first.
func (m *MemoryDatabase) Playlists() []*Playlist {
	return slices.Clone(m.playlists)
}

func (m *MemoryDatabase) PodcastsPlaylist() *Playlist {
	for _, pl := range m.playlists {
		if pl.Podcasts {
			return pl
		}
	}
	return nil
}

func (m *MemoryDatabase) NewPlaylist(name string) *Playlist {
	return &Playlist{ID: uuid.NewString(), Name: name}
}

func (m *MemoryDatabase) AddPlaylist(pl *Playlist) {
	if !slices.Contains(m.playlists, pl) {
		m.playlists = append(m.playlists, pl)
	}
}

func (m *MemoryDatabase) TracksOf(pl *Playlist) []*Track {
	if pl == nil {
		return nil
	}
	return slices.Clone(pl.tracks)
}

// Tracks returns every track in the database.
func (m *MemoryDatabase) Tracks() []*Track {
	return slices.Clone(m.tracks)
}

func (m *MemoryDatabase) NewTrack() *Track {
	return &Track{ID: uuid.NewString()}
}

func (m *MemoryDatabase) AddTrack(t *Track) {
	if !slices.Contains(m.tracks, t) {
		m.tracks = append(m.tracks, t)
	}
}

func (m *MemoryDatabase) AddTrackToPlaylist(pl *Playlist, t *Track) {
	pl.tracks = append(pl.tracks, t)
}

func (m *MemoryDatabase) RemoveTrackFromPlaylist(pl *Playlist, t *Track) error {
	i := slices.Index(pl.tracks, t)
	if i < 0 {
		return fmt.Errorf("%w: %s in %s", ErrTrackNotInPlaylist, t.Title, pl.Name)
	}
	pl.tracks = slices.Delete(pl.tracks, i, i+1)
	return nil
}

// UnlinkTrack drops t from the database and from every playlist still holding it.
func (m *MemoryDatabase) UnlinkTrack(t *Track) {
	for _, pl := range m.playlists {
		pl.tracks = slices.DeleteFunc(pl.tracks, func(x *Track) bool { return x == t })
	}
	m.tracks = slices.DeleteFunc(m.tracks, func(x *Track) bool { return x == t })
}

func (m *MemoryDatabase) PathOnDevice(t *Track) string {
	if t.Path == "" {
		return ""
	}
	return filepath.Join(m.mount, filepath.FromSlash(t.Path))
}

// CopyFileToDevice copies localPath into a numbered music folder and records the path on t.
func (m *MemoryDatabase) CopyFileToDevice(t *Track, localPath string) error {
	folder := path.Join(MusicDir, fmt.Sprintf("F%02d", folderIndex(t.ID)))
	name := strings.ReplaceAll(t.ID, "-", "")[:12] + strings.ToLower(filepath.Ext(localPath))
	rel := path.Join(folder, name)

	if err := copyFile(localPath, filepath.Join(m.mount, filepath.FromSlash(rel))); err != nil {
		return err
	}
	t.Path = rel
	return nil
}

// SetThumbnail stores a copy of imagePath as the track's artwork.
func (m *MemoryDatabase) SetThumbnail(t *Track, imagePath string) error {
	rel := path.Join(ArtworkDir, t.ID+strings.ToLower(filepath.Ext(imagePath)))
	if err := copyFile(imagePath, filepath.Join(m.mount, filepath.FromSlash(rel))); err != nil {
		return err
	}
	t.Artwork = rel
	return nil
}

func (m *MemoryDatabase) HostTimeToDevice(unix int64) (uint32, error) {
	return ToDeviceTime(unix)
}

// WriteBack is a no-op; nothing outlives the process.
func (m *MemoryDatabase) WriteBack() error { return nil }

func (m *MemoryDatabase) Close() error { return nil }

func folderIndex(id string) int {
	sum := 0
	for _, c := range id {
		sum += int(c)
	}
	return sum % musicFolders
}

func copyFile(from, to string) error {
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return err
	}
	out, err := os.Create(to)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(to)
		return err
	}
	return out.Close()
}

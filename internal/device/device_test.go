package device

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/podsync/internal/shared"
)

func TestToDeviceTime(t *testing.T) {
	tests := []struct {
		name    string
		unix    int64
		want    uint32
		wantErr bool
	}{
		{name: "unix epoch", unix: 0, want: MacEpochOffset},
		{name: "recent", unix: 1700000000, want: 1700000000 + MacEpochOffset},
		{name: "before device epoch", unix: -MacEpochOffset - 1, wantErr: true},
		{name: "past range", unix: 1 << 33, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToDeviceTime(tt.unix)
			if tt.wantErr {
				if !errors.Is(err, ErrTimeOutOfRange) {
					t.Fatalf("expected ErrTimeOutOfRange, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMemoryDatabasePlaylists(t *testing.T) {
	db := NewMemoryDatabase(t.TempDir(), Features{})

	pls := db.Playlists()
	if len(pls) != 2 {
		t.Fatalf("expected 2 playlists, got %d", len(pls))
	}
	if !pls[0].Master {
		t.Error("expected master playlist first")
	}
	if db.PodcastsPlaylist() == nil {
		t.Fatal("expected podcasts playlist")
	}

	pl := db.NewPlaylist("Music")
	db.AddPlaylist(pl)
	db.AddPlaylist(pl)
	if got := len(db.Playlists()); got != 3 {
		t.Errorf("expected 3 playlists after adding twice, got %d", got)
	}
}

func TestMemoryDatabaseTracks(t *testing.T) {
	db := NewMemoryDatabase(t.TempDir(), Features{})
	pod := db.PodcastsPlaylist()
	master := db.Playlists()[0]

	track := db.NewTrack()
	track.Title = "Episode 1"
	db.AddTrack(track)
	db.AddTrackToPlaylist(pod, track)
	db.AddTrackToPlaylist(master, track)

	if pod.Len() != 1 || master.Len() != 1 {
		t.Fatalf("expected track in both playlists, got %d and %d", pod.Len(), master.Len())
	}

	if err := db.RemoveTrackFromPlaylist(pod, track); err != nil {
		t.Fatalf("RemoveTrackFromPlaylist failed: %v", err)
	}
	if err := db.RemoveTrackFromPlaylist(pod, track); !errors.Is(err, ErrTrackNotInPlaylist) {
		t.Errorf("expected ErrTrackNotInPlaylist, got %v", err)
	}

	db.UnlinkTrack(track)
	if master.Len() != 0 {
		t.Error("expected unlink to remove track from master playlist")
	}
	if len(db.Tracks()) != 0 {
		t.Error("expected no tracks after unlink")
	}
}

func TestCopyFileToDevice(t *testing.T) {
	mount := t.TempDir()
	src := filepath.Join(t.TempDir(), "episode.MP3")
	if err := os.WriteFile(src, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}

	db := NewMemoryDatabase(mount, Features{})
	track := db.NewTrack()

	if got := db.PathOnDevice(track); got != "" {
		t.Errorf("expected empty path before copy, got %q", got)
	}
	if err := db.CopyFileToDevice(track, src); err != nil {
		t.Fatalf("CopyFileToDevice failed: %v", err)
	}
	if filepath.Ext(track.Path) != ".mp3" {
		t.Errorf("expected lowercased extension, got %q", track.Path)
	}

	data, err := os.ReadFile(db.PathOnDevice(track))
	if err != nil {
		t.Fatalf("copied file missing: %v", err)
	}
	if string(data) != "audio" {
		t.Errorf("unexpected content %q", data)
	}

	if err := db.CopyFileToDevice(db.NewTrack(), filepath.Join(t.TempDir(), "missing.mp3")); err == nil {
		t.Error("expected error copying missing file")
	}
}

func TestSQLiteBinding(t *testing.T) {
	t.Run("uninitialised mount", func(t *testing.T) {
		_, err := SQLiteBinding{}.Parse(t.TempDir())
		if !errors.Is(err, shared.ErrNoDatabase) {
			t.Errorf("expected ErrNoDatabase, got %v", err)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		mount := t.TempDir()
		if err := Init(mount); err != nil {
			t.Fatalf("Init failed: %v", err)
		}

		db, err := SQLiteBinding{}.Parse(mount)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if f := db.Features(); !f.MediaTypeField || !f.EpochConversion || !f.PodcastFlags {
			t.Errorf("expected all features, got %+v", f)
		}

		music := db.NewPlaylist("Music")
		db.AddPlaylist(music)
		track := db.NewTrack()
		track.Title = "Episode 1"
		track.PodcastURL = "https://example.com/1.mp3"
		track.MediaType = MediaAudio
		track.MarkUnplayed = MarkUnplayed
		track.Length = 1234
		db.AddTrack(track)
		db.AddTrackToPlaylist(db.PodcastsPlaylist(), track)
		db.AddTrackToPlaylist(music, track)

		if err := db.WriteBack(); err != nil {
			t.Fatalf("WriteBack failed: %v", err)
		}
		if err := db.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		db, err = SQLiteBinding{}.Parse(mount)
		if err != nil {
			t.Fatalf("re-Parse failed: %v", err)
		}
		defer db.Close()

		pls := db.Playlists()
		if len(pls) != 3 {
			t.Fatalf("expected 3 playlists, got %d", len(pls))
		}
		if pls[2].Name != "Music" {
			t.Errorf("expected Music playlist last, got %q", pls[2].Name)
		}

		tracks := db.TracksOf(db.PodcastsPlaylist())
		if len(tracks) != 1 {
			t.Fatalf("expected 1 podcast track, got %d", len(tracks))
		}
		got := tracks[0]
		if got.Title != "Episode 1" || got.PodcastURL != "https://example.com/1.mp3" {
			t.Errorf("unexpected track %+v", got)
		}
		if got.MediaType != MediaAudio || got.MarkUnplayed != MarkUnplayed || got.Length != 1234 {
			t.Errorf("track fields not preserved: %+v", got)
		}
		if music := db.TracksOf(pls[2]); len(music) != 1 || music[0] != got {
			t.Error("expected the same track instance in the music playlist")
		}
	})

	t.Run("init is idempotent", func(t *testing.T) {
		mount := t.TempDir()
		if err := Init(mount); err != nil {
			t.Fatal(err)
		}
		if err := Init(mount); err != nil {
			t.Errorf("second Init failed: %v", err)
		}
	})
}

package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/podsync/internal/device"
	"github.com/desertthunder/podsync/internal/media"
	"github.com/desertthunder/podsync/internal/models"
	"github.com/desertthunder/podsync/internal/shared"
	tu "github.com/desertthunder/podsync/internal/testing"
)

var allFeatures = device.Features{MediaTypeField: true, EpochConversion: true, PodcastFlags: true}

type mockTranscoder struct {
	ext    string
	err    error
	dir    string
	output string
	calls  int
}

func (m *mockTranscoder) Supports(ext string) bool { return ext == m.ext }

func (m *mockTranscoder) Convert(ctx context.Context, path string, progress func(int)) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	progress(50)
	progress(100)
	m.output = filepath.Join(m.dir, "converted.mp3")
	return m.output, os.WriteFile(m.output, []byte("converted"), 0644)
}

type mockTags struct {
	path, title, artist string
	err                 error
}

func (m *mockTags) Update(path, title, artist string) error {
	m.path, m.title, m.artist = path, title, artist
	return m.err
}

type mockCover struct {
	img *media.Image
	err error
}

func (m *mockCover) CoverArt(string) (*media.Image, error) { return m.img, m.err }

func fixedLength(d time.Duration) media.LengthProbe {
	return media.LengthProbeFunc(func(context.Context, string) (time.Duration, error) { return d, nil })
}

var failingProbe = media.LengthProbeFunc(func(context.Context, string) (time.Duration, error) {
	return 0, shared.ErrLengthProbe
})

type deviceFixture struct {
	mount   string
	src     string
	db      *tu.FaultyDatabase
	lib     *tu.MemoryLibrary
	updates *tu.Collector[ProgressUpdate]
	opts    DeviceOpts
}

func newDeviceFixture(t *testing.T, features device.Features) *deviceFixture {
	t.Helper()
	f := &deviceFixture{
		mount:   t.TempDir(),
		src:     t.TempDir(),
		lib:     tu.NewMemoryLibrary(),
		updates: tu.NewCollector[ProgressUpdate](1024),
	}
	f.db = tu.NewFaultyDatabase(f.mount, features)
	f.opts = DeviceOpts{
		Mount:        f.mount,
		Binding:      f.db.Binding(),
		Probes:       []media.LengthProbe{fixedLength(90 * time.Second)},
		FreeSpace:    func(string) (int64, error) { return 1 << 40, nil },
		PollAttempts: 2,
		PollInterval: time.Millisecond,
	}
	return f
}

func (f *deviceFixture) file(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(f.src, name)
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func (f *deviceFixture) open(t *testing.T) *DeviceStrategy {
	t.Helper()
	s := NewDeviceStrategy(Options{
		Library:      f.lib,
		Updates:      f.updates.C,
		ChannelPause: time.Millisecond,
		Sync:         func() {},
	}, f.opts)
	if !s.Open(context.Background()) {
		t.Fatal("Open failed")
	}
	return s
}

func TestDeviceStrategy_Open(t *testing.T) {
	t.Run("unsupported", func(t *testing.T) {
		f := newDeviceFixture(t, allFeatures)
		f.opts.Binding = nil
		s := NewDeviceStrategy(Options{Sync: func() {}}, f.opts)
		if s.Open(context.Background()) {
			t.Error("expected Open to fail without a binding")
		}
	})

	t.Run("mount never appears", func(t *testing.T) {
		f := newDeviceFixture(t, allFeatures)
		f.opts.Mount = filepath.Join(f.mount, "absent")
		s := NewDeviceStrategy(Options{Updates: f.updates.C, Sync: func() {}}, f.opts)
		if s.Open(context.Background()) {
			t.Fatal("expected Open to fail")
		}

		waiting := 0
		for _, u := range f.updates.Drain() {
			if st, ok := u.Data.(Status); ok && st.Channel == "Please connect your device" {
				waiting++
			}
		}
		if waiting == 0 {
			t.Error("expected connect guidance")
		}
	})

	t.Run("guidance escalates", func(t *testing.T) {
		f := newDeviceFixture(t, allFeatures)
		f.opts.Mount = filepath.Join(f.mount, "absent")
		f.opts.PollAttempts = 4
		s := NewDeviceStrategy(Options{Updates: f.updates.C, Sync: func() {}}, f.opts)
		s.Open(context.Background())

		var escalated bool
		for _, u := range f.updates.Drain() {
			if st, ok := u.Data.(Status); ok && st.Episode == "Have you set up your device correctly?" {
				escalated = true
			}
		}
		if !escalated {
			t.Error("expected escalated guidance")
		}
	})

	t.Run("context cancelled while waiting", func(t *testing.T) {
		f := newDeviceFixture(t, allFeatures)
		f.opts.Mount = filepath.Join(f.mount, "absent")
		f.opts.PollAttempts = 1000
		f.opts.PollInterval = time.Hour
		s := NewDeviceStrategy(Options{Sync: func() {}}, f.opts)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if s.Open(ctx) {
			t.Fatal("expected Open to fail")
		}
		if !s.Cancelled() {
			t.Error("expected cancellation")
		}
	})

	t.Run("parse error", func(t *testing.T) {
		f := newDeviceFixture(t, allFeatures)
		f.opts.Binding = device.BindingFunc(func(string) (device.Database, error) { return nil, shared.ErrNoDatabase })
		s := NewDeviceStrategy(Options{Sync: func() {}}, f.opts)
		if s.Open(context.Background()) {
			t.Error("expected Open to fail")
		}
	})

	t.Run("close writes back", func(t *testing.T) {
		f := newDeviceFixture(t, allFeatures)
		s := f.open(t)
		c := s.Close(true, false, false)
		if !c.Success || f.db.WriteBacks != 1 || !f.db.Closed {
			t.Errorf("completion %+v, writebacks %d, closed %v", c, f.db.WriteBacks, f.db.Closed)
		}

		var emitted bool
		for _, u := range f.updates.Drain() {
			if u.Phase == Completed {
				emitted = true
			}
		}
		if !emitted {
			t.Error("expected completion update")
		}
	})

	t.Run("write-back failure", func(t *testing.T) {
		f := newDeviceFixture(t, allFeatures)
		f.db.WriteBackErr = errors.New("disk gone")
		s := f.open(t)
		c := s.Close(true, false, false)
		if c.Success || len(c.Errors) != 1 {
			t.Errorf("unexpected completion %+v", c)
		}
	})

	t.Run("close without open", func(t *testing.T) {
		s := NewDeviceStrategy(Options{Sync: func() {}}, DeviceOpts{})
		c := s.Close(false, true, false)
		if c.Success || !c.AccessError {
			t.Errorf("unexpected completion %+v", c)
		}
	})
}

func TestDeviceStrategy_AddEpisode(t *testing.T) {
	t.Run("creates track", func(t *testing.T) {
		f := newDeviceFixture(t, allFeatures)
		ch := tu.NewChannel("Show", f.file(t, "a.mp3", 1000))
		ep := ch.Episodes[0]
		ep.Description = "about things"
		s := f.open(t)

		if !s.AddEpisode(context.Background(), ch, ep) {
			t.Fatal("AddEpisode failed")
		}

		tracks := f.db.TracksOf(f.db.PodcastsPlaylist())
		if len(tracks) != 1 {
			t.Fatalf("expected 1 podcast track, got %d", len(tracks))
		}
		tr := tracks[0]
		pub, _ := ep.PublishedAt()
		released, _ := device.ToDeviceTime(pub.Unix())

		checks := []struct {
			name      string
			got, want any
		}{
			{"title", tr.Title, ep.Title},
			{"album", tr.Album, "Show"},
			{"artist", tr.Artist, "Show"},
			{"length", tr.Length, int64(90000)},
			{"size", tr.Size, int64(1000)},
			{"file type", tr.FileType, "mp3"},
			{"media type", tr.MediaType, device.MediaAudio},
			{"unplayed marker", tr.MarkUnplayed, device.MarkUnplayed},
			{"released", tr.TimeReleased, released},
			{"podcast url", tr.PodcastURL, ep.URL},
			{"podcast rss", tr.PodcastRSS, ch.URL},
			{"description", tr.Description, "about things"},
		}
		for _, c := range checks {
			if c.got != c.want {
				t.Errorf("%s: got %v, want %v", c.name, c.got, c.want)
			}
		}

		if _, err := os.Stat(f.db.PathOnDevice(tr)); err != nil {
			t.Errorf("expected file on device: %v", err)
		}
		if f.db.Playlists()[0].Len() != 0 {
			t.Error("podcast should not be added to master playlist")
		}
	})

	t.Run("already on device", func(t *testing.T) {
		f := newDeviceFixture(t, allFeatures)
		ch := tu.NewChannel("Show", f.file(t, "a.mp3", 10))
		s := f.open(t)

		s.AddEpisode(context.Background(), ch, ch.Episodes[0])
		if !s.AddEpisode(context.Background(), ch, ch.Episodes[0]) {
			t.Fatal("second AddEpisode failed")
		}
		if got := len(f.db.Tracks()); got != 1 {
			t.Errorf("expected 1 track, got %d", got)
		}
	})

	t.Run("not enough space", func(t *testing.T) {
		f := newDeviceFixture(t, allFeatures)
		f.opts.FreeSpace = func(string) (int64, error) { return databaseReserve + 100, nil }
		ch := tu.NewChannel("Show", f.file(t, "a.mp3", 1000))
		s := f.open(t)

		if s.AddEpisode(context.Background(), ch, ch.Episodes[0]) {
			t.Fatal("expected AddEpisode to fail")
		}
		if !s.Cancelled() {
			t.Error("expected job cancelled")
		}
		errs := s.Errors()
		if len(errs) != 1 || !strings.Contains(errs[0], f.mount) {
			t.Errorf("expected one error naming the mount, got %v", errs)
		}
		if len(f.db.Tracks()) != 0 {
			t.Error("expected no track")
		}
	})

	t.Run("default length", func(t *testing.T) {
		f := newDeviceFixture(t, allFeatures)
		f.opts.Probes = []media.LengthProbe{failingProbe, failingProbe, failingProbe}
		ch := tu.NewChannel("Show", f.file(t, "a.mp3", 10))
		s := f.open(t)

		s.AddEpisode(context.Background(), ch, ch.Episodes[0])
		if got := f.db.Tracks()[0].Length; got != 3_600_000 {
			t.Errorf("got length %d", got)
		}
	})

	t.Run("legacy binding", func(t *testing.T) {
		f := newDeviceFixture(t, device.Features{})
		ch := tu.NewChannel("Show", f.file(t, "a.mp3", 10))
		ep := ch.Episodes[0]
		s := f.open(t)

		s.AddEpisode(context.Background(), ch, ep)
		tr := f.db.Tracks()[0]
		pub, _ := ep.PublishedAt()
		if tr.Unk208 != device.MediaAudio || tr.MediaType != 0 {
			t.Errorf("expected legacy media type field, got media %d unk208 %d", tr.MediaType, tr.Unk208)
		}
		if tr.TimeReleased != uint32(pub.Unix()+device.MacEpochOffset) {
			t.Errorf("unexpected release time %d", tr.TimeReleased)
		}
		if tr.MarkUnplayed != 0 || tr.Flag1 != 0 {
			t.Error("expected podcast flags skipped")
		}
	})

	t.Run("video", func(t *testing.T) {
		f := newDeviceFixture(t, allFeatures)
		ch := tu.NewChannel("Show", f.file(t, "clip.M4V", 10))
		s := f.open(t)

		s.AddEpisode(context.Background(), ch, ch.Episodes[0])
		tr := f.db.Tracks()[0]
		if tr.FileType != "m4v" || tr.MediaType != device.MediaVideo {
			t.Errorf("got file type %q media type %d", tr.FileType, tr.MediaType)
		}
	})

	t.Run("music channel", func(t *testing.T) {
		f := newDeviceFixture(t, allFeatures)
		ch := tu.NewChannel("Tunes", f.file(t, "a.mp3", 10), f.file(t, "b.mp3", 10))
		ch.IsMusicChannel = true
		ch.DevicePlaylistName = "Mixtape"
		s := f.open(t)

		for _, ep := range ch.Episodes {
			s.AddEpisode(context.Background(), ch, ep)
		}

		var mixtape *device.Playlist
		count := 0
		for _, pl := range f.db.Playlists() {
			if pl.Name == "Mixtape" {
				mixtape = pl
				count++
			}
		}
		if count != 1 || mixtape.Len() != 2 {
			t.Fatalf("expected one Mixtape playlist with 2 tracks, got %d playlists", count)
		}
		if f.db.Playlists()[0].Len() != 2 {
			t.Error("expected tracks in master playlist")
		}
		if f.db.PodcastsPlaylist().Len() != 0 {
			t.Error("expected podcasts playlist untouched")
		}
	})

	t.Run("copy failure", func(t *testing.T) {
		f := newDeviceFixture(t, allFeatures)
		f.db.CopyErr = errors.New("device full")
		ch := tu.NewChannel("Show", f.file(t, "a.mp3", 10))
		s := f.open(t)

		if !s.AddEpisode(context.Background(), ch, ch.Episodes[0]) {
			t.Fatal("copy failure should not stop the job")
		}
		if s.Cancelled() {
			t.Error("expected job to continue")
		}
		if len(s.Errors()) != 1 {
			t.Errorf("expected one error, got %v", s.Errors())
		}
		if len(f.db.Tracks()) != 0 || f.db.PodcastsPlaylist().Len() != 0 {
			t.Error("expected dangling track removed")
		}
	})

	t.Run("transcode", func(t *testing.T) {
		f := newDeviceFixture(t, allFeatures)
		tc := &mockTranscoder{ext: "ogg", dir: t.TempDir()}
		tags := &mockTags{}
		f.opts.Transcoder = tc
		f.opts.Tags = tags
		ch := tu.NewChannel("Show", f.file(t, "a.ogg", 10))
		ep := ch.Episodes[0]
		s := f.open(t)

		if !s.AddEpisode(context.Background(), ch, ep) {
			t.Fatal("AddEpisode failed")
		}
		if tc.calls != 1 {
			t.Fatalf("expected one conversion, got %d", tc.calls)
		}
		if tags.path != tc.output || tags.title != ep.Title || tags.artist != "Show" {
			t.Errorf("unexpected tag update %+v", tags)
		}
		if _, err := os.Stat(tc.output); !os.IsNotExist(err) {
			t.Error("expected temporary file removed")
		}
		tr := f.db.Tracks()[0]
		if tr.Size != int64(len("converted")) {
			t.Errorf("expected converted size, got %d", tr.Size)
		}

		var converting bool
		for _, u := range f.updates.Drain() {
			if st, ok := u.Data.(Status); ok && st.Episode == "Converting "+ep.Title+" (50%)" {
				converting = true
			}
		}
		if !converting {
			t.Error("expected conversion status")
		}
	})

	t.Run("transcode failure", func(t *testing.T) {
		f := newDeviceFixture(t, allFeatures)
		f.opts.Transcoder = &mockTranscoder{ext: "ogg", err: errors.New("codec missing")}
		ch := tu.NewChannel("Show", f.file(t, "a.ogg", 10), f.file(t, "b.mp3", 10))
		s := f.open(t)

		if !s.SyncChannel(context.Background(), ch, nil, true) {
			t.Fatal("transcode failure should not stop the job")
		}
		if len(s.Errors()) != 1 {
			t.Errorf("expected one error, got %v", s.Errors())
		}
		if got := len(f.db.Tracks()); got != 1 {
			t.Errorf("expected the mp3 synced, got %d tracks", got)
		}
	})

	t.Run("embedded cover", func(t *testing.T) {
		f := newDeviceFixture(t, allFeatures)
		f.opts.Cover = &mockCover{img: &media.Image{Data: []byte("png"), MIMEType: "image/png"}}
		ch := tu.NewChannel("Show", f.file(t, "a.mp3", 10))
		s := f.open(t)

		s.AddEpisode(context.Background(), ch, ch.Episodes[0])
		tr := f.db.Tracks()[0]
		if filepath.Ext(tr.Artwork) != ".png" {
			t.Errorf("expected png artwork, got %q", tr.Artwork)
		}
	})

	t.Run("sibling cover fallback", func(t *testing.T) {
		f := newDeviceFixture(t, allFeatures)
		f.opts.Cover = &mockCover{err: shared.ErrCoverArt}
		f.file(t, "cover", 5)
		ch := tu.NewChannel("Show", f.file(t, "a.mp3", 10))
		s := f.open(t)

		if !s.AddEpisode(context.Background(), ch, ch.Episodes[0]) {
			t.Fatal("AddEpisode failed")
		}
		if f.db.Tracks()[0].Artwork == "" {
			t.Error("expected sibling cover attached")
		}
		if len(s.Errors()) != 0 {
			t.Errorf("cover failures must not be recorded, got %v", s.Errors())
		}
	})
}

func TestDeviceStrategy_PlayedState(t *testing.T) {
	t.Run("device plays mark local played", func(t *testing.T) {
		f := newDeviceFixture(t, allFeatures)
		ch := tu.NewChannel("Show", f.file(t, "a.mp3", 10))
		ep := ch.Episodes[0]
		s := f.open(t)

		tr := f.db.NewTrack()
		tr.Title, tr.Album, tr.PlayCount = ep.Title, ch.Title, 3
		f.db.AddTrack(tr)
		f.db.AddTrackToPlaylist(f.db.PodcastsPlaylist(), tr)

		if !s.EpisodeIsOnDevice(ch, ep) {
			t.Fatal("expected match")
		}
		if !ep.Played || !f.lib.IsPlayed(ep.URL) {
			t.Error("expected local episode marked played")
		}
		if tr.MarkUnplayed != device.MarkPlayed || tr.PlayCount != 3 {
			t.Errorf("unexpected flags %+v", tr)
		}
	})

	t.Run("match is exact", func(t *testing.T) {
		f := newDeviceFixture(t, allFeatures)
		ch := tu.NewChannel("Show", f.file(t, "a.mp3", 10))
		ep := ch.Episodes[0]
		s := f.open(t)

		tr := f.db.NewTrack()
		tr.Title, tr.Album = strings.ToUpper(ep.Title), ch.Title
		f.db.AddTrack(tr)
		f.db.AddTrackToPlaylist(f.db.PodcastsPlaylist(), tr)

		if s.EpisodeIsOnDevice(ch, ep) {
			t.Error("expected case-sensitive title match")
		}
	})
}

func TestSetPodcastFlags(t *testing.T) {
	tests := []struct {
		name          string
		played        bool
		playCount     uint32
		wantMarker    uint8
		wantPlayCount uint32
	}{
		{name: "unplayed", wantMarker: 0x02},
		{name: "played locally", played: true, wantMarker: 0x01, wantPlayCount: 1},
		{name: "played on both", played: true, playCount: 4, wantMarker: 0x01, wantPlayCount: 4},
		{name: "unplayed keeps count", playCount: 2, wantMarker: 0x02, wantPlayCount: 2},
	}

	f := newDeviceFixture(t, allFeatures)
	s := f.open(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &device.Track{PlayCount: tt.playCount}
			s.SetPodcastFlags(tr, &models.Episode{Played: tt.played})

			if tr.MarkUnplayed != tt.wantMarker || tr.PlayCount != tt.wantPlayCount {
				t.Errorf("marker %#x count %d", tr.MarkUnplayed, tr.PlayCount)
			}
			if tr.RememberPlaybackPosition != 0x01 || tr.Flag1 != 0x02 || tr.Flag2 != 0x01 || tr.Flag3 != 0x01 || tr.Flag4 != 0x01 {
				t.Errorf("unexpected flag bytes %+v", tr)
			}
		})
	}
}

func TestDeviceStrategy_Clean(t *testing.T) {
	f := newDeviceFixture(t, allFeatures)
	ch := tu.NewChannel("Show", f.file(t, "a.mp3", 10), f.file(t, "b.mp3", 10))
	s := f.open(t)
	for _, ep := range ch.Episodes {
		s.AddEpisode(context.Background(), ch, ep)
	}

	tracks := s.PodcastTracks()
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(tracks))
	}
	paths := []string{f.db.PathOnDevice(tracks[0]), f.db.PathOnDevice(tracks[1])}

	if !s.Clean(context.Background()) {
		t.Fatal("Clean failed")
	}
	if len(s.PodcastTracks()) != 0 || len(f.db.Tracks()) != 0 {
		t.Error("expected all tracks removed")
	}
	for _, p := range paths {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("expected %s deleted", p)
		}
	}

	// removing again ignores absent playlist entries and files
	s.RemoveFromDevice(tracks[0], []*device.Playlist{f.db.PodcastsPlaylist()})
}

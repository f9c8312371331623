package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"github.com/desertthunder/podsync/internal/device"
	"github.com/desertthunder/podsync/internal/media"
	"github.com/desertthunder/podsync/internal/models"
	"github.com/desertthunder/podsync/internal/shared"
)

const (
	// reserve for writing the device database back
	databaseReserve int64 = 10 * 1024 * 1024
	// DefaultTrackLength is used when no probe can tell the length.
	DefaultTrackLength int64 = 3_600_000
)

var videoExtensions = []string{"mov", "mp4", "m4v", "divx"}

// DeviceOpts configures a [DeviceStrategy]. Nil capabilities are simply absent.
type DeviceOpts struct {
	Mount        string
	Binding      device.Binding // nil means device databases are unsupported
	Probes       []media.LengthProbe
	Cover        media.CoverExtractor
	Transcoder   media.Transcoder
	Tags         media.TagWriter
	FreeSpace    func(path string) (int64, error) // defaults to [shared.FreeDiskSpace]
	PollAttempts int                              // defaults to 30
	PollInterval time.Duration                    // defaults to one second
}

// DeviceStrategy syncs episodes into the media database of a portable player.
type DeviceStrategy struct {
	Base
	opts DeviceOpts
	fs   afero.Fs

	db       device.Database
	master   *device.Playlist
	podcasts *device.Playlist
}

func NewDeviceStrategy(opts Options, devOpts DeviceOpts) *DeviceStrategy {
	if devOpts.FreeSpace == nil {
		devOpts.FreeSpace = shared.FreeDiskSpace
	}
	if devOpts.PollAttempts <= 0 {
		devOpts.PollAttempts = 30
	}
	if devOpts.PollInterval <= 0 {
		devOpts.PollInterval = time.Second
	}
	s := &DeviceStrategy{
		Base: newBase(opts, false),
		opts: devOpts,
		fs:   afero.NewOsFs(),
	}
	s.logger = shared.WithLogger(s.logger, "target", "device")
	return s
}

// Open waits for the mount to appear, then parses its database.
func (s *DeviceStrategy) Open(ctx context.Context) bool {
	if s.opts.Binding == nil {
		s.logger.Error("device functions not supported", "err", shared.ErrDeviceUnsupported)
		return false
	}

	header := "Connect your device"
	body := "To start the synchronization process, please connect your device to the computer."
	guidanceAfter := s.opts.PollAttempts / 2

	limiter := rate.NewLimiter(rate.Every(s.opts.PollInterval), 1)
	for tries := 0; ; tries++ {
		if err := limiter.Wait(ctx); err != nil {
			s.Cancel()
			return false
		}
		if s.Cancelled() {
			return false
		}

		if info, err := os.Stat(s.opts.Mount); err == nil && info.IsDir() {
			return s.parse()
		}

		switch {
		case tries >= s.opts.PollAttempts:
			s.logger.Error("device did not appear", "mount", s.opts.Mount, "attempts", tries)
			return false
		case tries > guidanceAfter:
			s.status(Status{Episode: "Have you set up your device correctly?", Header: header, Body: body})
		default:
			s.status(Status{Channel: "Please connect your device", Episode: "Waiting for device", Header: header, Body: body})
		}
	}
}

func (s *DeviceStrategy) parse() bool {
	db, err := s.opts.Binding.Parse(s.opts.Mount)
	if err != nil {
		s.logger.Error("could not parse device database", "mount", s.opts.Mount, "err", err)
		return false
	}

	var master *device.Playlist
	if pls := db.Playlists(); len(pls) > 0 {
		master = pls[0]
	}
	podcasts := db.PodcastsPlaylist()
	if master == nil || podcasts == nil {
		s.logger.Error("device database incomplete", "err", shared.ErrPlaylistMissing, "master", master != nil, "podcasts", podcasts != nil)
		db.Close()
		return false
	}

	s.db, s.master, s.podcasts = db, master, podcasts
	s.logger.Info("opened device database", "mount", s.opts.Mount, "tracks", podcasts.Len())
	return true
}

func (s *DeviceStrategy) SyncChannel(ctx context.Context, ch *models.Channel, episodes []*models.Episode, syncPlayed bool) bool {
	return s.syncChannel(ctx, ch, episodes, syncPlayed, s.AddEpisode)
}

// playlistByName returns the playlist called name, creating it on first reference.
func (s *DeviceStrategy) playlistByName(name string) *device.Playlist {
	for _, pl := range s.db.Playlists() {
		if pl.Name == name {
			return pl
		}
	}
	s.logger.Info("new playlist", "name", name)
	pl := s.db.NewPlaylist(name)
	s.db.AddPlaylist(pl)
	return pl
}

func (s *DeviceStrategy) playlistFor(ch *models.Channel) *device.Playlist {
	if ch.IsMusicChannel {
		return s.playlistByName(ch.DevicePlaylistName)
	}
	return s.podcasts
}

// EpisodeIsOnDevice looks for a track with the episode's title and the channel's title as album.
// A match reconciles played state in both directions.
func (s *DeviceStrategy) EpisodeIsOnDevice(ch *models.Channel, ep *models.Episode) bool {
	if s.db == nil {
		return false
	}
	pl := s.playlistFor(ch)
	if pl == nil {
		return false
	}
	for _, t := range s.db.TracksOf(pl) {
		if t.Title != ep.Title || t.Album != ch.Title {
			continue
		}
		if t.PlayCount > 0 {
			s.logger.Info("episode played on device", "plays", t.PlayCount, "title", ep.Title)
			s.markPlayed(ep)
		}
		s.SetPodcastFlags(t, ep)
		return true
	}
	return false
}

// SetPodcastFlags pushes the local played state onto t.
func (s *DeviceStrategy) SetPodcastFlags(t *device.Track, ep *models.Episode) {
	if s.db != nil && !s.db.Features().PodcastFlags {
		s.fail(shared.ErrLegacyFlags, "Could not set podcast flags")
		return
	}

	if ep.Played {
		t.MarkUnplayed = device.MarkPlayed
		if t.PlayCount == 0 {
			t.PlayCount = 1
		}
	} else {
		t.MarkUnplayed = device.MarkUnplayed
	}

	t.RememberPlaybackPosition = 0x01
	t.Flag1 = 0x02
	t.Flag2 = 0x01
	t.Flag3 = 0x01
	t.Flag4 = 0x01
}

func (s *DeviceStrategy) AddEpisode(ctx context.Context, ch *models.Channel, ep *models.Episode) bool {
	if s.db == nil {
		return false
	}
	if !s.Base.AddEpisode(ctx, ch, ep) {
		return false
	}

	if s.EpisodeIsOnDevice(ch, ep) {
		s.status(Status{Episode: fmt.Sprintf("Already on device: %s", ep.Title)})
		return true
	}

	original := ep.LocalPath
	local := original

	free, err := s.opts.FreeSpace(s.opts.Mount)
	if err != nil {
		s.logger.Warn("could not query free space", "mount", s.opts.Mount, "err", err)
	}
	available := free - databaseReserve
	needed := shared.CalculateSize(s.fs, local)
	if needed > available {
		s.logger.Error("not enough space", "mount", s.opts.Mount,
			"available", shared.FormatSize(available), "needed", shared.FormatSize(needed))
		s.fail(shared.ErrNoSpace, fmt.Sprintf("Error copying %s: Not enough free disk space on %s", ep.Title, s.opts.Mount))
		return false
	}

	s.logger.Info("adding item", "title", ep.Title, "channel", ch.Title)
	if _, ext := shared.SplitExt(original); s.opts.Transcoder != nil && s.opts.Transcoder.Supports(ext) {
		converted, ok := s.transcode(ctx, ch, ep)
		if !ok {
			return true
		}
		local = converted
		defer s.removeTemp(converted)
	}

	t := s.db.NewTrack()
	t.Artist = ch.Title
	s.SetPodcastFlags(t, ep)
	if pub, ok := ep.PublishedAt(); ok {
		t.TimeReleased = s.releaseTime(pub.Unix())
	}
	t.Title = ep.Title
	t.Album = ch.Title
	t.Length = s.trackLength(ctx, local)
	t.Description = ep.Description
	t.PodcastURL = ep.URL
	t.PodcastRSS = ch.URL
	if info, err := os.Stat(local); err == nil {
		t.Size = info.Size()
	}
	t.FileType = "mp3"
	s.setMediaType(t, device.MediaAudio)

	s.db.AddTrack(t)
	pl := s.playlistFor(ch)
	s.db.AddTrackToPlaylist(pl, t)
	s.setCoverArt(t, local, original)

	if _, ext := shared.SplitExt(local); isVideo(ext) {
		t.FileType = "m4v"
		s.setMediaType(t, device.MediaVideo)
	}

	playlists := []*device.Playlist{pl}
	if ch.IsMusicChannel {
		s.db.AddTrackToPlaylist(s.master, t)
		playlists = append(playlists, s.master)
	}

	if err := s.db.CopyFileToDevice(t, local); err != nil {
		s.fail(fmt.Errorf("%w: %w", shared.ErrDeviceCopy, err), fmt.Sprintf("Could not add %s", ep.Title))
		s.RemoveFromDevice(t, playlists)
		return true
	}
	s.logger.Info("added", "title", ep.Title, "path", t.Path)

	s.status(Status{Episode: fmt.Sprintf("Done: %s", ep.Title)})
	return true
}

// transcode converts the episode file. ok is false when no output was produced.
func (s *DeviceStrategy) transcode(ctx context.Context, ch *models.Channel, ep *models.Episode) (string, bool) {
	s.logger.Info("converting", "path", ep.LocalPath)
	out, err := s.opts.Transcoder.Convert(ctx, ep.LocalPath, func(percent int) {
		s.progress(SubEpisodeProgress, percent, 100)
		s.status(convertingStatus(ep.Title, percent))
	})
	if err == nil && out == "" {
		err = errors.New("no output file")
	}
	if err != nil {
		if !errors.Is(err, shared.ErrTranscode) {
			err = fmt.Errorf("%w: %w", shared.ErrTranscode, err)
		}
		s.fail(err, fmt.Sprintf("Error converting %s", ep.Title))
		return "", false
	}

	if s.opts.Tags != nil {
		if err := s.opts.Tags.Update(out, ep.Title, ch.Title); err != nil {
			s.fail(err, "Could not set metadata on converted file")
		}
	}
	s.status(Status{Episode: fmt.Sprintf("Copying %s", ep.Title)})
	return out, true
}

func (s *DeviceStrategy) removeTemp(path string) {
	s.logger.Info("removing temporary file", "path", path)
	if err := os.Remove(path); err != nil {
		s.fail(fmt.Errorf("%w: %w", shared.ErrTempCleanup, err), "Could not remove temporary file")
	}
}

// trackLength asks each probe in turn, falling back to [DefaultTrackLength] milliseconds.
func (s *DeviceStrategy) trackLength(ctx context.Context, path string) int64 {
	d, err := media.FirstLength(ctx, s.opts.Probes, path)
	if err != nil || d.Milliseconds() <= 0 {
		s.logger.Info("could not find track length, using default", "path", path, "length", DefaultTrackLength, "err", err)
		return DefaultTrackLength
	}
	return d.Milliseconds()
}

// releaseTime converts unix seconds with the binding when it can, else by epoch offset.
func (s *DeviceStrategy) releaseTime(unix int64) uint32 {
	if s.db.Features().EpochConversion {
		if v, err := s.db.HostTimeToDevice(unix); err == nil {
			return v
		}
	}
	v, err := device.ToDeviceTime(unix)
	if err != nil {
		s.logger.Warn("release time out of range", "unix", unix, "err", err)
		return 0
	}
	return v
}

func (s *DeviceStrategy) setMediaType(t *device.Track, v uint32) {
	if s.db.Features().MediaTypeField {
		t.MediaType = v
		return
	}
	t.Unk208 = v
}

// setCoverArt attaches embedded artwork, else a "cover" file next to the original. Never fatal.
func (s *DeviceStrategy) setCoverArt(t *device.Track, local, original string) {
	if s.opts.Cover != nil {
		img, err := s.opts.Cover.CoverArt(local)
		if err == nil {
			if s.setImage(t, img) {
				return
			}
		} else {
			s.fail(err, "Error reading cover art")
		}
	}

	cover := filepath.Join(filepath.Dir(original), "cover")
	if info, err := os.Stat(cover); err == nil && info.Mode().IsRegular() {
		if err := s.db.SetThumbnail(t, cover); err != nil {
			s.fail(fmt.Errorf("%w: %w", shared.ErrCoverArt, err), "Error setting cover art")
		}
	}
}

func (s *DeviceStrategy) setImage(t *device.Track, img *media.Image) bool {
	f, err := afero.TempFile(s.fs, "", "podsync-cover-*"+img.Ext())
	if err != nil {
		s.fail(fmt.Errorf("%w: %w", shared.ErrCoverArt, err), "Error writing cover art")
		return false
	}
	defer s.fs.Remove(f.Name())

	_, err = f.Write(img.Data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = s.db.SetThumbnail(t, f.Name())
	}
	if err != nil {
		s.fail(fmt.Errorf("%w: %w", shared.ErrCoverArt, err), "Error setting cover art")
		return false
	}
	return true
}

func isVideo(ext string) bool {
	ext = strings.ToLower(ext)
	for _, v := range videoExtensions {
		if ext == v {
			return true
		}
	}
	return false
}

// RemoveFromDevice drops t from playlists and the database and deletes its file.
// Already-absent memberships and missing files are not errors.
func (s *DeviceStrategy) RemoveFromDevice(t *device.Track, playlists []*device.Playlist) {
	s.logger.Info("removing track from device", "title", t.Title)
	s.status(Status{Channel: fmt.Sprintf("Removing %s", t.Title)})

	path := s.db.PathOnDevice(t)
	for _, pl := range playlists {
		if pl == nil {
			continue
		}
		if err := s.db.RemoveTrackFromPlaylist(pl, t); err != nil && !errors.Is(err, device.ErrTrackNotInPlaylist) {
			s.logger.Warn("could not remove from playlist", "playlist", pl.Name, "err", err)
		}
	}
	s.db.UnlinkTrack(t)

	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("could not delete track file", "path", path, "err", err)
	}
}

// PodcastTracks lists the tracks in the podcasts playlist.
func (s *DeviceStrategy) PodcastTracks() []*device.Track {
	if s.db == nil {
		return nil
	}
	return s.db.TracksOf(s.podcasts)
}

// RemoveTracks removes each track from the podcasts playlist and the device.
func (s *DeviceStrategy) RemoveTracks(ctx context.Context, tracks []*device.Track) bool {
	if s.db == nil {
		return false
	}
	for i, t := range tracks {
		if s.observe(ctx) {
			return false
		}
		s.progress(OverallProgress, i+1, len(tracks))
		s.RemoveFromDevice(t, []*device.Playlist{s.podcasts})
	}
	return true
}

// Clean removes every podcast track from the device.
func (s *DeviceStrategy) Clean(ctx context.Context) bool {
	return s.RemoveTracks(ctx, s.PodcastTracks())
}

// Close writes the database back before the shared close.
func (s *DeviceStrategy) Close(success, accessError, cleaned bool) Completion {
	if s.db != nil {
		s.status(Status{Channel: "Saving device database"})
		if err := s.db.WriteBack(); err != nil {
			s.logger.Error("could not write device database", "err", err)
			s.recordError(fmt.Sprintf("Error saving device database: %v", err))
			success = false
		}
		if err := s.db.Close(); err != nil {
			s.logger.Warn("could not close device database", "err", err)
		}
		s.db = nil
	}
	return s.Base.Close(success, accessError, cleaned)
}

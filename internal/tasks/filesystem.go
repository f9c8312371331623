package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/desertthunder/podsync/internal/models"
	"github.com/desertthunder/podsync/internal/shared"
)

const (
	copyBufferSize  = 1024 * 1024
	maxFilenameBase = 50
)

// FilesystemOpts configures a [FilesystemStrategy].
type FilesystemOpts struct {
	Destination       string
	ChannelSubfolders bool
	Fs                afero.Fs // defaults to the OS filesystem
}

// FilesystemStrategy copies episodes into a plain directory tree such as a mounted player.
//
// A file that already exists at the destination counts as synced; contents are never compared.
type FilesystemStrategy struct {
	Base
	destination string
	subfolders  bool
	fs          afero.Fs
}

func NewFilesystemStrategy(opts Options, fsOpts FilesystemOpts) *FilesystemStrategy {
	if fsOpts.Fs == nil {
		fsOpts.Fs = afero.NewOsFs()
	}
	s := &FilesystemStrategy{
		Base:        newBase(opts, true),
		destination: fsOpts.Destination,
		subfolders:  fsOpts.ChannelSubfolders,
		fs:          fsOpts.Fs,
	}
	s.logger = shared.WithLogger(s.logger, "target", "filesystem")
	return s
}

// Open succeeds iff the destination is an existing writable directory.
func (s *FilesystemStrategy) Open(ctx context.Context) bool {
	if s.observe(ctx) {
		return false
	}
	info, err := s.fs.Stat(s.destination)
	if err != nil || !info.IsDir() {
		s.logger.Error("destination is not a directory", "path", s.destination, "err", err)
		return false
	}
	if !shared.DirectoryIsWritable(s.fs, s.destination) {
		s.logger.Error("destination is not writable", "path", s.destination)
		return false
	}
	return true
}

func (s *FilesystemStrategy) SyncChannel(ctx context.Context, ch *models.Channel, episodes []*models.Episode, syncPlayed bool) bool {
	return s.syncChannel(ctx, ch, episodes, syncPlayed, s.AddEpisode)
}

func (s *FilesystemStrategy) AddEpisode(ctx context.Context, ch *models.Channel, ep *models.Episode) bool {
	if !s.Base.AddEpisode(ctx, ch, ep) {
		return false
	}

	folder := s.destination
	if s.subfolders {
		folder = filepath.Join(s.destination, Sanitize(ch.Title))
	}
	to := filepath.Join(folder, DestinationName(ep))

	if err := s.fs.MkdirAll(folder, 0755); err != nil {
		s.logger.Warn("could not create folder", "path", folder, "err", err)
	}

	if exists, _ := afero.Exists(s.fs, to); exists {
		s.logger.Debug("already synced", "path", to)
		return true
	}

	s.logger.Info("copying", "from", filepath.Base(ep.LocalPath), "to", to)
	return s.CopyFileProgress(ctx, ep.LocalPath, to)
}

// CopyFileProgress copies from to to in fixed chunks, reporting sub-episode progress after every read.
// The copy ends on an empty read, so the last update always repeats the final size.
// Any failure, and cancellation between chunks, leaves no partial file behind.
func (s *FilesystemStrategy) CopyFileProgress(ctx context.Context, from, to string) bool {
	out, err := s.fs.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		s.fail(fmt.Errorf("%w: %w", shared.ErrOpenFile, err), openErrorMessage(to, err))
		return false
	}

	in, err := s.fs.Open(from)
	if err != nil {
		out.Close()
		s.fs.Remove(to)
		s.fail(fmt.Errorf("%w: %w", shared.ErrOpenFile, err), openErrorMessage(from, err))
		return false
	}
	defer in.Close()

	var total int64
	if info, err := in.Stat(); err == nil {
		total = info.Size()
	}

	buf := make([]byte, copyBufferSize)
	var copied int64
	for {
		n, rerr := in.Read(buf)
		copied += int64(n)
		s.progress(SubEpisodeProgress, int(copied), int(total))

		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				s.abortCopy(out, to)
				s.fail(fmt.Errorf("%w: %w", shared.ErrWriteFile, werr), fmt.Sprintf("Error writing %s: %s", to, reason(werr)))
				return false
			}
		}

		if n == 0 && (rerr == io.EOF || rerr == nil) {
			break
		}
		if rerr != nil && rerr != io.EOF {
			s.abortCopy(out, to)
			s.fail(fmt.Errorf("%w: %w", shared.ErrOpenFile, rerr), fmt.Sprintf("Error reading %s: %s", from, reason(rerr)))
			return false
		}
		if s.observe(ctx) {
			s.logger.Info("copy cancelled", "path", to, "copied", shared.FormatSize(copied))
			s.abortCopy(out, to)
			return false
		}
	}

	if err := out.Close(); err != nil {
		s.fs.Remove(to)
		s.fail(fmt.Errorf("%w: %w", shared.ErrWriteFile, err), fmt.Sprintf("Error writing %s: %s", to, reason(err)))
		return false
	}
	return true
}

// abortCopy closes out and removes the partially written file.
func (s *FilesystemStrategy) abortCopy(out afero.File, to string) {
	out.Close()
	s.logger.Info("trying to remove partially copied file", "path", to)
	if err := s.fs.Remove(to); err != nil {
		s.fail(fmt.Errorf("%w: %w", shared.ErrPartialUnlink, err), fmt.Sprintf("Error removing %s", to))
		return
	}
	s.logger.Info("removed partially copied file", "path", to)
}

// CleanPlaylist deletes every visible top-level entry under the destination.
func (s *FilesystemStrategy) CleanPlaylist(ctx context.Context) bool {
	entries, err := afero.ReadDir(s.fs, s.destination)
	if err != nil {
		s.fail(fmt.Errorf("%w: %w", shared.ErrTargetUnavailable, err), fmt.Sprintf("Error reading %s: %s", s.destination, reason(err)))
		return false
	}

	var targets []os.FileInfo
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), ".") {
			targets = append(targets, e)
		}
	}

	for i, e := range targets {
		if s.observe(ctx) {
			return false
		}
		s.progress(OverallProgress, i+1, len(targets))
		s.status(Status{Channel: fmt.Sprintf("Synchronizing %s", e.Name()), Episode: "Removing files"})

		path := filepath.Join(s.destination, e.Name())
		s.logger.Info("deleting", "path", path)
		if err := s.fs.RemoveAll(path); err != nil {
			s.logger.Error("could not delete", "path", path, "err", err)
			s.recordError(fmt.Sprintf("Error removing %s: %s", path, reason(err)))
		}
		s.syncFS()
	}
	return true
}

// Clean empties the destination.
func (s *FilesystemStrategy) Clean(ctx context.Context) bool {
	return s.CleanPlaylist(ctx)
}

// Sanitize replaces every character outside [A-Za-z0-9 _.-] with an underscore.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '_', r == '.', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}

// DestinationName builds the target filename for ep: its sync name cut to 50 characters,
// the lowercased source extension, sanitized. An empty name falls back to the source base name.
func DestinationName(ep *models.Episode) string {
	base := []rune(ep.SyncFilename())
	if len(base) > maxFilenameBase {
		base = base[:maxFilenameBase]
	}
	if len(base) == 0 {
		return filepath.Base(ep.LocalPath)
	}

	name := string(base)
	if _, ext := shared.SplitExt(ep.LocalPath); ext != "" {
		name += "." + strings.ToLower(ext)
	}
	return Sanitize(name)
}

func openErrorMessage(path string, err error) string {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return fmt.Sprintf("Error opening %s: %s", pe.Path, reason(pe.Err))
	}
	return fmt.Sprintf("Error opening %s: %s", path, err)
}

// reason strips the operation and path from filesystem errors.
func reason(err error) string {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err.Error()
	}
	return err.Error()
}

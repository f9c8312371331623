package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/podsync/internal/device"
	"github.com/desertthunder/podsync/internal/formatter"
	"github.com/desertthunder/podsync/internal/media"
	"github.com/desertthunder/podsync/internal/shared"
	"github.com/desertthunder/podsync/internal/tasks"
)

// SyncFilesystem copies downloaded episodes into the destination folder.
func (r *Runner) SyncFilesystem(ctx context.Context, cmd *cli.Command) error {
	channels, err := r.loadChannels(cmd.String("channel"))
	if err != nil {
		return err
	}

	fsOpts := r.filesystemOpts(cmd.String("dest"))
	if cmd.IsSet("subfolders") {
		fsOpts.ChannelSubfolders = cmd.Bool("subfolders")
	}

	job := tasks.NewJob(r.logger, r.config.Sync.SyncPlayedEpisodes)
	r.writePlainHeader("Syncing to " + fsOpts.Destination)

	sum := r.runJob(func(updates chan<- tasks.ProgressUpdate) *tasks.Summary {
		s := tasks.NewFilesystemStrategy(r.strategyOptions(updates, job.Logger), fsOpts)
		return job.Sync(ctx, s, channels)
	})
	return summaryError(sum)
}

// SyncDevice copies downloaded episodes into the device database at the mount point.
func (r *Runner) SyncDevice(ctx context.Context, cmd *cli.Command) error {
	channels, err := r.loadChannels(cmd.String("channel"))
	if err != nil {
		return err
	}

	devOpts := r.deviceOpts(cmd.String("mount"))
	job := tasks.NewJob(r.logger, r.config.Sync.SyncPlayedEpisodes)
	r.writePlainHeader("Syncing to device at " + devOpts.Mount)

	sum := r.runJob(func(updates chan<- tasks.ProgressUpdate) *tasks.Summary {
		s := tasks.NewDeviceStrategy(r.strategyOptions(updates, job.Logger), devOpts)
		return job.Sync(ctx, s, channels)
	})
	return summaryError(sum)
}

// CleanFilesystem removes everything a folder sync produced.
func (r *Runner) CleanFilesystem(ctx context.Context, cmd *cli.Command) error {
	fsOpts := r.filesystemOpts(cmd.String("dest"))
	job := tasks.NewJob(r.logger, false)
	r.writePlainHeader("Cleaning " + fsOpts.Destination)

	sum := r.runJob(func(updates chan<- tasks.ProgressUpdate) *tasks.Summary {
		return job.Clean(ctx, tasks.NewFilesystemStrategy(r.strategyOptions(updates, job.Logger), fsOpts))
	})
	return summaryError(sum)
}

// DeviceClean removes every podcast track from the device.
func (r *Runner) DeviceClean(ctx context.Context, cmd *cli.Command) error {
	devOpts := r.deviceOpts(cmd.String("mount"))
	job := tasks.NewJob(r.logger, false)
	r.writePlainHeader("Cleaning podcasts on " + devOpts.Mount)

	sum := r.runJob(func(updates chan<- tasks.ProgressUpdate) *tasks.Summary {
		return job.Clean(ctx, tasks.NewDeviceStrategy(r.strategyOptions(updates, job.Logger), devOpts))
	})
	return summaryError(sum)
}

// DeviceInit creates the device database at the mount point.
func (r *Runner) DeviceInit(ctx context.Context, cmd *cli.Command) error {
	mount := r.mount(cmd.String("mount"))
	if err := device.Init(mount); err != nil {
		return err
	}
	r.logger.Info("device database initialized", "mount", mount)
	return r.writePlain("✓ Device database ready at %s\n", device.DatabasePath(mount))
}

// DeviceTracks lists the tracks of a device playlist.
func (r *Runner) DeviceTracks(ctx context.Context, cmd *cli.Command) error {
	f, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	mount := r.mount(cmd.String("mount"))
	db, err := r.binding.Parse(mount)
	if err != nil {
		return fmt.Errorf("failed to read device database: %w", err)
	}
	defer db.Close()

	pl := db.PodcastsPlaylist()
	if name := cmd.String("playlist"); name != "" {
		pl = nil
		for _, candidate := range db.Playlists() {
			if strings.EqualFold(candidate.Name, name) {
				pl = candidate
				break
			}
		}
		if pl == nil {
			return fmt.Errorf("%w: %s", shared.ErrPlaylistMissing, name)
		}
	}
	if pl == nil {
		return fmt.Errorf("%w: podcasts", shared.ErrPlaylistMissing)
	}

	data, err := formatter.Tracks(db, pl, f)
	if err != nil {
		return err
	}
	return r.emit(data, cmd.String("output"))
}

func (r *Runner) mount(flag string) string {
	if flag != "" {
		return flag
	}
	return r.config.Device.Mount
}

func (r *Runner) strategyOptions(updates chan<- tasks.ProgressUpdate, logger *log.Logger) tasks.Options {
	opts := tasks.Options{
		Updates:          updates,
		Logger:           logger,
		MarkPlayedOnSync: r.config.Sync.MarkPlayedOnSync,
		ChannelPause:     r.config.Sync.ChannelPause.Duration,
	}
	if r.library != nil {
		opts.Library = r.library
	}
	return opts
}

func (r *Runner) filesystemOpts(dest string) tasks.FilesystemOpts {
	if dest == "" {
		dest = r.config.Filesystem.Destination
	}
	return tasks.FilesystemOpts{
		Destination:       dest,
		ChannelSubfolders: r.config.Filesystem.ChannelSubfolders,
		Fs:                r.fs,
	}
}

func (r *Runner) deviceOpts(mount string) tasks.DeviceOpts {
	cfg := r.config.Media
	return tasks.DeviceOpts{
		Mount:        r.mount(mount),
		Binding:      r.binding,
		Probes:       media.DefaultProbes(cfg.FFprobePath),
		Cover:        media.ID3{},
		Transcoder:   media.NewFFmpeg(cfg),
		Tags:         media.ID3{},
		PollAttempts: r.config.Device.PollAttempts,
		PollInterval: r.config.Device.PollInterval.Duration,
	}
}

// runJob drains progress updates to the output while run executes, then prints the summary.
func (r *Runner) runJob(run func(updates chan<- tasks.ProgressUpdate) *tasks.Summary) *tasks.Summary {
	updates := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range updates {
			r.printUpdate(update)
		}
	}()

	sum := run(updates)
	close(updates)
	<-done

	r.writePlain("\n")
	r.output.Write(formatter.Summary(sum))
	return sum
}

func (r *Runner) printUpdate(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.StatusPhase:
		s, _ := update.Data.(tasks.Status)
		if s.Header != "" {
			r.writePlain("! %s\n", s.Header)
			if s.Body != "" {
				r.writePlain("  %s\n", s.Body)
			}
			return
		}
		if update.Message != "" {
			r.writePlain("• %s\n", update.Message)
		}
	case tasks.OverallProgress:
		if update.Total > 0 {
			r.writePlain("[%d/%d]\n", update.Step, update.Total)
		}
	}
}

// summaryError turns an unsuccessful job into a command error.
func summaryError(sum *tasks.Summary) error {
	c := sum.Completion
	switch {
	case c.AccessError:
		return fmt.Errorf("%w: %s", shared.ErrTargetUnavailable, strings.Join(c.Errors, "; "))
	case !c.Success:
		return fmt.Errorf("%w: %s", shared.ErrSyncFailed, c.String())
	}
	return nil
}

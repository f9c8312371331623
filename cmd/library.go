package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/podsync/internal/formatter"
	"github.com/desertthunder/podsync/internal/models"
	"github.com/desertthunder/podsync/internal/shared"
)

// ChannelAdd subscribes the library to a channel.
func (r *Runner) ChannelAdd(ctx context.Context, cmd *cli.Command) error {
	title := strings.TrimSpace(cmd.StringArg("title"))
	url := strings.TrimSpace(cmd.StringArg("url"))
	if title == "" || url == "" {
		return fmt.Errorf("%w: channel title and url are required", shared.ErrMissingArgument)
	}

	lib, err := r.openLibrary()
	if err != nil {
		return err
	}

	playlist := cmd.String("playlist")
	ch := &models.Channel{
		Title:              title,
		URL:                url,
		IsMusicChannel:     playlist != "",
		DevicePlaylistName: playlist,
		SyncToDevices:      !cmd.Bool("no-sync"),
	}
	if err := lib.Channels.Create(ch); err != nil {
		return err
	}

	r.logger.Info("channel added", "id", ch.ID, "title", ch.Title)
	return r.writePlain("✓ Added %s (%s)\n", ch.Title, ch.ID)
}

// ChannelList prints every channel with episode counts.
func (r *Runner) ChannelList(ctx context.Context, cmd *cli.Command) error {
	channels, err := r.loadChannels("")
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(channels, true)
	}

	f, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	data, err := formatter.Channels(channels, f)
	if err != nil {
		return err
	}
	return r.emit(data, cmd.String("output"))
}

// EpisodeAdd records an episode, optionally with its downloaded file.
func (r *Runner) EpisodeAdd(ctx context.Context, cmd *cli.Command) error {
	channels, err := r.loadChannels(cmd.String("channel"))
	if err != nil {
		return err
	}
	ch := channels[0]

	local := cmd.String("file")
	if local != "" {
		if local, err = filepath.Abs(local); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
	}

	ep := &models.Episode{
		ChannelID:   ch.ID,
		Title:       cmd.String("title"),
		Description: cmd.String("description"),
		PubDate:     cmd.String("pub-date"),
		URL:         cmd.String("url"),
		LocalPath:   local,
	}
	if ep.Title == "" {
		ep.Title = filepath.Base(ep.URL)
	}
	if err := r.library.Episodes.Create(ep); err != nil {
		return err
	}

	r.logger.Info("episode added", "channel", ch.Title, "title", ep.Title, "downloaded", ep.IsDownloaded())
	return r.writePlain("✓ Added %s to %s\n", ep.Title, ch.Title)
}

// EpisodeList prints the episodes of one channel.
func (r *Runner) EpisodeList(ctx context.Context, cmd *cli.Command) error {
	channels, err := r.loadChannels(cmd.String("channel"))
	if err != nil {
		return err
	}

	f, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	data, err := formatter.Episodes(channels[0], f)
	if err != nil {
		return err
	}
	return r.emit(data, cmd.String("output"))
}

// EpisodePlayed marks the episode with the given enclosure URL as played.
func (r *Runner) EpisodePlayed(ctx context.Context, cmd *cli.Command) error {
	url := cmd.StringArg("url")
	if url == "" {
		return fmt.Errorf("%w: episode url is required", shared.ErrMissingArgument)
	}

	lib, err := r.openLibrary()
	if err != nil {
		return err
	}
	if err := lib.MarkPlayed(url); err != nil {
		return err
	}
	return r.writePlain("✓ Marked as played: %s\n", url)
}

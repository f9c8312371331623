package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/podsync/internal/models"
	"github.com/desertthunder/podsync/internal/shared"
	"github.com/desertthunder/podsync/internal/tasks"
	"github.com/desertthunder/podsync/internal/ui"
)

// TUI launches the interactive terminal UI for syncing channels.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	opts, err := r.tuiOptions(cmd.String("target"))
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	r.SetLogger(shared.NewFileLogger(r.config.Log))

	model := ui.NewModel(ctx, opts)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// tuiOptions wires the chosen target into a [ui.SyncFunc].
func (r *Runner) tuiOptions(target string) (ui.Options, error) {
	channels, err := r.loadChannels("")
	if err != nil {
		return ui.Options{}, err
	}

	var (
		label     string
		canCancel bool
		newTarget func(tasks.Options) tasks.Strategy
	)
	switch target {
	case "", "fs":
		fsOpts := r.filesystemOpts("")
		label, canCancel = fsOpts.Destination, true
		newTarget = func(o tasks.Options) tasks.Strategy { return tasks.NewFilesystemStrategy(o, fsOpts) }
	case "device":
		devOpts := r.deviceOpts("")
		label = "device at " + devOpts.Mount
		newTarget = func(o tasks.Options) tasks.Strategy { return tasks.NewDeviceStrategy(o, devOpts) }
	default:
		return ui.Options{}, fmt.Errorf("%w: unknown sync target %q", shared.ErrInvalidArgument, target)
	}

	run := func(ctx context.Context, chs []*models.Channel, updates chan<- tasks.ProgressUpdate) *tasks.Summary {
		job := tasks.NewJob(r.logger, r.config.Sync.SyncPlayedEpisodes)
		return job.Sync(ctx, newTarget(r.strategyOptions(updates, job.Logger)), chs)
	}

	return ui.Options{
		Target:    label,
		Channels:  channels,
		Run:       run,
		CanCancel: canCancel,
	}, nil
}

package tasks

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/podsync/internal/models"
	"github.com/desertthunder/podsync/internal/shared"
)

// Library records played state in the local library.
type Library interface {
	MarkPlayed(url string) error
}

// Strategy is one sync target.
//
// A job calls Open, SyncChannel once per channel, then Close. Close is safe without a
// successful Open.
type Strategy interface {
	Open(ctx context.Context) bool
	SyncChannel(ctx context.Context, ch *models.Channel, episodes []*models.Episode, syncPlayed bool) bool
	AddEpisode(ctx context.Context, ch *models.Channel, ep *models.Episode) bool
	Close(success, accessError, cleaned bool) Completion

	Cancel()
	Cancelled() bool
	CanCancel() bool
	Errors() []string
}

// Cleaner is a strategy that can also empty its target.
type Cleaner interface {
	Strategy
	Clean(ctx context.Context) bool
}

// Options configures the behaviour shared by all strategies.
type Options struct {
	Library          Library
	Updates          chan<- ProgressUpdate
	Logger           *log.Logger
	MarkPlayedOnSync bool
	ChannelPause     time.Duration // pause after each completed channel; defaults to one second
	Sync             func()        // flushes filesystem buffers; defaults to [shared.SyncFilesystems]
}

// Base implements the target-agnostic part of the sync protocol.
type Base struct {
	library          Library
	updates          chan<- ProgressUpdate
	logger           *log.Logger
	markPlayedOnSync bool
	channelPause     time.Duration
	syncFS           func()
	canCancel        bool

	cancelled atomic.Bool
	mu        sync.Mutex
	errors    []string
}

func newBase(opts Options, canCancel bool) Base {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.ChannelPause == 0 {
		opts.ChannelPause = time.Second
	}
	if opts.Sync == nil {
		opts.Sync = shared.SyncFilesystems
	}
	return Base{
		library:          opts.Library,
		updates:          opts.Updates,
		logger:           opts.Logger,
		markPlayedOnSync: opts.MarkPlayedOnSync,
		channelPause:     opts.ChannelPause,
		syncFS:           opts.Sync,
		canCancel:        canCancel,
	}
}

// Cancel requests cooperative cancellation. It is never cleared.
func (b *Base) Cancel() { b.cancelled.Store(true) }

func (b *Base) Cancelled() bool { return b.cancelled.Load() }

// CanCancel reports whether the target honours cancellation mid-transfer.
func (b *Base) CanCancel() bool { return b.canCancel }

// Errors returns the recorded failure messages in order.
func (b *Base) Errors() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.errors)
}

func (b *Base) recordError(msg string) {
	b.mu.Lock()
	b.errors = append(b.errors, msg)
	b.mu.Unlock()
}

// fail applies the failure policy to err. msg is what the user sees in the error list.
func (b *Base) fail(err error, msg string) Outcome {
	outcome := Classify(err)
	switch outcome {
	case Ignore:
		b.logger.Warn(msg, "err", err)
	case EpisodeFailure:
		b.logger.Error(msg, "err", err)
		b.recordError(msg)
	case JobFailure:
		b.logger.Error(msg, "err", err, "outcome", outcome)
		b.recordError(msg)
		b.Cancel()
	}
	return outcome
}

// observe folds context cancellation into the cancelled flag and reports it.
func (b *Base) observe(ctx context.Context) bool {
	if ctx.Err() != nil {
		b.Cancel()
	}
	return b.Cancelled()
}

func (b *Base) progress(phase Phase, step, total int) {
	sendProgress(b.updates, progressUpdate(phase, step, total))
}

func (b *Base) status(s Status) {
	sendProgress(b.updates, statusUpdate(s))
}

func (b *Base) markPlayed(ep *models.Episode) {
	ep.Played = true
	if b.library == nil {
		return
	}
	if err := b.library.MarkPlayed(ep.URL); err != nil {
		b.logger.Warn("could not mark episode played", "url", ep.URL, "err", err)
	}
}

// syncChannel drives add over the channel's eligible episodes.
// A nil episodes slice means every episode of the channel.
func (b *Base) syncChannel(
	ctx context.Context,
	ch *models.Channel,
	episodes []*models.Episode,
	syncPlayed bool,
	add func(context.Context, *models.Channel, *models.Episode) bool,
) bool {
	if (!ch.SyncToDevices && episodes == nil) || b.observe(ctx) {
		return false
	}
	if episodes == nil {
		episodes = ch.Episodes
	}

	total := len(episodes)
	for i, ep := range episodes {
		if b.observe(ctx) {
			return false
		}
		b.progress(EpisodeProgress, i, total)
		if !eligible(ep, syncPlayed) {
			continue
		}
		if !add(ctx, ch, ep) {
			return false
		}
	}
	b.progress(EpisodeProgress, total, total)

	b.status(channelCompletedStatus(ch.Title))
	b.pause(ctx)
	return true
}

func eligible(ep *models.Episode, syncPlayed bool) bool {
	if !ep.IsDownloaded() {
		return false
	}
	if kind := ep.FileKind(); kind != models.KindAudio && kind != models.KindVideo {
		return false
	}
	return syncPlayed || !ep.Played
}

func (b *Base) pause(ctx context.Context) {
	t := time.NewTimer(b.channelPause)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		b.Cancel()
	}
}

// AddEpisode applies the shared side effects of a transfer. Strategies call it first.
func (b *Base) AddEpisode(ctx context.Context, ch *models.Channel, ep *models.Episode) bool {
	if b.observe(ctx) {
		return false
	}

	channelText := ch.Title
	if ch.IsMusicChannel {
		channelText = fmt.Sprintf("%s (to %q)", ch.Title, ch.DevicePlaylistName)
	}

	if b.markPlayedOnSync {
		b.logger.Info("marking as played on transfer", "url", ep.URL)
		b.markPlayed(ep)
	}

	b.status(copyingStatus(ep.Title, channelText))
	return true
}

// Close flushes buffers, then emits and returns the completion.
func (b *Base) Close(success, accessError, cleaned bool) Completion {
	b.status(Status{Channel: "Writing data to disk"})
	b.syncFS()

	c := Completion{
		Success:     success,
		AccessError: accessError,
		Cleaned:     cleaned,
		Errors:      b.Errors(),
	}
	sendProgress(b.updates, completionUpdate(c))
	return c
}

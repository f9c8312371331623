package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/podsync/internal/models"
	"github.com/desertthunder/podsync/internal/shared"
)

// Job is one Open..Close run against a sync target.
type Job struct {
	ID         string
	Logger     *log.Logger // tagged with the job ID; pass it to the strategy's [Options]
	SyncPlayed bool
}

// Summary reports what a job did.
type Summary struct {
	JobID      string
	Channels   int // channels considered
	Synced     int // channels that ran to completion
	Elapsed    time.Duration
	Completion Completion
}

// NewJob creates a job with a fresh ID.
func NewJob(logger *log.Logger, syncPlayed bool) *Job {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	id := shared.GenerateID()
	return &Job{
		ID:         id,
		Logger:     shared.WithLogger(logger, "job", id[:8]),
		SyncPlayed: syncPlayed,
	}
}

// Sync opens s, syncs every channel in order and closes s.
//
// Channels that are not enabled for sync are skipped. The run stops at the first
// cancellation, which includes job-fatal errors.
func (j *Job) Sync(ctx context.Context, s Strategy, channels []*models.Channel) *Summary {
	start := time.Now()
	sum := &Summary{JobID: j.ID, Channels: len(channels)}

	j.Logger.Info("starting sync", "channels", len(channels))
	if !s.Open(ctx) {
		j.Logger.Error("sync target unavailable")
		sum.Completion = s.Close(false, true, false)
		sum.Elapsed = time.Since(start)
		return sum
	}

	for _, ch := range channels {
		if s.SyncChannel(ctx, ch, nil, j.SyncPlayed) {
			sum.Synced++
			continue
		}
		if s.Cancelled() {
			j.Logger.Warn("sync cancelled", "channel", ch.Title)
			break
		}
		j.Logger.Debug("channel skipped", "channel", ch.Title)
	}

	sum.Completion = s.Close(!s.Cancelled(), false, false)
	sum.Elapsed = time.Since(start)
	j.Logger.Info("sync finished", "synced", sum.Synced, "errors", len(sum.Completion.Errors), "elapsed", sum.Elapsed)
	return sum
}

// Episodes syncs an explicit episode list of one channel, regardless of its sync setting.
func (j *Job) Episodes(ctx context.Context, s Strategy, ch *models.Channel, episodes []*models.Episode) *Summary {
	start := time.Now()
	sum := &Summary{JobID: j.ID, Channels: 1}

	if !s.Open(ctx) {
		sum.Completion = s.Close(false, true, false)
		sum.Elapsed = time.Since(start)
		return sum
	}
	if episodes == nil {
		episodes = []*models.Episode{}
	}
	if s.SyncChannel(ctx, ch, episodes, true) {
		sum.Synced = 1
	}
	sum.Completion = s.Close(!s.Cancelled(), false, false)
	sum.Elapsed = time.Since(start)
	return sum
}

// Clean opens c, removes everything it synced and closes it.
func (j *Job) Clean(ctx context.Context, c Cleaner) *Summary {
	start := time.Now()
	sum := &Summary{JobID: j.ID}

	j.Logger.Info("cleaning sync target")
	if !c.Open(ctx) {
		sum.Completion = c.Close(false, true, false)
		sum.Elapsed = time.Since(start)
		return sum
	}

	ok := c.Clean(ctx)
	sum.Completion = c.Close(ok && !c.Cancelled(), false, ok)
	sum.Elapsed = time.Since(start)
	return sum
}

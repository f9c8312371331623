package tasks

import (
	"errors"

	"github.com/desertthunder/podsync/internal/shared"
)

// Outcome decides what a failure does to the running job.
type Outcome int

const (
	Ignore         Outcome = iota // logged only
	EpisodeFailure                // recorded, job continues
	JobFailure                    // recorded, job cancelled
)

func (o Outcome) String() string {
	switch o {
	case Ignore:
		return "ignore"
	case EpisodeFailure:
		return "episode_failure"
	case JobFailure:
		return "job_failure"
	default:
		return ""
	}
}

var policy = []struct {
	err     error
	outcome Outcome
}{
	{shared.ErrTargetUnavailable, JobFailure},
	{shared.ErrNotWritable, JobFailure},
	{shared.ErrNoSpace, JobFailure},
	{shared.ErrOpenFile, JobFailure},
	{shared.ErrWriteFile, JobFailure},
	{shared.ErrTranscode, EpisodeFailure},
	{shared.ErrDeviceCopy, EpisodeFailure},
	{shared.ErrCoverArt, Ignore},
	{shared.ErrTagWrite, Ignore},
	{shared.ErrLengthProbe, Ignore},
	{shared.ErrLegacyFlags, Ignore},
	{shared.ErrTempCleanup, Ignore},
	{shared.ErrPartialUnlink, Ignore},
}

// Classify maps err to its outcome. Unknown errors stop the job.
func Classify(err error) Outcome {
	for _, p := range policy {
		if errors.Is(err, p.err) {
			return p.outcome
		}
	}
	return JobFailure
}

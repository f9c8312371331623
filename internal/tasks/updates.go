package tasks

import (
	"fmt"
	"strings"
)

// ProgressUpdate represents a progress, status or completion event during a sync job.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Event kind
	Step    int    // Current position within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // [Status] for StatusPhase, [Completion] for Completed
}

// Operation phase enumeration
type Phase int

const (
	EpisodeProgress Phase = iota
	OverallProgress
	SubEpisodeProgress
	StatusPhase
	Completed
)

func (p Phase) String() string {
	switch p {
	case EpisodeProgress:
		return "episode_progress"
	case OverallProgress:
		return "overall_progress"
	case SubEpisodeProgress:
		return "sub_episode_progress"
	case StatusPhase:
		return "status"
	case Completed:
		return "completed"
	default:
		return ""
	}
}

// Status carries optional display texts. Empty fields leave the previous value untouched.
type Status struct {
	Episode      string
	Channel      string
	ProgressText string
	Title        string
	Header       string
	Body         string
}

// String joins the non-empty line-level fields.
func (s Status) String() string {
	var parts []string
	for _, v := range []string{s.Channel, s.Episode, s.ProgressText} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return s.Header
	}
	return strings.Join(parts, ": ")
}

// Completion is the single authoritative outcome of a job.
type Completion struct {
	Success     bool
	AccessError bool
	Cleaned     bool
	Errors      []string
}

func (c Completion) String() string {
	switch {
	case c.AccessError:
		return "Could not access the sync target"
	case c.Cleaned && c.Success:
		return "Sync target cleaned"
	case c.Success && len(c.Errors) == 0:
		return "Synchronization finished"
	case c.Success:
		return fmt.Sprintf("Synchronization finished with %d error(s)", len(c.Errors))
	default:
		return fmt.Sprintf("Synchronization stopped (%d error(s))", len(c.Errors))
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full, skip this update
	}
}

func progressUpdate(phase Phase, step, total int) ProgressUpdate {
	return ProgressUpdate{Phase: phase, Step: step, Total: total}
}

func statusUpdate(s Status) ProgressUpdate {
	return ProgressUpdate{Phase: StatusPhase, Message: s.String(), Data: s}
}

func completionUpdate(c Completion) ProgressUpdate {
	return ProgressUpdate{Phase: Completed, Step: 1, Total: 1, Message: c.String(), Data: c}
}

func copyingStatus(title, channel string) Status {
	return Status{Episode: fmt.Sprintf("Copying %s", title), Channel: fmt.Sprintf("Synchronizing %s", channel)}
}

func convertingStatus(title string, percent int) Status {
	return Status{Episode: fmt.Sprintf("Converting %s (%d%%)", title, percent)}
}

func channelCompletedStatus(title string) Status {
	return Status{Channel: fmt.Sprintf("Completed %s", title)}
}

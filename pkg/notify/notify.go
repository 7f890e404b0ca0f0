// Package notify delivers run lifecycle events (started, success, failed)
// to external sinks such as Discord webhooks and GitHub commit statuses.
package notify

import (
	"context"
	"time"

	v1 "github.com/holon-run/buildbridge/pkg/api/v1"
)

// EventType is the lifecycle point an Event reports.
type EventType string

const (
	EventStarted EventType = "started"
	EventSuccess EventType = "success"
	EventFailed  EventType = "failed"
)

// Event is one notification about a run.
type Event struct {
	Type  EventType
	RunID string
	PR    v1.PullRequest

	// Results is set for EventSuccess, one entry per target.
	Results []v1.UploadOutcome

	// Error is set for EventFailed.
	Error string

	Time time.Time
}

// Notifier delivers events to one sink.
type Notifier interface {
	// Notify sends ev. Implementations must be safe for concurrent use.
	Notify(ctx context.Context, ev Event) error

	// Name returns the sink name (e.g. "discord", "github-status").
	Name() string
}

// Started returns an EventStarted for pr.
func Started(runID string, pr v1.PullRequest) Event {
	return Event{Type: EventStarted, RunID: runID, PR: pr, Time: time.Now()}
}

// Succeeded returns an EventSuccess carrying the upload results.
func Succeeded(runID string, pr v1.PullRequest, results []v1.UploadOutcome) Event {
	return Event{Type: EventSuccess, RunID: runID, PR: pr, Results: results, Time: time.Now()}
}

// Failed returns an EventFailed carrying err's message.
func Failed(runID string, pr v1.PullRequest, err error) Event {
	ev := Event{Type: EventFailed, RunID: runID, PR: pr, Time: time.Now()}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package notify

import (
	"context"

	"github.com/holon-run/buildbridge/pkg/log"
)

// Multi fans an event out to several notifiers. Sink failures are logged
// and never returned, so a broken sink cannot fail a run.
type Multi struct {
	notifiers []Notifier
}

// NewMulti returns a fan-out over ns. Nil entries are skipped.
func NewMulti(ns ...Notifier) *Multi {
	m := &Multi{}
	for _, n := range ns {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

func (m *Multi) Name() string { return "multi" }

// Notify delivers ev to each sink in order. It always returns nil.
func (m *Multi) Notify(ctx context.Context, ev Event) error {
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			log.Warn("notification failed", "notifier", n.Name(), "event", string(ev.Type), "run_id", ev.RunID, "error", err)
		}
	}
	return nil
}

// Len returns the number of sinks.
func (m *Multi) Len() int { return len(m.notifiers) }

package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/holon-run/buildbridge/pkg/log"
	"github.com/holon-run/buildbridge/pkg/status"
)

// LogRecorder appends build output to the status store under the run that
// is currently executing. Lines arriving outside a run are dropped.
type LogRecorder struct {
	store status.Store

	mu    sync.Mutex
	runID string
}

// NewLogRecorder returns a recorder writing to store.
func NewLogRecorder(store status.Store) *LogRecorder {
	return &LogRecorder{store: store}
}

// Begin directs subsequent lines to runID.
func (r *LogRecorder) Begin(runID string) {
	r.mu.Lock()
	r.runID = runID
	r.mu.Unlock()
}

// End stops recording.
func (r *LogRecorder) End() {
	r.Begin("")
}

// Sink records one line of target output. It matches build.LineSink.
func (r *LogRecorder) Sink(target, stream, line string) {
	r.Line(fmt.Sprintf("[%s] %s: %s", target, stream, line))
}

// Line records a free-form line.
func (r *LogRecorder) Line(line string) {
	r.mu.Lock()
	runID := r.runID
	r.mu.Unlock()
	if runID == "" {
		return
	}
	if err := r.store.AppendLog(context.Background(), runID, line); err != nil {
		log.Debug("failed to record log line", "run_id", runID, "error", err)
	}
}

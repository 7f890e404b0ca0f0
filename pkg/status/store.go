// Package status persists run records and their log lines so that the
// progress of a run can be inspected while and after it executes.
package status

import (
	"context"
	"errors"
	"sync"
	"time"

	v1 "github.com/holon-run/buildbridge/pkg/api/v1"
)

// DefaultTTL is how long records and logs are retained.
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned by Get for an unknown run.
var ErrNotFound = errors.New("run not found")

// Store keeps run records and log lines keyed by run id.
type Store interface {
	Save(ctx context.Context, rec v1.RunRecord) error
	Get(ctx context.Context, runID string) (v1.RunRecord, error)
	AppendLog(ctx context.Context, runID, line string) error
	Logs(ctx context.Context, runID string) ([]string, error)
}

// MemoryStore is an in-process Store. Entries never expire.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]v1.RunRecord
	logs    map[string][]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]v1.RunRecord),
		logs:    make(map[string][]string),
	}
}

func (m *MemoryStore) Save(_ context.Context, rec v1.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Targets = append([]string(nil), rec.Targets...)
	rec.Results = append([]v1.UploadOutcome(nil), rec.Results...)
	m.records[rec.RunID] = rec
	return nil
}

func (m *MemoryStore) Get(_ context.Context, runID string) (v1.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[runID]
	if !ok {
		return v1.RunRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryStore) AppendLog(_ context.Context, runID, line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[runID] = append(m.logs[runID], line)
	return nil
}

func (m *MemoryStore) Logs(_ context.Context, runID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.logs[runID]...), nil
}

package recorder

import (
	"context"
	"sync"
)

// Memory keeps the most recent runs in process
type Memory struct {
	mu    sync.Mutex
	limit int
	runs  []Run
}

// NewMemory keeps at most limit runs (100 when limit <= 0)
func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = 100
	}
	return &Memory{limit: limit}
}

// Record appends run, dropping the oldest beyond the limit
func (m *Memory) Record(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs = append(m.runs, run)
	if len(m.runs) > m.limit {
		m.runs = m.runs[len(m.runs)-m.limit:]
	}
	return nil
}

// Recent returns the latest runs, newest first
func (m *Memory) Recent(_ context.Context, limit int) ([]RunInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.runs) {
		limit = len(m.runs)
	}
	out := make([]RunInfo, 0, limit)
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, infoFromRun(m.runs[i]))
	}
	return out, nil
}

// Last returns the latest run with results
func (m *Memory) Last() (Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.runs) == 0 {
		return Run{}, false
	}
	return m.runs[len(m.runs)-1], true
}

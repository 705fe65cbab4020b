package mocks

import (
	"context"
	"sort"

	"github.com/ersonp/trustbim/internal/domain/ports"
	"github.com/ersonp/trustbim/internal/domain/report"
)

// Sink is a mock implementation of ports.ResultSink.
type Sink struct {
	SinkName string
	Err      error

	WriteCallCount int
	LastTables     *report.Tables
}

// Name returns the configured name.
func (m *Sink) Name() string {
	if m.SinkName == "" {
		return "mock"
	}
	return m.SinkName
}

// Write records the tables.
func (m *Sink) Write(ctx context.Context, tables *report.Tables) error {
	m.WriteCallCount++
	m.LastTables = tables
	return m.Err
}

// RunStore is an in-memory mock implementation of ports.RunStore.
type RunStore struct {
	Runs map[string]*report.Tables
	Err  error
}

// NewRunStore creates a new mock RunStore.
func NewRunStore() *RunStore {
	return &RunStore{Runs: make(map[string]*report.Tables)}
}

// Name returns the sink name.
func (m *RunStore) Name() string { return "memory" }

// EnsureSchema returns the configured error.
func (m *RunStore) EnsureSchema(_ context.Context) error {
	return m.Err
}

// Close closes nothing.
func (m *RunStore) Close() error {
	return nil
}

// Write stores the tables by run id.
func (m *RunStore) Write(_ context.Context, tables *report.Tables) error {
	if m.Err != nil {
		return m.Err
	}
	m.Runs[tables.Run.ID] = tables
	return nil
}

// ListRuns returns stored runs, newest first.
func (m *RunStore) ListRuns(_ context.Context, limit int) ([]ports.RunSummary, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	result := make([]ports.RunSummary, 0, len(m.Runs))
	for _, t := range m.Runs {
		result = append(result, ports.RunSummary{
			RunID:         t.Run.ID,
			StartedAt:     t.Run.StartedAt,
			Mode:          t.Run.Mode,
			CatalogDigest: t.Run.CatalogDigest,
			Inputs:        t.Run.Inputs,
			Assets:        len(t.Assets),
			Flags:         len(t.Flags),
			Review:        len(t.Review),
		})
	}
	// Sort for deterministic test results
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].StartedAt.After(result[j].StartedAt)
		}
		return result[i].RunID < result[j].RunID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// LatestRunID returns the newest run id.
func (m *RunStore) LatestRunID(ctx context.Context) (string, error) {
	runs, err := m.ListRuns(ctx, 1)
	if err != nil || len(runs) == 0 {
		return "", err
	}
	return runs[0].RunID, nil
}

// ReviewQueue returns the review rows of a run.
func (m *RunStore) ReviewQueue(_ context.Context, runID string, limit int) ([]report.ReviewRow, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	t, ok := m.Runs[runID]
	if !ok {
		return nil, nil
	}
	rows := t.Review
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// Flags returns the flags of one asset.
func (m *RunStore) Flags(_ context.Context, runID, localID string) ([]report.FlagRow, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	t, ok := m.Runs[runID]
	if !ok {
		return nil, nil
	}
	var rows []report.FlagRow
	for _, f := range t.Flags {
		if f.LocalID == localID {
			rows = append(rows, f)
		}
	}
	return rows, nil
}

// DeleteRun removes a stored run.
func (m *RunStore) DeleteRun(_ context.Context, runID string) error {
	if m.Err != nil {
		return m.Err
	}
	delete(m.Runs, runID)
	return nil
}

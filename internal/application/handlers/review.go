package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/ersonp/trustbim/internal/domain/ports"
	"github.com/ersonp/trustbim/internal/domain/report"
)

// ErrNoRuns is returned when the run store holds no runs.
var ErrNoRuns = errors.New("no runs stored")

// ReviewHandler answers questions about stored runs.
type ReviewHandler struct {
	store ports.RunStore
}

// NewReviewHandler creates a new review handler.
func NewReviewHandler(store ports.RunStore) *ReviewHandler {
	return &ReviewHandler{store: store}
}

// ReviewResult is the review queue of one run.
type ReviewResult struct {
	RunID string
	Rows  []report.ReviewRow
}

// Queue returns the review queue of runID, or of the latest run when runID is empty.
func (h *ReviewHandler) Queue(ctx context.Context, runID string, limit int) (*ReviewResult, error) {
	runID, err := h.resolve(ctx, runID)
	if err != nil {
		return nil, err
	}

	rows, err := h.store.ReviewQueue(ctx, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("reading review queue: %w", err)
	}

	return &ReviewResult{RunID: runID, Rows: rows}, nil
}

// Flags returns the flags of one asset, by local id.
func (h *ReviewHandler) Flags(ctx context.Context, runID, localID string) ([]report.FlagRow, error) {
	runID, err := h.resolve(ctx, runID)
	if err != nil {
		return nil, err
	}

	rows, err := h.store.Flags(ctx, runID, localID)
	if err != nil {
		return nil, fmt.Errorf("reading flags: %w", err)
	}
	return rows, nil
}

// Runs lists stored runs, most recent first.
func (h *ReviewHandler) Runs(ctx context.Context, limit int) ([]ports.RunSummary, error) {
	runs, err := h.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// Delete removes a stored run.
func (h *ReviewHandler) Delete(ctx context.Context, runID string) error {
	if runID == "" {
		return errors.New("run id is required")
	}
	if err := h.store.DeleteRun(ctx, runID); err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	return nil
}

func (h *ReviewHandler) resolve(ctx context.Context, runID string) (string, error) {
	if runID != "" {
		return runID, nil
	}
	latest, err := h.store.LatestRunID(ctx)
	if err != nil {
		return "", fmt.Errorf("finding latest run: %w", err)
	}
	if latest == "" {
		return "", ErrNoRuns
	}
	return latest, nil
}

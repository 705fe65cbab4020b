package ports

import (
	"context"
	"time"

	"github.com/ersonp/trustbim/internal/domain/report"
)

// ResultSink persists the output tables of a run.
type ResultSink interface {
	// Name identifies the sink in logs and errors.
	Name() string

	// Write stores every table of the run.
	Write(ctx context.Context, tables *report.Tables) error
}

// RunSummary is one stored run.
type RunSummary struct {
	RunID         string    `json:"run_id"`
	StartedAt     time.Time `json:"started_at"`
	Mode          string    `json:"mode"`
	CatalogDigest string    `json:"catalog_digest"`
	Inputs        []string  `json:"inputs"`
	Assets        int       `json:"assets"`
	Flags         int       `json:"flags"`
	Review        int       `json:"review_queue"`
}

// RunStore is a relational sink that can also answer queries about past runs.
type RunStore interface {
	ResultSink

	// EnsureSchema creates the database schema if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)

	// LatestRunID returns the id of the most recent run, or "" when none is stored.
	LatestRunID(ctx context.Context) (string, error)

	// ReviewQueue returns the review rows of a run in output order.
	ReviewQueue(ctx context.Context, runID string, limit int) ([]report.ReviewRow, error)

	// Flags returns the flags of one asset in a run.
	Flags(ctx context.Context, runID, localID string) ([]report.FlagRow, error)

	// DeleteRun removes a run and every table row stored for it.
	DeleteRun(ctx context.Context, runID string) error
}

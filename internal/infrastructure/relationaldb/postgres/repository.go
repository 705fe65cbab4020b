// Package postgres provides a PostgreSQL implementation of the RunStore interface.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ersonp/trustbim/internal/domain/ports"
	"github.com/ersonp/trustbim/internal/domain/report"
	"github.com/ersonp/trustbim/internal/infrastructure/config"
	"github.com/ersonp/trustbim/internal/infrastructure/relationaldb"
)

var q = relationaldb.Quote

// Repository implements ports.RunStore using PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a connection pool for the configured DSN.
func NewRepository(ctx context.Context, cfg config.StoreConfig) (*Repository, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	poolConfig.MaxConns = 4
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// Name returns the sink name.
func (r *Repository) Name() string { return "postgres" }

// Ping checks connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the connection pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts := []string{`
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at TIMESTAMPTZ NOT NULL,
		mode TEXT NOT NULL,
		catalog_digest TEXT,
		inputs JSONB
	)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	}
	for _, tbl := range relationaldb.Layout() {
		stmts = append(stmts, relationaldb.Postgres.CreateTable(tbl))
		stmts = append(stmts, relationaldb.Postgres.CreateIndexes(tbl)...)
	}

	for _, stmt := range stmts {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// Write stores a run and all of its tables in one transaction, copying rows in bulk.
func (r *Repository) Write(ctx context.Context, tables *report.Tables) (err error) {
	inputs, err := json.Marshal(tables.Run.Inputs)
	if err != nil {
		return fmt.Errorf("marshaling inputs: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO runs (run_id, started_at, mode, catalog_digest, inputs) VALUES ($1, $2, $3, $4, $5)`,
		tables.Run.ID, tables.Run.StartedAt.UTC(), tables.Run.Mode, tables.Run.CatalogDigest, string(inputs),
	)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	for _, tbl := range tables.Tabular() {
		if len(tbl.Rows) == 0 {
			continue
		}
		rows := make([][]any, len(tbl.Rows))
		for i, cells := range tbl.Rows {
			rows[i] = relationaldb.RowValues(tables.Run.ID, i, cells)
		}
		if _, err = tx.CopyFrom(ctx, pgx.Identifier{tbl.Name}, relationaldb.ColumnNames(tbl), pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("copying %s: %w", tbl.Name, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	return nil
}

// limitArg maps a non-positive limit to NULL, which Postgres reads as LIMIT ALL.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

// ListRuns returns the most recent runs first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]ports.RunSummary, error) {
	query := `
		SELECT r.run_id, r.started_at, r.mode, COALESCE(r.catalog_digest, ''), r.inputs,
			(SELECT COUNT(*) FROM assets a WHERE a.run_id = r.run_id),
			(SELECT COUNT(*) FROM asset_flags f WHERE f.run_id = r.run_id),
			(SELECT COUNT(*) FROM review_queue v WHERE v.run_id = r.run_id)
		FROM runs r
		ORDER BY r.started_at DESC, r.run_id
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var result []ports.RunSummary
	for rows.Next() {
		var s ports.RunSummary
		if err := rows.Scan(&s.RunID, &s.StartedAt, &s.Mode, &s.CatalogDigest, &s.Inputs, &s.Assets, &s.Flags, &s.Review); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// LatestRunID returns the id of the most recent run, or "" when none is stored.
func (r *Repository) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `SELECT run_id FROM runs ORDER BY started_at DESC, run_id LIMIT 1`).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("finding latest run: %w", err)
	}
	return id, nil
}

// ReviewQueue returns the review rows of a run in output order.
func (r *Repository) ReviewQueue(ctx context.Context, runID string, limit int) ([]report.ReviewRow, error) {
	query := fmt.Sprintf(`
		SELECT asset_id, local_id, name, canonical_class, class_confidence, errors, warnings, reasons
		FROM %s WHERE run_id = $1 ORDER BY seq LIMIT $2
	`, q(report.TableReview))

	rows, err := r.pool.Query(ctx, query, runID, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("querying review queue: %w", err)
	}
	defer rows.Close()

	var result []report.ReviewRow
	for rows.Next() {
		var row report.ReviewRow
		if err := rows.Scan(&row.AssetID, &row.LocalID, &row.Name, &row.CanonicalClass, &row.Confidence,
			&row.Errors, &row.Warnings, &row.Reasons); err != nil {
			return nil, fmt.Errorf("scanning review row: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// Flags returns the flags of one asset in a run.
func (r *Repository) Flags(ctx context.Context, runID, localID string) ([]report.FlagRow, error) {
	query := fmt.Sprintf(`
		SELECT asset_id, local_id, kind, severity, stage, rule_id, subject, message, hint, observed, %s
		FROM %s WHERE run_id = $1 AND local_id = $2 ORDER BY seq
	`, q("limit"), q(report.TableFlags))

	rows, err := r.pool.Query(ctx, query, runID, localID)
	if err != nil {
		return nil, fmt.Errorf("querying flags: %w", err)
	}
	defer rows.Close()

	var result []report.FlagRow
	for rows.Next() {
		var row report.FlagRow
		if err := rows.Scan(&row.AssetID, &row.LocalID, &row.Kind, &row.Severity, &row.Stage,
			&row.RuleID, &row.Subject, &row.Message, &row.Hint, &row.Observed, &row.Limit); err != nil {
			return nil, fmt.Errorf("scanning flag: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// DeleteRun removes a run and its tables.
func (r *Repository) DeleteRun(ctx context.Context, runID string) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, tbl := range relationaldb.Layout() {
		if _, err = tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE run_id = $1", q(tbl.Name)), runID); err != nil {
			return fmt.Errorf("deleting %s: %w", tbl.Name, err)
		}
	}
	if _, err = tx.Exec(ctx, "DELETE FROM runs WHERE run_id = $1", runID); err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	return tx.Commit(ctx)
}

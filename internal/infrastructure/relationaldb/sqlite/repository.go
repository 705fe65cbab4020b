// Package sqlite provides a SQLite implementation of the RunStore interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/ersonp/trustbim/internal/domain/ports"
	"github.com/ersonp/trustbim/internal/domain/report"
	"github.com/ersonp/trustbim/internal/infrastructure/config"
	"github.com/ersonp/trustbim/internal/infrastructure/relationaldb"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var q = relationaldb.Quote

// Repository implements ports.RunStore using SQLite.
type Repository struct {
	db   *sql.DB
	path string
}

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.StoreConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// Every connection to :memory: opens a separate database.
	if cfg.Path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read/write performance
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Set busy timeout to avoid "database is locked" errors
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &Repository{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Name returns the sink name.
func (r *Repository) Name() string { return "sqlite" }

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts := []string{`
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		mode TEXT NOT NULL,
		catalog_digest TEXT,
		inputs TEXT
	)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	}
	for _, tbl := range relationaldb.Layout() {
		stmts = append(stmts, relationaldb.SQLite.CreateTable(tbl))
		stmts = append(stmts, relationaldb.SQLite.CreateIndexes(tbl)...)
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// Write stores a run and all of its tables in one transaction.
func (r *Repository) Write(ctx context.Context, tables *report.Tables) (err error) {
	inputs, err := json.Marshal(tables.Run.Inputs)
	if err != nil {
		return fmt.Errorf("marshaling inputs: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, mode, catalog_digest, inputs) VALUES (?, ?, ?, ?, ?)`,
		tables.Run.ID, tables.Run.StartedAt.UTC().Format(timeLayout), tables.Run.Mode, tables.Run.CatalogDigest, string(inputs),
	)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	for _, tbl := range tables.Tabular() {
		if err = insertTable(ctx, tx, tables.Run.ID, tbl); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	return nil
}

func insertTable(ctx context.Context, tx *sql.Tx, runID string, tbl report.Table) error {
	if len(tbl.Rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, relationaldb.SQLite.Insert(tbl))
	if err != nil {
		return fmt.Errorf("preparing %s insert: %w", tbl.Name, err)
	}
	defer stmt.Close()

	for i, cells := range tbl.Rows {
		if _, err := stmt.ExecContext(ctx, relationaldb.RowValues(runID, i, cells)...); err != nil {
			return fmt.Errorf("saving %s row %d: %w", tbl.Name, i, err)
		}
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]ports.RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT r.run_id, r.started_at, r.mode, r.catalog_digest, r.inputs,
			(SELECT COUNT(*) FROM assets a WHERE a.run_id = r.run_id),
			(SELECT COUNT(*) FROM asset_flags f WHERE f.run_id = r.run_id),
			(SELECT COUNT(*) FROM review_queue v WHERE v.run_id = r.run_id)
		FROM runs r
		ORDER BY r.started_at DESC, r.run_id
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var result []ports.RunSummary
	for rows.Next() {
		var s ports.RunSummary
		var startedAt string
		var digest, inputs sql.NullString
		if err := rows.Scan(&s.RunID, &startedAt, &s.Mode, &digest, &inputs, &s.Assets, &s.Flags, &s.Review); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		s.StartedAt, err = time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing run time %q: %w", startedAt, err)
		}
		s.CatalogDigest = digest.String
		if inputs.Valid && inputs.String != "" {
			if err := json.Unmarshal([]byte(inputs.String), &s.Inputs); err != nil {
				return nil, fmt.Errorf("unmarshaling run inputs: %w", err)
			}
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// LatestRunID returns the id of the most recent run, or "" when none is stored.
func (r *Repository) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`SELECT run_id FROM runs ORDER BY started_at DESC, run_id LIMIT 1`,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("finding latest run: %w", err)
	}
	return id, nil
}

// ReviewQueue returns the review rows of a run in output order.
func (r *Repository) ReviewQueue(ctx context.Context, runID string, limit int) ([]report.ReviewRow, error) {
	if limit <= 0 {
		limit = -1
	}
	query := fmt.Sprintf(`
		SELECT asset_id, local_id, name, canonical_class, class_confidence, errors, warnings, reasons
		FROM %s WHERE run_id = ? ORDER BY seq LIMIT ?
	`, q(report.TableReview))

	rows, err := r.db.QueryContext(ctx, query, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying review queue: %w", err)
	}
	defer rows.Close()

	var result []report.ReviewRow
	for rows.Next() {
		var row report.ReviewRow
		var conf sql.NullFloat64
		if err := rows.Scan(&row.AssetID, &row.LocalID, &row.Name, &row.CanonicalClass, &conf,
			&row.Errors, &row.Warnings, &row.Reasons); err != nil {
			return nil, fmt.Errorf("scanning review row: %w", err)
		}
		row.Confidence = nullFloat(conf)
		result = append(result, row)
	}
	return result, rows.Err()
}

// Flags returns the flags of one asset in a run.
func (r *Repository) Flags(ctx context.Context, runID, localID string) ([]report.FlagRow, error) {
	query := fmt.Sprintf(`
		SELECT asset_id, local_id, kind, severity, stage, rule_id, subject, message, hint, observed, %s
		FROM %s WHERE run_id = ? AND local_id = ? ORDER BY seq
	`, q("limit"), q(report.TableFlags))

	rows, err := r.db.QueryContext(ctx, query, runID, localID)
	if err != nil {
		return nil, fmt.Errorf("querying flags: %w", err)
	}
	defer rows.Close()

	var result []report.FlagRow
	for rows.Next() {
		var row report.FlagRow
		var observed, limit sql.NullFloat64
		if err := rows.Scan(&row.AssetID, &row.LocalID, &row.Kind, &row.Severity, &row.Stage,
			&row.RuleID, &row.Subject, &row.Message, &row.Hint, &observed, &limit); err != nil {
			return nil, fmt.Errorf("scanning flag: %w", err)
		}
		row.Observed = nullFloat(observed)
		row.Limit = nullFloat(limit)
		result = append(result, row)
	}
	return result, rows.Err()
}

// DeleteRun removes a run and its tables.
func (r *Repository) DeleteRun(ctx context.Context, runID string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, tbl := range relationaldb.Layout() {
		if _, err = tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE run_id = ?", q(tbl.Name)), runID); err != nil {
			return fmt.Errorf("deleting %s: %w", tbl.Name, err)
		}
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM runs WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	return tx.Commit()
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

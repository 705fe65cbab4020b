// Package relationaldb holds the table layout shared by the relational run stores.
package relationaldb

import (
	"fmt"
	"strings"

	"github.com/ersonp/trustbim/internal/domain/report"
)

// RunsTable stores one row per run.
const RunsTable = "runs"

// Dialect maps column types onto one database's SQL types.
type Dialect struct {
	String string
	Float  string
	Int    string
	Bool   string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
}

// SQLite is the modernc.org/sqlite dialect.
var SQLite = Dialect{
	String:      "TEXT",
	Float:       "REAL",
	Int:         "INTEGER",
	Bool:        "INTEGER",
	Placeholder: func(int) string { return "?" },
}

// Postgres is the pgx dialect.
var Postgres = Dialect{
	String:      "TEXT",
	Float:       "DOUBLE PRECISION",
	Int:         "BIGINT",
	Bool:        "BOOLEAN",
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
}

func (d Dialect) sqlType(t report.ColumnType) string {
	switch t {
	case report.Float:
		return d.Float
	case report.Int:
		return d.Int
	case report.Bool:
		return d.Bool
	default:
		return d.String
	}
}

// Layout returns every run table with its columns, audit included.
func Layout() []report.Table {
	return (&report.Tables{Audit: []report.AuditRow{}}).Tabular()
}

// Quote quotes an identifier; some column names ("limit") are reserved words.
func Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// CreateTable renders the DDL of one run table. Every table is keyed by run_id
// and seq, the row's position in the run's table.
func (d Dialect) CreateTable(tbl report.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n\t%s %s NOT NULL,\n\t%s %s NOT NULL",
		Quote(tbl.Name), Quote("run_id"), d.String, Quote("seq"), d.Int)
	for _, c := range tbl.Columns {
		fmt.Fprintf(&b, ",\n\t%s %s", Quote(c.Name), d.sqlType(c.Type))
	}
	fmt.Fprintf(&b, ",\n\tPRIMARY KEY (%s, %s)\n)", Quote("run_id"), Quote("seq"))
	return b.String()
}

// CreateIndexes renders the lookup indexes of one run table.
func (d Dialect) CreateIndexes(tbl report.Table) []string {
	var stmts []string
	for _, c := range tbl.Columns {
		if c.Name == "local_id" {
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s, %s)",
				Quote("idx_"+tbl.Name+"_local"), Quote(tbl.Name), Quote("run_id"), Quote("local_id")))
		}
	}
	return stmts
}

// Insert renders a single-row INSERT for one run table: run_id, seq, columns.
func (d Dialect) Insert(tbl report.Table) string {
	names := []string{Quote("run_id"), Quote("seq")}
	params := []string{d.Placeholder(1), d.Placeholder(2)}
	for i, c := range tbl.Columns {
		names = append(names, Quote(c.Name))
		params = append(params, d.Placeholder(i+3))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		Quote(tbl.Name), strings.Join(names, ", "), strings.Join(params, ", "))
}

// ColumnNames returns run_id and seq followed by the table's column names.
func ColumnNames(tbl report.Table) []string {
	names := make([]string, 0, len(tbl.Columns)+2)
	names = append(names, "run_id", "seq")
	for _, c := range tbl.Columns {
		names = append(names, c.Name)
	}
	return names
}

// RowValues prefixes one row's cells with its run id and position.
func RowValues(runID string, seq int, cells []any) []any {
	vals := make([]any, 0, len(cells)+2)
	vals = append(vals, runID, int64(seq))
	return append(vals, cells...)
}

package exporters

import (
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/ersonp/trustbim/internal/domain/report"
)

// CSVSink writes one CSV file per table.
type CSVSink struct {
	dir string
}

// NewCSVSink creates a CSV sink writing into dir.
func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{dir: dir}
}

// Name returns the sink name.
func (s *CSVSink) Name() string { return FormatCSV }

// Write writes every table as <table>.csv with a header row.
func (s *CSVSink) Write(ctx context.Context, tables *report.Tables) error {
	for _, tbl := range tables.Tabular() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.writeTable(tbl); err != nil {
			return err
		}
	}
	return nil
}

func (s *CSVSink) writeTable(tbl report.Table) (err error) {
	f, err := createFile(s.dir, tbl.Name+".csv")
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s.csv: %w", tbl.Name, cerr)
		}
	}()

	w := csv.NewWriter(f)
	header := make([]string, len(tbl.Columns))
	for i, c := range tbl.Columns {
		header[i] = c.Name
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing %s.csv: %w", tbl.Name, err)
	}

	row := make([]string, len(tbl.Columns))
	for _, cells := range tbl.Rows {
		for i, cell := range cells {
			row[i] = formatCell(cell)
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing %s.csv: %w", tbl.Name, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing %s.csv: %w", tbl.Name, err)
	}
	return nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

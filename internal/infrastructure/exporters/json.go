package exporters

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ersonp/trustbim/internal/domain/report"
)

// JSONSink writes one JSON array file per table.
type JSONSink struct {
	dir string
}

// NewJSONSink creates a JSON sink writing into dir.
func NewJSONSink(dir string) *JSONSink {
	return &JSONSink{dir: dir}
}

// Name returns the sink name.
func (s *JSONSink) Name() string { return FormatJSON }

type jsonFile struct {
	name string
	rows any
}

// Write writes every table as <table>.json, plus run.json with the run header.
func (s *JSONSink) Write(ctx context.Context, tables *report.Tables) error {
	files := []jsonFile{
		{"run", tables.Run},
		{report.TableAssets, orEmpty(tables.Assets)},
		{report.TableProps, orEmpty(tables.Props)},
		{report.TableRelations, orEmpty(tables.Relations)},
		{report.TableFlags, orEmpty(tables.Flags)},
		{report.TableReview, orEmpty(tables.Review)},
	}
	if tables.Audit != nil {
		files = append(files, jsonFile{report.TableAudit, tables.Audit})
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.writeFile(file.name+".json", file.rows); err != nil {
			return err
		}
	}
	return nil
}

func (s *JSONSink) writeFile(name string, v any) (err error) {
	f, err := createFile(s.dir, name)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", name, cerr)
		}
	}()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	return nil
}

// orEmpty keeps empty tables as [] rather than null.
func orEmpty[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}

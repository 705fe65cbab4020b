// Package exporters writes run tables to files: CSV, JSON and Arrow IPC.
package exporters

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ersonp/trustbim/internal/domain/ports"
)

// Supported output formats.
const (
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatArrow = "arrow"
)

// New returns a file sink for one format writing into dir.
func New(format, dir string) (ports.ResultSink, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return NewCSVSink(dir), nil
	case FormatJSON:
		return NewJSONSink(dir), nil
	case FormatArrow, "ipc", "feather":
		return NewArrowSink(dir), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want csv, json or arrow)", format)
	}
}

// NewAll returns one sink per format, skipping duplicates.
func NewAll(formats []string, dir string) ([]ports.ResultSink, error) {
	seen := make(map[string]bool, len(formats))
	sinks := make([]ports.ResultSink, 0, len(formats))
	for _, f := range formats {
		sink, err := New(f, dir)
		if err != nil {
			return nil, err
		}
		if seen[sink.Name()] {
			continue
		}
		seen[sink.Name()] = true
		sinks = append(sinks, sink)
	}
	return sinks, nil
}

// createFile creates dir and a file inside it.
func createFile(dir, name string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return f, nil
}

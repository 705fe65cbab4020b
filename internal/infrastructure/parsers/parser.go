// Package parsers reads upstream entity records into domain entities.
package parsers

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ersonp/trustbim/internal/domain/entities"
)

// Options controls how records are read.
type Options struct {
	// Strict fails on the first rejected record instead of collecting it.
	Strict bool
	// File names the input in record errors.
	File string
	// Source scopes asset ids of records that carry no run id.
	Source string
	// Limit stops after this many accepted records; zero reads everything.
	Limit int
	// Seen collects the (source, id) keys accepted so far. When set, a record
	// whose key is already present is rejected; share it across the inputs of a run.
	Seen map[entities.Key]bool
}

// ErrDuplicateID rejects a record whose id was already read for the same source.
var ErrDuplicateID = errors.New("duplicate entity id")

// RecordError describes one rejected input record.
type RecordError struct {
	File string `json:"file,omitempty"`
	Line int    `json:"line"`
	ID   string `json:"id,omitempty"`
	Err  error  `json:"-"`
}

func (e *RecordError) Error() string {
	loc := fmt.Sprintf("line %d", e.Line)
	if e.File != "" {
		loc = fmt.Sprintf("%s:%d", e.File, e.Line)
	}
	if e.ID != "" {
		return fmt.Sprintf("%s (%s): %v", loc, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %v", loc, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Result holds the entities read from one input.
type Result struct {
	Entities []*entities.Entity
	Errors   []*RecordError
	// Read counts every non-blank record, accepted or rejected.
	Read int
}

// reject records a bad record; in strict mode it is returned as the parse error.
func (r *Result) reject(opts Options, line int, id string, err error) error {
	recErr := &RecordError{File: opts.File, Line: line, ID: id, Err: err}
	r.Errors = append(r.Errors, recErr)
	if opts.Strict {
		return recErr
	}
	return nil
}

// accept collects e unless its key was already seen.
func (r *Result) accept(opts Options, line int, e *entities.Entity) error {
	if opts.Seen != nil && e.ID != "" {
		key := e.Key()
		if opts.Seen[key] {
			return r.reject(opts, line, e.ID, fmt.Errorf("%w %q in source %q", ErrDuplicateID, e.ID, e.Source))
		}
		opts.Seen[key] = true
	}
	e.Line = line
	r.Entities = append(r.Entities, e)
	return nil
}

func (r *Result) full(opts Options) bool {
	return opts.Limit > 0 && len(r.Entities) >= opts.Limit
}

// Parser defines the interface for reading entity records.
type Parser interface {
	Parse(r io.Reader, opts Options) (*Result, error)
}

// ForFormat returns the appropriate parser for the given format.
// Supported formats: "jsonl", "json", "csv".
func ForFormat(format string) Parser {
	switch strings.ToLower(format) {
	case "jsonl", "ndjson":
		return &JSONLParser{}
	case "json":
		return &JSONParser{}
	case "csv":
		return &CSVParser{}
	default:
		return nil
	}
}

// ForFile returns the appropriate parser based on file extension.
func ForFile(filename string) Parser {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	return ForFormat(ext)
}

// ParseFile opens a file and parses it with the parser matching its extension.
func ParseFile(path string, opts Options) (*Result, error) {
	p := ForFile(path)
	if p == nil {
		return nil, fmt.Errorf("unsupported input format: %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	if opts.File == "" {
		opts.File = path
	}
	return p.Parse(f, opts)
}

// Package handlers contains application use case handlers.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ersonp/trustbim/internal/domain/catalog"
	"github.com/ersonp/trustbim/internal/domain/entities"
	"github.com/ersonp/trustbim/internal/domain/ports"
	"github.com/ersonp/trustbim/internal/domain/report"
	"github.com/ersonp/trustbim/internal/domain/services"
	"github.com/ersonp/trustbim/internal/infrastructure/parsers"
)

// StageReportFile is the file the stage report is written to.
const StageReportFile = "stage_report.json"

// maxReportedErrors caps the error list carried in the stage report.
const maxReportedErrors = 100

// RunObserver receives the outcome of every run, e.g. for metrics.
type RunObserver interface {
	RecordRun(rep *report.StageReport)
	RecordFailure(mode string)
}

// RunHandler validates a batch of record files and writes the results.
type RunHandler struct {
	catalog  *catalog.Catalog
	sinks    []ports.ResultSink
	assist   *services.AssistService
	observer RunObserver
	logger   *zap.Logger
}

// NewRunHandler creates a new run handler.
func NewRunHandler(cat *catalog.Catalog, sinks []ports.ResultSink, logger *zap.Logger) *RunHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunHandler{
		catalog: cat,
		sinks:   sinks,
		logger:  logger,
	}
}

// WithAssist enables class proposals for runs that ask for them.
func (h *RunHandler) WithAssist(assist *services.AssistService) *RunHandler {
	h.assist = assist
	return h
}

// WithCatalog replaces the rule catalog used by later runs.
func (h *RunHandler) WithCatalog(cat *catalog.Catalog) *RunHandler {
	h.catalog = cat
	return h
}

// WithObserver reports every run to o.
func (h *RunHandler) WithObserver(o RunObserver) *RunHandler {
	h.observer = o
	return h
}

// RunOptions controls a run.
type RunOptions struct {
	Engine services.EngineOptions
	// Limit caps the number of entities read across all inputs; zero reads everything.
	Limit int
	// Assist asks the class assistant for proposals before validation.
	Assist bool
	// Audit adds the incoherence audit table to the outputs.
	Audit bool
	// ReportDir receives stage_report.json; empty skips the file.
	ReportDir string
	// Source scopes asset ids of records that carry no run id.
	Source string
}

// RunResult contains the result of a run.
type RunResult struct {
	Inputs       []string
	Report       *report.StageReport
	Tables       *report.Tables
	RecordErrors []*parsers.RecordError
	Failures     []*services.EntityError
}

// Handle expands the input patterns and runs the pipeline over every record.
func (h *RunHandler) Handle(ctx context.Context, patterns []string, opts RunOptions) (*RunResult, error) {
	result, err := h.handle(ctx, patterns, opts)
	if err != nil {
		if h.observer != nil {
			h.observer.RecordFailure(string(opts.Engine.Mode))
		}
		return nil, err
	}
	if h.observer != nil {
		h.observer.RecordRun(result.Report)
	}
	return result, nil
}

func (h *RunHandler) handle(ctx context.Context, patterns []string, opts RunOptions) (*RunResult, error) {
	start := time.Now()
	strict := opts.Engine.Mode == services.ModeStrict

	inputs, err := ExpandInputs(patterns)
	if err != nil {
		return nil, err
	}

	ents, read, recErrs, err := h.readInputs(inputs, strict, opts)
	if err != nil {
		return nil, err
	}

	if opts.Assist {
		if h.assist == nil {
			return nil, errors.New("assist requested but no class assistant is configured")
		}
		n, err := h.assist.Propose(ctx, ents)
		if err != nil {
			return nil, fmt.Errorf("collecting class proposals: %w", err)
		}
		h.logger.Info("class proposals collected", zap.Int("proposals", n))
	}

	engine := services.NewEngine(h.catalog, opts.Engine, h.logger)
	runResult, err := engine.Run(ctx, ents)
	if err != nil {
		return nil, fmt.Errorf("validating entities: %w", err)
	}

	run := report.NewRun(inputs, string(opts.Engine.Mode), h.catalog.Digest())
	run.StartedAt = start.UTC()

	tables, err := report.Build(run, ents, runResult.Records, report.BuildOptions{Audit: opts.Audit})
	if err != nil {
		return nil, err
	}

	rep := report.Summarize(run, runResult.Records, time.Since(start))
	rep.RecordsRead = read
	rep.RecordErrors = len(recErrs)
	rep.EntityErrors = len(runResult.Failures)
	rep.Errors = reportErrors(recErrs, runResult.Failures)

	if err := h.write(ctx, tables); err != nil {
		return nil, err
	}

	if opts.ReportDir != "" {
		if err := writeStageReport(opts.ReportDir, rep); err != nil {
			return nil, err
		}
	}

	h.logger.Info("run complete",
		zap.String("run_id", run.ID),
		zap.Int("inputs", len(inputs)),
		zap.Int("entities", rep.Entities),
		zap.Int("review_queue", rep.ReviewQueue),
		zap.Int("record_errors", rep.RecordErrors),
		zap.Int("entity_errors", rep.EntityErrors),
		zap.Int64("duration_ms", rep.DurationMS))

	return &RunResult{
		Inputs:       inputs,
		Report:       rep,
		Tables:       tables,
		RecordErrors: recErrs,
		Failures:     runResult.Failures,
	}, nil
}

func (h *RunHandler) readInputs(inputs []string, strict bool, opts RunOptions) ([]*entities.Entity, int, []*parsers.RecordError, error) {
	var (
		ents    []*entities.Entity
		recErrs []*parsers.RecordError
		read    int
	)
	seen := make(map[entities.Key]bool)

	for _, path := range inputs {
		parseOpts := parsers.Options{Strict: strict, File: path, Source: opts.Source, Seen: seen}
		if opts.Limit > 0 {
			parseOpts.Limit = opts.Limit - len(ents)
			if parseOpts.Limit <= 0 {
				break
			}
		}

		res, err := parsers.ParseFile(path, parseOpts)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("reading %s: %w", path, err)
		}

		for _, recErr := range res.Errors {
			h.logger.Warn("record rejected",
				zap.String("file", recErr.File),
				zap.Int("line", recErr.Line),
				zap.String("id", recErr.ID),
				zap.Error(recErr.Err))
		}

		h.logger.Debug("input read",
			zap.String("file", path),
			zap.Int("records", res.Read),
			zap.Int("entities", len(res.Entities)))

		ents = append(ents, res.Entities...)
		recErrs = append(recErrs, res.Errors...)
		read += res.Read
	}

	return ents, read, recErrs, nil
}

// write hands the tables to every sink; all sinks are attempted.
func (h *RunHandler) write(ctx context.Context, tables *report.Tables) error {
	var errs []error
	for _, sink := range h.sinks {
		if err := sink.Write(ctx, tables); err != nil {
			errs = append(errs, fmt.Errorf("writing %s output: %w", sink.Name(), err))
			continue
		}
		h.logger.Debug("output written", zap.String("sink", sink.Name()))
	}
	return errors.Join(errs...)
}

func reportErrors(recErrs []*parsers.RecordError, failures []*services.EntityError) []string {
	var out []string
	for _, e := range recErrs {
		if len(out) == maxReportedErrors {
			return out
		}
		out = append(out, e.Error())
	}
	for _, f := range failures {
		if len(out) == maxReportedErrors {
			return out
		}
		out = append(out, f.Error())
	}
	return out
}

func writeStageReport(dir string, rep *report.StageReport) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, StageReportFile))
	if err != nil {
		return fmt.Errorf("creating stage report: %w", err)
	}

	if err := rep.WriteJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

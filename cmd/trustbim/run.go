package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ersonp/trustbim/internal/application/handlers"
	"github.com/ersonp/trustbim/internal/domain/ports"
	"github.com/ersonp/trustbim/internal/domain/report"
	"github.com/ersonp/trustbim/internal/domain/services"
	"github.com/ersonp/trustbim/internal/infrastructure/exporters"
	"github.com/ersonp/trustbim/internal/infrastructure/metrics"
)

type runFlags struct {
	out     string
	formats []string
	strict  bool
	failOn  []string
	workers int
	limit   int
	assist  bool
	audit   bool
	source  string
	noStore bool
}

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <patterns...>",
		Short: "Canonicalize and validate BIM records",
		Long: "Reads JSON lines, JSON or CSV record files matching the given files, directories or glob patterns,\n" +
			"validates them against the rule catalog and writes the output tables and stage_report.json.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args, flags)
		},
	}

	addRunFlags(cmd, &flags)

	return cmd
}

func addRunFlags(cmd *cobra.Command, flags *runFlags) {
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "Output directory (default: output.dir from config)")
	cmd.Flags().StringSliceVarP(&flags.formats, "format", "f", nil, "Output formats: csv, json, arrow (default: output.formats from config)")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "Stop at the first bad record or rule failure")
	cmd.Flags().StringSliceVar(&flags.failOn, "fail-on", nil, "Flag kinds that also stop a strict run, e.g. PARSE_ERROR,UNMAPPED_CLASS (default: validation.fail_on)")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Validation workers (default: validation.workers or GOMAXPROCS)")
	cmd.Flags().IntVarP(&flags.limit, "limit", "l", 0, "Maximum number of entities to read (0 reads all)")
	cmd.Flags().BoolVar(&flags.assist, "assist", false, "Ask the class assistant for proposals before validation")
	cmd.Flags().BoolVar(&flags.audit, "audit", false, "Write the rule_audit table")
	cmd.Flags().StringVar(&flags.source, "source", "", "Source name for records without a run id")
	cmd.Flags().BoolVar(&flags.noStore, "no-store", false, "Skip the configured run store")
}

func runRun(cmd *cobra.Command, args []string, flags runFlags) error {
	ctx := cmd.Context()

	return withDeps(func(d *Deps) error {
		session, err := newRunSession(ctx, d, flags)
		if err != nil {
			return err
		}
		defer session.Close()

		result, err := session.Run(ctx, args)
		if err != nil {
			return err
		}
		return printStageReport(os.Stdout, result.Report)
	})
}

// runSession holds everything a run needs so watch can repeat it.
type runSession struct {
	deps    *Deps
	handler *handlers.RunHandler
	opts    handlers.RunOptions
	metrics *metrics.RunMetrics
	closers []func()
}

func newRunSession(ctx context.Context, d *Deps, flags runFlags) (*runSession, error) {
	s := &runSession{deps: d, metrics: metrics.New()}
	if err := s.build(ctx, flags); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *runSession) build(ctx context.Context, flags runFlags) error {
	d := s.deps

	cat, err := d.LoadCatalog()
	if err != nil {
		return err
	}

	engineOpts, err := d.EngineOptions()
	if err != nil {
		return err
	}
	if flags.strict {
		engineOpts.Mode = services.ModeStrict
	}
	if len(flags.failOn) > 0 {
		kinds, err := parseFlagKinds(flags.failOn)
		if err != nil {
			return fmt.Errorf("--fail-on: %w", err)
		}
		engineOpts.FailOn = kinds
	}
	if flags.workers > 0 {
		engineOpts.Workers = flags.workers
	}

	outDir := s.outputDir(flags.out)
	formats := flags.formats
	if len(formats) == 0 {
		formats = d.Config.Output.Formats
	}
	sinks, err := exporters.NewAll(formats, outDir)
	if err != nil {
		return err
	}

	if !flags.noStore {
		store, err := openRunStore(ctx, d.Config, d.BasePath)
		if err != nil {
			return err
		}
		if store != nil {
			s.closers = append(s.closers, func() { store.Close() })
			sinks = append(sinks, ports.ResultSink(store))
		}
	}

	s.handler = handlers.NewRunHandler(cat, sinks, d.Logger).WithObserver(s.metrics)

	assist := flags.assist || d.Config.Assist.Enabled
	if assist {
		service, closeFn, err := d.NewAssist(ctx, cat.AllowedClasses())
		if err != nil {
			return err
		}
		s.closers = append(s.closers, closeFn)
		s.handler.WithAssist(service)
	}

	s.opts = handlers.RunOptions{
		Engine:    engineOpts,
		Limit:     flags.limit,
		Assist:    assist,
		Audit:     flags.audit || d.Config.Validation.Audit,
		ReportDir: outDir,
		Source:    flags.source,
	}
	return nil
}

// Run validates the inputs once and exports metrics when configured.
func (s *runSession) Run(ctx context.Context, patterns []string) (*handlers.RunResult, error) {
	result, runErr := s.handler.Handle(ctx, patterns, s.opts)

	if path := s.deps.Config.Metrics.Textfile; path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.deps.BasePath, path)
		}
		if err := s.metrics.WriteTextfile(path); err != nil {
			s.deps.Logger.Warn("failed to write metrics", zap.String("path", path), zap.Error(err))
		}
	}

	return result, runErr
}

// Reload swaps in a freshly loaded catalog, keeping the previous one when it does not load.
func (s *runSession) Reload() error {
	cat, err := s.deps.LoadCatalog()
	if err != nil {
		return fmt.Errorf("reloading rule catalog: %w", err)
	}
	s.handler = s.handler.WithCatalog(cat)
	return nil
}

// Close releases stores and clients in reverse order.
func (s *runSession) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func (s *runSession) outputDir(flag string) string {
	dir := flag
	if dir == "" {
		dir = s.deps.Config.Output.Dir
	}
	if dir == "" {
		dir = "output"
	}
	if filepath.IsAbs(dir) || flag != "" {
		return dir
	}
	return filepath.Join(s.deps.BasePath, dir)
}

func printStageReport(w io.Writer, rep *report.StageReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("printing stage report: %w", err)
	}
	return nil
}

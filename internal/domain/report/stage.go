package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ersonp/trustbim/internal/domain/entities"
)

// StageReport summarizes a run.
type StageReport struct {
	RunID           string         `json:"run_id"`
	Mode            string         `json:"mode"`
	CatalogDigest   string         `json:"catalog_digest"`
	Inputs          []string       `json:"inputs"`
	RecordsRead     int            `json:"records_read"`
	RecordErrors    int            `json:"record_errors"`
	Entities        int            `json:"entities"`
	Mapped          int            `json:"mapped"`
	Unmapped        int            `json:"unmapped"`
	Ambiguous       int            `json:"ambiguous"`
	AssistProposals int            `json:"assist_proposals"`
	FlagsByKind     map[string]int `json:"flags_by_kind"`
	FlagsBySeverity map[string]int `json:"flags_by_severity"`
	FlagsByStage    map[string]int `json:"flags_by_stage"`
	Suppressed      int            `json:"suppressed"`
	ReviewQueue     int            `json:"review_queue"`
	EntityErrors    int            `json:"entity_errors"`
	DurationMS      int64          `json:"duration_ms"`
	Errors          []string       `json:"errors,omitempty"`
}

// Summarize builds the stage report of a run from its records.
func Summarize(run Run, recs []entities.ValidationRecord, elapsed time.Duration) *StageReport {
	r := &StageReport{
		RunID:           run.ID,
		Mode:            run.Mode,
		CatalogDigest:   run.CatalogDigest,
		Inputs:          run.Inputs,
		Entities:        len(recs),
		FlagsByKind:     make(map[string]int),
		FlagsBySeverity: make(map[string]int),
		FlagsByStage:    make(map[string]int),
		DurationMS:      elapsed.Milliseconds(),
	}

	for i := range recs {
		rec := &recs[i]
		switch rec.Outcome {
		case entities.OutcomeMapped:
			r.Mapped++
		case entities.OutcomeAmbiguous:
			r.Mapped++
			r.Ambiguous++
		default:
			r.Unmapped++
		}
		if rec.ClassSource == entities.ClassSourceAssist {
			r.AssistProposals++
		}
		if rec.RequiresReview {
			r.ReviewQueue++
		}
		for _, f := range rec.Flags {
			r.FlagsByKind[string(f.Kind)]++
			r.FlagsBySeverity[string(f.Severity)]++
			r.FlagsByStage[string(f.Stage)]++
		}
		for _, ev := range rec.Evaluations {
			if ev.Outcome == entities.EvaluationSuppressed {
				r.Suppressed++
			}
		}
	}

	return r
}

// WriteJSON writes the report as indented JSON.
func (r *StageReport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding stage report: %w", err)
	}
	return nil
}

// WriteText writes a short human-readable summary.
func (r *StageReport) WriteText(w io.Writer) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	printf("Run %s (%s)\n", r.RunID, r.Mode)
	printf("  Records:  %d read, %d rejected\n", r.RecordsRead, r.RecordErrors)
	printf("  Entities: %d (%d mapped, %d unmapped, %d ambiguous)\n", r.Entities, r.Mapped, r.Unmapped, r.Ambiguous)
	if r.AssistProposals > 0 {
		printf("  Assist:   %d classes from proposals\n", r.AssistProposals)
	}
	printf("  Review:   %d entities\n", r.ReviewQueue)
	if r.EntityErrors > 0 {
		printf("  Failures: %d entities\n", r.EntityErrors)
	}
	if len(r.FlagsByKind) > 0 {
		printf("  Flags:\n")
		for _, kind := range sortedKeys(r.FlagsByKind) {
			printf("    %-28s %d\n", kind, r.FlagsByKind[kind])
		}
	}
	if r.Suppressed > 0 {
		printf("  Suppressed by exceptions: %d\n", r.Suppressed)
	}
	printf("  Duration: %dms\n", r.DurationMS)
	return err
}

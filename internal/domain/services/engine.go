// Package services contains the canonicalization and validation pipeline and
// the services around it: assist proposals and reference retrieval.
package services

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ersonp/trustbim/internal/domain/catalog"
	"github.com/ersonp/trustbim/internal/domain/entities"
)

// Mode controls how evaluation failures are handled.
type Mode string

// Mode values.
const (
	ModeTolerant Mode = "tolerant" // record the failure as a flag and continue
	ModeStrict   Mode = "strict"   // stop at the first failure
)

// ErrFlagRaised is wrapped by strict-mode failures caused by a FailOn flag.
var ErrFlagRaised = errors.New("flag raised")

// ParseMode converts a string to a Mode. Empty means tolerant.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeTolerant, nil
	case ModeTolerant, ModeStrict:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// EngineOptions configures a batch run.
type EngineOptions struct {
	Workers          int // <= 0 uses GOMAXPROCS
	Mode             Mode
	AssistPrecedence AssistPrecedence
	Review           ReviewPolicy
	// FailOn lists flag kinds that fail the entity in strict mode, e.g.
	// PARSE_ERROR or UNMAPPED_CLASS. Tolerant runs ignore it.
	FailOn []entities.FlagKind
}

// DefaultEngineOptions returns tolerant options with the default review policy.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		Mode:             ModeTolerant,
		AssistPrecedence: AssistFallback,
		Review:           DefaultReviewPolicy(),
	}
}

// EntityError is a failure to evaluate one entity.
type EntityError struct {
	Index    int
	EntityID string
	Stage    entities.Stage
	Err      error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("entity %s (#%d) %s: %v", e.EntityID, e.Index, e.Stage, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

// RunResult is the output of a batch run. Records[i] belongs to the i-th input entity.
type RunResult struct {
	Records  []entities.ValidationRecord
	Failures []*EntityError // entities whose rules failed to evaluate, tolerant mode only
	Duration time.Duration
}

// Engine runs the pipeline over a batch of entities.
type Engine struct {
	opts       EngineOptions
	canon      *Canonicalizer
	normalizer *PropertyNormalizer
	props      *PropertyValidator
	rels       *RelationshipValidator
	incoh      *IncoherenceEngine
	agg        *Aggregator
	logger     *zap.Logger
}

// NewEngine creates an engine over an immutable catalog.
func NewEngine(cat *catalog.Catalog, opts EngineOptions, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Mode == "" {
		opts.Mode = ModeTolerant
	}
	return &Engine{
		opts:       opts,
		canon:      NewCanonicalizer(cat, opts.AssistPrecedence),
		normalizer: NewPropertyNormalizer(cat.Normalizer()),
		props:      NewPropertyValidator(cat),
		rels:       NewRelationshipValidator(cat),
		incoh:      NewIncoherenceEngine(cat),
		agg:        NewAggregator(opts.Review),
		logger:     logger,
	}
}

// entityState carries one entity between the two phases.
type entityState struct {
	res   Resolution
	flags []entities.Flag
}

// Run canonicalizes, normalizes and validates ents. Entities are modified in
// place by the canonicalizer and normalizer.
//
// The batch runs in two parallel phases separated by a barrier: every entity
// is canonicalized and normalized before any validator runs, so neighbor
// classes are known. Records come back in input order whatever the worker
// count. In strict mode the error is the *EntityError of the lowest failing
// index.
func (en *Engine) Run(ctx context.Context, ents []*entities.Entity) (*RunResult, error) {
	start := time.Now()
	n := len(ents)
	states := make([]entityState, n)
	failures := make([]*EntityError, n)
	records := make([]entities.ValidationRecord, n)

	strict := en.opts.Mode == ModeStrict
	var lowest atomic.Int64
	lowest.Store(int64(n))

	// fail records a failure. In strict mode it lowers the cut-off so that
	// only entities after the lowest known failure are skipped.
	fail := func(i int, stage entities.Stage, err error) {
		if failures[i] == nil {
			failures[i] = &EntityError{Index: i, EntityID: ents[i].ID, Stage: stage, Err: err}
		}
		if !strict {
			return
		}
		for {
			cur := lowest.Load()
			if int64(i) >= cur || lowest.CompareAndSwap(cur, int64(i)) {
				return
			}
		}
	}
	skip := func(i int) bool {
		return strict && int64(i) > lowest.Load()
	}

	phase := func(work func(i int)) error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(en.opts.Workers)
		for i := range ents {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				if !skip(i) {
					work(i)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		return ctx.Err()
	}

	err := phase(func(i int) {
		e := ents[i]
		res, err := en.canon.Canonicalize(e)
		if err != nil {
			fail(i, entities.StageCanonicalize, err)
		}
		if en.opts.AssistPrecedence != AssistIgnore {
			MergeProposal(e)
		}
		flags := append(res.Flags, en.normalizer.Normalize(e)...)
		res.Flags = nil
		states[i] = entityState{res: res, flags: flags}
		if f, ok := en.failingFlag(flags); ok {
			fail(i, f.Stage, fmt.Errorf("%w: %s: %s", ErrFlagRaised, f.Kind, f.Message))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("canonicalizing batch: %w", err)
	}
	if strict && lowest.Load() < int64(n) {
		return nil, failures[lowest.Load()]
	}

	index := NewNeighborIndex(ents)

	err = phase(func(i int) {
		e := ents[i]
		st := &states[i]
		st.flags = append(st.flags, en.props.Validate(e)...)
		st.flags = append(st.flags, en.rels.Validate(e, index)...)

		incFlags, evals, err := en.incoh.Evaluate(e, index)
		if err != nil {
			fail(i, entities.StageIncoherence, err)
		}
		st.flags = append(st.flags, incFlags...)

		records[i] = en.agg.Aggregate(e, st.res, st.flags, evals)
		if f, ok := en.failingFlag(st.flags); ok {
			fail(i, f.Stage, fmt.Errorf("%w: %s: %s", ErrFlagRaised, f.Kind, f.Message))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("validating batch: %w", err)
	}
	if strict && lowest.Load() < int64(n) {
		return nil, failures[lowest.Load()]
	}

	result := &RunResult{Records: records, Duration: time.Since(start)}
	for _, f := range failures {
		if f != nil {
			result.Failures = append(result.Failures, f)
		}
	}
	en.logSummary(result)
	return result, nil
}

// failingFlag returns the first flag whose kind is in FailOn, strict mode only.
func (en *Engine) failingFlag(flags []entities.Flag) (entities.Flag, bool) {
	if en.opts.Mode != ModeStrict || len(en.opts.FailOn) == 0 {
		return entities.Flag{}, false
	}
	for _, f := range flags {
		if slices.Contains(en.opts.FailOn, f.Kind) {
			return f, true
		}
	}
	return entities.Flag{}, false
}

func (en *Engine) logSummary(result *RunResult) {
	var flagged, review, unmapped int
	debug := en.logger.Core().Enabled(zap.DebugLevel)
	for i := range result.Records {
		rec := &result.Records[i]
		if len(rec.Flags) > 0 {
			flagged++
		}
		if rec.RequiresReview {
			review++
		}
		if rec.Outcome == entities.OutcomeUnmapped {
			unmapped++
		}
		if !debug {
			continue
		}
		for _, f := range rec.Flags {
			en.logger.Debug("flag",
				zap.String("entity", rec.EntityID),
				zap.String("kind", string(f.Kind)),
				zap.String("severity", string(f.Severity)),
				zap.String("rule", f.RuleID),
				zap.String("message", f.Message))
		}
	}

	en.logger.Info("batch validated",
		zap.Int("entities", len(result.Records)),
		zap.Int("flagged", flagged),
		zap.Int("unmapped", unmapped),
		zap.Int("review", review),
		zap.Int("failures", len(result.Failures)),
		zap.Int("workers", en.opts.Workers),
		zap.String("mode", string(en.opts.Mode)),
		zap.Duration("duration", result.Duration))
}

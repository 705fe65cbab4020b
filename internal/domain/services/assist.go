package services

import (
	"context"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ersonp/trustbim/internal/domain/entities"
	"github.com/ersonp/trustbim/internal/domain/ports"
)

// AssistOptions controls proposal collection.
type AssistOptions struct {
	Workers int // concurrent assistant calls
	TopN    int // references passed per entity
}

// DefaultAssistOptions returns conservative defaults for remote models.
func DefaultAssistOptions() AssistOptions {
	return AssistOptions{Workers: 2, TopN: 5}
}

// AssistService collects class proposals before the batch is validated.
type AssistService struct {
	assistant ports.ClassAssistant
	refs      *ReferenceService // optional
	allowed   []string
	opts      AssistOptions
	logger    *zap.Logger
}

// NewAssistService creates an assist service. refs may be nil, in which case
// only references carried on the records are used.
func NewAssistService(assistant ports.ClassAssistant, refs *ReferenceService, allowed []string, opts AssistOptions, logger *zap.Logger) *AssistService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultAssistOptions().TopN
	}
	return &AssistService{
		assistant: assistant,
		refs:      refs,
		allowed:   allowed,
		opts:      opts,
		logger:    logger,
	}
}

// Propose attaches a proposal to every entity that has none. A failed call
// leaves the entity without a proposal; only cancellation is returned as an
// error. It returns the number of proposals attached.
func (s *AssistService) Propose(ctx context.Context, ents []*entities.Entity) (int, error) {
	var attached atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for _, e := range ents {
		if e == nil || e.Proposal != nil {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			req := ports.AssistRequest{
				Entity:         e,
				AllowedClasses: s.allowed,
				References:     s.references(gctx, e),
			}
			p, err := s.assistant.Propose(gctx, req)
			if err != nil {
				s.logger.Warn("assist proposal failed",
					zap.String("entity", e.ID),
					zap.Error(err))
				return nil
			}
			if p == nil || p.Class == "" {
				return nil
			}
			e.Proposal = p
			attached.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(attached.Load()), err
	}
	return int(attached.Load()), ctx.Err()
}

// references picks the references for a prompt: the record's own, best
// reranked first, else the nearest indexed ones.
func (s *AssistService) references(ctx context.Context, e *entities.Entity) []entities.Reference {
	if len(e.References) > 0 {
		return TopReferences(e.References, s.opts.TopN)
	}
	if s.refs == nil {
		return nil
	}
	refs, err := s.refs.Search(ctx, e.SearchText(), s.opts.TopN)
	if err != nil {
		s.logger.Warn("reference search failed",
			zap.String("entity", e.ID),
			zap.Error(err))
		return nil
	}
	return refs
}

// TopReferences returns up to n references ordered by rerank score, then
// retrieval score, best first. The input is not modified.
func TopReferences(refs []entities.Reference, n int) []entities.Reference {
	out := make([]entities.Reference, len(refs))
	copy(out, refs)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rerank != out[j].Rerank {
			return out[i].Rerank > out[j].Rerank
		}
		return out[i].Score > out[j].Score
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

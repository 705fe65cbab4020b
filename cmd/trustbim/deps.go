package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ersonp/trustbim/internal/application/handlers"
	"github.com/ersonp/trustbim/internal/domain/catalog"
	"github.com/ersonp/trustbim/internal/domain/entities"
	"github.com/ersonp/trustbim/internal/domain/ports"
	"github.com/ersonp/trustbim/internal/domain/services"
	"github.com/ersonp/trustbim/internal/infrastructure/config"
	embedder "github.com/ersonp/trustbim/internal/infrastructure/embedder/openai"
	llm "github.com/ersonp/trustbim/internal/infrastructure/llm/openai"
	"github.com/ersonp/trustbim/internal/infrastructure/logging"
	"github.com/ersonp/trustbim/internal/infrastructure/relationaldb/postgres"
	"github.com/ersonp/trustbim/internal/infrastructure/relationaldb/sqlite"
	"github.com/ersonp/trustbim/internal/infrastructure/vectordb/qdrant"
)

// errNoRunStore is returned by commands that query stored runs when no store is configured.
var errNoRunStore = errors.New("no run store configured (set store.driver to sqlite or postgres)")

// Deps holds what every command needs: the project root, its config and a logger.
type Deps struct {
	BasePath string
	Config   *config.Config
	Logger   *zap.Logger
}

// withDeps loads config and builds the logger, then calls the provided function.
func withDeps(fn func(*Deps) error) error {
	base, err := projectDir()
	if err != nil {
		return err
	}

	cfg, err := loadConfig(base)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	return fn(&Deps{BasePath: base, Config: cfg, Logger: logger})
}

// withRunStore opens the configured run store for commands that query past runs.
func withRunStore(ctx context.Context, fn func(*Deps, ports.RunStore) error) error {
	return withDeps(func(d *Deps) error {
		store, err := openRunStore(ctx, d.Config, d.BasePath)
		if err != nil {
			return err
		}
		if store == nil {
			return errNoRunStore
		}
		defer store.Close()

		return fn(d, store)
	})
}

// withReferencesHandler connects the embedder and the Qdrant reference store.
func withReferencesHandler(fn func(*Deps, *handlers.ReferencesHandler) error) error {
	return withDeps(func(d *Deps) error {
		emb, err := embedder.NewEmbedder(d.Config.Embedder)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}

		repo, err := newQdrant(d.Config)
		if err != nil {
			return err
		}
		defer repo.Close()

		handler := handlers.NewReferencesHandler(services.NewReferenceService(emb, repo), repo, embedder.VectorSize)
		return fn(d, handler)
	})
}

func projectDir() (string, error) {
	if globalDir != "" {
		abs, err := filepath.Abs(globalDir)
		if err != nil {
			return "", fmt.Errorf("resolving project directory: %w", err)
		}
		return abs, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return cwd, nil
}

func loadConfig(base string) (*config.Config, error) {
	if globalConfig != "" {
		return config.LoadFile(globalConfig)
	}
	return config.LoadOrDefault(base)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	lc := logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}
	if globalVerbose {
		lc.Level = "debug"
	}
	logger, err := logging.New(lc)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return logger, nil
}

// RulesPath is the rule catalog location: the --rules flag, else the config.
func (d *Deps) RulesPath() string {
	if globalRules != "" {
		if abs, err := filepath.Abs(globalRules); err == nil {
			return abs
		}
		return globalRules
	}
	return d.Config.RulesPath(d.BasePath)
}

// LoadCatalog loads the rule catalog. The built-in catalog is used when the
// configured location does not exist and was not given explicitly.
func (d *Deps) LoadCatalog() (*catalog.Catalog, error) {
	path := d.RulesPath()
	if path == "" || (globalRules == "" && !pathExists(path)) {
		d.Logger.Debug("using built-in rule catalog", zap.String("missing", path))
		return catalog.Default()
	}

	cat, err := catalog.Load(path)
	if err != nil {
		return nil, err
	}
	d.Logger.Debug("loaded rule catalog", zap.Strings("sources", cat.Sources()), zap.String("digest", cat.Digest()))
	return cat, nil
}

// EngineOptions builds engine options from the validation config.
func (d *Deps) EngineOptions() (services.EngineOptions, error) {
	v := d.Config.Validation
	opts := services.DefaultEngineOptions()

	mode, err := services.ParseMode(v.Mode)
	if err != nil {
		return opts, fmt.Errorf("validation.mode: %w", err)
	}
	opts.Mode = mode
	opts.Workers = v.Workers

	precedence, err := services.ParseAssistPrecedence(v.AssistPrecedence)
	if err != nil {
		return opts, fmt.Errorf("validation.assist_precedence: %w", err)
	}
	opts.AssistPrecedence = precedence

	if v.ConfidenceThreshold != nil {
		opts.Review.ConfidenceThreshold = *v.ConfidenceThreshold
	}
	if len(v.ReviewSeverities) > 0 {
		opts.Review.Severities = opts.Review.Severities[:0:0]
		for _, s := range v.ReviewSeverities {
			sev, err := entities.ParseSeverity(s)
			if err != nil {
				return opts, fmt.Errorf("validation.review_severities: %w", err)
			}
			opts.Review.Severities = append(opts.Review.Severities, sev)
		}
	}

	if len(v.FailOn) > 0 {
		kinds, err := parseFlagKinds(v.FailOn)
		if err != nil {
			return opts, fmt.Errorf("validation.fail_on: %w", err)
		}
		opts.FailOn = kinds
	}

	return opts, nil
}

func parseFlagKinds(names []string) ([]entities.FlagKind, error) {
	kinds := make([]entities.FlagKind, 0, len(names))
	for _, name := range names {
		kind, err := entities.ParseFlagKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// NewAssist builds the assist service. References are attached only when the
// embedder is configured and the reference store answers; close releases them.
func (d *Deps) NewAssist(ctx context.Context, allowed []string) (assist *services.AssistService, closeFn func(), err error) {
	client, err := llm.NewClient(d.Config.Assist)
	if err != nil {
		return nil, nil, fmt.Errorf("creating assist client: %w", err)
	}

	closeFn = func() {}
	refs := d.referenceService(ctx)
	if refs != nil {
		closeFn = refs.close
	}

	opts := services.DefaultAssistOptions()
	if d.Config.Assist.Workers > 0 {
		opts.Workers = d.Config.Assist.Workers
	}
	if d.Config.Assist.TopN > 0 {
		opts.TopN = d.Config.Assist.TopN
	}

	var service *services.ReferenceService
	if refs != nil {
		service = refs.service
	}
	d.Logger.Debug("assist enabled", zap.String("model", client.Model()), zap.Bool("references", service != nil))
	return services.NewAssistService(client, service, allowed, opts, d.Logger), closeFn, nil
}

type referenceHandle struct {
	service *services.ReferenceService
	close   func()
}

func (d *Deps) referenceService(ctx context.Context) *referenceHandle {
	emb, err := embedder.NewEmbedder(d.Config.Embedder)
	if err != nil {
		d.Logger.Debug("reference retrieval disabled", zap.Error(err))
		return nil
	}

	repo, err := newQdrant(d.Config)
	if err != nil {
		d.Logger.Debug("reference retrieval disabled", zap.Error(err))
		return nil
	}
	if _, err := repo.Count(ctx); err != nil {
		d.Logger.Warn("reference store unavailable, assist runs without references", zap.Error(err))
		repo.Close()
		return nil
	}

	return &referenceHandle{
		service: services.NewReferenceService(emb, repo),
		close:   func() { repo.Close() },
	}
}

func newQdrant(cfg *config.Config) (*qdrant.Repository, error) {
	qc := cfg.Qdrant
	qc.Collection = cfg.CollectionName()
	repo, err := qdrant.NewRepository(qc)
	if err != nil {
		return nil, fmt.Errorf("creating qdrant repository: %w", err)
	}
	return repo, nil
}

// openRunStore opens the configured relational store. It returns nil when
// store.driver is empty.
func openRunStore(ctx context.Context, cfg *config.Config, base string) (ports.RunStore, error) {
	var (
		store ports.RunStore
		err   error
	)

	switch driver := strings.ToLower(cfg.Store.Driver); driver {
	case "":
		return nil, nil
	case "sqlite":
		sc := cfg.Store
		sc.Path = cfg.StorePath(base)
		if err := os.MkdirAll(filepath.Dir(sc.Path), 0755); err != nil {
			return nil, fmt.Errorf("creating run store directory: %w", err)
		}
		store, err = sqlite.NewRepository(sc)
	case "postgres":
		store, err = postgres.NewRepository(ctx, cfg.Store)
	default:
		return nil, fmt.Errorf("unknown store driver %q (want sqlite or postgres)", cfg.Store.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("opening run store: %w", err)
	}

	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensuring run store schema: %w", err)
	}
	return store, nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

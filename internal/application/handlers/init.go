package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ersonp/trustbim/internal/domain/catalog"
	"github.com/ersonp/trustbim/internal/domain/ports"
	"github.com/ersonp/trustbim/internal/infrastructure/config"
)

// InitHandler handles project initialization.
type InitHandler struct {
	collectionManager ports.CollectionManager
	vectorSize        uint64
}

// NewInitHandler creates a new init handler. collectionManager may be nil when
// no reference store is configured.
func NewInitHandler(collectionManager ports.CollectionManager, vectorSize uint64) *InitHandler {
	return &InitHandler{
		collectionManager: collectionManager,
		vectorSize:        vectorSize,
	}
}

// InitResult contains the result of initialization.
type InitResult struct {
	ConfigPath     string
	RulesPath      string
	RulesWritten   bool
	CollectionName string
}

// Handle writes the default config and rule catalog under basePath.
func (h *InitHandler) Handle(ctx context.Context, basePath string) (*InitResult, error) {
	if config.Exists(basePath) {
		return nil, fmt.Errorf("trustbim already initialized in %s", basePath)
	}

	if err := config.WriteDefault(basePath); err != nil {
		return nil, fmt.Errorf("writing default config: %w", err)
	}

	cfg, err := config.Load(basePath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	rulesPath := filepath.Join(cfg.RulesPath(basePath), catalog.DefaultRulesFile)
	written, err := writeDefaultRules(rulesPath)
	if err != nil {
		return nil, err
	}

	result := &InitResult{
		ConfigPath:   config.ConfigFilePath(basePath),
		RulesPath:    rulesPath,
		RulesWritten: written,
	}

	if h.collectionManager != nil {
		if err := h.collectionManager.EnsureCollection(ctx, h.vectorSize); err != nil {
			return nil, fmt.Errorf("creating collection: %w", err)
		}
		result.CollectionName = cfg.CollectionName()
	}

	return result, nil
}

// writeDefaultRules writes the built-in catalog unless a file is already there.
func writeDefaultRules(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("checking rule catalog: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("creating rules directory: %w", err)
	}
	if err := os.WriteFile(path, catalog.DefaultRules, 0644); err != nil {
		return false, fmt.Errorf("writing rule catalog: %w", err)
	}
	return true, nil
}

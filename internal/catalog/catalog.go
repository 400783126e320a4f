// Package catalog provides tool-catalog sources. The resolver treats the
// catalog as an ordered list; providers must preserve declaration order so
// tie-breaks stay deterministic.
package catalog

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	stderrors "finchat-engine/internal/common/errors"
	"finchat-engine/internal/common/logger"
	"finchat-engine/internal/models"
	"finchat-engine/pkg/registry"
)

// Provider serves the current tool catalog.
type Provider interface {
	List(ctx context.Context) ([]models.ToolCatalogEntry, error)
}

// StaticProvider serves a fixed in-memory catalog. Useful for tests and for
// deployments where the tool set is compiled in.
type StaticProvider struct {
	entries []models.ToolCatalogEntry
}

// NewStaticProvider copies the given entries, preserving order.
func NewStaticProvider(entries []models.ToolCatalogEntry) *StaticProvider {
	copied := make([]models.ToolCatalogEntry, len(entries))
	copy(copied, entries)
	return &StaticProvider{entries: copied}
}

// List returns the catalog. The returned slice is shared; callers must not
// mutate it.
func (p *StaticProvider) List(ctx context.Context) ([]models.ToolCatalogEntry, error) {
	return p.entries, nil
}

// FileProvider reads a JSON catalog document from disk, validates it against
// the catalog schema, and serves it with optional time-based refresh.
type FileProvider struct {
	path    string
	refresh time.Duration
	logger  logger.Logger

	mu       sync.RWMutex
	entries  []models.ToolCatalogEntry
	loadedAt time.Time
}

// NewFileProvider loads the catalog once up front so a malformed file fails
// at startup rather than mid-turn. refresh of zero disables re-reading.
func NewFileProvider(path string, refresh time.Duration, log logger.Logger) (*FileProvider, error) {
	p := &FileProvider{path: path, refresh: refresh, logger: log}
	if err := p.load(); err != nil {
		return nil, err
	}
	return p, nil
}

// List returns the current catalog, re-reading the file when the refresh
// window has elapsed. A failed refresh keeps serving the last good catalog.
func (p *FileProvider) List(ctx context.Context) ([]models.ToolCatalogEntry, error) {
	p.mu.RLock()
	stale := p.refresh > 0 && time.Since(p.loadedAt) > p.refresh
	entries := p.entries
	p.mu.RUnlock()

	if !stale {
		return entries, nil
	}

	if err := p.load(); err != nil {
		p.logger.Warn("catalog refresh failed, serving previous catalog", map[string]interface{}{
			"path":  p.path,
			"error": err.Error(),
		})
		return entries, nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.entries, nil
}

func (p *FileProvider) load() error {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return stderrors.NewCatalogLoadError(p.path, err)
	}

	if violations, err := registry.ValidateDocument(registry.ToolCatalogSchema, raw); err != nil {
		return stderrors.NewCatalogLoadError(p.path, err)
	} else if len(violations) > 0 {
		return stderrors.NewSchemaValidationError(p.path, strings.Join(violations, "; "))
	}

	var doc struct {
		Tools []models.ToolCatalogEntry `json:"tools"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return stderrors.NewCatalogLoadError(p.path, err)
	}

	p.mu.Lock()
	p.entries = doc.Tools
	p.loadedAt = time.Now()
	p.mu.Unlock()

	p.logger.Info("tool catalog loaded", map[string]interface{}{
		"path":  p.path,
		"tools": len(doc.Tools),
	})
	return nil
}

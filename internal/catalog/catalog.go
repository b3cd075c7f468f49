// Package catalog holds the declarative query-type catalog: an immutable
// mapping from type name to its QueryConfig descriptor. The catalog is
// data, not control flow — the engine receives it whole and never mutates
// it.
package catalog

import (
	"fmt"
	"os"
	"sort"

	"querybatch/internal/domain"
)

// Catalog maps query-type names to their configs. Read-only after
// construction; construct and merge before handing it to the engine.
type Catalog struct {
	configs map[string]*domain.QueryConfig
}

// New builds a catalog with the built-in query types.
func New() *Catalog {
	return &Catalog{configs: builtinConfigs()}
}

// Get returns the config for a type name.
func (c *Catalog) Get(name string) (*domain.QueryConfig, bool) {
	cfg, ok := c.configs[name]
	return cfg, ok
}

// Types returns all registered type names, sorted.
func (c *Catalog) Types() []string {
	out := make([]string, 0, len(c.configs))
	for name := range c.configs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered types.
func (c *Catalog) Len() int { return len(c.configs) }

// Register adds or replaces a config. Intended for startup wiring and
// tests only; the catalog must not change once the engine is serving.
func (c *Catalog) Register(name string, cfg *domain.QueryConfig) {
	c.configs[name] = cfg
}

// MergeYAMLFile loads supplemental generic-only configs from a YAML file
// and registers them. Existing names are not overwritten.
func (c *Catalog) MergeYAMLFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog file: %w", err)
	}
	configs, err := ParseYAML(data)
	if err != nil {
		return fmt.Errorf("parse catalog file %s: %w", path, err)
	}
	for name, cfg := range configs {
		if _, exists := c.configs[name]; exists {
			continue
		}
		c.configs[name] = cfg
	}
	return nil
}

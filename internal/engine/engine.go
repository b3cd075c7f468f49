// Package engine compiles declarative query descriptors into parameterized
// SQL and executes them against the analytical datastore, opportunistically
// merging structurally-compatible requests into one UNION ALL round trip.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"querybatch/internal/catalog"
	"querybatch/internal/domain"
	"querybatch/internal/plugins"
	"querybatch/internal/tracing"
)

// defaultGroupConcurrency bounds how many batch groups execute in
// parallel.
const defaultGroupConcurrency = 4

// Engine executes catalog-described queries. Stateless per invocation;
// safe for concurrent use.
type Engine struct {
	catalog          *catalog.Catalog
	store            domain.Datastore
	tracer           domain.Tracer
	logger           *slog.Logger
	groupConcurrency int
}

// Options configures optional engine collaborators.
type Options struct {
	Tracer           domain.Tracer
	Logger           *slog.Logger
	GroupConcurrency int
}

// New creates an Engine over a catalog and datastore. Both are required;
// a missing catalog is a configuration-level programming error, not a
// per-request condition.
func New(cat *catalog.Catalog, store domain.Datastore, opts Options) (*Engine, error) {
	if cat == nil {
		return nil, fmt.Errorf("engine: catalog is required")
	}
	if store == nil {
		return nil, fmt.Errorf("engine: datastore is required")
	}
	e := &Engine{
		catalog:          cat,
		store:            store,
		tracer:           opts.Tracer,
		logger:           opts.Logger,
		groupConcurrency: opts.GroupConcurrency,
	}
	if e.tracer == nil {
		e.tracer = tracing.Noop()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.groupConcurrency <= 0 {
		e.groupConcurrency = defaultGroupConcurrency
	}
	return e, nil
}

// CompileType resolves a type name through the catalog and compiles the
// request. Unknown names return *domain.UnknownTypeError.
func (e *Engine) CompileType(typeName string, req domain.QueryRequest, websiteDomain string) (domain.CompiledQuery, error) {
	cfg, ok := e.catalog.Get(typeName)
	if !ok {
		return domain.CompiledQuery{}, domain.ErrUnknownType("unknown query type %q", typeName)
	}
	return Compile(cfg, req, websiteDomain)
}

// Execute compiles and runs a single query, then applies the config's
// plugin pipeline. This is the non-batched path: compile-time errors
// (forbidden filter, missing required input) surface directly.
func (e *Engine) Execute(ctx context.Context, typeName string, req domain.QueryRequest, websiteDomain string) ([]domain.Row, error) {
	cfg, ok := e.catalog.Get(typeName)
	if !ok {
		return nil, domain.ErrUnknownType("unknown query type %q", typeName)
	}

	compiled, err := Compile(cfg, req, websiteDomain)
	if err != nil {
		return nil, err
	}

	rows, err := e.store.Query(ctx, compiled.SQL, compiled.Params)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", typeName, err)
	}
	return plugins.Apply(rows, cfg, typeName, websiteDomain), nil
}

// AreCompatible reports whether two types share a non-empty schema
// signature and may therefore merge into one union query.
func (e *Engine) AreCompatible(a, b string) bool {
	ca, okA := e.catalog.Get(a)
	cb, okB := e.catalog.Get(b)
	if !okA || !okB {
		return false
	}
	sig := Signature(ca)
	return sig != "" && sig == Signature(cb)
}

// CompatibleTypesOf lists every other catalog type sharing the type's
// signature. Types without a declared schema are compatible with nothing.
func (e *Engine) CompatibleTypesOf(typeName string) []string {
	cfg, ok := e.catalog.Get(typeName)
	if !ok {
		return nil
	}
	sig := Signature(cfg)
	if sig == "" {
		return nil
	}

	var out []string
	for _, name := range e.catalog.Types() {
		if name == typeName {
			continue
		}
		other, _ := e.catalog.Get(name)
		if Signature(other) == sig {
			out = append(out, name)
		}
	}
	return out
}

// SchemaGroups maps each declared signature to the sorted type names
// sharing it.
func (e *Engine) SchemaGroups() map[string][]string {
	groups := map[string][]string{}
	for _, name := range e.catalog.Types() {
		cfg, _ := e.catalog.Get(name)
		sig := Signature(cfg)
		if sig == "" {
			continue
		}
		groups[sig] = append(groups[sig], name)
	}
	for _, names := range groups {
		sort.Strings(names)
	}
	return groups
}

package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"querybatch/internal/domain"
	"querybatch/internal/plugins"
)

// discColumn tags each union arm with its position so rows can be routed
// back to the originating request.
const discColumn = "__disc"

// BatchOptions carries per-invocation context shared by all requests in a
// batch.
type BatchOptions struct {
	WebsiteDomain string
	Timezone      string
}

// groupMember pairs a request with its original index so results land in
// input order regardless of grouping or completion order.
type groupMember struct {
	index int
	req   domain.BatchRequest
	cfg   *domain.QueryConfig
}

// ExecuteBatch runs many requests, merging schema-compatible ones into
// single UNION ALL round trips. Every input index receives exactly one
// result; failures degrade to per-item error strings and never escape as
// errors from this call.
//
// Groups are independent, so they execute concurrently (bounded); a
// group's union failure triggers an individual-execution fallback for that
// group only.
func (e *Engine) ExecuteBatch(ctx context.Context, requests []domain.BatchRequest, opts BatchOptions) []domain.BatchResult {
	if len(requests) == 0 {
		return []domain.BatchResult{}
	}

	results := make([]domain.BatchResult, len(requests))

	if len(requests) == 1 {
		// Bypass grouping entirely: identical behavior to a non-batched
		// call, with the error captured instead of thrown.
		results[0] = e.executeItem(ctx, requests[0], opts)
		return results
	}

	groups := map[string][]groupMember{}
	var keys []string
	for i, r := range requests {
		cfg, ok := e.catalog.Get(r.Type)
		if !ok {
			results[i] = errResult(r.Type, domain.ErrUnknownType("unknown query type %q", r.Type))
			continue
		}
		key := GroupingKey(cfg, r.Type)
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], groupMember{index: i, req: r, cfg: cfg})
	}

	g := new(errgroup.Group)
	g.SetLimit(e.groupConcurrency)
	for _, key := range keys {
		members := groups[key]
		g.Go(func() error {
			e.executeGroup(ctx, key, members, opts, results)
			return nil
		})
	}
	_ = g.Wait()

	// Every slot must be filled; an empty one here is a bug, patched over
	// rather than surfaced to the caller.
	for i := range results {
		if results[i].Type == "" && results[i].Data == nil {
			results[i] = domain.BatchResult{Type: requests[i].Type, Data: []domain.Row{}}
		}
	}
	return results
}

// executeGroup runs one signature group, writing into the members' result
// slots. Size-one groups skip the union machinery.
func (e *Engine) executeGroup(ctx context.Context, key string, members []groupMember, opts BatchOptions, results []domain.BatchResult) {
	ctx, span := e.tracer.Start(ctx, "query.batch.group")
	defer span.End()
	start := time.Now()

	var rowCount int
	var unionErr error
	if len(members) == 1 {
		m := members[0]
		results[m.index] = e.executeItem(ctx, m.req, opts)
		rowCount = len(results[m.index].Data)
	} else {
		rowCount, unionErr = e.executeUnion(ctx, members, opts, results)
		if unionErr != nil {
			e.logger.Warn("union batch failed, retrying members individually",
				"group", key, "members", len(members), "error", unionErr)
			for _, m := range members {
				if err := ctx.Err(); err != nil {
					results[m.index] = errResult(m.req.Type, err)
					continue
				}
				results[m.index] = e.executeItem(ctx, m.req, opts)
			}
		}
	}

	span.SetAttributes(map[string]any{
		"batch.group":       key,
		"batch.requests":    len(members),
		"batch.rows":        rowCount,
		"batch.duration_ms": time.Since(start).Milliseconds(),
		"batch.fallback":    unionErr != nil,
	})
}

// executeUnion compiles every member, namespaces its placeholders by
// position, wraps each arm with a literal discriminator, and issues one
// datastore call. Any failure is returned whole so the caller can fall
// back; partial results are never written.
func (e *Engine) executeUnion(ctx context.Context, members []groupMember, opts BatchOptions, results []domain.BatchResult) (int, error) {
	arms := make([]string, len(members))
	params := map[string]any{}
	for pos, m := range members {
		compiled, err := Compile(m.cfg, applyOpts(m.req.Request, opts), opts.WebsiteDomain)
		if err != nil {
			return 0, fmt.Errorf("compile %s: %w", m.req.Type, err)
		}
		prefixed := prefixPlaceholders(compiled, pos)
		arms[pos] = fmt.Sprintf("SELECT %d AS %s, * FROM (%s)", pos, discColumn, prefixed.SQL)
		for k, v := range prefixed.Params {
			params[k] = v
		}
	}

	rows, err := e.store.Query(ctx, strings.Join(arms, " UNION ALL "), params)
	if err != nil {
		return 0, fmt.Errorf("union query: %w", err)
	}

	perMember := make([][]domain.Row, len(members))
	for i := range perMember {
		perMember[i] = []domain.Row{}
	}
	for _, row := range rows {
		pos, ok := discValue(row[discColumn])
		if !ok || pos < 0 || pos >= len(members) {
			continue
		}
		clean := make(domain.Row, len(row)-1)
		for k, v := range row {
			if k != discColumn {
				clean[k] = v
			}
		}
		perMember[pos] = append(perMember[pos], clean)
	}

	for pos, m := range members {
		data := plugins.Apply(perMember[pos], m.cfg, m.req.Type, opts.WebsiteDomain)
		results[m.index] = domain.BatchResult{Type: m.req.Type, Data: data}
	}
	return len(rows), nil
}

// executeItem runs one request on the direct path, converting any error
// into the item's result.
func (e *Engine) executeItem(ctx context.Context, r domain.BatchRequest, opts BatchOptions) domain.BatchResult {
	rows, err := e.Execute(ctx, r.Type, applyOpts(r.Request, opts), opts.WebsiteDomain)
	if err != nil {
		return errResult(r.Type, err)
	}
	if rows == nil {
		rows = []domain.Row{}
	}
	return domain.BatchResult{Type: r.Type, Data: rows}
}

// prefixPlaceholders renames every placeholder with the member's position
// (q0_, q1_, ...) so merged arms never collide. Placeholder names are
// carried first-class through compilation, so this is a precise rename of
// known names, not a blind substitution.
func prefixPlaceholders(q domain.CompiledQuery, pos int) domain.CompiledQuery {
	prefix := fmt.Sprintf("q%d_", pos)
	out := domain.CompiledQuery{
		SQL:          q.SQL,
		Params:       make(map[string]any, len(q.Params)),
		Placeholders: make([]string, 0, len(q.Placeholders)),
	}
	for _, name := range q.Placeholders {
		renamed := prefix + name
		out.SQL = strings.ReplaceAll(out.SQL, "{"+name+":", "{"+renamed+":")
		if v, ok := q.Params[name]; ok {
			out.Params[renamed] = v
		}
		out.Placeholders = append(out.Placeholders, renamed)
	}
	return out
}

// applyOpts fills request fields that default from batch-level options.
func applyOpts(req domain.QueryRequest, opts BatchOptions) domain.QueryRequest {
	if req.Timezone == "" {
		req.Timezone = opts.Timezone
	}
	return req
}

func errResult(typeName string, err error) domain.BatchResult {
	return domain.BatchResult{Type: typeName, Data: []domain.Row{}, Error: err.Error()}
}

// discValue normalizes the discriminator column across the integer types
// a driver may return it as.
func discValue(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int8:
		return int(t), true
	case int16:
		return int(t), true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case uint8:
		return int(t), true
	case uint16:
		return int(t), true
	case uint32:
		return int(t), true
	case uint64:
		return int(t), true
	case float64:
		return int(t), true
	default:
		return 0, false
	}
}

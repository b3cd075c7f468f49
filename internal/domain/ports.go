package domain

import "context"

// Datastore executes parameterized SQL against the analytical database.
// Implemented by clickhouse.DB; tests use testutil.MockDatastore.
//
// Params are named: the SQL references them as {name:Type} tokens and the
// datastore binds them server-side. Implementations must never interpolate
// param values into the SQL text.
type Datastore interface {
	Query(ctx context.Context, sql string, params map[string]any) ([]Row, error)
}

// Span is a live tracing span. SetAttributes may be called any number of
// times before End.
type Span interface {
	SetAttributes(attrs map[string]any)
	End()
}

// Tracer starts spans for engine operations. Safe to back with a no-op.
// Implemented by tracing.OTelTracer and tracing.NoopTracer.
type Tracer interface {
	Start(ctx context.Context, name string) (context.Context, Span)
}

// DomainResolver maps a tenant/project id to the tenant's own website
// domain, used to neutralize self-referrals. Returning "" means the domain
// is unknown and domain-dependent SQL fragments degrade to tautologies.
type DomainResolver interface {
	ResolveDomain(ctx context.Context, projectID string) (string, error)
}

// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase. This follows the Go convention of a
// shared test utility package (like net/http/httptest).
package testutil

import (
	"context"

	"querybatch/internal/domain"
)

// === Datastore Mock ===

// QueryCall records one datastore invocation for assertions.
type QueryCall struct {
	SQL    string
	Params map[string]any
}

// MockDatastore implements domain.Datastore for testing.
type MockDatastore struct {
	QueryFn func(ctx context.Context, sql string, params map[string]any) ([]domain.Row, error)
	Calls   []QueryCall // collected calls for assertions
}

// Query implements the interface method for testing.
func (m *MockDatastore) Query(ctx context.Context, sql string, params map[string]any) ([]domain.Row, error) {
	m.Calls = append(m.Calls, QueryCall{SQL: sql, Params: params})
	if m.QueryFn != nil {
		return m.QueryFn(ctx, sql, params)
	}
	panic("unexpected call to MockDatastore.Query")
}

// LastCall returns the most recent recorded call, or nil if none.
func (m *MockDatastore) LastCall() *QueryCall {
	if len(m.Calls) == 0 {
		return nil
	}
	return &m.Calls[len(m.Calls)-1]
}

var _ domain.Datastore = (*MockDatastore)(nil)

// === Domain Resolver Mock ===

// MockDomainResolver implements domain.DomainResolver for testing.
type MockDomainResolver struct {
	ResolveDomainFn func(ctx context.Context, projectID string) (string, error)
}

// ResolveDomain implements the interface method for testing.
func (m *MockDomainResolver) ResolveDomain(ctx context.Context, projectID string) (string, error) {
	if m.ResolveDomainFn != nil {
		return m.ResolveDomainFn(ctx, projectID)
	}
	return "", nil // default: domain unknown
}

var _ domain.DomainResolver = (*MockDomainResolver)(nil)

// === Tracer Mock ===

// MockSpan records attributes set during a traced operation.
type MockSpan struct {
	Name       string
	Attributes map[string]any
	Ended      bool
}

// SetAttributes implements the interface method for testing.
func (s *MockSpan) SetAttributes(attrs map[string]any) {
	if s.Attributes == nil {
		s.Attributes = make(map[string]any)
	}
	for k, v := range attrs {
		s.Attributes[k] = v
	}
}

// End implements the interface method for testing.
func (s *MockSpan) End() { s.Ended = true }

// MockTracer implements domain.Tracer for testing, collecting every
// span it starts.
type MockTracer struct {
	Spans []*MockSpan
}

// Start implements the interface method for testing.
func (m *MockTracer) Start(ctx context.Context, name string) (context.Context, domain.Span) {
	span := &MockSpan{Name: name}
	m.Spans = append(m.Spans, span)
	return ctx, span
}

// SpanNames returns the names of all started spans in order.
func (m *MockTracer) SpanNames() []string {
	names := make([]string, len(m.Spans))
	for i, s := range m.Spans {
		names[i] = s.Name
	}
	return names
}

var _ domain.Tracer = (*MockTracer)(nil)
var _ domain.Span = (*MockSpan)(nil)

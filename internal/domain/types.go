// Package domain defines core types, interfaces, and errors for the
// analytics query engine.
package domain

// Row is a single result row keyed by output column name.
type Row map[string]any

// FilterOp enumerates the supported filter operators.
type FilterOp string

// Supported filter operators.
const (
	OpEq    FilterOp = "eq"
	OpNe    FilterOp = "ne"
	OpLike  FilterOp = "like"
	OpGt    FilterOp = "gt"
	OpLt    FilterOp = "lt"
	OpIn    FilterOp = "in"
	OpNotIn FilterOp = "notIn"
)

// SQLOperator returns the SQL comparison operator for the filter op,
// or false if the op is unknown.
func (op FilterOp) SQLOperator() (string, bool) {
	switch op {
	case OpEq:
		return "=", true
	case OpNe:
		return "!=", true
	case OpLike:
		return "LIKE", true
	case OpGt:
		return ">", true
	case OpLt:
		return "<", true
	case OpIn:
		return "IN", true
	case OpNotIn:
		return "NOT IN", true
	default:
		return "", false
	}
}

// Negative reports whether the operator expresses exclusion.
func (op FilterOp) Negative() bool {
	return op == OpNe || op == OpNotIn
}

// Filter is a structured request filter: field, operator, and a scalar or
// list-of-scalars value.
type Filter struct {
	Field string   `json:"field" yaml:"field"`
	Op    FilterOp `json:"op" yaml:"op"`
	Value any      `json:"value" yaml:"value"`
}

// QueryRequest is a caller's parameterized request against one query type.
// From/To are inclusive date strings ("2024-01-01" or RFC3339-ish datetimes).
type QueryRequest struct {
	ProjectID   string   `json:"project_id"`
	Type        string   `json:"type"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	Granularity string   `json:"granularity,omitempty"`
	Filters     []Filter `json:"filters,omitempty"`
	GroupBy     []string `json:"group_by,omitempty"`
	OrderBy     string   `json:"order_by,omitempty"`
	Limit       int      `json:"limit,omitempty"`
	Offset      int      `json:"offset,omitempty"`
	Timezone    string   `json:"timezone,omitempty"`
}

// OutputField declares one column of a config's result schema.
// The ordered list of output fields determines the schema signature used
// for union batching.
type OutputField struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// PluginFlags toggles the post-execution row transforms for a config.
type PluginFlags struct {
	ParseReferrers bool `yaml:"parse_referrers"`
	NormalizeURLs  bool `yaml:"normalize_urls"`
	NormalizeGeo   bool `yaml:"normalize_geo"`
	DeduplicateGeo bool `yaml:"deduplicate_geo"`
	BucketDevices  bool `yaml:"bucket_devices"`
}

// CustomSQLArgs carries everything a custom SQL generator may need.
// FilterClause is the AND-joined compiled form of the request filters and
// FilterParams its bindings; generators that embed FilterClause must merge
// FilterParams into their own parameter map.
type CustomSQLArgs struct {
	ProjectID    string
	From         string
	To           string
	Filters      []Filter
	Granularity  string
	Limit        int
	Offset       int
	Timezone     string
	FilterClause string
	FilterParams map[string]any
}

// CustomSQLFunc generates a complete query for configs that cannot be
// expressed through generic assembly. Returning an error marks the request
// as failed at compile time (e.g. a required filter is missing).
type CustomSQLFunc func(args CustomSQLArgs) (CompiledQuery, error)

// QueryConfig is one immutable catalog entry describing how to build SQL
// for a query type. Exactly one of the generic-assembly fields or CustomSQL
// applies.
type QueryConfig struct {
	Table          string
	Fields         []string
	Where          []string
	GroupBy        []string
	OrderBy        string
	Limit          int
	TimeField      string
	AllowedFilters []string
	Customizable   bool
	Plugins        PluginFlags
	CustomSQL      CustomSQLFunc
	OutputFields   []OutputField

	// SkipEndOfDay disables appending " 23:59:59" to the upper time bound.
	SkipEndOfDay bool
}

// TimeColumn returns the configured time column, defaulting to "time".
func (c *QueryConfig) TimeColumn() string {
	if c.TimeField != "" {
		return c.TimeField
	}
	return "time"
}

// AllowsFilter reports whether the field may be filtered on. An empty
// whitelist allows everything.
func (c *QueryConfig) AllowsFilter(field string) bool {
	if len(c.AllowedFilters) == 0 {
		return true
	}
	for _, f := range c.AllowedFilters {
		if f == field {
			return true
		}
	}
	return false
}

// CompiledQuery is parameterized SQL ready for execution. Placeholders
// lists every parameter name appearing in SQL, in insertion order, so that
// renaming under union batching never has to guess at the SQL text.
type CompiledQuery struct {
	SQL          string
	Params       map[string]any
	Placeholders []string
}

// AddParam binds a value under name and records the placeholder.
func (q *CompiledQuery) AddParam(name string, value any) {
	if q.Params == nil {
		q.Params = map[string]any{}
	}
	q.Params[name] = value
	q.Placeholders = append(q.Placeholders, name)
}

// BatchRequest is the batch executor's unit of work.
type BatchRequest struct {
	Type    string       `json:"type"`
	Request QueryRequest `json:"request"`
}

// BatchResult is the per-item outcome of a batch execution. Every input
// index always receives a result; degraded items carry Error and an empty
// Data slice.
type BatchResult struct {
	Type  string `json:"type"`
	Data  []Row  `json:"data"`
	Error string `json:"error,omitempty"`
}

package engine

import (
	"fmt"
	"strings"

	"querybatch/internal/domain"
)

// domainPlaceholder is the textual token in static WHERE fragments standing
// for "the current tenant's own domain".
const domainPlaceholder = "{websiteDomain}"

// selfReferralFragments are the static-fragment shapes that depend on the
// tenant domain. When no domain is known they are rewritten to tautologies
// so the query still runs, just without self-referral exclusion.
var selfReferralFragments = []string{
	"domain(referrer) != '{websiteDomain}'",
	"NOT domain(referrer) ILIKE '%.{websiteDomain}'",
	"domain(referrer) NOT IN ('localhost', '127.0.0.1')",
}

var dangerousSQLKeywords = []string{
	"DROP", "DELETE", "INSERT", "UPDATE", "CREATE", "ALTER", "TRUNCATE", "EXEC", "EXECUTE",
}

// Compile builds a parameterized query for one config and one request.
// websiteDomain may be empty when the tenant's domain is unknown.
//
// Configs with a CustomSQL generator delegate to it, passing the compiled
// filter clause and bindings; everything else goes through generic
// table/fields/where/groupBy/orderBy/limit assembly.
func Compile(cfg *domain.QueryConfig, req domain.QueryRequest, websiteDomain string) (domain.CompiledQuery, error) {
	if cfg.CustomSQL != nil {
		return compileCustom(cfg, req)
	}
	return compileGeneric(cfg, req, websiteDomain)
}

func compileCustom(cfg *domain.QueryConfig, req domain.QueryRequest) (domain.CompiledQuery, error) {
	filterParams := map[string]any{}
	clauses, err := compileFilters(cfg, req.Filters, filterParams)
	if err != nil {
		return domain.CompiledQuery{}, err
	}

	out, err := cfg.CustomSQL(domain.CustomSQLArgs{
		ProjectID:    req.ProjectID,
		From:         formatDateTime(req.From),
		To:           formatDateTime(req.To),
		Filters:      req.Filters,
		Granularity:  req.Granularity,
		Limit:        req.Limit,
		Offset:       req.Offset,
		Timezone:     req.Timezone,
		FilterClause: strings.Join(clauses, " AND "),
		FilterParams: filterParams,
	})
	if err != nil {
		return domain.CompiledQuery{}, err
	}
	if out.Params == nil {
		out.Params = map[string]any{}
	}
	if out.Placeholders == nil {
		for name := range out.Params {
			out.Placeholders = append(out.Placeholders, name)
		}
	}
	return out, nil
}

func compileGeneric(cfg *domain.QueryConfig, req domain.QueryRequest, websiteDomain string) (domain.CompiledQuery, error) {
	q := domain.CompiledQuery{Params: map[string]any{}}
	q.AddParam("websiteId", req.ProjectID)
	q.AddParam("from", formatDateTime(req.From))
	q.AddParam("to", formatDateTime(req.To))

	where := make([]string, 0, len(cfg.Where)+3+len(req.Filters))
	where = append(where, cfg.Where...)
	where = append(where, "client_id = {websiteId:String}")

	timeField := cfg.TimeColumn()
	where = append(where, fmt.Sprintf("%s >= toDateTime({from:String})", timeField))
	if cfg.SkipEndOfDay {
		where = append(where, fmt.Sprintf("%s <= toDateTime({to:String})", timeField))
	} else {
		where = append(where, fmt.Sprintf("%s <= toDateTime(concat({to:String}, ' 23:59:59'))", timeField))
	}

	filterClauses, err := compileFiltersInto(cfg, req.Filters, &q)
	if err != nil {
		return domain.CompiledQuery{}, err
	}
	where = append(where, filterClauses...)

	fields := "*"
	if len(cfg.Fields) > 0 {
		fields = strings.Join(cfg.Fields, ", ")
	}

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s", fields, cfg.Table, strings.Join(where, " AND "))

	// Domain substitution runs on the assembled text, before trailing
	// clauses are appended.
	sql = substituteDomain(sql, websiteDomain)

	if clause, err := groupByClause(cfg, req); err != nil {
		return domain.CompiledQuery{}, err
	} else if clause != "" {
		sql += clause
	}
	if clause, err := orderByClause(cfg, req); err != nil {
		return domain.CompiledQuery{}, err
	} else if clause != "" {
		sql += clause
	}
	// Limit/offset come from trusted config/request integers, never from
	// filter values, so they are emitted as literals.
	if limit := resolveLimit(cfg, req); limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", limit)
	}
	if req.Offset > 0 {
		sql += fmt.Sprintf(" OFFSET %d", req.Offset)
	}

	q.SQL = sql
	return q, nil
}

// compileFilters compiles request filters, merging bindings into params.
func compileFilters(cfg *domain.QueryConfig, filters []domain.Filter, params map[string]any) ([]string, error) {
	clauses := make([]string, 0, len(filters))
	for i, f := range filters {
		clause, p, err := CompileFilter(f, i, cfg)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
		for k, v := range p {
			params[k] = v
		}
	}
	return clauses, nil
}

// compileFiltersInto is compileFilters recording placeholders on the query.
func compileFiltersInto(cfg *domain.QueryConfig, filters []domain.Filter, q *domain.CompiledQuery) ([]string, error) {
	clauses := make([]string, 0, len(filters))
	for i, f := range filters {
		clause, p, err := CompileFilter(f, i, cfg)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
		for k, v := range p {
			q.AddParam(k, v)
		}
	}
	return clauses, nil
}

func groupByClause(cfg *domain.QueryConfig, req domain.QueryRequest) (string, error) {
	groupBy := req.GroupBy
	if len(groupBy) == 0 {
		groupBy = cfg.GroupBy
	}
	if len(groupBy) == 0 {
		return "", nil
	}
	for _, g := range groupBy {
		if err := validateStructuralToken(g, "grouping"); err != nil {
			return "", err
		}
	}
	return " GROUP BY " + strings.Join(groupBy, ", "), nil
}

func orderByClause(cfg *domain.QueryConfig, req domain.QueryRequest) (string, error) {
	orderBy := req.OrderBy
	if orderBy == "" {
		orderBy = cfg.OrderBy
	}
	if orderBy == "" {
		return "", nil
	}
	if err := validateStructuralToken(orderBy, "ordering"); err != nil {
		return "", err
	}
	return " ORDER BY " + orderBy, nil
}

func resolveLimit(cfg *domain.QueryConfig, req domain.QueryRequest) int {
	if req.Limit > 0 {
		return req.Limit
	}
	return cfg.Limit
}

// validateStructuralToken rejects group/order expressions containing
// statement keywords. These tokens are emitted as SQL text, not bound as
// parameters, so they are screened before assembly.
func validateStructuralToken(token, context string) error {
	upper := strings.ToUpper(token)
	for _, kw := range dangerousSQLKeywords {
		if strings.Contains(upper, kw) {
			return domain.ErrValidation("%s expression %q contains dangerous keyword %s", context, token, kw)
		}
	}
	return nil
}

// substituteDomain resolves the tenant-domain placeholder. With no domain
// known, the self-referral fragments become tautologies; otherwise the
// token is replaced with the literal domain.
func substituteDomain(sql, websiteDomain string) string {
	if websiteDomain == "" {
		for _, frag := range selfReferralFragments {
			sql = strings.ReplaceAll(sql, frag, "1=1")
		}
		return sql
	}
	return strings.ReplaceAll(sql, domainPlaceholder, websiteDomain)
}

// formatDateTime trims sub-second precision and replaces the date/time
// separator to match the datastore's literal format. Purely textual;
// timezone handling belongs to configs and generators.
func formatDateTime(s string) string {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	return strings.ReplaceAll(s, "T", " ")
}

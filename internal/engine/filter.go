package engine

import (
	"fmt"
	"strings"

	"querybatch/internal/device"
	"querybatch/internal/domain"
)

// Special filter fields whose comparison target is a rewritten expression
// rather than the raw column.
const (
	fieldPath       = "path"
	fieldReferrer   = "referrer"
	fieldDeviceType = "device_type"
)

// normalizedPathExpr trims one trailing slash and maps the empty path to
// "/", matching the normalization used in projections and grouping so that
// filtering and display stay consistent.
const normalizedPathExpr = "CASE WHEN trimRight(path(path), '/') = '' THEN '/' ELSE trimRight(path(path), '/') END"

// normalizedReferrerExpr canonicalizes known referrer domains to their
// canonical URL, mirroring the canonicalization used in traffic-source
// projections.
const normalizedReferrerExpr = `CASE
	WHEN referrer = '' OR referrer IS NULL THEN 'direct'
	WHEN domain(referrer) LIKE '%.google.com%' OR domain(referrer) LIKE 'google.com%' THEN 'https://google.com'
	WHEN domain(referrer) LIKE '%.facebook.com%' OR domain(referrer) LIKE 'facebook.com%' THEN 'https://facebook.com'
	WHEN domain(referrer) LIKE '%.twitter.com%' OR domain(referrer) LIKE 'twitter.com%' OR domain(referrer) LIKE 't.co%' THEN 'https://twitter.com'
	WHEN domain(referrer) LIKE '%.instagram.com%' OR domain(referrer) LIKE 'instagram.com%' OR domain(referrer) LIKE 'l.instagram.com%' THEN 'https://instagram.com'
	ELSE concat('https://', domain(referrer))
END`

// referrerAliases maps shorthand referrer filter values to the canonical
// URLs the normalized expression produces.
var referrerAliases = map[string]string{
	"google":    "https://google.com",
	"facebook":  "https://facebook.com",
	"twitter":   "https://twitter.com",
	"t.co":      "https://twitter.com",
	"instagram": "https://instagram.com",
}

// CompileFilter turns one structured filter into a SQL clause plus its
// parameter bindings. ordinal namespaces the placeholder so clauses from
// the same request never collide.
//
// Returns *domain.ForbiddenFilterError when the field is outside a
// non-empty whitelist, before any SQL is produced.
func CompileFilter(f domain.Filter, ordinal int, cfg *domain.QueryConfig) (string, map[string]any, error) {
	if !cfg.AllowsFilter(f.Field) {
		return "", nil, domain.ErrForbiddenFilter("filter on field %q is not permitted", f.Field)
	}

	op, ok := f.Op.SQLOperator()
	if !ok {
		return "", nil, domain.ErrValidation("unsupported filter operator %q", f.Op)
	}
	key := fmt.Sprintf("f%d", ordinal)

	switch f.Field {
	case fieldPath:
		return genericClause(f, key, op, normalizedPathExpr, nil)
	case fieldReferrer:
		return genericClause(f, key, op, normalizedReferrerExpr, normalizeReferrerValue)
	case fieldDeviceType:
		return deviceTypeClause(f)
	default:
		return genericClause(f, key, op, f.Field, nil)
	}
}

// genericClause handles the operator-shaped cases: single placeholder for
// eq/ne/gt/lt, wildcard-wrapped for like, array placeholder for in/notIn.
func genericClause(f domain.Filter, key, op, fieldExpr string, transform func(string) string) (string, map[string]any, error) {
	if transform == nil {
		transform = func(s string) string { return s }
	}

	switch f.Op {
	case domain.OpLike:
		v := escapeLikePattern(transform(valueString(f.Value)))
		return fmt.Sprintf("%s %s {%s:String}", fieldExpr, op, key),
			map[string]any{key: "%" + v + "%"}, nil

	case domain.OpIn, domain.OpNotIn:
		values := valueStrings(f.Value)
		for i, v := range values {
			values[i] = transform(v)
		}
		return fmt.Sprintf("%s %s {%s:Array(String)}", fieldExpr, op, key),
			map[string]any{key: values}, nil

	default:
		return fmt.Sprintf("%s %s {%s:String}", fieldExpr, op, key),
			map[string]any{key: transform(valueString(f.Value))}, nil
	}
}

// deviceTypeClause translates a device_type filter into a self-contained
// boolean condition over screen_resolution. No parameter is bound.
func deviceTypeClause(f domain.Filter) (string, map[string]any, error) {
	values := valueStrings(f.Value)
	if len(values) == 0 {
		return "", nil, domain.ErrValidation("device_type filter requires a value")
	}

	conds := make([]string, 0, len(values))
	for _, v := range values {
		t, ok := device.Parse(v)
		if !ok {
			return "", nil, domain.ErrValidation("unknown device type %q", v)
		}
		conds = append(conds, device.Condition(t))
	}

	clause := conds[0]
	if len(conds) > 1 {
		clause = "(" + strings.Join(conds, " OR ") + ")"
	}
	if f.Op.Negative() {
		clause = "NOT (" + clause + ")"
	}
	return clause, map[string]any{}, nil
}

// normalizeReferrerValue maps shorthand referrer values ("google",
// "facebook.com") to the canonical URL form the comparison target produces.
func normalizeReferrerValue(v string) string {
	lower := strings.ToLower(v)
	if lower == "direct" {
		return "direct"
	}
	if mapped, ok := referrerAliases[lower]; ok {
		return mapped
	}
	host := strings.TrimPrefix(strings.TrimPrefix(lower, "https://"), "http://")
	host = strings.TrimPrefix(host, "www.")
	if mapped, ok := referrerAliases[host]; ok {
		return mapped
	}
	if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
		return v
	}
	if strings.Contains(v, ".") && !strings.Contains(v, " ") {
		return "https://" + v
	}
	return v
}

// escapeLikePattern escapes backslashes first, then the LIKE wildcards.
func escapeLikePattern(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, "%", `\%`)
	return strings.ReplaceAll(v, "_", `\_`)
}

func valueString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// valueStrings coerces a scalar value to a singleton list.
func valueStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []any:
		out := make([]string, len(t))
		for i, e := range t {
			out[i] = valueString(e)
		}
		return out
	case nil:
		return nil
	default:
		return []string{valueString(t)}
	}
}

// Package device holds the screen-resolution device classification rule as
// data. Both the SQL predicate used by the filter compiler and the
// in-process row classifier used by the plugin pipeline are generated from
// the same tables, so the two can never diverge.
package device

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Type is a coarse device bucket derived from screen resolution.
type Type string

// Known device buckets.
const (
	Mobile    Type = "mobile"
	Tablet    Type = "tablet"
	Laptop    Type = "laptop"
	Desktop   Type = "desktop"
	Ultrawide Type = "ultrawide"
	Watch     Type = "watch"
	Unknown   Type = "unknown"
)

// deviceHeuristic is one size/aspect rule. All bounds are inclusive on Max
// and exclusive on Min ("greater than"), matching the SQL predicate below.
// Short is min(width,height), Long is max(width,height), Aspect is
// Long/Short. A zero bound means "no constraint on this axis".
type deviceHeuristic struct {
	Type      Type
	ShortMax  float64
	ShortMin  float64
	LongMax   float64
	LongMin   float64
	AspectMin float64
	AspectMax float64
}

// deviceHeuristics is the single source of truth for resolution-based
// classification. The SQL predicate (Condition) and the row-level
// classifier (Classify) are both generated from this table plus
// commonResolutionType, so the two can never diverge.
//
// Order matters: the classifier returns the first matching rule, so the
// narrow buckets (watch, ultrawide) come before the broad ones.
var deviceHeuristics = []deviceHeuristic{
	{Type: Watch, LongMax: 400, AspectMin: 0.85, AspectMax: 1.15},
	{Type: Ultrawide, AspectMin: 2.0, LongMin: 2559},
	{Type: Mobile, ShortMax: 480},
	{Type: Tablet, ShortMax: 900, ShortMin: 480},
	{Type: Laptop, LongMax: 1600, ShortMin: 900},
	{Type: Desktop, LongMax: 3000, LongMin: 1600},
}

// commonResolutionType pre-classifies resolutions that the heuristics
// alone would misbucket (1366x768 is a laptop panel, not a tablet) or that
// are frequent enough that an exact match is cheaper than arithmetic.
var commonResolutionType = map[string]Type{
	// mobile
	"360x640":  Mobile,
	"360x800":  Mobile,
	"375x667":  Mobile,
	"375x812":  Mobile,
	"390x844":  Mobile,
	"393x852":  Mobile,
	"412x915":  Mobile,
	"414x896":  Mobile,
	"428x926":  Mobile,
	// tablet
	"768x1024":  Tablet,
	"800x1280":  Tablet,
	"810x1080":  Tablet,
	"820x1180":  Tablet,
	"834x1194":  Tablet,
	"1024x1366": Tablet,
	// laptop
	"1280x800":  Laptop,
	"1366x768":  Laptop,
	"1440x900":  Laptop,
	"1536x864":  Laptop,
	"1600x900":  Laptop,
	// desktop
	"1920x1080": Desktop,
	"1920x1200": Desktop,
	"2048x1152": Desktop,
	"2560x1440": Desktop,
	"2560x1600": Desktop,
	// ultrawide
	"2560x1080": Ultrawide,
	"3440x1440": Ultrawide,
	"3840x1600": Ultrawide,
	"5120x1440": Ultrawide,
	// watch
	"312x390": Watch,
	"368x448": Watch,
	"396x484": Watch,
}

// Parse validates a filter value against the known buckets.
func Parse(s string) (Type, bool) {
	switch Type(s) {
	case Mobile, Tablet, Laptop, Desktop,
		Ultrawide, Watch, Unknown:
		return Type(s), true
	}
	return Unknown, false
}

// Classify buckets a "WxH" resolution string. Exact matches win;
// otherwise the heuristics are evaluated in table order.
func Classify(resolution string) Type {
	if t, ok := commonResolutionType[resolution]; ok {
		return t
	}
	w, h, ok := parseResolution(resolution)
	if !ok {
		return Unknown
	}
	long, short := w, h
	if h > w {
		long, short = h, w
	}
	aspect := long / short
	for _, r := range deviceHeuristics {
		if r.matches(short, long, aspect) {
			return r.Type
		}
	}
	return Unknown
}

func (r deviceHeuristic) matches(short, long, aspect float64) bool {
	if r.ShortMax > 0 && short > r.ShortMax {
		return false
	}
	if r.ShortMin > 0 && short <= r.ShortMin {
		return false
	}
	if r.LongMax > 0 && long > r.LongMax {
		return false
	}
	if r.LongMin > 0 && long <= r.LongMin {
		return false
	}
	if r.AspectMin > 0 && aspect < r.AspectMin {
		return false
	}
	if r.AspectMax > 0 && aspect > r.AspectMax {
		return false
	}
	return true
}

func parseResolution(s string) (w, h float64, ok bool) {
	i := strings.IndexByte(s, 'x')
	if i <= 0 || i == len(s)-1 {
		return 0, 0, false
	}
	w, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return 0, 0, false
	}
	h, err = strconv.ParseFloat(s[i+1:], 64)
	if err != nil || w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

const (
	deviceWidthExpr  = "toFloat64(if(position(screen_resolution, 'x') > 0, substring(screen_resolution, 1, position(screen_resolution, 'x') - 1), NULL))"
	deviceHeightExpr = "toFloat64(if(position(screen_resolution, 'x') > 0, substring(screen_resolution, position(screen_resolution, 'x') + 1), NULL))"
)

// sqlCondition renders the rule's bounds as a parenthesized boolean SQL
// fragment over the given side/aspect expressions.
func (r deviceHeuristic) sqlCondition(shortSide, longSide, aspect string) string {
	var conds []string
	if r.ShortMax > 0 {
		conds = append(conds, fmt.Sprintf("%s <= %s", shortSide, formatBound(r.ShortMax)))
	}
	if r.ShortMin > 0 {
		conds = append(conds, fmt.Sprintf("%s > %s", shortSide, formatBound(r.ShortMin)))
	}
	if r.LongMax > 0 {
		conds = append(conds, fmt.Sprintf("%s <= %s", longSide, formatBound(r.LongMax)))
	}
	if r.LongMin > 0 {
		conds = append(conds, fmt.Sprintf("%s > %s", longSide, formatBound(r.LongMin)))
	}
	if r.AspectMin > 0 {
		conds = append(conds, fmt.Sprintf("%s >= %s", aspect, formatBound(r.AspectMin)))
	}
	if r.AspectMax > 0 {
		conds = append(conds, fmt.Sprintf("%s <= %s", aspect, formatBound(r.AspectMax)))
	}
	return "(" + strings.Join(conds, " AND ") + ")"
}

// Condition renders the bucket's classification rule as a
// self-contained boolean SQL condition over the screen_resolution column.
// No parameters are bound: every token is engine-owned, never caller input.
// Classify returns the first rule that matches, so the predicate negates
// every rule earlier in the table to keep the two in agreement.
func Condition(t Type) string {
	longSide := fmt.Sprintf("greatest(%s, %s)", deviceWidthExpr, deviceHeightExpr)
	shortSide := fmt.Sprintf("least(%s, %s)", deviceWidthExpr, deviceHeightExpr)
	aspect := fmt.Sprintf("%s / %s", longSide, shortSide)

	idx := -1
	for i := range deviceHeuristics {
		if deviceHeuristics[i].Type == t {
			idx = i
			break
		}
	}
	if idx < 0 {
		// unknown or unmatched bucket
		return "1 = 0"
	}

	conds := []string{deviceHeuristics[idx].sqlCondition(shortSide, longSide, aspect)}
	for i := 0; i < idx; i++ {
		conds = append(conds, "NOT "+deviceHeuristics[i].sqlCondition(shortSide, longSide, aspect))
	}
	conds = append(conds, fmt.Sprintf("%s IS NOT NULL", longSide))
	heuristic := "(" + strings.Join(conds, " AND ") + ")"

	exact := exactResolutions(t)
	others := exactResolutionsExcept(t)
	if len(others) > 0 {
		// Keep the heuristic from claiming resolutions another bucket owns
		// by exact match, so the predicate agrees with Classify.
		heuristic = fmt.Sprintf("(%s AND screen_resolution NOT IN (%s))", heuristic, quoteList(others))
	}
	if len(exact) > 0 {
		return fmt.Sprintf("(screen_resolution IN (%s) OR %s)", quoteList(exact), heuristic)
	}
	return heuristic
}

func exactResolutions(t Type) []string {
	var out []string
	for res, rt := range commonResolutionType {
		if rt == t {
			out = append(out, res)
		}
	}
	sort.Strings(out)
	return out
}

func exactResolutionsExcept(t Type) []string {
	var out []string
	for res, rt := range commonResolutionType {
		if rt != t {
			out = append(out, res)
		}
	}
	sort.Strings(out)
	return out
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "'" + s + "'"
	}
	return strings.Join(quoted, ", ")
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

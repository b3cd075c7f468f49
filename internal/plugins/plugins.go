// Package plugins implements the fixed-order post-execution row
// transforms. Every stage is a pure []Row -> []Row function gated by the
// config's plugin flags; stage order is load-bearing (geo dedup needs the
// columns geo normalization adds, and device bucketing needs "name" to
// still hold a raw resolution).
package plugins

import (
	"fmt"
	"math"
	"strconv"

	"querybatch/internal/domain"
)

// legacyReferrerTypes auto-trigger referrer parsing even without the
// config flag, for backward compatibility with older callers.
var legacyReferrerTypes = map[string]bool{
	"referrer":      true,
	"top_referrers": true,
}

// Apply runs the enabled stages over rows in fixed order.
func Apply(rows []domain.Row, cfg *domain.QueryConfig, typeName, websiteDomain string) []domain.Row {
	if cfg == nil || len(rows) == 0 {
		return rows
	}
	if cfg.Plugins.ParseReferrers || legacyReferrerTypes[typeName] {
		rows = ParseReferrers(rows, websiteDomain)
	}
	if cfg.Plugins.NormalizeURLs {
		rows = NormalizeURLs(rows)
	}
	if cfg.Plugins.NormalizeGeo {
		rows = NormalizeGeo(rows)
	}
	if cfg.Plugins.DeduplicateGeo {
		rows = DeduplicateGeo(rows)
	}
	if cfg.Plugins.BucketDevices {
		rows = BucketDevices(rows)
	}
	return rows
}

// asInt64 coerces the numeric types the datastore hands back.
func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int16:
		return int64(t)
	case int8:
		return int64(t)
	case uint64:
		return int64(t)
	case uint32:
		return int64(t)
	case uint16:
		return int64(t)
	case uint8:
		return int64(t)
	case uint:
		return int64(t)
	case float64:
		return int64(t)
	case float32:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	default:
		return 0
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

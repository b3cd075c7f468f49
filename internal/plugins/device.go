package plugins

import (
	"sort"

	"querybatch/internal/device"
	"querybatch/internal/domain"
)

// BucketDevices reclassifies resolution-keyed rows into device-type
// buckets using the same heuristic table that backs the SQL device_type
// condition, summing pageviews and visitors per bucket. Percentage is the
// bucket's pageview share of total pageviews (a pageview basis, unlike geo
// dedup's visitor basis). Must run before URL normalization would mutate
// "name".
func BucketDevices(rows []domain.Row) []domain.Row {
	type bucket struct {
		pageviews int64
		visitors  int64
	}

	buckets := map[device.Type]*bucket{}
	var totalPageviews int64
	for _, row := range rows {
		t := device.Classify(asString(row["name"]))
		b, ok := buckets[t]
		if !ok {
			b = &bucket{}
			buckets[t] = b
		}
		pv := asInt64(row["pageviews"])
		b.pageviews += pv
		b.visitors += asInt64(row["visitors"])
		totalPageviews += pv
	}

	types := make([]string, 0, len(buckets))
	for t := range buckets {
		types = append(types, string(t))
	}
	sort.Strings(types)

	out := make([]domain.Row, 0, len(buckets))
	for _, t := range types {
		b := buckets[device.Type(t)]
		row := domain.Row{
			"name":      t,
			"pageviews": b.pageviews,
			"visitors":  b.visitors,
		}
		if totalPageviews > 0 {
			row["percentage"] = round2(float64(b.pageviews) * 100 / float64(totalPageviews))
		} else {
			row["percentage"] = float64(0)
		}
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool {
		return asInt64(out[i]["pageviews"]) > asInt64(out[j]["pageviews"])
	})
	return out
}

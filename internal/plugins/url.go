package plugins

import (
	"net/url"
	"strings"

	"querybatch/internal/domain"
)

// NormalizeURLs rewrites the "name" column from a full URL to a clean
// path: scheme and host stripped, a single leading slash forced, one
// trailing slash removed. The root path stays "/".
func NormalizeURLs(rows []domain.Row) []domain.Row {
	out := make([]domain.Row, len(rows))
	for i, row := range rows {
		next := cloneRow(row)
		next["name"] = cleanPath(asString(row["name"]))
		out[i] = next
	}
	return out
}

func cleanPath(raw string) string {
	p := raw
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		if u, err := url.Parse(raw); err == nil {
			p = u.Path
		}
	}
	if p == "" {
		return "/"
	}
	for strings.HasPrefix(p, "//") {
		p = p[1:]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

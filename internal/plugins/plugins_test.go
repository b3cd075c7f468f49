package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querybatch/internal/domain"
)

func TestApply_NoFlagsPassThrough(t *testing.T) {
	rows := []domain.Row{{"name": "https://example.com/about/", "visitors": int64(3)}}
	cfg := &domain.QueryConfig{Table: "analytics.events"}

	out := Apply(rows, cfg, "top_pages", "")
	assert.Equal(t, rows, out)
}

func TestApply_LegacyReferrerTypesAutoTrigger(t *testing.T) {
	rows := []domain.Row{{"name": "https://www.google.com/search", "visitors": int64(3)}}
	cfg := &domain.QueryConfig{Table: "analytics.events"}

	for _, typeName := range []string{"referrer", "top_referrers"} {
		out := Apply(rows, cfg, typeName, "")
		require.Len(t, out, 1, typeName)
		assert.Equal(t, "Google", out[0]["name"], typeName)
	}

	out := Apply(rows, cfg, "other_type", "")
	assert.Equal(t, "https://www.google.com/search", out[0]["name"],
		"non-legacy types need the explicit flag")
}

func TestApply_GeoStagesChain(t *testing.T) {
	cfg := &domain.QueryConfig{
		Table:   "analytics.events",
		Plugins: domain.PluginFlags{NormalizeGeo: true, DeduplicateGeo: true},
	}
	rows := []domain.Row{
		{"name": "US", "visitors": int64(6), "pageviews": int64(10)},
		{"name": "United States", "visitors": int64(2), "pageviews": int64(5)},
		{"name": "DE", "visitors": int64(2), "pageviews": int64(3)},
	}

	out := Apply(rows, cfg, "country", "")
	require.Len(t, out, 2, "US variants collapse into one row")
	assert.Equal(t, "US", out[0]["country_code"])
	assert.Equal(t, int64(8), out[0]["visitors"])
	assert.Equal(t, int64(15), out[0]["pageviews"])
	assert.Equal(t, 80.0, out[0]["percentage"])
	assert.Equal(t, 20.0, out[1]["percentage"])
}

func TestApply_EmptyRows(t *testing.T) {
	cfg := &domain.QueryConfig{Plugins: domain.PluginFlags{NormalizeGeo: true}}
	assert.Empty(t, Apply(nil, cfg, "country", ""))
	assert.Empty(t, Apply([]domain.Row{}, cfg, "country", ""))
}

func TestAsInt64(t *testing.T) {
	tests := []struct {
		in   any
		want int64
	}{
		{int64(5), 5},
		{uint64(5), 5},
		{int32(5), 5},
		{uint8(5), 5},
		{float64(5.9), 5},
		{"42", 42},
		{"junk", 0},
		{nil, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, asInt64(tt.in), "input %v", tt.in)
	}
}

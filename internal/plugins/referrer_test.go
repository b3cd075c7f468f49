package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querybatch/internal/domain"
)

func TestParseReferrers_KnownSources(t *testing.T) {
	tests := []struct {
		raw        string
		wantName   string
		wantType   string
		wantDomain string
	}{
		{"https://www.google.com/search?q=x", "Google", "search", "www.google.com"},
		{"google.com", "Google", "search", "google.com"},
		{"https://l.instagram.com/", "Instagram", "social", "l.instagram.com"},
		{"t.co", "X (Twitter)", "social", "t.co"},
		{"https://news.ycombinator.com/item?id=1", "Hacker News", "news", "news.ycombinator.com"},
		{"https://mail.google.com/mail/u/0", "Gmail", "email", "mail.google.com"},
	}
	for _, tt := range tests {
		rows := ParseReferrers([]domain.Row{{"name": tt.raw}}, "")
		require.Len(t, rows, 1, tt.raw)
		assert.Equal(t, tt.wantName, rows[0]["name"], tt.raw)
		assert.Equal(t, tt.wantType, rows[0]["referrer_type"], tt.raw)
		assert.Equal(t, tt.wantDomain, rows[0]["domain"], tt.raw)
	}
}

func TestParseReferrers_Direct(t *testing.T) {
	for _, raw := range []string{"", "direct"} {
		rows := ParseReferrers([]domain.Row{{"name": raw}}, "")
		assert.Equal(t, "Direct", rows[0]["name"], "raw %q", raw)
		assert.Equal(t, "direct", rows[0]["referrer_type"], "raw %q", raw)
	}
}

func TestParseReferrers_SelfReferralIsDirect(t *testing.T) {
	tests := []string{
		"https://example.com/page",
		"https://www.example.com/",
		"https://blog.example.com/post",
	}
	for _, raw := range tests {
		rows := ParseReferrers([]domain.Row{{"name": raw}}, "example.com")
		assert.Equal(t, "Direct", rows[0]["name"], "raw %q", raw)
		assert.Equal(t, "direct", rows[0]["referrer_type"], "raw %q", raw)
	}

	// A different site containing the domain as a substring is not self.
	rows := ParseReferrers([]domain.Row{{"name": "https://notexample.com/"}}, "example.com")
	assert.NotEqual(t, "Direct", rows[0]["name"])
}

func TestParseReferrers_UnknownHostPassesThrough(t *testing.T) {
	rows := ParseReferrers([]domain.Row{{"name": "https://smallblog.dev/post"}}, "")
	assert.Equal(t, "smallblog.dev", rows[0]["name"])
	assert.Equal(t, "unknown", rows[0]["referrer_type"])
	assert.Equal(t, "smallblog.dev", rows[0]["domain"])
}

func TestParseReferrers_PreservesMetrics(t *testing.T) {
	rows := ParseReferrers([]domain.Row{{"name": "google.com", "visitors": int64(9), "pageviews": int64(20)}}, "")
	assert.Equal(t, int64(9), rows[0]["visitors"])
	assert.Equal(t, int64(20), rows[0]["pageviews"])
}

func TestLookupReferrer_NeverMatchesBareTLD(t *testing.T) {
	// "com" alone must not resolve even if a hostile entry resembled it;
	// the walk stops before the last label.
	_, ok := lookupReferrer("com")
	assert.False(t, ok)
}

package plugins

import (
	"net/url"
	"strings"

	"querybatch/internal/domain"
)

// referrerInfo describes a known traffic source.
type referrerInfo struct {
	Name string
	Type string
}

// knownReferrers maps referrer domains to their canonical display name and
// classification. Lookup is suffix-matching: "l.instagram.com" resolves via
// "instagram.com".
var knownReferrers = map[string]referrerInfo{
	"google.com":          {Name: "Google", Type: "search"},
	"bing.com":            {Name: "Bing", Type: "search"},
	"duckduckgo.com":      {Name: "DuckDuckGo", Type: "search"},
	"yahoo.com":           {Name: "Yahoo", Type: "search"},
	"baidu.com":           {Name: "Baidu", Type: "search"},
	"yandex.ru":           {Name: "Yandex", Type: "search"},
	"yandex.com":          {Name: "Yandex", Type: "search"},
	"ecosia.org":          {Name: "Ecosia", Type: "search"},
	"brave.com":           {Name: "Brave", Type: "search"},
	"facebook.com":        {Name: "Facebook", Type: "social"},
	"fb.com":              {Name: "Facebook", Type: "social"},
	"instagram.com":       {Name: "Instagram", Type: "social"},
	"twitter.com":         {Name: "X (Twitter)", Type: "social"},
	"x.com":               {Name: "X (Twitter)", Type: "social"},
	"t.co":                {Name: "X (Twitter)", Type: "social"},
	"linkedin.com":        {Name: "LinkedIn", Type: "social"},
	"lnkd.in":             {Name: "LinkedIn", Type: "social"},
	"reddit.com":          {Name: "Reddit", Type: "social"},
	"pinterest.com":       {Name: "Pinterest", Type: "social"},
	"tiktok.com":          {Name: "TikTok", Type: "social"},
	"youtube.com":         {Name: "YouTube", Type: "video"},
	"vimeo.com":           {Name: "Vimeo", Type: "video"},
	"twitch.tv":           {Name: "Twitch", Type: "video"},
	"github.com":          {Name: "GitHub", Type: "code"},
	"gitlab.com":          {Name: "GitLab", Type: "code"},
	"stackoverflow.com":   {Name: "Stack Overflow", Type: "code"},
	"news.ycombinator.com": {Name: "Hacker News", Type: "news"},
	"producthunt.com":     {Name: "Product Hunt", Type: "news"},
	"medium.com":          {Name: "Medium", Type: "news"},
	"substack.com":        {Name: "Substack", Type: "news"},
	"mail.google.com":     {Name: "Gmail", Type: "email"},
	"outlook.live.com":    {Name: "Outlook", Type: "email"},
}

// ParseReferrers replaces each row's raw referrer value with its
// canonicalized display name, type, and domain. Same-tenant-domain
// referrers (including subdomains) are reclassified as direct traffic.
func ParseReferrers(rows []domain.Row, websiteDomain string) []domain.Row {
	out := make([]domain.Row, len(rows))
	for i, row := range rows {
		raw := asString(row["name"])
		info, host := classifyReferrer(raw, websiteDomain)

		next := cloneRow(row)
		next["name"] = info.Name
		next["referrer_type"] = info.Type
		next["domain"] = host
		out[i] = next
	}
	return out
}

func classifyReferrer(raw, websiteDomain string) (referrerInfo, string) {
	if raw == "" || raw == "direct" {
		return referrerInfo{Name: "Direct", Type: "direct"}, ""
	}

	host := referrerHost(raw)
	if host == "" {
		return referrerInfo{Name: raw, Type: "unknown"}, ""
	}

	if websiteDomain != "" && sameSite(host, websiteDomain) {
		return referrerInfo{Name: "Direct", Type: "direct"}, host
	}

	if info, ok := lookupReferrer(host); ok {
		return info, host
	}
	return referrerInfo{Name: host, Type: "unknown"}, host
}

// lookupReferrer walks up the host's label hierarchy: the full host first,
// then each parent domain down to (but excluding) the bare TLD.
func lookupReferrer(host string) (referrerInfo, bool) {
	labels := strings.Split(host, ".")
	for i := 0; i < len(labels)-1; i++ {
		candidate := strings.Join(labels[i:], ".")
		if info, ok := knownReferrers[candidate]; ok {
			return info, true
		}
	}
	return referrerInfo{}, false
}

// sameSite reports whether host is the tenant domain or one of its
// subdomains, ignoring a www prefix on either side.
func sameSite(host, websiteDomain string) bool {
	h := strings.TrimPrefix(strings.ToLower(host), "www.")
	d := strings.TrimPrefix(strings.ToLower(websiteDomain), "www.")
	return h == d || strings.HasSuffix(h, "."+d)
}

// referrerHost extracts the hostname from a referrer value that may be a
// full URL or a bare domain.
func referrerHost(raw string) string {
	s := raw
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func cloneRow(row domain.Row) domain.Row {
	next := make(domain.Row, len(row)+2)
	for k, v := range row {
		next[k] = v
	}
	return next
}

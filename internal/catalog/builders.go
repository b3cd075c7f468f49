package catalog

import (
	"fmt"

	"querybatch/internal/domain"
)

const (
	eventsTable = "analytics.events"
	errorsTable = "analytics.errors"

	pageViewFilter = "event_name = 'screen_view'"

	normalizedPath = "CASE WHEN trimRight(path(path), '/') = '' THEN '/' ELSE trimRight(path(path), '/') END"
)

// externalReferrerFilters exclude self-referrals. The {websiteDomain}
// token is substituted (or neutralized) at compile time.
var externalReferrerFilters = []string{
	"referrer != ''",
	"domain(referrer) != '{websiteDomain}'",
	"NOT domain(referrer) ILIKE '%.{websiteDomain}'",
	"domain(referrer) NOT IN ('localhost', '127.0.0.1')",
}

// commonFilterFields is the whitelist shared by the breakdown configs.
var commonFilterFields = []string{
	"path", "referrer", "device_type", "country", "region", "browser_name",
	"os_name", "utm_source", "utm_medium", "utm_campaign", "event_name",
}

// breakdownOutput is the shared schema of every dimension breakdown, which
// is what lets mixed breakdown requests merge into one union query.
var breakdownOutput = []domain.OutputField{
	{Name: "name", Type: "String"},
	{Name: "visitors", Type: "UInt64"},
	{Name: "pageviews", Type: "UInt64"},
	{Name: "percentage", Type: "Float64"},
}

// breakdown builds the standard dimension config: one name expression,
// visitor/pageview counts, and the dimension's share of distinct visitors.
func breakdown(nameExpr string, extraWhere ...string) *domain.QueryConfig {
	where := append([]string{pageViewFilter}, extraWhere...)
	return &domain.QueryConfig{
		Table: eventsTable,
		Fields: []string{
			nameExpr + " AS name",
			"COUNT(DISTINCT anonymous_id) AS visitors",
			"COUNT(*) AS pageviews",
			"ROUND(COUNT(DISTINCT anonymous_id) * 100.0 / SUM(COUNT(DISTINCT anonymous_id)) OVER (), 2) AS percentage",
		},
		Where:          where,
		GroupBy:        []string{"name"},
		OrderBy:        "visitors DESC",
		Limit:          100,
		AllowedFilters: commonFilterFields,
		Customizable:   true,
		OutputFields:   breakdownOutput,
	}
}

func builtinConfigs() map[string]*domain.QueryConfig {
	configs := map[string]*domain.QueryConfig{}

	pages := breakdown(normalizedPath)
	pages.Plugins.NormalizeURLs = true
	configs["top_pages"] = pages

	entry := breakdown(normalizedPath, "is_entry = 1")
	entry.Plugins.NormalizeURLs = true
	configs["entry_pages"] = entry

	exit := breakdown(normalizedPath, "is_exit = 1")
	exit.Plugins.NormalizeURLs = true
	configs["exit_pages"] = exit

	country := breakdown("country")
	country.Plugins.NormalizeGeo = true
	country.Plugins.DeduplicateGeo = true
	configs["country"] = country

	region := breakdown("concat(country, '-', region)")
	configs["region"] = region

	configs["timezone"] = breakdown("timezone")
	configs["language"] = breakdown("language")
	configs["browser_name"] = breakdown("browser_name")
	configs["os_name"] = breakdown("os_name")
	configs["utm_source"] = breakdown("utm_source", "utm_source != ''")
	configs["utm_medium"] = breakdown("utm_medium", "utm_medium != ''")
	configs["utm_campaign"] = breakdown("utm_campaign", "utm_campaign != ''")

	resolutions := breakdown("screen_resolution", "screen_resolution != ''")
	configs["screen_resolution"] = resolutions

	devices := breakdown("screen_resolution", "screen_resolution != ''")
	devices.Plugins.BucketDevices = true
	configs["device_types"] = devices

	referrers := breakdown("domain(referrer)", externalReferrerFilters...)
	referrers.Plugins.ParseReferrers = true
	configs["referrers"] = referrers

	// Legacy alias: no plugin flag — the pipeline auto-triggers referrer
	// parsing for this name for backward compatibility.
	configs["top_referrers"] = breakdown("domain(referrer)", externalReferrerFilters...)

	events := breakdown("event_name",
		"event_name NOT IN ('screen_view', 'page_exit', 'web_vitals', 'link_out')")
	configs["custom_events"] = events

	configs["errors"] = &domain.QueryConfig{
		Table: errorsTable,
		Fields: []string{
			"error_type AS name",
			"error_message",
			"COUNT(*) AS occurrences",
			"COUNT(DISTINCT anonymous_id) AS affected_users",
		},
		GroupBy:        []string{"name", "error_message"},
		OrderBy:        "occurrences DESC",
		Limit:          50,
		AllowedFilters: []string{"path", "country", "device_type", "browser_name", "os_name"},
		OutputFields: []domain.OutputField{
			{Name: "name", Type: "String"},
			{Name: "error_message", Type: "String"},
			{Name: "occurrences", Type: "UInt64"},
			{Name: "affected_users", Type: "UInt64"},
		},
	}

	configs["pageviews_series"] = &domain.QueryConfig{
		Table: eventsTable,
		Fields: []string{
			"toDate(time) AS date",
			"COUNT(*) AS pageviews",
			"COUNT(DISTINCT anonymous_id) AS visitors",
		},
		Where:          []string{pageViewFilter},
		GroupBy:        []string{"date"},
		OrderBy:        "date ASC",
		AllowedFilters: commonFilterFields,
		OutputFields: []domain.OutputField{
			{Name: "date", Type: "Date"},
			{Name: "pageviews", Type: "UInt64"},
			{Name: "visitors", Type: "UInt64"},
		},
	}

	// No declared output schema: lands in a solo batch bucket.
	configs["sessions_summary"] = &domain.QueryConfig{
		AllowedFilters: commonFilterFields,
		CustomSQL:      sessionsSummarySQL,
	}

	configs["session_events"] = &domain.QueryConfig{
		AllowedFilters: []string{"session_id", "path", "event_name"},
		CustomSQL:      sessionEventsSQL,
	}

	return configs
}

// sessionsSummarySQL aggregates session-level KPIs for the window. The
// generator embeds the compiled filter clause and merges its bindings.
func sessionsSummarySQL(args domain.CustomSQLArgs) (domain.CompiledQuery, error) {
	filterClause := ""
	if args.FilterClause != "" {
		filterClause = " AND " + args.FilterClause
	}

	sql := fmt.Sprintf(`SELECT
	COUNT(DISTINCT session_id) AS sessions,
	COUNT(DISTINCT anonymous_id) AS visitors,
	AVG(session_duration) AS avg_duration,
	ROUND(countIf(page_count = 1) * 100.0 / COUNT(*), 2) AS bounce_rate
FROM (
	SELECT
		session_id,
		any(anonymous_id) AS anonymous_id,
		dateDiff('second', min(time), max(time)) AS session_duration,
		countIf(%s) AS page_count
	FROM %s
	WHERE client_id = {websiteId:String}
		AND time >= toDateTime({from:String})
		AND time <= toDateTime(concat({to:String}, ' 23:59:59'))
		AND session_id != ''%s
	GROUP BY session_id
)`, pageViewFilter, eventsTable, filterClause)

	q := domain.CompiledQuery{SQL: sql}
	q.AddParam("websiteId", args.ProjectID)
	q.AddParam("from", args.From)
	q.AddParam("to", args.To)
	for k, v := range args.FilterParams {
		q.AddParam(k, v)
	}
	return q, nil
}

// sessionEventsSQL returns the ordered event stream for one session. The
// session_id filter is required input: its absence is a hard error.
func sessionEventsSQL(args domain.CustomSQLArgs) (domain.CompiledQuery, error) {
	var sessionID string
	for _, f := range args.Filters {
		if f.Field == "session_id" && f.Op == domain.OpEq {
			if s, ok := f.Value.(string); ok {
				sessionID = s
			}
		}
	}
	if sessionID == "" {
		return domain.CompiledQuery{}, domain.ErrValidation("session_events requires a session_id eq filter")
	}

	limit := args.Limit
	if limit <= 0 {
		limit = 500
	}

	sql := fmt.Sprintf(`SELECT
	time,
	event_name,
	%s AS path,
	referrer
FROM %s
WHERE client_id = {websiteId:String}
	AND session_id = {sessionId:String}
	AND time >= toDateTime({from:String})
	AND time <= toDateTime(concat({to:String}, ' 23:59:59'))
ORDER BY time ASC LIMIT %d`, normalizedPath, eventsTable, limit)

	q := domain.CompiledQuery{SQL: sql}
	q.AddParam("websiteId", args.ProjectID)
	q.AddParam("sessionId", sessionID)
	q.AddParam("from", args.From)
	q.AddParam("to", args.To)
	return q, nil
}

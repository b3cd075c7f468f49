package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querybatch/internal/domain"
)

func breakdownConfig() *domain.QueryConfig {
	return &domain.QueryConfig{
		Table: "analytics.events",
		Fields: []string{
			"country AS name",
			"COUNT(DISTINCT anonymous_id) AS visitors",
		},
		Where:          []string{"event_name = 'screen_view'"},
		GroupBy:        []string{"name"},
		OrderBy:        "visitors DESC",
		Limit:          100,
		AllowedFilters: []string{"path", "country", "device_type"},
	}
}

func baseRequest() domain.QueryRequest {
	return domain.QueryRequest{
		ProjectID: "site-1",
		From:      "2024-01-01",
		To:        "2024-01-31",
	}
}

func TestCompile_GenericAssembly(t *testing.T) {
	q, err := Compile(breakdownConfig(), baseRequest(), "")
	require.NoError(t, err)

	assert.Contains(t, q.SQL, "SELECT country AS name, COUNT(DISTINCT anonymous_id) AS visitors FROM analytics.events")
	assert.Contains(t, q.SQL, "event_name = 'screen_view'")
	assert.Contains(t, q.SQL, "client_id = {websiteId:String}")
	assert.Contains(t, q.SQL, "time >= toDateTime({from:String})")
	assert.Contains(t, q.SQL, "time <= toDateTime(concat({to:String}, ' 23:59:59'))")
	assert.Contains(t, q.SQL, " GROUP BY name")
	assert.Contains(t, q.SQL, " ORDER BY visitors DESC")
	assert.Contains(t, q.SQL, " LIMIT 100")

	assert.Equal(t, "site-1", q.Params["websiteId"])
	assert.Equal(t, "2024-01-01", q.Params["from"])
	assert.Equal(t, "2024-01-31", q.Params["to"])
	assert.Equal(t, []string{"websiteId", "from", "to"}, q.Placeholders)
}

func TestCompile_ClauseOrdering(t *testing.T) {
	q, err := Compile(breakdownConfig(), baseRequest(), "")
	require.NoError(t, err)

	whereIdx := strings.Index(q.SQL, " WHERE ")
	groupIdx := strings.Index(q.SQL, " GROUP BY ")
	orderIdx := strings.Index(q.SQL, " ORDER BY ")
	limitIdx := strings.Index(q.SQL, " LIMIT ")
	require.True(t, whereIdx >= 0 && groupIdx > whereIdx && orderIdx > groupIdx && limitIdx > orderIdx,
		"clause order wrong: %s", q.SQL)
}

func TestCompile_FiltersAppendToWhere(t *testing.T) {
	req := baseRequest()
	req.Filters = []domain.Filter{
		{Field: "country", Op: domain.OpEq, Value: "DE"},
		{Field: "path", Op: domain.OpLike, Value: "/blog"},
	}

	q, err := Compile(breakdownConfig(), req, "")
	require.NoError(t, err)

	assert.Contains(t, q.SQL, "country = {f0:String}")
	assert.Contains(t, q.SQL, "{f1:String}")
	assert.Equal(t, "DE", q.Params["f0"])
	assert.Equal(t, "%/blog%", q.Params["f1"])
	assert.Equal(t, []string{"websiteId", "from", "to", "f0", "f1"}, q.Placeholders)
}

func TestCompile_ForbiddenFilterFailsWholeCompile(t *testing.T) {
	req := baseRequest()
	req.Filters = []domain.Filter{{Field: "secret_col", Op: domain.OpEq, Value: "x"}}

	_, err := Compile(breakdownConfig(), req, "")
	require.Error(t, err)
	var forbidden *domain.ForbiddenFilterError
	assert.ErrorAs(t, err, &forbidden)
}

func TestCompile_DateTimeFormatting(t *testing.T) {
	req := baseRequest()
	req.From = "2024-01-01T08:30:00.123Z"
	req.To = "2024-01-31T23:00:00"

	q, err := Compile(breakdownConfig(), req, "")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01 08:30:00", q.Params["from"])
	assert.Equal(t, "2024-01-31 23:00:00", q.Params["to"])
}

func TestCompile_SkipEndOfDay(t *testing.T) {
	cfg := breakdownConfig()
	cfg.SkipEndOfDay = true

	q, err := Compile(cfg, baseRequest(), "")
	require.NoError(t, err)
	assert.Contains(t, q.SQL, "time <= toDateTime({to:String})")
	assert.NotContains(t, q.SQL, "23:59:59")
}

func TestCompile_TimeFieldOverride(t *testing.T) {
	cfg := breakdownConfig()
	cfg.TimeField = "created_at"

	q, err := Compile(cfg, baseRequest(), "")
	require.NoError(t, err)
	assert.Contains(t, q.SQL, "created_at >= toDateTime({from:String})")
}

func TestCompile_RequestOverridesGroupOrderLimit(t *testing.T) {
	req := baseRequest()
	req.GroupBy = []string{"name", "country"}
	req.OrderBy = "pageviews ASC"
	req.Limit = 10
	req.Offset = 20

	q, err := Compile(breakdownConfig(), req, "")
	require.NoError(t, err)
	assert.Contains(t, q.SQL, " GROUP BY name, country")
	assert.Contains(t, q.SQL, " ORDER BY pageviews ASC")
	assert.Contains(t, q.SQL, " LIMIT 10")
	assert.Contains(t, q.SQL, " OFFSET 20")
}

func TestCompile_RejectsDangerousStructuralTokens(t *testing.T) {
	req := baseRequest()
	req.OrderBy = "name; DROP TABLE analytics.events"

	_, err := Compile(breakdownConfig(), req, "")
	require.Error(t, err)
	var validation *domain.ValidationError
	assert.ErrorAs(t, err, &validation)

	req = baseRequest()
	req.GroupBy = []string{"name", "1; DELETE FROM analytics.events"}
	_, err = Compile(breakdownConfig(), req, "")
	require.Error(t, err)
}

func TestCompile_DomainSubstitution(t *testing.T) {
	cfg := breakdownConfig()
	cfg.Where = append(cfg.Where,
		"referrer != ''",
		"domain(referrer) != '{websiteDomain}'",
		"NOT domain(referrer) ILIKE '%.{websiteDomain}'",
	)

	// Known domain: literal substitution.
	q, err := Compile(cfg, baseRequest(), "example.com")
	require.NoError(t, err)
	assert.Contains(t, q.SQL, "domain(referrer) != 'example.com'")
	assert.Contains(t, q.SQL, "ILIKE '%.example.com'")
	assert.NotContains(t, q.SQL, "{websiteDomain}")

	// Unknown domain: self-referral fragments degrade to tautologies.
	q, err = Compile(cfg, baseRequest(), "")
	require.NoError(t, err)
	assert.NotContains(t, q.SQL, "{websiteDomain}")
	assert.Contains(t, q.SQL, "1=1")
	assert.Contains(t, q.SQL, "referrer != ''", "domain-independent fragments survive")
}

func TestCompile_CustomSQLReceivesFilters(t *testing.T) {
	var got domain.CustomSQLArgs
	cfg := &domain.QueryConfig{
		AllowedFilters: []string{"country"},
		CustomSQL: func(args domain.CustomSQLArgs) (domain.CompiledQuery, error) {
			got = args
			q := domain.CompiledQuery{SQL: "SELECT 1 WHERE " + args.FilterClause}
			q.AddParam("websiteId", args.ProjectID)
			for k, v := range args.FilterParams {
				q.AddParam(k, v)
			}
			return q, nil
		},
	}

	req := baseRequest()
	req.Filters = []domain.Filter{{Field: "country", Op: domain.OpEq, Value: "DE"}}

	q, err := Compile(cfg, req, "")
	require.NoError(t, err)
	assert.Equal(t, "site-1", got.ProjectID)
	assert.Equal(t, "country = {f0:String}", got.FilterClause)
	assert.Equal(t, "DE", got.FilterParams["f0"])
	assert.ElementsMatch(t, []string{"websiteId", "f0"}, q.Placeholders)
}

func TestCompile_CustomSQLErrorPropagates(t *testing.T) {
	cfg := &domain.QueryConfig{
		CustomSQL: func(args domain.CustomSQLArgs) (domain.CompiledQuery, error) {
			return domain.CompiledQuery{}, domain.ErrValidation("missing required input")
		},
	}

	_, err := Compile(cfg, baseRequest(), "")
	require.Error(t, err)
	var validation *domain.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestCompile_CustomSQLDerivesPlaceholders(t *testing.T) {
	cfg := &domain.QueryConfig{
		CustomSQL: func(args domain.CustomSQLArgs) (domain.CompiledQuery, error) {
			return domain.CompiledQuery{
				SQL:    "SELECT 1 WHERE a = {a:String}",
				Params: map[string]any{"a": "x"},
			}, nil
		},
	}

	q, err := Compile(cfg, baseRequest(), "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a"}, q.Placeholders)
}

package plugins

import (
	"strings"

	"querybatch/internal/domain"
)

// countryNames maps ISO 3166-1 alpha-2 codes to display names. Kept to the
// countries that actually show up in traffic; unknown codes pass through.
var countryNames = map[string]string{
	"US": "United States",
	"GB": "United Kingdom",
	"DE": "Germany",
	"FR": "France",
	"ES": "Spain",
	"IT": "Italy",
	"NL": "Netherlands",
	"BE": "Belgium",
	"SE": "Sweden",
	"NO": "Norway",
	"DK": "Denmark",
	"FI": "Finland",
	"PL": "Poland",
	"PT": "Portugal",
	"IE": "Ireland",
	"AT": "Austria",
	"CH": "Switzerland",
	"CZ": "Czechia",
	"GR": "Greece",
	"RO": "Romania",
	"HU": "Hungary",
	"UA": "Ukraine",
	"RU": "Russia",
	"TR": "Turkey",
	"CA": "Canada",
	"MX": "Mexico",
	"BR": "Brazil",
	"AR": "Argentina",
	"CL": "Chile",
	"CO": "Colombia",
	"AU": "Australia",
	"NZ": "New Zealand",
	"JP": "Japan",
	"KR": "South Korea",
	"CN": "China",
	"HK": "Hong Kong",
	"TW": "Taiwan",
	"SG": "Singapore",
	"MY": "Malaysia",
	"TH": "Thailand",
	"VN": "Vietnam",
	"PH": "Philippines",
	"ID": "Indonesia",
	"IN": "India",
	"PK": "Pakistan",
	"BD": "Bangladesh",
	"AE": "United Arab Emirates",
	"SA": "Saudi Arabia",
	"EG": "Egypt",
	"ZA": "South Africa",
	"NG": "Nigeria",
	"KE": "Kenya",
}

// countryAliases maps lowercased free-text country names (and common
// variants) to their canonical code.
var countryAliases = map[string]string{
	"united states":            "US",
	"united states of america": "US",
	"usa":                      "US",
	"u.s.":                     "US",
	"united kingdom":           "GB",
	"uk":                       "GB",
	"great britain":            "GB",
	"england":                  "GB",
	"germany":                  "DE",
	"deutschland":              "DE",
	"france":                   "FR",
	"spain":                    "ES",
	"italy":                    "IT",
	"netherlands":              "NL",
	"the netherlands":          "NL",
	"holland":                  "NL",
	"belgium":                  "BE",
	"sweden":                   "SE",
	"norway":                   "NO",
	"denmark":                  "DK",
	"finland":                  "FI",
	"poland":                   "PL",
	"portugal":                 "PT",
	"ireland":                  "IE",
	"austria":                  "AT",
	"switzerland":              "CH",
	"czechia":                  "CZ",
	"czech republic":           "CZ",
	"greece":                   "GR",
	"romania":                  "RO",
	"hungary":                  "HU",
	"ukraine":                  "UA",
	"russia":                   "RU",
	"russian federation":       "RU",
	"turkey":                   "TR",
	"türkiye":                  "TR",
	"canada":                   "CA",
	"mexico":                   "MX",
	"brazil":                   "BR",
	"argentina":                "AR",
	"chile":                    "CL",
	"colombia":                 "CO",
	"australia":                "AU",
	"new zealand":              "NZ",
	"japan":                    "JP",
	"south korea":              "KR",
	"korea, republic of":       "KR",
	"china":                    "CN",
	"hong kong":                "HK",
	"taiwan":                   "TW",
	"singapore":                "SG",
	"malaysia":                 "MY",
	"thailand":                 "TH",
	"vietnam":                  "VN",
	"viet nam":                 "VN",
	"philippines":              "PH",
	"indonesia":                "ID",
	"india":                    "IN",
	"pakistan":                 "PK",
	"bangladesh":               "BD",
	"united arab emirates":     "AE",
	"saudi arabia":             "SA",
	"egypt":                    "EG",
	"south africa":             "ZA",
	"nigeria":                  "NG",
	"kenya":                    "KE",
}

// NormalizeGeo maps a free-text country name or code to a canonical code
// and display name, added as country_code and country_name. The original
// columns are untouched.
func NormalizeGeo(rows []domain.Row) []domain.Row {
	out := make([]domain.Row, len(rows))
	for i, row := range rows {
		code, name := canonicalCountry(asString(row["name"]))
		next := cloneRow(row)
		next["country_code"] = code
		next["country_name"] = name
		out[i] = next
	}
	return out
}

func canonicalCountry(raw string) (code, name string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", "Unknown"
	}
	if len(trimmed) == 2 {
		c := strings.ToUpper(trimmed)
		if n, ok := countryNames[c]; ok {
			return c, n
		}
		return c, c
	}
	if c, ok := countryAliases[strings.ToLower(trimmed)]; ok {
		return c, countryNames[c]
	}
	return trimmed, trimmed
}

// DeduplicateGeo re-aggregates rows sharing a canonical country code,
// summing pageviews and visitors, then recomputes each row's percentage as
// its visitor count over the total visitors across resulting rows.
// Requires the columns NormalizeGeo adds.
func DeduplicateGeo(rows []domain.Row) []domain.Row {
	type agg struct {
		row       domain.Row
		pageviews int64
		visitors  int64
	}

	var order []string
	byCode := map[string]*agg{}
	for _, row := range rows {
		code := asString(row["country_code"])
		a, ok := byCode[code]
		if !ok {
			a = &agg{row: cloneRow(row)}
			byCode[code] = a
			order = append(order, code)
		}
		a.pageviews += asInt64(row["pageviews"])
		a.visitors += asInt64(row["visitors"])
	}

	var totalVisitors int64
	for _, a := range byCode {
		totalVisitors += a.visitors
	}

	out := make([]domain.Row, 0, len(order))
	for _, code := range order {
		a := byCode[code]
		a.row["pageviews"] = a.pageviews
		a.row["visitors"] = a.visitors
		if totalVisitors > 0 {
			a.row["percentage"] = round2(float64(a.visitors) * 100 / float64(totalVisitors))
		} else {
			a.row["percentage"] = float64(0)
		}
		out = append(out, a.row)
	}
	return out
}

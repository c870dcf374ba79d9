package sqlgen

import (
	"fmt"
	"regexp"
	"strings"
)

// forbiddenTokens are functions and syntax from other SQL dialects that must
// never appear in generated SQLite. Each match produces its own violation so
// the repair prompt can name the exact offender. Word tokens use boundary
// matching so identifiers like an "intervals" CTE do not trip them.
var forbiddenTokens = []struct {
	token string
	re    *regexp.Regexp
}{
	{"INTERVAL", regexp.MustCompile(`\bINTERVAL\b`)},
	{"NOW()", nil},
	{"DATE_TRUNC", regexp.MustCompile(`\bDATE_TRUNC\b`)},
	{"TIMESTAMPDIFF", regexp.MustCompile(`\bTIMESTAMPDIFF\b`)},
	{"AT TIME ZONE", nil},
	{"FROM_UNIXTIME", regexp.MustCompile(`\bFROM_UNIXTIME\b`)},
	{"EXTRACT(EPOCH FROM", nil},
	{"::TIMESTAMP", nil},
	{"GREATEST(", nil},
	{"LEAST(", nil},
}

// ddlDmlRe enforces read-only generation. Word boundaries keep column names
// like created_at from tripping it, and REPLACE only counts as a write when
// followed by INTO so the REPLACE() string function stays usable.
var ddlDmlRe = regexp.MustCompile(`\b(INSERT|UPDATE|DELETE|DROP|ALTER|CREATE|TRUNCATE|REPLACE\s+INTO|ATTACH|DETACH|PRAGMA|VACUUM)\b`)

var (
	timestampSubtractionRe = regexp.MustCompile(`(?i)\b\w*_at\b\s*-`)
	rawStatusCompareRe     = regexp.MustCompile(`(?i)\bstatus\s*(=|!=|<>)`)
)

var timeWeightedKeywords = []string{
	"uptime", "availability", "duration", "how long", "time spent", "percentage of time",
}

var perEntityKeywords = []string{
	"each service", "each site", "per service", "per site", "by service", "by site", "every service", "every site",
}

var boundedRangeKeywords = []string{
	"last", "past", "day", "hour", "week", "month", "since", "recent",
}

var statusKeywords = []string{
	"uptime", "availability", "status", "operational", "degraded", "incident", "maintenance", "down",
}

// validate is the policy engine. It is a pure function of the candidate SQL
// and the task text; every defect maps to a distinct tag the repair prompt
// knows a fix for.
func validate(sql, task string) []string {
	var violations []string
	upper := strings.ToUpper(sql)
	taskLower := strings.ToLower(task)

	for _, ft := range forbiddenTokens {
		matched := false
		if ft.re != nil {
			matched = ft.re.MatchString(upper)
		} else {
			matched = strings.Contains(upper, ft.token)
		}
		if matched {
			violations = append(violations, fmt.Sprintf("wrong_dialect_token(%s)", ft.token))
		}
	}

	if strings.Contains(strings.TrimRight(strings.TrimSpace(sql), ";"), ";") {
		violations = append(violations, "multi_statement")
	}

	seen := map[string]bool{}
	for _, kw := range ddlDmlRe.FindAllString(upper, -1) {
		if !seen[kw] {
			seen[kw] = true
			violations = append(violations, "ddl_dml:"+kw)
		}
	}

	if containsAny(taskLower, timeWeightedKeywords) {
		if !strings.Contains(upper, "LEAD(") {
			violations = append(violations, "missing_LEAD")
		}
		if containsAny(taskLower, perEntityKeywords) && !strings.Contains(upper, "PARTITION BY") {
			violations = append(violations, "no_partition_by_site")
		}
		if containsAny(taskLower, boundedRangeKeywords) && !strings.Contains(sql, "datetime('now'") {
			violations = append(violations, "no_window_bounds")
		}
		if !strings.Contains(upper, "MAX(") || !strings.Contains(upper, "MIN(") {
			violations = append(violations, "no_seed_or_clip")
		}
		if timestampSubtractionRe.MatchString(sql) {
			violations = append(violations, "direct_timestamp_subtraction")
		}
		if strings.Contains(upper, "COUNT(") && !strings.Contains(upper, "JULIANDAY(") {
			violations = append(violations, "row_counts_instead_of_durations")
		}
	}

	if containsAny(taskLower, statusKeywords) && rawStatusCompareRe.MatchString(sql) {
		violations = append(violations, "case_sensitive_status_check")
	}

	return violations
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

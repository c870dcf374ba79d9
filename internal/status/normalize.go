package status

import "strings"

// rule maps one canonical status to the vendor phrases that imply it.
type rule struct {
	status   Status
	patterns []string
}

// rules is checked in declared order and the first matching bucket wins.
// Order is deliberate: incident and degraded phrases are checked before the
// generic operational vocabulary so that "major outage resolved pages" style
// text cannot be shadowed by a stray "ok" or "up" substring. Patterns are
// matched as case-insensitive substrings of the input.
//
// This is best-effort keyword matching against free vendor text, not a
// grammar. Extend the tables, not the control flow.
var rules = []rule{
	{Incident, []string{
		"major outage",
		"service disruption",
		"outage",
		"incident",
		"critical",
		"unavailable",
		"down",
		"major",
	}},
	{Degraded, []string{
		"degraded",
		"partial",
		"minor",
		"investigating",
		"identified",
		"monitoring",
		"performance issues",
		"experiencing issues",
	}},
	{Maintenance, []string{
		"maintenance",
		"scheduled",
		"planned work",
	}},
	{RecentlyResolved, []string{
		"recently resolved",
		"recently_resolved",
	}},
	{Operational, []string{
		"all systems operational",
		"operational",
		"no issues",
		"healthy",
		"available",
		"normal",
		"none",
		"ok",
		"up",
	}},
}

// Normalize maps free-text vendor status to a canonical Status. It is pure
// and total: unmatched or empty text yields Unknown, never an error.
func Normalize(text string) Status {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return Unknown
	}
	for _, r := range rules {
		for _, p := range r.patterns {
			if strings.Contains(t, p) {
				return r.status
			}
		}
	}
	return Unknown
}

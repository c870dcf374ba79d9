// Package status defines the canonical health states and the text-to-status
// normalizer shared by all parsers.
package status

// Status is a canonical health state. Vendor vocabulary is always reduced to
// one of these six values before anything else looks at it.
type Status string

const (
	Operational      Status = "operational"
	RecentlyResolved Status = "recently_resolved"
	Maintenance      Status = "maintenance"
	Degraded         Status = "degraded"
	Incident         Status = "incident"
	Unknown          Status = "unknown"
)

// severity orders statuses for worst-wins aggregation. Unknown carries no
// severity and is excluded from aggregation.
var severity = map[Status]int{
	Operational:      0,
	RecentlyResolved: 1,
	Maintenance:      2,
	Degraded:         3,
	Incident:         4,
}

// Valid reports whether s is one of the six canonical values.
func Valid(s Status) bool {
	if s == Unknown {
		return true
	}
	_, ok := severity[s]
	return ok
}

// Worse returns the more severe of a and b. Unknown never wins over a known
// status; two unknowns stay unknown.
func Worse(a, b Status) Status {
	sa, aok := severity[a]
	sb, bok := severity[b]
	switch {
	case !aok && !bok:
		return Unknown
	case !aok:
		return b
	case !bok:
		return a
	case sb > sa:
		return b
	default:
		return a
	}
}

// Component is a named sub-service extracted from a multi-component status
// page. Transient: only used to compute filtered aggregates.
type Component struct {
	Name   string
	Status Status
}

// WorstComponent reduces a component list to the single worst status.
// An empty list yields Unknown: absence of components is not evidence of
// health.
func WorstComponent(components []Component) Status {
	if len(components) == 0 {
		return Unknown
	}
	worst := Unknown
	for _, c := range components {
		worst = Worse(worst, c.Status)
	}
	return worst
}

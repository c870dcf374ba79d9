// Package notify decides when status changes warrant an email and sends it.
package notify

import (
	"fmt"
	"time"

	"github.com/statuswatch/statuswatch/internal/status"
)

// Decision kinds.
const (
	KindDegradation = "degradation"
	KindRecovery    = "recovery"
)

// Decision is the outcome of the notification policy for one transition.
type Decision struct {
	Notify bool
	Kind   string
	Reason string
}

// State is the per-site notification history the policy needs.
type State struct {
	LastNotifiedAt     *time.Time
	LastNotifiedStatus *string
}

// problem reports whether a status should page. Maintenance is expected and
// unknown is absence of information, neither is an outage.
func problem(s status.Status) bool {
	return s == status.Degraded || s == status.Incident
}

// ShouldNotify is a pure function over two consecutive statuses plus the
// site's notification state. It never consults a clock of its own.
func ShouldNotify(prev, curr status.Status, state State, cooldown time.Duration, now time.Time) Decision {
	if problem(curr) {
		escalated := problem(prev) && prev != curr && status.Worse(prev, curr) == curr
		entered := !problem(prev)
		if !entered && !escalated {
			return Decision{Reason: "already in this state"}
		}

		// The cooldown only suppresses repeats of the same notified status;
		// an escalation always goes out.
		if !escalated && state.LastNotifiedAt != nil && state.LastNotifiedStatus != nil &&
			*state.LastNotifiedStatus == string(curr) &&
			now.Sub(*state.LastNotifiedAt) < cooldown {
			return Decision{Reason: "within cooldown for this status"}
		}

		reason := fmt.Sprintf("status changed from %s to %s", prev, curr)
		if escalated {
			reason = fmt.Sprintf("status escalated from %s to %s", prev, curr)
		}
		return Decision{Notify: true, Kind: KindDegradation, Reason: reason}
	}

	if (curr == status.Operational || curr == status.RecentlyResolved) && problem(prev) {
		// Only close the loop on degradations we actually announced.
		if state.LastNotifiedStatus != nil && problem(status.Status(*state.LastNotifiedStatus)) {
			return Decision{Notify: true, Kind: KindRecovery,
				Reason: fmt.Sprintf("recovered from %s", prev)}
		}
		return Decision{Reason: "recovery from an unannounced degradation"}
	}

	return Decision{Reason: "no actionable transition"}
}

package status

import "testing"

func TestNormalizeKnownPhrases(t *testing.T) {
	cases := []struct {
		text string
		want Status
	}{
		{"All Systems Operational", Operational},
		{"operational", Operational},
		{"No issues detected", Operational},
		{"Healthy", Operational},
		{"Degraded Performance", Degraded},
		{"Investigating - Service Degradation", Degraded},
		{"Partial outage", Incident}, // "outage" beats "partial" by table order
		{"Minor service issues", Degraded},
		{"Major Outage", Incident},
		{"Service is down", Incident},
		{"Critical incident in progress", Incident},
		{"Scheduled maintenance window", Maintenance},
		{"Planned work tonight", Maintenance},
		{"", Unknown},
		{"lorem ipsum dolor", Unknown},
	}
	for _, c := range cases {
		if got := Normalize(c.text); got != c.want {
			t.Errorf("Normalize(%q) = %s, want %s", c.text, got, c.want)
		}
	}
}

func TestNormalizeAlwaysCanonical(t *testing.T) {
	inputs := []string{
		"", "   ", "???", "status: weird", "All Systems Operational",
		"down down down", "maintenance\nscheduled", "ÿØπ", "null", "degraded",
	}
	for _, in := range inputs {
		got := Normalize(in)
		if !Valid(got) {
			t.Errorf("Normalize(%q) = %q, not a canonical status", in, got)
		}
	}
}

func TestIncidentBeatsOperationalVocabulary(t *testing.T) {
	// "up" and "ok" must not shadow an explicit outage.
	if got := Normalize("Major outage, we are working to bring it back up"); got != Incident {
		t.Errorf("got %s, want incident", got)
	}
}

func TestWorse(t *testing.T) {
	cases := []struct {
		a, b, want Status
	}{
		{Operational, Incident, Incident},
		{Incident, Operational, Incident},
		{Degraded, Maintenance, Degraded},
		{RecentlyResolved, Operational, RecentlyResolved},
		{Unknown, Degraded, Degraded},
		{Degraded, Unknown, Degraded},
		{Unknown, Unknown, Unknown},
	}
	for _, c := range cases {
		if got := Worse(c.a, c.b); got != c.want {
			t.Errorf("Worse(%s, %s) = %s, want %s", c.a, c.b, got, c.want)
		}
	}
}

func TestWorstComponentOrderIndependent(t *testing.T) {
	perms := [][]Component{
		{{"a", Incident}, {"b", Operational}, {"c", Maintenance}},
		{{"b", Operational}, {"c", Maintenance}, {"a", Incident}},
		{{"c", Maintenance}, {"a", Incident}, {"b", Operational}},
	}
	for i, comps := range perms {
		if got := WorstComponent(comps); got != Incident {
			t.Errorf("perm %d: got %s, want incident", i, got)
		}
	}
}

func TestWorstComponentEmpty(t *testing.T) {
	if got := WorstComponent(nil); got != Unknown {
		t.Errorf("got %s, want unknown", got)
	}
}

func TestWorstComponentAllUnknown(t *testing.T) {
	comps := []Component{{"a", Unknown}, {"b", Unknown}}
	if got := WorstComponent(comps); got != Unknown {
		t.Errorf("got %s, want unknown", got)
	}
}

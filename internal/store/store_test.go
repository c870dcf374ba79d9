package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/statuswatch/statuswatch/internal/status"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func addTestSite(t *testing.T, s *Store, id string) {
	t.Helper()
	err := s.SyncSite(Site{
		ID:                   id,
		DisplayName:          "Test " + id,
		StatusPage:           "https://status.example.com/" + id,
		Parser:               "auto",
		PollFrequencySeconds: 300,
	})
	if err != nil {
		t.Fatalf("SyncSite: %v", err)
	}
}

func TestSyncSitePreservesNotificationState(t *testing.T) {
	s := openTestStore(t)
	addTestSite(t, s, "vendor")

	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if err := s.RecordNotified("vendor", status.Incident, at); err != nil {
		t.Fatalf("RecordNotified: %v", err)
	}

	// Re-sync as config reload would.
	addTestSite(t, s, "vendor")

	site, err := s.GetSite("vendor")
	if err != nil {
		t.Fatalf("GetSite: %v", err)
	}
	if site == nil {
		t.Fatal("site not found after sync")
	}
	if site.LastNotifiedAt == nil || !site.LastNotifiedAt.Equal(at) {
		t.Errorf("LastNotifiedAt = %v, want %v", site.LastNotifiedAt, at)
	}
	if site.LastNotifiedStatus == nil || *site.LastNotifiedStatus != "incident" {
		t.Errorf("LastNotifiedStatus = %v, want incident", site.LastNotifiedStatus)
	}
}

func TestDeactivateSitesExcept(t *testing.T) {
	s := openTestStore(t)
	addTestSite(t, s, "keep")
	addTestSite(t, s, "drop")

	if err := s.DeactivateSitesExcept([]string{"keep"}); err != nil {
		t.Fatalf("DeactivateSitesExcept: %v", err)
	}

	sites, err := s.GetActiveSites()
	if err != nil {
		t.Fatalf("GetActiveSites: %v", err)
	}
	if len(sites) != 1 || sites[0].ID != "keep" {
		t.Errorf("active sites = %v, want [keep]", sites)
	}

	// Deactivated sites keep their rows.
	dropped, err := s.GetSite("drop")
	if err != nil {
		t.Fatalf("GetSite: %v", err)
	}
	if dropped == nil || dropped.IsActive {
		t.Errorf("dropped site = %+v, want inactive row", dropped)
	}
}

func TestReadingsTimeline(t *testing.T) {
	s := openTestStore(t)
	addTestSite(t, s, "vendor")

	if r, err := s.LatestReading("vendor"); err != nil || r != nil {
		t.Fatalf("LatestReading on empty timeline = %v, %v; want nil, nil", r, err)
	}

	changed := time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)
	for _, st := range []status.Status{status.Operational, status.Degraded} {
		_, err := s.InsertReading(&Reading{
			SiteID:        "vendor",
			Status:        st,
			Summary:       "summary for " + string(st),
			SourceType:    "json",
			RawSnapshot:   map[string]any{"status": string(st)},
			LastChangedAt: &changed,
		})
		if err != nil {
			t.Fatalf("InsertReading: %v", err)
		}
	}

	latest, err := s.LatestReading("vendor")
	if err != nil {
		t.Fatalf("LatestReading: %v", err)
	}
	if latest.Status != status.Degraded {
		t.Errorf("latest status = %q, want degraded", latest.Status)
	}
	if latest.LastChangedAt == nil || !latest.LastChangedAt.Equal(changed) {
		t.Errorf("LastChangedAt = %v, want %v", latest.LastChangedAt, changed)
	}
	if latest.RawSnapshot["status"] != "degraded" {
		t.Errorf("RawSnapshot = %v", latest.RawSnapshot)
	}

	readings, err := s.GetReadings("vendor", 10)
	if err != nil {
		t.Fatalf("GetReadings: %v", err)
	}
	if len(readings) != 2 || readings[0].Status != status.Degraded {
		t.Errorf("readings = %v", readings)
	}
}

func TestAdvisoryDeduplication(t *testing.T) {
	s := openTestStore(t)
	addTestSite(t, s, "vendor")

	a := &Advisory{
		SiteID:          "vendor",
		Title:           "Database connectivity issues",
		Description:     "Investigating elevated error rates",
		Severity:        "high",
		Criticality:     "high",
		AffectsUs:       true,
		AffectedModules: []string{"Exchange Online"},
		RelevanceReason: "mentions a monitored module",
	}
	inserted, err := s.InsertAdvisory(a)
	if err != nil {
		t.Fatalf("InsertAdvisory: %v", err)
	}
	if !inserted {
		t.Fatal("first insert reported as duplicate")
	}

	inserted, err = s.InsertAdvisory(a)
	if err != nil {
		t.Fatalf("InsertAdvisory (dup): %v", err)
	}
	if inserted {
		t.Error("duplicate insert reported as new")
	}

	has, err := s.HasAdvisory("vendor", a.Title)
	if err != nil {
		t.Fatalf("HasAdvisory: %v", err)
	}
	if !has {
		t.Error("HasAdvisory = false for stored title")
	}

	advisories, err := s.GetAdvisories("vendor", true, 10)
	if err != nil {
		t.Fatalf("GetAdvisories: %v", err)
	}
	if len(advisories) != 1 {
		t.Fatalf("got %d advisories, want 1", len(advisories))
	}
	got := advisories[0]
	if !got.AffectsUs || len(got.AffectedModules) != 1 || got.AffectedModules[0] != "Exchange Online" {
		t.Errorf("advisory = %+v", got)
	}
}

func TestSiteModules(t *testing.T) {
	s := openTestStore(t)
	addTestSite(t, s, "vendor")

	if err := s.ReplaceSiteModules("vendor", []string{"Teams", "Exchange Online"}); err != nil {
		t.Fatalf("ReplaceSiteModules: %v", err)
	}
	modules, err := s.EnabledModules("vendor")
	if err != nil {
		t.Fatalf("EnabledModules: %v", err)
	}
	if len(modules) != 2 || modules[0] != "Exchange Online" || modules[1] != "Teams" {
		t.Errorf("modules = %v", modules)
	}

	// Replacing with a new list drops the old entries.
	if err := s.ReplaceSiteModules("vendor", []string{"SharePoint"}); err != nil {
		t.Fatalf("ReplaceSiteModules: %v", err)
	}
	modules, err = s.EnabledModules("vendor")
	if err != nil {
		t.Fatalf("EnabledModules: %v", err)
	}
	if len(modules) != 1 || modules[0] != "SharePoint" {
		t.Errorf("modules after replace = %v", modules)
	}
}

func TestExecuteReadOnly(t *testing.T) {
	s := openTestStore(t)
	addTestSite(t, s, "vendor")
	if _, err := s.InsertReading(&Reading{SiteID: "vendor", Status: status.Operational, Summary: "ok", SourceType: "json"}); err != nil {
		t.Fatalf("InsertReading: %v", err)
	}

	result, err := s.ExecuteReadOnly("SELECT site_id, status FROM readings")
	if err != nil {
		t.Fatalf("ExecuteReadOnly: %v", err)
	}
	if result.RowCount != 1 {
		t.Fatalf("RowCount = %d, want 1", result.RowCount)
	}
	if len(result.Columns) != 2 || result.Columns[0] != "site_id" {
		t.Errorf("Columns = %v", result.Columns)
	}
	if result.Rows[0][1] != "operational" {
		t.Errorf("row = %v", result.Rows[0])
	}
}

func TestExecuteReadOnlyRejectsWrites(t *testing.T) {
	s := openTestStore(t)
	addTestSite(t, s, "vendor")

	if _, err := s.ExecuteReadOnly("DELETE FROM sites"); err == nil {
		t.Fatal("DELETE succeeded on read-only connection")
	}

	site, err := s.GetSite("vendor")
	if err != nil || site == nil {
		t.Fatalf("site lost after rejected write: %v, %v", site, err)
	}
}

func TestCurrentStates(t *testing.T) {
	s := openTestStore(t)
	addTestSite(t, s, "alpha")
	addTestSite(t, s, "beta")
	if _, err := s.InsertReading(&Reading{SiteID: "alpha", Status: status.Incident, Summary: "Major outage", SourceType: "rss"}); err != nil {
		t.Fatalf("InsertReading: %v", err)
	}

	states, err := s.CurrentStates()
	if err != nil {
		t.Fatalf("CurrentStates: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("got %d states, want 2", len(states))
	}
	byID := map[string]SiteState{}
	for _, st := range states {
		byID[st.Site.ID] = st
	}
	if byID["alpha"].Status != status.Incident {
		t.Errorf("alpha status = %q, want incident", byID["alpha"].Status)
	}
	if byID["beta"].Status != status.Unknown || byID["beta"].LastCheckedAt != nil {
		t.Errorf("beta state = %+v, want unknown with no readings", byID["beta"])
	}
}

func TestGetStats(t *testing.T) {
	s := openTestStore(t)
	addTestSite(t, s, "vendor")
	errMsg := "connection refused"
	if _, err := s.InsertReading(&Reading{SiteID: "vendor", Status: status.Unknown, Summary: "Error: connection refused", SourceType: "error", ErrorMessage: &errMsg}); err != nil {
		t.Fatalf("InsertReading: %v", err)
	}

	stats, err := s.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Sites != 1 || stats.Readings != 1 || stats.ErrorReadings != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

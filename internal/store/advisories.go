package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// InsertAdvisory stores an analyzed advisory. Advisories are deduplicated by
// (site, title); re-inserting an existing title is a silent no-op so polling
// the same page repeatedly does not multiply records.
func (s *Store) InsertAdvisory(a *Advisory) (bool, error) {
	modules, err := json.Marshal(a.AffectedModules)
	if err != nil {
		return false, fmt.Errorf("encoding affected modules: %w", err)
	}
	if a.AffectedModules == nil {
		modules = []byte("[]")
	}

	affects := 0
	if a.AffectsUs {
		affects = 1
	}
	res, err := s.db.Exec(`
		INSERT INTO advisories (site_id, title, description, severity, criticality, affects_us,
		                        affected_modules, relevance_reason, source_url, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(site_id, title) DO NOTHING`,
		a.SiteID, a.Title, a.Description, a.Severity, a.Criticality, affects,
		string(modules), a.RelevanceReason, a.SourceURL, formatTimePtr(a.PublishedAt))
	if err != nil {
		return false, fmt.Errorf("inserting advisory for %s: %w", a.SiteID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// HasAdvisory reports whether an advisory with this title already exists for
// the site, so callers can skip LLM analysis for known incidents.
func (s *Store) HasAdvisory(siteID, title string) (bool, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM advisories WHERE site_id = ? AND title = ?", siteID, title).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking advisory: %w", err)
	}
	return n > 0, nil
}

// GetAdvisories returns recent advisories, newest first. siteID filters to
// one site when non-empty; affectsOnly restricts to advisories flagged as
// affecting us.
func (s *Store) GetAdvisories(siteID string, affectsOnly bool, limit int) ([]Advisory, error) {
	query := `
		SELECT id, site_id, title, description, severity, criticality, affects_us,
		       affected_modules, relevance_reason, source_url, published_at, created_at
		FROM advisories WHERE 1=1`
	var args []any
	if siteID != "" {
		query += " AND site_id = ?"
		args = append(args, siteID)
	}
	if affectsOnly {
		query += " AND affects_us = 1"
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing advisories: %w", err)
	}
	defer rows.Close()

	var advisories []Advisory
	for rows.Next() {
		var a Advisory
		var affects int
		var modules string
		var publishedAt, createdAt sql.NullString
		err := rows.Scan(&a.ID, &a.SiteID, &a.Title, &a.Description, &a.Severity, &a.Criticality,
			&affects, &modules, &a.RelevanceReason, &a.SourceURL, &publishedAt, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scanning advisory: %w", err)
		}
		a.AffectsUs = affects != 0
		json.Unmarshal([]byte(modules), &a.AffectedModules)
		a.PublishedAt = parseTimePtr(publishedAt)
		if t := parseTimePtr(createdAt); t != nil {
			a.CreatedAt = *t
		}
		advisories = append(advisories, a)
	}
	return advisories, rows.Err()
}

// PruneAdvisories deletes advisories older than the retention window.
func (s *Store) PruneAdvisories(retentionDays int) (int64, error) {
	res, err := s.db.Exec("DELETE FROM advisories WHERE created_at < datetime('now', ?)",
		fmt.Sprintf("-%d days", retentionDays))
	if err != nil {
		return 0, fmt.Errorf("pruning advisories: %w", err)
	}
	return res.RowsAffected()
}

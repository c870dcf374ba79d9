package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/statuswatch/statuswatch/internal/status"
)

// InsertReading appends one snapshot to the site's timeline.
func (s *Store) InsertReading(r *Reading) (int64, error) {
	var raw any
	if r.RawSnapshot != nil {
		data, err := json.Marshal(r.RawSnapshot)
		if err != nil {
			return 0, fmt.Errorf("encoding raw snapshot: %w", err)
		}
		raw = string(data)
	}

	res, err := s.db.Exec(`
		INSERT INTO readings (site_id, status, summary, source_type, raw_snapshot, last_changed_at, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.SiteID, string(r.Status), r.Summary, r.SourceType, raw,
		formatTimePtr(r.LastChangedAt), nullableString(r.ErrorMessage))
	if err != nil {
		return 0, fmt.Errorf("inserting reading for %s: %w", r.SiteID, err)
	}
	return res.LastInsertId()
}

// LatestReading returns the newest reading for a site, or nil if the site
// has no readings yet.
func (s *Store) LatestReading(siteID string) (*Reading, error) {
	row := s.db.QueryRow(`
		SELECT id, site_id, status, summary, source_type, raw_snapshot, last_changed_at, error_message, created_at
		FROM readings WHERE site_id = ? ORDER BY id DESC LIMIT 1`, siteID)
	reading, err := scanReading(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest reading for %s: %w", siteID, err)
	}
	return reading, nil
}

// GetReadings returns the most recent readings for a site, newest first.
func (s *Store) GetReadings(siteID string, limit int) ([]Reading, error) {
	rows, err := s.db.Query(`
		SELECT id, site_id, status, summary, source_type, raw_snapshot, last_changed_at, error_message, created_at
		FROM readings WHERE site_id = ? ORDER BY id DESC LIMIT ?`, siteID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing readings for %s: %w", siteID, err)
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		readings = append(readings, *reading)
	}
	return readings, rows.Err()
}

// PruneReadings deletes readings older than the retention window, keeping at
// least the newest reading per site so the dashboard never goes blank.
func (s *Store) PruneReadings(retentionDays int) (int64, error) {
	res, err := s.db.Exec(`
		DELETE FROM readings
		WHERE created_at < datetime('now', ?)
		  AND id NOT IN (SELECT MAX(id) FROM readings GROUP BY site_id)`,
		fmt.Sprintf("-%d days", retentionDays))
	if err != nil {
		return 0, fmt.Errorf("pruning readings: %w", err)
	}
	return res.RowsAffected()
}

func scanReading(row scanner) (*Reading, error) {
	var r Reading
	var st string
	var raw, changedAt, errMsg sql.NullString
	var createdAt sql.NullString
	err := row.Scan(&r.ID, &r.SiteID, &st, &r.Summary, &r.SourceType, &raw, &changedAt, &errMsg, &createdAt)
	if err != nil {
		return nil, err
	}
	r.Status = status.Status(st)
	if raw.Valid && raw.String != "" {
		var snapshot map[string]any
		if json.Unmarshal([]byte(raw.String), &snapshot) == nil {
			r.RawSnapshot = snapshot
		}
	}
	r.LastChangedAt = parseTimePtr(changedAt)
	if errMsg.Valid {
		r.ErrorMessage = &errMsg.String
	}
	if t := parseTimePtr(createdAt); t != nil {
		r.CreatedAt = *t
	}
	return &r, nil
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

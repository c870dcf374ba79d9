package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/statuswatch/statuswatch/internal/status"
)

// SyncSite mirrors one configured site into the database, preserving
// notification state across restarts. Sites absent from config are handled
// by DeactivateSitesExcept.
func (s *Store) SyncSite(site Site) error {
	_, err := s.db.Exec(`
		INSERT INTO sites (id, display_name, status_page, feed_url, parser, poll_frequency_seconds, is_active)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			status_page = excluded.status_page,
			feed_url = excluded.feed_url,
			parser = excluded.parser,
			poll_frequency_seconds = excluded.poll_frequency_seconds,
			is_active = 1,
			updated_at = datetime('now')`,
		site.ID, site.DisplayName, site.StatusPage, site.FeedURL, site.Parser, site.PollFrequencySeconds)
	if err != nil {
		return fmt.Errorf("syncing site %s: %w", site.ID, err)
	}
	return nil
}

// DeactivateSitesExcept marks every site not in ids as inactive. Historical
// readings and advisories are kept.
func (s *Store) DeactivateSitesExcept(ids []string) error {
	if len(ids) == 0 {
		_, err := s.db.Exec("UPDATE sites SET is_active = 0, updated_at = datetime('now') WHERE is_active = 1")
		if err != nil {
			return fmt.Errorf("deactivating sites: %w", err)
		}
		return nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.Exec(
		fmt.Sprintf("UPDATE sites SET is_active = 0, updated_at = datetime('now') WHERE is_active = 1 AND id NOT IN (%s)", placeholders),
		args...)
	if err != nil {
		return fmt.Errorf("deactivating sites: %w", err)
	}
	return nil
}

// GetSite returns one site by id, or nil if it does not exist.
func (s *Store) GetSite(id string) (*Site, error) {
	row := s.db.QueryRow(`
		SELECT id, display_name, status_page, feed_url, parser, poll_frequency_seconds,
		       is_active, last_notified_at, last_notified_status, created_at, updated_at
		FROM sites WHERE id = ?`, id)
	site, err := scanSite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting site %s: %w", id, err)
	}
	return site, nil
}

// GetActiveSites returns all active sites ordered by display name.
func (s *Store) GetActiveSites() ([]Site, error) {
	rows, err := s.db.Query(`
		SELECT id, display_name, status_page, feed_url, parser, poll_frequency_seconds,
		       is_active, last_notified_at, last_notified_status, created_at, updated_at
		FROM sites WHERE is_active = 1 ORDER BY display_name`)
	if err != nil {
		return nil, fmt.Errorf("listing sites: %w", err)
	}
	defer rows.Close()

	var sites []Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning site: %w", err)
		}
		sites = append(sites, *site)
	}
	return sites, rows.Err()
}

// RecordNotified stamps the site with the status it was last notified about.
func (s *Store) RecordNotified(siteID string, st status.Status, at time.Time) error {
	_, err := s.db.Exec(`
		UPDATE sites SET last_notified_at = ?, last_notified_status = ?, updated_at = datetime('now')
		WHERE id = ?`, formatTime(at), string(st), siteID)
	if err != nil {
		return fmt.Errorf("recording notification for %s: %w", siteID, err)
	}
	return nil
}

// CurrentStates joins each active site with its latest reading for the
// dashboard and the status command.
func (s *Store) CurrentStates() ([]SiteState, error) {
	sites, err := s.GetActiveSites()
	if err != nil {
		return nil, err
	}

	states := make([]SiteState, 0, len(sites))
	for _, site := range sites {
		state := SiteState{Site: site, Status: status.Unknown, Summary: "No readings yet"}
		reading, err := s.LatestReading(site.ID)
		if err != nil {
			return nil, err
		}
		if reading != nil {
			state.Status = reading.Status
			state.Summary = reading.Summary
			state.SourceType = reading.SourceType
			state.LastCheckedAt = &reading.CreatedAt
			state.LastChangedAt = reading.LastChangedAt
			state.ErrorMessage = reading.ErrorMessage
		}
		states = append(states, state)
	}
	return states, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSite(row scanner) (*Site, error) {
	var site Site
	var notifiedAt, notifiedStatus, createdAt, updatedAt sql.NullString
	var active int
	err := row.Scan(&site.ID, &site.DisplayName, &site.StatusPage, &site.FeedURL,
		&site.Parser, &site.PollFrequencySeconds, &active,
		&notifiedAt, &notifiedStatus, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	site.IsActive = active != 0
	site.LastNotifiedAt = parseTimePtr(notifiedAt)
	if notifiedStatus.Valid {
		site.LastNotifiedStatus = &notifiedStatus.String
	}
	site.CreatedAt = parseTimePtr(createdAt)
	site.UpdatedAt = parseTimePtr(updatedAt)
	return &site, nil
}

package store

import "fmt"

// ReplaceSiteModules replaces the module allow-list for a site with the
// configured set. An empty set means no filtering.
func (s *Store) ReplaceSiteModules(siteID string, modules []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning module update: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM site_modules WHERE site_id = ?", siteID); err != nil {
		return fmt.Errorf("clearing modules for %s: %w", siteID, err)
	}
	for _, name := range modules {
		if _, err := tx.Exec(
			"INSERT INTO site_modules (site_id, module_name, enabled) VALUES (?, ?, 1)",
			siteID, name); err != nil {
			return fmt.Errorf("adding module %s for %s: %w", name, siteID, err)
		}
	}
	return tx.Commit()
}

// EnabledModules returns the enabled module names for a site. An empty
// result means the site is unfiltered.
func (s *Store) EnabledModules(siteID string) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT module_name FROM site_modules WHERE site_id = ? AND enabled = 1 ORDER BY module_name", siteID)
	if err != nil {
		return nil, fmt.Errorf("listing modules for %s: %w", siteID, err)
	}
	defer rows.Close()

	var modules []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning module: %w", err)
		}
		modules = append(modules, name)
	}
	return modules, rows.Err()
}

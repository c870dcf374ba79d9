package sqlgen

import (
	"fmt"
	"strings"
)

const systemPrompt = `You write analytic SQL for a service health history database. You only ever produce a single read-only SQLite SELECT statement. You respond with JSON and nothing else.`

// schemaSnapshot is embedded in every prompt so the model never guesses at
// table or column names. Status values are enumerated because queries must
// compare against them case-insensitively.
const schemaSnapshot = `Tables:

sites(id TEXT PRIMARY KEY, display_name TEXT, status_page TEXT, parser TEXT, is_active INTEGER)

readings(id INTEGER PRIMARY KEY, site_id TEXT REFERENCES sites(id), status TEXT, summary TEXT, source_type TEXT, last_changed_at TEXT, error_message TEXT, created_at TEXT)
  -- append-only status timeline, one row per poll, created_at ascending per site
  -- status is one of: 'operational', 'recently_resolved', 'maintenance', 'degraded', 'incident', 'unknown'

advisories(id INTEGER PRIMARY KEY, site_id TEXT REFERENCES sites(id), title TEXT, description TEXT, severity TEXT, criticality TEXT, affects_us INTEGER, affected_modules TEXT, published_at TEXT, created_at TEXT)

site_modules(id INTEGER PRIMARY KEY, site_id TEXT REFERENCES sites(id), module_name TEXT, enabled INTEGER)

All timestamps are TEXT in 'YYYY-MM-DD HH:MM:SS' UTC.`

const dialectRules = `Dialect rules (SQLite only):
- Allowed time functions: datetime(), julianday(), strftime(). Elapsed seconds = (julianday(b) - julianday(a)) * 86400.0
- Allowed window functions: LEAD() OVER, LAG() OVER with PARTITION BY / ORDER BY
- Clip values with the scalar MAX(a, b) and MIN(a, b)
- NEVER use any of these (they belong to other dialects): INTERVAL, NOW(), DATE_TRUNC, TIMESTAMPDIFF, AT TIME ZONE, FROM_UNIXTIME, EXTRACT(EPOCH FROM ...), ::timestamp casts, GREATEST(), LEAST()
- Exactly one statement, SELECT or WITH ... SELECT only. No DDL, no DML, no PRAGMA.
- Normalize status comparisons: UPPER(status) = 'OPERATIONAL', never status = 'operational'`

const responseContract = `Respond with ONLY valid JSON in this exact format:
{
  "introspect_sql": "optional small SELECT to sanity-check assumptions, or empty string",
  "plan": "one paragraph describing the approach",
  "sql": "the single SELECT statement",
  "checks": ["assumptions you verified against the schema"],
  "warnings": ["caveats about the result, if any"]
}`

// uptimeRecipe is the full worked derivation for time-weighted queries. It
// appears in the initial prompt and again, step by step, in repair hints.
const uptimeRecipe = `For time-weighted questions (uptime, durations), statuses hold BETWEEN readings. Build the query in these steps:
1. Seed: select the newest reading per site from BEFORE the window start, timestamped at the window start, and UNION ALL with in-window readings. Without the seed, time before the first in-window reading is lost.
2. Intervals: each reading lasts until the next one. next_at = LEAD(created_at) OVER (PARTITION BY site_id ORDER BY created_at), COALESCE the final NULL to datetime('now').
3. Clip: start = MAX(created_at, window_start), end = MIN(next_at, datetime('now')).
4. Normalize: compare UPPER(status) against 'OPERATIONAL' etc.
5. Weight: seconds = (julianday(end) - julianday(start)) * 86400.0. Never subtract timestamp columns directly and never count rows as a proxy for time.
6. Aggregate: SUM the matching seconds, divide by total window seconds, multiply by 100 for a percentage.`

// repairHints maps each violation tag to a worked micro-fix. Parameterized
// tags (wrong_dialect_token(X), ddl_dml:X) are matched by prefix.
var repairHints = map[string]string{
	"wrong_dialect_token": "Replace the foreign-dialect token with SQLite equivalents: relative times with datetime('now', '-N days'), elapsed seconds with (julianday(b) - julianday(a)) * 86400.0, GREATEST/LEAST with the scalar MAX(a, b)/MIN(a, b).",
	"multi_statement":     "Emit exactly one statement. Fold preparatory queries into WITH clauses or move them to introspect_sql.",
	"ddl_dml":             "The database is read-only. Emit a SELECT (or WITH ... SELECT) and nothing else.",
	"missing_LEAD":        "A status holds until the next reading. Derive each interval's end with LEAD(created_at) OVER (PARTITION BY site_id ORDER BY created_at) and COALESCE the last interval to datetime('now').",
	"no_partition_by_site": "The task asks for a per-service breakdown. Window functions need PARTITION BY site_id and the final aggregate needs GROUP BY site_id, otherwise intervals from different services bleed into each other.",
	"no_window_bounds":    "The task bounds the time range. Filter readings with created_at >= datetime('now', '-N days') and clip interval ends to datetime('now').",
	"no_seed_or_clip":     "Seed the window with the latest pre-window reading per site (timestamped at the window start) and clip every interval: start = MAX(created_at, window_start), end = MIN(next_at, datetime('now')).",
	"direct_timestamp_subtraction": "Timestamps here are TEXT; subtracting them directly is meaningless. Use (julianday(b) - julianday(a)) * 86400.0 for elapsed seconds.",
	"row_counts_instead_of_durations": "Counting readings measures polling frequency, not time. Weight each interval by its duration in seconds via julianday arithmetic.",
	"case_sensitive_status_check": "Status text case is not guaranteed. Compare UPPER(status) = 'OPERATIONAL' (or the relevant value in upper case).",
}

func hintFor(tag string) string {
	if hint, ok := repairHints[tag]; ok {
		return hint
	}
	if i := strings.IndexAny(tag, "(:"); i > 0 {
		if hint, ok := repairHints[tag[:i]]; ok {
			return hint
		}
	}
	return "Rework the query so this defect no longer applies."
}

func buildInitialPrompt(task, outputContract string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\n", task)
	if outputContract != "" {
		fmt.Fprintf(&b, "Required output columns: %s\n\n", outputContract)
	}
	b.WriteString(schemaSnapshot)
	b.WriteString("\n\n")
	b.WriteString(dialectRules)
	b.WriteString("\n\n")
	b.WriteString(uptimeRecipe)
	b.WriteString("\n\n")
	b.WriteString(responseContract)
	return b.String()
}

func buildRepairPrompt(previousJSON string, violations []string, exec *ExecResult) string {
	var b strings.Builder
	b.WriteString("Your previous response had problems. Here it is verbatim:\n\n")
	b.WriteString(previousJSON)
	b.WriteString("\n\n")

	if len(violations) > 0 {
		b.WriteString("Policy violations to fix:\n")
		for _, tag := range violations {
			fmt.Fprintf(&b, "- %s: %s\n", tag, hintFor(tag))
		}
		b.WriteString("\n")
	}
	if exec != nil && !exec.Success {
		fmt.Fprintf(&b, "Execution failed with: %s\n\n", exec.ErrorMessage)
	} else if exec != nil {
		fmt.Fprintf(&b, "Execution returned columns %v with %d rows, which did not satisfy the task.\n\n",
			exec.Columns, exec.RowCount)
	}

	b.WriteString("Produce a corrected query that fixes every item above while keeping the task's intent.\n\n")
	b.WriteString(responseContract)
	return b.String()
}

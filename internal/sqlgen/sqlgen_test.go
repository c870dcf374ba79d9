package sqlgen

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/statuswatch/statuswatch/internal/llm"
	"github.com/statuswatch/statuswatch/internal/store"
)

type scriptedProvider struct {
	responses []string
	calls     int
}

func (p *scriptedProvider) Complete(_ context.Context, _ string, _ []llm.Message) (string, error) {
	if p.calls >= len(p.responses) {
		return "", errors.New("script exhausted")
	}
	r := p.responses[p.calls]
	p.calls++
	if strings.HasPrefix(r, "ERR:") {
		return "", errors.New(strings.TrimPrefix(r, "ERR:"))
	}
	return r, nil
}

func (p *scriptedProvider) IsConfigured() bool { return true }

type fakeExecutor struct {
	executed []string
	failWith map[string]string
}

func (e *fakeExecutor) ExecuteReadOnly(query string) (*store.QueryResult, error) {
	e.executed = append(e.executed, query)
	if msg, ok := e.failWith[query]; ok {
		return nil, errors.New(msg)
	}
	return &store.QueryResult{
		Columns:  []string{"site_id", "uptime_pct"},
		Rows:     [][]any{{"vendor", 99.5}},
		RowCount: 1,
	}, nil
}

// response wraps an LLMOutput in prose so sessions exercise the embedded
// JSON extraction path.
func response(t *testing.T, introspect, sql string) string {
	t.Helper()
	data, err := json.Marshal(LLMOutput{
		IntrospectSQL: introspect,
		Plan:          "seed, build intervals, clip, aggregate",
		SQL:           sql,
		Checks:        []string{"readings.created_at is TEXT UTC"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return "Here is the query you asked for:\n\n" + string(data)
}

// A compliant query missing only PARTITION BY, to drive one repair round.
const unpartitionedUptimeQuery = `WITH spans AS (
  SELECT site_id, status,
         MAX(created_at, datetime('now', '-7 days')) AS start_at,
         MIN(COALESCE(LEAD(created_at) OVER (ORDER BY created_at), datetime('now')), datetime('now')) AS end_at
  FROM readings
  WHERE created_at >= datetime('now', '-7 days')
)
SELECT site_id,
       100.0 * SUM(CASE WHEN UPPER(status) = 'OPERATIONAL' THEN (julianday(end_at) - julianday(start_at)) * 86400.0 ELSE 0 END)
             / SUM((julianday(end_at) - julianday(start_at)) * 86400.0) AS uptime_pct
FROM spans
GROUP BY site_id`

func TestSessionSucceedsFirstAttempt(t *testing.T) {
	provider := &scriptedProvider{responses: []string{response(t, "", goodUptimeQuery)}}
	executor := &fakeExecutor{}
	g := New(provider, executor)

	result, err := g.Generate(context.Background(), uptimeTask, Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !result.Success {
		t.Fatalf("session failed: %s", result.FailureReason)
	}
	if len(result.Attempts) != 1 {
		t.Errorf("attempts = %d, want 1", len(result.Attempts))
	}
	if result.SQL != goodUptimeQuery {
		t.Error("result SQL differs from validated SQL")
	}
	if len(executor.executed) != 1 || executor.executed[0] != goodUptimeQuery {
		t.Errorf("executed SQL differs from validated SQL: %v", executor.executed)
	}
	if result.Result == nil || result.Result.RowCount != 1 {
		t.Errorf("result = %+v", result.Result)
	}
}

func TestUptimeMissingPartitionTriggersOneRepair(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		response(t, "", unpartitionedUptimeQuery),
		response(t, "", goodUptimeQuery),
	}}
	executor := &fakeExecutor{}
	g := New(provider, executor)

	result, err := g.Generate(context.Background(), uptimeTask, Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !result.Success {
		t.Fatalf("session failed: %s", result.FailureReason)
	}
	if len(result.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(result.Attempts))
	}

	first := result.Attempts[0]
	if len(first.Violations) != 1 || first.Violations[0] != "no_partition_by_site" {
		t.Errorf("first attempt violations = %v, want exactly [no_partition_by_site]", first.Violations)
	}
	if first.Exec != nil {
		t.Error("query with outstanding violations was executed")
	}
	if len(executor.executed) != 1 || executor.executed[0] != goodUptimeQuery {
		t.Errorf("executed queries = %v, want only the repaired one", executor.executed)
	}
}

func TestSessionExhaustsRepairBudget(t *testing.T) {
	bad := response(t, "", unpartitionedUptimeQuery)
	provider := &scriptedProvider{responses: []string{bad, bad, bad, bad}}
	g := New(provider, &fakeExecutor{})

	result, err := g.Generate(context.Background(), uptimeTask, Options{MaxRepairs: 2})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Success {
		t.Fatal("session succeeded with a permanently broken query")
	}
	if len(result.Attempts) != 3 {
		t.Errorf("attempts = %d, want max_repairs+1 = 3", len(result.Attempts))
	}
	if provider.calls != 3 {
		t.Errorf("provider calls = %d, want 3", provider.calls)
	}
	if !strings.Contains(result.FailureReason, "no_partition_by_site") {
		t.Errorf("FailureReason = %q, want outstanding violations named", result.FailureReason)
	}
}

func TestUnparseableResponseAbortsSession(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"I would write a query but I forgot the JSON."}}
	g := New(provider, &fakeExecutor{})

	result, err := g.Generate(context.Background(), uptimeTask, Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Success {
		t.Fatal("session succeeded without any valid output")
	}
	if len(result.Attempts) != 0 {
		t.Errorf("attempts = %d, want 0 (no repair from unparseable output)", len(result.Attempts))
	}
	if provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1", provider.calls)
	}
	if !strings.Contains(result.FailureReason, "unparseable") {
		t.Errorf("FailureReason = %q", result.FailureReason)
	}
}

func TestExecutionFailureTriggersRepair(t *testing.T) {
	broken := "SELECT nonexistent_column FROM readings"
	provider := &scriptedProvider{responses: []string{
		response(t, "", broken),
		response(t, "", "SELECT site_id FROM readings"),
	}}
	executor := &fakeExecutor{failWith: map[string]string{broken: "no such column: nonexistent_column"}}
	g := New(provider, executor)

	result, err := g.Generate(context.Background(), "List sites with readings", Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !result.Success {
		t.Fatalf("session failed: %s", result.FailureReason)
	}
	first := result.Attempts[0]
	if first.Exec == nil || first.Exec.Success {
		t.Errorf("first attempt exec = %+v, want recorded failure", first.Exec)
	}
	if !strings.Contains(first.Exec.ErrorMessage, "no such column") {
		t.Errorf("ErrorMessage = %q", first.Exec.ErrorMessage)
	}
}

func TestCompletionFailureIsSurfacedNotPanicked(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"ERR:api timeout"}}
	g := New(provider, &fakeExecutor{})

	result, err := g.Generate(context.Background(), uptimeTask, Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Success || !strings.Contains(result.FailureReason, "api timeout") {
		t.Errorf("result = %+v", result)
	}
}

func TestIntrospectionFailureIsNotFatal(t *testing.T) {
	introspect := "SELECT missing FROM nowhere"
	provider := &scriptedProvider{responses: []string{response(t, introspect, "SELECT site_id FROM readings")}}
	executor := &fakeExecutor{failWith: map[string]string{introspect: "no such table: nowhere"}}
	g := New(provider, executor)

	result, err := g.Generate(context.Background(), "List sites with readings", Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !result.Success {
		t.Fatalf("session failed: %s", result.FailureReason)
	}
	if len(executor.executed) != 2 {
		t.Errorf("executed = %v, want introspection then primary", executor.executed)
	}
}

func TestTerminalSuccessAlwaysHasCleanAttempt(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		response(t, "", unpartitionedUptimeQuery),
		response(t, "", goodUptimeQuery),
	}}
	g := New(provider, &fakeExecutor{})

	result, err := g.Generate(context.Background(), uptimeTask, Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !result.Success {
		t.Fatalf("session failed: %s", result.FailureReason)
	}
	last := result.Attempts[len(result.Attempts)-1]
	if len(last.Violations) != 0 {
		t.Errorf("terminal attempt has violations: %v", last.Violations)
	}
	if last.Exec == nil || !last.Exec.Success {
		t.Errorf("terminal attempt exec = %+v", last.Exec)
	}
}

func TestGenerateRequiresProvider(t *testing.T) {
	g := New(nil, &fakeExecutor{})
	if _, err := g.Generate(context.Background(), uptimeTask, Options{}); err == nil {
		t.Fatal("Generate succeeded without a provider")
	}
}

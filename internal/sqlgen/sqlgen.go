// Package sqlgen turns natural-language analytic questions into validated,
// executed read-only SQL through a generate, validate, execute, repair loop.
package sqlgen

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/statuswatch/statuswatch/internal/llm"
	"github.com/statuswatch/statuswatch/internal/store"
)

const defaultMaxRepairs = 2

// Executor runs read-only SQL against the health history store.
type Executor interface {
	ExecuteReadOnly(query string) (*store.QueryResult, error)
}

// LLMOutput is the JSON contract every completion must satisfy.
type LLMOutput struct {
	IntrospectSQL string   `json:"introspect_sql"`
	Plan          string   `json:"plan"`
	SQL           string   `json:"sql"`
	Checks        []string `json:"checks"`
	Warnings      []string `json:"warnings"`
}

// ExecResult captures one execution of a candidate query.
type ExecResult struct {
	Success      bool
	ErrorMessage string
	Columns      []string
	Rows         [][]any
	RowCount     int
}

// Attempt is one generate/validate/execute round, kept for observability.
type Attempt struct {
	Output     LLMOutput
	Violations []string
	Exec       *ExecResult
}

// SessionResult is the outcome of a full generation session.
type SessionResult struct {
	SessionID     string
	Task          string
	Success       bool
	SQL           string
	Result        *store.QueryResult
	Attempts      []Attempt
	FailureReason string
}

// Options tunes a single session.
type Options struct {
	// OutputContract names the columns the caller needs, when known.
	OutputContract string
	// MaxRepairs overrides the default repair budget when positive.
	MaxRepairs int
}

// Generator owns no mutable state across sessions; it is safe for concurrent
// use as long as the provider and executor are.
type Generator struct {
	provider llm.Provider
	executor Executor
}

func New(provider llm.Provider, executor Executor) *Generator {
	return &Generator{provider: provider, executor: executor}
}

// Generate runs one session. The returned SessionResult always carries the
// full attempt history; err is reserved for precondition failures such as a
// missing provider.
func (g *Generator) Generate(ctx context.Context, task string, opts Options) (*SessionResult, error) {
	if g.provider == nil || !g.provider.IsConfigured() {
		return nil, fmt.Errorf("no LLM provider configured")
	}

	maxRepairs := defaultMaxRepairs
	if opts.MaxRepairs > 0 {
		maxRepairs = opts.MaxRepairs
	}

	session := &SessionResult{
		SessionID: uuid.NewString(),
		Task:      task,
	}
	messages := []llm.Message{
		{Role: "user", Content: buildInitialPrompt(task, opts.OutputContract)},
	}

	for attempt := 0; attempt <= maxRepairs; attempt++ {
		response, err := g.provider.Complete(ctx, systemPrompt, messages)
		if err != nil {
			session.FailureReason = fmt.Sprintf("completion failed on attempt %d: %v", attempt+1, err)
			return session, nil
		}

		var output LLMOutput
		if err := llm.ExtractJSONObject(response, &output); err != nil {
			// There is no valid prior object to repair from.
			session.FailureReason = fmt.Sprintf("unparseable response on attempt %d: %v", attempt+1, err)
			return session, nil
		}

		current := Attempt{Output: output, Violations: validate(output.SQL, task)}

		if len(current.Violations) == 0 {
			current.Exec = g.execute(output)
		}
		session.Attempts = append(session.Attempts, current)

		if len(current.Violations) == 0 && current.Exec.Success {
			session.Success = true
			session.SQL = output.SQL
			session.Result = &store.QueryResult{
				Columns:  current.Exec.Columns,
				Rows:     current.Exec.Rows,
				RowCount: current.Exec.RowCount,
			}
			return session, nil
		}

		if attempt == maxRepairs {
			break
		}

		log.Printf("sqlgen: session %s attempt %d failed (violations=%v), repairing",
			session.SessionID, attempt+1, current.Violations)
		previousJSON, _ := json.MarshalIndent(output, "", "  ")
		messages = append(messages,
			llm.Message{Role: "assistant", Content: response},
			llm.Message{Role: "user", Content: buildRepairPrompt(string(previousJSON), current.Violations, current.Exec)},
		)
	}

	last := session.Attempts[len(session.Attempts)-1]
	switch {
	case len(last.Violations) > 0:
		session.FailureReason = fmt.Sprintf("repair budget exhausted with outstanding violations: %v", last.Violations)
	case last.Exec != nil && !last.Exec.Success:
		session.FailureReason = fmt.Sprintf("repair budget exhausted, last execution error: %s", last.Exec.ErrorMessage)
	default:
		session.FailureReason = "repair budget exhausted"
	}
	return session, nil
}

// execute runs the optional introspection query best-effort, then the
// primary query. The primary query is exactly the validated SQL.
func (g *Generator) execute(output LLMOutput) *ExecResult {
	if output.IntrospectSQL != "" {
		if _, err := g.executor.ExecuteReadOnly(output.IntrospectSQL); err != nil {
			log.Printf("sqlgen: introspection query failed (continuing): %v", err)
		}
	}

	result, err := g.executor.ExecuteReadOnly(output.SQL)
	if err != nil {
		return &ExecResult{Success: false, ErrorMessage: err.Error()}
	}
	return &ExecResult{
		Success:  true,
		Columns:  result.Columns,
		Rows:     result.Rows,
		RowCount: result.RowCount,
	}
}

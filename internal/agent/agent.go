// Package agent defines the boundary to the external reasoning
// collaborator. The core never depends on what the collaborator is, only
// on this contract: send a task description, get back text that may embed
// a structured JSON payload.
//
// Every invocation is stateless; the collaborator has no memory of prior
// calls. Transport failures (binary missing, timeout, API errors) are
// reported as unsuccessful results, never as panics, and only transport
// failures are candidates for retry; the core never re-runs an agent
// because it disagrees with the answer.
package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chatretro/issueflow/internal/debug"
)

// DefaultTimeout bounds a single agent invocation.
const DefaultTimeout = 5 * time.Minute

// Task describes one unit of work for the collaborator.
type Task struct {
	// Agent names the stage persona, e.g. "issue-triage". Used for
	// diagnostics and telemetry attributes.
	Agent string
	// Description is the full prompt: stage instructions plus the
	// serialized entities to process.
	Description string
	// AllowedTools is the capability allow-list for transports that
	// support tool use.
	AllowedTools []string
	// Timeout overrides DefaultTimeout when positive.
	Timeout time.Duration
	// ExpectedFields lists top-level keys the structured reply should
	// carry. Missing fields produce a warning, not a failure.
	ExpectedFields []string
}

// Result is the outcome of one invocation.
type Result struct {
	Success bool
	// Output is the collaborator's raw text reply.
	Output string
	// Parsed is the embedded JSON payload, if the reply contained one
	// (directly or inside a fenced block). Nil when extraction failed.
	Parsed json.RawMessage
	// Err describes the transport failure when Success is false.
	Err error
}

// Invoker runs tasks against the external collaborator.
type Invoker interface {
	Run(ctx context.Context, task Task) *Result
}

// failure builds an unsuccessful result.
func failure(err error) *Result {
	return &Result{Success: false, Err: err}
}

// finish assembles a successful result from raw output: extract any
// embedded JSON and check the expected fields.
func finish(task Task, output string) *Result {
	res := &Result{Success: true, Output: output}
	res.Parsed = ExtractJSON(output)
	if res.Parsed != nil {
		warnMissingFields(task, res.Parsed)
	}
	return res
}

func warnMissingFields(task Task, parsed json.RawMessage) {
	if len(task.ExpectedFields) == 0 {
		return
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(parsed, &obj); err != nil {
		// Arrays and scalars have no top-level fields to check.
		return
	}
	var missing []string
	for _, f := range task.ExpectedFields {
		if _, ok := obj[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		debug.Warnf("agent %s reply missing expected fields: %v", task.Agent, missing)
	}
}

func taskTimeout(task Task) time.Duration {
	if task.Timeout > 0 {
		return task.Timeout
	}
	return DefaultTimeout
}

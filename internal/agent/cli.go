package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/chatretro/issueflow/internal/debug"
)

// CLIRunner invokes the collaborator through its command-line binary in
// non-interactive single-shot mode. Each run is a fresh session.
type CLIRunner struct {
	// Binary is the collaborator executable. Defaults to "claude".
	Binary string
	// WorkDir is the working directory for the subprocess; the agent's
	// tools (read/grep) operate relative to it.
	WorkDir string
	// MaxTurns caps agent iterations per invocation. Defaults to 10.
	MaxTurns int
}

// cliEvent is one entry of the CLI's JSON event stream. Only the result
// event matters here.
type cliEvent struct {
	Type    string `json:"type"`
	Result  string `json:"result"`
	IsError bool   `json:"is_error"`
}

// Run executes the CLI and interprets its JSON output.
func (r *CLIRunner) Run(ctx context.Context, task Task) *Result {
	binary := r.Binary
	if binary == "" {
		binary = "claude"
	}
	maxTurns := r.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 10
	}

	ctx, cancel := context.WithTimeout(ctx, taskTimeout(task))
	defer cancel()

	args := []string{
		"-p", task.Description,
		"--output-format", "json",
		"--max-turns", strconv.Itoa(maxTurns),
	}
	if len(task.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(task.AllowedTools, ","))
	}

	cmd := exec.CommandContext(ctx, binary, args...) // #nosec G204 - binary from injected config
	cmd.Dir = r.WorkDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	debug.Logf("agent %s: running %s (%d byte prompt)", task.Agent, binary, len(task.Description))
	err := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return failure(fmt.Errorf("agent %s timed out after %s", task.Agent, taskTimeout(task)))
	}
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return failure(fmt.Errorf("agent binary %q not found: %w", binary, err))
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return failure(fmt.Errorf("agent %s failed: %s", task.Agent, msg))
	}

	output, err := parseCLIOutput(stdout.Bytes())
	if err != nil {
		return failure(fmt.Errorf("agent %s: %w", task.Agent, err))
	}
	return finish(task, output)
}

// parseCLIOutput digs the agent's final text out of the CLI's JSON
// response, which is either an event array containing a result event or a
// single result object.
func parseCLIOutput(raw []byte) (string, error) {
	var events []cliEvent
	if err := json.Unmarshal(raw, &events); err == nil {
		for _, e := range events {
			if e.Type != "result" {
				continue
			}
			if e.IsError {
				return "", fmt.Errorf("agent returned error: %s", firstLine(e.Result))
			}
			return e.Result, nil
		}
		return "", fmt.Errorf("no result event in CLI output")
	}

	var single cliEvent
	if err := json.Unmarshal(raw, &single); err != nil {
		return "", fmt.Errorf("unparsable CLI output: %w", err)
	}
	if single.IsError {
		return "", fmt.Errorf("agent returned error: %s", firstLine(single.Result))
	}
	return single.Result, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

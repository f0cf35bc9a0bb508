package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatretro/issueflow/internal/agent"
	"github.com/chatretro/issueflow/internal/drafts"
	"github.com/chatretro/issueflow/internal/prompts"
	"github.com/chatretro/issueflow/internal/score"
	"github.com/chatretro/issueflow/internal/statestore"
	"github.com/chatretro/issueflow/internal/types"
)

// fakeInvoker routes tasks to per-agent handlers and records the call
// order.
type fakeInvoker struct {
	handlers map[string]func(task agent.Task) *agent.Result
	calls    []string
}

func (f *fakeInvoker) Run(_ context.Context, task agent.Task) *agent.Result {
	f.calls = append(f.calls, task.Agent)
	h, ok := f.handlers[task.Agent]
	if !ok {
		return &agent.Result{Success: false, Err: fmt.Errorf("no handler for agent %s", task.Agent)}
	}
	return h(task)
}

// structured builds a successful result whose reply is the given payload.
func structured(t *testing.T, payload any) *agent.Result {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &agent.Result{Success: true, Output: string(data), Parsed: data}
}

// taskPayload unpacks the serialized task context from a prompt.
func taskPayload(t *testing.T, task agent.Task, out any) {
	t.Helper()
	_, rest, ok := strings.Cut(task.Description, "## Current Task\n\n")
	require.True(t, ok, "prompt carries no task context")
	if i := strings.Index(rest, "\n\nHuman approved"); i >= 0 {
		rest = rest[:i]
	}
	require.NoError(t, json.Unmarshal([]byte(rest), out))
}

func newTestStore(t *testing.T) *statestore.Store {
	t.Helper()
	store, err := statestore.New(statestore.DefaultPaths(t.TempDir()))
	require.NoError(t, err)
	return store
}

func newOrchestrator(t *testing.T, store *statestore.Store, invoker agent.Invoker, approver Approver) *Orchestrator {
	t.Helper()
	lib, err := prompts.Defaults()
	require.NoError(t, err)
	return New(store, invoker, lib, approver)
}

func seedIssue(t *testing.T, store *statestore.Store, title string, status types.Status, sev types.Severity, fc types.Complexity) *types.Issue {
	t.Helper()
	issue := types.NewIssue(title, "seeded for test", types.CategoryBug)
	issue.Status = status
	issue.Severity = sev
	issue.FixComplexity = fc
	require.NoError(t, store.Mutate(func(state *types.IssueState) error {
		state.Issues[issue.ID] = issue
		return nil
	}))
	return issue
}

func loadState(t *testing.T, store *statestore.Store) *types.IssueState {
	t.Helper()
	state, err := store.Load()
	require.NoError(t, err)
	return state
}

// severityPlan maps a raw draft title to what the fake triage assigns.
type severityPlan struct {
	severity   types.Severity
	complexity types.Complexity
}

// triageHandler answers like the triage agent: sanitize titles and assign
// from the plan, keyed by substring of the raw title.
func triageHandler(t *testing.T, plan map[string]severityPlan) func(agent.Task) *agent.Result {
	return func(task agent.Task) *agent.Result {
		var req struct {
			Issues []struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			} `json:"issues"`
		}
		taskPayload(t, task, &req)

		var patches []map[string]any
		for _, issue := range req.Issues {
			patch := map[string]any{
				"id":    issue.ID,
				"title": "Sanitized: " + issue.Title,
			}
			for needle, p := range plan {
				if strings.Contains(issue.Title, needle) {
					patch["severity"] = string(p.severity)
					patch["fix_complexity"] = string(p.complexity)
				}
			}
			patches = append(patches, patch)
		}
		return structured(t, map[string]any{"issues": patches})
	}
}

// clusterAllHandler groups every issue it is shown into one cluster.
func clusterAllHandler(t *testing.T, theme string) func(agent.Task) *agent.Result {
	return func(task agent.Task) *agent.Result {
		var req struct {
			Issues []struct {
				ID string `json:"id"`
			} `json:"issues"`
		}
		taskPayload(t, task, &req)
		if len(req.Issues) == 0 {
			return structured(t, map[string]any{"clusters": []any{}})
		}

		ids := make([]string, 0, len(req.Issues))
		similarity := map[string]float64{}
		for _, issue := range req.Issues {
			ids = append(ids, issue.ID)
			similarity[issue.ID] = 0.9
		}
		return structured(t, map[string]any{"clusters": []map[string]any{{
			"theme":      theme,
			"issue_ids":  ids,
			"similarity": similarity,
		}}})
	}
}

// echoPriorityHandler returns each issue unchanged; the local formula is
// the ground truth.
func echoPriorityHandler(t *testing.T) func(agent.Task) *agent.Result {
	return func(task agent.Task) *agent.Result {
		var req struct {
			Issues []struct {
				ID string `json:"id"`
			} `json:"issues"`
		}
		taskPayload(t, task, &req)
		var patches []map[string]any
		for _, issue := range req.Issues {
			patches = append(patches, map[string]any{"id": issue.ID})
		}
		return structured(t, map[string]any{"issues": patches})
	}
}

func implementedHandler(t *testing.T, notes string) func(agent.Task) *agent.Result {
	return func(agent.Task) *agent.Result {
		return structured(t, map[string]any{
			"action":           "implemented",
			"resolution_notes": notes,
			"commit":           "abc1234",
		})
	}
}

// TestProcessEndToEnd walks three drafts through the full pipeline: the
// critical one resolves via the fast-track without ever being clustered,
// the other two are clustered, scored, gate-approved, and resolved, and
// the changelog ends up with one dated section holding all three entries.
func TestProcessEndToEnd(t *testing.T) {
	store := newTestStore(t)
	reporter := &drafts.Reporter{DraftsDir: store.Paths().DraftsDir}

	_, err := reporter.SaveDraft("app crashes and corrupts save file", "boom", types.CategoryBug, "", nil)
	require.NoError(t, err)
	_, err = reporter.SaveDraft("login page extremely slow", "10s spinner", types.CategoryBug, "", nil)
	require.NoError(t, err)
	_, err = reporter.SaveDraft("typo in settings menu", "Setings", types.CategoryBug, "", nil)
	require.NoError(t, err)

	invoker := &fakeInvoker{handlers: map[string]func(agent.Task) *agent.Result{
		prompts.Triage: triageHandler(t, map[string]severityPlan{
			"crashes": {types.SeverityCritical, types.ComplexityTrivial},
			"slow":    {types.SeverityHigh, types.ComplexitySmall},
			"typo":    {types.SeverityMedium, types.ComplexityTrivial},
		}),
		prompts.Clustering:     clusterAllHandler(t, "ui polish"),
		prompts.Prioritization: echoPriorityHandler(t),
		prompts.Resolution:     implementedHandler(t, "fixed it"),
	}}
	o := newOrchestrator(t, store, invoker, Auto{})

	report, err := o.Process(context.Background())
	require.NoError(t, err)

	assert.Len(t, report.Imported, 3)
	assert.Len(t, report.Triaged, 3)
	assert.Len(t, report.FastTracked, 1)
	assert.Empty(t, report.FastTrackFailures)
	assert.Len(t, report.NewClusters, 1)
	assert.Len(t, report.Clustered, 2)
	assert.Len(t, report.Prioritized, 2)
	assert.False(t, report.GateRejected)
	assert.Len(t, report.ResolvedClusters, 1)

	state := loadState(t, store)
	require.Len(t, state.Issues, 3)
	for _, issue := range state.Issues {
		assert.Equal(t, types.StatusResolved, issue.Status, "issue %s", issue.ID)
		assert.Equal(t, "fixed it", issue.ResolutionNotes)
		assert.Equal(t, "abc1234", issue.ResolvedBy)
	}

	// The critical issue lives in a resolved singleton cluster and was
	// never part of the clustering run.
	criticalID := report.FastTracked[0]
	critical := state.Issues[criticalID]
	require.NotEmpty(t, critical.ClusterID)
	singleton := state.Clusters[critical.ClusterID]
	require.NotNil(t, singleton)
	assert.Equal(t, []string{criticalID}, singleton.IssueIDs)
	assert.Equal(t, types.ClusterResolved, singleton.Status)
	assert.GreaterOrEqual(t, singleton.AggregatePriority, score.MaxPriority)
	assert.NotContains(t, report.Clustered, criticalID)

	// Cluster aggregate invariant holds for every cluster.
	for _, cluster := range state.Clusters {
		maxMember := 0.0
		for _, issue := range state.MemberIssues(cluster) {
			if issue.PriorityScore != nil && *issue.PriorityScore > maxMember {
				maxMember = *issue.PriorityScore
			}
		}
		assert.GreaterOrEqual(t, cluster.AggregatePriority, maxMember, "cluster %s", cluster.ID)
	}

	// One dated section, three entries, published files all removed.
	content, err := os.ReadFile(store.ChangelogPath())
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(content), "\n## "), "expected a single day section")
	assert.Equal(t, 3, strings.Count(string(content), "- **"))

	entries, err := os.ReadDir(store.Paths().IssuesDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "issue_"), "published file %s should be removed", e.Name())
	}
}

// rejectPriorities declines the prioritization gate but would approve any
// plan.
type rejectPriorities struct{}

func (rejectPriorities) ApprovePriorities([]*types.Issue, []*types.IssueCluster) (bool, error) {
	return false, nil
}
func (rejectPriorities) ApprovePlan(*types.IssueCluster, string) (bool, error) {
	return true, nil
}

func TestPrioritizationGateRejectionCommitsNothing(t *testing.T) {
	store := newTestStore(t)
	seedIssue(t, store, "one", types.StatusTriaged, types.SeverityHigh, types.ComplexitySmall)
	seedIssue(t, store, "two", types.StatusTriaged, types.SeverityLow, types.ComplexityLarge)

	invoker := &fakeInvoker{handlers: map[string]func(agent.Task) *agent.Result{
		prompts.Prioritization: echoPriorityHandler(t),
	}}
	o := newOrchestrator(t, store, invoker, rejectPriorities{})

	result, err := o.RunPrioritization(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Rejected)
	assert.Empty(t, result.Prioritized)

	state := loadState(t, store)
	assert.Empty(t, state.IssuesByStatus(types.StatusPrioritized))
	assert.Len(t, state.IssuesByStatus(types.StatusTriaged), 2)
	assert.Nil(t, state.LastPrioritizeRun)
	for _, issue := range state.Issues {
		assert.Nil(t, issue.PriorityScore)
	}
}

func TestFastTrackFailureIsRecordedNotFatal(t *testing.T) {
	store := newTestStore(t)
	issue := seedIssue(t, store, "db corruption", types.StatusTriaged, types.SeverityCritical, types.ComplexityMedium)

	invoker := &fakeInvoker{handlers: map[string]func(agent.Task) *agent.Result{
		prompts.Resolution: func(agent.Task) *agent.Result {
			return &agent.Result{Success: false, Err: fmt.Errorf("agent unavailable")}
		},
	}}
	o := newOrchestrator(t, store, invoker, Auto{})

	result, err := o.FastTrack(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Resolved)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, issue.ID, result.Failures[0].IssueID)
	assert.Error(t, result.Failures[0].Err)

	// The issue is no longer triaged: it waits in prioritized with its
	// approved singleton cluster for a retry.
	state := loadState(t, store)
	got := state.Issues[issue.ID]
	assert.Equal(t, types.StatusPrioritized, got.Status)
	cluster := state.Clusters[got.ClusterID]
	require.NotNil(t, cluster)
	assert.Equal(t, types.ClusterApproved, cluster.Status)
	assert.GreaterOrEqual(t, cluster.AggregatePriority, score.MaxPriority)
}

func TestTriageToleratesMalformedPatches(t *testing.T) {
	store := newTestStore(t)
	issue := seedIssue(t, store, "raw title", types.StatusDraft, "", "")

	invoker := &fakeInvoker{handlers: map[string]func(agent.Task) *agent.Result{
		prompts.Triage: func(task agent.Task) *agent.Result {
			return structured(t, map[string]any{"issues": []map[string]any{
				{"id": "nonexistent", "title": "ghost"},
				{"id": issue.ID, "title": "Clean title", "severity": "apocalyptic", "fix_complexity": "small"},
			}})
		},
	}}
	o := newOrchestrator(t, store, invoker, Auto{})

	result, err := o.RunTriage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{issue.ID}, result.Triaged)

	state := loadState(t, store)
	got := state.Issues[issue.ID]
	assert.Equal(t, types.StatusTriaged, got.Status)
	assert.Equal(t, "Clean title", got.Title)
	assert.Equal(t, "raw title", got.Context["raw_title"])
	assert.Empty(t, got.Severity, "invalid severity must be dropped")
	assert.Equal(t, types.ComplexitySmall, got.FixComplexity)
}

func TestTriageFailsWithoutStructuredOutput(t *testing.T) {
	store := newTestStore(t)
	issue := seedIssue(t, store, "raw title", types.StatusDraft, "", "")

	invoker := &fakeInvoker{handlers: map[string]func(agent.Task) *agent.Result{
		prompts.Triage: func(agent.Task) *agent.Result {
			return &agent.Result{Success: true, Output: "I had some thoughts but no JSON."}
		},
	}}
	o := newOrchestrator(t, store, invoker, Auto{})

	_, err := o.RunTriage(context.Background())
	require.Error(t, err)

	// Nothing moved.
	state := loadState(t, store)
	assert.Equal(t, types.StatusDraft, state.Issues[issue.ID].Status)
}

func TestResolutionUnknownClusterIsNamedFailure(t *testing.T) {
	store := newTestStore(t)
	o := newOrchestrator(t, store, &fakeInvoker{}, Auto{})

	_, err := o.RunResolution(context.Background(), "cluster-missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, statestore.ErrNotFound)
}

// seedApprovedCluster creates an approved cluster holding one prioritized
// issue, as the fast-track or an approved prioritization run would.
func seedApprovedCluster(t *testing.T, store *statestore.Store) (clusterID, issueID string) {
	t.Helper()
	issue := types.NewIssue("flaky retry loop", "retries forever", types.CategoryBug)
	issue.Status = types.StatusPrioritized
	issue.Severity = types.SeverityHigh
	issue.FixComplexity = types.ComplexitySmall
	p := 18.0
	issue.PriorityScore = &p

	cluster := types.NewCluster("retry handling")
	cluster.Status = types.ClusterApproved
	cluster.AddIssue(issue.ID)
	cluster.AggregatePriority = p
	issue.ClusterID = cluster.ID

	require.NoError(t, store.Mutate(func(state *types.IssueState) error {
		state.Issues[issue.ID] = issue
		state.Clusters[cluster.ID] = cluster
		return nil
	}))
	return cluster.ID, issue.ID
}

// rejectPlans approves rankings but declines every fix plan.
type rejectPlans struct{}

func (rejectPlans) ApprovePriorities([]*types.Issue, []*types.IssueCluster) (bool, error) {
	return true, nil
}
func (rejectPlans) ApprovePlan(*types.IssueCluster, string) (bool, error) {
	return false, nil
}

func TestResolutionPlanRejectedLeavesRetryableState(t *testing.T) {
	store := newTestStore(t)
	clusterID, issueID := seedApprovedCluster(t, store)

	invoker := &fakeInvoker{handlers: map[string]func(agent.Task) *agent.Result{
		prompts.Resolution: func(agent.Task) *agent.Result {
			return structured(t, map[string]any{
				"action": "needs_approval",
				"plan":   "rewrite the retry loop with backoff",
			})
		},
	}}
	o := newOrchestrator(t, store, invoker, rejectPlans{})

	result, err := o.RunResolution(context.Background(), clusterID)
	require.NoError(t, err)
	assert.True(t, result.PlanRejected)
	assert.Empty(t, result.ResolvedIssues)

	state := loadState(t, store)
	assert.Equal(t, types.ClusterApproved, state.Clusters[clusterID].Status)
	assert.Equal(t, types.StatusPrioritized, state.Issues[issueID].Status)
}

func TestResolutionPlanApprovedReinvokes(t *testing.T) {
	store := newTestStore(t)
	clusterID, issueID := seedApprovedCluster(t, store)

	calls := 0
	invoker := &fakeInvoker{handlers: map[string]func(agent.Task) *agent.Result{
		prompts.Resolution: func(task agent.Task) *agent.Result {
			calls++
			if calls == 1 {
				return structured(t, map[string]any{
					"action": "needs_approval",
					"plan":   "rewrite the retry loop with backoff",
				})
			}
			// The second invocation must carry the proceed directive.
			assert.Contains(t, task.Description, "approved the plan")
			return structured(t, map[string]any{
				"action":           "implemented",
				"resolution_notes": "capped retries at 5 with jitter",
			})
		},
	}}
	o := newOrchestrator(t, store, invoker, Auto{})

	result, err := o.RunResolution(context.Background(), clusterID)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.False(t, result.PlanRejected)
	assert.Equal(t, []string{issueID}, result.ResolvedIssues)

	state := loadState(t, store)
	assert.Equal(t, types.ClusterResolved, state.Clusters[clusterID].Status)
	got := state.Issues[issueID]
	assert.Equal(t, types.StatusResolved, got.Status)
	assert.Equal(t, "capped retries at 5 with jitter", got.ResolutionNotes)
}

func TestResolutionRequiresApprovedCluster(t *testing.T) {
	store := newTestStore(t)
	cluster := types.NewCluster("pending work")
	require.NoError(t, store.Mutate(func(state *types.IssueState) error {
		state.Clusters[cluster.ID] = cluster
		return nil
	}))

	o := newOrchestrator(t, store, &fakeInvoker{}, Auto{})
	_, err := o.RunResolution(context.Background(), cluster.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, statestore.ErrNotFound)
	assert.Contains(t, err.Error(), "not approved")
}

func TestManualOperations(t *testing.T) {
	store := newTestStore(t)
	issue := seedIssue(t, store, "later", types.StatusTriaged, types.SeverityLow, types.ComplexityLarge)
	cluster := types.NewCluster("backlog")
	require.NoError(t, store.Mutate(func(state *types.IssueState) error {
		state.Clusters[cluster.ID] = cluster
		return nil
	}))

	o := newOrchestrator(t, store, &fakeInvoker{}, Auto{})

	require.NoError(t, o.ApproveCluster(cluster.ID))
	assert.Equal(t, types.ClusterApproved, loadState(t, store).Clusters[cluster.ID].Status)

	require.NoError(t, o.DeferIssue(issue.ID))
	assert.Equal(t, types.StatusDeferred, loadState(t, store).Issues[issue.ID].Status)

	// Deferred issues cannot be marked wont_fix directly.
	require.Error(t, o.WontFixIssue(issue.ID))

	err := o.DeferIssue("no-such-issue")
	require.Error(t, err)
	assert.ErrorIs(t, err, statestore.ErrNotFound)
}

func TestListClustersSortedByPriority(t *testing.T) {
	store := newTestStore(t)
	low := types.NewCluster("low")
	low.AggregatePriority = 2
	high := types.NewCluster("high")
	high.AggregatePriority = 20
	require.NoError(t, store.Mutate(func(state *types.IssueState) error {
		state.Clusters[low.ID] = low
		state.Clusters[high.ID] = high
		return nil
	}))

	o := newOrchestrator(t, store, &fakeInvoker{}, Auto{})
	clusters, err := o.ListClusters()
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.Equal(t, "high", clusters[0].Theme)
	assert.Equal(t, "low", clusters[1].Theme)
}

func TestProcessHaltsOnTransportFailure(t *testing.T) {
	store := newTestStore(t)
	seedIssue(t, store, "raw", types.StatusDraft, "", "")

	invoker := &fakeInvoker{handlers: map[string]func(agent.Task) *agent.Result{
		prompts.Triage: func(agent.Task) *agent.Result {
			return &agent.Result{Success: false, Err: errors.New("binary not found")}
		},
	}}
	o := newOrchestrator(t, store, invoker, Auto{})

	_, err := o.Process(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "triage stage")
	assert.Equal(t, []string{prompts.Triage}, invoker.calls)
}

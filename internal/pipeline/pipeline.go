// Package pipeline orchestrates the issue lifecycle: triage, the critical
// fast-track, clustering, prioritization, and resolution.
//
// The orchestrator is single-threaded and synchronous: stages execute
// strictly in sequence, and each stage performs one full load → mutate →
// save cycle against the state store before the next begins. Agent calls
// block with a timeout; a timeout is a stage failure that halts the run,
// never a crash. Human gates block without a timeout, and a rejection ends
// the run as a non-success outcome with all previously committed state
// preserved.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/chatretro/issueflow/internal/agent"
	"github.com/chatretro/issueflow/internal/debug"
	"github.com/chatretro/issueflow/internal/prompts"
	"github.com/chatretro/issueflow/internal/statestore"
	"github.com/chatretro/issueflow/internal/telemetry"
	"github.com/chatretro/issueflow/internal/types"
)

// Orchestrator drives the pipeline against one state store.
type Orchestrator struct {
	store    *statestore.Store
	invoker  agent.Invoker
	prompts  *prompts.Library
	approver Approver
	timeout  time.Duration
	out      io.Writer
	now      func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout bounds each agent invocation.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithOutput directs progress messages. Defaults to discarding them.
func WithOutput(w io.Writer) Option {
	return func(o *Orchestrator) { o.out = w }
}

// WithClock overrides the time source. Tests use this to pin scoring and
// changelog dates.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New builds an Orchestrator.
func New(store *statestore.Store, invoker agent.Invoker, lib *prompts.Library, approver Approver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		invoker:  invoker,
		prompts:  lib,
		approver: approver,
		timeout:  agent.DefaultTimeout,
		out:      io.Discard,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Report summarizes one full pipeline run.
type Report struct {
	Imported    []string
	Triaged     []string
	FastTracked []string
	// FastTrackFailures records critical issues whose immediate resolution
	// failed. They stay prioritized for a later retry.
	FastTrackFailures []FastTrackFailure
	NewClusters       []string
	Clustered         []string
	Prioritized       []string
	// GateRejected is set when the prioritization gate declined the run.
	// Nothing from that stage was committed.
	GateRejected bool
	// ResolvedClusters and PlanRejected partition the approved clusters the
	// resolution stage visited.
	ResolvedClusters []string
	PlanRejected     []string
}

// FastTrackFailure is one critical issue the fast-track could not resolve.
type FastTrackFailure struct {
	IssueID   string
	ClusterID string
	Err       error
}

// Process runs the full pipeline: triage, fast-track interrupt,
// clustering, prioritization (with its human gate), then resolution of
// every approved cluster. A transport failure halts the run at that stage;
// state committed by earlier stages is preserved.
func (o *Orchestrator) Process(ctx context.Context) (*Report, error) {
	report := &Report{}

	tr, err := o.RunTriage(ctx)
	if err != nil {
		return report, fmt.Errorf("triage stage: %w", err)
	}
	report.Imported = tr.Imported
	report.Triaged = tr.Triaged

	ft, err := o.FastTrack(ctx)
	if err != nil {
		return report, fmt.Errorf("fast-track: %w", err)
	}
	report.FastTracked = ft.Resolved
	report.FastTrackFailures = ft.Failures

	cl, err := o.RunClustering(ctx)
	if err != nil {
		return report, fmt.Errorf("clustering stage: %w", err)
	}
	report.NewClusters = cl.Clusters
	report.Clustered = cl.Clustered

	pr, err := o.RunPrioritization(ctx)
	if err != nil {
		return report, fmt.Errorf("prioritization stage: %w", err)
	}
	report.Prioritized = pr.Prioritized
	if pr.Rejected {
		report.GateRejected = true
		fmt.Fprintln(o.out, "Prioritization rejected; run halted.")
		return report, nil
	}

	state, err := o.store.Load()
	if err != nil {
		return report, err
	}
	for _, cluster := range state.ClustersByStatus(types.ClusterApproved) {
		res, err := o.RunResolution(ctx, cluster.ID)
		if err != nil {
			return report, fmt.Errorf("resolution stage: %w", err)
		}
		if res.PlanRejected {
			report.PlanRejected = append(report.PlanRejected, cluster.ID)
			continue
		}
		report.ResolvedClusters = append(report.ResolvedClusters, cluster.ID)
	}
	return report, nil
}

// invoke runs one agent task under a stage span.
func (o *Orchestrator) invoke(ctx context.Context, agentName, taskContext string, approved bool, expected ...string) (*agent.Result, error) {
	def, err := o.prompts.Get(agentName)
	if err != nil {
		return nil, err
	}

	tracer := telemetry.Tracer("github.com/chatretro/issueflow/pipeline")
	ctx, span := tracer.Start(ctx, "pipeline.invoke")
	defer span.End()
	span.SetAttributes(attribute.String("issueflow.agent", agentName))

	res := o.invoker.Run(ctx, agent.Task{
		Agent:          agentName,
		Description:    def.TaskPrompt(taskContext, approved),
		AllowedTools:   def.Tools,
		Timeout:        o.timeout,
		ExpectedFields: expected,
	})
	if !res.Success {
		return nil, res.Err
	}
	debug.Logf("agent %s replied with %d bytes (structured: %v)", agentName, len(res.Output), res.Parsed != nil)
	return res, nil
}

// taskContext serializes a payload for inclusion in a prompt.
func taskContext(payload any) (string, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serialize task context: %w", err)
	}
	return string(data), nil
}

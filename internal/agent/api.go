package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/chatretro/issueflow/internal/telemetry"
)

// DefaultModel is used when the config does not name one.
const DefaultModel = "claude-sonnet-4-5"

const apiMaxTokens = 4096

// errAPIKeyRequired is returned when no API key is available.
var errAPIKeyRequired = errors.New("API key required")

// APIRunner invokes the collaborator directly over the Anthropic API.
// Unlike CLIRunner it cannot execute tools; the allow-list is advisory
// and the prompt must carry all needed context inline.
type APIRunner struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAPIRunner creates an API-backed runner. ANTHROPIC_API_KEY takes
// precedence over the explicit key.
func NewAPIRunner(apiKey, model string) (*APIRunner, error) {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or configure agent.api-key", errAPIKeyRequired)
	}
	if model == "" {
		model = DefaultModel
	}

	apiMetricsOnce.Do(initAPIMetrics)

	return &APIRunner{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}, nil
}

// Run sends the task as a single user message, retrying transport-level
// failures (rate limits, 5xx, network timeouts) with exponential backoff.
func (r *APIRunner) Run(ctx context.Context, task Task) *Result {
	ctx, cancel := context.WithTimeout(ctx, taskTimeout(task))
	defer cancel()

	tracer := telemetry.Tracer("github.com/chatretro/issueflow/agent")
	ctx, span := tracer.Start(ctx, "anthropic.messages.new")
	defer span.End()
	span.SetAttributes(
		attribute.String("issueflow.agent", task.Agent),
		attribute.String("issueflow.agent.model", string(r.model)),
	)

	params := anthropic.MessageNewParams{
		Model:     r.model,
		MaxTokens: apiMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(task.Description)),
		},
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(time.Second),
		backoff.WithMaxElapsedTime(taskTimeout(task)),
	), ctx)

	var output string
	op := func() error {
		t0 := time.Now()
		message, err := r.client.Messages.New(ctx, params)
		ms := float64(time.Since(t0).Milliseconds())

		if err != nil {
			if !isRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}

		modelAttr := attribute.String("issueflow.agent.model", string(r.model))
		if apiMetrics.inputTokens != nil {
			apiMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, metric.WithAttributes(modelAttr))
			apiMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, metric.WithAttributes(modelAttr))
			apiMetrics.duration.Record(ctx, ms, metric.WithAttributes(modelAttr))
		}
		span.SetAttributes(
			attribute.Int64("issueflow.agent.input_tokens", message.Usage.InputTokens),
			attribute.Int64("issueflow.agent.output_tokens", message.Usage.OutputTokens),
		)

		if len(message.Content) == 0 {
			return backoff.Permanent(fmt.Errorf("unexpected response format: no content blocks"))
		}
		block := message.Content[0]
		if block.Type != "text" {
			return backoff.Permanent(fmt.Errorf("unexpected response format: not a text block (type=%s)", block.Type))
		}
		output = block.Text
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() == context.DeadlineExceeded {
			return failure(fmt.Errorf("agent %s timed out after %s", task.Agent, taskTimeout(task)))
		}
		return failure(fmt.Errorf("agent %s API call failed: %w", task.Agent, err))
	}

	return finish(task, output)
}

// isRetryable classifies transport errors. Rate limits and server errors
// retry; everything else (auth, bad request, cancellation) is permanent.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

// apiMetrics holds lazily-initialized OTel instruments for API calls.
var apiMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
}

var apiMetricsOnce sync.Once

func initAPIMetrics() {
	m := telemetry.Meter("github.com/chatretro/issueflow/agent")
	apiMetrics.inputTokens, _ = m.Int64Counter("issueflow.agent.input_tokens",
		metric.WithDescription("Anthropic API input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	apiMetrics.outputTokens, _ = m.Int64Counter("issueflow.agent.output_tokens",
		metric.WithDescription("Anthropic API output tokens generated"),
		metric.WithUnit("{token}"),
	)
	apiMetrics.duration, _ = m.Float64Histogram("issueflow.agent.request.duration",
		metric.WithDescription("Anthropic API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

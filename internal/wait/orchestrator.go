// Package wait creates a remote agent run and polls it until it reaches a
// terminal state, the session times out, or a caller cancels it.
//
// A session moves CREATING -> POLLING -> one of FINISHED, ERROR, EXPIRED,
// TIMEOUT or CANCELLED. It suspends only in the jittered delay between polls.
// Cancellation and timeout are checked, in that order, before each delay and
// again on waking, so a cancel that lands while the session is idle is seen
// before the next remote call.
package wait

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"agentmcp/internal/agentapi"
	"agentmcp/internal/cancel"
	"agentmcp/internal/clock"
	"agentmcp/internal/log"
	"agentmcp/internal/retry"
	"agentmcp/internal/tracing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DefaultPollRetry retries up to three consecutive transient poll failures.
var DefaultPollRetry = retry.Config{
	MaxAttempts: 3,
	ShouldRetry: agentapi.IsTransient,
}

// JobClient is the part of the remote API a session drives.
type JobClient interface {
	CreateAgent(ctx context.Context, req agentapi.CreateAgentRequest) (agentapi.Agent, error)
	GetAgent(ctx context.Context, id string) (agentapi.Agent, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithRand sets the jitter source. It must return values in [0, 1).
func WithRand(r func() float64) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.rand = r
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithPollRetry sets how poll failures are retried.
func WithPollRetry(cfg retry.Config) Option {
	return func(o *Orchestrator) {
		o.pollRetry = cfg
	}
}

// Orchestrator runs wait sessions. One Orchestrator serves any number of
// concurrent sessions; they share nothing but the cancellation registry.
type Orchestrator struct {
	registry  *cancel.Registry
	clock     clock.Clock
	rand      func() float64
	tracer    trace.Tracer
	pollRetry retry.Config
}

// New returns an Orchestrator that signals cancellation through registry.
func New(registry *cancel.Registry, opts ...Option) *Orchestrator {
	if registry == nil {
		registry = cancel.NewRegistry()
	}
	o := &Orchestrator{
		registry:  registry,
		clock:     clock.Real(),
		rand:      rand.Float64,
		tracer:    noop.NewTracerProvider().Tracer("wait"),
		pollRetry: DefaultPollRetry,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Registry returns the registry cancel requests should signal.
func (o *Orchestrator) Registry() *cancel.Registry { return o.registry }

// CreateAndWait creates an agent run through client and polls it until a
// terminal outcome.
//
// Errors from creation are returned as is and never retried. Poll errors are
// retried under the poll retry policy; once it gives up the error is
// returned together with what the session observed so far. Timeout and
// cancellation are outcomes, not errors. If ctx ends, ctx.Err() is returned.
func (o *Orchestrator) CreateAndWait(ctx context.Context, client JobClient, p Params) (res Result, err error) {
	res.SessionID = uuid.NewString()
	if err = validate(p); err != nil {
		return res, err
	}

	start := o.clock.Now()
	defer func() { res.Elapsed = o.clock.Now().Sub(start) }()

	token := strings.TrimSpace(p.CancelToken)
	release, err := o.registry.Register(token)
	if err != nil {
		return res, paramError("cancelToken", "cancelToken is already in use by a running wait")
	}
	defer release()

	ctx, span := o.tracer.Start(ctx, tracing.SpanCreateAndWait, trace.WithAttributes(
		attribute.String(tracing.AttrSessionID, res.SessionID),
		attribute.String(tracing.AttrRepository, p.Create.Source.Repository),
		attribute.Int64(tracing.AttrPollInterval, p.PollInterval.Milliseconds()),
		attribute.Int64(tracing.AttrTimeout, p.Timeout.Milliseconds()),
		attribute.Bool(tracing.AttrCancelToken, token != ""),
	))
	defer span.End()

	created, err := client.CreateAgent(ctx, p.Create)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return res, err
	}
	res.AgentID = created.ID
	span.SetAttributes(attribute.String(tracing.AttrAgentID, created.ID))
	log.Info(log.CatWait, "agent created", "session_id", res.SessionID, "agent_id", created.ID, "status", created.Status)

	s := &session{
		o:      o,
		client: client,
		params: p,
		token:  token,
		start:  start,
		policy: retry.NewPolicy(o.pollRetry),
		res:    &res,
	}
	outcome, err := s.run(ctx)

	span.SetAttributes(attribute.Int(tracing.AttrPolls, res.Polls))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn(log.CatWait, "session aborted", "session_id", res.SessionID, "agent_id", res.AgentID, "polls", res.Polls, "error", err.Error())
		return res, err
	}

	res.Outcome = outcome
	span.SetAttributes(attribute.String(tracing.AttrOutcome, string(outcome)))
	log.Info(log.CatWait, "session finished", "session_id", res.SessionID, "agent_id", res.AgentID, "outcome", outcome, "polls", res.Polls)
	return res, nil
}

type session struct {
	o      *Orchestrator
	client JobClient
	params Params
	token  string
	start  time.Time
	policy *retry.Policy
	res    *Result
}

func (s *session) run(ctx context.Context) (Outcome, error) {
	for {
		if outcome, done := s.checkpoint(); done {
			return outcome, nil
		}

		delay := jitteredDelay(s.params.PollInterval, s.params.JitterRatio, s.o.rand(), s.remaining())
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-s.o.clock.After(delay):
		}

		if outcome, done := s.checkpoint(); done {
			return outcome, nil
		}

		agent, err := s.client.GetAgent(ctx, s.res.AgentID)
		s.res.Polls++

		// A cancel that arrived while the poll was in flight wins over its
		// result.
		if s.cancelled() {
			return OutcomeCancelled, nil
		}

		if err != nil {
			if s.policy.Failure(ctx, err) {
				log.Warn(log.CatWait, "poll failed, retrying",
					"session_id", s.res.SessionID,
					"agent_id", s.res.AgentID,
					"failures", s.policy.Failures(),
					"error", err.Error())
				continue
			}
			return "", fmt.Errorf("poll agent %s: %w", s.res.AgentID, err)
		}
		s.policy.Success()

		snapshot := agent
		s.res.Snapshot = &snapshot
		s.res.Statuses = append(s.res.Statuses, agent.Status)
		log.Debug(log.CatWait, "poll", "session_id", s.res.SessionID, "agent_id", s.res.AgentID, "status", agent.Status)

		if outcome, ok := outcomeFor(agent.Status); ok {
			return outcome, nil
		}
	}
}

// checkpoint evaluates cancellation, then timeout.
func (s *session) checkpoint() (Outcome, bool) {
	if s.cancelled() {
		return OutcomeCancelled, true
	}
	if s.remaining() <= 0 {
		return OutcomeTimeout, true
	}
	return "", false
}

func (s *session) cancelled() bool {
	return s.token != "" && s.o.registry.IsCancelled(s.token)
}

func (s *session) remaining() time.Duration {
	return s.params.Timeout - s.o.clock.Now().Sub(s.start)
}

func validate(p Params) error {
	switch {
	case p.PollInterval <= 0:
		return paramError("pollIntervalMs", "pollIntervalMs must be greater than 0")
	case p.Timeout <= 0:
		return paramError("timeoutMs", "timeoutMs must be greater than 0")
	case p.JitterRatio < 0 || p.JitterRatio >= 1:
		return paramError("jitterRatio", "jitterRatio must be in [0, 1)")
	}
	return nil
}

func paramError(field, msg string) error {
	return goerrors.NewValidation(msg, goerrors.FieldError{
		Field:   field,
		Message: msg,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode("BAD_INPUT")
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"agentmcp/internal/agentapi"
	"agentmcp/internal/log"
	"agentmcp/internal/mcp"
	"agentmcp/internal/wait"
)

var (
	createAndWaitTool = mcp.Tool{
		Name: "create_and_wait",
		Description: "Launch a background agent and block until it finishes, errors, expires, " +
			"times out, or is cancelled through cancel_wait_token. Returns finalStatus " +
			"(FINISHED, ERROR, EXPIRED, TIMEOUT or CANCELLED) and the last agent snapshot.",
		InputSchema: createSchema(map[string]*mcp.PropertySchema{
			"pollIntervalMs": integer("Milliseconds between status polls. Must be positive."),
			"timeoutMs":      integer("Total time budget in milliseconds."),
			"jitterRatio":    number("Fraction of the poll interval randomly added or subtracted per poll.", 0, 0.99),
			"cancelToken":    str("Caller-chosen identifier that cancel_wait_token can signal."),
		}),
		OutputSchema: &mcp.OutputSchema{
			Type: "object",
			Properties: map[string]*mcp.PropertySchema{
				"finalStatus": {Type: "string", Enum: []string{
					string(wait.OutcomeFinished), string(wait.OutcomeError), string(wait.OutcomeExpired),
					string(wait.OutcomeTimeout), string(wait.OutcomeCancelled),
				}},
				"agentId":   {Type: "string"},
				"sessionId": {Type: "string"},
				"agent":     {Type: "object", Description: "Last agent snapshot returned by a poll."},
				"statuses":  {Type: "array", Items: &mcp.PropertySchema{Type: "string"}},
				"polls":     {Type: "integer"},
				"elapsedMs": {Type: "integer"},
				"error":     {Type: "string"},
			},
			Required: []string{"agentId", "sessionId", "statuses", "polls", "elapsedMs"},
		},
	}
	cancelWaitTokenTool = mcp.Tool{
		Name:        "cancel_wait_token",
		Description: "Cancel a running create_and_wait call by its cancelToken. The wait stops at its next check; the remote agent keeps running.",
		InputSchema: object([]string{"cancelToken"}, map[string]*mcp.PropertySchema{
			"cancelToken": str("The cancelToken passed to create_and_wait."),
		}),
	}
)

type waitArgs struct {
	createArgs
	PollIntervalMs *int64   `json:"pollIntervalMs"`
	TimeoutMs      *int64   `json:"timeoutMs"`
	JitterRatio    *float64 `json:"jitterRatio"`
	CancelToken    string   `json:"cancelToken"`
}

type waitOutput struct {
	FinalStatus wait.Outcome      `json:"finalStatus,omitempty"`
	AgentID     string            `json:"agentId"`
	SessionID   string            `json:"sessionId"`
	Agent       *agentapi.Agent   `json:"agent,omitempty"`
	Statuses    []agentapi.Status `json:"statuses"`
	Polls       int               `json:"polls"`
	ElapsedMs   int64             `json:"elapsedMs"`
	Error       string            `json:"error,omitempty"`
}

func (h *handlers) waitParams(args waitArgs) (wait.Params, error) {
	create, err := args.request()
	if err != nil {
		return wait.Params{}, err
	}
	p := wait.Params{
		Create:       create,
		PollInterval: h.deps.Defaults.PollInterval,
		Timeout:      h.deps.Defaults.Timeout,
		CancelToken:  strings.TrimSpace(args.CancelToken),
	}
	if args.PollIntervalMs != nil {
		if p.PollInterval, err = millis("pollIntervalMs", *args.PollIntervalMs); err != nil {
			return wait.Params{}, err
		}
		// Non-positive values are left for the orchestrator to reject.
		if floor := h.deps.Defaults.MinPollInterval; p.PollInterval > 0 && p.PollInterval < floor {
			p.PollInterval = floor
		}
	}
	if args.TimeoutMs != nil {
		if p.Timeout, err = millis("timeoutMs", *args.TimeoutMs); err != nil {
			return wait.Params{}, err
		}
	}
	if limit := h.deps.Defaults.MaxTimeout; limit > 0 && p.Timeout > limit {
		p.Timeout = limit
	}
	if args.JitterRatio != nil {
		p.JitterRatio = *args.JitterRatio
	}
	return p, nil
}

const maxMillis = math.MaxInt64 / int64(time.Millisecond)

func millis(field string, ms int64) (time.Duration, error) {
	if ms > maxMillis || ms < -maxMillis {
		return 0, invalid(field, field+" is out of range")
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func (h *handlers) createAndWait(ctx context.Context, raw json.RawMessage) (*mcp.ToolCallResult, error) {
	var args waitArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	p, err := h.waitParams(args)
	if err != nil {
		return nil, err
	}
	c, err := h.client(ctx)
	if err != nil {
		return nil, err
	}

	res, err := h.deps.Orchestrator.CreateAndWait(ctx, c, p)
	out := waitOutput{
		FinalStatus: res.Outcome,
		AgentID:     res.AgentID,
		SessionID:   res.SessionID,
		Agent:       res.Snapshot,
		Statuses:    res.Statuses,
		Polls:       res.Polls,
		ElapsedMs:   res.Elapsed.Milliseconds(),
	}
	if out.Statuses == nil {
		out.Statuses = []agentapi.Status{}
	}

	if err != nil {
		if res.AgentID == "" {
			// Nothing was created; report the failure as is.
			return nil, remoteError(err)
		}
		log.Warn(log.CatWait, "create_and_wait aborted", "agent_id", res.AgentID, "error", err.Error())
		out.Error = mcp.ErrorText(remoteError(err))
		result := jsonResult(fmt.Sprintf("Waiting on agent %s failed after %d poll(s): %s", res.AgentID, res.Polls, out.Error), out)
		result.IsError = true
		return result, nil
	}

	return jsonResult(waitSummary(res), out), nil
}

func waitSummary(res wait.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Agent %s: %s after %d poll(s) in %s", res.AgentID, res.Outcome, res.Polls, res.Elapsed.Round(time.Millisecond))
	if res.Snapshot != nil {
		if res.Snapshot.Summary != "" {
			fmt.Fprintf(&b, "\nSummary: %s", res.Snapshot.Summary)
		}
		if t := res.Snapshot.Target; t != nil && t.PRURL != "" {
			fmt.Fprintf(&b, "\nPull request: %s", t.PRURL)
		}
	}
	return b.String()
}

func (h *handlers) cancelWaitToken(_ context.Context, raw json.RawMessage) (*mcp.ToolCallResult, error) {
	var args struct {
		CancelToken string `json:"cancelToken"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	tok, err := required("cancelToken", args.CancelToken)
	if err != nil {
		return nil, err
	}

	signalled := h.deps.Orchestrator.Registry().Signal(tok)
	log.Info(log.CatWait, "cancel requested", "signalled", signalled)

	summary := "No active wait uses this cancel token; nothing to cancel"
	if signalled {
		summary = "Cancellation signalled; the wait stops at its next check"
	}
	return jsonResult(summary, map[string]any{
		"cancelToken": tok,
		"signalled":   signalled,
	}), nil
}

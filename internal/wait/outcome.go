package wait

import (
	"time"

	"agentmcp/internal/agentapi"
)

// Outcome is the terminal state of a wait session.
type Outcome string

const (
	OutcomeFinished  Outcome = "FINISHED"
	OutcomeError     Outcome = "ERROR"
	OutcomeExpired   Outcome = "EXPIRED"
	OutcomeTimeout   Outcome = "TIMEOUT"
	OutcomeCancelled Outcome = "CANCELLED"
)

// outcomeFor maps a terminal remote status onto an Outcome.
func outcomeFor(s agentapi.Status) (Outcome, bool) {
	switch s {
	case agentapi.StatusFinished:
		return OutcomeFinished, true
	case agentapi.StatusError:
		return OutcomeError, true
	case agentapi.StatusExpired:
		return OutcomeExpired, true
	default:
		return "", false
	}
}

// Params describes one create-and-wait session. Durations are fixed for the
// life of the session.
type Params struct {
	Create       agentapi.CreateAgentRequest
	PollInterval time.Duration
	Timeout      time.Duration
	// JitterRatio in [0, 1) spreads each delay uniformly over
	// PollInterval ± JitterRatio*PollInterval.
	JitterRatio float64
	// CancelToken, when set, lets a concurrent cancel request stop the
	// session at its next checkpoint.
	CancelToken string
}

// Result is what a session observed. Outcome is empty when the session ended
// with an error.
type Result struct {
	SessionID string
	AgentID   string
	Outcome   Outcome
	// Snapshot is the last agent state returned by a poll, nil if no poll
	// completed.
	Snapshot *agentapi.Agent
	Statuses []agentapi.Status
	Polls    int
	Elapsed  time.Duration
}

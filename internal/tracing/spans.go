package tracing

// Span attribute keys.
const (
	AttrSessionID    = "wait.session.id"
	AttrAgentID      = "agent.id"
	AttrRepository   = "agent.repository"
	AttrOutcome      = "wait.outcome"
	AttrPolls        = "wait.polls"
	AttrPollInterval = "wait.poll_interval_ms"
	AttrTimeout      = "wait.timeout_ms"
	AttrCancelToken  = "wait.cancel_token.present"

	AttrMCPToolName  = "mcp.tool.name"
	AttrMCPRequestID = "mcp.request.id"
)

// Span names.
const (
	SpanCreateAndWait = "wait.create_and_wait"
	SpanPoll          = "wait.poll"
	SpanToolPrefix    = "mcp.tool."
)

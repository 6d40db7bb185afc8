package agentapi

// Status is the remote lifecycle state of an agent run. Values outside the
// known set are carried through unchanged and treated as non-terminal.
type Status string

const (
	StatusCreating Status = "CREATING"
	StatusRunning  Status = "RUNNING"
	StatusFinished Status = "FINISHED"
	StatusError    Status = "ERROR"
	StatusExpired  Status = "EXPIRED"
)

// Terminal reports whether s ends a run.
func (s Status) Terminal() bool {
	switch s {
	case StatusFinished, StatusError, StatusExpired:
		return true
	default:
		return false
	}
}

type Source struct {
	Repository string `json:"repository"`
	Ref        string `json:"ref,omitempty"`
}

type Target struct {
	BranchName   string `json:"branchName,omitempty"`
	URL          string `json:"url,omitempty"`
	PRURL        string `json:"prUrl,omitempty"`
	AutoCreatePR bool   `json:"autoCreatePr,omitempty"`
}

// Agent is a snapshot of a remote agent run.
type Agent struct {
	ID        string  `json:"id"`
	Name      string  `json:"name,omitempty"`
	Status    Status  `json:"status"`
	Source    Source  `json:"source"`
	Target    *Target `json:"target,omitempty"`
	Summary   string  `json:"summary,omitempty"`
	CreatedAt string  `json:"createdAt,omitempty"`
}

type Prompt struct {
	Text string `json:"text"`
}

type CreateTarget struct {
	AutoCreatePR bool   `json:"autoCreatePr,omitempty"`
	BranchName   string `json:"branchName,omitempty"`
}

// CreateAgentRequest is the body of POST /v0/agents.
type CreateAgentRequest struct {
	Prompt Prompt        `json:"prompt"`
	Source Source        `json:"source"`
	Model  string        `json:"model,omitempty"`
	Target *CreateTarget `json:"target,omitempty"`
}

type ListAgentsResponse struct {
	Agents     []Agent `json:"agents"`
	NextCursor string  `json:"nextCursor,omitempty"`
}

type IDResponse struct {
	ID string `json:"id"`
}

type ConversationMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

type Conversation struct {
	ID       string                `json:"id"`
	Messages []ConversationMessage `json:"messages"`
}

// KeyInfo describes the API key a call was made with.
type KeyInfo struct {
	APIKeyName string `json:"apiKeyName"`
	CreatedAt  string `json:"createdAt,omitempty"`
	UserEmail  string `json:"userEmail,omitempty"`
}

type ModelList struct {
	Models []string `json:"models"`
}

type Repository struct {
	Owner      string `json:"owner"`
	Name       string `json:"name"`
	Repository string `json:"repository"`
}

type RepositoryList struct {
	Repositories []Repository `json:"repositories"`
}

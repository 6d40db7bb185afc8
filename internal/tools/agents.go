package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"agentmcp/internal/agentapi"
	"agentmcp/internal/mcp"
)

var (
	listAgentsTool = mcp.Tool{
		Name:        "list_agents",
		Description: "List background agents visible to the caller's API key, newest first.",
		InputSchema: object(nil, map[string]*mcp.PropertySchema{
			"limit":  integer("Maximum number of agents to return (1-100)."),
			"cursor": str("Pagination cursor from a previous call's nextCursor."),
		}),
	}
	getAgentTool = mcp.Tool{
		Name:        "get_agent",
		Description: "Get the current status and details of a background agent.",
		InputSchema: object([]string{"id"}, map[string]*mcp.PropertySchema{
			"id": str("Agent id."),
		}),
	}
	createAgentTool = mcp.Tool{
		Name:        "create_agent",
		Description: "Launch a background agent on a repository and return immediately.",
		InputSchema: createSchema(nil),
	}
	deleteAgentTool = mcp.Tool{
		Name:        "delete_agent",
		Description: "Permanently delete a background agent.",
		InputSchema: object([]string{"id"}, map[string]*mcp.PropertySchema{
			"id": str("Agent id."),
		}),
	}
	addFollowupTool = mcp.Tool{
		Name:        "add_followup",
		Description: "Send a follow-up instruction to a running background agent.",
		InputSchema: object([]string{"id", "prompt"}, map[string]*mcp.PropertySchema{
			"id":     str("Agent id."),
			"prompt": str("Follow-up instruction."),
		}),
	}
	getConversationTool = mcp.Tool{
		Name:        "get_agent_conversation",
		Description: "Get the message history of a background agent.",
		InputSchema: object([]string{"id"}, map[string]*mcp.PropertySchema{
			"id": str("Agent id."),
		}),
	}
	getMeTool = mcp.Tool{
		Name:        "get_me",
		Description: "Describe the API key the call is authenticated with.",
		InputSchema: object(nil, nil),
	}
	listModelsTool = mcp.Tool{
		Name:        "list_models",
		Description: "List models available for background agents.",
		InputSchema: object(nil, nil),
	}
	listRepositoriesTool = mcp.Tool{
		Name:        "list_repositories",
		Description: "List repositories the API key's account can run agents on. Results are cached for a few minutes.",
		InputSchema: object(nil, nil),
	}
)

// createSchema describes the agent creation payload, plus extra properties.
func createSchema(extra map[string]*mcp.PropertySchema) *mcp.InputSchema {
	props := map[string]*mcp.PropertySchema{
		"prompt":       str("Task instructions for the agent."),
		"repository":   str("Repository URL, e.g. https://github.com/org/repo."),
		"ref":          str("Git ref to start from. Defaults to the repository's default branch."),
		"model":        str("Model to run. Defaults to the account default."),
		"branchName":   str("Branch name for the agent's work."),
		"autoCreatePr": boolean("Open a pull request when the agent finishes."),
	}
	for k, v := range extra {
		props[k] = v
	}
	return object([]string{"prompt", "repository"}, props)
}

type createArgs struct {
	Prompt       string `json:"prompt"`
	Repository   string `json:"repository"`
	Ref          string `json:"ref"`
	Model        string `json:"model"`
	BranchName   string `json:"branchName"`
	AutoCreatePR bool   `json:"autoCreatePr"`
}

func (a createArgs) request() (agentapi.CreateAgentRequest, error) {
	prompt, err := required("prompt", a.Prompt)
	if err != nil {
		return agentapi.CreateAgentRequest{}, err
	}
	repo, err := required("repository", a.Repository)
	if err != nil {
		return agentapi.CreateAgentRequest{}, err
	}
	req := agentapi.CreateAgentRequest{
		Prompt: agentapi.Prompt{Text: prompt},
		Source: agentapi.Source{Repository: repo, Ref: a.Ref},
		Model:  a.Model,
	}
	if a.BranchName != "" || a.AutoCreatePR {
		req.Target = &agentapi.CreateTarget{
			BranchName:   a.BranchName,
			AutoCreatePR: a.AutoCreatePR,
		}
	}
	return req, nil
}

type idArgs struct {
	ID string `json:"id"`
}

func (h *handlers) listAgents(ctx context.Context, raw json.RawMessage) (*mcp.ToolCallResult, error) {
	var args struct {
		Limit  int    `json:"limit"`
		Cursor string `json:"cursor"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Limit < 0 || args.Limit > 100 {
		return nil, invalid("limit", "limit must be between 1 and 100")
	}
	c, err := h.client(ctx)
	if err != nil {
		return nil, err
	}
	out, err := c.ListAgents(ctx, args.Limit, args.Cursor)
	if err != nil {
		return nil, remoteError(err)
	}
	if out.Agents == nil {
		out.Agents = []agentapi.Agent{}
	}
	return jsonResult(fmt.Sprintf("%d agent(s)", len(out.Agents)), out), nil
}

func (h *handlers) getAgent(ctx context.Context, raw json.RawMessage) (*mcp.ToolCallResult, error) {
	id, err := h.idArg(raw)
	if err != nil {
		return nil, err
	}
	c, err := h.client(ctx)
	if err != nil {
		return nil, err
	}
	a, err := c.GetAgent(ctx, id)
	if err != nil {
		return nil, remoteError(err)
	}
	return jsonResult(fmt.Sprintf("Agent %s is %s", a.ID, a.Status), a), nil
}

func (h *handlers) createAgent(ctx context.Context, raw json.RawMessage) (*mcp.ToolCallResult, error) {
	var args createArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	req, err := args.request()
	if err != nil {
		return nil, err
	}
	c, err := h.client(ctx)
	if err != nil {
		return nil, err
	}
	a, err := c.CreateAgent(ctx, req)
	if err != nil {
		return nil, remoteError(err)
	}
	return jsonResult(fmt.Sprintf("Created agent %s (%s)", a.ID, a.Status), a), nil
}

func (h *handlers) deleteAgent(ctx context.Context, raw json.RawMessage) (*mcp.ToolCallResult, error) {
	id, err := h.idArg(raw)
	if err != nil {
		return nil, err
	}
	c, err := h.client(ctx)
	if err != nil {
		return nil, err
	}
	out, err := c.DeleteAgent(ctx, id)
	if err != nil {
		return nil, remoteError(err)
	}
	return jsonResult("Deleted agent "+out.ID, out), nil
}

func (h *handlers) addFollowup(ctx context.Context, raw json.RawMessage) (*mcp.ToolCallResult, error) {
	var args struct {
		ID     string `json:"id"`
		Prompt string `json:"prompt"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	id, err := required("id", args.ID)
	if err != nil {
		return nil, err
	}
	prompt, err := required("prompt", args.Prompt)
	if err != nil {
		return nil, err
	}
	c, err := h.client(ctx)
	if err != nil {
		return nil, err
	}
	out, err := c.AddFollowup(ctx, id, prompt)
	if err != nil {
		return nil, remoteError(err)
	}
	return jsonResult("Follow-up sent to agent "+out.ID, out), nil
}

func (h *handlers) getConversation(ctx context.Context, raw json.RawMessage) (*mcp.ToolCallResult, error) {
	id, err := h.idArg(raw)
	if err != nil {
		return nil, err
	}
	c, err := h.client(ctx)
	if err != nil {
		return nil, err
	}
	conv, err := c.GetConversation(ctx, id)
	if err != nil {
		return nil, remoteError(err)
	}
	if conv.Messages == nil {
		conv.Messages = []agentapi.ConversationMessage{}
	}
	return jsonResult(fmt.Sprintf("%d message(s)", len(conv.Messages)), conv), nil
}

func (h *handlers) getMe(ctx context.Context, _ json.RawMessage) (*mcp.ToolCallResult, error) {
	c, err := h.client(ctx)
	if err != nil {
		return nil, err
	}
	me, err := c.Me(ctx)
	if err != nil {
		return nil, remoteError(err)
	}
	return jsonResult("", me), nil
}

func (h *handlers) listModels(ctx context.Context, _ json.RawMessage) (*mcp.ToolCallResult, error) {
	c, err := h.client(ctx)
	if err != nil {
		return nil, err
	}
	models, err := h.deps.Catalog.Models(ctx, CredentialFrom(ctx), c)
	if err != nil {
		return nil, remoteError(err)
	}
	return jsonResult(fmt.Sprintf("%d model(s)", len(models.Models)), models), nil
}

func (h *handlers) listRepositories(ctx context.Context, _ json.RawMessage) (*mcp.ToolCallResult, error) {
	c, err := h.client(ctx)
	if err != nil {
		return nil, err
	}
	repos, err := h.deps.Catalog.Repositories(ctx, CredentialFrom(ctx), c)
	if err != nil {
		return nil, remoteError(err)
	}
	return jsonResult(fmt.Sprintf("%d repositories", len(repos.Repositories)), repos), nil
}

func (h *handlers) idArg(raw json.RawMessage) (string, error) {
	var args idArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	return required("id", args.ID)
}

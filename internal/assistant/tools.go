package assistant

import (
	"context"
	"encoding/json"
	"net/http"
)

// ToolResult is the outcome of an MCP tool call. Transport failures are
// reported in-band with Success=false.
type ToolResult struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ToolsClient talks to the MCP tool service.
type ToolsClient struct {
	c jsonClient
}

// NewToolsClient creates a client for the MCP service at baseURL.
func NewToolsClient(baseURL string, httpClient *http.Client) *ToolsClient {
	return &ToolsClient{c: newJSONClient("mcp", baseURL, httpClient)}
}

type toolCall struct {
	Tool    string         `json:"tool"`
	Params  map[string]any `json:"params"`
	Context toolContext    `json:"context"`
}

type toolContext struct {
	UserID string `json:"user_id"`
}

// CallTool invokes tool on behalf of userID.
func (t *ToolsClient) CallTool(ctx context.Context, userID, tool string, params map[string]any) ToolResult {
	if params == nil {
		params = map[string]any{}
	}

	var out ToolResult
	err := t.c.postJSON(ctx, "/call", toolCall{
		Tool:    tool,
		Params:  params,
		Context: toolContext{UserID: userID},
	}, &out)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}
	}
	return out
}

// ListTools returns the service's tool catalogue as-is.
func (t *ToolsClient) ListTools(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := t.c.getJSON(ctx, "/tools", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health reports whether the service answers {"status":"healthy"}.
func (t *ToolsClient) Health(ctx context.Context) error {
	return checkHealth(ctx, t.c)
}

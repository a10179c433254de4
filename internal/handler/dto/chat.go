package dto

import (
	"encoding/json"

	"github.com/taskflow/taskflow/internal/assistant"
	"github.com/taskflow/taskflow/internal/model"
)

// ChatRequest represents the request body of a chat turn.
type ChatRequest struct {
	Messages     []assistant.Message `json:"messages"`
	UseRAG       *bool               `json:"use_rag,omitempty"`
	RAGThreshold *float64            `json:"rag_threshold,omitempty"`
}

// ToGatewayRequest applies defaults and binds the request to userID.
func (r ChatRequest) ToGatewayRequest(userID string) assistant.ChatRequest {
	req := assistant.ChatRequest{
		UserID:       userID,
		Messages:     r.Messages,
		UseRAG:       true,
		RAGThreshold: assistant.DefaultRAGThreshold,
	}
	if r.UseRAG != nil {
		req.UseRAG = *r.UseRAG
	}
	if r.RAGThreshold != nil {
		req.RAGThreshold = *r.RAGThreshold
	}
	return req
}

// ChatHealthResponse is returned by the assistant health endpoint.
type ChatHealthResponse struct {
	Status  string                 `json:"status"`
	Details assistant.HealthReport `json:"details"`
}

// QueryTasksResponse lists tasks matching a free-text query.
type QueryTasksResponse struct {
	Success bool         `json:"success"`
	Query   string       `json:"query"`
	Count   int          `json:"count"`
	Tasks   []model.Task `json:"tasks"`
}

// CreateTaskViaChatResponse reports a task created from free text.
type CreateTaskViaChatResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Task    *model.Task `json:"task"`
}

// ToolCallRequest represents a request to run an MCP tool.
type ToolCallRequest struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params,omitempty"`
}

// KnowledgeRequest represents text to ingest into the caller's project.
type KnowledgeRequest struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// KnowledgeResponse wraps the retrieval engine's reply.
type KnowledgeResponse struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
}

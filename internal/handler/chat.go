package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/taskflow/taskflow/internal/assistant"
	"github.com/taskflow/taskflow/internal/auth"
	"github.com/taskflow/taskflow/internal/handler/dto"
	"github.com/taskflow/taskflow/internal/service"
)

// Assistant is the gateway used by ChatHandler.
type Assistant interface {
	Chat(ctx context.Context, req assistant.ChatRequest) (*assistant.ChatResponse, error)
	Health(ctx context.Context) assistant.HealthReport
	Tools(ctx context.Context) (json.RawMessage, error)
	CallTool(ctx context.Context, userID, tool string, params map[string]any) assistant.ToolResult
	Ingest(ctx context.Context, userID, text string, metadata map[string]any) (json.RawMessage, error)
	Stats(ctx context.Context, userID string) (json.RawMessage, error)
}

// ChatHandler handles the /api/chatbot endpoints.
type ChatHandler struct {
	assistant Assistant
	tasks     TaskService
	logger    *slog.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(a Assistant, tasks TaskService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{assistant: a, tasks: tasks, logger: logger}
}

// Chat handles POST /api/chatbot/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req dto.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.assistant.Chat(r.Context(), req.ToGatewayRequest(auth.UserIDFromContext(r.Context())))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health handles GET /api/chatbot/health. The endpoint itself is always
// healthy; collaborator state is reported in details.
func (h *ChatHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.ChatHealthResponse{
		Status:  "healthy",
		Details: h.assistant.Health(r.Context()),
	})
}

// QueryTasks handles POST /api/chatbot/query-tasks?query=.
// It searches the caller's task titles for the query text.
func (h *ChatHandler) QueryTasks(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		h.handleServiceError(w, r, &service.ValidationError{Fields: map[string]string{"query": "is required"}})
		return
	}

	tasks, err := h.tasks.ListTasks(r.Context(), auth.UserIDFromContext(r.Context()), service.ListTasksInput{
		Search: query,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.QueryTasksResponse{
		Success: true,
		Query:   query,
		Count:   len(tasks),
		Tasks:   dto.ToTaskList(tasks),
	})
}

// CreateTaskViaChat handles POST /api/chatbot/create-task-via-chat?task_description=.
func (h *ChatHandler) CreateTaskViaChat(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.CreateTaskFromText(r.Context(), auth.UserIDFromContext(r.Context()), r.URL.Query().Get("task_description"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.CreateTaskViaChatResponse{
		Success: true,
		Message: fmt.Sprintf("Task '%s' created", task.Title),
		Task:    task,
	})
}

// Tools handles GET /api/chatbot/tools.
func (h *ChatHandler) Tools(w http.ResponseWriter, r *http.Request) {
	tools, err := h.assistant.Tools(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tools)
}

// CallTool handles POST /api/chatbot/tools/call. Tool failures are reported
// in-band with success=false.
func (h *ChatHandler) CallTool(w http.ResponseWriter, r *http.Request) {
	var req dto.ToolCallRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Tool) == "" {
		h.handleServiceError(w, r, &service.ValidationError{Fields: map[string]string{"tool": "is required"}})
		return
	}

	writeJSON(w, http.StatusOK, h.assistant.CallTool(r.Context(), auth.UserIDFromContext(r.Context()), req.Tool, req.Params))
}

// Ingest handles POST /api/chatbot/knowledge.
func (h *ChatHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req dto.KnowledgeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	out, err := h.assistant.Ingest(r.Context(), auth.UserIDFromContext(r.Context()), req.Text, req.Metadata)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.KnowledgeResponse{Success: true, Result: out})
}

// Stats handles GET /api/chatbot/knowledge/stats.
func (h *ChatHandler) Stats(w http.ResponseWriter, r *http.Request) {
	out, err := h.assistant.Stats(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.KnowledgeResponse{Success: true, Result: out})
}

// handleServiceError maps assistant and task errors to HTTP responses.
func (h *ChatHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, assistant.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, dto.CodeAssistantUnavailable, "AI chatbot service is not configured")
	case errors.Is(err, assistant.ErrAssistantUnavailable):
		h.logger.Warn("assistant unavailable",
			"error", err,
			"request_id", requestID(r),
		)
		writeError(w, http.StatusServiceUnavailable, dto.CodeAssistantUnavailable, "Assistant is temporarily unavailable")
	default:
		writeCommonError(w, r, h.logger, err)
	}
}

package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taskflow/taskflow/internal/metrics"
)

// DefaultRAGThreshold is the relevance threshold used when a request omits one.
const DefaultRAGThreshold = 0.5

const systemPrompt = "You are an AI assistant for a Todo application. " +
	"You can help users manage their tasks, answer questions about features, " +
	"and provide general assistance. If you have specific knowledge context provided, " +
	"use it to answer the user's question. Otherwise, provide general assistance " +
	"related to task management and productivity."

var knowledgeKeywords = []string{
	"what is", "how do", "explain", "tell me about", "define",
	"information about", "details on", "can you help", "where can i",
	"when", "why", "how to", "guide", "tutorial", "instructions",
}

var (
	// ErrNotConfigured indicates no generation backend is configured.
	ErrNotConfigured = errors.New("assistant not configured")
	// ErrAssistantUnavailable indicates the assistant could not produce an answer.
	ErrAssistantUnavailable = errors.New("assistant unavailable")
	// ErrInvalidRequest is wrapped by every *RequestError.
	ErrInvalidRequest = errors.New("invalid assistant request")
)

// RequestError reports a problem with one field of an assistant request.
type RequestError struct {
	Field  string
	Reason string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid assistant request: %s %s", e.Field, e.Reason)
}

func (e *RequestError) Unwrap() error { return ErrInvalidRequest }

// Retriever is the knowledge engine used by the gateway.
type Retriever interface {
	Query(ctx context.Context, userID, query string, threshold float64) (*RAGResult, error)
	Ingest(ctx context.Context, userID, text string, metadata map[string]any) (json.RawMessage, error)
	Stats(ctx context.Context, userID string) (json.RawMessage, error)
	Health(ctx context.Context) error
}

// ToolService is the MCP tool service used by the gateway.
type ToolService interface {
	CallTool(ctx context.Context, userID, tool string, params map[string]any) ToolResult
	ListTools(ctx context.Context) (json.RawMessage, error)
	Health(ctx context.Context) error
}

// Completer generates a reply for a conversation.
type Completer interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// ChatRequest is one chat turn for a user.
type ChatRequest struct {
	UserID       string
	Messages     []Message
	UseRAG       bool
	RAGThreshold float64
}

// ChatResponse is the assistant's answer.
type ChatResponse struct {
	Response    string           `json:"response"`
	Sources     []map[string]any `json:"sources"`
	ContextUsed bool             `json:"context_used"`
}

// HealthReport summarises the assistant's collaborators.
type HealthReport struct {
	Configured   bool `json:"chatbot_configured"`
	RAGHealthy   bool `json:"rag_healthy"`
	ToolsHealthy bool `json:"tools_healthy"`
}

// Gateway orchestrates retrieval, generation and tool calls.
type Gateway struct {
	rag      Retriever
	tools    ToolService
	gen      Completer
	recorder metrics.Recorder
	logger   *slog.Logger
	timeout  time.Duration

	// retrievalTimeout bounds the knowledge lookup; generation gets the
	// rest of timeout.
	retrievalTimeout time.Duration
}

// GatewayConfig holds the gateway's collaborators. Generator may be nil.
type GatewayConfig struct {
	RAG       Retriever
	Tools     ToolService
	Generator Completer
	Recorder  metrics.Recorder
	Logger    *slog.Logger
	Timeout   time.Duration

	// RetrievalTimeout defaults to a third of Timeout and is capped below it.
	RetrievalTimeout time.Duration
}

// NewGateway creates a gateway.
func NewGateway(cfg GatewayConfig) *Gateway {
	if g, ok := cfg.Generator.(*Generator); ok && g == nil {
		cfg.Generator = nil
	}
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NewNoop()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetrievalTimeout <= 0 || cfg.RetrievalTimeout >= cfg.Timeout {
		cfg.RetrievalTimeout = cfg.Timeout / 3
	}
	return &Gateway{
		rag:      cfg.RAG,
		tools:    cfg.Tools,
		gen:      cfg.Generator,
		recorder: cfg.Recorder,
		logger:   cfg.Logger.With("component", "assistant"),
		timeout:  cfg.Timeout,

		retrievalTimeout: cfg.RetrievalTimeout,
	}
}

// Configured reports whether a generation backend is available.
func (g *Gateway) Configured() bool {
	return g.gen != nil
}

// NeedsKnowledge reports whether message looks like a knowledge question.
func NeedsKnowledge(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range knowledgeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Chat answers the last message of req, optionally grounded in the user's
// knowledge project.
func (g *Gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if g.gen == nil {
		return nil, ErrNotConfigured
	}
	if err := validateChat(req); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { g.recorder.ObserveChatDuration(time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	last := req.Messages[len(req.Messages)-1].Content

	var knowledge *RAGResult
	retrievalFailed := false
	if req.UseRAG && NeedsKnowledge(last) {
		rctx, rcancel := context.WithTimeout(ctx, g.retrievalTimeout)
		res, err := g.rag.Query(rctx, req.UserID, last, req.RAGThreshold)
		rcancel()
		if err != nil {
			retrievalFailed = true
			g.logger.Warn("knowledge retrieval failed, continuing without context",
				"user_id", req.UserID,
				"error", err,
			)
		} else {
			knowledge = res
		}
	}

	reply, err := g.gen.Generate(ctx, buildMessages(req.Messages, knowledge))
	if err != nil {
		if knowledge != nil && knowledge.Response != "" {
			g.logger.Warn("generation failed, answering from retrieved context",
				"user_id", req.UserID,
				"error", err,
			)
			g.recorder.IncChat(metrics.ChatDegraded)
			return &ChatResponse{
				Response:    knowledge.Response,
				Sources:     knowledge.Sources,
				ContextUsed: true,
			}, nil
		}
		g.logger.Error("generation failed",
			"user_id", req.UserID,
			"error", err,
		)
		g.recorder.IncChat(metrics.ChatUnavailable)
		return nil, fmt.Errorf("%w: %v", ErrAssistantUnavailable, err)
	}

	resp := &ChatResponse{Response: reply, Sources: []map[string]any{}}
	switch {
	case knowledge != nil:
		resp.Sources = knowledge.Sources
		resp.ContextUsed = true
		g.recorder.IncChat(metrics.ChatRAG)
	case retrievalFailed:
		g.recorder.IncChat(metrics.ChatDegraded)
	default:
		g.recorder.IncChat(metrics.ChatNoRAG)
	}
	return resp, nil
}

func validateChat(req ChatRequest) error {
	if len(req.Messages) == 0 {
		return &RequestError{Field: "messages", Reason: "must contain at least one message"}
	}
	for i, m := range req.Messages {
		switch m.Role {
		case "user", "assistant", "system":
		default:
			return &RequestError{
				Field:  fmt.Sprintf("messages[%d].role", i),
				Reason: "must be one of user, assistant, system",
			}
		}
	}
	if req.RAGThreshold < 0 || req.RAGThreshold > 1 {
		return &RequestError{Field: "rag_threshold", Reason: "must be between 0 and 1"}
	}
	return nil
}

func buildMessages(conversation []Message, knowledge *RAGResult) []Message {
	out := make([]Message, 0, len(conversation)+2)
	out = append(out, Message{Role: "system", Content: systemPrompt})
	if knowledge != nil && knowledge.Response != "" {
		out = append(out, Message{Role: "system", Content: "Knowledge context: " + knowledge.Response})
	}
	return append(out, conversation...)
}

// Health checks the knowledge engine and the tool service concurrently.
func (g *Gateway) Health(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	report := HealthReport{Configured: g.Configured()}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := g.rag.Health(ctx); err != nil {
			g.logger.Debug("rag engine unhealthy", "error", err)
			return nil
		}
		report.RAGHealthy = true
		return nil
	})
	eg.Go(func() error {
		if err := g.tools.Health(ctx); err != nil {
			g.logger.Debug("tool service unhealthy", "error", err)
			return nil
		}
		report.ToolsHealthy = true
		return nil
	})
	_ = eg.Wait()

	return report
}

// Ingest adds text to the user's knowledge project.
func (g *Gateway) Ingest(ctx context.Context, userID, text string, metadata map[string]any) (json.RawMessage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &RequestError{Field: "text", Reason: "is required"}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := g.rag.Ingest(ctx, userID, text, metadata)
	if err != nil {
		g.logger.Warn("knowledge ingest failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrAssistantUnavailable, err)
	}
	g.logger.Info("knowledge ingested", "user_id", userID, "bytes", len(text))
	return out, nil
}

// Stats returns statistics for the user's knowledge project.
func (g *Gateway) Stats(ctx context.Context, userID string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := g.rag.Stats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssistantUnavailable, err)
	}
	return out, nil
}

// Tools lists the tools offered by the tool service.
func (g *Gateway) Tools(ctx context.Context) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := g.tools.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssistantUnavailable, err)
	}
	return out, nil
}

// CallTool invokes a tool on behalf of userID.
func (g *Gateway) CallTool(ctx context.Context, userID, tool string, params map[string]any) ToolResult {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	res := g.tools.CallTool(ctx, userID, tool, params)
	if !res.Success {
		g.logger.Warn("tool call failed", "user_id", userID, "tool", tool, "error", res.Error)
	}
	return res
}

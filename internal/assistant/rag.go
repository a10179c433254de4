package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Retrieval defaults sent with every query.
const (
	ragTopK        = 5
	ragTemperature = 0.7
	ragMaxTokens   = 500
)

// ErrRetrievalFailed indicates the engine answered with success=false.
var ErrRetrievalFailed = errors.New("retrieval failed")

// RAGResult is the engine's answer to a knowledge query.
type RAGResult struct {
	Success     bool             `json:"success"`
	Response    string           `json:"response"`
	Sources     []map[string]any `json:"sources"`
	ContextInfo map[string]any   `json:"context_info"`
}

// RAGClient talks to the retrieval engine. Each user is a separate project.
type RAGClient struct {
	c jsonClient
}

// NewRAGClient creates a client for the engine at baseURL.
func NewRAGClient(baseURL string, httpClient *http.Client) *RAGClient {
	return &RAGClient{c: newJSONClient("rag engine", baseURL, httpClient)}
}

type ragQuery struct {
	ProjectID   string  `json:"project_id"`
	Query       string  `json:"query"`
	TopK        int     `json:"top_k"`
	Threshold   float64 `json:"threshold"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Query retrieves knowledge for query from the user's project.
func (r *RAGClient) Query(ctx context.Context, userID, query string, threshold float64) (*RAGResult, error) {
	in := ragQuery{
		ProjectID:   userID,
		Query:       query,
		TopK:        ragTopK,
		Threshold:   threshold,
		Temperature: ragTemperature,
		MaxTokens:   ragMaxTokens,
	}

	var out RAGResult
	if err := r.c.postJSON(ctx, "/query", in, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, ErrRetrievalFailed
	}
	if out.Sources == nil {
		out.Sources = []map[string]any{}
	}
	return &out, nil
}

type ingestRequest struct {
	ProjectID   string         `json:"project_id"`
	TextContent string         `json:"text_content"`
	Metadata    map[string]any `json:"metadata"`
}

// Ingest adds text to the user's project and returns the engine's reply as-is.
func (r *RAGClient) Ingest(ctx context.Context, userID, text string, metadata map[string]any) (json.RawMessage, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}

	var out json.RawMessage
	err := r.c.postJSON(ctx, "/ingest", ingestRequest{
		ProjectID:   userID,
		TextContent: text,
		Metadata:    metadata,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stats returns the engine's statistics for the user's project.
func (r *RAGClient) Stats(ctx context.Context, userID string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := r.c.getJSON(ctx, "/stats/"+url.PathEscape(userID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health reports whether the engine answers {"status":"healthy"}.
func (r *RAGClient) Health(ctx context.Context) error {
	return checkHealth(ctx, r.c)
}

type healthResponse struct {
	Status string `json:"status"`
}

func checkHealth(ctx context.Context, c jsonClient) error {
	var out healthResponse
	if err := c.getJSON(ctx, "/health", &out); err != nil {
		return err
	}
	if out.Status != "healthy" {
		return fmt.Errorf("%w: %s reports status %q", ErrUnavailable, c.service, out.Status)
	}
	return nil
}

package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	generationTemperature = 0.7
	generationMaxTokens   = 500
)

// ErrEmptyCompletion indicates the model returned no choices.
var ErrEmptyCompletion = errors.New("empty completion")

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content"`
}

// GeneratorConfig configures the chat-completion client.
type GeneratorConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	// MaxRPS bounds outbound completions. Zero disables the limit.
	MaxRPS float64
}

// Generator produces replies through an OpenAI-compatible API.
type Generator struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
}

// NewGenerator creates a generator. It returns nil when no API key is set.
func NewGenerator(cfg GeneratorConfig, httpClient *http.Client) *Generator {
	if cfg.APIKey == "" {
		return nil
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		config.HTTPClient = httpClient
	}

	limit := rate.Inf
	burst := 1
	if cfg.MaxRPS > 0 {
		limit = rate.Limit(cfg.MaxRPS)
		burst = max(1, int(cfg.MaxRPS))
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4
	}

	return &Generator{
		client:  openai.NewClientWithConfig(config),
		model:   model,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Generate returns the model's reply to messages.
func (g *Generator) Generate(ctx context.Context, messages []Message) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("generation rate limit: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: generationTemperature,
		MaxTokens:   generationMaxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

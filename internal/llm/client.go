package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/turnsearch/turnsearch/internal/config"
	apperrors "github.com/turnsearch/turnsearch/internal/pkg/errors"
	"github.com/turnsearch/turnsearch/internal/pkg/logger"
)

// costPerThousandTokensCents is a rough estimate used to compute the
// CostCents of each call's Usage report; it does not track a real
// provider's billing precisely.
const costPerThousandTokensCents = 0.15

// Client wraps an OpenAI-compatible chat completion API.
type Client struct {
	client *openai.Client
	model  string
	log    *logger.Logger
}

// NewClient builds a Client from LLM configuration. An empty APIKey still
// produces a usable Client whose calls will fail at request time with a
// provider auth error, classified by callers as a runtime failure.
func NewClient(cfg config.LLMConfig, log *logger.Logger) *Client {
	oaiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaiCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &Client{
		client: openai.NewClientWithConfig(oaiCfg),
		model:  model,
		log:    log,
	}
}

// chatOnce issues a single non-streaming chat completion and returns its
// first choice's content plus usage accounting.
func (c *Client) chatOnce(ctx context.Context, systemPrompt, userPrompt string) (string, Usage, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", Usage{}, apperrors.RerankerErrorNew("llm", err)
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, apperrors.RerankerErrorNew("llm", nil)
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		CostCents:        float64(resp.Usage.TotalTokens) / 1000 * costPerThousandTokensCents,
	}

	return resp.Choices[0].Message.Content, usage, nil
}

package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/radarhq/enrichd/internal/entity"
)

// OpenAIConfig holds configuration for the schema-constrained provider.
type OpenAIConfig struct {
	Endpoint    string
	Model       string
	APIKey      string
	Temperature float64
}

// OpenAIProvider extracts via an OpenAI-compatible chat completion
// with a JSON-schema constrained response format.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	temp   float64
	logger *zap.Logger
}

// NewOpenAIProvider creates the provider.
func NewOpenAIProvider(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIProvider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		temp:   cfg.Temperature,
		logger: logger.Named("openai"),
	}, nil
}

// Name identifies the provider in Source records.
func (p *OpenAIProvider) Name() string {
	return "openai:" + p.model
}

// Extract submits the content and parses the schema-constrained reply.
func (p *OpenAIProvider) Extract(ctx context.Context, content, sourceURL string) (entity.ExtractionResult, error) {
	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: float32(p.temp),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(content, sourceURL)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "extraction_result",
				Schema: json.RawMessage(resultSchema),
				Strict: true,
			},
		},
	})
	if err != nil {
		p.logger.Warn("chat completion failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return entity.ExtractionResult{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return entity.ExtractionResult{}, fmt.Errorf("openai: no choices in response")
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &raw); err != nil {
		return entity.ExtractionResult{}, fmt.Errorf("openai: unmarshal reply: %w", err)
	}
	result, err := raw.validate()
	if err != nil {
		return entity.ExtractionResult{}, fmt.Errorf("openai: %w", err)
	}

	p.logger.Debug("extraction completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

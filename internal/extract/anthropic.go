package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/radarhq/enrichd/internal/entity"
)

// AnthropicConfig holds configuration for the free-form JSON provider.
type AnthropicConfig struct {
	Model     string
	APIKey    string
	MaxTokens int
}

// AnthropicProvider extracts via the Anthropic Messages API. The model
// is asked for a raw-JSON reply matching a textual description of the
// shape; the reply is parsed leniently and validated.
type AnthropicProvider struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewAnthropicProvider creates the provider.
func NewAnthropicProvider(cfg AnthropicConfig, logger *zap.Logger) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &AnthropicProvider{
		client:    anthropic.NewClient(cfg.APIKey),
		model:     cfg.Model,
		maxTokens: maxTokens,
		logger:    logger.Named("anthropic"),
	}, nil
}

// Name identifies the provider in Source records.
func (p *AnthropicProvider) Name() string {
	return "anthropic:" + p.model
}

// Extract submits the content with a textual shape description and
// parses the raw-JSON reply.
func (p *AnthropicProvider) Extract(ctx context.Context, content, sourceURL string) (entity.ExtractionResult, error) {
	prompt := fmt.Sprintf(`%s

Reply with raw JSON only (no markdown, no prose) matching exactly this shape:
%s`, userPrompt(content, sourceURL), resultSchema)

	start := time.Now()
	resp, err := p.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(p.model),
		System:    systemPrompt,
		MaxTokens: p.maxTokens,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		p.logger.Warn("messages request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return entity.ExtractionResult{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var reply string
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			reply = *block.Text
			break
		}
	}
	if reply == "" {
		return entity.ExtractionResult{}, fmt.Errorf("anthropic: no text content in response")
	}

	jsonStr, err := extractJSON(reply)
	if err != nil {
		return entity.ExtractionResult{}, fmt.Errorf("anthropic: %w", err)
	}
	var raw rawResult
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return entity.ExtractionResult{}, fmt.Errorf("anthropic: unmarshal reply: %w", err)
	}
	result, err := raw.validate()
	if err != nil {
		return entity.ExtractionResult{}, fmt.Errorf("anthropic: %w", err)
	}

	p.logger.Debug("extraction completed", zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

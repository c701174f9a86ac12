// Package embed generates fixed-dimension vectors for enriched
// entities via an OpenAI-compatible embeddings endpoint.
package embed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/radarhq/enrichd/internal/ratelimit"
)

const defaultModel = "text-embedding-3-small"

// Config holds configuration for the embedding client. Dim, when set,
// is requested from the provider and enforced on the response so the
// vector always fits the store's column.
type Config struct {
	Endpoint string
	Model    string
	APIKey   string
	Dim      int
}

// Client implements entity.Embedder against the OpenAI embeddings API.
type Client struct {
	client  *openai.Client
	model   string
	dim     int
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// New creates an embedding client.
func New(cfg Config, limiter *ratelimit.Limiter, logger *zap.Logger) *Client {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	}
	return &Client{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		dim:     cfg.Dim,
		limiter: limiter,
		logger:  logger.Named("embed"),
	}
}

// Embed generates an embedding vector for the input text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embed: empty input")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, "embedding"); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(c.model),
		Input:      []string{text},
		Dimensions: c.dim,
	})
	if err != nil {
		c.logger.Warn("embedding request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}
	if c.dim > 0 && len(resp.Data[0].Embedding) != c.dim {
		return nil, fmt.Errorf("embedding dimension mismatch: want %d, got %d",
			c.dim, len(resp.Data[0].Embedding))
	}

	c.logger.Debug("embedding generated",
		zap.Int("dimension", len(resp.Data[0].Embedding)),
		zap.Duration("elapsed", time.Since(start)))
	return resp.Data[0].Embedding, nil
}

// BuildText composes the canonical embedding input from an entity's
// summary and keywords.
func BuildText(summary string, keywords []string) string {
	parts := make([]string, 0, 1+len(keywords))
	if s := strings.TrimSpace(summary); s != "" {
		parts = append(parts, s)
	}
	for _, kw := range keywords {
		if k := strings.TrimSpace(kw); k != "" {
			parts = append(parts, k)
		}
	}
	return strings.Join(parts, ", ")
}

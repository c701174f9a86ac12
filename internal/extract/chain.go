package extract

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/radarhq/enrichd/internal/entity"
	"github.com/radarhq/enrichd/internal/metrics"
	"github.com/radarhq/enrichd/internal/ratelimit"
)

// Provider is a single extraction strategy.
type Provider interface {
	Name() string
	Extract(ctx context.Context, content, sourceURL string) (entity.ExtractionResult, error)
}

// Chain tries providers in order until one succeeds. It implements
// entity.Extractor.
type Chain struct {
	providers []Provider
	limiter   *ratelimit.Limiter
	logger    *zap.Logger
}

// NewChain builds a Chain over the configured providers.
func NewChain(providers []Provider, limiter *ratelimit.Limiter, logger *zap.Logger) (*Chain, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one extraction provider is required")
	}
	return &Chain{
		providers: providers,
		limiter:   limiter,
		logger:    logger.Named("extract"),
	}, nil
}

// Extract iterates the provider list. On success it returns the result
// and the winning provider's name. When every provider fails the error
// concatenates each underlying message so operators can see which leg
// broke.
func (c *Chain) Extract(ctx context.Context, content, sourceURL string) (entity.ExtractionResult, string, error) {
	var failures []string
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return entity.ExtractionResult{}, "", fmt.Errorf("extraction canceled: %w", err)
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, p.Name()); err != nil {
				return entity.ExtractionResult{}, "", err
			}
		}
		result, err := p.Extract(ctx, content, sourceURL)
		if err == nil {
			metrics.ObserveProviderRequest(p.Name(), "success")
			return result, p.Name(), nil
		}
		metrics.ObserveProviderRequest(p.Name(), "failure")
		c.logger.Warn("provider failed, trying next",
			zap.String("provider", p.Name()),
			zap.Error(err))
		failures = append(failures, fmt.Sprintf("%s: %v", p.Name(), err))
	}
	return entity.ExtractionResult{}, "", entity.NewError(
		entity.KindExtraction,
		"all extraction providers failed",
		fmt.Errorf("%s", strings.Join(failures, "; ")),
	)
}

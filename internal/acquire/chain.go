package acquire

import (
	"context"

	"go.uber.org/zap"

	"github.com/radarhq/enrichd/internal/entity"
	"github.com/radarhq/enrichd/internal/metrics"
)

// MinContentChars is the default threshold below which a fetched
// rendering is treated as a failed acquisition.
const MinContentChars = 50

// ChainConfig controls the acquisition chain.
type ChainConfig struct {
	MinContentChars int
}

// Chain implements entity.Acquirer over the configured legs. Reader
// and direct may each be nil when unconfigured; headless is only
// consulted when the detector promotes a direct fetch.
type Chain struct {
	reader   *Reader
	direct   *Direct
	headless *Headless
	detector *Heuristic
	clock    entity.Clock
	cfg      ChainConfig
	logger   *zap.Logger
}

// NewChain assembles the acquisition chain.
func NewChain(
	reader *Reader,
	direct *Direct,
	headless *Headless,
	detector *Heuristic,
	clock entity.Clock,
	cfg ChainConfig,
	logger *zap.Logger,
) *Chain {
	if cfg.MinContentChars <= 0 {
		cfg.MinContentChars = MinContentChars
	}
	if detector == nil {
		detector = NewHeuristic(0)
	}
	return &Chain{
		reader:   reader,
		direct:   direct,
		headless: headless,
		detector: detector,
		clock:    clock,
		cfg:      cfg,
		logger:   logger.Named("acquire"),
	}
}

// Acquire runs the legs in order and falls back to a synthetic
// instruction block when none yields usable content. It never fails.
func (c *Chain) Acquire(ctx context.Context, url, domain string) entity.AcquiredContent {
	if c.reader != nil {
		if text, ok := c.tryLeg(ctx, url, "reader", c.reader.Fetch); ok {
			return c.content(text, "reader")
		}
	}
	if c.direct != nil {
		if text, ok := c.tryDirect(ctx, url); ok {
			return text
		}
	}

	c.logger.Info("all acquisition legs failed, using knowledge fallback",
		zap.String("url", url),
		zap.String("domain", domain))
	metrics.ObserveAcquisitionLeg("fallback", "used")
	return entity.AcquiredContent{
		Text:      FallbackBlock(domain),
		FetchedAt: c.clock.Now(),
		Synthetic: true,
		Via:       "fallback",
	}
}

// tryDirect fetches the raw HTML once so the promotion heuristic can
// inspect it before the optional headless escalation.
func (c *Chain) tryDirect(ctx context.Context, url string) (entity.AcquiredContent, bool) {
	html, err := c.direct.FetchHTML(ctx, url)
	if err != nil {
		c.logger.Warn("direct fetch failed", zap.String("url", url), zap.Error(err))
		metrics.ObserveAcquisitionLeg("direct", "failure")
		return entity.AcquiredContent{}, false
	}
	text, err := htmlToText(html)
	if err != nil {
		metrics.ObserveAcquisitionLeg("direct", "failure")
		return entity.AcquiredContent{}, false
	}

	if c.headless != nil && c.detector.ShouldPromote(html, text) {
		if rendered, ok := c.tryLeg(ctx, url, "headless", c.headless.Fetch); ok {
			return c.content(rendered, "headless"), true
		}
	}
	if len(text) < c.cfg.MinContentChars {
		metrics.ObserveAcquisitionLeg("direct", "thin")
		return entity.AcquiredContent{}, false
	}
	metrics.ObserveAcquisitionLeg("direct", "success")
	return c.content(text, "direct"), true
}

func (c *Chain) tryLeg(
	ctx context.Context,
	url, leg string,
	fetch func(context.Context, string) (string, error),
) (string, bool) {
	text, err := fetch(ctx, url)
	if err != nil {
		c.logger.Warn("acquisition leg failed",
			zap.String("leg", leg),
			zap.String("url", url),
			zap.Error(err))
		metrics.ObserveAcquisitionLeg(leg, "failure")
		return "", false
	}
	if len(text) < c.cfg.MinContentChars {
		c.logger.Warn("acquisition leg returned thin content",
			zap.String("leg", leg),
			zap.String("url", url),
			zap.Int("chars", len(text)))
		metrics.ObserveAcquisitionLeg(leg, "thin")
		return "", false
	}
	metrics.ObserveAcquisitionLeg(leg, "success")
	return text, true
}

func (c *Chain) content(text, via string) entity.AcquiredContent {
	return entity.AcquiredContent{
		Text:      text,
		FetchedAt: c.clock.Now(),
		Via:       via,
	}
}

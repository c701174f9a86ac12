// Package pipeline orchestrates one enrichment run end to end:
// freshness gate, content acquisition, structured extraction, embedding
// generation, snapshot archival, atomic persistence, and completion
// events.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radarhq/enrichd/internal/embed"
	"github.com/radarhq/enrichd/internal/entity"
	"github.com/radarhq/enrichd/internal/metrics"
)

// DefaultFreshnessInterval bounds how often a single entity may be
// re-enriched.
const DefaultFreshnessInterval = time.Hour

// SnapshotArchiver stores acquired content for later audit.
type SnapshotArchiver interface {
	Snapshot(ctx context.Context, domain string, content []byte) (string, error)
}

// Config controls pipeline behavior.
type Config struct {
	FreshnessInterval time.Duration
	EventTopic        string
}

// CompletionEvent is published after each successful run.
type CompletionEvent struct {
	EntityID   string    `json:"entity_id"`
	Domain     string    `json:"domain"`
	Provider   string    `json:"provider"`
	EnrichedAt time.Time `json:"enriched_at"`
}

// Pipeline runs enrichment for tracked entities. Embedder, archiver,
// and publisher are optional; their failures never fail a run.
type Pipeline struct {
	store     entity.Store
	acquirer  entity.Acquirer
	extractor entity.Extractor
	embedder  entity.Embedder
	archiver  SnapshotArchiver
	publisher entity.Publisher
	clock     entity.Clock
	locks     *entityLocks
	cfg       Config
	logger    *zap.Logger
}

// New assembles a pipeline.
func New(
	store entity.Store,
	acquirer entity.Acquirer,
	extractor entity.Extractor,
	embedder entity.Embedder,
	archiver SnapshotArchiver,
	publisher entity.Publisher,
	clock entity.Clock,
	cfg Config,
	logger *zap.Logger,
) (*Pipeline, error) {
	if store == nil || acquirer == nil || extractor == nil || clock == nil {
		return nil, fmt.Errorf("store, acquirer, extractor, and clock are required")
	}
	if cfg.FreshnessInterval <= 0 {
		cfg.FreshnessInterval = DefaultFreshnessInterval
	}
	if cfg.EventTopic == "" {
		cfg.EventTopic = "enrichment-completed"
	}
	return &Pipeline{
		store:     store,
		acquirer:  acquirer,
		extractor: extractor,
		embedder:  embedder,
		archiver:  archiver,
		publisher: publisher,
		clock:     clock,
		locks:     newEntityLocks(),
		cfg:       cfg,
		logger:    logger.Named("pipeline"),
	}, nil
}

// Run enriches one entity from one target URL and returns the merged
// record. Concurrent runs for the same entity are serialized in
// process; the freshness gate then rejects the loser.
func (p *Pipeline) Run(ctx context.Context, entityID, rawURL string) (entity.Entity, error) {
	if entityID == "" {
		return entity.Entity{}, entity.NewError(entity.KindValidation, "entity id is required", nil)
	}
	if rawURL == "" {
		return entity.Entity{}, entity.NewError(entity.KindValidation, "url is required", nil)
	}
	scrapeURL, domain := entity.NormalizeTarget(rawURL)

	release := p.locks.acquire(entityID)
	defer release()

	e, err := p.store.Get(ctx, entityID)
	if err != nil {
		return entity.Entity{}, err
	}

	now := p.clock.Now().UTC()
	if e.LastEnrichedAt != nil {
		elapsed := now.Sub(e.LastEnrichedAt.UTC())
		if elapsed < p.cfg.FreshnessInterval {
			metrics.ObserveRun("rate_limited")
			return entity.Entity{}, entity.NewRateLimitError(p.cfg.FreshnessInterval - elapsed)
		}
	}

	logger := p.logger.With(
		zap.String("entity_id", entityID),
		zap.String("domain", domain),
		zap.String("url", scrapeURL))

	start := time.Now()
	content := p.acquirer.Acquire(ctx, scrapeURL, domain)
	metrics.ObserveStage("acquire", time.Since(start))
	if content.Synthetic {
		logger.Warn("acquisition degraded to knowledge fallback")
	}

	start = time.Now()
	result, provider, err := p.extractor.Extract(ctx, content.Text, scrapeURL)
	metrics.ObserveStage("extract", time.Since(start))
	if err != nil {
		metrics.ObserveRun("extraction_failure")
		return entity.Entity{}, err
	}

	var embedding []float32
	if p.embedder != nil {
		start = time.Now()
		embedding, err = p.embedder.Embed(ctx, embed.BuildText(result.Summary, result.Keywords))
		metrics.ObserveStage("embed", time.Since(start))
		if err != nil {
			logger.Warn("embedding generation failed, continuing without vector", zap.Error(err))
			embedding = nil
		}
	}

	source := entity.Source{
		URL:       scrapeURL,
		FetchedAt: content.FetchedAt,
		Provider:  provider,
	}
	if p.archiver != nil && !content.Synthetic {
		uri, err := p.archiver.Snapshot(ctx, domain, []byte(content.Text))
		if err != nil {
			logger.Warn("snapshot archival failed", zap.Error(err))
		} else {
			source.SnapshotURI = uri
		}
	}

	// never persist a run whose caller has already gone away
	if err := ctx.Err(); err != nil {
		metrics.ObserveRun("canceled")
		return entity.Entity{}, fmt.Errorf("run canceled before persist: %w", err)
	}

	enrichedAt := p.clock.Now().UTC()
	start = time.Now()
	merged, err := p.store.ApplyEnrichment(ctx, entityID, entity.Enrichment{
		Result:     result,
		Source:     source,
		Embedding:  embedding,
		EnrichedAt: enrichedAt,
	})
	metrics.ObserveStage("persist", time.Since(start))
	if err != nil {
		metrics.ObserveRun("persistence_failure")
		return entity.Entity{}, err
	}

	if p.publisher != nil {
		event := CompletionEvent{
			EntityID:   entityID,
			Domain:     merged.Domain,
			Provider:   provider,
			EnrichedAt: enrichedAt,
		}
		if _, err := p.publisher.Publish(ctx, p.cfg.EventTopic, event); err != nil {
			logger.Warn("completion event publish failed", zap.Error(err))
		}
	}

	metrics.ObserveRun("success")
	logger.Info("enrichment completed",
		zap.String("provider", provider),
		zap.String("via", content.Via),
		zap.Bool("embedded", embedding != nil))
	return merged, nil
}

// Package memory provides in-memory implementations of the persistence
// interfaces, used in tests and single-process deployments.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/radarhq/enrichd/internal/entity"
)

// EntityStore is an in-memory entity.Store keyed by id with a
// secondary domain index.
type EntityStore struct {
	mu       sync.RWMutex
	byID     map[string]entity.Entity
	byDomain map[string]string
	ids      entity.IDGenerator
	clock    entity.Clock
}

// NewEntityStore creates an empty store.
func NewEntityStore(ids entity.IDGenerator, clock entity.Clock) *EntityStore {
	return &EntityStore{
		byID:     make(map[string]entity.Entity),
		byDomain: make(map[string]string),
		ids:      ids,
		clock:    clock,
	}
}

// CreateShell inserts a shell entity, or returns the existing record
// when the domain is already tracked. The bool reports whether a new
// record was created.
func (s *EntityStore) CreateShell(_ context.Context, e entity.Entity) (entity.Entity, bool, error) {
	if e.Domain == "" {
		return entity.Entity{}, false, entity.NewError(entity.KindValidation, "domain is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byDomain[e.Domain]; ok {
		return s.byID[id], false, nil
	}

	id, err := s.ids.NewID()
	if err != nil {
		return entity.Entity{}, false, entity.NewError(entity.KindPersistence, "generate id", err)
	}
	e.ID = id
	e.CreatedAt = s.clock.Now()
	s.byID[id] = e
	s.byDomain[e.Domain] = id
	return e, true, nil
}

// Get returns the entity with the given id.
func (s *EntityStore) Get(_ context.Context, id string) (entity.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byID[id]
	if !ok {
		return entity.Entity{}, entity.NewError(entity.KindNotFound, "entity not found", nil)
	}
	return e, nil
}

// GetByDomain returns the entity tracked under the given domain.
func (s *EntityStore) GetByDomain(_ context.Context, domain string) (entity.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byDomain[domain]
	if !ok {
		return entity.Entity{}, entity.NewError(entity.KindNotFound, "entity not found", nil)
	}
	return s.byID[id], nil
}

// ApplyEnrichment writes the full enrichment payload onto the record in
// one step and returns the merged entity.
func (s *EntityStore) ApplyEnrichment(_ context.Context, id string, enr entity.Enrichment) (entity.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return entity.Entity{}, entity.NewError(entity.KindNotFound, "entity not found", nil)
	}

	summary := enr.Result.Summary
	explanation := enr.Result.ScoreExplanation
	score := enr.Result.RelevanceScore
	enrichedAt := enr.EnrichedAt

	e.Summary = &summary
	e.WhatItDoes = enr.Result.WhatItDoes
	e.Keywords = enr.Result.Keywords
	e.Signals = enr.Result.Signals
	e.RelevanceScore = &score
	e.ScoreExplanation = &explanation
	e.Sources = []entity.Source{enr.Source}
	e.LastEnrichedAt = &enrichedAt
	if enr.Embedding != nil {
		e.Embedding = enr.Embedding
	}

	s.byID[id] = e
	return e, nil
}

// Similar ranks stored entities by cosine similarity to the query
// embedding. Entities without an embedding are not candidates.
func (s *EntityStore) Similar(_ context.Context, q entity.SimilarityQuery) ([]entity.SimilarEntity, error) {
	if len(q.Embedding) == 0 {
		return nil, entity.NewError(entity.KindValidation, "query embedding is required", nil)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]entity.SimilarEntity, 0)
	for id, e := range s.byID {
		if id == q.ExcludeID || len(e.Embedding) == 0 {
			continue
		}
		sim := cosineSimilarity(q.Embedding, e.Embedding)
		if sim <= q.Threshold {
			continue
		}
		results = append(results, entity.SimilarEntity{
			ID:         e.ID,
			Name:       e.Name,
			Domain:     e.Domain,
			Sector:     e.Sector,
			Stage:      e.Stage,
			Similarity: sim,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radarhq/enrichd/internal/entity"
	"github.com/radarhq/enrichd/internal/id/uuid"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestStore(t *testing.T) *EntityStore {
	t.Helper()
	return NewEntityStore(uuid.New(), fixedClock{t: time.Unix(1700000000, 0).UTC()})
}

func mustCreate(t *testing.T, s *EntityStore, name, domain string) entity.Entity {
	t.Helper()
	e, created, err := s.CreateShell(context.Background(), entity.Entity{Name: name, Domain: domain})
	require.NoError(t, err)
	require.True(t, created)
	return e
}

func TestCreateShellDeduplicatesByDomain(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	first := mustCreate(t, s, "Acme", "acme.com")

	second, created, err := s.CreateShell(context.Background(), entity.Entity{Name: "Acme Inc", Domain: "acme.com"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Acme", second.Name)
}

func TestCreateShellRequiresDomain(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, _, err := s.CreateShell(context.Background(), entity.Entity{Name: "Acme"})
	require.Error(t, err)
	assert.Equal(t, entity.KindValidation, entity.KindOf(err))
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, entity.KindNotFound, entity.KindOf(err))

	_, err = s.GetByDomain(context.Background(), "missing.com")
	require.Error(t, err)
	assert.Equal(t, entity.KindNotFound, entity.KindOf(err))
}

func TestApplyEnrichmentWritesAllFields(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	e := mustCreate(t, s, "Acme", "acme.com")

	enrichedAt := time.Unix(1700003600, 0).UTC()
	enr := entity.Enrichment{
		Result: entity.ExtractionResult{
			Summary:          "Acme sells anvils.",
			WhatItDoes:       []string{"manufactures anvils"},
			Keywords:         []string{"anvils"},
			Signals:          []string{"hiring"},
			RelevanceScore:   72,
			ScoreExplanation: "strong product fit",
		},
		Source:     apply(enrichedAt),
		Embedding:  []float32{0.1, 0.2},
		EnrichedAt: enrichedAt,
	}

	got, err := s.ApplyEnrichment(context.Background(), e.ID, enr)
	require.NoError(t, err)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "Acme sells anvils.", *got.Summary)
	assert.Equal(t, []string{"anvils"}, got.Keywords)
	require.NotNil(t, got.RelevanceScore)
	assert.Equal(t, 72, *got.RelevanceScore)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, "https://acme.com", got.Sources[0].URL)
	assert.Equal(t, []float32{0.1, 0.2}, got.Embedding)
	require.NotNil(t, got.LastEnrichedAt)
	assert.True(t, got.Enriched())
}

func TestApplyEnrichmentReplacesSources(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	e := mustCreate(t, s, "Acme", "acme.com")

	first := time.Unix(1700003600, 0).UTC()
	second := first.Add(2 * time.Hour)

	_, err := s.ApplyEnrichment(context.Background(), e.ID, entity.Enrichment{
		Result:     entity.ExtractionResult{Summary: "v1", RelevanceScore: 10, ScoreExplanation: "x"},
		Source:     apply(first),
		EnrichedAt: first,
	})
	require.NoError(t, err)

	got, err := s.ApplyEnrichment(context.Background(), e.ID, entity.Enrichment{
		Result:     entity.ExtractionResult{Summary: "v2", RelevanceScore: 20, ScoreExplanation: "y"},
		Source:     entity.Source{URL: "https://acme.com/about", FetchedAt: second, Provider: "openai:gpt-4o"},
		EnrichedAt: second,
	})
	require.NoError(t, err)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, "https://acme.com/about", got.Sources[0].URL)
}

func TestApplyEnrichmentNilEmbeddingKeepsPrior(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	e := mustCreate(t, s, "Acme", "acme.com")
	at := time.Unix(1700003600, 0).UTC()

	_, err := s.ApplyEnrichment(context.Background(), e.ID, entity.Enrichment{
		Result:     entity.ExtractionResult{Summary: "v1", RelevanceScore: 10, ScoreExplanation: "x"},
		Source:     apply(at),
		Embedding:  []float32{0.5, 0.5},
		EnrichedAt: at,
	})
	require.NoError(t, err)

	got, err := s.ApplyEnrichment(context.Background(), e.ID, entity.Enrichment{
		Result:     entity.ExtractionResult{Summary: "v2", RelevanceScore: 20, ScoreExplanation: "y"},
		Source:     apply(at.Add(2 * time.Hour)),
		Embedding:  nil,
		EnrichedAt: at.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, got.Embedding)
}

func TestSimilarRanksAndFilters(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	at := time.Unix(1700003600, 0).UTC()

	seed := func(name, domain string, vec []float32) entity.Entity {
		e := mustCreate(t, s, name, domain)
		if vec != nil {
			_, err := s.ApplyEnrichment(context.Background(), e.ID, entity.Enrichment{
				Result:     entity.ExtractionResult{Summary: name, RelevanceScore: 50, ScoreExplanation: "x"},
				Source:     apply(at),
				Embedding:  vec,
				EnrichedAt: at,
			})
			require.NoError(t, err)
		}
		return e
	}

	query := seed("Query Co", "query.com", []float32{1, 0})
	near := seed("Near Co", "near.com", []float32{0.9, 0.1})
	far := seed("Far Co", "far.com", []float32{0, 1})
	seed("Bare Co", "bare.com", nil)

	got, err := s.Similar(context.Background(), entity.SimilarityQuery{
		Embedding: []float32{1, 0},
		Threshold: 0.5,
		Limit:     5,
		ExcludeID: query.ID,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, near.ID, got[0].ID)
	assert.Greater(t, got[0].Similarity, 0.9)

	// a negative threshold admits the orthogonal vector too
	got, err = s.Similar(context.Background(), entity.SimilarityQuery{
		Embedding: []float32{1, 0},
		Threshold: -1,
		Limit:     5,
		ExcludeID: query.ID,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, near.ID, got[0].ID)
	assert.Equal(t, far.ID, got[1].ID)
}

func TestSimilarRequiresEmbedding(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.Similar(context.Background(), entity.SimilarityQuery{})
	require.Error(t, err)
	assert.Equal(t, entity.KindValidation, entity.KindOf(err))
}

func TestSimilarHonorsLimit(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	at := time.Unix(1700003600, 0).UTC()
	for i, domain := range []string{"a.com", "b.com", "c.com"} {
		e := mustCreate(t, s, domain, domain)
		_, err := s.ApplyEnrichment(context.Background(), e.ID, entity.Enrichment{
			Result:     entity.ExtractionResult{Summary: domain, RelevanceScore: i, ScoreExplanation: "x"},
			Source:     apply(at),
			Embedding:  []float32{1, float32(i) * 0.01},
			EnrichedAt: at,
		})
		require.NoError(t, err)
	}

	got, err := s.Similar(context.Background(), entity.SimilarityQuery{
		Embedding: []float32{1, 0},
		Threshold: 0.5,
		Limit:     2,
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func apply(at time.Time) entity.Source {
	return entity.Source{URL: "https://acme.com", FetchedAt: at, Provider: "openai:gpt-4o"}
}

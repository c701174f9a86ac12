package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radarhq/enrichd/internal/entity"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fixedIDs struct{ id string }

func (g fixedIDs) NewID() (string, error) { return g.id, nil }

func newTestStore(t *testing.T) (*EntityStore, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewEntityStoreWithPool(mock, "entities",
		fixedIDs{id: "ent-1"}, fixedClock{t: time.Unix(1700000000, 0).UTC()})
	require.NoError(t, err)
	return store, mock
}

func entityRow() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "name", "domain", "sector", "stage", "location", "description",
		"summary", "what_it_does", "keywords", "signals", "relevance_score",
		"score_explanation", "sources", "embedding", "last_enriched_at", "created_at",
	})
}

func strptr(s string) *string { return &s }

func intptr(i int) *int { return &i }

func TestNewEntityStoreWithPoolRejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewEntityStoreWithPool(mock, "entities; DROP TABLE", fixedIDs{}, fixedClock{})
	require.Error(t, err)
}

func TestCreateShellInsertsNewRow(t *testing.T) {
	t.Parallel()

	store, mock := newTestStore(t)
	createdAt := time.Unix(1700000000, 0).UTC()

	mock.ExpectExec("INSERT INTO entities").
		WithArgs("ent-1", "Acme", "acme.com", "fintech", "seed", "Berlin", "anvils", createdAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	got, created, err := store.CreateShell(context.Background(), entity.Entity{
		Name:        "Acme",
		Domain:      "acme.com",
		Sector:      "fintech",
		Stage:       "seed",
		Location:    "Berlin",
		Description: "anvils",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "ent-1", got.ID)
	assert.Equal(t, createdAt, got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateShellReturnsExistingOnConflict(t *testing.T) {
	t.Parallel()

	store, mock := newTestStore(t)
	createdAt := time.Unix(1690000000, 0).UTC()

	mock.ExpectExec("INSERT INTO entities").
		WithArgs("ent-1", "Acme", "acme.com", "", "", "", "", time.Unix(1700000000, 0).UTC()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(`(?s)SELECT (.+) FROM entities WHERE domain`).
		WithArgs("acme.com").
		WillReturnRows(entityRow().AddRow(
			"ent-0", "Acme", "acme.com", "", "", "", "",
			nil, []string{}, []string{}, []string{}, nil,
			nil, []byte(`[]`), nil, nil, createdAt,
		))

	got, created, err := store.CreateShell(context.Background(), entity.Entity{Name: "Acme", Domain: "acme.com"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "ent-0", got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateShellRequiresDomain(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	_, _, err := store.CreateShell(context.Background(), entity.Entity{Name: "Acme"})
	require.Error(t, err)
	assert.Equal(t, entity.KindValidation, entity.KindOf(err))
}

func TestGetMapsNoRowsToNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newTestStore(t)

	mock.ExpectQuery(`(?s)SELECT (.+) FROM entities WHERE id`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, entity.KindNotFound, entity.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyEnrichmentUpdatesAndReturnsRow(t *testing.T) {
	t.Parallel()

	store, mock := newTestStore(t)
	createdAt := time.Unix(1690000000, 0).UTC()
	enrichedAt := time.Unix(1700003600, 0).UTC()

	mock.ExpectQuery("UPDATE entities SET").
		WithArgs(
			"ent-1",
			"Acme sells anvils.",
			[]string{"manufactures anvils"},
			[]string{"anvils"},
			[]string{"hiring"},
			72,
			"strong product fit",
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			enrichedAt,
		).
		WillReturnRows(entityRow().AddRow(
			"ent-1", "Acme", "acme.com", "", "", "", "",
			strptr("Acme sells anvils."),
			[]string{"manufactures anvils"}, []string{"anvils"}, []string{"hiring"},
			intptr(72), strptr("strong product fit"),
			[]byte(`[{"url":"https://acme.com","fetched_at":"2023-11-14T23:13:20Z","provider":"openai:gpt-4o"}]`),
			nil, &enrichedAt, createdAt,
		))

	got, err := store.ApplyEnrichment(context.Background(), "ent-1", entity.Enrichment{
		Result: entity.ExtractionResult{
			Summary:          "Acme sells anvils.",
			WhatItDoes:       []string{"manufactures anvils"},
			Keywords:         []string{"anvils"},
			Signals:          []string{"hiring"},
			RelevanceScore:   72,
			ScoreExplanation: "strong product fit",
		},
		Source: entity.Source{
			URL:       "https://acme.com",
			FetchedAt: time.Unix(1700000000, 0).UTC(),
			Provider:  "openai:gpt-4o",
		},
		Embedding:  []float32{0.1, 0.2},
		EnrichedAt: enrichedAt,
	})
	require.NoError(t, err)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "Acme sells anvils.", *got.Summary)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, "https://acme.com", got.Sources[0].URL)
	require.NotNil(t, got.LastEnrichedAt)
	assert.True(t, got.Enriched())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSimilarRanksRows(t *testing.T) {
	t.Parallel()

	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT id, name, domain, sector, stage, 1 -").
		WithArgs(pgxmock.AnyArg(), "ent-1", 0.5, 2).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "domain", "sector", "stage", "similarity"}).
			AddRow("ent-2", "Near Co", "near.com", "fintech", "seed", 0.93).
			AddRow("ent-3", "Close Co", "close.com", "", "", 0.71))

	got, err := store.Similar(context.Background(), entity.SimilarityQuery{
		Embedding: []float32{1, 0},
		Threshold: 0.5,
		Limit:     2,
		ExcludeID: "ent-1",
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ent-2", got[0].ID)
	assert.InDelta(t, 0.93, got[0].Similarity, 1e-9)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSimilarRequiresEmbedding(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	_, err := store.Similar(context.Background(), entity.SimilarityQuery{})
	require.Error(t, err)
	assert.Equal(t, entity.KindValidation, entity.KindOf(err))
}

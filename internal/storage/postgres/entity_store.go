// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/radarhq/enrichd/internal/entity"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// EntityStoreConfig controls the Postgres connection pool used for
// entity rows.
type EntityStoreConfig struct {
	DSN             string
	Table           string
	VectorDim       int
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// EntityStore implements entity.Store on Postgres with pgvector.
type EntityStore struct {
	pool  querier
	table string
	ids   entity.IDGenerator
	clock entity.Clock
}

// NewEntityStore connects to Postgres, ensures the schema exists, and
// returns a ready store.
func NewEntityStore(ctx context.Context, cfg EntityStoreConfig, ids entity.IDGenerator, clock entity.Clock) (*EntityStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "entities"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	dim := cfg.VectorDim
	if dim == 0 {
		dim = 1536
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &EntityStore{pool: pool, table: table, ids: ids, clock: clock}
	if err := s.initialize(ctx, dim); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewEntityStoreWithPool constructs a store from an existing pool
// (primarily for testing). The schema is assumed to exist.
func NewEntityStoreWithPool(pool querier, table string, ids entity.IDGenerator, clock entity.Clock) (*EntityStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "entities"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &EntityStore{pool: pool, table: table, ids: ids, clock: clock}, nil
}

// Close releases the underlying pool resources.
func (s *EntityStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *EntityStore) initialize(ctx context.Context, dim int) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	domain TEXT NOT NULL UNIQUE,
	sector TEXT NOT NULL DEFAULT '',
	stage TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	summary TEXT,
	what_it_does TEXT[] NOT NULL DEFAULT '{}',
	keywords TEXT[] NOT NULL DEFAULT '{}',
	signals TEXT[] NOT NULL DEFAULT '{}',
	relevance_score INTEGER,
	score_explanation TEXT,
	sources JSONB NOT NULL DEFAULT '[]',
	embedding vector(%d),
	last_enriched_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
)`, s.table, dim)
	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
CREATE INDEX IF NOT EXISTS %s_embedding_idx
ON %s
USING ivfflat (embedding vector_cosine_ops)
WITH (lists = 100)`, s.table, s.table)
	if _, err := s.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

const entityColumns = `id, name, domain, sector, stage, location, description,
	summary, what_it_does, keywords, signals, relevance_score, score_explanation,
	sources, embedding, last_enriched_at, created_at`

// CreateShell inserts a shell entity keyed by domain. When the domain
// is already tracked the existing record is returned instead.
func (s *EntityStore) CreateShell(ctx context.Context, e entity.Entity) (entity.Entity, bool, error) {
	if e.Domain == "" {
		return entity.Entity{}, false, entity.NewError(entity.KindValidation, "domain is required", nil)
	}

	id, err := s.ids.NewID()
	if err != nil {
		return entity.Entity{}, false, entity.NewError(entity.KindPersistence, "generate id", err)
	}
	createdAt := s.clock.Now()

	query := fmt.Sprintf(`
INSERT INTO %s (id, name, domain, sector, stage, location, description, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (domain) DO NOTHING`, s.table)

	tag, err := s.pool.Exec(ctx, query,
		id, e.Name, e.Domain, e.Sector, e.Stage, e.Location, e.Description, createdAt)
	if err != nil {
		return entity.Entity{}, false, entity.NewError(entity.KindPersistence, "insert entity", err)
	}
	if tag.RowsAffected() == 0 {
		existing, err := s.GetByDomain(ctx, e.Domain)
		if err != nil {
			return entity.Entity{}, false, err
		}
		return existing, false, nil
	}

	e.ID = id
	e.CreatedAt = createdAt
	return e, true, nil
}

// Get returns the entity with the given id.
func (s *EntityStore) Get(ctx context.Context, id string) (entity.Entity, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, entityColumns, s.table)
	return s.scanEntity(s.pool.QueryRow(ctx, query, id))
}

// GetByDomain returns the entity tracked under the given domain.
func (s *EntityStore) GetByDomain(ctx context.Context, domain string) (entity.Entity, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE domain = $1`, entityColumns, s.table)
	return s.scanEntity(s.pool.QueryRow(ctx, query, domain))
}

// ApplyEnrichment writes the full enrichment payload in a single
// UPDATE so readers never observe a half-enriched record. A nil
// embedding leaves any previously stored vector in place.
func (s *EntityStore) ApplyEnrichment(ctx context.Context, id string, enr entity.Enrichment) (entity.Entity, error) {
	sourcesJSON, err := json.Marshal([]entity.Source{enr.Source})
	if err != nil {
		return entity.Entity{}, entity.NewError(entity.KindPersistence, "marshal sources", err)
	}

	var embedding any
	if enr.Embedding != nil {
		embedding = pgvector.NewVector(enr.Embedding)
	}

	query := fmt.Sprintf(`
UPDATE %s SET
	summary = $2,
	what_it_does = $3,
	keywords = $4,
	signals = $5,
	relevance_score = $6,
	score_explanation = $7,
	sources = $8,
	embedding = COALESCE($9, embedding),
	last_enriched_at = $10
WHERE id = $1
RETURNING %s`, s.table, entityColumns)

	row := s.pool.QueryRow(ctx, query,
		id,
		enr.Result.Summary,
		enr.Result.WhatItDoes,
		enr.Result.Keywords,
		enr.Result.Signals,
		enr.Result.RelevanceScore,
		enr.Result.ScoreExplanation,
		sourcesJSON,
		embedding,
		enr.EnrichedAt,
	)
	return s.scanEntity(row)
}

// Similar ranks other entities by cosine similarity to the query
// embedding using the pgvector cosine distance operator.
func (s *EntityStore) Similar(ctx context.Context, q entity.SimilarityQuery) ([]entity.SimilarEntity, error) {
	if len(q.Embedding) == 0 {
		return nil, entity.NewError(entity.KindValidation, "query embedding is required", nil)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}

	query := fmt.Sprintf(`
SELECT id, name, domain, sector, stage, 1 - (embedding <=> $1) AS similarity
FROM %s
WHERE embedding IS NOT NULL
  AND id <> $2
  AND 1 - (embedding <=> $1) > $3
ORDER BY embedding <=> $1
LIMIT $4`, s.table)

	rows, err := s.pool.Query(ctx, query,
		pgvector.NewVector(q.Embedding), q.ExcludeID, q.Threshold, limit)
	if err != nil {
		return nil, entity.NewError(entity.KindPersistence, "query similar entities", err)
	}
	defer rows.Close()

	var results []entity.SimilarEntity
	for rows.Next() {
		var se entity.SimilarEntity
		if err := rows.Scan(&se.ID, &se.Name, &se.Domain, &se.Sector, &se.Stage, &se.Similarity); err != nil {
			return nil, entity.NewError(entity.KindPersistence, "scan similar entity", err)
		}
		results = append(results, se)
	}
	if err := rows.Err(); err != nil {
		return nil, entity.NewError(entity.KindPersistence, "iterate similar entities", err)
	}
	return results, nil
}

func (s *EntityStore) scanEntity(row pgx.Row) (entity.Entity, error) {
	var (
		e          entity.Entity
		sourcesRaw []byte
		vec        *pgvector.Vector
	)
	err := row.Scan(
		&e.ID, &e.Name, &e.Domain, &e.Sector, &e.Stage, &e.Location, &e.Description,
		&e.Summary, &e.WhatItDoes, &e.Keywords, &e.Signals, &e.RelevanceScore,
		&e.ScoreExplanation, &sourcesRaw, &vec, &e.LastEnrichedAt, &e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.Entity{}, entity.NewError(entity.KindNotFound, "entity not found", err)
	}
	if err != nil {
		return entity.Entity{}, entity.NewError(entity.KindPersistence, "scan entity", err)
	}
	if len(sourcesRaw) > 0 {
		if err := json.Unmarshal(sourcesRaw, &e.Sources); err != nil {
			return entity.Entity{}, entity.NewError(entity.KindPersistence, "unmarshal sources", err)
		}
	}
	if vec != nil {
		e.Embedding = vec.Slice()
	}
	return e, nil
}

// Package entity defines core types shared across subsystems.
package entity

import "time"

// Entity is a tracked business record subject to enrichment.
// The enrichment fields are nil until the first successful pipeline run;
// the persister writes them all in a single update so partial enrichment
// never occurs.
type Entity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	Sector      string `json:"sector,omitempty"`
	Stage       string `json:"stage,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`

	Summary          *string    `json:"summary,omitempty"`
	WhatItDoes       []string   `json:"what_it_does,omitempty"`
	Keywords         []string   `json:"keywords,omitempty"`
	Signals          []string   `json:"signals,omitempty"`
	RelevanceScore   *int       `json:"relevance_score,omitempty"`
	ScoreExplanation *string    `json:"score_explanation,omitempty"`
	Sources          []Source   `json:"sources,omitempty"`
	Embedding        []float32  `json:"-"`
	LastEnrichedAt   *time.Time `json:"last_enriched_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ExtractionResult is the canonical structured record produced by a
// provider for one pipeline run. It is never persisted on its own.
type ExtractionResult struct {
	Summary          string   `json:"summary"`
	WhatItDoes       []string `json:"what_it_does"`
	Keywords         []string `json:"keywords"`
	Signals          []string `json:"signals"`
	RelevanceScore   int      `json:"relevance_score"`
	ScoreExplanation string   `json:"score_explanation"`
}

// Source records where and how one enrichment run obtained its content.
// Runs replace the prior sources value rather than accumulating history.
type Source struct {
	URL         string    `json:"url"`
	FetchedAt   time.Time `json:"fetched_at"`
	Provider    string    `json:"provider"`
	SnapshotURI string    `json:"snapshot_uri,omitempty"`
}

// Enrichment bundles everything the persister writes in one atomic update.
type Enrichment struct {
	Result     ExtractionResult
	Source     Source
	Embedding  []float32 // nil when embedding generation failed or is disabled
	EnrichedAt time.Time
}

// AcquiredContent is what the content acquirer hands to the extractor.
type AcquiredContent struct {
	Text      string
	FetchedAt time.Time
	// Synthetic is true when the page could not be fetched and Text is a
	// knowledge-fallback instruction block instead of page content.
	Synthetic bool
	// Via names the acquisition leg that produced the text (reader,
	// direct, headless, fallback).
	Via string
}

// SimilarEntity is one row of a similarity ranking.
type SimilarEntity struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Domain     string  `json:"domain"`
	Sector     string  `json:"sector,omitempty"`
	Stage      string  `json:"stage,omitempty"`
	Similarity float64 `json:"similarity"`
}

// SimilarityQuery parameterizes a similarity ranking request.
type SimilarityQuery struct {
	Embedding []float32
	Threshold float64
	Limit     int
	ExcludeID string
}

// Enriched reports whether the entity has completed at least one
// successful enrichment run.
func (e Entity) Enriched() bool {
	return e.LastEnrichedAt != nil
}

package entity

import (
	"context"
	"time"
)

// Store persists entities and their enrichment state.
type Store interface {
	// CreateShell inserts a shell entity keyed by domain, or returns the
	// existing record when the domain is already tracked.
	CreateShell(ctx context.Context, e Entity) (Entity, bool, error)
	Get(ctx context.Context, id string) (Entity, error)
	GetByDomain(ctx context.Context, domain string) (Entity, error)
	// ApplyEnrichment atomically writes the full enrichment payload onto
	// the entity record and returns the merged record.
	ApplyEnrichment(ctx context.Context, id string, enr Enrichment) (Entity, error)
	// Similar ranks other entities by cosine similarity to the query
	// embedding. Entities without a stored embedding are not candidates.
	Similar(ctx context.Context, q SimilarityQuery) ([]SimilarEntity, error)
}

// Acquirer fetches a text rendering of a page. Acquisition failure is
// non-fatal: implementations return a synthetic fallback block instead
// of an error when the page cannot be read.
type Acquirer interface {
	Acquire(ctx context.Context, url, domain string) AcquiredContent
}

// Extractor converts acquired content into a canonical structured
// record and reports which provider produced it.
type Extractor interface {
	Extract(ctx context.Context, content, sourceURL string) (ExtractionResult, string, error)
}

// Embedder derives a fixed-dimension vector from text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for snapshot keys.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces entity IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Package archive persists acquired page snapshots so enrichment runs
// can be audited after the fact.
package archive

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/radarhq/enrichd/internal/entity"
)

// Archiver writes one snapshot per acquisition, keyed by domain and
// content digest so identical fetches share a single object.
type Archiver struct {
	blobs  entity.BlobStore
	hasher entity.Hasher
	prefix string
	logger *zap.Logger
}

// New creates an archiver writing under the given key prefix.
func New(blobs entity.BlobStore, hasher entity.Hasher, prefix string, logger *zap.Logger) *Archiver {
	if prefix == "" {
		prefix = "snapshots"
	}
	return &Archiver{
		blobs:  blobs,
		hasher: hasher,
		prefix: prefix,
		logger: logger.Named("archive"),
	}
}

// Snapshot stores the acquired content and returns its URI.
func (a *Archiver) Snapshot(ctx context.Context, domain string, content []byte) (string, error) {
	if domain == "" {
		return "", fmt.Errorf("domain is required")
	}
	digest, err := a.hasher.Hash(content)
	if err != nil {
		return "", fmt.Errorf("hash snapshot: %w", err)
	}
	key := fmt.Sprintf("%s/%s/%s.md", a.prefix, domain, digest)

	uri, err := a.blobs.PutObject(ctx, key, "text/markdown", content)
	if err != nil {
		return "", fmt.Errorf("store snapshot: %w", err)
	}
	a.logger.Debug("snapshot stored",
		zap.String("domain", domain),
		zap.String("uri", uri),
		zap.Int("bytes", len(content)))
	return uri, nil
}

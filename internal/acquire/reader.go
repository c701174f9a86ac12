package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ReaderConfig controls the hosted reader-service leg.
type ReaderConfig struct {
	// Endpoint is the reader service base URL, e.g. "https://r.jina.ai".
	Endpoint  string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
}

// Reader fetches a markdown rendering of a page from an external
// content-extraction service.
type Reader struct {
	cfg    ReaderConfig
	client *http.Client
}

// maxReaderBody bounds how much of the reader response is read.
const maxReaderBody = 2 << 20

// NewReader builds the reader-service leg.
func NewReader(cfg ReaderConfig) *Reader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "enrichd/1.0 (+https://github.com/radarhq/enrichd)"
	}
	return &Reader{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name identifies the leg in logs and metrics.
func (r *Reader) Name() string { return "reader" }

// Fetch requests a plain/markdown rendering of the target page.
func (r *Reader) Fetch(ctx context.Context, url string) (string, error) {
	target := strings.TrimSuffix(r.cfg.Endpoint, "/") + "/" + url
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("build reader request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("X-Return-Format", "markdown")
	req.Header.Set("User-Agent", r.cfg.UserAgent)
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reader request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("reader returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReaderBody))
	if err != nil {
		return "", fmt.Errorf("read reader body: %w", err)
	}
	return string(body), nil
}

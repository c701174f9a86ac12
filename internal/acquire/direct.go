package acquire

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
)

// DirectConfig controls the direct HTTP fetch leg.
type DirectConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// Direct fetches the page HTML itself when no reader service is
// available, using a colly collector per request.
type Direct struct {
	cfg DirectConfig
}

// NewDirect builds the direct-fetch leg.
func NewDirect(cfg DirectConfig) *Direct {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Direct{cfg: cfg}
}

// Name identifies the leg in logs and metrics.
func (d *Direct) Name() string { return "direct" }

// FetchHTML executes a single GET and returns the raw HTML body.
func (d *Direct) FetchHTML(ctx context.Context, url string) ([]byte, error) {
	collector := colly.NewCollector(colly.Async(false))
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(d.cfg.Timeout)
	if d.cfg.UserAgent != "" {
		collector.UserAgent = d.cfg.UserAgent
	}

	var (
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode < 200 || r.StatusCode > 299 {
			fetchErr = fmt.Errorf("direct fetch returned status %d", r.StatusCode)
			return
		}
		body = r.Body
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("direct fetch: %w", err)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := collector.Visit(url); err != nil && fetchErr == nil {
			fetchErr = fmt.Errorf("direct visit: %w", err)
		}
		collector.Wait()
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("direct fetch canceled: %w", ctx.Err())
	case <-done:
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("direct fetch returned empty body")
	}
	return body, nil
}

// Fetch retrieves the page and strips it to readable text.
func (d *Direct) Fetch(ctx context.Context, url string) (string, error) {
	body, err := d.FetchHTML(ctx, url)
	if err != nil {
		return "", err
	}
	text, err := htmlToText(body)
	if err != nil {
		return "", err
	}
	return text, nil
}

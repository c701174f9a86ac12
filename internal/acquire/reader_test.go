package acquire

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReaderFetchReturnsMarkdown(t *testing.T) {
	t.Parallel()

	var gotPath, gotFormat, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFormat = r.Header.Get("X-Return-Format")
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("# Example\n\nWe make widgets for the enterprise."))
	}))
	defer srv.Close()

	reader := NewReader(ReaderConfig{Endpoint: srv.URL, UserAgent: "enrichd-test/1.0"})
	text, err := reader.Fetch(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Contains(t, text, "widgets")
	require.Equal(t, "/https://example.com", gotPath)
	require.Equal(t, "markdown", gotFormat)
	require.Equal(t, "enrichd-test/1.0", gotUA)
}

func TestReaderFetchNon2xxIsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	reader := NewReader(ReaderConfig{Endpoint: srv.URL})
	_, err := reader.Fetch(context.Background(), "https://example.com")
	require.ErrorContains(t, err, "502")
}

func TestReaderFetchRespectsContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()

	reader := NewReader(ReaderConfig{Endpoint: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := reader.Fetch(ctx, "https://example.com")
	require.Error(t, err)
}

func TestReaderSendsAPIKeyWhenConfigured(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("content body that is long enough"))
	}))
	defer srv.Close()

	reader := NewReader(ReaderConfig{Endpoint: srv.URL, APIKey: "secret"})
	_, err := reader.Fetch(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Equal(t, "Bearer secret", gotAuth)
}

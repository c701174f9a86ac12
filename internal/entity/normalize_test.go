package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeTarget_CanonicalDomain(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		in      string
		wantURL string
		wantDom string
	}{
		{"bare domain", "example.com", "https://example.com", "example.com"},
		{"trailing slash", "example.com/", "https://example.com", "example.com"},
		{"https scheme", "https://example.com", "https://example.com", "example.com"},
		{"http scheme kept", "http://example.com/", "http://example.com", "example.com"},
		{"www stripped", "https://www.example.com", "https://www.example.com", "example.com"},
		{"path kept in url", "example.com/about/", "https://example.com/about", "example.com"},
		{"uppercase host", "HTTPS://Example.COM", "HTTPS://Example.COM", "example.com"},
		{"surrounding whitespace", "  example.com  ", "https://example.com", "example.com"},
		{"port dropped from domain", "example.com:8080/x", "https://example.com:8080/x", "example.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			gotURL, gotDom := NormalizeTarget(tc.in)
			require.Equal(t, tc.wantURL, gotURL)
			require.Equal(t, tc.wantDom, gotDom)
		})
	}
}

func TestNormalizeTarget_Idempotent(t *testing.T) {
	t.Parallel()

	variants := []string{
		"example.com",
		"example.com/",
		"http://example.com",
		"https://example.com/",
		"www.example.com",
		"https://www.example.com/",
	}
	for _, v := range variants {
		_, dom := NormalizeTarget(v)
		require.Equal(t, "example.com", dom, "input %q", v)
	}
}

func TestNormalizeTarget_MalformedFallsBackToTextualStrip(t *testing.T) {
	t.Parallel()

	_, dom := NormalizeTarget("http://exa mple.com/path")
	require.NotEmpty(t, dom)
	require.NotContains(t, dom, "/")

	_, dom = NormalizeTarget("%%%://bad host/x")
	require.NotEmpty(t, dom)
}

func TestNormalizeTarget_Empty(t *testing.T) {
	t.Parallel()

	u, dom := NormalizeTarget("   ")
	require.Empty(t, u)
	require.Empty(t, dom)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server:
  port: 9090
  request_timeout_seconds: 60
auth:
  enabled: true
  api_key: secret
logging:
  development: false
  level: warn
reader:
  endpoint: https://reader.example.com
  timeout_seconds: 10
headless:
  enabled: true
  max_parallel: 2
llm:
  primary:
    model: gpt-4o
    api_key: sk-test
  secondary:
    model: claude-sonnet-4-0
    api_key: ak-test
embedding:
  model: text-embedding-3-large
  dim: 3072
db:
  driver: postgres
  dsn: postgres://localhost/enrichd
freshness:
  interval_minutes: 30
similarity:
  threshold: 0.7
  limit: 3
archive:
  backend: local
  base_dir: /tmp/snapshots
pubsub:
  enabled: true
  project_id: proj-1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Auth.Enabled)
	assert.False(t, cfg.Logging.Development)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "https://reader.example.com", cfg.Reader.Endpoint)
	assert.Equal(t, 10, cfg.Reader.TimeoutSeconds)
	assert.Equal(t, "gpt-4o", cfg.LLM.Primary.Model)
	assert.Equal(t, 3072, cfg.Embedding.Dim)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, 30*time.Minute, cfg.FreshnessInterval())
	assert.Equal(t, 0.7, cfg.Similarity.Threshold)
	assert.Equal(t, "local", cfg.Archive.Backend)
	assert.Equal(t, "enrichment-completed", cfg.PubSub.TopicName)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout())
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
llm:
  primary:
    api_key: sk-test
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 20, cfg.Reader.TimeoutSeconds)
	assert.True(t, cfg.Direct.Enabled)
	assert.False(t, cfg.Headless.Enabled)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Primary.Model)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 1536, cfg.Embedding.Dim)
	assert.Equal(t, "entities", cfg.DB.Table)
	assert.Equal(t, time.Hour, cfg.FreshnessInterval())
	assert.Equal(t, 0.5, cfg.Similarity.Threshold)
	assert.Equal(t, 5, cfg.Similarity.Limit)
	assert.Equal(t, "snapshots", cfg.Archive.Prefix)
}

func TestLoadValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing llm keys",
			yaml: `server: {port: 8080}`,
			want: "llm.primary.api_key",
		},
		{
			name: "auth enabled without key",
			yaml: `
auth: {enabled: true}
llm: {primary: {api_key: sk}}
`,
			want: "auth.api_key",
		},
		{
			name: "postgres without dsn",
			yaml: `
db: {driver: postgres}
llm: {primary: {api_key: sk}}
`,
			want: "db.dsn",
		},
		{
			name: "unknown archive backend",
			yaml: `
archive: {backend: s3}
llm: {primary: {api_key: sk}}
`,
			want: "archive.backend",
		},
		{
			name: "pubsub without project",
			yaml: `
pubsub: {enabled: true}
llm: {primary: {api_key: sk}}
`,
			want: "pubsub.project_id",
		},
		{
			name: "bad similarity threshold",
			yaml: `
similarity: {threshold: 1.5}
llm: {primary: {api_key: sk}}
`,
			want: "similarity.threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

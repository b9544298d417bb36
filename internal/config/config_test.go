package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/akolanti/AskStan/internal/domain/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func validServerEnv() map[string]string {
	return map[string]string{
		"WATSONX_API_KEY":    "key",
		"WATSONX_PROJECT_ID": "project",
		"CHAT_TURNS_LIMIT":   "3",
		"QR_TEXT":            "https://example.com/survey",
	}
}

func TestLoad_ServerDefaults(t *testing.T) {
	cfg, err := LoadWithLookup("", ScopeServer, mapLookup(validServerEnv()))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Chat.TurnsLimit)
	assert.Equal(t, "https://example.com/survey", cfg.Chat.QRText)
	assert.Equal(t, DefaultSystemPrompt, cfg.Chat.SystemPrompt)
	assert.Equal(t, "ibm/granite-20b-multilingual", cfg.Watsonx.ModelID)
	assert.Equal(t, "http://localhost:19530", cfg.Vector.MilvusURI)
	assert.Equal(t, "instana_docs", cfg.Vector.Collection)
	assert.Equal(t, 1000, cfg.Ingest.ChunkSize)
	assert.Equal(t, 200, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, 10, cfg.RAG.TopK)
	assert.InDelta(t, 0.1, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 800, cfg.LLM.MaxTokens)
	assert.False(t, cfg.IsProd())
}

func TestLoad_LegacyAPIKeyName(t *testing.T) {
	env := validServerEnv()
	delete(env, "WATSONX_API_KEY")
	env["WATSONX_APIKEY"] = "legacy"

	cfg, err := LoadWithLookup("", ScopeServer, mapLookup(env))
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.Watsonx.APIKey)
}

func TestLoad_MissingRequiredIsConfigError(t *testing.T) {
	_, err := LoadWithLookup("", ScopeServer, mapLookup(map[string]string{}))
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ConfigError))

	var problems ValidationErrors
	require.True(t, errors.As(err, &problems))

	fields := map[string]bool{}
	for _, p := range problems {
		fields[p.Field] = true
	}
	assert.True(t, fields["CHAT_TURNS_LIMIT"])
	assert.True(t, fields["QR_TEXT"])
	assert.True(t, fields["WATSONX_API_KEY"])
	assert.True(t, fields["WATSONX_PROJECT_ID"])
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		field string
	}{
		{"non numeric limit", "CHAT_TURNS_LIMIT", "five", "CHAT_TURNS_LIMIT"},
		{"zero limit", "CHAT_TURNS_LIMIT", "0", "CHAT_TURNS_LIMIT"},
		{"overlap too large", "CHUNK_OVERLAP", "1000", "CHUNK_OVERLAP"},
		{"unknown backend", "VECTOR_STORE", "pinecone", "VECTOR_STORE"},
		{"unknown provider", "LLM_PROVIDER", "openai", "LLM_PROVIDER"},
		{"bad duration", "SESSION_TTL", "tomorrow", "SESSION_TTL"},
		{"bad log level", "LOG_LEVEL", "loud", "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := validServerEnv()
			env[tt.key] = tt.value

			_, err := LoadWithLookup("", ScopeServer, mapLookup(env))
			require.Error(t, err)

			var problems ValidationErrors
			require.True(t, errors.As(err, &problems))
			found := false
			for _, p := range problems {
				if p.Field == tt.field {
					found = true
				}
			}
			assert.True(t, found, "expected a problem for %s, got %v", tt.field, problems)
		})
	}
}

func TestLoad_IngestScopeSkipsChatSettings(t *testing.T) {
	env := map[string]string{
		"WATSONX_API_KEY":    "key",
		"WATSONX_PROJECT_ID": "project",
	}
	cfg, err := LoadWithLookup("", ScopeIngest, mapLookup(env))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Chat.TurnsLimit)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "askstan.yaml")
	content := `
chat:
  turns_limit: 7
  qr_text: https://yaml.example
vector:
  backend: chromem
  collection: from_yaml
redis:
  session_ttl: 2h
log:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	env := map[string]string{
		"WATSONX_API_KEY":    "key",
		"WATSONX_PROJECT_ID": "project",
		"CHAT_TURNS_LIMIT":   "2",
	}
	cfg, err := LoadWithLookup(path, ScopeServer, mapLookup(env))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Chat.TurnsLimit, "env overrides yaml")
	assert.Equal(t, "https://yaml.example", cfg.Chat.QRText)
	assert.Equal(t, BackendChromem, cfg.Vector.Backend)
	assert.Equal(t, "from_yaml", cfg.Vector.Collection)
	assert.Equal(t, 2*time.Hour, cfg.Redis.SessionTTL)
	assert.True(t, cfg.IsProd())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := LoadWithLookup(filepath.Join(t.TempDir(), "nope.yaml"), ScopeServer, mapLookup(validServerEnv()))
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ConfigError))
}

package providers

import (
	"context"
	"testing"

	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/domain/apperror"
	"github.com/akolanti/AskStan/internal/rag/embedding/watsonxEmbedding"
	"github.com/akolanti/AskStan/internal/rag/llm/watsonx"
	"github.com/akolanti/AskStan/internal/rag/vectorDB/chromemDB"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Watsonx.APIKey = "key"
	cfg.Watsonx.ProjectID = "project"
	cfg.Vector.Backend = config.BackendChromem
	return cfg
}

func TestSet_DefaultsToWatsonx(t *testing.T) {
	set := New(testConfig())
	if set.tokens == nil {
		t.Fatal("watsonx providers need an IAM token source")
	}

	emb, err := set.Embedder(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := emb.(*watsonxEmbedding.Client); !ok {
		t.Errorf("embedder is %T", emb)
	}

	provider, err := set.LLM(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := provider.(*watsonx.Client); !ok {
		t.Errorf("llm is %T", provider)
	}
}

func TestSet_ChromemStore(t *testing.T) {
	store, err := New(testConfig()).VectorStore(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, ok := store.(*chromemDB.Store); !ok {
		t.Errorf("store is %T", store)
	}
}

func TestSet_UnknownBackends(t *testing.T) {
	cfg := testConfig()
	cfg.Vector.Backend = "pinecone"
	cfg.LLM.Provider = "openai"
	cfg.LLM.EmbeddingProvider = "openai"
	set := New(cfg)

	if _, err := set.VectorStore(context.Background()); !apperror.Is(err, apperror.ConfigError) {
		t.Errorf("vector store: expected ConfigError, got %v", err)
	}
	if _, err := set.LLM(context.Background()); !apperror.Is(err, apperror.ConfigError) {
		t.Errorf("llm: expected ConfigError, got %v", err)
	}
	if _, err := set.Embedder(context.Background()); !apperror.Is(err, apperror.ConfigError) {
		t.Errorf("embedder: expected ConfigError, got %v", err)
	}
	if set.tokens != nil {
		t.Error("no watsonx provider selected, no token source expected")
	}
}

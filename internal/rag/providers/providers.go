// Package providers builds the embedding, generation and vector store
// backends selected in the configuration.
package providers

import (
	"context"
	"fmt"

	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/customHttpClient"
	"github.com/akolanti/AskStan/internal/domain/apperror"
	"github.com/akolanti/AskStan/internal/rag/embedding"
	"github.com/akolanti/AskStan/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/AskStan/internal/rag/embedding/watsonxEmbedding"
	"github.com/akolanti/AskStan/internal/rag/llm"
	"github.com/akolanti/AskStan/internal/rag/llm/gemini"
	"github.com/akolanti/AskStan/internal/rag/llm/watsonx"
	"github.com/akolanti/AskStan/internal/rag/vectorDB"
	"github.com/akolanti/AskStan/internal/rag/vectorDB/chromemDB"
	"github.com/akolanti/AskStan/internal/rag/vectorDB/milvusDB"
	"github.com/akolanti/AskStan/internal/rag/vectorDB/qdrantDB"
)

// Set shares one IAM token cache between the watsonx embedder and chat model.
type Set struct {
	cfg    *config.Config
	tokens *customHttpClient.IAMTokenSource
}

func New(cfg *config.Config) *Set {
	s := &Set{cfg: cfg}
	if cfg.LLM.Provider == config.ProviderWatsonx || cfg.LLM.EmbeddingProvider == config.ProviderWatsonx {
		s.tokens = customHttpClient.NewIAMTokenSource(cfg.Watsonx.IAMURL, cfg.Watsonx.APIKey)
	}
	return s
}

func (s *Set) Embedder(ctx context.Context) (embedding.Embedder, error) {
	switch s.cfg.LLM.EmbeddingProvider {
	case config.ProviderWatsonx:
		return watsonxEmbedding.NewClient(s.cfg.Watsonx, s.tokens), nil
	case config.ProviderGemini:
		c, err := googleEmbedding.NewClient(ctx, s.cfg.Gemini.EmbeddingModel, s.cfg.Gemini.APIKey)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, apperror.Config("embedding provider", fmt.Errorf("unsupported provider %q", s.cfg.LLM.EmbeddingProvider))
	}
}

func (s *Set) LLM(ctx context.Context) (llm.Provider, error) {
	switch s.cfg.LLM.Provider {
	case config.ProviderWatsonx:
		return watsonx.NewClient(s.cfg.Watsonx, s.tokens), nil
	case config.ProviderGemini:
		c, err := gemini.NewClient(ctx, s.cfg.Gemini.Model, s.cfg.Gemini.APIKey)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, apperror.Config("llm provider", fmt.Errorf("unsupported provider %q", s.cfg.LLM.Provider))
	}
}

func (s *Set) VectorStore(ctx context.Context) (vectorDB.Store, error) {
	v := s.cfg.Vector
	switch v.Backend {
	case config.BackendMilvus:
		store, err := milvusDB.NewStore(ctx, v.MilvusURI, v.MilvusToken, v.Collection)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendQdrant:
		store, err := qdrantDB.NewStore(v.QdrantHost, v.QdrantPort, v.Collection)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendChromem:
		store, err := chromemDB.NewStore(v.ChromemPath, v.Collection)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, apperror.Config("vector store", fmt.Errorf("unsupported backend %q", v.Backend))
	}
}

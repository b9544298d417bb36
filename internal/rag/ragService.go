package rag

import (
	"context"

	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/domain/chatModel"
	"github.com/akolanti/AskStan/internal/rag/llm"
	"github.com/akolanti/AskStan/pkg/logger_i"
)

/*
Service is the only thing the chat controller calls. The private service
struct holds the retriever and the llm provider so callers never reach the
vector store or the model directly, and tests can swap the whole thing for
a mock.
*/

type Answer struct {
	Retrieval Retrieval
	Fragments llm.Stream
}

type Service interface {
	// Answer retrieves context for input and opens the generation stream.
	// history holds the completed turns before input.
	Answer(ctx context.Context, history []chatModel.Turn, input string) (Answer, error)
}

type Options struct {
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

type service struct {
	retriever   *Retriever
	llmProvider llm.Provider
	opts        Options
	logger      *logger_i.Logger
}

func NewService(retriever *Retriever, provider llm.Provider, opts Options) Service {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = config.DefaultSystemPrompt
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 800
	}
	return &service{
		retriever:   retriever,
		llmProvider: provider,
		opts:        opts,
		logger:      logger_i.NewLogger("rag_service"),
	}
}

func (s *service) Answer(ctx context.Context, history []chatModel.Turn, input string) (Answer, error) {
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY)

	retrieval, err := s.retriever.Retrieve(ctx, input, 0)
	if err != nil {
		return Answer{}, err
	}
	log.Debug("retrieval done", "documents", retrieval.TotalDocuments, "degraded", retrieval.Degraded)

	messages := BuildMessages(s.opts.SystemPrompt, retrieval, history, input)
	stream, err := s.executeLLMStep(ctx, llm.Request{
		Messages:    messages,
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		log.Error("LLM_GENERATION_FAILURE", "error", err)
		return Answer{Retrieval: retrieval}, err
	}

	return Answer{Retrieval: retrieval, Fragments: stream}, nil
}

package rag_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/akolanti/AskStan/internal/domain/apperror"
	"github.com/akolanti/AskStan/internal/domain/chatModel"
	"github.com/akolanti/AskStan/internal/domain/commonModels"
	"github.com/akolanti/AskStan/internal/rag"
	"github.com/akolanti/AskStan/internal/rag/llm"
)

func hit(source string, page int, score float32, text string) commonModels.SearchHit {
	return commonModels.SearchHit{
		RecordId: source + "-" + text,
		Score:    score,
		Chunk: commonModels.DocChunk{
			Doc:        commonModels.Document{Name: source},
			ChunkIndex: page - 1,
			Text:       text,
			PageNum:    page,
		},
	}
}

func defaultOptions() rag.RetrievalOptions {
	return rag.RetrievalOptions{TopK: 10, ScoreThreshold: 0.3, ContextMaxChars: 4000, ChunkPreviewChars: 400}
}

func TestRetrieve_FilterSortAndFormat(t *testing.T) {
	var gotK int
	store := &MockVectorDB{
		OnSimilaritySearch: func(ctx context.Context, v []float32, k int) ([]commonModels.SearchHit, error) {
			gotK = k
			return []commonModels.SearchHit{
				hit("install.pdf", 3, 0.52, "agent install"),
				hit("install.pdf", 1, 0.91, "overview"),
				hit("faq.pdf", 2, 0.12, "unrelated"),
			}, nil
		},
	}
	r := rag.NewRetriever(&MockEmbedder{}, store, defaultOptions())

	res, err := r.Retrieve(context.Background(), "how do I install the agent?", 0)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	if gotK != 10 {
		t.Errorf("k = %d; want the default 10", gotK)
	}
	if res.TotalDocuments != 2 || len(res.Sources) != 2 {
		t.Fatalf("expected 2 documents above threshold, got %+v", res)
	}
	want := "[Document 1 (install.pdf, page 1, score 0.910)]\noverview\n\n[Document 2 (install.pdf, page 3, score 0.520)]\nagent install"
	if res.Context != want {
		t.Errorf("context mismatch:\n got %q\nwant %q", res.Context, want)
	}
	if res.Sources[0].Score != 0.91 || res.Sources[0].DocumentIndex != 1 || res.Sources[1].Page != 3 {
		t.Errorf("unexpected sources %+v", res.Sources)
	}
	if res.AverageScore != 0.715 {
		t.Errorf("average score = %v; want 0.715", res.AverageScore)
	}
	if res.Degraded {
		t.Error("successful retrieval should not be degraded")
	}
}

func TestRetrieve_Truncation(t *testing.T) {
	long := strings.Repeat("가", 500)
	store := &MockVectorDB{
		OnSimilaritySearch: func(ctx context.Context, v []float32, k int) ([]commonModels.SearchHit, error) {
			hits := make([]commonModels.SearchHit, 0, 20)
			for i := 0; i < 20; i++ {
				hits = append(hits, hit("big.pdf", i+1, 0.8, long))
			}
			return hits, nil
		},
	}
	r := rag.NewRetriever(&MockEmbedder{}, store, defaultOptions())

	res, err := r.Retrieve(context.Background(), "q", 20)
	if err != nil {
		t.Fatal(err)
	}
	if n := utf8.RuneCountInString(res.Context); n != 4000 {
		t.Errorf("context length = %d runes; want 4000", n)
	}
	if !utf8.ValidString(res.Context) {
		t.Error("context was cut inside a character")
	}
	if !strings.Contains(res.Context, strings.Repeat("가", 400)+"...") {
		t.Error("chunk text should be cut to 400 characters with a suffix")
	}
	if n := utf8.RuneCountInString(res.Sources[0].Preview); n != 103 {
		t.Errorf("preview length = %d; want 100 + suffix", n)
	}
}

func TestRetrieve_DegradesOnFailure(t *testing.T) {
	tests := []struct {
		name     string
		embedder *MockEmbedder
		store    *MockVectorDB
	}{
		{
			name:     "store unreachable",
			embedder: &MockEmbedder{},
			store: &MockVectorDB{OnSimilaritySearch: func(ctx context.Context, v []float32, k int) ([]commonModels.SearchHit, error) {
				return nil, apperror.Store("search", errors.New("connection refused"))
			}},
		},
		{
			name: "embedding failure",
			embedder: &MockEmbedder{OnGetEmbedding: func(ctx context.Context, text string) ([]float32, error) {
				return nil, apperror.Provider("embed", errors.New("401"))
			}},
			store: &MockVectorDB{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := rag.NewRetriever(tt.embedder, tt.store, defaultOptions())
			res, err := r.Retrieve(context.Background(), "q", 0)
			if err != nil {
				t.Fatalf("retrieval should degrade, got error %v", err)
			}
			if !res.Degraded || res.Context != "" || res.TotalDocuments != 0 {
				t.Errorf("expected an empty degraded retrieval, got %+v", res)
			}
		})
	}
}

func TestRetrieve_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	embedder := &MockEmbedder{OnGetEmbedding: func(ctx context.Context, text string) ([]float32, error) {
		return nil, ctx.Err()
	}}
	r := rag.NewRetriever(embedder, &MockVectorDB{}, defaultOptions())

	if _, err := r.Retrieve(ctx, "q", 0); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBuildMessages(t *testing.T) {
	history := []chatModel.Turn{
		{Role: chatModel.RoleUser, Content: "first question"},
		{Role: chatModel.RoleAssistant, Content: "first answer"},
	}

	msgs := rag.BuildMessages("system prompt", rag.Retrieval{Context: "[Document 1 (a.pdf, page 1, score 0.900)]\ntext"}, history, "second question")

	wantRoles := []llm.Role{llm.RoleSystem, llm.RoleUser, llm.RoleAssistant, llm.RoleUser}
	if len(msgs) != len(wantRoles) {
		t.Fatalf("expected %d messages, got %d", len(wantRoles), len(msgs))
	}
	for i, m := range msgs {
		if m.Role != wantRoles[i] {
			t.Errorf("message %d role = %s; want %s", i, m.Role, wantRoles[i])
		}
	}
	last := msgs[3].Content
	for _, want := range []string{"second question", "[Document 1 (a.pdf", rag.MissingInfoNote} {
		if !strings.Contains(last, want) {
			t.Errorf("enhanced input missing %q:\n%s", want, last)
		}
	}

	empty := rag.BuildMessages("system prompt", rag.Retrieval{}, nil, "q")
	if len(empty) != 2 || !strings.Contains(empty[1].Content, rag.NoDocumentsNote) {
		t.Errorf("expected the no-documents note, got %+v", empty)
	}
}

func TestAnswer(t *testing.T) {
	store := &MockVectorDB{OnSimilaritySearch: func(ctx context.Context, v []float32, k int) ([]commonModels.SearchHit, error) {
		return []commonModels.SearchHit{hit("a.pdf", 1, 0.9, "text")}, nil
	}}
	llmMock := &MockLLM{}
	svc := rag.NewService(rag.NewRetriever(&MockEmbedder{}, store, defaultOptions()), llmMock, rag.Options{
		SystemPrompt: "be helpful",
		Temperature:  0.1,
		MaxTokens:    800,
	})

	ans, err := svc.Answer(context.Background(), nil, "question")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	text, err := llm.Collect(ans.Fragments)
	if err != nil || text != "mocked llm response" {
		t.Errorf("fragments = %q, %v", text, err)
	}
	if ans.Retrieval.TotalDocuments != 1 {
		t.Errorf("retrieval not returned: %+v", ans.Retrieval)
	}
	if llmMock.LastReq.MaxTokens != 800 || llmMock.LastReq.Messages[0].Content != "be helpful" {
		t.Errorf("unexpected request %+v", llmMock.LastReq)
	}
}

func TestAnswer_ProviderFailure(t *testing.T) {
	llmMock := &MockLLM{OnStream: func(ctx context.Context, req llm.Request) (llm.Stream, error) {
		return nil, apperror.LLM("chat stream", errors.New("provider down"))
	}}
	svc := rag.NewService(rag.NewRetriever(&MockEmbedder{}, &MockVectorDB{}, defaultOptions()), llmMock, rag.Options{})

	_, err := svc.Answer(context.Background(), nil, "question")
	if !apperror.Is(err, apperror.LLMError) {
		t.Errorf("expected LLMError, got %v", err)
	}
}

package watsonx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/domain/apperror"
	"github.com/akolanti/AskStan/internal/rag/llm"
)

func sseServer(t *testing.T, events ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ml/v1/text/chat_stream" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad body: %v", err)
		}
		if req.ProjectId != "proj-1" || req.MaxTokens != 800 || len(req.Messages) != 2 {
			t.Errorf("unexpected request %+v", req)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, e := range events {
			fmt.Fprintf(w, "id: 1\nevent: message\ndata: %s\n\n", e)
		}
	}))
}

func delta(text string) string {
	return fmt.Sprintf(`{"choices":[{"index":0,"delta":{"role":"assistant","content":%q}}]}`, text)
}

func newTestClient(srv *httptest.Server) *Client {
	return newClient(config.WatsonxConfig{
		URL:        srv.URL,
		ProjectID:  "proj-1",
		ModelID:    "ibm/granite",
		APIVersion: "2024-05-31",
	}, srv.Client())
}

func testRequest() llm.Request {
	return llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "be helpful"},
			{Role: llm.RoleUser, Content: "hi"},
		},
		Temperature: 0.1,
		MaxTokens:   800,
	}
}

func TestStream(t *testing.T) {
	tests := []struct {
		name     string
		events   []string
		wantText string
		wantErr  bool
	}{
		{
			name:     "done marker",
			events:   []string{delta("Hello"), delta(""), delta(", world"), "[DONE]", delta("ignored")},
			wantText: "Hello, world",
		},
		{
			name:     "end of body",
			events:   []string{delta("a"), delta("b")},
			wantText: "ab",
		},
		{
			name:     "error event mid-stream",
			events:   []string{delta("par"), `{"errors":[{"code":"model_error","message":"overloaded"}]}`},
			wantText: "par",
			wantErr:  true,
		},
		{
			name:    "malformed event",
			events:  []string{`{not json`},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := sseServer(t, tt.events...)
			defer srv.Close()

			stream, err := newTestClient(srv).Stream(context.Background(), testRequest())
			if err != nil {
				t.Fatalf("Stream failed: %v", err)
			}
			text, err := llm.Collect(stream)
			if text != tt.wantText {
				t.Errorf("text = %q; want %q", text, tt.wantText)
			}
			if tt.wantErr != (err != nil) {
				t.Fatalf("err = %v; wantErr %v", err, tt.wantErr)
			}
			if err != nil && !apperror.Is(err, apperror.LLMError) {
				t.Errorf("expected LLMError, got %v", err)
			}
		})
	}
}

func TestStream_RejectedRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"errors":[{"code":"no_associated_service_instance_error","message":"project not found"}]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Stream(context.Background(), testRequest())
	if !apperror.Is(err, apperror.LLMError) || !apperror.Is(err, apperror.ProviderError) {
		t.Errorf("expected LLMError, got %v", err)
	}
}

func TestStream_SingleUse(t *testing.T) {
	srv := sseServer(t, delta("once"), "[DONE]")
	defer srv.Close()

	stream, err := newTestClient(srv).Stream(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if text, _ := llm.Collect(stream); text != "once" {
		t.Errorf("first range = %q", text)
	}
	if _, err := llm.Collect(stream); err == nil {
		t.Error("second range should fail")
	}
}

package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/akolanti/AskStan/internal/api"
	"github.com/akolanti/AskStan/internal/chat"
	"github.com/akolanti/AskStan/internal/data/store"
	"github.com/akolanti/AskStan/internal/domain/apperror"
	"github.com/akolanti/AskStan/internal/domain/chatModel"
	"github.com/akolanti/AskStan/internal/domain/jobModel"
	"github.com/akolanti/AskStan/internal/job"
	"github.com/akolanti/AskStan/internal/rag"
	"github.com/akolanti/AskStan/internal/rag/llm"
	"github.com/go-chi/chi/v5"
)

type mockRAG struct {
	OnAnswer func(ctx context.Context, history []chatModel.Turn, input string) (rag.Answer, error)
}

func (m *mockRAG) Answer(ctx context.Context, history []chatModel.Turn, input string) (rag.Answer, error) {
	if m.OnAnswer != nil {
		return m.OnAnswer(ctx, history, input)
	}
	return rag.Answer{
		Retrieval: rag.Retrieval{
			TotalDocuments: 1,
			AverageScore:   0.9,
			Sources:        []rag.Source{{DocumentIndex: 1, Source: "install.pdf", Page: 2, Score: 0.9}},
		},
		Fragments: llm.OnceStream(func(yield func(string, error) bool) {
			for _, p := range []string{"Install ", "the agent."} {
				if !yield(p, nil) {
					return
				}
			}
		}),
	}, nil
}

type sseEvent struct {
	name string
	data string
}

func readEvents(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var current sseEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if current.name != "" {
				events = append(events, current)
			}
			current = sseEvent{}
		}
	}
	return events
}

func chatRouter(svc rag.Service, limit int) *chi.Mux {
	controller := chat.NewController(store.InitInMemorySessionStore(), svc, chat.Options{
		TurnsLimit: limit,
		QRText:     "https://example.com/survey",
	})
	h := NewChatHandler(controller)

	r := chi.NewRouter()
	r.Get("/", IndexHandler)
	r.Get("/healthz", GetHandler)
	r.Post("/api/sessions", h.CreateSessionHandler)
	r.Get("/api/sessions/{id}", h.GetSessionHandler)
	r.Post("/api/sessions/{id}/messages", h.PostMessageHandler)
	r.Get("/api/sessions/{id}/qr", h.GetQRCodeHandler)
	return r
}

func createSession(t *testing.T, r http.Handler) api.SessionResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session status = %d", rec.Code)
	}
	var session api.SessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&session); err != nil {
		t.Fatal(err)
	}
	return session
}

func postMessage(r http.Handler, id string, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	return rec
}

func TestChatFlow_StreamsThenLocks(t *testing.T) {
	r := chatRouter(&mockRAG{}, 1)
	session := createSession(t, r)

	if session.TurnsLimit != 1 || session.Locked || session.State != "ACTIVE" {
		t.Fatalf("unexpected new session %+v", session)
	}

	rec := postMessage(r, session.SessionId, `{"message":"How do I install the agent?"}`)
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	events := readEvents(t, rec.Body.String())
	var names []string
	var text strings.Builder
	for _, e := range events {
		names = append(names, e.name)
		if e.name == api.EventToken {
			var tok api.TokenEvent
			_ = json.Unmarshal([]byte(e.data), &tok)
			text.WriteString(tok.Text)
		}
	}
	want := []string{"sources", "token", "token", "done"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v; want %v", names, want)
	}
	if text.String() != "Install the agent." {
		t.Errorf("streamed text = %q", text.String())
	}

	var done api.DoneEvent
	_ = json.Unmarshal([]byte(events[3].data), &done)
	if !done.Locked || done.TurnCount != 1 || done.QRURL != "/api/sessions/"+session.SessionId+"/qr" {
		t.Errorf("unexpected done event %+v", done)
	}

	rec = postMessage(r, session.SessionId, `{"message":"one more?"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("locked session status = %d; want 409", rec.Code)
	}
	var locked api.LockedResponse
	_ = json.NewDecoder(rec.Body).Decode(&locked)
	if !locked.Locked || locked.QRURL == "" {
		t.Errorf("unexpected locked response %+v", locked)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, locked.QRURL, nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("qr status = %d, type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("qr body is not a png")
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+session.SessionId, nil))
	var snapshot api.SessionResponse
	_ = json.NewDecoder(rec.Body).Decode(&snapshot)
	if len(snapshot.History) != 2 || snapshot.History[1].Content != "Install the agent." || !snapshot.Locked {
		t.Errorf("unexpected snapshot %+v", snapshot)
	}
}

func TestChatFlow_ProviderFailureIsVisible(t *testing.T) {
	svc := &mockRAG{OnAnswer: func(ctx context.Context, history []chatModel.Turn, input string) (rag.Answer, error) {
		return rag.Answer{}, apperror.LLM("chat stream", errors.New("503 service unavailable"))
	}}
	r := chatRouter(svc, 2)
	session := createSession(t, r)

	rec := postMessage(r, session.SessionId, `{"message":"hello"}`)
	events := readEvents(t, rec.Body.String())
	if len(events) != 1 || events[0].name != api.EventError {
		t.Fatalf("expected a single error event, got %+v", events)
	}
	var e api.ErrorEvent
	_ = json.Unmarshal([]byte(events[0].data), &e)
	if e.Message != msgProviderFailure {
		t.Errorf("error message = %q", e.Message)
	}
	if strings.Contains(rec.Body.String(), "503") {
		t.Error("upstream details should not reach the browser")
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+session.SessionId, nil))
	var snapshot api.SessionResponse
	_ = json.NewDecoder(rec.Body).Decode(&snapshot)
	if snapshot.TurnCount != 0 {
		t.Errorf("turn count after failure = %d; want 0", snapshot.TurnCount)
	}
}

func TestChatHandler_Rejections(t *testing.T) {
	r := chatRouter(&mockRAG{}, 2)
	session := createSession(t, r)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed json", http.MethodPost, "/api/sessions/" + session.SessionId + "/messages", `{"message":`, http.StatusBadRequest},
		{"blank message", http.MethodPost, "/api/sessions/" + session.SessionId + "/messages", `{"message":"   "}`, http.StatusBadRequest},
		{"unknown session message", http.MethodPost, "/api/sessions/nope/messages", `{"message":"hi"}`, http.StatusNotFound},
		{"unknown session get", http.MethodGet, "/api/sessions/nope", "", http.StatusNotFound},
		{"qr while active", http.MethodGet, "/api/sessions/" + session.SessionId + "/qr", "", http.StatusConflict},
		{"qr bad size", http.MethodGet, "/api/sessions/" + session.SessionId + "/qr?size=5", "", http.StatusBadRequest},
		{"health", http.MethodGet, "/healthz", "", http.StatusOK},
		{"widget", http.MethodGet, "/", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Errorf("status = %d; want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func ingestRouter(t *testing.T) (*chi.Mux, *job.Service) {
	t.Helper()
	svc := job.InitJobService(job.ServiceConfig{
		JobChannel:        make(chan jobModel.Job, 4),
		DispatcherChannel: make(chan bool, 1),
		JobStore:          store.InitInMemoryJobStore(),
	})
	h := NewJobHandler(svc, t.TempDir())

	r := chi.NewRouter()
	r.Post("/ingest", h.PostIngestHandler)
	r.Get("/status/{id}", h.GetStatusHandler)
	return r, svc
}

func upload(t *testing.T, r http.Handler, filename string, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("document", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte(content))
	_ = mw.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ingest", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(rec, req)
	return rec
}

func TestIngestUpload_QueuesJob(t *testing.T) {
	r, svc := ingestRouter(t)

	rec := upload(t, r, "notes.txt", "Instana agents report to the backend.")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var init api.InitJobResponse
	_ = json.NewDecoder(rec.Body).Decode(&init)
	if init.StatusURL != "status/"+init.Id {
		t.Errorf("status url = %q", init.StatusURL)
	}

	queued := <-svc.JobChannel
	if queued.Id != init.Id || queued.JobPayload.IngestFileName != "notes.txt" {
		t.Errorf("unexpected queued job %+v", queued)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+init.StatusURL, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status lookup = %d", rec.Code)
	}
	var status api.JobResponse
	_ = json.NewDecoder(rec.Body).Decode(&status)
	if status.Result.Status != string(jobModel.JobStatusQueued) {
		t.Errorf("job status = %q", status.Result.Status)
	}
}

func TestIngestUpload_Rejections(t *testing.T) {
	r, _ := ingestRouter(t)

	if rec := upload(t, r, "malware.exe", "MZ"); rec.Code != http.StatusBadRequest {
		t.Errorf("unsupported upload status = %d", rec.Code)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/ghost", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d", rec.Code)
	}
}

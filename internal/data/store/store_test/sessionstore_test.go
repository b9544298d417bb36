package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/akolanti/AskStan/internal/data/redisStore"
	"github.com/akolanti/AskStan/internal/data/store"
	"github.com/akolanti/AskStan/internal/domain/apperror"
	"github.com/akolanti/AskStan/internal/domain/chatModel"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func sampleSession() chatModel.Session {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return chatModel.Session{
		Id:        "session-1",
		TurnCount: 1,
		History: []chatModel.Turn{
			{Role: chatModel.RoleUser, Content: "How do I install the agent?", Timestamp: now},
			{Role: chatModel.RoleAssistant, Content: "Run the one-liner installer.", Timestamp: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSessionStores(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	stores := []struct {
		name  string
		store chatModel.SessionStore
	}{
		{"in memory", store.InitInMemorySessionStore()},
		{"redis", store.TestSessionStore(redisStore.NewTestStore(client), time.Hour)},
	}

	for _, tt := range stores {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			session := sampleSession()

			if _, found, err := tt.store.GetSession(ctx, session.Id); found || err != nil {
				t.Fatalf("empty store returned found=%v err=%v", found, err)
			}

			if err := tt.store.SaveSession(ctx, session); err != nil {
				t.Fatalf("SaveSession failed: %v", err)
			}

			got, found, err := tt.store.GetSession(ctx, session.Id)
			if err != nil || !found {
				t.Fatalf("GetSession found=%v err=%v", found, err)
			}
			if got.TurnCount != 1 || len(got.History) != 2 || got.History[1].Content != "Run the one-liner installer." {
				t.Errorf("unexpected session %+v", got)
			}
			if !got.CreatedAt.Equal(session.CreatedAt) {
				t.Errorf("created at = %v; want %v", got.CreatedAt, session.CreatedAt)
			}

			got.History = append(got.History, chatModel.Turn{Role: chatModel.RoleUser, Content: "unsaved"})
			again, _, _ := tt.store.GetSession(ctx, session.Id)
			if len(again.History) != 2 {
				t.Error("mutating a loaded session changed the stored copy")
			}

			if err := tt.store.DeleteSession(ctx, session.Id); err != nil {
				t.Fatalf("DeleteSession failed: %v", err)
			}
			if _, found, _ := tt.store.GetSession(ctx, session.Id); found {
				t.Error("session should be gone after delete")
			}
		})
	}
}

func TestRedisSessionStore_TTLAndFailures(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := store.TestSessionStore(redisStore.NewTestStore(client), 2*time.Hour)
	ctx := context.Background()

	if err := sessions.SaveSession(ctx, sampleSession()); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("chat_session:session-1"); ttl != 2*time.Hour {
		t.Errorf("ttl = %v; want 2h", ttl)
	}

	mr.FastForward(3 * time.Hour)
	if _, found, _ := sessions.GetSession(ctx, "session-1"); found {
		t.Error("session should expire after its TTL")
	}

	mr.Set("chat_session:broken", "{oops")
	if _, _, err := sessions.GetSession(ctx, "broken"); !apperror.Is(err, apperror.StoreError) {
		t.Errorf("expected StoreError for corrupt data, got %v", err)
	}

	mr.Close()
	if err := sessions.SaveSession(ctx, sampleSession()); !apperror.Is(err, apperror.StoreError) {
		t.Errorf("expected StoreError with redis down, got %v", err)
	}
}

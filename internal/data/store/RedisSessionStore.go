package store

import (
	"context"
	"time"

	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/data/redisStore"
	"github.com/akolanti/AskStan/internal/domain/apperror"
	"github.com/akolanti/AskStan/internal/domain/chatModel"
	"github.com/akolanti/AskStan/pkg/logger_i"
)

const sessionKeyPrefix = "chat_session:"

// RedisSessionStore persists sessions as JSON. Every save refreshes the TTL.
type RedisSessionStore struct {
	store  *redisStore.Store
	ttl    time.Duration
	logger *logger_i.Logger
}

func NewRedisSessionStore(ctx context.Context, opts redisStore.Options, ttl time.Duration) (*RedisSessionStore, error) {
	s, err := redisStore.GetRedisStore(ctx, opts, config.RedisSessionStore)
	if err != nil {
		return nil, apperror.Store("connect session store", err)
	}
	return newRedisSessionStore(s, ttl), nil
}

func newRedisSessionStore(s *redisStore.Store, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{
		store:  s,
		ttl:    ttl,
		logger: logger_i.NewLogger("SessionStore"),
	}
}

func (s *RedisSessionStore) GetSession(ctx context.Context, id string) (chatModel.Session, bool, error) {
	var session chatModel.Session

	found, err := s.store.GetJSON(ctx, sessionKeyPrefix+id, &session)
	if err != nil {
		return chatModel.Session{}, false, apperror.Store("get session", err)
	}
	return session, found, nil
}

func (s *RedisSessionStore) SaveSession(ctx context.Context, session chatModel.Session) error {
	if err := s.store.SetJSON(ctx, sessionKeyPrefix+session.Id, session, s.ttl); err != nil {
		return apperror.Store("save session", err)
	}
	s.logger.WithTrace(ctx, config.TRACE_ID_KEY).Debug("Saved session", "sessionId", session.Id, "turns", session.TurnCount)
	return nil
}

func (s *RedisSessionStore) DeleteSession(ctx context.Context, id string) error {
	if err := s.store.Del(ctx, sessionKeyPrefix+id); err != nil {
		return apperror.Store("delete session", err)
	}
	return nil
}

func TestSessionStore(store *redisStore.Store, ttl time.Duration) *RedisSessionStore {
	return newRedisSessionStore(store, ttl)
}

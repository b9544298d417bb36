package store

import (
	"context"
	"sync"

	"github.com/akolanti/AskStan/internal/domain/chatModel"
)

// InMemorySessionStore keeps sessions for the life of the process.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]chatModel.Session
}

func InitInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[string]chatModel.Session),
	}
}

func (s *InMemorySessionStore) GetSession(ctx context.Context, id string) (chatModel.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, found := s.sessions[id]
	if !found {
		return chatModel.Session{}, false, nil
	}
	return session.Clone(), true, nil
}

func (s *InMemorySessionStore) SaveSession(ctx context.Context, session chatModel.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Id] = session.Clone()
	return nil
}

func (s *InMemorySessionStore) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

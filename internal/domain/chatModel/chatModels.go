package chatModel

import (
	"context"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type State string

const (
	StateActive State = "ACTIVE"
	StateLocked State = "LOCKED"
)

type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Session struct {
	Id           string    `json:"id"`
	TurnCount    int       `json:"turn_count"`
	History      []Turn    `json:"history"`
	LimitReached bool      `json:"limit_reached"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s Session) State() State {
	if s.LimitReached {
		return StateLocked
	}
	return StateActive
}

// Clone returns a copy whose history can be appended to without touching s.
func (s Session) Clone() Session {
	c := s
	c.History = append([]Turn(nil), s.History...)
	return c
}

type SessionStore interface {
	GetSession(ctx context.Context, id string) (Session, bool, error)
	SaveSession(ctx context.Context, session Session) error
	DeleteSession(ctx context.Context, id string) error
}

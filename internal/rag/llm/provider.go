package llm

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync/atomic"

	"github.com/akolanti/AskStan/internal/domain/apperror"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Stream yields response fragments in order. It can be ranged over once.
type Stream = iter.Seq2[string, error]

type Provider interface {
	// Stream starts a generation. Failures before the first fragment may be
	// returned directly or yielded by the stream; both are LLMErrors.
	Stream(ctx context.Context, req Request) (Stream, error)
}

var ErrStreamConsumed = errors.New("stream already consumed")

// OnceStream makes seq single-use: ranging a second time yields ErrStreamConsumed.
func OnceStream(seq iter.Seq2[string, error]) Stream {
	var used atomic.Bool
	return func(yield func(string, error) bool) {
		if used.Swap(true) {
			yield("", apperror.LLM("stream", ErrStreamConsumed))
			return
		}
		seq(yield)
	}
}

// Collect drains a stream into a single string.
func Collect(stream Stream) (string, error) {
	var sb strings.Builder
	for fragment, err := range stream {
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(fragment)
	}
	return sb.String(), nil
}

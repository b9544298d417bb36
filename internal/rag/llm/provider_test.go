package llm

import (
	"errors"
	"testing"

	"github.com/akolanti/AskStan/internal/domain/apperror"
)

func fragments(parts ...string) Stream {
	return OnceStream(func(yield func(string, error) bool) {
		for _, p := range parts {
			if !yield(p, nil) {
				return
			}
		}
	})
}

func TestOnceStream_SecondRangeFails(t *testing.T) {
	stream := fragments("Hel", "lo")

	text, err := Collect(stream)
	if err != nil || text != "Hello" {
		t.Fatalf("first range = %q, %v", text, err)
	}

	_, err = Collect(stream)
	if !errors.Is(err, ErrStreamConsumed) || !apperror.Is(err, apperror.LLMError) {
		t.Errorf("second range should fail with ErrStreamConsumed, got %v", err)
	}
}

func TestOnceStream_StopsWhenConsumerStops(t *testing.T) {
	produced := 0
	stream := OnceStream(func(yield func(string, error) bool) {
		for i := 0; i < 10; i++ {
			produced++
			if !yield("x", nil) {
				return
			}
		}
	})

	for range stream {
		break
	}
	if produced != 1 {
		t.Errorf("producer kept going after the consumer stopped: %d", produced)
	}
}

func TestCollect_ReturnsPartialTextOnError(t *testing.T) {
	boom := errors.New("boom")
	stream := OnceStream(func(yield func(string, error) bool) {
		if !yield("partial", nil) {
			return
		}
		yield("", boom)
	})

	text, err := Collect(stream)
	if !errors.Is(err, boom) || text != "partial" {
		t.Errorf("Collect = %q, %v", text, err)
	}
}

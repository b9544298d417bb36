package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	ConfigError   Kind = "ConfigError"
	ProviderError Kind = "ProviderError"
	LLMError      Kind = "LLMError"
	StoreError    Kind = "StoreError"
	IngestError   Kind = "IngestError"
)

// Error carries the failure class together with the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Config(op string, err error) *Error   { return New(ConfigError, op, err) }
func Provider(op string, err error) *Error { return New(ProviderError, op, err) }
func LLM(op string, err error) *Error      { return New(LLMError, op, err) }
func Store(op string, err error) *Error    { return New(StoreError, op, err) }
func Ingest(op string, err error) *Error   { return New(IngestError, op, err) }

// Is reports whether any error in err's chain is an *Error of the given kind.
// LLMError also matches ProviderError since generation is a provider call.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind || (kind == ProviderError && e.Kind == LLMError) {
			return true
		}
		err = e.Err
	}
	return false
}

// KindOf returns the kind of the outermost *Error in the chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

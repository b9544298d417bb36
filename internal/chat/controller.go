package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/domain/apperror"
	"github.com/akolanti/AskStan/internal/domain/chatModel"
	"github.com/akolanti/AskStan/internal/metrics"
	"github.com/akolanti/AskStan/internal/rag"
	"github.com/akolanti/AskStan/pkg/logger_i"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionLocked   = errors.New("session reached its turn limit")
	ErrSessionBusy     = errors.New("session is already answering a message")
	ErrEmptyInput      = errors.New("message is empty")
	ErrSessionActive   = errors.New("session has not reached its turn limit")
)

const (
	outcomeCompleted     = "completed"
	outcomeLocked        = "locked"
	outcomeBusy          = "busy"
	outcomeProviderError = "provider_error"
	outcomeCancelled     = "cancelled"
	outcomeStoreError    = "store_error"
)

type Options struct {
	TurnsLimit int
	QRText     string
	// ExchangeTimeout bounds retrieval plus the whole stream. Zero uses config.ExchangeTimeout.
	ExchangeTimeout time.Duration
}

// Outcome is the state after a completed exchange.
type Outcome struct {
	Session   chatModel.Session
	Retrieval rag.Retrieval
	Reply     string
}

type submitOptions struct {
	onSources func(rag.Retrieval)
}

type SubmitOption func(*submitOptions)

// WithSources is called once with the retrieval result, before the first fragment.
func WithSources(fn func(rag.Retrieval)) SubmitOption {
	return func(o *submitOptions) {
		o.onSources = fn
	}
}

type Controller struct {
	store  chatModel.SessionStore
	svc    rag.Service
	opts   Options
	logger *logger_i.Logger

	busyMu sync.Mutex
	busy   map[string]struct{}
}

func NewController(store chatModel.SessionStore, svc rag.Service, opts Options) *Controller {
	if opts.ExchangeTimeout <= 0 {
		opts.ExchangeTimeout = config.ExchangeTimeout
	}
	return &Controller{
		store:  store,
		svc:    svc,
		opts:   opts,
		logger: logger_i.NewLogger("chat_controller"),
		busy:   make(map[string]struct{}),
	}
}

func (c *Controller) TurnsLimit() int {
	return c.opts.TurnsLimit
}

// Start opens a fresh ACTIVE session.
func (c *Controller) Start(ctx context.Context) (chatModel.Session, error) {
	now := time.Now().UTC()
	session := chatModel.Session{
		Id:        uuid.NewString(),
		History:   []chatModel.Turn{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.SaveSession(ctx, session); err != nil {
		return chatModel.Session{}, err
	}
	metrics.IncrementSessionsStarted()
	c.logger.WithTrace(ctx, config.TRACE_ID_KEY).Info("session started", "sessionId", session.Id)
	return session, nil
}

func (c *Controller) Get(ctx context.Context, id string) (chatModel.Session, error) {
	session, found, err := c.store.GetSession(ctx, id)
	if err != nil {
		return chatModel.Session{}, err
	}
	if !found {
		return chatModel.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// Submit runs one exchange and forwards every generated fragment to emit.
// The session is only updated after the stream completes; any failure on the
// way leaves it exactly as it was.
func (c *Controller) Submit(ctx context.Context, id, input string, emit func(string) error, opts ...SubmitOption) (Outcome, error) {
	var so submitOptions
	for _, opt := range opts {
		opt(&so)
	}
	log := c.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("sessionId", id)

	input = strings.TrimSpace(input)
	if input == "" {
		return Outcome{}, ErrEmptyInput
	}

	if !c.acquire(id) {
		metrics.CaptureChatExchange(outcomeBusy)
		return Outcome{}, ErrSessionBusy
	}
	defer c.release(id)

	session, err := c.Get(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if c.isLocked(session) {
		metrics.CaptureChatExchange(outcomeLocked)
		return Outcome{Session: session}, ErrSessionLocked
	}

	exCtx, cancel := context.WithTimeout(ctx, c.opts.ExchangeTimeout)
	defer cancel()

	answer, err := c.svc.Answer(exCtx, session.History, input)
	if err != nil {
		return Outcome{}, c.abort(log, err)
	}
	if so.onSources != nil {
		so.onSources(answer.Retrieval)
	}

	var reply strings.Builder
	for fragment, streamErr := range answer.Fragments {
		if streamErr != nil {
			return Outcome{}, c.abort(log, streamErr)
		}
		if emitErr := emit(fragment); emitErr != nil {
			return Outcome{}, c.abort(log, emitErr)
		}
		reply.WriteString(fragment)
	}
	if err = exCtx.Err(); err != nil {
		return Outcome{}, c.abort(log, err)
	}

	now := time.Now().UTC()
	updated := session.Clone()
	updated.History = append(updated.History,
		chatModel.Turn{Role: chatModel.RoleUser, Content: input, Timestamp: now},
		chatModel.Turn{Role: chatModel.RoleAssistant, Content: reply.String(), Timestamp: now},
	)
	updated.TurnCount++
	if updated.TurnCount >= c.opts.TurnsLimit {
		updated.LimitReached = true
	}
	updated.UpdatedAt = now

	// the answer was delivered, so a client leaving now must not lose the turn
	if err = c.store.SaveSession(context.WithoutCancel(ctx), updated); err != nil {
		metrics.CaptureChatExchange(outcomeStoreError)
		log.Error("failed to save session", "error", err)
		return Outcome{}, err
	}

	metrics.CaptureChatExchange(outcomeCompleted)
	log.Info("exchange completed", "turnCount", updated.TurnCount, "locked", updated.LimitReached,
		"documents", answer.Retrieval.TotalDocuments)
	return Outcome{Session: updated, Retrieval: answer.Retrieval, Reply: reply.String()}, nil
}

// QRCode renders QRText as a PNG. Only LOCKED sessions get one.
func (c *Controller) QRCode(ctx context.Context, id string, size int) ([]byte, error) {
	session, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.isLocked(session) {
		return nil, ErrSessionActive
	}
	if size <= 0 {
		size = config.QRCodeSize
	}
	return qrcode.Encode(c.opts.QRText, qrcode.Medium, size)
}

func (c *Controller) isLocked(session chatModel.Session) bool {
	return session.LimitReached || session.TurnCount >= c.opts.TurnsLimit
}

func (c *Controller) abort(log *logger_i.Logger, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		metrics.CaptureChatExchange(outcomeCancelled)
		log.Warn("exchange cancelled", "error", err)
		return err
	}
	metrics.CaptureChatExchange(outcomeProviderError)
	log.Error("exchange aborted", "error", err, "kind", apperror.KindOf(err))
	return err
}

func (c *Controller) acquire(id string) bool {
	c.busyMu.Lock()
	defer c.busyMu.Unlock()
	if _, taken := c.busy[id]; taken {
		return false
	}
	c.busy[id] = struct{}{}
	return true
}

func (c *Controller) release(id string) {
	c.busyMu.Lock()
	defer c.busyMu.Unlock()
	delete(c.busy, id)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/akolanti/AskStan/internal/adapter"
	"github.com/akolanti/AskStan/internal/adapter/utils"
	"github.com/akolanti/AskStan/internal/api"
	"github.com/akolanti/AskStan/internal/chat"
	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/domain/apperror"
	"github.com/akolanti/AskStan/internal/rag"
	"github.com/akolanti/AskStan/pkg/logger_i"
)

const (
	maxMessageBody = 16 << 10
	minQRSize      = 100
	maxQRSize      = 1000

	msgProviderFailure = "The assistant could not answer right now. Please try again."
	msgTimeout         = "The answer took too long. Please try again."
	msgSaveFailure     = "Your conversation could not be saved. Please try again."
)

type ChatHandler struct {
	controller *chat.Controller
	logger     *logger_i.Logger
}

func NewChatHandler(controller *chat.Controller) *ChatHandler {
	return &ChatHandler{
		controller: controller,
		logger:     logger_i.NewLogger("ChatHandler"),
	}
}

// CreateSessionHandler godoc
// @Summary      Start a chat session
// @Description  Opens a new ACTIVE session. Also used by "back to start" after a session locks.
// @Tags         Chat
// @Produce      json
// @Success      201  {object}  api.SessionResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /api/sessions [post]
func (h *ChatHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	session, err := h.controller.Start(r.Context())
	if err != nil {
		h.logger.WithTrace(r.Context(), config.TRACE_ID_KEY).Error("Could not start session", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "", "Could not start a session")
		return
	}
	writeJsonResponse(w, http.StatusCreated, adapter.ToSessionResponse(session, h.controller.TurnsLimit(), false))
}

// GetSessionHandler godoc
// @Summary      Get a chat session
// @Description  Returns the session state and its completed turns.
// @Tags         Chat
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  api.SessionResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /api/sessions/{id} [get]
func (h *ChatHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	id := utils.GetChiURLParam(r, "id")
	session, err := h.controller.Get(r.Context(), id)
	if err != nil {
		h.writeSessionError(w, r, id, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToSessionResponse(session, h.controller.TurnsLimit(), true))
}

// PostMessageHandler godoc
// @Summary      Send a message
// @Description  Streams the answer as server-sent events: "sources" once, "token" per fragment, then "done" or "error".
// @Tags         Chat
// @Accept       json
// @Produce      text/event-stream
// @Param        id       path      string              true  "Session ID"
// @Param        request  body      api.MessageRequest  true  "User message"
// @Success      200      {string}  string              "event stream"
// @Failure      400      {object}  api.ErrorResponse   "Empty or malformed message"
// @Failure      404      {object}  api.ErrorResponse   "Unknown session"
// @Failure      409      {object}  api.LockedResponse  "Turn limit reached or a message is already being answered"
// @Router       /api/sessions/{id}/messages [post]
func (h *ChatHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	ctx := r.Context()
	id := utils.GetChiURLParam(r, "id")
	log := h.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("sessionId", id)

	var req api.MessageRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxMessageBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("Bad message request", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, id, "Bad Request")
		return
	}

	sse := newSSEWriter(w)
	emit := func(fragment string) error {
		return sse.send(api.EventToken, api.TokenEvent{Text: fragment})
	}
	onSources := chat.WithSources(func(retrieval rag.Retrieval) {
		if err := sse.send(api.EventSources, adapter.ToSourcesEvent(retrieval)); err != nil {
			log.Debug("Could not send sources", "error", err)
		}
	})

	outcome, err := h.controller.Submit(ctx, id, req.Message, emit, onSources)
	if err != nil {
		if sse.started || !h.writeRejection(w, r, id, err) {
			h.streamError(ctx, sse, log, err)
		}
		return
	}

	if err = sse.send(api.EventDone, adapter.ToDoneEvent(outcome.Session, h.controller.TurnsLimit())); err != nil {
		log.Debug("Client left before done event", "error", err)
	}
}

// GetQRCodeHandler godoc
// @Summary      Get the survey QR code
// @Description  PNG of the configured QR text. Only available once the session is locked.
// @Tags         Chat
// @Produce      png
// @Param        id    path      string  true   "Session ID"
// @Param        size  query     int     false  "Image size in pixels (100-1000)"
// @Success      200   {file}    binary
// @Failure      404   {object}  api.ErrorResponse
// @Failure      409   {object}  api.ErrorResponse "Session still active"
// @Router       /api/sessions/{id}/qr [get]
func (h *ChatHandler) GetQRCodeHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	id := utils.GetChiURLParam(r, "id")

	size := config.QRCodeSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < minQRSize || parsed > maxQRSize {
			WriteErrorResponse(w, http.StatusBadRequest, id, "size must be between 100 and 1000")
			return
		}
		size = parsed
	}

	png, err := h.controller.QRCode(r.Context(), id, size)
	if err != nil {
		h.writeSessionError(w, r, id, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err = w.Write(png); err != nil {
		h.logger.Debug("Could not write qr code", "error", err)
	}
}

// writeRejection answers the controller's precondition errors with a JSON
// status. It reports false for errors that belong in the event stream.
func (h *ChatHandler) writeRejection(w http.ResponseWriter, r *http.Request, id string, err error) bool {
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		WriteErrorResponse(w, http.StatusBadRequest, id, "message must not be empty")
	case errors.Is(err, chat.ErrSessionNotFound):
		WriteErrorResponse(w, http.StatusNotFound, id, "session not found")
	case errors.Is(err, chat.ErrSessionLocked):
		writeJsonResponse(w, http.StatusConflict, adapter.ToLockedResponse(id))
	case errors.Is(err, chat.ErrSessionBusy):
		WriteErrorResponse(w, http.StatusConflict, id, "a message is already being answered")
	case errors.Is(err, context.Canceled):
		// client is gone, nothing to write
	default:
		return false
	}
	return true
}

func (h *ChatHandler) streamError(ctx context.Context, sse *sseWriter, log *logger_i.Logger, err error) {
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return
	}
	message := msgProviderFailure
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		message = msgTimeout
	case apperror.Is(err, apperror.StoreError):
		message = msgSaveFailure
	}
	if sendErr := sse.send(api.EventError, api.ErrorEvent{Message: message}); sendErr != nil {
		log.Debug("Could not send error event", "error", sendErr)
	}
}

func (h *ChatHandler) writeSessionError(w http.ResponseWriter, r *http.Request, id string, err error) {
	switch {
	case errors.Is(err, chat.ErrSessionNotFound):
		WriteErrorResponse(w, http.StatusNotFound, id, "session not found")
	case errors.Is(err, chat.ErrSessionActive):
		WriteErrorResponse(w, http.StatusConflict, id, "session has not reached its turn limit")
	default:
		h.logger.WithTrace(r.Context(), config.TRACE_ID_KEY).Error("Session lookup failed", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, id, "session store unavailable")
	}
}

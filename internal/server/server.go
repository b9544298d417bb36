package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"

	"github.com/akolanti/AskStan/internal/adapter/utils"
	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/handlers"
	"github.com/akolanti/AskStan/internal/middleware"
	"github.com/akolanti/AskStan/pkg/logger_i"
)

var (
	server  *http.Server
	_logger = logger_i.NewLogger("Server")
)

type ShutdownParams struct {
	GracefulShutdown chan os.Signal
	StopExecution    chan bool
	WorkerStop       chan bool
	Group            *sync.WaitGroup
	CloseServices    context.CancelFunc
}

type Routes struct {
	Chat       *handlers.ChatHandler
	Jobs       *handlers.JobHandler
	Middleware *middleware.Middleware
	// AdminEnabled mounts /ingest and /status, which need the admin token.
	AdminEnabled bool
}

func NewRouter(routes Routes) http.Handler {
	r := utils.GetRouter()
	m := routes.Middleware

	r.Router.Get("/", m.Wrap(handlers.IndexHandler))
	r.Router.Get("/healthz", handlers.GetHandler)

	r.Router.Post("/api/sessions", m.Wrap(routes.Chat.CreateSessionHandler))
	r.Router.Get("/api/sessions/{id}", m.Wrap(routes.Chat.GetSessionHandler))
	r.Router.Post("/api/sessions/{id}/messages", m.Wrap(routes.Chat.PostMessageHandler))
	r.Router.Get("/api/sessions/{id}/qr", m.Wrap(routes.Chat.GetQRCodeHandler))

	if routes.AdminEnabled && routes.Jobs != nil {
		r.Router.Post("/ingest", m.WrapAdmin(routes.Jobs.PostIngestHandler))
		r.Router.Get("/status/{id}", m.WrapAdmin(routes.Jobs.GetStatusHandler))
	} else {
		_logger.Warn("ADMIN_TOKEN is not set, ingestion endpoints are disabled")
	}
	return r.Router
}

func CreateServer(listenAddr string, handler http.Handler) {
	server = &http.Server{
		Addr:         listenAddr,
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	_logger.Info("Server is listening at", "address", listenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_logger.Error("Server crashed", "error", err, "addr", listenAddr)
		os.Exit(1)
	}
}

func ShutDownHandler(shutdownParams ShutdownParams) {
	state := <-shutdownParams.GracefulShutdown
	_logger.Info("Server is shutting down", "signal", state.String())

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownContextTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		server.SetKeepAlivesEnabled(false)

		if err := server.Shutdown(ctx); err != nil {
			_logger.Error("Could not shutdown gracefully", "error", err)
		}

		close(shutdownParams.WorkerStop)
		shutdownParams.Group.Wait()
		shutdownParams.CloseServices()
		close(shutdownParams.StopExecution)
		close(done)
	}()

	select {
	case <-done:
		_logger.Info("Gracefully shut down")
	case <-ctx.Done():
		_logger.Info("Force Shut down")
		os.Exit(1)
	}
}

package middleware

import (
	"net/http"
	"strconv"

	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/metrics"
	"github.com/akolanti/AskStan/pkg/logger_i"
	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
}

type Middleware struct {
	adminToken string
	limiter    *IPRateLimiter
}

func New(adminToken string) *Middleware {
	return &Middleware{
		adminToken: adminToken,
		limiter:    NewIPRateLimiter(rate.Limit(config.RATE_LIMIT_PER_SECOND), config.BURST_RATE_LIMIT_PER_SECOND),
	}
}

// Wrap is the public chain: trace id, per-IP rate limit, status metrics.
func (m *Middleware) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return m.wrap(next, false)
}

// WrapAdmin adds bearer token authentication in front of Wrap.
func (m *Middleware) WrapAdmin(next http.HandlerFunc) http.HandlerFunc {
	return m.wrap(next, true)
}

func (m *Middleware) wrap(next http.HandlerFunc, admin bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		re := m.processRequest(requestResponseStruct{req: r, writer: rec}, admin)

		if !handleBadRequest(re) {
			recordRequest(re.req, rec.Status)
			return
		}
		next(rec, re.req)
		recordRequest(re.req, rec.Status)
	}
}

func (m *Middleware) processRequest(re requestResponseStruct, admin bool) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	re = injectTrace(re)
	if re.badRequest.isBadRequest {
		return re
	}
	re.logger.Debug("New request received", "method", re.req.Method, "path", re.req.URL.Path)

	if admin {
		re = authenticate(re, m.adminToken)
		if re.badRequest.isBadRequest {
			return re
		}
	}
	return rateLimiter(re, m.limiter)
}

// recordRequest labels by route pattern so session ids do not explode the series.
func recordRequest(r *http.Request, status int) {
	path := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			path = pattern
		}
	}
	metrics.HttpRequestsTotal.WithLabelValues(path, strconv.Itoa(status)).Inc()
}

package customHttpClient

import (
	"net/http"
	"time"

	"github.com/akolanti/AskStan/internal/config"
)

// shared by the IAM, chat and embedding clients so they reuse connections
var customTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

// NewPooledClient returns a client on the shared transport. A zero timeout
// leaves the request bounded only by its context, which streaming calls need.
func NewPooledClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: customTransport,
		Timeout:   timeout,
	}
}

// NewAuthorizedClient returns a pooled client that sends a bearer token from
// tokens on every request.
func NewAuthorizedClient(tokens *IAMTokenSource, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &bearerTransport{base: customTransport, tokens: tokens},
		Timeout:   timeout,
	}
}

type bearerTransport struct {
	base   http.RoundTripper
	tokens *IAMTokenSource
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.tokens.Token(req.Context())
	if err != nil {
		return nil, err
	}
	// RoundTrip must not modify the caller's request
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(r)
}

package customHttpClient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/domain/apperror"
	"github.com/akolanti/AskStan/pkg/logger_i"
)

const iamGrantType = "urn:ibm:params:oauth:grant-type:apikey"

type iamResponse struct {
	AccessToken string `json:"access_token"`
	Expiration  int64  `json:"expiration"`
	ExpiresIn   int64  `json:"expires_in"`
}

// IAMTokenSource exchanges an IBM Cloud API key for bearer tokens and caches
// them until shortly before they expire.
type IAMTokenSource struct {
	endpoint string
	apiKey   string
	client   *http.Client
	leeway   time.Duration
	now      func() time.Time
	logger   *logger_i.Logger

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewIAMTokenSource(endpoint string, apiKey string) *IAMTokenSource {
	return &IAMTokenSource{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   NewPooledClient(config.WatsonxRequestTimeout),
		leeway:   config.IAMTokenRefreshLeeway,
		now:      time.Now,
		logger:   logger_i.NewLogger("iam_token"),
	}
}

// Token returns a cached token or fetches a new one. Concurrent callers share
// a single refresh.
func (s *IAMTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Add(s.leeway).Before(s.expiry) {
		return s.token, nil
	}

	token, expiry, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	s.token = token
	s.expiry = expiry
	s.logger.Debug("refreshed IAM token", "expiry", expiry)
	return token, nil
}

func (s *IAMTokenSource) fetch(ctx context.Context) (string, time.Time, error) {
	form := url.Values{}
	form.Set("grant_type", iamGrantType)
	form.Set("apikey", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, apperror.Provider("iam token", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", time.Time{}, apperror.Provider("iam token", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", time.Time{}, apperror.Provider("iam token", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var payload iamResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", time.Time{}, apperror.Provider("iam token", fmt.Errorf("decode response: %w", err))
	}
	if payload.AccessToken == "" {
		return "", time.Time{}, apperror.Provider("iam token", fmt.Errorf("response carried no access token"))
	}

	expiry := time.Unix(payload.Expiration, 0)
	if payload.Expiration == 0 {
		expiry = s.now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	return payload.AccessToken, expiry, nil
}

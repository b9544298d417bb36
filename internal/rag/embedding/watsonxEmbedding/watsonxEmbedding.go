package watsonxEmbedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/customHttpClient"
	"github.com/akolanti/AskStan/internal/domain/apperror"
	"github.com/akolanti/AskStan/pkg/logger_i"
)

type embedRequest struct {
	Inputs     []string        `json:"inputs"`
	ModelId    string          `json:"model_id"`
	ProjectId  string          `json:"project_id"`
	Parameters embedParameters `json:"parameters"`
}

type embedParameters struct {
	TruncateInputTokens int `json:"truncate_input_tokens"`
}

type embedResponse struct {
	Results []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"results"`
}

type Client struct {
	http      *http.Client
	endpoint  string
	model     string
	projectId string
	logger    *logger_i.Logger
}

// NewClient builds an embedder for the watsonx.ai text embeddings endpoint.
func NewClient(cfg config.WatsonxConfig, tokens *customHttpClient.IAMTokenSource) *Client {
	return newClient(cfg, customHttpClient.NewAuthorizedClient(tokens, config.WatsonxRequestTimeout))
}

func newClient(cfg config.WatsonxConfig, httpClient *http.Client) *Client {
	endpoint := strings.TrimRight(cfg.URL, "/") + "/ml/v1/text/embeddings?version=" + url.QueryEscape(cfg.APIVersion)
	return &Client{
		http:      httpClient,
		endpoint:  endpoint,
		model:     cfg.EmbeddingModelID,
		projectId: cfg.ProjectID,
		logger:    logger_i.NewLogger("watsonx_embedding").With("model", cfg.EmbeddingModelID),
	}
}

func (c *Client) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.BatchEmbedding(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// BatchEmbedding embeds texts in one request and returns vectors in input order.
func (c *Client) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	log := c.logger.WithTrace(ctx, config.TRACE_ID_KEY)

	body, err := json.Marshal(embedRequest{
		Inputs:     texts,
		ModelId:    c.model,
		ProjectId:  c.projectId,
		Parameters: embedParameters{TruncateInputTokens: config.WatsonxTruncateTokens},
	})
	if err != nil {
		return nil, apperror.Provider("embed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperror.Provider("embed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		log.Error("embedding request failed", "error", err)
		return nil, apperror.Provider("embed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := customHttpClient.ResponseError(resp)
		log.Error("embedding request rejected", "error", err)
		return nil, apperror.Provider("embed", err)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperror.Provider("embed", fmt.Errorf("decode response: %w", err))
	}
	if len(parsed.Results) != len(texts) {
		return nil, apperror.Provider("embed", fmt.Errorf("got %d embeddings for %d inputs", len(parsed.Results), len(texts)))
	}

	vectors := make([][]float32, len(parsed.Results))
	for i, r := range parsed.Results {
		vectors[i] = r.Embedding
	}
	log.Debug("embedded batch", "inputs", len(texts), "dimension", len(vectors[0]))
	return vectors, nil
}

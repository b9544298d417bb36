package watsonx

import (
	"bufio"
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
	"github.com/akolanti/AskStan/internal/rag/llm"
	"github.com/akolanti/AskStan/pkg/logger_i"
)

const (
	dataPrefix = "data:"
	doneMarker = "[DONE]"
)

type chatRequest struct {
	ModelId     string        `json:"model_id"`
	ProjectId   string        `json:"project_id"`
	Messages    []llm.Message `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

type Client struct {
	http      *http.Client
	endpoint  string
	model     string
	projectId string
	logger    *logger_i.Logger
}

// NewClient builds a provider on the watsonx.ai chat streaming endpoint.
// The http client carries no timeout: the exchange context bounds the stream.
func NewClient(cfg config.WatsonxConfig, tokens *customHttpClient.IAMTokenSource) *Client {
	return newClient(cfg, customHttpClient.NewAuthorizedClient(tokens, 0))
}

func newClient(cfg config.WatsonxConfig, httpClient *http.Client) *Client {
	endpoint := strings.TrimRight(cfg.URL, "/") + "/ml/v1/text/chat_stream?version=" + url.QueryEscape(cfg.APIVersion)
	return &Client{
		http:      httpClient,
		endpoint:  endpoint,
		model:     cfg.ModelID,
		projectId: cfg.ProjectID,
		logger:    logger_i.NewLogger("llm_watsonx").With("model", cfg.ModelID),
	}
}

func (c *Client) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	log := c.logger.WithTrace(ctx, config.TRACE_ID_KEY)

	body, err := json.Marshal(chatRequest{
		ModelId:     c.model,
		ProjectId:   c.projectId,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, apperror.LLM("chat stream", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperror.LLM("chat stream", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		log.Error("chat request failed", "error", err)
		return nil, apperror.LLM("chat stream", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := customHttpClient.ResponseError(resp)
		resp.Body.Close()
		log.Error("chat request rejected", "error", err)
		return nil, apperror.LLM("chat stream", err)
	}

	// an abandoned stream is released once the exchange context ends
	stop := context.AfterFunc(ctx, func() { resp.Body.Close() })

	return llm.OnceStream(func(yield func(string, error) bool) {
		defer stop()
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), config.WatsonxStreamMaxBuffer)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, dataPrefix) {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
			if data == doneMarker {
				return
			}

			var chunk chatChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				yield("", apperror.LLM("chat stream", fmt.Errorf("decode event: %w", err)))
				return
			}
			if len(chunk.Errors) > 0 {
				yield("", apperror.LLM("chat stream", fmt.Errorf("%s: %s", chunk.Errors[0].Code, chunk.Errors[0].Message)))
				return
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !yield(choice.Delta.Content, nil) {
					return
				}
			}
		}

		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			log.Warn("chat stream interrupted", "error", err)
			yield("", apperror.LLM("chat stream", err))
		}
	}), nil
}

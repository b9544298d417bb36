package googleEmbedding

import (
	"context"
	"fmt"

	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/domain/apperror"
	"github.com/akolanti/AskStan/pkg/logger_i"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var dimension = config.GeminiEmbeddingDimensionality

type Client struct {
	genAi  *genai.Client
	model  string
	logger *logger_i.Logger
}

func NewClient(ctx context.Context, modelName string, apikey string) (*Client, error) {
	log := logger_i.NewLogger("google_embedding")
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		log.Error("Error creating Google Embedding client", "error", err)
		return nil, apperror.Provider("create embedding client", err)
	}
	log.Info("Google Embedding client created", "model", modelName)
	return &Client{genAi: c, model: modelName, logger: log}, nil
}

func (c *Client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	log := c.logger.WithTrace(ctx, config.TRACE_ID_KEY)

	result, err := c.doCall(ctx, genai.Text(query), "RETRIEVAL_QUERY")
	if err != nil {
		log.Error("Error getting query embedding from Google", "error", err)
		return nil, err
	}
	return result[0], nil
}

func (c *Client) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	log := c.logger.WithTrace(ctx, config.TRACE_ID_KEY)

	result, err := c.doCall(ctx, getContent(chunks), "RETRIEVAL_DOCUMENT")
	if err != nil {
		log.Error("Error getting Embeddings from Google", "error", err, "chunks", len(chunks))
		return nil, err
	}
	if len(result) != len(chunks) {
		return nil, apperror.Provider("embed", fmt.Errorf("got %d embeddings for %d inputs", len(result), len(chunks)))
	}
	return result, nil
}

func (c *Client) doCall(ctx context.Context, content []*genai.Content, taskType string) ([][]float32, error) {
	res, err := c.genAi.Models.EmbedContent(ctx, c.model, content, &genai.EmbedContentConfig{OutputDimensionality: &dimension, TaskType: taskType})
	if err != nil {
		if isRateLimited(err) {
			c.logger.Warn("Rate limit hit", "error", err)
		}
		return nil, apperror.Provider("embed", err)
	}
	if res == nil || len(res.Embeddings) == 0 {
		return nil, apperror.Provider("embed", fmt.Errorf("empty embedding response"))
	}

	vectors := make([][]float32, len(res.Embeddings))
	for i, e := range res.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, apperror.Provider("embed", fmt.Errorf("embedding %d is empty", i))
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}

func getContent(chunks []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(chunks))

	for _, chunk := range chunks {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: chunk}},
		})
	}
	return contentsToSend
}

func isRateLimited(err error) bool {
	if s, ok := status.FromError(err); ok {
		return s.Code() == codes.ResourceExhausted
	}
	return false
}

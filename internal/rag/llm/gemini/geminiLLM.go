package gemini

import (
	"context"
	"strings"

	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/domain/apperror"
	"github.com/akolanti/AskStan/internal/rag/llm"
	"github.com/akolanti/AskStan/pkg/logger_i"
	"google.golang.org/genai"
)

type Client struct {
	client    *genai.Client
	modelName string
	logger    *logger_i.Logger
}

func NewClient(ctx context.Context, modelName string, apikey string) (*Client, error) {
	log := logger_i.NewLogger("llm_gemini").With("model", modelName)
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		log.Error("Error creating Gemini client", "error", err)
		return nil, apperror.LLM("create gemini client", err)
	}
	log.Info("Gemini client created")
	return &Client{client: c, modelName: modelName, logger: log}, nil
}

func (c *Client) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	log := c.logger.WithTrace(ctx, config.TRACE_ID_KEY)
	system, contents := buildContents(req.Messages)

	contentConfig := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if system != nil {
		contentConfig.SystemInstruction = system
	}

	return llm.OnceStream(func(yield func(string, error) bool) {
		for result, err := range c.client.Models.GenerateContentStream(ctx, c.modelName, contents, contentConfig) {
			if err != nil {
				log.Error("gemini stream failed", "error", err)
				yield("", apperror.LLM("generate stream", err))
				return
			}
			text := result.Text()
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}), nil
}

// buildContents moves system messages into the system instruction and maps
// assistant turns to the "model" role.
func buildContents(messages []llm.Message) (*genai.Content, []*genai.Content) {
	var systemParts []string
	contents := make([]*genai.Content, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			systemParts = append(systemParts, m.Content)
		case llm.RoleAssistant:
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: m.Content}}})
		}
	}

	if len(systemParts) == 0 {
		return nil, contents
	}
	return &genai.Content{Parts: []*genai.Part{{Text: strings.Join(systemParts, "\n\n")}}}, contents
}

package llm

import (
	"context"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// chatTransport speaks the OpenAI-compatible /chat/completions protocol.
type chatTransport struct {
	client *openai.Client
	cfg    Config
}

func newChatTransport(cfg Config, httpClient *http.Client) *chatTransport {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = httpClient
	return &chatTransport{client: openai.NewClientWithConfig(clientConfig), cfg: cfg}
}

func (t *chatTransport) complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	chatReq := openai.ChatCompletionRequest{
		Model:       t.cfg.Model,
		Messages:    messages,
		MaxTokens:   t.cfg.MaxTokens,
		Temperature: float32(t.cfg.Temperature),
	}
	if req.JSONObject {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := t.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", err
	}
	for _, choice := range resp.Choices {
		if choice.Message.Content != "" {
			return choice.Message.Content, nil
		}
	}
	return "", nil
}

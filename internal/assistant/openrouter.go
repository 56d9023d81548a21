package assistant

import (
	"context"
	"fmt"
	"net/http"
)

// OpenRouterOptions configures an OpenAI-compatible chat completions endpoint.
type OpenRouterOptions struct {
	URL          string
	APIKey       string
	Model        string
	SystemPrompt string
}

// OpenRouter implements Producer over the chat completions wire format.
type OpenRouter struct {
	httpClient *http.Client
	opts       OpenRouterOptions
}

// NewOpenRouter builds a provider. A nil client uses http.DefaultClient.
func NewOpenRouter(opts OpenRouterOptions, httpClient *http.Client) *OpenRouter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OpenRouter{httpClient: httpClient, opts: opts}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as a single user turn.
func (o *OpenRouter) Complete(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{Model: o.opts.Model}
	if o.opts.SystemPrompt != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: o.opts.SystemPrompt})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: prompt})

	headers := map[string]string{}
	if o.opts.APIKey != "" {
		headers["Authorization"] = "Bearer " + o.opts.APIKey
	}

	var resp chatResponse
	if err := postJSON(ctx, o.httpClient, o.opts.URL, headers, req, &resp, "assistant/openrouter"); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("assistant/openrouter: %w", ErrEmptyReply)
	}
	return resp.Choices[0].Message.Content, nil
}

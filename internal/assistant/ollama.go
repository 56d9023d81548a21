package assistant

import (
	"context"
	"net/http"
	"strings"
)

// OllamaOptions configures a local Ollama server.
type OllamaOptions struct {
	// URL is the server root, e.g. http://localhost:11434.
	URL   string
	Model string
}

// Ollama implements Producer with the non-streaming /api/generate call.
type Ollama struct {
	httpClient *http.Client
	opts       OllamaOptions
}

// NewOllama builds a provider. A nil client uses http.DefaultClient.
func NewOllama(opts OllamaOptions, httpClient *http.Client) *Ollama {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Ollama{httpClient: httpClient, opts: opts}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Complete implements Producer.
func (o *Ollama) Complete(ctx context.Context, prompt string) (string, error) {
	endpoint := strings.TrimRight(o.opts.URL, "/") + "/api/generate"

	var resp generateResponse
	req := generateRequest{Model: o.opts.Model, Prompt: prompt}
	if err := postJSON(ctx, o.httpClient, endpoint, nil, req, &resp, "assistant/ollama"); err != nil {
		return "", err
	}
	return resp.Response, nil
}

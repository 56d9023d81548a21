// Package assistant holds the external completion providers that answer
// "@ai " and "lam " chat lines.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrEmptyReply is returned when a provider answers without usable text.
var ErrEmptyReply = errors.New("assistant returned an empty reply")

// Producer turns a prompt into reply text.
type Producer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// preamble is emitted verbatim by some OpenRouter models before the answer.
const preamble = "<|start|>assistant<|channel|>final<|message|>"

// StripPreamble removes the channel preamble and surrounding whitespace.
func StripPreamble(reply string) string {
	return strings.TrimSpace(strings.TrimPrefix(reply, preamble))
}

// Rendered post-processes another producer's reply into HTML.
type Rendered struct {
	inner Producer
}

// Render wraps p so replies are cleaned and converted from markdown to HTML.
func Render(p Producer) *Rendered {
	return &Rendered{inner: p}
}

// Complete implements Producer.
func (r *Rendered) Complete(ctx context.Context, prompt string) (string, error) {
	reply, err := r.inner.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}

	reply = StripPreamble(reply)
	if reply == "" {
		return "", ErrEmptyReply
	}
	return RenderMarkdown(reply)
}

// postJSON sends body to endpoint and decodes a 200 response into out.
func postJSON(ctx context.Context, client *http.Client, endpoint string, headers map[string]string, body, out any, prefix string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", prefix, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", prefix, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send request: %w", prefix, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: status %d: %s", prefix, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", prefix, err)
	}
	return nil
}

package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// StreamHandler receives the lifecycle callbacks of one streaming session.
// Exactly one of OnComplete or OnError fires per session, unless the caller
// cancels, after which neither fires.
type StreamHandler struct {
	// OnToken is invoked for each token fragment in arrival order. Returning
	// an error aborts the session; it is treated as a caller-side abort, not
	// reported through OnError.
	OnToken func(fragment string) error
	// OnComplete receives the full accumulated text.
	OnComplete func(full string)
	// OnError receives the classified terminal failure.
	OnError func(err error)
}

// Client streams chat completions from an OpenAI-compatible endpoint,
// reconnecting on transient failures without losing accumulated text.
type Client struct {
	httpClient *http.Client
	retry      RetryPolicy
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 90 * time.Second},
		retry:      NewRetryPolicy(),
	}
}

// NewClientWithRetry is used by tests to shrink the backoff window.
func NewClientWithRetry(policy RetryPolicy) *Client {
	c := NewClient()
	c.retry = policy
	return c
}

// StreamComplete opens a streaming completion and drives the handler until
// the stream completes, fails terminally, or ctx is cancelled. A transport
// interruption mid-stream reconnects with full-jitter backoff up to the retry
// budget; text accumulated before the interruption is preserved. A stream
// that closes without an explicit done sentinel completes with whatever was
// accumulated.
func (c *Client) StreamComplete(ctx context.Context, cfg ChatConfig, messages []ChatMessage, h StreamHandler) error {
	var full strings.Builder
	connected := false

	attempt := 0
	var lastErr error
	for {
		if err := ctx.Err(); err != nil {
			// Cancellation: unwind silently, no callbacks.
			return err
		}

		done, err := c.streamOnce(ctx, cfg, messages, &full, &connected, h)
		if done {
			if err != nil {
				// Fatal event or caller-side abort; OnComplete must not fire.
				return err
			}
			if h.OnComplete != nil {
				h.OnComplete(full.String())
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			err = lastErr
		}

		attempt++
		lastErr = err
		if !c.retry.ShouldRetry(attempt, err) {
			terminal := classifyTerminal(err, connected, full.String())
			if h.OnError != nil {
				h.OnError(terminal)
			}
			return terminal
		}
		if waitErr := c.retry.Wait(ctx, attempt); waitErr != nil {
			return waitErr
		}
	}
}

// streamOnce performs a single connection attempt. It returns done=true when
// the stream finished (sentinel, fatal-error event handled via handler, or
// graceful EOF); otherwise err describes the interruption.
func (c *Client) streamOnce(
	ctx context.Context,
	cfg ChatConfig,
	messages []ChatMessage,
	full *strings.Builder,
	connected *bool,
	h StreamHandler,
) (bool, error) {
	reqBody := map[string]interface{}{
		"model":    cfg.Model,
		"messages": messages,
		"stream":   true,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return false, fmt.Errorf("marshal llm stream request failed: %w", err)
	}

	url := strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return false, fmt.Errorf("build llm stream request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, &StreamError{
			Kind:      KindConnectionError,
			Retriable: true,
			Partial:   full.String(),
			Err:       err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return false, classifyStatus(resp.StatusCode, raw, full.String())
	}
	*connected = true

	reader := NewEventReader(resp.Body)
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		ev, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				// Closed without a sentinel: keep the partial answer.
				return true, nil
			}
			return false, &StreamError{
				Kind:      KindConnectionError,
				Retriable: true,
				Partial:   full.String(),
				Err:       err,
			}
		}

		if ev.IsDone() {
			// Idempotent: stop reading, later bytes are never delivered.
			return true, nil
		}
		if ev.IsFatal() {
			terminal := &StreamError{
				Kind:    KindConnectionError,
				Message: ev.Data,
				Partial: full.String(),
			}
			if h.OnError != nil {
				h.OnError(terminal)
			}
			return true, terminal
		}

		token, ok := extractToken(ev.Data)
		if !ok || token == "" {
			// Malformed or empty payloads are skipped, not fatal.
			continue
		}
		full.WriteString(token)
		if h.OnToken != nil {
			if cbErr := h.OnToken(token); cbErr != nil {
				return true, cbErr
			}
		}
	}
}

// extractToken pulls the token fragment out of a data payload. Payloads that
// are not valid JSON can appear while a record is still arriving and are
// reported as not-ok rather than as errors.
func extractToken(payload string) (string, bool) {
	var chunk struct {
		Choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
		} `json:"choices"`
	}
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", false
	}
	if len(chunk.Choices) == 0 {
		return "", false
	}
	return chunk.Choices[0].Delta.Content, true
}

func classifyStatus(status int, body []byte, partial string) *StreamError {
	message := serverMessage(body)
	if RetriableStatus(status) {
		return &StreamError{
			Kind:      KindConnectionError,
			Status:    status,
			Message:   message,
			Retriable: true,
			Partial:   partial,
		}
	}
	if status >= 400 && status < 500 {
		return &StreamError{
			Kind:    KindServerRejected,
			Status:  status,
			Message: message,
			Partial: partial,
		}
	}
	return &StreamError{
		Kind:    KindConnectionError,
		Status:  status,
		Message: message,
		Partial: partial,
	}
}

// classifyTerminal shapes the error handed to OnError once the retry budget
// is spent or the failure was never retriable.
func classifyTerminal(err error, connected bool, partial string) error {
	var se *StreamError
	if asStreamError(err, &se) {
		if se.Kind == KindConnectionError && !connected && se.Status == 0 {
			return &StreamError{
				Kind:    KindNetworkUnavailable,
				Partial: partial,
				Err:     se.Err,
			}
		}
		se.Retriable = false
		return se
	}
	if !connected {
		return &StreamError{Kind: KindNetworkUnavailable, Partial: partial, Err: err}
	}
	return &StreamError{Kind: KindConnectionError, Partial: partial, Err: err}
}

// serverMessage extracts the {error} envelope from a non-2xx JSON body,
// falling back to the raw body text.
func serverMessage(body []byte) string {
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		return envelope.Error
	}
	return strings.TrimSpace(string(body))
}

// Complete performs a non-streaming completion for one-shot tasks such as
// title generation.
func (c *Client) Complete(ctx context.Context, cfg ChatConfig, messages []ChatMessage) (string, error) {
	reqBody := map[string]interface{}{
		"model":    cfg.Model,
		"messages": messages,
		"stream":   false,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal llm request failed: %w", err)
	}

	url := strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("build llm request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read llm response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("llm response status %d: %s", resp.StatusCode, serverMessage(raw))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse llm json failed: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty llm choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// GenerateTitle asks the model for a short conversation title based on the
// first user message. The result is a single phrase with no surrounding
// quotes or trailing punctuation.
func (c *Client) GenerateTitle(ctx context.Context, cfg ChatConfig, firstUserMessage string) (string, error) {
	messages := []ChatMessage{
		{
			Role: "system",
			Content: "Devuelve un título corto (máximo 6 palabras) que resuma la consulta del usuario. " +
				"Responde solo con el título, sin comillas ni punto final.",
		},
		{Role: "user", Content: firstUserMessage},
	}
	title, err := c.Complete(ctx, cfg, messages)
	if err != nil {
		return "", err
	}
	title = strings.Trim(strings.TrimSpace(title), `"'`)
	title = strings.TrimRight(title, ".")
	if title == "" {
		return "", fmt.Errorf("empty title from llm")
	}
	return title, nil
}

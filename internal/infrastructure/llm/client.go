// Package llm implements the classifier port against an Ollama-compatible
// chat endpoint.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"MarketMonitor/internal/config"
	"MarketMonitor/internal/domain"
	"MarketMonitor/internal/ports"
)

const systemPrompt = "You MUST respond with valid JSON only matching the schema:" +
	"{\n  \"summary_bullets\": [string],\n  \"event_type\": string," +
	"\n  \"impact_level\": string,\n  \"impact_reasoning\": string\n}\n"

// ErrNoContent reports that the endpoint answered without any usable
// assistant content in a recognized envelope.
var ErrNoContent = errors.New("llm returned no usable content")

// Client talks to the chat endpoint and decodes impact assessments.
type Client struct {
	url           string
	model         string
	temperature   float64
	callTimeout   time.Duration
	streamTimeout time.Duration
	retry         retryPolicy
	httpClient    *http.Client
	logger        *slog.Logger
}

var _ ports.Classifier = (*Client)(nil)

// NewClient builds a classifier client from configuration.
func NewClient(cfg config.LLMConfig, logger *slog.Logger) *Client {
	callTimeout := time.Duration(cfg.CallTimeoutSeconds) * time.Second
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	streamTimeout := time.Duration(cfg.StreamTimeoutSeconds) * time.Second
	if streamTimeout <= 0 {
		streamTimeout = 120 * time.Second
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = 3
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.25
	}
	return &Client{
		url:           cfg.URL,
		model:         cfg.Model,
		temperature:   temperature,
		callTimeout:   callTimeout,
		streamTimeout: streamTimeout,
		retry:         retryPolicy{maxAttempts: retries, baseDelay: time.Second},
		httpClient:    &http.Client{},
		logger:        logger,
	}
}

// retryPolicy bounds attempts with monotonically increasing backoff.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
}

// wait sleeps for attempt*baseDelay or until the context is done.
func (p retryPolicy) wait(ctx context.Context, attempt int) error {
	select {
	case <-time.After(time.Duration(attempt) * p.baseDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

// chatEnvelope covers the response shapes observed from Ollama-compatible
// endpoints: OpenAI-style choices, a bare message object, or a text field.
type chatEnvelope struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Message chatMessage `json:"message"`
	Text    string      `json:"text"`
}

func (e chatEnvelope) content() string {
	if len(e.Choices) > 0 && e.Choices[0].Message.Content != "" {
		return e.Choices[0].Message.Content
	}
	if e.Message.Content != "" {
		return e.Message.Content
	}
	return e.Text
}

type streamChunk struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

func (c *Client) messages(text string) []chatMessage {
	return []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: text},
	}
}

// Classify sends the filing text for judgement. It first tries a bounded
// series of non-streaming requests, then falls back to reassembling a
// streamed response. Content that cannot be decoded into the assessment
// shape is an error, never a zero-value success.
func (c *Client) Classify(ctx context.Context, text string) (domain.ImpactAssessment, error) {
	content, err := c.completeOnce(ctx, text)
	if err == nil && content != "" {
		assessment, decodeErr := decodeAssessment(content)
		if decodeErr != nil {
			return domain.ImpactAssessment{}, fmt.Errorf("non-streaming content: %w", decodeErr)
		}
		return assessment, nil
	}
	if err != nil {
		c.debug("non-streaming attempts failed, trying streaming fallback", "error", err)
	}

	content, streamErr := c.completeStreaming(ctx, text)
	if streamErr != nil {
		return domain.ImpactAssessment{}, fmt.Errorf("llm analysis failed (endpoint %s): %w", c.url, streamErr)
	}

	assessment, decodeErr := decodeAssessment(content)
	if decodeErr != nil {
		return domain.ImpactAssessment{}, fmt.Errorf("streamed content: %w", decodeErr)
	}
	return assessment, nil
}

// completeOnce runs the bounded non-streaming attempts and returns the raw
// assistant content. An empty content with nil error means the endpoint
// responded but carried nothing usable; the caller falls through to streaming.
func (c *Client) completeOnce(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    c.messages(text),
		Temperature: c.temperature,
		Stream:      false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.retry.maxAttempts; attempt++ {
		content, err := c.postOnce(ctx, body)
		if err == nil {
			return content, nil
		}
		lastErr = err
		c.debug("non-streaming request failed",
			"attempt", attempt, "max_attempts", c.retry.maxAttempts, "error", err)
		if attempt < c.retry.maxAttempts {
			if waitErr := c.retry.wait(ctx, attempt); waitErr != nil {
				return "", waitErr
			}
		}
	}
	return "", lastErr
}

func (c *Client) postOnce(ctx context.Context, body []byte) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post chat: %w", err)
	}
	defer resp.Body.Close()
	c.debug("non-streaming POST", "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chat endpoint %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var envelope chatEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("decode envelope: %w", err)
	}
	return envelope.content(), nil
}

// completeStreaming reassembles assistant content from line-delimited chunks
// until a done marker. Lines that are not valid chunk JSON are appended raw.
func (c *Client) completeStreaming(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(struct {
		Model       string        `json:"model"`
		Messages    []chatMessage `json:"messages"`
		Temperature float64       `json:"temperature"`
	}{c.model, c.messages(text), c.temperature})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	streamCtx, cancel := context.WithTimeout(ctx, c.streamTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post chat stream: %w", err)
	}
	defer resp.Body.Close()
	c.debug("streaming POST", "status", resp.StatusCode)

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chat endpoint %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var assembled strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			assembled.WriteString(line)
			continue
		}
		assembled.WriteString(chunk.Message.Content)
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}

	if assembled.Len() == 0 {
		return "", ErrNoContent
	}
	return assembled.String(), nil
}

// decodeAssessment parses assistant content into the assessment shape. It
// first decodes the content directly, then falls back to scanning for an
// embedded JSON object (models often wrap JSON in prose or code fences).
func decodeAssessment(content string) (domain.ImpactAssessment, error) {
	var assessment domain.ImpactAssessment
	if err := json.Unmarshal([]byte(content), &assessment); err == nil {
		return assessment, nil
	}

	embedded, ok := extractJSONObject(content)
	if !ok {
		return domain.ImpactAssessment{}, fmt.Errorf("content is not assessment JSON: %.200s", content)
	}
	if err := json.Unmarshal([]byte(embedded), &assessment); err != nil {
		return domain.ImpactAssessment{}, fmt.Errorf("embedded object is not assessment JSON: %w", err)
	}
	return assessment, nil
}

// extractJSONObject returns the first balanced top-level {...} span.
func extractJSONObject(content string) (string, bool) {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		ch := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1], true
			}
		}
	}
	return "", false
}

func (c *Client) debug(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// ProbeResult captures one reachability attempt against the endpoint.
type ProbeResult struct {
	StatusCode int    `json:"status_code,omitempty"`
	Snippet    string `json:"text_snippet,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Diagnostics summarizes endpoint reachability for the health-check command.
type Diagnostics struct {
	URL         string      `json:"url"`
	Get         ProbeResult `json:"get"`
	Post        ProbeResult `json:"post"`
	OK          bool        `json:"ok"`
	Suggestions []string    `json:"suggestions"`
}

// Check probes the configured endpoint with a GET and a minimal chat POST.
// A GET may legitimately return 405 on chat endpoints; only the POST result
// decides overall health.
func (c *Client) Check(ctx context.Context, timeout time.Duration) Diagnostics {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	diag := Diagnostics{URL: c.url}

	diag.Get = c.probeGet(ctx, timeout)

	postTimeout := timeout
	if postTimeout < 10*time.Second {
		postTimeout = 10 * time.Second
	}
	diag.Post = c.probePost(ctx, postTimeout)
	diag.OK = diag.Post.Error == "" && diag.Post.StatusCode >= 200 && diag.Post.StatusCode < 300

	diag.Suggestions = suggestions(diag)
	return diag
}

func (c *Client) probeGet(ctx context.Context, timeout time.Duration) ProbeResult {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.url, nil)
	if err != nil {
		return ProbeResult{Error: err.Error()}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ProbeResult{Error: err.Error()}
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2000))
	return ProbeResult{StatusCode: resp.StatusCode, Snippet: string(snippet)}
}

func (c *Client) probePost(ctx context.Context, timeout time.Duration) ProbeResult {
	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: c.messages("ping"),
		Stream:   false,
	})
	if err != nil {
		return ProbeResult{Error: err.Error()}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return ProbeResult{Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ProbeResult{Error: err.Error()}
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2000))
	return ProbeResult{StatusCode: resp.StatusCode, Snippet: string(snippet)}
}

func suggestions(diag Diagnostics) []string {
	var out []string
	if diag.Post.Error != "" {
		if strings.Contains(diag.Post.Error, "connection refused") {
			out = append(out, "No service is listening on the given host:port from this environment. If the model server runs in a container or VM, expose the port to this host.")
		}
		if strings.Contains(diag.Post.Error, "connection reset") || strings.Contains(diag.Post.Error, "EOF") {
			out = append(out, "The server may be running but closing connections immediately. Check its logs and run the monitor in the same environment.")
		}
		return out
	}
	if diag.Get.StatusCode == http.StatusMethodNotAllowed && diag.Post.StatusCode != 0 {
		out = append(out, "GET returned 405 (method not allowed), which is normal for the chat endpoint. Use POST to interact.")
	}
	return out
}

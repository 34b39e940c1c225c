package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"MarketMonitor/internal/config"
	"MarketMonitor/internal/domain"
)

const assessmentJSON = `{"summary_bullets":["acquired a supplier"],"event_type":"M&A","impact_level":"High","impact_reasoning":"material deal"}`

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()

	client := NewClient(config.LLMConfig{
		URL:                  server.URL,
		Model:                "llama3:latest",
		CallTimeoutSeconds:   5,
		Retries:              3,
		StreamTimeoutSeconds: 5,
	}, nil)
	client.httpClient = server.Client()
	client.retry.baseDelay = time.Millisecond
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

// isStreaming reports whether the request body omits the stream flag, which
// is how the client asks for a streamed response.
func isStreaming(t *testing.T, r *http.Request) bool {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("read request body: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	_, hasStream := fields["stream"]
	return !hasStream
}

func TestClassifyMessageEnvelope(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"message": map[string]string{"role": "assistant", "content": assessmentJSON},
		})
	}))
	defer server.Close()

	assessment, err := newTestClient(t, server).Classify(context.Background(), "filing text")
	if err != nil {
		t.Fatalf("Classify error: %v", err)
	}
	if assessment.ImpactLevel != domain.ImpactHigh {
		t.Fatalf("expected High, got %q", assessment.ImpactLevel)
	}
	if assessment.EventType != "M&A" {
		t.Fatalf("unexpected event type: %q", assessment.EventType)
	}
}

func TestClassifyChoicesEnvelope(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": assessmentJSON}},
			},
		})
	}))
	defer server.Close()

	assessment, err := newTestClient(t, server).Classify(context.Background(), "filing text")
	if err != nil {
		t.Fatalf("Classify error: %v", err)
	}
	if assessment.ImpactLevel != domain.ImpactHigh {
		t.Fatalf("expected High, got %q", assessment.ImpactLevel)
	}
}

func TestClassifyProseWrappedJSON(t *testing.T) {
	t.Parallel()

	content := "Here is the analysis you asked for:\n" + assessmentJSON + "\nLet me know if you need more."
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"message": map[string]string{"role": "assistant", "content": content},
		})
	}))
	defer server.Close()

	assessment, err := newTestClient(t, server).Classify(context.Background(), "filing text")
	if err != nil {
		t.Fatalf("Classify error: %v", err)
	}
	if assessment.ImpactLevel != domain.ImpactHigh {
		t.Fatalf("expected High, got %q", assessment.ImpactLevel)
	}
}

func TestClassifyNonJSONContentIsError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"message": map[string]string{"role": "assistant", "content": "I cannot analyze this filing."},
		})
	}))
	defer server.Close()

	if _, err := newTestClient(t, server).Classify(context.Background(), "filing text"); err == nil {
		t.Fatal("unparseable content must be an error, not a zero-value assessment")
	}
}

func TestClassifyRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		writeJSON(t, w, map[string]any{
			"message": map[string]string{"role": "assistant", "content": assessmentJSON},
		})
	}))
	defer server.Close()

	assessment, err := newTestClient(t, server).Classify(context.Background(), "filing text")
	if err != nil {
		t.Fatalf("Classify error: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected a retry after the first failure, got %d attempts", attempts)
	}
	if assessment.ImpactLevel != domain.ImpactHigh {
		t.Fatalf("expected High, got %q", assessment.ImpactLevel)
	}
}

func TestClassifyStreamingFallback(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isStreaming(t, r) {
			// Respond without any recognizable content so the client
			// falls through to the streaming path.
			writeJSON(t, w, map[string]any{})
			return
		}
		half := len(assessmentJSON) / 2
		chunks := []map[string]any{
			{"message": map[string]string{"content": assessmentJSON[:half]}, "done": false},
			{"message": map[string]string{"content": assessmentJSON[half:]}, "done": true},
		}
		for _, chunk := range chunks {
			writeJSON(t, w, chunk)
		}
	}))
	defer server.Close()

	assessment, err := newTestClient(t, server).Classify(context.Background(), "filing text")
	if err != nil {
		t.Fatalf("Classify error: %v", err)
	}
	if assessment.ImpactLevel != domain.ImpactHigh {
		t.Fatalf("expected High from reassembled stream, got %q", assessment.ImpactLevel)
	}
}

func TestClassifyMissingImpactLevelDefaults(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"message": map[string]string{
				"role":    "assistant",
				"content": `{"summary_bullets":["minor note"],"event_type":"Other","impact_reasoning":"routine"}`,
			},
		})
	}))
	defer server.Close()

	assessment, err := newTestClient(t, server).Classify(context.Background(), "filing text")
	if err != nil {
		t.Fatalf("valid JSON without impact_level must succeed: %v", err)
	}
	if assessment.ImpactLevel.Rank() != 0 {
		t.Fatalf("missing impact level must rank as None, got %q", assessment.ImpactLevel)
	}
}

func TestExtractJSONObject(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{`prefix {"a":1} suffix`, `{"a":1}`, true},
		{`{"a":{"b":2}}`, `{"a":{"b":2}}`, true},
		{`{"a":"brace } in string"}`, `{"a":"brace } in string"}`, true},
		{`no object here`, ``, false},
		{`{"unterminated":`, ``, false},
	}

	for _, tc := range cases {
		got, ok := extractJSONObject(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("extractJSONObject(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(t, w, map[string]any{
			"message": map[string]string{"role": "assistant", "content": "pong"},
		})
	}))
	defer server.Close()

	diag := newTestClient(t, server).Check(context.Background(), time.Second)
	if !diag.OK {
		t.Fatalf("expected healthy diagnostics, got %+v", diag)
	}
	if diag.Get.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 on GET, got %d", diag.Get.StatusCode)
	}
	if len(diag.Suggestions) == 0 || !strings.Contains(diag.Suggestions[0], "405") {
		t.Fatalf("expected a 405 hint in suggestions, got %v", diag.Suggestions)
	}
}

func TestCheckUnreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := newTestClient(t, server)
	server.Close()

	diag := client.Check(context.Background(), time.Second)
	if diag.OK {
		t.Fatal("expected unhealthy diagnostics for a closed server")
	}
	if diag.Post.Error == "" {
		t.Fatal("expected a POST probe error")
	}
}

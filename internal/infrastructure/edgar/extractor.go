package edgar

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"MarketMonitor/internal/ports"
)

// Extractor fetches a filing document and reduces it to bounded plain text.
type Extractor struct {
	client    *http.Client
	userAgent string
	maxChars  int
}

var _ ports.TextExtractor = (*Extractor)(nil)

// NewExtractor wires an HTTP client; maxChars bounds the returned text.
func NewExtractor(client *http.Client, userAgent string, maxChars int) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if maxChars <= 0 {
		maxChars = 15000
	}
	return &Extractor{client: client, userAgent: userAgent, maxChars: maxChars}
}

// Extract downloads the document and returns its visible text, truncated to
// the configured character limit. Any network or HTTP failure is a fetch
// error; the caller treats it as transient and retries on the next poll.
func (e *Extractor) Extract(ctx context.Context, docURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "application/json, text/html")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("document fetch returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}

	doc.Find("script, style, noscript").Remove()
	text := strings.Join(strings.Fields(doc.Text()), " ")

	runes := []rune(text)
	if len(runes) > e.maxChars {
		text = string(runes[:e.maxChars])
	}
	return text, nil
}

// Package edgar adapts the SEC EDGAR submissions feed and archive documents
// to the monitor's source and extractor ports.
package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"MarketMonitor/internal/config"
	"MarketMonitor/internal/domain"
	"MarketMonitor/internal/ports"
)

const archiveURLFormat = "https://www.sec.gov/ix?doc=/Archives/edgar/data/%s/%s/%s"

// Source fetches recent filings for a registrant from the submissions feed.
type Source struct {
	client         *http.Client
	submissionsURL string
	userAgent      string
	wantedForms    map[string]struct{}
	logger         *slog.Logger
}

var _ ports.FilingSource = (*Source)(nil)

// NewSource wires an HTTP client with the feed configuration.
func NewSource(client *http.Client, cfg config.SECConfig, logger *slog.Logger) *Source {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	wanted := make(map[string]struct{}, len(cfg.FormTypes))
	for _, form := range cfg.FormTypes {
		wanted[form] = struct{}{}
	}
	return &Source{
		client:         client,
		submissionsURL: cfg.SubmissionsURL,
		userAgent:      cfg.UserAgent,
		wantedForms:    wanted,
		logger:         logger,
	}
}

// submissionsResponse mirrors the column-oriented recent-filings arrays of
// the submissions endpoint.
type submissionsResponse struct {
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			Form            []string `json:"form"`
			FilingDate      []string `json:"filingDate"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// FetchFilings returns the registrant's recent filings restricted to the
// configured form types, newest first.
func (s *Source) FetchFilings(ctx context.Context, cik string) ([]domain.Filing, error) {
	url := fmt.Sprintf(s.submissionsURL, strings.TrimLeft(cik, "0"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	// SEC rejects requests without a contact User-Agent.
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json, text/html")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch submissions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("submissions endpoint returned %s", resp.Status)
	}

	var payload submissionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode submissions: %w", err)
	}

	recent := payload.Filings.Recent
	n := len(recent.AccessionNumber)
	if len(recent.Form) < n {
		n = len(recent.Form)
	}
	if len(recent.FilingDate) < n {
		n = len(recent.FilingDate)
	}
	if len(recent.PrimaryDocument) < n {
		n = len(recent.PrimaryDocument)
	}

	filings := make([]domain.Filing, 0, n)
	for i := 0; i < n; i++ {
		form := recent.Form[i]
		if _, ok := s.wantedForms[form]; !ok {
			continue
		}
		acc := recent.AccessionNumber[i]
		doc := recent.PrimaryDocument[i]
		filings = append(filings, domain.Filing{
			AccessionNumber: acc,
			FormType:        form,
			FilingDate:      recent.FilingDate[i],
			PrimaryDoc:      doc,
			PrimaryDocURL:   primaryDocURL(cik, acc, doc),
		})
	}

	// Newest first; ties keep feed order.
	sort.SliceStable(filings, func(i, j int) bool {
		return filings[i].FilingDate > filings[j].FilingDate
	})

	if s.logger != nil {
		s.logger.Debug("fetched filings", "cik", cik, "count", len(filings))
	}
	return filings, nil
}

// primaryDocURL builds the archive viewer URL for a filing's primary document.
func primaryDocURL(cik, accessionNumber, primaryDoc string) string {
	cikPart := cik
	if v, err := strconv.Atoi(cik); err == nil {
		cikPart = strconv.Itoa(v)
	}
	accPart := strings.ReplaceAll(accessionNumber, "-", "")
	return fmt.Sprintf(archiveURLFormat, cikPart, accPart, primaryDoc)
}

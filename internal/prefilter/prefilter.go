// Package prefilter is the cheap accept/reject gate applied to extracted
// filing text before the expensive classification call.
package prefilter

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const defaultMinChars = 1500

var defaultBoilerplate = []string{
	"forward-looking statements",
}

// Thresholds resolves the minimum text length required per form type.
// Unknown form types fall back to the default minimum.
type Thresholds struct {
	Default int
	PerForm map[string]int
}

// NewThresholds builds a lookup table; a non-positive def uses the package
// default of 1500 characters.
func NewThresholds(def int, perForm map[string]int) Thresholds {
	if def <= 0 {
		def = defaultMinChars
	}
	return Thresholds{Default: def, PerForm: perForm}
}

// MinChars returns the configured minimum for the form type, or the default.
func (t Thresholds) MinChars(formType string) int {
	if n, ok := t.PerForm[formType]; ok && n > 0 {
		return n
	}
	return t.Default
}

// Filter rejects text that is too short or contains boilerplate phrases.
type Filter struct {
	phrases []string
}

// New builds a filter with the given boilerplate phrases. An empty list uses
// the default set.
func New(phrases []string) *Filter {
	if len(phrases) == 0 {
		phrases = defaultBoilerplate
	}
	lowered := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			lowered = append(lowered, p)
		}
	}
	return &Filter{phrases: lowered}
}

// Accept reports whether the text should be kept. Empty text, text shorter
// than minChars, and text containing any boilerplate phrase are rejected.
// Phrase matching is a case-insensitive substring check regardless of length.
func (f *Filter) Accept(text string, minChars int) bool {
	if text == "" {
		return false
	}
	if len(text) < minChars {
		return false
	}
	lower := strings.ToLower(text)
	for _, p := range f.phrases {
		if strings.Contains(lower, p) {
			return false
		}
	}
	return true
}

// Hash returns the sha256 hex digest of the text, logged for traceability.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Package alerting decides whether a classification warrants notification and
// renders the outgoing message. Both operations are pure.
package alerting

import (
	"fmt"
	"strings"

	"MarketMonitor/internal/domain"
)

const maxSummaryBullets = 5

// Policy compares assessments against a configured minimum impact level.
type Policy struct {
	minRank int
}

// NewPolicy builds a policy from the configured minimum level string.
// An unknown minimum ranks as None, which alerts on everything.
func NewPolicy(minImpact string) Policy {
	return Policy{minRank: domain.ImpactLevel(minImpact).Rank()}
}

// ShouldAlert reports whether the assessment's impact level ranks at or above
// the configured minimum. Unknown or missing levels rank as None.
func (p Policy) ShouldAlert(a domain.ImpactAssessment) bool {
	return a.ImpactLevel.Rank() >= p.minRank
}

// Format renders the alert subject and body. The body lists the event type,
// impact level, up to the first five summary bullets, and the reasoning text
// verbatim.
func Format(symbol string, filing domain.Filing, a domain.ImpactAssessment) (subject, body string) {
	level := string(a.ImpactLevel)
	if level == "" {
		level = "Unknown"
	}
	event := a.EventType
	if event == "" {
		event = "Other"
	}

	subject = fmt.Sprintf("[Market Alert] %s – %s Impact %s", symbol, level, filing.FormType)

	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s\n", event)
	fmt.Fprintf(&b, "Impact: %s\n", level)
	b.WriteString("\nSummary:\n")
	bullets := a.SummaryBullets
	if len(bullets) > maxSummaryBullets {
		bullets = bullets[:maxSummaryBullets]
	}
	for _, bullet := range bullets {
		fmt.Fprintf(&b, "- %s\n", bullet)
	}
	b.WriteString("\nReasoning:\n")
	b.WriteString(a.ImpactReasoning)

	return subject, b.String()
}

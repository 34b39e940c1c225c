package alerting

import (
	"strings"
	"testing"

	"MarketMonitor/internal/domain"
)

func TestShouldAlertTotalOrder(t *testing.T) {
	t.Parallel()

	policy := NewPolicy("Medium")

	cases := []struct {
		level domain.ImpactLevel
		want  bool
	}{
		{domain.ImpactHigh, true},
		{domain.ImpactMedium, true},
		{domain.ImpactLow, false},
		{domain.ImpactNone, false},
		{"", false},
		{"Catastrophic", false}, // unknown levels rank as None
	}

	for _, tc := range cases {
		got := policy.ShouldAlert(domain.ImpactAssessment{ImpactLevel: tc.level})
		if got != tc.want {
			t.Fatalf("level %q: expected %v, got %v", tc.level, tc.want, got)
		}
	}
}

func TestShouldAlertUnknownMinimumAlertsEverything(t *testing.T) {
	t.Parallel()

	policy := NewPolicy("bogus")
	if !policy.ShouldAlert(domain.ImpactAssessment{ImpactLevel: domain.ImpactNone}) {
		t.Fatal("unknown minimum ranks as None, so every level should alert")
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()

	filing := domain.Filing{AccessionNumber: "acc-1", FormType: "8-K"}
	assessment := domain.ImpactAssessment{
		SummaryBullets:  []string{"b1", "b2", "b3", "b4", "b5", "b6", "b7"},
		EventType:       "M&A",
		ImpactLevel:     domain.ImpactHigh,
		ImpactReasoning: "material acquisition announced",
	}

	subject, body := Format("GEHC", filing, assessment)

	if subject != "[Market Alert] GEHC – High Impact 8-K" {
		t.Fatalf("unexpected subject: %s", subject)
	}
	if !strings.Contains(body, "Event: M&A") {
		t.Fatalf("body missing event type: %s", body)
	}
	if !strings.Contains(body, "Impact: High") {
		t.Fatalf("body missing impact level: %s", body)
	}
	for _, bullet := range []string{"- b1", "- b5"} {
		if !strings.Contains(body, bullet) {
			t.Fatalf("body missing bullet %q: %s", bullet, body)
		}
	}
	if strings.Contains(body, "- b6") {
		t.Fatalf("body must cap bullets at five: %s", body)
	}
	if !strings.Contains(body, "material acquisition announced") {
		t.Fatalf("body missing reasoning: %s", body)
	}
}

func TestFormatMissingFields(t *testing.T) {
	t.Parallel()

	subject, body := Format("GEHC", domain.Filing{FormType: "10-Q"}, domain.ImpactAssessment{})

	if subject != "[Market Alert] GEHC – Unknown Impact 10-Q" {
		t.Fatalf("unexpected subject: %s", subject)
	}
	if !strings.Contains(body, "Event: Other") {
		t.Fatalf("missing event default: %s", body)
	}
}

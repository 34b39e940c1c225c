package domain

import "time"

// Company is a tracked registrant identified by its SEC CIK.
type Company struct {
	Symbol string
	CIK    string
}

// Filing is one disclosure delivered by the submissions feed.
type Filing struct {
	AccessionNumber string
	FormType        string
	FilingDate      string
	PrimaryDoc      string
	PrimaryDocURL   string
}

// ImpactLevel is the ordinal market-impact classification of a filing.
type ImpactLevel string

const (
	ImpactNone   ImpactLevel = "None"
	ImpactLow    ImpactLevel = "Low"
	ImpactMedium ImpactLevel = "Medium"
	ImpactHigh   ImpactLevel = "High"
)

var impactRank = map[ImpactLevel]int{
	ImpactNone:   0,
	ImpactLow:    1,
	ImpactMedium: 2,
	ImpactHigh:   3,
}

// Rank maps the level onto the total order None < Low < Medium < High.
// Unknown or empty levels rank as None.
func (l ImpactLevel) Rank() int {
	return impactRank[l]
}

// ImpactAssessment is the structured judgement produced by the classifier.
type ImpactAssessment struct {
	SummaryBullets  []string    `json:"summary_bullets"`
	EventType       string      `json:"event_type"`
	ImpactLevel     ImpactLevel `json:"impact_level"`
	ImpactReasoning string      `json:"impact_reasoning"`
}

// ProcessedFiling is the durable record written once per filing that reaches
// a terminal pipeline state.
type ProcessedFiling struct {
	AccessionNumber string
	CIK             string
	FormType        string
	FilingDate      string
	ProcessedAt     time.Time
}

// AlertRecord is written at most once per filing, only when an alert was
// actually dispatched.
type AlertRecord struct {
	AccessionNumber string
	SentAt          time.Time
	ImpactLevel     ImpactLevel
	Meta            map[string]string
}

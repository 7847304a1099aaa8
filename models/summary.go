package models

import "strings"

// SummaryMode selects the summary style requested from the summariser
type SummaryMode string

const (
	ModeShort    SummaryMode = "short"
	ModeDetailed SummaryMode = "detailed"
	ModeBullet   SummaryMode = "bullet"
)

// ParseSummaryMode maps empty or unknown input to ModeShort
func ParseSummaryMode(s string) SummaryMode {
	switch m := SummaryMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeShort, ModeDetailed, ModeBullet:
		return m
	default:
		return ModeShort
	}
}

// SummaryTarget distinguishes email summaries from thread summaries
type SummaryTarget string

const (
	TargetEmail  SummaryTarget = "email"
	TargetThread SummaryTarget = "thread"
)

// SummaryKey identifies one cached summary
type SummaryKey struct {
	Target SummaryTarget
	ID     string
	Mode   SummaryMode
}

// Summary is a summary text together with its key
type Summary struct {
	Key  SummaryKey `json:"-"`
	Text string     `json:"summary"`
}

package models

// RiskFlagThreshold is the score at which a submission is flagged for review.
const RiskFlagThreshold = 40

// RiskAssessment is the advisory proxy-risk verdict attached to a record.
type RiskAssessment struct {
	Score   int      `json:"score"`
	Flagged bool     `json:"flagged"`
	Signals []string `json:"signals,omitempty"`
}

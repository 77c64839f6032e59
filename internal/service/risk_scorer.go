package service

import (
	"time"

	"github.com/noah-isme/attendance-gate-api/internal/models"
)

// Risk signal names reported in RiskAssessment.Signals.
const (
	SignalSharedFingerprint = "shared_fingerprint"
	SignalSharedDevice      = "shared_device"
	SignalBurst             = "burst"
)

// RiskScorer computes the advisory proxy-attendance score of a submission
// against the session's earlier records.
type RiskScorer struct {
	FingerprintWeight    int
	FingerprintThreshold int
	DeviceWeight         int
	DeviceThreshold      int
	BurstWeight          int
	BurstWindow          time.Duration
	FlagThreshold        int
}

// NewRiskScorer returns the scorer with the stock weights.
func NewRiskScorer() RiskScorer {
	return RiskScorer{
		FingerprintWeight:    30,
		FingerprintThreshold: 2,
		DeviceWeight:         25,
		DeviceThreshold:      3,
		BurstWeight:          15,
		BurstWindow:          10 * time.Second,
		FlagThreshold:        models.RiskFlagThreshold,
	}
}

// lastSubmission is the gap to the most recent prior record. ok is false
// when there is no prior or its timestamp is unset, which contributes nothing.
type lastSubmission struct {
	gap time.Duration
	ok  bool
}

func lastSubmissionGap(prior []models.AttendanceRecord, now time.Time) lastSubmission {
	if len(prior) == 0 {
		return lastSubmission{}
	}
	last := prior[len(prior)-1].SubmittedAt
	if last.IsZero() {
		return lastSubmission{}
	}
	return lastSubmission{gap: now.Sub(last), ok: true}
}

// Score evaluates candidate against prior, which must be in insertion order.
func (s RiskScorer) Score(prior []models.AttendanceRecord, candidate models.AttendanceRecord, now time.Time) models.RiskAssessment {
	var assessment models.RiskAssessment

	fingerprint := candidate.FingerprintKey()
	sharedFingerprint, sharedDevice := 0, 0
	for _, rec := range prior {
		if fingerprint != "" && rec.FingerprintKey() == fingerprint {
			sharedFingerprint++
		}
		if candidate.DeviceID != "" && rec.DeviceID == candidate.DeviceID {
			sharedDevice++
		}
	}

	if sharedFingerprint >= s.FingerprintThreshold {
		assessment.Score += s.FingerprintWeight
		assessment.Signals = append(assessment.Signals, SignalSharedFingerprint)
	}
	if sharedDevice >= s.DeviceThreshold {
		assessment.Score += s.DeviceWeight
		assessment.Signals = append(assessment.Signals, SignalSharedDevice)
	}
	if last := lastSubmissionGap(prior, now); last.ok && last.gap < s.BurstWindow {
		assessment.Score += s.BurstWeight
		assessment.Signals = append(assessment.Signals, SignalBurst)
	}

	assessment.Flagged = assessment.Score >= s.FlagThreshold
	return assessment
}

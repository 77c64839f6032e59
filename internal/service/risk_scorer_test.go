package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/attendance-gate-api/internal/models"
)

func priorRecord(device, fingerprint string, at time.Time) models.AttendanceRecord {
	return models.AttendanceRecord{DeviceID: device, Fingerprint: fingerprint, SubmittedAt: at}
}

func TestRiskScorer(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	old := now.Add(-time.Minute)
	scorer := NewRiskScorer()

	tests := []struct {
		name      string
		prior     []models.AttendanceRecord
		candidate models.AttendanceRecord
		score     int
		flagged   bool
		signals   []string
	}{
		{
			name:      "first submission",
			candidate: models.AttendanceRecord{DeviceID: "d1", Fingerprint: "fp1"},
		},
		{
			name:      "one shared fingerprint is not enough",
			prior:     []models.AttendanceRecord{priorRecord("d2", "fp1", old)},
			candidate: models.AttendanceRecord{DeviceID: "d1", Fingerprint: "fp1"},
		},
		{
			name:      "two shared fingerprints",
			prior:     []models.AttendanceRecord{priorRecord("d2", "fp1", old), priorRecord("d3", "fp1", old)},
			candidate: models.AttendanceRecord{DeviceID: "d1", Fingerprint: "fp1"},
			score:     30,
			signals:   []string{SignalSharedFingerprint},
		},
		{
			name: "fingerprint and device reuse flags",
			prior: []models.AttendanceRecord{
				priorRecord("d1", "fp1", old), priorRecord("d1", "fp1", old), priorRecord("d1", "fp2", old),
			},
			candidate: models.AttendanceRecord{DeviceID: "d1", Fingerprint: "fp1"},
			score:     55,
			flagged:   true,
			signals:   []string{SignalSharedFingerprint, SignalSharedDevice},
		},
		{
			name: "device falls back as fingerprint",
			prior: []models.AttendanceRecord{
				priorRecord("d1", "", old), priorRecord("d1", "", old), priorRecord("d1", "", now.Add(-3*time.Second)),
			},
			candidate: models.AttendanceRecord{DeviceID: "d1"},
			score:     70,
			flagged:   true,
			signals:   []string{SignalSharedFingerprint, SignalSharedDevice, SignalBurst},
		},
		{
			name:      "burst alone",
			prior:     []models.AttendanceRecord{priorRecord("d9", "fp9", now.Add(-9*time.Second))},
			candidate: models.AttendanceRecord{DeviceID: "d1", Fingerprint: "fp1"},
			score:     15,
			signals:   []string{SignalBurst},
		},
		{
			name:      "burst window is exclusive",
			prior:     []models.AttendanceRecord{priorRecord("d9", "fp9", now.Add(-10*time.Second))},
			candidate: models.AttendanceRecord{DeviceID: "d1", Fingerprint: "fp1"},
		},
		{
			name:      "unset last timestamp contributes nothing",
			prior:     []models.AttendanceRecord{priorRecord("d9", "fp9", now.Add(-time.Second)), priorRecord("d8", "fp8", time.Time{})},
			candidate: models.AttendanceRecord{DeviceID: "d1", Fingerprint: "fp1"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := scorer.Score(tc.prior, tc.candidate, now)
			assert.Equal(t, tc.score, got.Score)
			assert.Equal(t, tc.flagged, got.Flagged)
			assert.Equal(t, tc.signals, got.Signals)
		})
	}
}

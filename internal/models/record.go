package models

import (
	"strings"
	"time"
	"unicode"

	"github.com/lib/pq"
)

// ManualDeviceSentinel is the device id stored on rows entered by an administrator.
const ManualDeviceSentinel = "__manual_entry__"

// AnonymousDevicePrefix starts the per-request device id given to legacy
// submissions that carry no device identifier.
const AnonymousDevicePrefix = "anon:"

// RecordSource describes how a row came to exist.
type RecordSource string

const (
	RecordSourceSelf   RecordSource = "SELF"
	RecordSourceManual RecordSource = "MANUAL_BY_ADMIN"
	RecordSourceEdited RecordSource = "EDITED"
)

// AttendanceRecord is one accepted attendance row.
type AttendanceRecord struct {
	ID             string         `db:"id" json:"id"`
	SessionID      string         `db:"session_id" json:"session_id"`
	FullName       string         `db:"full_name" json:"full_name"`
	NormalizedName string         `db:"normalized_name" json:"-"`
	IDNumber       string         `db:"id_number" json:"id_number"`
	DeviceID       string         `db:"device_id" json:"device_id"`
	Fingerprint    string         `db:"fingerprint" json:"fingerprint,omitempty"`
	Source         RecordSource   `db:"source" json:"source"`
	RiskScore      int            `db:"risk_score" json:"risk_score"`
	Flagged        bool           `db:"flagged" json:"flagged"`
	RiskSignals    pq.StringArray `db:"risk_signals" json:"risk_signals,omitempty"`
	SubmittedAt    time.Time      `db:"submitted_at" json:"submitted_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// ExemptFromDeviceRule is true for administrator-entered rows carrying the sentinel device.
func (r AttendanceRecord) ExemptFromDeviceRule() bool {
	return r.DeviceID == ManualDeviceSentinel && r.Source != RecordSourceSelf
}

// FingerprintKey returns the fingerprint, falling back to the device id when none was collected.
func (r AttendanceRecord) FingerprintKey() string {
	if r.Fingerprint != "" {
		return r.Fingerprint
	}
	return r.DeviceID
}

// RecordFilter scopes record listings. PageSize <= 0 returns every row.
type RecordFilter struct {
	SessionID   string
	FlaggedOnly bool
	Page        int
	PageSize    int
}

// NormalizeName collapses whitespace runs to a single space, trims and lowercases.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.FieldsFunc(name, unicode.IsSpace), " "))
}

// NormalizeIDNumber trims surrounding whitespace from an id number.
func NormalizeIDNumber(id string) string {
	return strings.TrimSpace(id)
}

package models

import "time"

// CredentialKind selects the rotating credential format.
type CredentialKind string

const (
	CredentialKindCode  CredentialKind = "CODE"
	CredentialKindToken CredentialKind = "TOKEN"
)

// RotatingCredential is a short-lived shared secret shown on the lecture display.
type RotatingCredential struct {
	SessionID string         `json:"session_id"`
	Value     string         `json:"value"`
	Kind      CredentialKind `json:"kind"`
	IssuedAt  time.Time      `json:"issued_at"`
}

// Age returns how long ago the credential was issued relative to now.
func (c RotatingCredential) Age(now time.Time) time.Duration {
	return now.Sub(c.IssuedAt)
}

// FreshAt reports whether the credential is within lifetime at now.
func (c RotatingCredential) FreshAt(now time.Time, lifetime time.Duration) bool {
	return c.Age(now) <= lifetime
}

// CredentialView is what the display polls: the current value plus its remaining lifetime.
type CredentialView struct {
	Credential       RotatingCredential `json:"credential"`
	SecondsRemaining int                `json:"seconds_remaining"`
	ScanURL          string             `json:"scan_url,omitempty"`
}

package models

import "time"

// SessionKind distinguishes daily roll calls from per-subject lectures.
type SessionKind string

const (
	SessionKindDaily      SessionKind = "DAILY"
	SessionKindPerSubject SessionKind = "PER_SUBJECT"
)

// Valid returns true when the kind is supported.
func (k SessionKind) Valid() bool {
	return k == SessionKindDaily || k == SessionKindPerSubject
}

// SessionStatus is the lifecycle state of an attendance session.
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "ACTIVE"
	SessionStatusEnded  SessionStatus = "ENDED"
)

// AttendanceSession is a single attendance-taking window.
type AttendanceSession struct {
	ID        string        `db:"id" json:"id"`
	Kind      SessionKind   `db:"kind" json:"kind"`
	Label     string        `db:"label" json:"label"`
	Status    SessionStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	EndedAt   *time.Time    `db:"ended_at" json:"ended_at,omitempty"`
}

// Active reports whether the session still accepts student submissions.
func (s *AttendanceSession) Active() bool {
	return s != nil && s.Status == SessionStatusActive
}

// SessionFilter scopes session listings.
type SessionFilter struct {
	Status *SessionStatus
}

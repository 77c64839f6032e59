package models

import (
	"encoding/json"
	"time"
)

// AuditAction enumerates administrative actions written to the audit trail.
type AuditAction string

const (
	AuditActionSessionStart    AuditAction = "SESSION_START"
	AuditActionSessionEnd      AuditAction = "SESSION_END"
	AuditActionRecordAdd       AuditAction = "RECORD_ADD"
	AuditActionRecordEdit      AuditAction = "RECORD_EDIT"
	AuditActionRecordDelete    AuditAction = "RECORD_DELETE"
	AuditActionCredentialIssue AuditAction = "CREDENTIAL_ISSUE"
	AuditActionAdminLogin      AuditAction = "ADMIN_LOGIN"
)

// AuditLog represents an audit trail entry.
type AuditLog struct {
	ID        string          `db:"id" json:"id"`
	Actor     string          `db:"actor" json:"actor"`
	Action    AuditAction     `db:"action" json:"action"`
	SessionID *string         `db:"session_id" json:"session_id,omitempty"`
	Subject   *string         `db:"subject" json:"subject,omitempty"`
	Payload   json.RawMessage `db:"payload" json:"payload,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

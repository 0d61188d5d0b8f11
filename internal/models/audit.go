package models

import (
	"encoding/json"
	"time"
)

// AuditAction constants represent actions to be logged.
const (
	AuditActionSignup   = "SIGNUP"
	AuditActionLogin    = "LOGIN"
	AuditActionSubmit   = "SUBMIT"
	AuditActionDecide   = "DECIDE"
	AuditActionExtend   = "EXTEND"
	AuditActionAttach   = "ATTACH"
	AuditActionExport   = "EXPORT"
	AuditActionDownload = "DOWNLOAD"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string          `db:"id" json:"id"`
	ActorID    *string         `db:"actor_id" json:"actor_id,omitempty"`
	Action     string          `db:"action" json:"action"`
	Resource   string          `db:"resource" json:"resource"`
	ResourceID *string         `db:"resource_id" json:"resource_id,omitempty"`
	Payload    json.RawMessage `db:"payload" json:"payload,omitempty"`
	IPAddress  string          `db:"ip_address" json:"ip_address"`
	UserAgent  string          `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

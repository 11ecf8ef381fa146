package domain

import "time"

// AuditLog represents an audit event. UserID is empty for anonymous events (e.g. login_failure for an
// unknown email). Metadata is a JSON object or empty.
type AuditLog struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId,omitempty"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resourceId,omitempty"`
	IPAddress  string    `json:"ipAddress"`
	UserAgent  string    `json:"userAgent,omitempty"`
	Metadata   string    `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

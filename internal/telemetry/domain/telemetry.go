package domain

import (
	"encoding/json"
	"time"
)

// Event is an audit-derived telemetry event fanned out to OTel logs and the Kafka audit stream.
type Event struct {
	ID         string          `json:"id"`
	Action     string          `json:"action"`
	Resource   string          `json:"resource"`
	ResourceID string          `json:"resourceId,omitempty"`
	UserID     string          `json:"userId,omitempty"`
	IPAddress  string          `json:"ipAddress"`
	UserAgent  string          `json:"userAgent,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

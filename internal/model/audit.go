package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit event types.
const (
	AuditRuleCreated  = "rule_created"
	AuditRuleUpdated  = "rule_updated"
	AuditRuleDeleted  = "rule_deleted"
	AuditRuleEnabled  = "rule_enabled"
	AuditRuleDisabled = "rule_disabled"

	AuditPollTriggered     = "poll_triggered"
	AuditSchedulerEnabled  = "scheduler_enabled"
	AuditSchedulerDisabled = "scheduler_disabled"

	AuditServerStarted = "server_started"
	AuditServerStopped = "server_stopped"
)

// AuditEntry is one row in the append-only audit trail.
type AuditEntry struct {
	ID           string          `json:"id"`
	Timestamp    int64           `json:"timestamp"`
	EventType    string          `json:"event_type"`
	Actor        string          `json:"actor"`
	ResourceType string          `json:"resource_type,omitempty"`
	ResourceID   string          `json:"resource_id,omitempty"`
	Details      json.RawMessage `json:"details"`
	IPAddress    string          `json:"ip_address,omitempty"`
	UserAgent    string          `json:"user_agent,omitempty"`
}

// NewAuditEntry creates an audit entry for the given event. details is
// marshaled to JSON; a nil details records an empty object.
func NewAuditEntry(eventType, actor string, details any) *AuditEntry {
	raw := json.RawMessage("{}")
	if details != nil {
		if data, err := json.Marshal(details); err == nil {
			raw = data
		}
	}
	return &AuditEntry{
		ID:        uuid.New().String(),
		Timestamp: time.Now().Unix(),
		EventType: eventType,
		Actor:     actor,
		Details:   raw,
	}
}

// WithResource attaches the affected resource to the entry.
func (e *AuditEntry) WithResource(resourceType, resourceID string) *AuditEntry {
	e.ResourceType = resourceType
	e.ResourceID = resourceID
	return e
}

// WithRequest attaches request metadata to the entry.
func (e *AuditEntry) WithRequest(ipAddress, userAgent string) *AuditEntry {
	e.IPAddress = ipAddress
	e.UserAgent = userAgent
	return e
}

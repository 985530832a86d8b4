// Package outbox defines the durable sync queue and audit log records.
//
// The queue is an append-only log: multiple entries for the same externalId
// may coexist, each carrying its own snapshot. Delivery is idempotent per
// externalId on the LinkHub side, so a stale success of an older snapshot is
// harmless.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/okrtools/goalpost/internal/domain/okr"
)

// Status is the lifecycle state of a queue entry.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// ValidStatus reports whether s is a known queue status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// QueueEntry is one unit of pending replication work. Payload is the
// ownership-filtered snapshot of the entity at enqueue time; the processor
// treats each entry's payload independently.
type QueueEntry struct {
	ID            string          `json:"id"`
	EntityType    okr.Kind        `json:"entityType"`
	ExternalID    string          `json:"externalId"`
	Payload       json.RawMessage `json:"payload"`
	Status        Status          `json:"status"`
	Attempts      int             `json:"attempts"`
	LastAttemptAt *time.Time      `json:"lastAttemptAt,omitempty"`
	ErrorMessage  string          `json:"errorMessage,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Action distinguishes remote create from remote update in the audit log.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// LogEntry is an immutable audit row written only on confirmed remote
// success. LinkHubID is empty when the remote only acknowledges.
type LogEntry struct {
	ID         string    `json:"id"`
	EntityType okr.Kind  `json:"entityType"`
	ExternalID string    `json:"externalId"`
	LinkHubID  string    `json:"linkHubId,omitempty"`
	Action     Action    `json:"action"`
	SyncedAt   time.Time `json:"syncedAt"`
}

// Stats summarizes queue depth per status for the inspection endpoint.
type Stats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Success    int `json:"success"`
	Failed     int `json:"failed"`
}

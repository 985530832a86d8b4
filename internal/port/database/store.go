// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/okrtools/goalpost/internal/domain/auth"
	"github.com/okrtools/goalpost/internal/domain/okr"
	"github.com/okrtools/goalpost/internal/domain/outbox"
)

// Store is the port interface for database operations. Entity writes and
// their queue-entry appends commit in the same transaction, which is what
// makes the outbox durable the instant the local write is.
type Store interface {
	// Entities
	GetEntity(ctx context.Context, kind okr.Kind, externalID string) (*okr.Entity, error)
	EntityExists(ctx context.Context, kind okr.Kind, externalID string) (bool, error)
	ListEntities(ctx context.Context, kind okr.Kind, limit int) ([]okr.Entity, error)
	CreateEntity(ctx context.Context, e *okr.Entity, entry *outbox.QueueEntry) error
	UpdateEntity(ctx context.Context, e *okr.Entity, entry *outbox.QueueEntry) error
	SetEntitySyncStatus(ctx context.Context, kind okr.Kind, externalID string, status okr.SyncStatus) error

	// Sync queue
	CreateQueueEntry(ctx context.Context, entry *outbox.QueueEntry) error
	GetQueueEntry(ctx context.Context, id string) (*outbox.QueueEntry, error)
	ListQueueEntries(ctx context.Context, status outbox.Status, limit int) ([]outbox.QueueEntry, error)
	ClaimQueueEntry(ctx context.Context, id string) error
	ResolveQueueEntry(ctx context.Context, id string, status outbox.Status, errorMessage string) error
	QueueStats(ctx context.Context) (*outbox.Stats, error)

	// Sync log
	AppendSyncLog(ctx context.Context, entry *outbox.LogEntry) error
	ListSyncLog(ctx context.Context, kind okr.Kind, limit int) ([]outbox.LogEntry, error)

	// API keys
	CreateAPIKey(ctx context.Context, key *auth.APIKey) error
	GetAPIKeyByPrefix(ctx context.Context, prefix string) (*auth.APIKey, error)
	TouchAPIKey(ctx context.Context, id string) error
}

// Package messagequeue defines the sync event publisher port (interface).
package messagequeue

import "context"

// Publisher is the port interface for emitting sync lifecycle events to
// host-side consumers. The engine only publishes; it never subscribes.
type Publisher interface {
	// Publish sends an event to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Close shuts down the underlying connection.
	Close() error
}

// Subjects for sync lifecycle events.
const (
	SubjectEntitySynced   = "sync.entity.synced"
	SubjectEntityFailed   = "sync.entity.failed"
	SubjectBatchCompleted = "sync.batch.completed"
)

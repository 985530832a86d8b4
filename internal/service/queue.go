package service

import (
	"context"
	"fmt"

	"github.com/okrtools/goalpost/internal/domain"
	"github.com/okrtools/goalpost/internal/domain/okr"
	"github.com/okrtools/goalpost/internal/domain/outbox"
)

// ListQueue returns queue entries with the given status, oldest first.
func (s *SyncService) ListQueue(ctx context.Context, status outbox.Status, limit int) ([]outbox.QueueEntry, error) {
	if !outbox.ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown queue status %q", domain.ErrValidation, status)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.ListQueueEntries(ctx, status, limit)
}

// Stats returns queue depth per status.
func (s *SyncService) Stats(ctx context.Context) (*outbox.Stats, error) {
	return s.store.QueueStats(ctx)
}

// Log returns recent audit rows, newest first. kind may be empty for all
// entity types.
func (s *SyncService) Log(ctx context.Context, kind okr.Kind, limit int) ([]outbox.LogEntry, error) {
	if kind != "" && !okr.ValidKind(kind) {
		return nil, fmt.Errorf("%w: unknown entity kind %q", domain.ErrValidation, kind)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.ListSyncLog(ctx, kind, limit)
}

// Resubmit appends a fresh pending entry for a failed one, snapshotting the
// entity's current fields rather than replaying the failed payload. The
// failed entry itself is left untouched as an audit record.
func (s *SyncService) Resubmit(ctx context.Context, entryID string) (*outbox.QueueEntry, error) {
	entry, err := s.store.GetQueueEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != outbox.StatusFailed {
		return nil, fmt.Errorf("%w: entry %s is %s, only failed entries can be resubmitted", domain.ErrValidation, entryID, entry.Status)
	}

	e, err := s.store.GetEntity(ctx, entry.EntityType, entry.ExternalID)
	if err != nil {
		return nil, err
	}

	fresh, err := buildQueueEntry(e)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateQueueEntry(ctx, fresh); err != nil {
		return nil, err
	}
	if err := s.store.SetEntitySyncStatus(ctx, e.Kind, e.ExternalID, okr.SyncPending); err != nil {
		s.logger.WarnContext(ctx, "reset entity sync status", "external_id", e.ExternalID, "error", err)
	}

	s.metrics.EntriesEnqueued.Add(ctx, 1)
	s.logger.InfoContext(ctx, "entry resubmitted", "failed_entry", entryID, "new_entry", fresh.ID)
	return fresh, nil
}

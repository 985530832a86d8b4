package postgres

import (
	"context"
	"fmt"

	"github.com/okrtools/goalpost/internal/domain/okr"
	"github.com/okrtools/goalpost/internal/domain/outbox"
)

func (s *Store) AppendSyncLog(ctx context.Context, entry *outbox.LogEntry) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO sync_log (entity_type, external_id, link_hub_id, action)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, synced_at`,
		string(entry.EntityType), entry.ExternalID, entry.LinkHubID, string(entry.Action),
	).Scan(&entry.ID, &entry.SyncedAt)
	if err != nil {
		return fmt.Errorf("append sync log %s %s: %w", entry.EntityType, entry.ExternalID, err)
	}
	return nil
}

// ListSyncLog returns the most recent audit rows, newest first. An empty
// kind means all entity types.
func (s *Store) ListSyncLog(ctx context.Context, kind okr.Kind, limit int) ([]outbox.LogEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, entity_type, external_id, link_hub_id, action, synced_at
		 FROM sync_log
		 WHERE ($1 = '' OR entity_type = $1)
		 ORDER BY synced_at DESC LIMIT $2`,
		string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("list sync log: %w", err)
	}
	defer rows.Close()

	var entries []outbox.LogEntry
	for rows.Next() {
		var entry outbox.LogEntry
		if err := rows.Scan(&entry.ID, &entry.EntityType, &entry.ExternalID,
			&entry.LinkHubID, &entry.Action, &entry.SyncedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

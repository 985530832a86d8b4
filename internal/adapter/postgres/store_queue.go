package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/okrtools/goalpost/internal/domain"
	"github.com/okrtools/goalpost/internal/domain/outbox"
)

const queueColumns = `id, entity_type, external_id, payload, status, attempts, last_attempt_at, error_message, created_at`

func insertQueueEntry(ctx context.Context, tx pgx.Tx, entry *outbox.QueueEntry) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO sync_queue (entity_type, external_id, payload, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		string(entry.EntityType), entry.ExternalID, []byte(entry.Payload), string(entry.Status),
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue %s %s: %w", entry.EntityType, entry.ExternalID, err)
	}
	return nil
}

// CreateQueueEntry appends a queue entry outside an entity transaction,
// used by resubmission.
func (s *Store) CreateQueueEntry(ctx context.Context, entry *outbox.QueueEntry) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO sync_queue (entity_type, external_id, payload, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		string(entry.EntityType), entry.ExternalID, []byte(entry.Payload), string(entry.Status),
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue %s %s: %w", entry.EntityType, entry.ExternalID, err)
	}
	return nil
}

func (s *Store) GetQueueEntry(ctx context.Context, id string) (*outbox.QueueEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+queueColumns+` FROM sync_queue WHERE id = $1`, id)

	entry, err := scanQueueEntry(row)
	if err != nil {
		return nil, notFoundWrap(err, "get queue entry %s", id)
	}
	return &entry, nil
}

// ListQueueEntries returns entries with the given status, oldest first,
// which is also the claim order the processor relies on.
func (s *Store) ListQueueEntries(ctx context.Context, status outbox.Status, limit int) ([]outbox.QueueEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+queueColumns+` FROM sync_queue
		 WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}
	defer rows.Close()

	var entries []outbox.QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ClaimQueueEntry moves a pending entry to processing and records the
// attempt. The status guard in the WHERE clause makes concurrent claims of
// the same entry lose cleanly: the loser gets ErrConflict and skips it.
func (s *Store) ClaimQueueEntry(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sync_queue
		 SET status = $2, attempts = attempts + 1, last_attempt_at = now()
		 WHERE id = $1 AND status = $3`,
		id, string(outbox.StatusProcessing), string(outbox.StatusPending))
	if err != nil {
		return fmt.Errorf("claim queue entry %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("claim queue entry %s: %w", id, domain.ErrConflict)
	}
	return nil
}

func (s *Store) ResolveQueueEntry(ctx context.Context, id string, status outbox.Status, errorMessage string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sync_queue SET status = $2, error_message = $3 WHERE id = $1`,
		id, string(status), errorMessage)
	return execExpectOne(tag, err, "resolve queue entry %s", id)
}

func (s *Store) QueueStats(ctx context.Context) (*outbox.Stats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, count(*) FROM sync_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var stats outbox.Stats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		switch outbox.Status(status) {
		case outbox.StatusPending:
			stats.Pending = count
		case outbox.StatusProcessing:
			stats.Processing = count
		case outbox.StatusSuccess:
			stats.Success = count
		case outbox.StatusFailed:
			stats.Failed = count
		}
	}
	return &stats, rows.Err()
}

func scanQueueEntry(row scannable) (outbox.QueueEntry, error) {
	var entry outbox.QueueEntry
	var payload []byte
	err := row.Scan(&entry.ID, &entry.EntityType, &entry.ExternalID, &payload,
		&entry.Status, &entry.Attempts, &entry.LastAttemptAt, &entry.ErrorMessage, &entry.CreatedAt)
	if err != nil {
		return entry, err
	}
	entry.Payload = payload
	return entry, nil
}

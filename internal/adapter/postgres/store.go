package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okrtools/goalpost/internal/domain"
	"github.com/okrtools/goalpost/internal/domain/okr"
	"github.com/okrtools/goalpost/internal/domain/outbox"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const entityColumns = `id, kind, external_id, fields, sync_status, created_at, updated_at, deleted_at`

// --- Entities ---

func (s *Store) GetEntity(ctx context.Context, kind okr.Kind, externalID string) (*okr.Entity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE kind = $1 AND external_id = $2`,
		string(kind), externalID)

	e, err := scanEntity(row)
	if err != nil {
		return nil, notFoundWrap(err, "get %s %s", kind, externalID)
	}
	return &e, nil
}

func (s *Store) EntityExists(ctx context.Context, kind okr.Kind, externalID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM entities WHERE kind = $1 AND external_id = $2 AND deleted_at IS NULL)`,
		string(kind), externalID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists %s %s: %w", kind, externalID, err)
	}
	return exists, nil
}

func (s *Store) ListEntities(ctx context.Context, kind okr.Kind, limit int) ([]okr.Entity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entityColumns+` FROM entities
		 WHERE kind = $1 AND deleted_at IS NULL ORDER BY created_at DESC LIMIT $2`,
		string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var entities []okr.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// CreateEntity inserts the entity row and its outbox entry in one transaction,
// so replication intent is durable exactly when the local write is.
func (s *Store) CreateEntity(ctx context.Context, e *okr.Entity, entry *outbox.QueueEntry) error {
	fieldsJSON, err := json.Marshal(e.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	err = tx.QueryRow(ctx,
		`INSERT INTO entities (kind, external_id, fields, sync_status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		string(e.Kind), e.ExternalID, fieldsJSON, string(e.SyncStatus),
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert %s %s: %w", e.Kind, e.ExternalID, domain.ErrConflict)
		}
		return fmt.Errorf("insert %s %s: %w", e.Kind, e.ExternalID, err)
	}

	if err := insertQueueEntry(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// UpdateEntity persists merged fields, resets the sync status, and appends a
// fresh outbox entry in the same transaction. Existing entries are untouched.
func (s *Store) UpdateEntity(ctx context.Context, e *okr.Entity, entry *outbox.QueueEntry) error {
	fieldsJSON, err := json.Marshal(e.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	err = tx.QueryRow(ctx,
		`UPDATE entities SET fields = $3, sync_status = $4, updated_at = now(), deleted_at = $5
		 WHERE kind = $1 AND external_id = $2
		 RETURNING updated_at`,
		string(e.Kind), e.ExternalID, fieldsJSON, string(e.SyncStatus), e.DeletedAt,
	).Scan(&e.UpdatedAt)
	if err != nil {
		return notFoundWrap(err, "update %s %s", e.Kind, e.ExternalID)
	}

	if err := insertQueueEntry(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) SetEntitySyncStatus(ctx context.Context, kind okr.Kind, externalID string, status okr.SyncStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE entities SET sync_status = $3 WHERE kind = $1 AND external_id = $2`,
		string(kind), externalID, string(status))
	return execExpectOne(tag, err, "set sync status %s %s", kind, externalID)
}

// --- Scanners ---

func scanEntity(row scannable) (okr.Entity, error) {
	var e okr.Entity
	var fieldsJSON []byte
	err := row.Scan(&e.ID, &e.Kind, &e.ExternalID, &fieldsJSON, &e.SyncStatus, &e.CreatedAt, &e.UpdatedAt, &e.DeletedAt)
	if err != nil {
		return e, err
	}
	if fieldsJSON != nil {
		if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
			return e, fmt.Errorf("unmarshal fields: %w", err)
		}
	}
	return e, nil
}

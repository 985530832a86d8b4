// Package service contains the sync engine's application services: local
// entity writes with transactional enqueue, batch delivery, and API keys.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/okrtools/goalpost/internal/adapter/otel"
	"github.com/okrtools/goalpost/internal/domain"
	"github.com/okrtools/goalpost/internal/domain/extid"
	"github.com/okrtools/goalpost/internal/domain/okr"
	"github.com/okrtools/goalpost/internal/domain/outbox"
	"github.com/okrtools/goalpost/internal/ownership"
	"github.com/okrtools/goalpost/internal/port/cache"
	"github.com/okrtools/goalpost/internal/port/database"
)

// EntityService handles local entity writes. Every accepted write commits
// the entity row and a pending queue entry in one transaction.
type EntityService struct {
	store     database.Store
	cache     cache.Cache
	metrics   *otel.Metrics
	logger    *slog.Logger
	sourceApp string
	cacheTTL  time.Duration
}

// NewEntityService creates an entity service. cache may be nil, in which
// case parent existence checks always hit the store.
func NewEntityService(store database.Store, c cache.Cache, metrics *otel.Metrics, logger *slog.Logger, sourceApp string, cacheTTL time.Duration) *EntityService {
	return &EntityService{
		store:     store,
		cache:     c,
		metrics:   metrics,
		logger:    logger,
		sourceApp: sourceApp,
		cacheTTL:  cacheTTL,
	}
}

// CreateRequest is the body for creating an entity. ExternalID is optional:
// when absent the engine mints one; when present creates are idempotent on
// it. ScopeKey requests a scoped-deterministic identifier instead: the same
// (parent, scopeKey) pair always maps to the same externalId, so retried
// creates converge without the caller tracking the minted ID.
type CreateRequest struct {
	ExternalID string         `json:"externalId,omitempty"`
	ScopeKey   string         `json:"scopeKey,omitempty"`
	Fields     map[string]any `json:"fields"`
}

// CreateResult reports the stored entity and whether it already existed.
type CreateResult struct {
	Entity   *okr.Entity `json:"entity"`
	Existing bool        `json:"existing"`
}

// Create stores a new entity and enqueues it for replication. A repeated
// create with the same caller-supplied externalId returns the stored entity
// unchanged and appends no second queue entry.
func (s *EntityService) Create(ctx context.Context, kind okr.Kind, req CreateRequest) (*CreateResult, error) {
	if !okr.ValidKind(kind) {
		return nil, fmt.Errorf("%w: unknown entity kind %q", domain.ErrValidation, kind)
	}

	externalID := req.ExternalID
	switch {
	case externalID != "":
		if err := extid.Assert(externalID); err != nil {
			return nil, err
		}
		if extid.EntityType(externalID) != string(kind) {
			return nil, fmt.Errorf("%w: externalId %q does not name a %s", domain.ErrValidation, externalID, kind)
		}
	case req.ScopeKey != "":
		var err error
		externalID, err = s.scopedID(kind, req)
		if err != nil {
			return nil, err
		}
	default:
		var err error
		externalID, err = extid.Generate(s.sourceApp, string(kind))
		if err != nil {
			return nil, fmt.Errorf("generate external id: %w", err)
		}
	}

	// Supplied and scoped identifiers are stable, so repeats are idempotent.
	if req.ExternalID != "" || req.ScopeKey != "" {
		existing, err := s.store.GetEntity(ctx, kind, externalID)
		if err == nil {
			return &CreateResult{Entity: existing, Existing: true}, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	fields := ownership.Strip(kind, req.Fields)
	if err := s.checkRefs(ctx, kind, fields); err != nil {
		return nil, err
	}

	e := &okr.Entity{
		Kind:       kind,
		ExternalID: externalID,
		Fields:     fields,
		SyncStatus: okr.SyncPending,
	}
	entry, err := buildQueueEntry(e)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateEntity(ctx, e, entry); err != nil {
		// A concurrent create with the same stable id can win between the
		// existence pre-check and the insert. The duplicate is a success,
		// not a conflict: return the row the winner stored.
		if errors.Is(err, domain.ErrConflict) {
			existing, getErr := s.store.GetEntity(ctx, kind, externalID)
			if getErr == nil {
				return &CreateResult{Entity: existing, Existing: true}, nil
			}
		}
		return nil, err
	}
	s.markExists(ctx, kind, externalID)
	s.metrics.EntriesEnqueued.Add(ctx, 1)
	s.logger.InfoContext(ctx, "entity created", "kind", kind, "external_id", externalID, "queue_entry", entry.ID)

	return &CreateResult{Entity: e}, nil
}

// Update merges the given fields into the entity, resets its sync status,
// and appends a fresh queue entry carrying the new snapshot. Keys absent
// from fields are left unchanged.
func (s *EntityService) Update(ctx context.Context, kind okr.Kind, externalID string, fields map[string]any) (*okr.Entity, error) {
	if !okr.ValidKind(kind) {
		return nil, fmt.Errorf("%w: unknown entity kind %q", domain.ErrValidation, kind)
	}

	e, err := s.store.GetEntity(ctx, kind, externalID)
	if err != nil {
		return nil, err
	}
	if e.DeletedAt != nil {
		return nil, fmt.Errorf("update %s %s: %w", kind, externalID, domain.ErrNotFound)
	}

	merged := make(map[string]any, len(e.Fields)+len(fields))
	for k, v := range e.Fields {
		merged[k] = v
	}
	for k, v := range ownership.Strip(kind, fields) {
		merged[k] = v
	}
	if err := s.checkRefs(ctx, kind, merged); err != nil {
		return nil, err
	}

	e.Fields = merged
	e.SyncStatus = okr.SyncPending
	entry, err := buildQueueEntry(e)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateEntity(ctx, e, entry); err != nil {
		return nil, err
	}
	s.metrics.EntriesEnqueued.Add(ctx, 1)
	s.logger.InfoContext(ctx, "entity updated", "kind", kind, "external_id", externalID, "queue_entry", entry.ID)

	return e, nil
}

// Delete soft-deletes the entity locally and enqueues an update entry whose
// snapshot carries deleted:true, so the remote side tombstones it too.
func (s *EntityService) Delete(ctx context.Context, kind okr.Kind, externalID string) error {
	e, err := s.store.GetEntity(ctx, kind, externalID)
	if err != nil {
		return err
	}
	if e.DeletedAt != nil {
		return nil
	}

	now := time.Now()
	e.DeletedAt = &now
	e.SyncStatus = okr.SyncPending
	entry, err := buildQueueEntry(e)
	if err != nil {
		return err
	}

	if err := s.store.UpdateEntity(ctx, e, entry); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, existsKey(kind, externalID))
	}
	s.metrics.EntriesEnqueued.Add(ctx, 1)
	s.logger.InfoContext(ctx, "entity deleted", "kind", kind, "external_id", externalID)
	return nil
}

// Get returns a stored entity.
func (s *EntityService) Get(ctx context.Context, kind okr.Kind, externalID string) (*okr.Entity, error) {
	if !okr.ValidKind(kind) {
		return nil, fmt.Errorf("%w: unknown entity kind %q", domain.ErrValidation, kind)
	}
	return s.store.GetEntity(ctx, kind, externalID)
}

// List returns stored entities of one kind, newest first.
func (s *EntityService) List(ctx context.Context, kind okr.Kind, limit int) ([]okr.Entity, error) {
	if !okr.ValidKind(kind) {
		return nil, fmt.Errorf("%w: unknown entity kind %q", domain.ErrValidation, kind)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.ListEntities(ctx, kind, limit)
}

// scopedID derives a deterministic externalId from the entity's first
// declared parent reference and the caller's scope key.
func (s *EntityService) scopedID(kind okr.Kind, req CreateRequest) (string, error) {
	for _, ref := range okr.Refs(kind) {
		parent, ok := req.Fields[ref.Field].(string)
		if !ok || parent == "" {
			continue
		}
		id, err := extid.GenerateScoped(s.sourceApp, string(kind), parent, req.ScopeKey)
		if err != nil {
			return "", err
		}
		return id, nil
	}
	return "", fmt.Errorf("%w: scopeKey requires a parent reference field", domain.ErrValidation)
}

// checkRefs validates the parent references declared for kind: required refs
// must be present, and every present ref must name an existing entity of the
// expected kind.
func (s *EntityService) checkRefs(ctx context.Context, kind okr.Kind, fields map[string]any) error {
	for _, ref := range okr.Refs(kind) {
		raw, ok := fields[ref.Field]
		if !ok || raw == nil {
			if ref.Required {
				return fmt.Errorf("%w: %s requires %s", domain.ErrValidation, kind, ref.Field)
			}
			continue
		}
		parentID, ok := raw.(string)
		if !ok {
			return fmt.Errorf("%w: %s must be an externalId string", domain.ErrValidation, ref.Field)
		}
		if err := extid.Assert(parentID); err != nil {
			return err
		}
		if extid.EntityType(parentID) != string(ref.Kind) {
			return fmt.Errorf("%w: %s %q does not name a %s", domain.ErrValidation, ref.Field, parentID, ref.Kind)
		}

		exists, err := s.parentExists(ctx, ref.Kind, parentID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%s %s: %w", ref.Kind, parentID, domain.ErrNotFound)
		}
	}
	return nil
}

// parentExists memoizes positive existence checks. Negative results are
// never cached: a parent created moments later must be visible immediately.
func (s *EntityService) parentExists(ctx context.Context, kind okr.Kind, externalID string) (bool, error) {
	key := existsKey(kind, externalID)
	if s.cache != nil {
		if _, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			return true, nil
		}
	}

	exists, err := s.store.EntityExists(ctx, kind, externalID)
	if err != nil {
		return false, err
	}
	if exists {
		s.markExists(ctx, kind, externalID)
	}
	return exists, nil
}

func (s *EntityService) markExists(ctx context.Context, kind okr.Kind, externalID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, existsKey(kind, externalID), []byte{1}, s.cacheTTL)
}

func existsKey(kind okr.Kind, externalID string) string {
	return "exists:" + string(kind) + ":" + externalID
}

// buildQueueEntry snapshots the entity into a pending queue entry. The
// payload is the batch item object: externalId plus the filtered fields.
func buildQueueEntry(e *okr.Entity) (*outbox.QueueEntry, error) {
	item := make(map[string]any, len(e.Fields)+2)
	for k, v := range e.Fields {
		item[k] = v
	}
	item["externalId"] = e.ExternalID
	if e.DeletedAt != nil {
		item["deleted"] = true
	}

	payload, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return &outbox.QueueEntry{
		EntityType: e.Kind,
		ExternalID: e.ExternalID,
		Payload:    payload,
		Status:     outbox.StatusPending,
	}, nil
}

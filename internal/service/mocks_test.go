package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/okrtools/goalpost/internal/adapter/linkhub"
	"github.com/okrtools/goalpost/internal/adapter/otel"
	"github.com/okrtools/goalpost/internal/domain"
	"github.com/okrtools/goalpost/internal/domain/auth"
	"github.com/okrtools/goalpost/internal/domain/okr"
	"github.com/okrtools/goalpost/internal/domain/outbox"
	"github.com/okrtools/goalpost/internal/port/database"
)

// Ensure mockStore implements database.Store at compile time.
var _ database.Store = (*mockStore)(nil)

// mockStore is a minimal in-memory implementation of database.Store for
// testing. Queue order is insertion order, which matches oldest-first.
type mockStore struct {
	entities map[string]*okr.Entity // keyed by externalID
	queue    []*outbox.QueueEntry
	log      []*outbox.LogEntry
	keys     map[string]*auth.APIKey // keyed by prefix
	nextID   int

	// Error hooks: set these to inject failures.
	createEntityErr error
	updateEntityErr error
	claimErr        error
	resolveErr      error

	// createEntityHook, when set, replaces the default insert entirely.
	createEntityHook func(e *okr.Entity) error
}

func newMockStore() *mockStore {
	return &mockStore{
		entities: make(map[string]*okr.Entity),
		keys:     make(map[string]*auth.APIKey),
	}
}

func (m *mockStore) id() string {
	m.nextID++
	return fmt.Sprintf("id-%d", m.nextID)
}

func (m *mockStore) GetEntity(_ context.Context, kind okr.Kind, externalID string) (*okr.Entity, error) {
	e, ok := m.entities[externalID]
	if !ok || e.Kind != kind {
		return nil, fmt.Errorf("get %s %s: %w", kind, externalID, domain.ErrNotFound)
	}
	return e, nil
}

func (m *mockStore) EntityExists(_ context.Context, kind okr.Kind, externalID string) (bool, error) {
	e, ok := m.entities[externalID]
	return ok && e.Kind == kind && e.DeletedAt == nil, nil
}

func (m *mockStore) ListEntities(_ context.Context, kind okr.Kind, _ int) ([]okr.Entity, error) {
	var out []okr.Entity
	for _, e := range m.entities {
		if e.Kind == kind && e.DeletedAt == nil {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockStore) CreateEntity(_ context.Context, e *okr.Entity, entry *outbox.QueueEntry) error {
	if m.createEntityErr != nil {
		return m.createEntityErr
	}
	if m.createEntityHook != nil {
		return m.createEntityHook(e)
	}
	if _, ok := m.entities[e.ExternalID]; ok {
		return fmt.Errorf("insert %s %s: %w", e.Kind, e.ExternalID, domain.ErrConflict)
	}
	e.ID = m.id()
	e.CreatedAt = time.Now()
	m.entities[e.ExternalID] = e
	m.appendEntry(entry)
	return nil
}

func (m *mockStore) UpdateEntity(_ context.Context, e *okr.Entity, entry *outbox.QueueEntry) error {
	if m.updateEntityErr != nil {
		return m.updateEntityErr
	}
	if _, ok := m.entities[e.ExternalID]; !ok {
		return fmt.Errorf("update %s %s: %w", e.Kind, e.ExternalID, domain.ErrNotFound)
	}
	now := time.Now()
	e.UpdatedAt = &now
	m.entities[e.ExternalID] = e
	m.appendEntry(entry)
	return nil
}

func (m *mockStore) SetEntitySyncStatus(_ context.Context, kind okr.Kind, externalID string, status okr.SyncStatus) error {
	e, ok := m.entities[externalID]
	if !ok || e.Kind != kind {
		return fmt.Errorf("set sync status %s %s: %w", kind, externalID, domain.ErrNotFound)
	}
	e.SyncStatus = status
	return nil
}

func (m *mockStore) appendEntry(entry *outbox.QueueEntry) {
	entry.ID = m.id()
	entry.CreatedAt = time.Now()
	m.queue = append(m.queue, entry)
}

func (m *mockStore) CreateQueueEntry(_ context.Context, entry *outbox.QueueEntry) error {
	m.appendEntry(entry)
	return nil
}

func (m *mockStore) GetQueueEntry(_ context.Context, id string) (*outbox.QueueEntry, error) {
	for _, e := range m.queue {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("get queue entry %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) ListQueueEntries(_ context.Context, status outbox.Status, limit int) ([]outbox.QueueEntry, error) {
	var out []outbox.QueueEntry
	for _, e := range m.queue {
		if e.Status == status {
			out = append(out, *e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *mockStore) ClaimQueueEntry(_ context.Context, id string) error {
	if m.claimErr != nil {
		return m.claimErr
	}
	for _, e := range m.queue {
		if e.ID == id {
			if e.Status != outbox.StatusPending {
				return fmt.Errorf("claim queue entry %s: %w", id, domain.ErrConflict)
			}
			e.Status = outbox.StatusProcessing
			e.Attempts++
			now := time.Now()
			e.LastAttemptAt = &now
			return nil
		}
	}
	return fmt.Errorf("claim queue entry %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) ResolveQueueEntry(_ context.Context, id string, status outbox.Status, errorMessage string) error {
	if m.resolveErr != nil {
		return m.resolveErr
	}
	for _, e := range m.queue {
		if e.ID == id {
			e.Status = status
			e.ErrorMessage = errorMessage
			return nil
		}
	}
	return fmt.Errorf("resolve queue entry %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) QueueStats(_ context.Context) (*outbox.Stats, error) {
	var stats outbox.Stats
	for _, e := range m.queue {
		switch e.Status {
		case outbox.StatusPending:
			stats.Pending++
		case outbox.StatusProcessing:
			stats.Processing++
		case outbox.StatusSuccess:
			stats.Success++
		case outbox.StatusFailed:
			stats.Failed++
		}
	}
	return &stats, nil
}

func (m *mockStore) AppendSyncLog(_ context.Context, entry *outbox.LogEntry) error {
	entry.ID = m.id()
	entry.SyncedAt = time.Now()
	m.log = append(m.log, entry)
	return nil
}

func (m *mockStore) ListSyncLog(_ context.Context, kind okr.Kind, _ int) ([]outbox.LogEntry, error) {
	var out []outbox.LogEntry
	for _, e := range m.log {
		if kind == "" || e.EntityType == kind {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockStore) CreateAPIKey(_ context.Context, key *auth.APIKey) error {
	if _, ok := m.keys[key.Prefix]; ok {
		return fmt.Errorf("create api key %s: %w", key.Prefix, domain.ErrConflict)
	}
	key.ID = m.id()
	key.CreatedAt = time.Now()
	m.keys[key.Prefix] = key
	return nil
}

func (m *mockStore) GetAPIKeyByPrefix(_ context.Context, prefix string) (*auth.APIKey, error) {
	key, ok := m.keys[prefix]
	if !ok {
		return nil, fmt.Errorf("get api key %s: %w", prefix, domain.ErrNotFound)
	}
	return key, nil
}

func (m *mockStore) TouchAPIKey(_ context.Context, id string) error {
	for _, key := range m.keys {
		if key.ID == id {
			now := time.Now()
			key.LastUsedAt = &now
			return nil
		}
	}
	return fmt.Errorf("touch api key %s: %w", id, domain.ErrNotFound)
}

// mockSender records sent payloads and replies with a canned response.
type mockSender struct {
	sent    [][]byte
	resp    *linkhub.Response
	sendErr error
}

func (m *mockSender) Send(_ context.Context, payload []byte) (*linkhub.Response, error) {
	m.sent = append(m.sent, payload)
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	if m.resp != nil {
		return m.resp, nil
	}
	return &linkhub.Response{Success: true}, nil
}

// mockPublisher records published events.
type mockPublisher struct {
	events []publishedEvent
}

type publishedEvent struct {
	subject string
	data    []byte
}

func (m *mockPublisher) Publish(_ context.Context, subject string, data []byte) error {
	m.events = append(m.events, publishedEvent{subject: subject, data: data})
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func testMetrics() *otel.Metrics {
	m, err := otel.NewMetrics()
	if err != nil {
		panic(err)
	}
	return m
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/okrtools/goalpost/internal/adapter/linkhub"
	"github.com/okrtools/goalpost/internal/domain"
	"github.com/okrtools/goalpost/internal/domain/okr"
	"github.com/okrtools/goalpost/internal/domain/outbox"
)

func TestListQueueRejectsUnknownStatus(t *testing.T) {
	svc := newSyncService(newMockStore(), &mockSender{}, nil, 10)

	_, err := svc.ListQueue(context.Background(), outbox.Status("done"), 10)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestStatsCountPerStatus(t *testing.T) {
	store := newMockStore()
	entities := seedObjectives(t, store, 3)

	sender := &mockSender{resp: &linkhub.Response{Results: []linkhub.ItemResult{
		{EntityType: string(entities[0].Kind), ExternalID: entities[0].ExternalID, LinkHubID: "lh-1"},
		{EntityType: string(entities[1].Kind), ExternalID: entities[1].ExternalID, Error: "rejected"},
		{EntityType: string(entities[2].Kind), ExternalID: entities[2].ExternalID, LinkHubID: "lh-3"},
	}}}
	svc := newSyncService(store, sender, nil, 10)

	if _, err := svc.Process(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Success != 2 || stats.Failed != 1 || stats.Pending != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestResubmitBuildsFreshSnapshot(t *testing.T) {
	store := newMockStore()
	entitySvc := newEntityService(store)
	ctx := context.Background()

	e := mustCreate(t, entitySvc, okr.KindObjective, map[string]any{"description": "v1"})

	sender := &mockSender{resp: &linkhub.Response{Results: []linkhub.ItemResult{{
		EntityType: string(e.Kind), ExternalID: e.ExternalID, Error: "rejected",
	}}}}
	svc := newSyncService(store, sender, nil, 10)

	if _, err := svc.Process(ctx); err != nil {
		t.Fatalf("process: %v", err)
	}
	failedID := store.queue[0].ID

	// The entity moves on while the entry sits failed.
	e.Fields["description"] = "v2"

	fresh, err := svc.Resubmit(ctx, failedID)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if fresh.ID == failedID {
		t.Fatal("resubmit reused the failed entry")
	}
	if fresh.Status != outbox.StatusPending {
		t.Errorf("fresh entry status = %q", fresh.Status)
	}
	// Current snapshot, not a replay of the failed payload.
	if want := `"description":"v2"`; !strings.Contains(string(fresh.Payload), want) {
		t.Errorf("payload %s does not carry %s", fresh.Payload, want)
	}

	// The failed entry stays as an audit record.
	old, _ := store.GetQueueEntry(ctx, failedID)
	if old.Status != outbox.StatusFailed {
		t.Errorf("failed entry status = %q, want failed", old.Status)
	}
	if e.SyncStatus != okr.SyncPending {
		t.Errorf("entity status = %q, want pending after resubmit", e.SyncStatus)
	}
}

func TestResubmitRejectsNonFailedEntry(t *testing.T) {
	store := newMockStore()
	seedObjectives(t, store, 1)

	svc := newSyncService(store, &mockSender{}, nil, 10)

	_, err := svc.Resubmit(context.Background(), store.queue[0].ID)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for pending entry, got %v", err)
	}
}

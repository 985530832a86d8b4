package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/okrtools/goalpost/internal/adapter/linkhub"
	"github.com/okrtools/goalpost/internal/adapter/otel"
	"github.com/okrtools/goalpost/internal/domain"
	"github.com/okrtools/goalpost/internal/domain/okr"
	"github.com/okrtools/goalpost/internal/domain/outbox"
	"github.com/okrtools/goalpost/internal/port/database"
	"github.com/okrtools/goalpost/internal/port/messagequeue"
)

// BatchSender posts a signed batch payload to LinkHub.
type BatchSender interface {
	Send(ctx context.Context, payload []byte) (*linkhub.Response, error)
}

// SyncService drains the outbox queue toward LinkHub in batches and exposes
// queue inspection. At most one batch is in flight at a time.
type SyncService struct {
	store     database.Store
	sender    BatchSender
	publisher messagequeue.Publisher
	metrics   *otel.Metrics
	logger    *slog.Logger
	batchSize int

	mu sync.Mutex
}

// NewSyncService creates the batch processor. publisher may be nil when no
// message queue is configured.
func NewSyncService(store database.Store, sender BatchSender, publisher messagequeue.Publisher, metrics *otel.Metrics, logger *slog.Logger, batchSize int) *SyncService {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncService{
		store:     store,
		sender:    sender,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		batchSize: batchSize,
	}
}

// Summary reports one processing run. Processed = Succeeded + Failed.
type Summary struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// syncEvent is the JSON body of per-entity lifecycle events.
type syncEvent struct {
	EntityType string `json:"entityType"`
	ExternalID string `json:"externalId"`
	LinkHubID  string `json:"linkHubId,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Process claims up to one batch of pending entries, delivers them in a
// single signed request, and reconciles each entry against the per-item
// results. Failed entries stay failed until explicitly resubmitted.
//
// Claims are committed before any network I/O: a crash mid-delivery leaves
// entries visibly stuck in processing rather than silently re-sendable.
func (s *SyncService) Process(ctx context.Context) (*Summary, error) {
	return s.ProcessN(ctx, 0)
}

// ProcessN is Process with a per-run batch size. n <= 0 falls back to the
// configured size.
func (s *SyncService) ProcessN(ctx context.Context, n int) (*Summary, error) {
	if !s.mu.TryLock() {
		return nil, fmt.Errorf("sync run already in progress: %w", domain.ErrConflict)
	}
	defer s.mu.Unlock()

	if n <= 0 {
		n = s.batchSize
	}
	pending, err := s.store.ListQueueEntries(ctx, outbox.StatusPending, n)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return &Summary{}, nil
	}

	claimed := make([]outbox.QueueEntry, 0, len(pending))
	for _, entry := range pending {
		if err := s.store.ClaimQueueEntry(ctx, entry.ID); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				continue
			}
			return nil, err
		}
		claimed = append(claimed, entry)
	}
	if len(claimed) == 0 {
		return &Summary{}, nil
	}
	s.metrics.EntriesClaimed.Add(ctx, int64(len(claimed)))

	payload, err := marshalBatch(claimed)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, sendErr := s.sender.Send(ctx, payload)
	s.metrics.BatchesSent.Add(ctx, 1)
	s.metrics.BatchDuration.Record(ctx, time.Since(start).Seconds())

	summary := &Summary{Processed: len(claimed)}
	if sendErr != nil {
		s.failBatch(ctx, claimed, "transport: "+sendErr.Error())
		summary.Failed = len(claimed)
		s.publishSummary(ctx, summary)
		s.logger.ErrorContext(ctx, "batch delivery failed", "entries", len(claimed), "error", sendErr)
		return summary, sendErr
	}

	s.reconcile(ctx, claimed, resp, summary)
	s.publishSummary(ctx, summary)
	s.logger.InfoContext(ctx, "batch processed",
		"processed", summary.Processed, "succeeded", summary.Succeeded, "failed", summary.Failed)
	return summary, nil
}

// marshalBatch groups snapshots by collection name and marshals the whole
// request once. These exact bytes are what gets signed and transmitted.
func marshalBatch(entries []outbox.QueueEntry) ([]byte, error) {
	collections := make(map[string][]json.RawMessage)
	for _, entry := range entries {
		name := okr.Collection(entry.EntityType)
		collections[name] = append(collections[name], entry.Payload)
	}
	payload, err := json.Marshal(collections)
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}
	return payload, nil
}

func (s *SyncService) reconcile(ctx context.Context, claimed []outbox.QueueEntry, resp *linkhub.Response, summary *Summary) {
	results := make(map[string]linkhub.ItemResult, len(resp.Results))
	for _, r := range resp.Results {
		results[r.EntityType+"\x00"+r.ExternalID] = r
	}

	for _, entry := range claimed {
		result, ok := results[string(entry.EntityType)+"\x00"+entry.ExternalID]
		switch {
		case !ok:
			s.failEntry(ctx, entry, "no result returned for item")
			summary.Failed++
		case result.Error != "":
			s.failEntry(ctx, entry, result.Error)
			summary.Failed++
		default:
			s.succeedEntry(ctx, entry, result)
			summary.Succeeded++
		}
	}
}

func (s *SyncService) succeedEntry(ctx context.Context, entry outbox.QueueEntry, result linkhub.ItemResult) {
	if err := s.store.ResolveQueueEntry(ctx, entry.ID, outbox.StatusSuccess, ""); err != nil {
		s.logger.ErrorContext(ctx, "resolve queue entry", "id", entry.ID, "error", err)
	}

	action := outbox.Action(result.Action)
	if action != outbox.ActionCreate && action != outbox.ActionUpdate {
		action = outbox.ActionCreate
	}
	logEntry := &outbox.LogEntry{
		EntityType: entry.EntityType,
		ExternalID: entry.ExternalID,
		LinkHubID:  result.LinkHubID,
		Action:     action,
	}
	if err := s.store.AppendSyncLog(ctx, logEntry); err != nil {
		s.logger.ErrorContext(ctx, "append sync log", "external_id", entry.ExternalID, "error", err)
	}
	if err := s.store.SetEntitySyncStatus(ctx, entry.EntityType, entry.ExternalID, okr.SyncSynced); err != nil {
		s.logger.ErrorContext(ctx, "set entity sync status", "external_id", entry.ExternalID, "error", err)
	}

	s.metrics.EntriesSucceeded.Add(ctx, 1)
	s.publishEvent(ctx, messagequeue.SubjectEntitySynced, syncEvent{
		EntityType: string(entry.EntityType),
		ExternalID: entry.ExternalID,
		LinkHubID:  result.LinkHubID,
	})
}

func (s *SyncService) failEntry(ctx context.Context, entry outbox.QueueEntry, message string) {
	if err := s.store.ResolveQueueEntry(ctx, entry.ID, outbox.StatusFailed, message); err != nil {
		s.logger.ErrorContext(ctx, "resolve queue entry", "id", entry.ID, "error", err)
	}
	if err := s.store.SetEntitySyncStatus(ctx, entry.EntityType, entry.ExternalID, okr.SyncFailed); err != nil {
		s.logger.ErrorContext(ctx, "set entity sync status", "external_id", entry.ExternalID, "error", err)
	}

	s.metrics.EntriesFailed.Add(ctx, 1)
	s.publishEvent(ctx, messagequeue.SubjectEntityFailed, syncEvent{
		EntityType: string(entry.EntityType),
		ExternalID: entry.ExternalID,
		Error:      message,
	})
}

func (s *SyncService) failBatch(ctx context.Context, claimed []outbox.QueueEntry, message string) {
	for _, entry := range claimed {
		s.failEntry(ctx, entry, message)
	}
}

func (s *SyncService) publishEvent(ctx context.Context, subject string, event any) {
	if s.publisher == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.publisher.Publish(ctx, subject, data); err != nil {
		s.logger.WarnContext(ctx, "publish sync event", "subject", subject, "error", err)
	}
}

func (s *SyncService) publishSummary(ctx context.Context, summary *Summary) {
	s.publishEvent(ctx, messagequeue.SubjectBatchCompleted, summary)
}

// Run drives Process on a fixed interval until ctx is cancelled. An interval
// of zero disables the loop.
func (s *SyncService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Process(ctx); err != nil && !errors.Is(err, domain.ErrConflict) {
				s.logger.ErrorContext(ctx, "scheduled sync run", "error", err)
			}
		}
	}
}

package http

import (
	"context"
	"net/http"
	"time"

	"github.com/okrtools/goalpost/internal/domain/okr"
	"github.com/okrtools/goalpost/internal/domain/outbox"
	"github.com/okrtools/goalpost/internal/service"
)

// Pinger reports backing-store liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnChecker reports whether an optional backing connection is up.
type ConnChecker interface {
	Connected() bool
}

// Handlers holds the services the HTTP layer dispatches to.
type Handlers struct {
	Entities *service.EntityService
	Sync     *service.SyncService
	Auth     *service.AuthService
	DB       Pinger
	Events   ConnChecker
}

// Health handles GET /health. Postgres being down makes the service
// unavailable; the event bus is optional, so its state is only reported.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		if err := h.DB.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}

	body := map[string]string{"status": "ok"}
	if h.Events != nil {
		if h.Events.Connected() {
			body["nats"] = "connected"
		} else {
			body["nats"] = "disconnected"
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// --- Entities ---

// CreateEntity handles POST /api/v1/entities/{kind}.
func (h *Handlers) CreateEntity(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[service.CreateRequest](w, r)
	if !ok {
		return
	}

	res, err := h.Entities.Create(r.Context(), okr.Kind(urlParam(r, "kind")), req)
	if err != nil {
		writeDomainError(w, err, "referenced entity not found")
		return
	}
	if res.Existing {
		writeJSON(w, http.StatusOK, res)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// GetEntity handles GET /api/v1/entities/{kind}/{externalID}.
func (h *Handlers) GetEntity(w http.ResponseWriter, r *http.Request) {
	e, err := h.Entities.Get(r.Context(), okr.Kind(urlParam(r, "kind")), urlParam(r, "externalID"))
	if err != nil {
		writeDomainError(w, err, "entity not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// ListEntities handles GET /api/v1/entities/{kind}.
func (h *Handlers) ListEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := h.Entities.List(r.Context(), okr.Kind(urlParam(r, "kind")), queryInt(r, "limit", 100))
	if err != nil {
		writeDomainError(w, err, "entities not found")
		return
	}
	if entities == nil {
		entities = []okr.Entity{}
	}
	writeJSON(w, http.StatusOK, entities)
}

// UpdateEntity handles PATCH /api/v1/entities/{kind}/{externalID}. The body
// is a partial fields object; absent keys are left unchanged.
func (h *Handlers) UpdateEntity(w http.ResponseWriter, r *http.Request) {
	fields, ok := readJSON[map[string]any](w, r)
	if !ok {
		return
	}

	e, err := h.Entities.Update(r.Context(), okr.Kind(urlParam(r, "kind")), urlParam(r, "externalID"), fields)
	if err != nil {
		writeDomainError(w, err, "entity not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DeleteEntity handles DELETE /api/v1/entities/{kind}/{externalID}.
func (h *Handlers) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	if err := h.Entities.Delete(r.Context(), okr.Kind(urlParam(r, "kind")), urlParam(r, "externalID")); err != nil {
		writeDomainError(w, err, "entity not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Sync queue ---

// ListQueue handles GET /api/v1/sync/queue?status=&limit=.
func (h *Handlers) ListQueue(w http.ResponseWriter, r *http.Request) {
	status := outbox.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = outbox.StatusPending
	}

	entries, err := h.Sync.ListQueue(r.Context(), status, queryInt(r, "limit", 100))
	if err != nil {
		writeDomainError(w, err, "queue entries not found")
		return
	}
	if entries == nil {
		entries = []outbox.QueueEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// QueueStats handles GET /api/v1/sync/queue/stats.
func (h *Handlers) QueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Sync.Stats(r.Context())
	if err != nil {
		writeDomainError(w, err, "queue stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ResubmitEntry handles POST /api/v1/sync/queue/{id}/resubmit.
func (h *Handlers) ResubmitEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Sync.Resubmit(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "queue entry not found")
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// SyncLog handles GET /api/v1/sync/log?kind=&limit=.
func (h *Handlers) SyncLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Sync.Log(r.Context(), okr.Kind(r.URL.Query().Get("kind")), queryInt(r, "limit", 100))
	if err != nil {
		writeDomainError(w, err, "sync log unavailable")
		return
	}
	if entries == nil {
		entries = []outbox.LogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// TriggerSync handles POST /api/v1/sync/process?batchSize=: one immediate
// processing run, in addition to whatever the background loop does.
func (h *Handlers) TriggerSync(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Sync.ProcessN(r.Context(), queryInt(r, "batchSize", 0))
	if err != nil {
		if summary != nil {
			// Batch was claimed but delivery failed; the summary still stands.
			writeJSON(w, http.StatusBadGateway, summary)
			return
		}
		writeDomainError(w, err, "sync run failed")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// --- API keys ---

type createKeyRequest struct {
	Name string `json:"name"`
}

type createKeyResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Prefix    string    `json:"prefix"`
	Key       string    `json:"key"` // shown exactly once
	CreatedAt time.Time `json:"createdAt"`
}

// CreateAPIKey handles POST /api/v1/auth/keys.
func (h *Handlers) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[createKeyRequest](w, r)
	if !ok {
		return
	}

	key, raw, err := h.Auth.GenerateKey(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, err, "key not created")
		return
	}
	writeJSON(w, http.StatusCreated, createKeyResponse{
		ID:        key.ID,
		Name:      key.Name,
		Prefix:    key.Prefix,
		Key:       raw,
		CreatedAt: key.CreatedAt,
	})
}

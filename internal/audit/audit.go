package audit

import (
	"context"
	"strings"
	"time"

	"temida.org/internal/ids"
	"temida.org/internal/obs"
)

// Severity grades an audit event.
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// Event is one append-only entry in the security audit trail. ActorID is
// empty for pre-auth failures. Metadata must carry enough context to
// reconstruct who did what to whom, and must never contain passwords,
// tokens or reset secrets.
type Event struct {
	ID        string
	ActorID   string
	Action    string
	Category  string
	Severity  Severity
	Metadata  map[string]any
	CreatedAt time.Time
}

// Store persists events. Entries are never updated or deleted.
type Store interface {
	Append(ctx context.Context, event *Event) error
	ListRecent(ctx context.Context, limit int) ([]*Event, error)
}

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier so every event recorded
// during that request can be correlated.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Recorder is the fire-and-forget entry point used by the rest of the auth
// core. A failed append is logged locally and swallowed: audit writes never
// fail or block the operation they accompany.
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder builds a Recorder over the given store. A nil store degrades
// to log-only operation.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// WithClock overrides the time source for tests.
func (r *Recorder) WithClock(fn func() time.Time) *Recorder {
	if fn != nil {
		r.now = fn
	}
	return r
}

// Record fills in id, timestamp and default severity, then appends the
// event best-effort.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = ids.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = r.now().UTC()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		if event.Metadata == nil {
			event.Metadata = map[string]any{}
		}
		event.Metadata["request_id"] = rid
	}

	if r.store != nil {
		err := r.store.Append(ctx, &event)
		if err == nil {
			return
		}
		obs.LogEntry(map[string]any{
			"level": "error",
			"msg":   "audit append failed",
			"error": err.Error(),
		})
	}
	// Fallback so the event is at least visible in the local log stream.
	obs.LogEntry(map[string]any{
		"type":     "audit",
		"id":       event.ID,
		"ts":       event.CreatedAt.Format(time.RFC3339Nano),
		"actor_id": event.ActorID,
		"action":   event.Action,
		"category": event.Category,
		"severity": string(event.Severity),
		"metadata": event.Metadata,
	})
}

// Recent returns the newest events for the admin console.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]*Event, error) {
	if r.store == nil {
		return nil, nil
	}
	return r.store.ListRecent(ctx, limit)
}

package audit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRecordFillsDefaults(t *testing.T) {
	store := NewMemStore()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := NewRecorder(store).WithClock(func() time.Time { return fixed })

	rec.Record(context.Background(), Event{
		ActorID:  "user-1",
		Action:   "auth.login",
		Category: "auth",
	})

	events, err := store.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events", len(events))
	}
	ev := events[0]
	if ev.ID == "" {
		t.Fatal("id not assigned")
	}
	if !ev.CreatedAt.Equal(fixed) {
		t.Fatalf("created_at = %v", ev.CreatedAt)
	}
	if ev.Severity != SeverityInfo {
		t.Fatalf("severity = %q", ev.Severity)
	}
}

func TestRecordCarriesRequestID(t *testing.T) {
	store := NewMemStore()
	rec := NewRecorder(store)

	ctx := WithRequestID(context.Background(), "req-42")
	rec.Record(ctx, Event{Action: "auth.login", Category: "auth"})

	events, _ := store.ListRecent(context.Background(), 1)
	if len(events) != 1 {
		t.Fatalf("got %d events", len(events))
	}
	if got := events[0].Metadata["request_id"]; got != "req-42" {
		t.Fatalf("request_id = %v", got)
	}
}

type failingStore struct{}

func (failingStore) Append(ctx context.Context, event *Event) error {
	return errors.New("disk on fire")
}

func (failingStore) ListRecent(ctx context.Context, limit int) ([]*Event, error) {
	return nil, nil
}

// A failed append must never surface to the caller.
func TestRecordSwallowsStoreFailure(t *testing.T) {
	rec := NewRecorder(failingStore{})
	rec.Record(context.Background(), Event{Action: "auth.login", Category: "auth"})
}

func TestRecordNilStore(t *testing.T) {
	rec := NewRecorder(nil)
	rec.Record(context.Background(), Event{Action: "auth.login", Category: "auth"})
	events, err := rec.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if events != nil {
		t.Fatalf("nil store returned events: %v", events)
	}
}

func TestMemStoreNewestFirst(t *testing.T) {
	store := NewMemStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_ = store.Append(context.Background(), &Event{
			ID:        string(rune('a' + i)),
			Action:    "auth.login",
			Category:  "auth",
			Severity:  SeverityInfo,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	events, err := store.ListRecent(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].ID != "c" || events[1].ID != "b" {
		t.Fatalf("order wrong: %s, %s", events[0].ID, events[1].ID)
	}
}

// Append must store a copy: mutating the caller's event afterwards cannot
// rewrite history.
func TestMemStoreAppendCopies(t *testing.T) {
	store := NewMemStore()
	ev := &Event{ID: "x", Action: "auth.login", Category: "auth", CreatedAt: time.Now()}
	_ = store.Append(context.Background(), ev)
	ev.Action = "tampered"

	events, _ := store.ListRecent(context.Background(), 1)
	if events[0].Action != "auth.login" {
		t.Fatalf("stored event mutated: %q", events[0].Action)
	}
}

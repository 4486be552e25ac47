package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"plancal/internal/calendar"
	"plancal/internal/model"
)

func open(t *testing.T) *Storage {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "plancal.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ids(events []model.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	return out
}

func TestEventsBetween(t *testing.T) {
	s := open(t)
	ctx := t.Context()

	err := s.UpsertEvents(ctx, []model.Event{
		{ID: "a", Title: "A", StartTime: "2024-04-02T09:00", EndTime: "2024-04-02T10:00", EventType: model.EventFixed},
		{ID: "b", Title: "B", StartTime: "2024-03-31T23:00", EndTime: "2024-04-01T01:00"},
		{ID: "c", Title: "C", StartTime: "2024-04-07T08:00:00", EndTime: "2024-04-07T08:00"},
		{ID: "d", Title: "D", StartTime: "2024-04-08T00:00", EndTime: "2024-04-08T01:00"},
		{ID: "e", Title: "E", StartTime: "2024-03-30T10:00", EndTime: "2024-03-30T11:00"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.EventsBetween(ctx, calendar.NewDate(2024, 4, 1), calendar.NewDate(2024, 4, 7))
	if err != nil {
		t.Fatalf("between: %v", err)
	}
	want := []string{"b", "a", "c"}
	if g := ids(got); len(g) != len(want) || g[0] != want[0] || g[1] != want[1] || g[2] != want[2] {
		t.Fatalf("expected %v, got %v", want, g)
	}
	if got[2].StartTime != "2024-04-07T08:00" {
		t.Fatalf("expected canonical start, got %q", got[2].StartTime)
	}
	if got[1].EventType != model.EventFixed {
		t.Fatalf("expected event type to round trip, got %q", got[1].EventType)
	}
}

func TestUpsertEventsRejectsBadTimestamp(t *testing.T) {
	s := open(t)
	err := s.UpsertEvents(t.Context(), []model.Event{
		{ID: "ok", Title: "ok", StartTime: "2024-04-02T09:00", EndTime: "2024-04-02T10:00"},
		{ID: "bad", Title: "bad", StartTime: "tomorrow", EndTime: "2024-04-02T10:00"},
	})
	if !errors.Is(err, model.ErrBadTimestamp) {
		t.Fatalf("expected ErrBadTimestamp, got %v", err)
	}
	got, err := s.EventsBetween(t.Context(), calendar.NewDate(2024, 4, 1), calendar.NewDate(2024, 4, 7))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected rollback, got %v", ids(got))
	}
}

func TestReplaceSourceEvents(t *testing.T) {
	s := open(t)
	ctx := t.Context()

	first := []model.Event{
		{ID: "work:1", Title: "one", StartTime: "2024-04-02T09:00", EndTime: "2024-04-02T10:00"},
		{ID: "work:2", Title: "two", StartTime: "2024-04-03T09:00", EndTime: "2024-04-03T10:00"},
	}
	if err := s.ReplaceSourceEvents(ctx, "work", first); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertEvents(ctx, []model.Event{
		{ID: "mine", Title: "mine", StartTime: "2024-04-04T09:00", EndTime: "2024-04-04T10:00"},
	}); err != nil {
		t.Fatal(err)
	}

	second := []model.Event{
		{ID: "work:3", Title: "three", StartTime: "2024-04-05T09:00", EndTime: "2024-04-05T10:00"},
	}
	if err := s.ReplaceSourceEvents(ctx, "work", second); err != nil {
		t.Fatal(err)
	}

	got, err := s.EventsBetween(ctx, calendar.NewDate(2024, 4, 1), calendar.NewDate(2024, 4, 7))
	if err != nil {
		t.Fatal(err)
	}
	g := ids(got)
	if len(g) != 2 || g[0] != "mine" || g[1] != "work:3" {
		t.Fatalf("expected [mine work:3], got %v", g)
	}
	if got[1].SourceID != "work" {
		t.Fatalf("expected source id to be set, got %q", got[1].SourceID)
	}
}

func TestTasks(t *testing.T) {
	s := open(t)
	ctx := t.Context()

	err := s.UpsertTasks(ctx, []model.Task{
		{ID: "t1", Title: "Report", DueDate: "2024-04-03T17:00", Priority: model.PriorityHigh, RequiredSessions: 4, CompletedSessions: 1},
		{ID: "t2", Title: "Later", DueDate: "2024-05-01T09:00"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.TasksBetween(ctx, calendar.NewDate(2024, 3, 31), calendar.NewDate(2024, 4, 6))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "t1" || got[0].Priority != model.PriorityHigh || got[0].Progress() != 25 {
		t.Fatalf("unexpected tasks %+v", got)
	}

	if err := s.SetTaskCompleted(ctx, "t1", true); err != nil {
		t.Fatalf("complete: %v", err)
	}
	task, err := s.Task(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if !task.IsCompleted {
		t.Fatal("expected task to be completed")
	}

	if err := s.SetTaskCompleted(ctx, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Task(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"plancal/internal/calendar"
	"plancal/internal/capture"
	"plancal/internal/config"
	"plancal/internal/model"
	"plancal/internal/placement"
	"plancal/internal/storage"
	"plancal/internal/view"
)

type fakeStore struct {
	mu     sync.Mutex
	events []model.Event
	tasks  map[string]model.Task
}

func (f *fakeStore) EventsBetween(_ context.Context, from, to calendar.Date) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Event
	for _, ev := range f.events {
		start, _ := ev.StartAt()
		d := calendar.FromTime(start)
		if !d.Before(from) && !d.After(to) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeStore) TasksBetween(_ context.Context, from, to calendar.Date) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Task
	for _, t := range f.tasks {
		due, _ := t.StartAt()
		d := calendar.FromTime(due)
		if !d.Before(from) && !d.After(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertEvents(_ context.Context, events []model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeStore) UpsertTasks(_ context.Context, tasks []model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tasks == nil {
		f.tasks = map[string]model.Task{}
	}
	for _, t := range tasks {
		f.tasks[t.ID] = t
	}
	return nil
}

func (f *fakeStore) Task(_ context.Context, id string) (model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return model.Task{}, fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	return t, nil
}

func (f *fakeStore) SetTaskCompleted(_ context.Context, id string, done bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	t.IsCompleted = done
	f.tasks[id] = t
	return nil
}

var now = time.Date(2024, 4, 3, 10, 20, 0, 0, time.UTC)

func newTestServer(t *testing.T, cfg *config.Config) (*httptest.Server, *fakeStore) {
	t.Helper()
	return newTestServerAt(t, cfg, now)
}

func newTestServerAt(t *testing.T, cfg *config.Config, at time.Time) (*httptest.Server, *fakeStore) {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	store := &fakeStore{
		events: []model.Event{
			{ID: "e1", Title: "Standup", StartTime: "2024-04-02T09:00", EndTime: "2024-04-02T10:00", Color: "SAGE"},
		},
		tasks: map[string]model.Task{
			"t1": {ID: "t1", Title: "Report", DueDate: "2024-04-03T17:00", Priority: model.PriorityHigh},
		},
	}
	builder := view.NewBuilder(placement.NewEngine(placement.DefaultLayout(), nil), calendar.FixedClock(at))
	srv := httptest.NewServer(NewServer(cfg, Deps{Store: store, Builder: builder}).Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func getJSON(t *testing.T, url string, status int, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != status {
		t.Fatalf("GET %s: expected status %d, got %d", url, status, resp.StatusCode)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestWeekEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var tl view.Timeline
	getJSON(t, srv.URL+"/api/week?date=2024-04-03", http.StatusOK, &tl)
	if len(tl.Days) != 7 || len(tl.Placements) != 2 {
		t.Fatalf("expected 7 days and 2 placements, got %d / %d", len(tl.Days), len(tl.Placements))
	}
	if tl.Now == nil || tl.Now.Top != 410 {
		t.Fatalf("unexpected now marker %+v", tl.Now)
	}
	for _, p := range tl.Placements {
		if p.ItemID == "e1" && (p.Top != 360 || p.Column != 2 || p.Color != "rgb(51, 182, 121)") {
			t.Fatalf("unexpected placement %+v", p)
		}
	}

	getJSON(t, srv.URL+"/api/week?date=04/03/2024", http.StatusBadRequest, nil)
}

func TestMonthAndYearEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var m view.MonthView
	getJSON(t, srv.URL+"/api/month?year=2024&month=2&selected=2024-02-29", http.StatusOK, &m)
	if m.Label != "2/2024" || m.Grid.LeadingDays() != 4 || !m.Grid.Cells[32].Selected {
		t.Fatalf("unexpected month view label=%q leading=%d", m.Label, m.Grid.LeadingDays())
	}

	var y view.YearView
	getJSON(t, srv.URL+"/api/year?year=2025", http.StatusOK, &y)
	if y.Year != 2025 || y.Months[11].Month != time.December {
		t.Fatalf("unexpected year view %d %v", y.Year, y.Months[11].Month)
	}
}

func TestNavigateAndColor(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var nav navigateResponse
	getJSON(t, srv.URL+"/api/navigate?view=month&date=2024-01-31&delta=1", http.StatusOK, &nav)
	if nav.Date != calendar.NewDate(2024, 2, 29) || nav.Label != "2/2024" {
		t.Fatalf("unexpected navigation %+v", nav)
	}
	getJSON(t, srv.URL+"/api/navigate?view=decade", http.StatusBadRequest, nil)

	var color map[string]string
	getJSON(t, srv.URL+"/api/color?token=GRAPE&category=AI_GENERATED", http.StatusOK, &color)
	if !strings.HasPrefix(color["color"], "linear-gradient") {
		t.Fatalf("expected AI gradient, got %q", color["color"])
	}

	var slots []string
	getJSON(t, srv.URL+"/api/quarters", http.StatusOK, &slots)
	if len(slots) != 96 || slots[1] != "00:15" {
		t.Fatalf("unexpected quarter slots %d %v", len(slots), slots[:2])
	}
}

func TestCreateEvent(t *testing.T) {
	srv, store := newTestServer(t, nil)

	resp := post(t, srv.URL+"/api/events", `{"title":" Lunch ","startTime":"2024-04-04T12:00:00","endTime":"2024-04-04T13:00","color":"BANANA"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var ev model.Event
	if err := json.NewDecoder(resp.Body).Decode(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.ID == "" || ev.Title != "Lunch" || ev.StartTime != "2024-04-04T12:00" || ev.EventType != model.EventUserCreated {
		t.Fatalf("unexpected stored event %+v", ev)
	}
	if len(store.events) != 2 {
		t.Fatalf("expected event to be stored, have %d", len(store.events))
	}

	bad := []string{
		`{"title":"","startTime":"2024-04-04T12:00","endTime":"2024-04-04T13:00"}`,
		`{"title":"x","startTime":"noon","endTime":"2024-04-04T13:00"}`,
		`{"title":"x","startTime":"2024-04-04T12:00","endTime":"2024-04-04T13:00","eventType":"GUESSED"}`,
		`{"title":"x","unknown":1}`,
	}
	for _, body := range bad {
		if resp := post(t, srv.URL+"/api/events", body); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", body, resp.StatusCode)
		}
	}
}

func TestNewItemsDefaultToNextQuarter(t *testing.T) {
	at := time.Date(2024, 4, 3, 9, 50, 0, 0, time.UTC)
	srv, store := newTestServerAt(t, nil, at)

	resp := post(t, srv.URL+"/api/events", `{"title":"new"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var ev model.Event
	if err := json.NewDecoder(resp.Body).Decode(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.StartTime != "2024-04-03T10:00" || ev.EndTime != "2024-04-03T11:00" {
		t.Fatalf("expected 10:00 ~ 11:00, got %s ~ %s", ev.StartTime, ev.EndTime)
	}

	resp = post(t, srv.URL+"/api/events", `{"title":"open end","startTime":"2024-04-04T08:30"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.EndTime != "2024-04-04T09:30" {
		t.Fatalf("expected a one hour default, got %s", ev.EndTime)
	}

	resp = post(t, srv.URL+"/api/tasks", `{"id":"t9","title":"later"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if due := store.tasks["t9"].DueDate; due != "2024-04-03T10:00" {
		t.Fatalf("expected due 10:00, got %s", due)
	}

	var slot struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
	getJSON(t, srv.URL+"/api/slot", http.StatusOK, &slot)
	if slot.Start != "2024-04-03T10:00" || slot.End != "2024-04-03T11:00" {
		t.Fatalf("unexpected slot %+v", slot)
	}
}

func TestWeekPNGServesCapturedSnapshot(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Capture.OutputPath = filepath.Join(t.TempDir(), "week.png")
	srv, _ := newTestServer(t, cfg)

	resp, err := http.Get(srv.URL + "/week.png")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before the first capture, got %d", resp.StatusCode)
	}

	png := []byte("\x89PNG\r\n\x1a\nweek")
	var shotURL string
	runner := capture.NewRunner(capture.Options{BaseURL: srv.URL, OutputPath: cfg.Capture.OutputPath}).
		WithShooter(func(_ context.Context, opts capture.Options) ([]byte, error) {
			shotURL, _ = opts.WeekURL()
			return png, nil
		})
	if err := runner.CaptureOnce(context.Background()); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if shotURL != srv.URL+"/week" {
		t.Fatalf("expected the week page to be captured, got %q", shotURL)
	}

	resp, err = http.Get(srv.URL + "/week.png")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %q", ct)
	}
	got, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(png) {
		t.Fatalf("expected captured bytes, got %q", got)
	}
	if _, err := os.Stat(cfg.Capture.OutputPath); err != nil {
		t.Fatalf("expected snapshot on disk: %v", err)
	}
}

func TestCreateAndCompleteTask(t *testing.T) {
	srv, store := newTestServer(t, nil)

	resp := post(t, srv.URL+"/api/tasks", `{"id":"t2","title":"Slides","dueDate":"2024-04-05T09:00","priority":"low","requiredSessions":2}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if store.tasks["t2"].Priority != model.PriorityLow {
		t.Fatalf("expected normalized priority, got %+v", store.tasks["t2"])
	}

	resp = post(t, srv.URL+"/api/tasks/t2/complete", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !store.tasks["t2"].IsCompleted {
		t.Fatal("expected task to be completed")
	}

	resp = post(t, srv.URL+"/api/tasks/t2/complete", `{"completed":false}`)
	if resp.StatusCode != http.StatusOK || store.tasks["t2"].IsCompleted {
		t.Fatalf("expected task to be reopened, status %d", resp.StatusCode)
	}

	if resp := post(t, srv.URL+"/api/tasks/nope/complete", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if resp := post(t, srv.URL+"/api/tasks", `{"title":"x","dueDate":"2024-04-05T09:00","priority":"URGENT"}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown priority, got %d", resp.StatusCode)
	}
}

func TestWeekPage(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/week?date=2024-04-03")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	body := string(raw)
	for _, want := range []string{`data-ready="true"`, "Standup", `data-id="t1"`, `class="now"`, "1 AM"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected page to contain %q", want)
		}
	}
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "me", Password: "secret"}
	srv, _ := newTestServer(t, cfg)

	getJSON(t, srv.URL+"/api/now", http.StatusUnauthorized, nil)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected /health to skip auth, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/now", nil)
	req.SetBasicAuth("me", "secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d", resp.StatusCode)
	}
}

func TestSafeColor(t *testing.T) {
	if got := safeColor("rgb(51, 182, 121)"); got != "rgb(51, 182, 121)" {
		t.Fatalf("expected rgb to pass, got %q", got)
	}
	if got := safeColor("red;background:url(x)"); got != "rgb(3, 155, 229)" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

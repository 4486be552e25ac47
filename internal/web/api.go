package web

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"plancal/internal/calendar"
	appLog "plancal/internal/log"
	"plancal/internal/model"
	"plancal/internal/palette"
	"plancal/internal/storage"
	"plancal/internal/timeaxis"
	"plancal/internal/view"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// dateParam reads a YYYY-MM-DD query parameter, defaulting to today.
func (s *Server) dateParam(r *http.Request, name string) (calendar.Date, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return calendar.Today(s.deps.Builder.Clock), nil
	}
	return calendar.ParseDate(v)
}

// GET /api/month?year=2024&month=4&selected=2024-04-10
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	today := calendar.Today(s.deps.Builder.Clock)
	q := r.URL.Query()
	year := parseIntDefault(q.Get("year"), today.Year)
	month := parseIntDefault(q.Get("month"), int(today.Month))

	var selected calendar.Date
	if v := q.Get("selected"); v != "" {
		d, err := calendar.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid selected date")
			return
		}
		selected = d
	}
	writeJSON(w, http.StatusOK, s.deps.Builder.Month(year, time.Month(month), selected))
}

// GET /api/year?year=2024
func (s *Server) handleYear(w http.ResponseWriter, r *http.Request) {
	today := calendar.Today(s.deps.Builder.Clock)
	year := parseIntDefault(r.URL.Query().Get("year"), today.Year)
	writeJSON(w, http.StatusOK, s.deps.Builder.Year(year))
}

// GET /api/week?date=2024-04-03
func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	tl, err := s.timeline(r, calendar.ViewWeek)
	if err != nil {
		s.timelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tl)
}

// GET /api/day?date=2024-04-03
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	tl, err := s.timeline(r, calendar.ViewDay)
	if err != nil {
		s.timelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tl)
}

var errBadDate = errors.New("invalid date")

func (s *Server) timeline(r *http.Request, kind calendar.ViewKind) (view.Timeline, error) {
	anchor, err := s.dateParam(r, "date")
	if err != nil {
		return view.Timeline{}, errBadDate
	}
	frame := calendar.BuildWeekFrame(anchor)

	ctx := r.Context()
	events, err := s.deps.Store.EventsBetween(ctx, frame.Start(), frame.End())
	if err != nil {
		return view.Timeline{}, fmt.Errorf("load events: %w", err)
	}
	tasks, err := s.deps.Store.TasksBetween(ctx, frame.Start(), frame.End())
	if err != nil {
		return view.Timeline{}, fmt.Errorf("load tasks: %w", err)
	}

	if kind == calendar.ViewDay {
		return s.deps.Builder.Day(anchor, events, tasks), nil
	}
	return s.deps.Builder.Week(anchor, events, tasks), nil
}

func (s *Server) timelineError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBadDate) {
		writeError(w, http.StatusBadRequest, "invalid date (want YYYY-MM-DD)")
		return
	}
	appLog.Error("timeline build failed", err)
	writeError(w, http.StatusInternalServerError, "failed to load items")
}

// GET /api/now
func (s *Server) handleNow(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Builder.Marker())
}

// GET /api/color?token=SAGE&category=AI_GENERATED
func (s *Server) handleColor(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, map[string]string{
		"color": s.deps.Colors.Resolve(q.Get("token"), q.Get("category")),
	})
}

// GET /api/palette
func (s *Server) handlePalette(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, palette.Swatches())
}

// GET /api/quarters lists the selectable quarter-hour slots.
func (s *Server) handleQuarters(w http.ResponseWriter, _ *http.Request) {
	slots := timeaxis.Quarters()
	out := make([]string, len(slots))
	for i, c := range slots {
		out[i] = c.String()
	}
	writeJSON(w, http.StatusOK, out)
}

type navigateResponse struct {
	View  calendar.ViewKind `json:"view"`
	Date  calendar.Date     `json:"date"`
	Label string            `json:"label"`
}

type slotResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// GET /api/slot returns the default slot offered for a new item: the next
// quarter after now, one hour long.
func (s *Server) handleSlot(w http.ResponseWriter, _ *http.Request) {
	start := timeaxis.SnapTime(s.deps.Builder.Clock.Now())
	writeJSON(w, http.StatusOK, slotResponse{
		Start: model.FormatTimestamp(start),
		End:   model.FormatTimestamp(start.Add(defaultEventLength)),
	})
}

// GET /api/navigate?view=month&date=2024-01-31&delta=1
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind, err := calendar.ParseViewKind(q.Get("view"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	anchor, err := s.dateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date (want YYYY-MM-DD)")
		return
	}
	d := calendar.Navigate(kind, anchor, parseIntDefault(q.Get("delta"), 0))
	writeJSON(w, http.StatusOK, navigateResponse{View: kind, Date: d, Label: calendar.Label(kind, d)})
}

// POST /api/events
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.Event
	if err := decodeBody(w, r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := normalizeEvent(&ev, s.deps.Builder.Clock.Now()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Store.UpsertEvents(r.Context(), []model.Event{ev}); err != nil {
		appLog.Error("event save failed", err, "id", ev.ID)
		writeError(w, http.StatusInternalServerError, "failed to save event")
		return
	}
	appLog.Info("event saved", "id", ev.ID, "start", ev.StartTime)
	writeJSON(w, http.StatusCreated, ev)
}

// defaultEventLength is used when a new event has no end time.
const defaultEventLength = time.Hour

// normalizeEvent validates ev and fills in defaults. A missing start is the
// next quarter slot after now; a missing end is one hour after the start.
func normalizeEvent(ev *model.Event, now time.Time) error {
	ev.Title = strings.TrimSpace(ev.Title)
	if ev.Title == "" {
		return errors.New("title is required")
	}
	if strings.TrimSpace(ev.StartTime) == "" {
		ev.StartTime = model.FormatTimestamp(timeaxis.SnapTime(now))
	}
	if strings.TrimSpace(ev.EndTime) == "" {
		if start, err := ev.StartAt(); err == nil {
			ev.EndTime = model.FormatTimestamp(start.Add(defaultEventLength))
		}
	}
	start, err := ev.StartAt()
	if err != nil {
		return fmt.Errorf("startTime: %w", err)
	}
	end, err := ev.EndAt()
	if err != nil {
		return fmt.Errorf("endTime: %w", err)
	}
	ev.StartTime = model.FormatTimestamp(start)
	ev.EndTime = model.FormatTimestamp(end)

	if ev.EventType == "" {
		ev.EventType = model.EventUserCreated
	} else if t, ok := model.ParseEventType(string(ev.EventType)); ok {
		ev.EventType = t
	} else {
		return fmt.Errorf("unknown eventType %q", ev.EventType)
	}
	// Imported events are owned by their feed; API events never carry a source.
	ev.SourceID = ""
	if ev.ID == "" {
		ev.ID = newID("evt")
	}
	return nil
}

// POST /api/tasks
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var t model.Task
	if err := decodeBody(w, r, &t); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := normalizeTask(&t, s.deps.Builder.Clock.Now()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Store.UpsertTasks(r.Context(), []model.Task{t}); err != nil {
		appLog.Error("task save failed", err, "id", t.ID)
		writeError(w, http.StatusInternalServerError, "failed to save task")
		return
	}
	appLog.Info("task saved", "id", t.ID, "due", t.DueDate)
	writeJSON(w, http.StatusCreated, t)
}

// normalizeTask validates t and fills in defaults. A missing due date is the
// next quarter slot after now.
func normalizeTask(t *model.Task, now time.Time) error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return errors.New("title is required")
	}
	if strings.TrimSpace(t.DueDate) == "" {
		t.DueDate = model.FormatTimestamp(timeaxis.SnapTime(now))
	}
	due, err := t.StartAt()
	if err != nil {
		return fmt.Errorf("dueDate: %w", err)
	}
	t.DueDate = model.FormatTimestamp(due)

	switch p := model.Priority(strings.ToUpper(string(t.Priority))); p {
	case "":
		t.Priority = model.PriorityMedium
	case model.PriorityHigh, model.PriorityMedium, model.PriorityLow:
		t.Priority = p
	default:
		return fmt.Errorf("unknown priority %q", t.Priority)
	}
	if t.ScheduledSessions < 0 || t.CompletedSessions < 0 || t.RequiredSessions < 0 {
		return errors.New("session counts must not be negative")
	}
	if t.ID == "" {
		t.ID = newID("task")
	}
	return nil
}

type completeRequest struct {
	Completed *bool `json:"completed"`
}

// POST /api/tasks/{id}/complete with an optional {"completed": false} body.
func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	done := true
	if r.ContentLength != 0 {
		var req completeRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Completed != nil {
			done = *req.Completed
		}
	}

	ctx := r.Context()
	if err := s.deps.Store.SetTaskCompleted(ctx, id, done); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		appLog.Error("task update failed", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}
	t, err := s.deps.Store.Task(ctx, id)
	if err != nil {
		appLog.Error("task reload failed", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// POST /api/refresh runs a sync now.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.deps.Refresh == nil {
		writeError(w, http.StatusServiceUnavailable, "no sources configured")
		return
	}
	if err := s.deps.Refresh.RunOnce(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func newID(prefix string) string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return prefix + "_" + hex.EncodeToString(b[:])
}

package caldav

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"

	"plancal/internal/model"
)

const object = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//plancal//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:review\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART:20240402T000000Z\r\n" +
	"DTEND:20240402T011500Z\r\n" +
	"SUMMARY:Design review\r\n" +
	"CATEGORIES:USER_CREATED\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

const allDay = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//plancal//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:trip\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20240405\r\n" +
	"SUMMARY:Trip\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

type fakeDAV struct {
	objects  []caldav.CalendarObject
	calendar string
	query    *caldav.CalendarQuery
}

func (f *fakeDAV) QueryCalendar(_ context.Context, calendar string, q *caldav.CalendarQuery) ([]caldav.CalendarObject, error) {
	f.calendar = calendar
	f.query = q
	return f.objects, nil
}

func decode(t *testing.T, s string) *ical.Calendar {
	t.Helper()
	cal, err := ical.NewDecoder(strings.NewReader(s)).Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return cal
}

func TestEventsConvertsObjects(t *testing.T) {
	fake := &fakeDAV{objects: []caldav.CalendarObject{
		{Path: "/cal/review.ics", Data: decode(t, object)},
		{Path: "/cal/trip.ics", Data: decode(t, allDay)},
		{Path: "/cal/empty.ics"},
	}}
	kst := time.FixedZone("KST", 9*60*60)
	c := NewClient("https://dav.example.com", "me", "pw").WithColor("TOMATO").WithLocation(kst)
	c.dav = fake

	from := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)
	events, err := c.Events(t.Context(), "/cal/", from, to)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if fake.calendar != "/cal/" || !fake.query.CompFilter.Comps[0].Start.Equal(from) {
		t.Fatalf("unexpected query %q %+v", fake.calendar, fake.query.CompFilter)
	}

	want := model.Event{
		ID:        "caldav:review",
		SourceID:  SourceID,
		Title:     "Design review",
		StartTime: "2024-04-02T09:00",
		EndTime:   "2024-04-02T10:15",
		Color:     "TOMATO",
		EventType: model.EventUserCreated,
	}
	if len(events) != 1 || events[0] != want {
		t.Fatalf("expected %+v, got %+v", want, events)
	}
}

func TestEventsRequiresCalendar(t *testing.T) {
	c := NewClient("https://dav.example.com", "", "")
	if _, err := c.Events(t.Context(), "", time.Now(), time.Now()); err != ErrNoCalendar {
		t.Fatalf("expected ErrNoCalendar, got %v", err)
	}
}

func TestBasicAuthTransport(t *testing.T) {
	var user, pass string
	var ok bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok = r.BasicAuth()
	}))
	defer srv.Close()

	client := &http.Client{Transport: &basicAuthTransport{username: "me", password: "pw", next: http.DefaultTransport}}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if !ok || user != "me" || pass != "pw" {
		t.Fatalf("expected basic auth me/pw, got %v %q %q", ok, user, pass)
	}
}

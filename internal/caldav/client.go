// Package caldav pulls events from a single CalDAV calendar collection.
package caldav

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"

	appLog "plancal/internal/log"
	"plancal/internal/model"
)

// SourceID is the storage source key for CalDAV events.
const SourceID = "caldav"

// ErrNoCalendar is returned when no calendar path was given.
var ErrNoCalendar = errors.New("caldav: calendar path not specified")

type querier interface {
	QueryCalendar(ctx context.Context, calendar string, query *caldav.CalendarQuery) ([]caldav.CalendarObject, error)
}

// Client is a read-only CalDAV client.
type Client struct {
	baseURL  string
	username string
	password string
	color    string
	loc      *time.Location

	dav querier
}

// NewClient returns a client for baseURL using HTTP Basic Auth.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		loc:      time.Local,
	}
}

// WithColor sets the colour token given to events without a COLOR property.
func (c *Client) WithColor(color string) *Client {
	c.color = color
	return c
}

// WithLocation sets the display timezone events are converted into.
func (c *Client) WithLocation(loc *time.Location) *Client {
	if loc != nil {
		c.loc = loc
	}
	return c
}

func (c *Client) connect() (querier, error) {
	if c.dav != nil {
		return c.dav, nil
	}

	httpClient := &http.Client{
		Transport: &basicAuthTransport{
			username: c.username,
			password: c.password,
			next:     http.DefaultTransport,
		},
		Timeout: 30 * time.Second,
	}

	client, err := caldav.NewClient(httpClient, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}
	c.dav = client
	return client, nil
}

type basicAuthTransport struct {
	username string
	password string
	next     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.username != "" || t.password != "" {
		req.SetBasicAuth(t.username, t.password)
	}
	return t.next.RoundTrip(req)
}

// Events returns the timed events of calendarPath overlapping [from, to).
// Objects that cannot be converted are logged and skipped.
func (c *Client) Events(ctx context.Context, calendarPath string, from, to time.Time) ([]model.Event, error) {
	if calendarPath == "" {
		return nil, ErrNoCalendar
	}
	dav, err := c.connect()
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: from.UTC(),
				End:   to.UTC(),
			}},
		},
	}

	objects, err := dav.QueryCalendar(ctx, calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("query calendar: %w", err)
	}

	events := make([]model.Event, 0, len(objects))
	for i := range objects {
		if objects[i].Data == nil {
			continue
		}
		evs, err := c.convert(objects[i].Data)
		if err != nil {
			appLog.Debug("caldav object skipped", "path", objects[i].Path, "reason", err.Error())
			continue
		}
		events = append(events, evs...)
	}
	appLog.Info("caldav query completed", "calendar", calendarPath, "event_count", len(events))
	return events, nil
}

func (c *Client) convert(cal *ical.Calendar) ([]model.Event, error) {
	var out []model.Event
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		ev, err := c.convertEvent(comp)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if len(out) == 0 {
		return nil, errors.New("no timed VEVENT")
	}
	return out, nil
}

func (c *Client) convertEvent(comp *ical.Component) (model.Event, error) {
	var ev model.Event

	uid := text(comp, ical.PropUID)
	if uid == "" {
		return ev, errors.New("missing UID")
	}
	ev.ID = SourceID + ":" + uid
	ev.SourceID = SourceID
	ev.Title = text(comp, ical.PropSummary)
	ev.Description = text(comp, ical.PropDescription)
	ev.Location = text(comp, ical.PropLocation)

	startProp := comp.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return ev, errors.New("missing DTSTART")
	}
	if startProp.Params.Get(ical.ParamValue) == string(ical.ValueDate) {
		return ev, errors.New("all-day event")
	}
	start, err := startProp.DateTime(c.loc)
	if err != nil {
		return ev, fmt.Errorf("DTSTART: %w", err)
	}
	end := start
	if p := comp.Props.Get(ical.PropDateTimeEnd); p != nil {
		if t, err := p.DateTime(c.loc); err == nil {
			end = t
		}
	}
	ev.StartTime = model.FormatTimestamp(start.In(c.loc))
	ev.EndTime = model.FormatTimestamp(end.In(c.loc))

	ev.Color = c.color
	if col := text(comp, "COLOR"); col != "" {
		ev.Color = col
	}
	ev.EventType = model.EventFixed
	for _, cat := range strings.Split(text(comp, ical.PropCategories), ",") {
		if t, ok := model.ParseEventType(cat); ok {
			ev.EventType = t
			break
		}
	}
	return ev, nil
}

func text(comp *ical.Component, name string) string {
	if p := comp.Props.Get(name); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

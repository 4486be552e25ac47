package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "plancal/internal/log"
	"plancal/internal/model"
)

// Errors returned for VEVENTs that cannot become timeline events. They are
// logged and the event is skipped; the rest of the feed still imports.
var (
	ErrMissingUID = errors.New("missing UID")
	ErrAllDay     = errors.New("all-day event")
	ErrNoStart    = errors.New("missing or invalid DTSTART")
)

// ParseFeed turns an ICS payload into Event records in loc (nil means
// time.Local). Only timed, non-recurring occurrences as written are
// imported: RRULEs are not expanded and all-day events are skipped.
func ParseFeed(src Source, body []byte, loc *time.Location) ([]model.Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, fmt.Errorf("parse ics %s: %w", src.ID, err)
	}

	events := make([]model.Event, 0)
	skipped := 0
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(src, ve, loc)
		if perr != nil {
			skipped++
			appLog.Debug("ics vevent skipped", "id", src.ID, "reason", perr.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(events), "skipped", skipped)
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent, loc *time.Location) (model.Event, error) {
	var out model.Event

	uid := propValue(ve, ical.ComponentPropertyUniqueId)
	if uid == "" {
		return out, ErrMissingUID
	}
	out.ID = src.ID + ":" + uid
	out.SourceID = src.ID
	out.Title = propValue(ve, ical.ComponentPropertySummary)
	out.Description = propValue(ve, ical.ComponentPropertyDescription)
	out.Location = propValue(ve, ical.ComponentPropertyLocation)

	if isAllDay(ve.GetProperty(ical.ComponentPropertyDtStart)) {
		return out, ErrAllDay
	}

	start, err := ve.GetStartAt()
	if err != nil || start.IsZero() {
		return out, ErrNoStart
	}
	end, err := ve.GetEndAt()
	if err != nil || end.IsZero() {
		// No DTEND: zero-length event, rendered with the minimum height.
		end = start
	}
	out.StartTime = model.FormatTimestamp(start.In(loc))
	out.EndTime = model.FormatTimestamp(end.In(loc))

	out.Color = src.Color
	if c := propValue(ve, "COLOR"); c != "" {
		out.Color = c
	}

	out.EventType = model.EventFixed
	for _, cat := range strings.Split(propValue(ve, ical.ComponentPropertyCategories), ",") {
		if t, ok := model.ParseEventType(cat); ok {
			out.EventType = t
			break
		}
	}
	return out, nil
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

// isAllDay reports VALUE=DATE starts, or bare YYYYMMDD values.
func isAllDay(p *ical.IANAProperty) bool {
	if p == nil {
		return false
	}
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

package ics

import (
	"sort"
	"time"

	"plancal/internal/model"
)

// Window keeps events overlapping [from, to). Event timestamps are wall-clock
// values (see model.ParseTimestamp), so from and to should be too, e.g.
// calendar.Date.Time(time.UTC). Zero-length events count when their start
// lies inside the range. The result is sorted by start time.
func Window(events []model.Event, from, to time.Time) []model.Event {
	type kept struct {
		ev    model.Event
		start time.Time
	}
	ks := make([]kept, 0, len(events))
	for _, ev := range events {
		start, err := ev.StartAt()
		if err != nil {
			continue
		}
		end, err := ev.EndAt()
		if err != nil || end.Before(start) {
			end = start
		}
		if overlaps(start, end, from, to) {
			ks = append(ks, kept{ev: ev, start: start})
		}
	}
	sort.SliceStable(ks, func(i, j int) bool { return ks[i].start.Before(ks[j].start) })

	out := make([]model.Event, len(ks))
	for i, k := range ks {
		out[i] = k.ev
	}
	return out
}

func overlaps(start, end, from, to time.Time) bool {
	if start.Equal(end) {
		return !start.Before(from) && start.Before(to)
	}
	return start.Before(to) && end.After(from)
}

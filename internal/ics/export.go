package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/recurrence"
)

// ExportICS renders master events as a PUBLISH calendar. Recurring events are
// written as one VEVENT carrying the series rule, never as materialized
// instances. Times are written in UTC.
func ExportICS(events []model.MasterEvent, name string) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//eventcal//EN")
	if name != "" {
		cal.SetName(name)
		cal.SetXWRCalName(name)
	}

	stamp := time.Now()
	for _, ev := range events {
		ve := cal.AddEvent(ev.ID)
		if !ev.UpdatedAt.IsZero() {
			ve.SetDtStampTime(ev.UpdatedAt)
		} else {
			ve.SetDtStampTime(stamp)
		}
		ve.SetStartAt(ev.Start)
		ve.SetEndAt(ev.End)
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if ev.Category != "" {
			ve.AddCategory(ev.Category)
		}
		if ev.Visibility != "" {
			ve.SetClass(ical.Classification(strings.ToUpper(ev.Visibility)))
		}

		if !ev.IsRecurring {
			continue
		}
		rule, ok := recurrence.Decode(ev.RRule).Get()
		if !ok {
			appLog.Warn("export: unreadable rule, writing anchor only", "event_id", ev.ID, "rrule", ev.RRule)
			continue
		}
		ve.AddRrule(recurrence.Encode(rule))
	}

	return cal.Serialize()
}

package ics

import (
	"bytes"
	"errors"
	"strings"

	ical "github.com/arran4/golang-ical"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/recurrence"
)

// ParseICS parses an iCalendar payload into master events.
//
//   - UID becomes the master ID, so re-importing the same feed updates
//     events instead of duplicating them.
//   - RRULE is normalized through recurrence.FromICalRule. A rule that
//     cannot be normalized imports the event as a single occurrence.
//   - Override instances (RECURRENCE-ID) are skipped; a series is always
//     edited as a whole.
//   - Missing DTEND means a zero-length event, or one day for date-only
//     DTSTART values.
func ParseICS(body []byte) ([]model.MasterEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, err
	}

	events := make([]model.MasterEvent, 0)
	skipped := 0

	for _, comp := range cal.Events() {
		if comp.GetProperty(ical.ComponentPropertyRecurrenceId) != nil {
			skipped++
			continue
		}
		ev, perr := parseVEvent(comp)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("ics vevent parse failed", perr)
			skipped++
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "event_count", len(events), "skipped", skipped)
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (model.MasterEvent, error) {
	var out model.MasterEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.ID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if out.Title == "" {
		out.Title = "(untitled)"
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyCategories); p != nil {
		// Only the first category is kept.
		first, _, _ := strings.Cut(p.Value, ",")
		out.Category = strings.TrimSpace(first)
	}
	if p := ve.GetProperty(ical.ComponentPropertyClass); p != nil {
		out.Visibility = strings.ToLower(p.Value)
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	out.Start = start

	end, err := ve.GetEndAt()
	switch {
	case err == nil && !end.Before(start):
		out.End = end
	case isDateOnly(ve.GetProperty(ical.ComponentPropertyDtStart)):
		out.End = start.AddDate(0, 0, 1)
	default:
		out.End = start
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		rule, rerr := recurrence.FromICalRule(rruleProp.Value, start)
		if rerr != nil {
			appLog.Warn("ics rrule not supported, importing as single event", "uid", out.ID, "rrule", rruleProp.Value, "error", rerr.Error())
		} else {
			out.IsRecurring = true
			out.RRule = rule
		}
	}

	return out, nil
}

// isDateOnly reports whether a DTSTART carries VALUE=DATE or a bare
// YYYYMMDD value.
func isDateOnly(p *ical.IANAProperty) bool {
	if p == nil {
		return false
	}
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

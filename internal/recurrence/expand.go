package recurrence

import (
	"errors"
	"sort"
	"time"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

// DefaultMaxOccurrences bounds the number of occurrences produced for one
// master event in a single expansion, whatever the window size.
const DefaultMaxOccurrences = 365

// ExpandConfig controls a multi-event expansion.
type ExpandConfig struct {
	// RangeStart / RangeEnd define the inclusive time window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap for misconfigured rules. If
	// zero, DefaultMaxOccurrences is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the expanded occurrences together with the events that
// did not expand normally.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents records master IDs that hit MaxOccurrencesPerEvent.
	TruncatedEvents []string
	// DegradedEvents records master IDs flagged as recurring whose rule
	// string did not decode; they were expanded as single events.
	DegradedEvents []string
}

// Expand returns the occurrences of ev that fall into [windowStart,
// windowEnd], ordered by start. It is a pure function of its inputs.
//
//   - A non-recurring event, or one whose rule does not decode, yields only
//     the anchor occurrence, and only if it intersects the window.
//   - Otherwise candidates are generated from the anchor until they pass
//     min(windowEnd, UNTIL); those at or after windowStart are emitted.
//   - At most DefaultMaxOccurrences occurrences are returned.
func Expand(ev model.MasterEvent, windowStart, windowEnd time.Time) []model.Occurrence {
	out, _ := expandEvent(ev, windowStart, windowEnd, DefaultMaxOccurrences)
	return out
}

// ExpandAll expands every event over cfg's range and returns all occurrences
// ordered by start time. Truncated and degraded events are reported in the
// result and logged; neither is an error.
func ExpandAll(events []model.MasterEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = DefaultMaxOccurrences
	}

	all := make([]model.Occurrence, 0, len(events))
	for _, ev := range events {
		if ev.IsRecurring && Decode(ev.RRule).IsAbsent() {
			result.DegradedEvents = append(result.DegradedEvents, ev.ID)
			appLog.Warn("expand: recurring event has an unusable rule; showing single occurrence",
				"event_id", ev.ID,
				"rrule", ev.RRule,
			)
		}

		occ, hitCap := expandEvent(ev, cfg.RangeStart, cfg.RangeEnd, cfg.MaxOccurrencesPerEvent)
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.ID)
			appLog.Warn("expand: truncated occurrences for event due to cap",
				"event_id", ev.ID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
		all = append(all, occ...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Start.Equal(all[j].Start) {
			return all[i].SourceID() < all[j].SourceID()
		}
		return all[i].Start.Before(all[j].Start)
	})

	result.Occurrences = all
	return result, nil
}

// expandEvent expands a single master event, returning its occurrences and
// whether the cap cut the series short.
func expandEvent(ev model.MasterEvent, windowStart, windowEnd time.Time, maxOccurrences int) ([]model.Occurrence, bool) {
	src := &ev
	dur := ev.Duration()
	out := make([]model.Occurrence, 0)

	// The anchor is emitted whenever it intersects the window.
	if timeRangesOverlap(ev.Start, ev.End, windowStart, windowEnd) {
		out = append(out, makeOccurrence(src, ev.Start, dur, false))
	}

	if !ev.IsRecurring {
		return out, false
	}
	rule, ok := Decode(ev.RRule).Get()
	if !ok {
		return out, false
	}

	limit := windowEnd
	if until, ok := rule.Until.Get(); ok && until.Before(limit) {
		limit = until
	}

	// Pre-window candidates count toward the cap so a rule that never
	// reaches the window still stops.
	skipped := 0
	next := newStepper(rule, ev.Start, windowStart)
	for {
		cand := next()
		if cand.After(limit) {
			return out, false
		}
		if len(out)+skipped >= maxOccurrences {
			return out, true
		}
		if cand.Before(windowStart) {
			skipped++
			continue
		}
		out = append(out, makeOccurrence(src, cand, dur, true))
	}
}

// newStepper returns a generator of candidate starts strictly after anchor,
// in increasing order. Candidates well before windowStart are skipped
// arithmetically where the rule allows it.
//
// Monthly and yearly steps are offsets from the anchor's day-of-month, not
// from the previous candidate: Jan 31 gives Feb 29 then Mar 31.
func newStepper(rule Rule, anchor, windowStart time.Time) func() time.Time {
	interval := min(max(rule.Interval, 1), MaxInterval)

	// Calendar distances are taken in the anchor's zone.
	windowStart = windowStart.In(anchor.Location())

	if rule.Frequency == Weekly && !rule.ByWeekday.Empty() {
		return byWeekdayStepper(rule.ByWeekday, interval, anchor, windowStart)
	}

	var at func(k int) time.Time
	var k int
	switch rule.Frequency {
	case Daily:
		at = func(k int) time.Time { return anchor.AddDate(0, 0, k*interval) }
		k = skipAhead(daysBetween(anchor, windowStart), interval)
	case Weekly:
		at = func(k int) time.Time { return anchor.AddDate(0, 0, 7*k*interval) }
		k = skipAhead(daysBetween(anchor, windowStart), 7*interval)
	case Monthly:
		at = func(k int) time.Time { return addMonthsClamped(anchor, k*interval) }
		k = skipAhead(monthsBetween(anchor, windowStart), interval)
	default: // Yearly
		at = func(k int) time.Time { return addMonthsClamped(anchor, 12*k*interval) }
		k = skipAhead(windowStart.Year()-anchor.Year(), interval)
	}

	return func() time.Time {
		t := at(k)
		k++
		return t
	}
}

// byWeekdayStepper scans forward day by day (at most 7 days) for the next
// date whose weekday is in days. If none is found it advances by interval
// weeks, which only happens for an empty set.
func byWeekdayStepper(days WeekdaySet, interval int, anchor, windowStart time.Time) func() time.Time {
	cur := anchor
	// Every in-set day after the anchor is a candidate, so the scan can
	// resume from the day before the window. windowStart must already be in
	// the anchor's zone.
	if d := daysBetween(anchor, windowStart) - 1; d > 0 {
		cur = anchor.AddDate(0, 0, d)
	}

	return func() time.Time {
		for i := 1; i <= 7; i++ {
			c := cur.AddDate(0, 0, i)
			if days.Has(c.Weekday()) {
				cur = c
				return cur
			}
		}
		cur = cur.AddDate(0, 0, 7*interval)
		return cur
	}
}

// skipAhead returns the first step index worth generating given the number
// of whole units between anchor and window start. The index it returns always
// lands strictly before the window, so nothing inside it is skipped.
func skipAhead(unitsToWindow, unitsPerStep int) int {
	k := unitsToWindow/unitsPerStep - 1
	if k < 1 {
		return 1
	}
	return k
}

// addMonthsClamped moves t forward n months keeping its day-of-month, clamped
// to the last day of the target month (Jan 31 + 1 month = Feb 28/29).
func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + n
	ny, nm := y+total/12, time.Month(total%12+1)
	if last := daysIn(ny, nm); d > last {
		d = last
	}
	return time.Date(ny, nm, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// daysBetween counts calendar days from a's date to b's date, ignoring time
// of day.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// makeOccurrence builds the occurrence of src starting at start.
func makeOccurrence(src *model.MasterEvent, start time.Time, dur time.Duration, virtual bool) model.Occurrence {
	id := src.ID
	if virtual {
		id = DeriveID(src.ID, start)
	}
	return model.Occurrence{
		ID:        id,
		Source:    src,
		Start:     start,
		End:       start.Add(dur),
		IsVirtual: virtual,
	}
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}

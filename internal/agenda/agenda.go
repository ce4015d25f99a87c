// Package agenda builds list views (one entry per series) on top of the
// recurrence engine.
package agenda

import (
	"sort"
	"time"

	"eventcal/internal/model"
	"eventcal/internal/recurrence"
)

// Upcoming lists events happening in [now, now+horizon], one entry per
// series: the next occurrence of each recurring event.
func Upcoming(events []model.MasterEvent, now time.Time, horizon time.Duration, maxOccurrences int) ([]model.Occurrence, error) {
	res, err := recurrence.ExpandAll(events, recurrence.ExpandConfig{
		RangeStart:             now,
		RangeEnd:               now.Add(horizon),
		MaxOccurrencesPerEvent: maxOccurrences,
	})
	if err != nil {
		return nil, err
	}
	return recurrence.Dedup(res.Occurrences), nil
}

// Past lists events that happened in [now-backfill, now], newest first. For a
// recurring event the most recent occurrence is kept.
func Past(events []model.MasterEvent, now time.Time, backfill time.Duration, maxOccurrences int) ([]model.Occurrence, error) {
	res, err := recurrence.ExpandAll(events, recurrence.ExpandConfig{
		RangeStart:             now.Add(-backfill),
		RangeEnd:               now,
		MaxOccurrencesPerEvent: maxOccurrences,
	})
	if err != nil {
		return nil, err
	}

	occs := res.Occurrences
	sort.SliceStable(occs, func(i, j int) bool {
		return occs[i].Start.After(occs[j].Start)
	})
	return recurrence.Dedup(occs), nil
}

package recurrence

import "eventcal/internal/model"

// Dedup collapses expanded occurrences for flat upcoming/past lists: each
// recurring series keeps only the first occurrence seen in input order, and
// non-recurring events pass through untouched. Grid views should not use it.
func Dedup(occs []model.Occurrence) []model.Occurrence {
	out := make([]model.Occurrence, 0, len(occs))
	seen := make(map[string]struct{})

	for _, occ := range occs {
		if occ.Source == nil || !occ.Source.IsRecurring {
			out = append(out, occ)
			continue
		}
		id := occ.Source.ID
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, occ)
	}

	return out
}

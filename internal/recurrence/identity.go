package recurrence

import (
	"time"

	"github.com/samber/mo"

	"eventcal/internal/model"
)

// DeriveID builds the identifier of a virtual occurrence from its master ID
// and start instant. It is deterministic within a process and only meant
// for list keys and request routing; it is never stored.
func DeriveID(masterID string, start time.Time) string {
	return masterID + "@" + start.UTC().Format(time.RFC3339Nano)
}

// ResolveEditTarget returns the ID of the master record an edit or delete on
// occ must be applied to. Virtual occurrences are never mutated themselves;
// changing the master regenerates the whole series on the next expansion.
func ResolveEditTarget(occ model.Occurrence) string {
	if occ.IsVirtual {
		return occ.SourceID()
	}
	return occ.ID
}

// Locate rebuilds the occurrence of ev that starts exactly at start, if the
// series has one.
func Locate(ev model.MasterEvent, start time.Time) mo.Option[model.Occurrence] {
	for _, occ := range Expand(ev, start, start) {
		if occ.Start.Equal(start) {
			return mo.Some(occ)
		}
	}
	return mo.None[model.Occurrence]()
}

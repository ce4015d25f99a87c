// Package store persists master events. Occurrences are never stored; they
// are recomputed from the master event on every read.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"eventcal/internal/model"
	"eventcal/internal/recurrence"
)

var (
	// ErrNotFound is returned when no master event has the requested ID.
	ErrNotFound = errors.New("event not found")
	// ErrInvalid is returned when an event fails Validate.
	ErrInvalid = errors.New("invalid event")
)

// Store is the persistence boundary for master events.
type Store interface {
	List(ctx context.Context) ([]model.MasterEvent, error)
	Get(ctx context.Context, id string) (model.MasterEvent, error)
	// Insert assigns an ID when ev.ID is empty and stamps CreatedAt/UpdatedAt.
	Insert(ctx context.Context, ev *model.MasterEvent) error
	// Update replaces every mutable field of an existing event.
	Update(ctx context.Context, ev *model.MasterEvent) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// Validate checks the structural invariants of a master event. A rule the
// engine cannot decode is not rejected: it degrades the event to its anchor
// occurrence. A decodable rule must not end before the event starts.
func Validate(ev *model.MasterEvent) error {
	if ev == nil {
		return fmt.Errorf("%w: nil event", ErrInvalid)
	}
	if strings.TrimSpace(ev.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if ev.Start.IsZero() || ev.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalid)
	}
	if ev.End.Before(ev.Start) {
		return fmt.Errorf("%w: end %s is before start %s", ErrInvalid, ev.End, ev.Start)
	}
	hasRule := strings.TrimSpace(ev.RRule) != ""
	if ev.IsRecurring && !hasRule {
		return fmt.Errorf("%w: recurring event needs a rule", ErrInvalid)
	}
	if !ev.IsRecurring && hasRule {
		return fmt.Errorf("%w: rule set on a non-recurring event", ErrInvalid)
	}
	if rule, ok := recurrence.Decode(ev.RRule).Get(); ok {
		if until, ok := rule.Until.Get(); ok && until.Before(ev.Start) {
			return fmt.Errorf("%w: rule ends %s before start %s", ErrInvalid, until, ev.Start)
		}
	}
	return nil
}

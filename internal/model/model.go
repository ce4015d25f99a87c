package model

import "time"

// MasterEvent is the stored, authoritative definition of an event. For a
// recurring event it describes the first (anchor) occurrence and carries the
// rule string from which every other occurrence is computed.
//
// Only RRule is persisted for recurrence; the structured rule is derived from
// it on demand by the recurrence package.
type MasterEvent struct {
	ID string `json:"id"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`

	// Start / End span the anchor occurrence. End - Start is reused as the
	// duration of every generated instance.
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	IsRecurring bool   `json:"is_recurring"`
	RRule       string `json:"rrule,omitempty"`

	// Descriptive tags, opaque to the recurrence engine.
	Category   string `json:"category,omitempty"`
	Audience   string `json:"audience,omitempty"`
	Visibility string `json:"visibility,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Duration returns the span of a single occurrence.
func (e *MasterEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Occurrence is a single concrete instance of a MasterEvent inside a query
// window. Occurrences are computed on every request and never stored.
type Occurrence struct {
	// ID is the derived occurrence identifier. For the anchor occurrence it
	// equals the master ID; for virtual ones it is derived from the master ID
	// and the occurrence start.
	ID string

	// Source points at the master event this occurrence was generated from.
	// All occurrences of one series from the same expansion share it.
	Source *MasterEvent

	Start time.Time
	End   time.Time

	// IsVirtual is false only for the anchor occurrence.
	IsVirtual bool
}

// SourceID returns the master event ID, or "" for a detached occurrence.
func (o Occurrence) SourceID() string {
	if o.Source == nil {
		return ""
	}
	return o.Source.ID
}

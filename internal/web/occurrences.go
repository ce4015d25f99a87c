package web

import (
	"net/http"
	"strings"
	"time"

	"eventcal/internal/agenda"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/recurrence"
)

// occurrenceDTO is a JSON-friendly view of an occurrence.
type occurrenceDTO struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Category    string    `json:"category,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	IsVirtual   bool      `json:"is_virtual"`
	IsRecurring bool      `json:"is_recurring"`
}

func toDTOs(occs []model.Occurrence) []occurrenceDTO {
	out := make([]occurrenceDTO, 0, len(occs))
	for _, o := range occs {
		dto := occurrenceDTO{
			ID:        o.ID,
			SourceID:  o.SourceID(),
			Start:     o.Start,
			End:       o.End,
			IsVirtual: o.IsVirtual,
		}
		if src := o.Source; src != nil {
			dto.Title = src.Title
			dto.Description = src.Description
			dto.Location = src.Location
			dto.Category = src.Category
			dto.IsRecurring = src.IsRecurring
		}
		out = append(out, dto)
	}
	return out
}

// occurrencesResponse is the JSON response shape for /api/occurrences.
type occurrencesResponse struct {
	View         string          `json:"view"`
	RangeStart   time.Time       `json:"range_start"`
	RangeEnd     time.Time       `json:"range_end"`
	Occurrences  []occurrenceDTO `json:"occurrences"`
	TruncatedIDs []string        `json:"truncated_ids,omitempty"`
	DegradedIDs  []string        `json:"degraded_ids,omitempty"`
}

// handleOccurrences expands stored events over a window.
//
// GET /api/occurrences?start=&end=&days=&view=grid|list
//   - start: RFC3339 or YYYY-MM-DD, default now
//   - end:   RFC3339 or YYYY-MM-DD, default start + days
//   - days:  window size when end is omitted, default horizon_days
//   - view:  grid returns every occurrence, list one per series
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	view := strings.ToLower(q.Get("view"))
	switch view {
	case "":
		view = "grid"
	case "grid", "list":
	default:
		writeError(w, http.StatusBadRequest, "view must be grid or list")
		return
	}

	start, err := parseTimeParam(q.Get("start"), s.now().In(s.loc), s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start: "+err.Error())
		return
	}
	days := parseIntDefault(q.Get("days"), s.cfg.HorizonDays)
	if days <= 0 {
		days = s.cfg.HorizonDays
	}
	end, err := parseTimeParam(q.Get("end"), start.AddDate(0, 0, days), s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end: "+err.Error())
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end is before start")
		return
	}

	events, err := s.store.List(r.Context())
	if err != nil {
		writeStoreError(w, "list events", err)
		return
	}

	res, err := recurrence.ExpandAll(events, recurrence.ExpandConfig{
		RangeStart:             start,
		RangeEnd:               end,
		MaxOccurrencesPerEvent: s.cfg.MaxOccurrences,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	occs := res.Occurrences
	if view == "list" {
		occs = recurrence.Dedup(occs)
	}

	appLog.Debug("api occurrences request",
		"view", view,
		"range_start", start,
		"range_end", end,
		"events", len(events),
		"occurrences", len(occs),
	)

	writeJSON(w, http.StatusOK, occurrencesResponse{
		View:         view,
		RangeStart:   start,
		RangeEnd:     end,
		Occurrences:  toDTOs(occs),
		TruncatedIDs: res.TruncatedEvents,
		DegradedIDs:  res.DegradedEvents,
	})
}

// handleAgenda returns the upcoming or past list view around now.
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	kind := strings.ToLower(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = "upcoming"
	}

	events, err := s.store.List(r.Context())
	if err != nil {
		writeStoreError(w, "list events", err)
		return
	}

	now := s.now().In(s.loc)
	var occs []model.Occurrence
	switch kind {
	case "upcoming":
		occs, err = agenda.Upcoming(events, now, s.cfg.Horizon(), s.cfg.MaxOccurrences)
	case "past":
		occs, err = agenda.Past(events, now, s.cfg.Backfill(), s.cfg.MaxOccurrences)
	default:
		writeError(w, http.StatusBadRequest, "kind must be upcoming or past")
		return
	}
	if err != nil {
		appLog.Error("api agenda failed", err, "kind", kind)
		writeError(w, http.StatusInternalServerError, "agenda failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"kind":        kind,
		"now":         now,
		"occurrences": toDTOs(occs),
	})
}

// occurrencePatch edits the series an occurrence belongs to. SourceID and
// Start identify the occurrence; nil fields are left unchanged. An empty
// RRule turns the series into a single event.
type occurrencePatch struct {
	SourceID    string    `json:"source_id"`
	Start       time.Time `json:"start"`
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Location    *string   `json:"location,omitempty"`
	Category    *string   `json:"category,omitempty"`
	RRule       *string   `json:"rrule,omitempty"`
}

func (p occurrencePatch) apply(ev *model.MasterEvent) {
	if p.Title != nil {
		ev.Title = *p.Title
	}
	if p.Description != nil {
		ev.Description = *p.Description
	}
	if p.Location != nil {
		ev.Location = *p.Location
	}
	if p.Category != nil {
		ev.Category = *p.Category
	}
	if p.RRule != nil {
		ev.RRule = strings.TrimSpace(*p.RRule)
		ev.IsRecurring = ev.RRule != ""
	}
}

// resolveTarget rebuilds the occurrence named by (sourceID, start), checks it
// carries occurrenceID and loads the master event an edit must go to. It
// writes the error response itself and returns false on failure.
func (s *Server) resolveTarget(w http.ResponseWriter, r *http.Request, occurrenceID, sourceID string, start time.Time) (model.MasterEvent, bool) {
	if sourceID == "" || start.IsZero() {
		writeError(w, http.StatusBadRequest, "source_id and start are required")
		return model.MasterEvent{}, false
	}

	src, err := s.store.Get(r.Context(), sourceID)
	if err != nil {
		writeStoreError(w, "get event", err)
		return model.MasterEvent{}, false
	}

	occ, ok := recurrence.Locate(src, start).Get()
	if !ok {
		writeError(w, http.StatusNotFound, "no occurrence of "+sourceID+" starts at "+start.Format(time.RFC3339))
		return model.MasterEvent{}, false
	}
	if occ.ID != occurrenceID {
		writeError(w, http.StatusNotFound, "occurrence id does not match "+occ.ID)
		return model.MasterEvent{}, false
	}

	targetID := recurrence.ResolveEditTarget(occ)
	if targetID == src.ID {
		return src, true
	}
	target, err := s.store.Get(r.Context(), targetID)
	if err != nil {
		writeStoreError(w, "get event", err)
		return model.MasterEvent{}, false
	}
	return target, true
}

// handlePatchOccurrence applies an edit made on one occurrence to its
// whole series.
func (s *Server) handlePatchOccurrence(w http.ResponseWriter, r *http.Request) {
	var patch occurrencePatch
	if !decodeBody(w, r, &patch) {
		return
	}

	occurrenceID := r.PathValue("occurrenceID")
	ev, ok := s.resolveTarget(w, r, occurrenceID, patch.SourceID, patch.Start)
	if !ok {
		return
	}

	patch.apply(&ev)
	if err := s.store.Update(r.Context(), &ev); err != nil {
		writeStoreError(w, "update event", err)
		return
	}

	appLog.Info("occurrence edit applied to series", "occurrence_id", occurrenceID, "event_id", ev.ID)
	writeJSON(w, http.StatusOK, ev)
}

// handleDeleteOccurrence deletes the series an occurrence belongs to.
//
// DELETE /api/occurrences/{occurrenceID}?source_id=&start=
func (s *Server) handleDeleteOccurrence(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var start time.Time
	if v := q.Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start: "+err.Error())
			return
		}
		start = t
	}

	occurrenceID := r.PathValue("occurrenceID")
	ev, ok := s.resolveTarget(w, r, occurrenceID, q.Get("source_id"), start)
	if !ok {
		return
	}

	if err := s.store.Delete(r.Context(), ev.ID); err != nil {
		writeStoreError(w, "delete event", err)
		return
	}

	appLog.Info("occurrence delete applied to series", "occurrence_id", occurrenceID, "event_id", ev.ID)
	w.WriteHeader(http.StatusNoContent)
}

package web

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

const maxBodyBytes = 1 << 20

// eventRequest is the writable part of a master event. A non-empty RRule
// makes the event recurring.
type eventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	RRule       string    `json:"rrule"`
	Category    string    `json:"category"`
	Audience    string    `json:"audience"`
	Visibility  string    `json:"visibility"`
}

func (req eventRequest) apply(ev *model.MasterEvent) {
	ev.Title = req.Title
	ev.Description = req.Description
	ev.Location = req.Location
	ev.Start = req.Start
	ev.End = req.End
	ev.RRule = strings.TrimSpace(req.RRule)
	ev.IsRecurring = ev.RRule != ""
	ev.Category = req.Category
	ev.Audience = req.Audience
	ev.Visibility = req.Visibility
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.List(r.Context())
	if err != nil {
		writeStoreError(w, "list events", err)
		return
	}
	if events == nil {
		events = []model.MasterEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, "get event", err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var ev model.MasterEvent
	req.apply(&ev)
	if err := s.store.Insert(r.Context(), &ev); err != nil {
		writeStoreError(w, "create event", err)
		return
	}

	appLog.Info("event created", "event_id", ev.ID, "recurring", ev.IsRecurring)
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ev, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, "update event", err)
		return
	}
	req.apply(&ev)
	if err := s.store.Update(r.Context(), &ev); err != nil {
		writeStoreError(w, "update event", err)
		return
	}

	appLog.Info("event updated", "event_id", ev.ID)
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		writeStoreError(w, "delete event", err)
		return
	}

	appLog.Info("event deleted", "event_id", id)
	w.WriteHeader(http.StatusNoContent)
}

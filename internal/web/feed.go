package web

import (
	"io"
	"net/http"

	"eventcal/internal/ics"
	appLog "eventcal/internal/log"
	"eventcal/internal/store"
)

const maxImportBytes = 10 << 20

// handleFeed serves every master event as an iCalendar feed.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.List(r.Context())
	if err != nil {
		writeStoreError(w, "list events", err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, ics.ExportICS(events, s.cfg.CalendarName))
}

// handleImport upserts the VEVENTs of a text/calendar body by UID.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body: "+err.Error())
		return
	}

	events, err := ics.ParseICS(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid calendar: "+err.Error())
		return
	}

	res, err := store.Import(r.Context(), s.store, events)
	if err != nil {
		writeStoreError(w, "import", err)
		return
	}

	appLog.Info("ics import completed", "created", res.Created, "updated", res.Updated, "skipped", res.Skipped)
	writeJSON(w, http.StatusOK, res)
}

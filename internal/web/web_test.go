package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventcal/internal/config"
	"eventcal/internal/model"
	"eventcal/internal/recurrence"
	"eventcal/internal/store"
)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

type testEnv struct {
	srv   *Server
	store *store.SQLite
	h     http.Handler
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	for _, m := range mutate {
		m(cfg)
	}
	cfg.Normalize()

	srv := NewServer(cfg, st)
	srv.now = func() time.Time { return at(2024, 1, 8, 12, 0) }
	return &testEnv{srv: srv, store: st, h: srv.Handler()}
}

func (e *testEnv) seed(t *testing.T, events ...model.MasterEvent) {
	t.Helper()
	for i := range events {
		require.NoError(t, e.store.Insert(context.Background(), &events[i]))
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func standup() model.MasterEvent {
	return model.MasterEvent{
		ID:          "standup",
		Title:       "Standup",
		Start:       at(2024, 1, 1, 9, 0),
		End:         at(2024, 1, 1, 10, 0),
		IsRecurring: true,
		RRule:       "FREQ=WEEKLY;INTERVAL=1",
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestBasicAuth(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	})

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", nil).Code)

	rec := env.do(t, http.MethodGet, "/api/events", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	env.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	env.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEventsCRUD(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/events", map[string]any{
		"title": "Standup",
		"start": "2024-01-01T09:00:00Z",
		"end":   "2024-01-01T09:15:00Z",
		"rrule": "FREQ=DAILY",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[model.MasterEvent](t, rec)
	require.NotEmpty(t, created.ID)
	assert.True(t, created.IsRecurring)

	rec = env.do(t, http.MethodGet, "/api/events/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Standup", decode[model.MasterEvent](t, rec).Title)

	rec = env.do(t, http.MethodPut, "/api/events/"+created.ID, map[string]any{
		"title": "Standup v2",
		"start": "2024-01-01T09:00:00Z",
		"end":   "2024-01-01T09:15:00Z",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[model.MasterEvent](t, rec)
	assert.False(t, updated.IsRecurring, "empty rule makes the event single")

	rec = env.do(t, http.MethodGet, "/api/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]model.MasterEvent](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Standup v2", list[0].Title)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/events/"+created.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/events/"+created.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/events/"+created.ID, nil).Code)
}

func TestEventsValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/events", map[string]any{
		"title": "Backwards",
		"start": "2024-01-01T10:00:00Z",
		"end":   "2024-01-01T09:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "invalid event")

	rec = env.do(t, http.MethodPost, "/api/events", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/events", map[string]any{"title": "x", "colour": "red"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields rejected")

	rec = env.do(t, http.MethodPut, "/api/events/missing", map[string]any{
		"title": "x", "start": "2024-01-01T09:00:00Z", "end": "2024-01-01T09:00:00Z",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOccurrences_GridAndList(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, standup(), model.MasterEvent{
		ID: "dentist", Title: "Dentist",
		Start: at(2024, 1, 10, 11, 0), End: at(2024, 1, 10, 12, 0),
	})

	rec := env.do(t, http.MethodGet, "/api/occurrences?start=2024-01-01&end=2024-01-22T23:59:59Z", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	grid := decode[occurrencesResponse](t, rec)
	assert.Equal(t, "grid", grid.View)
	require.Len(t, grid.Occurrences, 5)

	var standups []occurrenceDTO
	for _, o := range grid.Occurrences {
		if o.SourceID == "standup" {
			standups = append(standups, o)
		}
	}
	require.Len(t, standups, 4)
	assert.Equal(t, "standup", standups[0].ID)
	assert.False(t, standups[0].IsVirtual)
	for i, o := range standups {
		assert.True(t, o.Start.Equal(at(2024, 1, 1+7*i, 9, 0)))
		assert.Equal(t, time.Hour, o.End.Sub(o.Start))
		assert.Equal(t, "Standup", o.Title)
	}
	assert.Equal(t, recurrence.DeriveID("standup", at(2024, 1, 15, 9, 0)), standups[2].ID)

	rec = env.do(t, http.MethodGet, "/api/occurrences?start=2024-01-01&end=2024-01-22T23:59:59Z&view=list", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[occurrencesResponse](t, rec)
	require.Len(t, list.Occurrences, 2)
	assert.Equal(t, "standup", list.Occurrences[0].SourceID)
	assert.Equal(t, "dentist", list.Occurrences[1].SourceID)
}

func TestOccurrences_Defaults(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, standup())

	rec := env.do(t, http.MethodGet, "/api/occurrences?days=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[occurrencesResponse](t, rec)
	assert.True(t, resp.RangeStart.Equal(at(2024, 1, 8, 12, 0)))
	assert.True(t, resp.RangeEnd.Equal(at(2024, 1, 15, 12, 0)))
	require.Len(t, resp.Occurrences, 1)
	assert.True(t, resp.Occurrences[0].Start.Equal(at(2024, 1, 15, 9, 0)))
}

func TestOccurrences_TruncatedAndDegraded(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.MaxOccurrences = 3 })
	env.seed(t,
		model.MasterEvent{
			ID: "daily", Title: "Daily",
			Start: at(2024, 1, 1, 9, 0), End: at(2024, 1, 1, 9, 30),
			IsRecurring: true, RRule: "FREQ=DAILY",
		},
		model.MasterEvent{
			ID: "broken", Title: "Broken",
			Start: at(2024, 1, 2, 9, 0), End: at(2024, 1, 2, 9, 30),
			IsRecurring: true, RRule: "FREQ=SOMETIMES",
		},
	)

	rec := env.do(t, http.MethodGet, "/api/occurrences?start=2024-01-01&end=2024-01-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[occurrencesResponse](t, rec)
	assert.Equal(t, []string{"daily"}, resp.TruncatedIDs)
	assert.Equal(t, []string{"broken"}, resp.DegradedIDs)
	assert.Len(t, resp.Occurrences, 4)
}

func TestOccurrences_BadParams(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{
		"/api/occurrences?start=yesterday",
		"/api/occurrences?start=2024-01-10&end=2024-01-01",
		"/api/occurrences?view=calendar",
	} {
		rec := env.do(t, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestPatchOccurrence_EditsSeries(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, standup())

	jan15 := at(2024, 1, 15, 9, 0)
	occID := recurrence.DeriveID("standup", jan15)

	rec := env.do(t, http.MethodPatch, "/api/occurrences/"+url.PathEscape(occID), map[string]any{
		"source_id": "standup",
		"start":     jan15,
		"title":     "Team sync",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "standup", decode[model.MasterEvent](t, rec).ID)

	rec = env.do(t, http.MethodGet, "/api/occurrences?start=2024-01-01&end=2024-01-22T23:59:59Z", nil)
	resp := decode[occurrencesResponse](t, rec)
	require.Len(t, resp.Occurrences, 4)
	for _, o := range resp.Occurrences {
		assert.Equal(t, "Team sync", o.Title)
	}

	ev, err := env.store.Get(context.Background(), "standup")
	require.NoError(t, err)
	assert.True(t, ev.Start.Equal(at(2024, 1, 1, 9, 0)), "anchor unchanged")
}

func TestPatchOccurrence_ChangesRule(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, standup())

	rec := env.do(t, http.MethodPatch, "/api/occurrences/standup", map[string]any{
		"source_id": "standup",
		"start":     at(2024, 1, 1, 9, 0),
		"rrule":     "",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ev, err := env.store.Get(context.Background(), "standup")
	require.NoError(t, err)
	assert.False(t, ev.IsRecurring)
	assert.Empty(t, ev.RRule)
}

func TestPatchOccurrence_Mismatch(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, standup())

	tests := []struct {
		name   string
		id     string
		body   map[string]any
		status int
	}{
		{
			name:   "id from another start",
			id:     recurrence.DeriveID("standup", at(2024, 1, 8, 9, 0)),
			body:   map[string]any{"source_id": "standup", "start": at(2024, 1, 15, 9, 0), "title": "x"},
			status: http.StatusNotFound,
		},
		{
			name:   "start off the series",
			id:     recurrence.DeriveID("standup", at(2024, 1, 15, 9, 30)),
			body:   map[string]any{"source_id": "standup", "start": at(2024, 1, 15, 9, 30), "title": "x"},
			status: http.StatusNotFound,
		},
		{
			name:   "unknown source",
			id:     "nope",
			body:   map[string]any{"source_id": "nope", "start": at(2024, 1, 15, 9, 0)},
			status: http.StatusNotFound,
		},
		{
			name:   "missing source",
			id:     "standup",
			body:   map[string]any{"start": at(2024, 1, 1, 9, 0)},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPatch, "/api/occurrences/"+url.PathEscape(tt.id), tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	ev, err := env.store.Get(context.Background(), "standup")
	require.NoError(t, err)
	assert.Equal(t, "Standup", ev.Title)
}

func TestDeleteOccurrence_DeletesSeries(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, standup())

	jan22 := at(2024, 1, 22, 9, 0)
	q := url.Values{"source_id": {"standup"}, "start": {jan22.Format(time.RFC3339)}}
	target := "/api/occurrences/" + url.PathEscape(recurrence.DeriveID("standup", jan22)) + "?" + q.Encode()

	rec := env.do(t, http.MethodDelete, target, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	_, err := env.store.Get(context.Background(), "standup")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAgenda(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, standup())

	rec := env.do(t, http.MethodGet, "/api/agenda", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Kind        string          `json:"kind"`
		Occurrences []occurrenceDTO `json:"occurrences"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "upcoming", resp.Kind)
	require.Len(t, resp.Occurrences, 1)
	assert.True(t, resp.Occurrences[0].Start.Equal(at(2024, 1, 15, 9, 0)))

	rec = env.do(t, http.MethodGet, "/api/agenda?kind=past", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Occurrences, 1)
	assert.True(t, resp.Occurrences[0].Start.Equal(at(2024, 1, 8, 9, 0)))

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/agenda?kind=someday", nil).Code)
}

func TestFeedAndImport(t *testing.T) {
	src := newTestEnv(t)
	src.seed(t, standup())

	rec := src.do(t, http.MethodGet, "/feed.ics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")
	feed := rec.Body.String()
	assert.Contains(t, feed, "RRULE:FREQ=WEEKLY")
	assert.Equal(t, 1, strings.Count(feed, "BEGIN:VEVENT"))

	dst := newTestEnv(t)
	rec = dst.do(t, http.MethodPost, "/api/import", feed)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, store.ImportResult{Created: 1}, decode[store.ImportResult](t, rec))

	rec = dst.do(t, http.MethodPost, "/api/import", feed)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.ImportResult{Updated: 1}, decode[store.ImportResult](t, rec))

	ev, err := dst.store.Get(context.Background(), "standup")
	require.NoError(t, err)
	assert.Equal(t, "FREQ=WEEKLY", ev.RRule)
	assert.True(t, ev.Start.Equal(at(2024, 1, 1, 9, 0)))

	assert.Equal(t, http.StatusBadRequest, dst.do(t, http.MethodPost, "/api/import", "").Code)
}

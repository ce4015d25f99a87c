package agenda

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventcal/internal/model"
)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func sampleEvents() []model.MasterEvent {
	return []model.MasterEvent{
		{
			ID: "standup", Title: "Standup",
			Start: at(2024, 1, 1, 9, 0), End: at(2024, 1, 1, 9, 15),
			IsRecurring: true, RRule: "FREQ=DAILY",
		},
		{
			ID: "review", Title: "Review",
			Start: at(2024, 1, 5, 14, 0), End: at(2024, 1, 5, 15, 0),
			IsRecurring: true, RRule: "FREQ=WEEKLY",
		},
		{
			ID: "dentist", Title: "Dentist",
			Start: at(2024, 1, 10, 11, 0), End: at(2024, 1, 10, 12, 0),
		},
	}
}

func ids(occs []model.Occurrence) []string {
	out := make([]string, len(occs))
	for i, o := range occs {
		out[i] = o.SourceID()
	}
	return out
}

func TestUpcoming(t *testing.T) {
	now := at(2024, 1, 8, 12, 0)

	list, err := Upcoming(sampleEvents(), now, 7*24*time.Hour, 0)
	require.NoError(t, err)

	require.Len(t, list, 3)
	assert.Equal(t, []string{"standup", "dentist", "review"}, ids(list))
	assert.Equal(t, at(2024, 1, 9, 9, 0), list[0].Start, "next standup, not today's")
	assert.Equal(t, at(2024, 1, 12, 14, 0), list[2].Start)
}

func TestPast(t *testing.T) {
	now := at(2024, 1, 12, 12, 0)

	list, err := Past(sampleEvents(), now, 14*24*time.Hour, 0)
	require.NoError(t, err)

	require.Len(t, list, 3)
	assert.Equal(t, []string{"standup", "dentist", "review"}, ids(list))
	assert.Equal(t, at(2024, 1, 12, 9, 0), list[0].Start, "most recent standup")
	assert.Equal(t, at(2024, 1, 5, 14, 0), list[2].Start, "12 Jan review has not started yet")
	assert.False(t, list[2].IsVirtual)
}

func TestUpcoming_NegativeHorizon(t *testing.T) {
	_, err := Upcoming(sampleEvents(), at(2024, 1, 1, 0, 0), -time.Hour, 0)
	assert.Error(t, err)
}

type fakeLister struct {
	events []model.MasterEvent
	err    error
	calls  int
}

func (f *fakeLister) List(context.Context) ([]model.MasterEvent, error) {
	f.calls++
	return f.events, f.err
}

func TestScheduler_RunOnce(t *testing.T) {
	lister := &fakeLister{events: sampleEvents()}
	s, err := NewScheduler(lister, SchedulerConfig{Spec: "0 7 * * *", Location: time.UTC, Horizon: 48 * time.Hour})
	require.NoError(t, err)
	s.now = func() time.Time { return at(2024, 1, 9, 7, 0) }

	list, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"standup", "dentist"}, ids(list))
	assert.Equal(t, 1, lister.calls)

	lister.err = errors.New("db down")
	_, err = s.RunOnce(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestNewScheduler_Invalid(t *testing.T) {
	_, err := NewScheduler(&fakeLister{}, SchedulerConfig{Spec: "every morning", Horizon: time.Hour})
	assert.Error(t, err)

	_, err = NewScheduler(&fakeLister{}, SchedulerConfig{Spec: "0 7 * * *"})
	assert.Error(t, err)

	_, err = NewScheduler(nil, SchedulerConfig{Spec: "0 7 * * *", Horizon: time.Hour})
	assert.Error(t, err)
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := NewScheduler(&fakeLister{}, SchedulerConfig{Spec: "@every 1h", Horizon: time.Hour})
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

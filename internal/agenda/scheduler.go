package agenda

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

// EventLister is the part of the store the digest job needs.
type EventLister interface {
	List(ctx context.Context) ([]model.MasterEvent, error)
}

// SchedulerConfig configures the periodic digest job.
type SchedulerConfig struct {
	// Spec is a standard 5-field cron expression, e.g. "0 7 * * *".
	Spec string
	// Location is the zone Spec is evaluated in. Defaults to time.Local.
	Location *time.Location

	Horizon        time.Duration
	MaxOccurrences int
}

// Scheduler periodically logs the upcoming agenda.
type Scheduler struct {
	cron    *cron.Cron
	events  EventLister
	cfg     SchedulerConfig
	now     func() time.Time
	timeout time.Duration
}

// NewScheduler validates the cron spec and registers the digest job. The job
// does not run until Start is called.
func NewScheduler(events EventLister, cfg SchedulerConfig) (*Scheduler, error) {
	if events == nil {
		return nil, errors.New("agenda: nil event lister")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Horizon <= 0 {
		return nil, fmt.Errorf("agenda: horizon must be positive, got %s", cfg.Horizon)
	}

	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(cfg.Location)),
		events:  events,
		cfg:     cfg,
		now:     time.Now,
		timeout: 30 * time.Second,
	}

	if _, err := s.cron.AddFunc(cfg.Spec, s.run); err != nil {
		return nil, fmt.Errorf("agenda: invalid digest schedule %q: %w", cfg.Spec, err)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		appLog.Info("digest scheduled", "spec", s.cfg.Spec, "next", e.Next)
	}
}

// Stop stops scheduling and waits for a running job to finish, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce builds the upcoming agenda from the current store contents, logs
// it and returns it.
func (s *Scheduler) RunOnce(ctx context.Context) ([]model.Occurrence, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	now := s.now().In(s.cfg.Location)
	list, err := Upcoming(events, now, s.cfg.Horizon, s.cfg.MaxOccurrences)
	if err != nil {
		return nil, err
	}

	appLog.Info("agenda digest", "from", now, "horizon", s.cfg.Horizon.String(), "entries", len(list))
	for _, o := range list {
		appLog.Info("agenda entry",
			"start", o.Start,
			"title", o.Source.Title,
			"event_id", o.SourceID(),
			"recurring", o.Source.IsRecurring,
		)
	}
	return list, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		appLog.Error("agenda digest failed", err)
	}
}

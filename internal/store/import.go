package store

import (
	"context"
	"errors"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

// ImportResult counts what Import did with each incoming event.
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Import upserts events by ID. Events that fail validation are skipped and
// logged; any other store error aborts the import.
func Import(ctx context.Context, s Store, events []model.MasterEvent) (ImportResult, error) {
	var res ImportResult
	for i := range events {
		ev := events[i]

		_, err := s.Get(ctx, ev.ID)
		switch {
		case err == nil:
			err = s.Update(ctx, &ev)
			if err == nil {
				res.Updated++
			}
		case errors.Is(err, ErrNotFound):
			err = s.Insert(ctx, &ev)
			if err == nil {
				res.Created++
			}
		}

		if errors.Is(err, ErrInvalid) {
			appLog.Warn("import: event skipped", "event_id", ev.ID, "error", err.Error())
			res.Skipped++
			continue
		}
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

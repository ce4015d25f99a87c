package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/mo"
	"github.com/teambition/rrule-go"
)

// ToROption builds the RFC 5545 equivalent of r anchored at dtstart.
//
// The two only agree where the engine follows RFC semantics: DAILY, WEEKLY
// without BYDAY, and WEEKLY with BYDAY at interval 1. Monthly/yearly clamping
// differs (RFC skips missing days instead of clamping).
func ToROption(r Rule, dtstart time.Time) rrule.ROption {
	r = r.Normalize()

	opt := rrule.ROption{
		Freq:     toRRuleFrequency(r.Frequency),
		Dtstart:  dtstart,
		Interval: r.Interval,
	}
	if r.Frequency == Weekly {
		for _, d := range r.ByWeekday.Days() {
			opt.Byweekday = append(opt.Byweekday, toRRuleWeekday(d))
		}
	}
	if until, ok := r.Until.Get(); ok {
		opt.Until = until
	}
	return opt
}

// FromICalRule converts an RRULE value taken from an iCalendar feed into the
// rule string stored for a master event. COUNT is turned into an UNTIL at
// the last counted occurrence; parts the engine does not model (BYMONTHDAY,
// BYSETPOS, ...) are dropped.
func FromICalRule(raw string, dtstart time.Time) (string, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 6 && strings.EqualFold(raw[:6], "RRULE:") {
		raw = raw[6:]
	}

	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return "", fmt.Errorf("parse rrule %q: %w", raw, err)
	}

	rule := Rule{Interval: opt.Interval}
	switch opt.Freq {
	case rrule.DAILY:
		rule.Frequency = Daily
	case rrule.WEEKLY:
		rule.Frequency = Weekly
	case rrule.MONTHLY:
		rule.Frequency = Monthly
	case rrule.YEARLY:
		rule.Frequency = Yearly
	default:
		return "", fmt.Errorf("unsupported frequency %s", opt.Freq)
	}

	for _, wd := range opt.Byweekday {
		rule.ByWeekday = rule.ByWeekday.With(fromRRuleWeekday(wd))
	}
	if !opt.Until.IsZero() {
		rule.Until = mo.Some(opt.Until)
	}

	if opt.Count > 0 {
		opt.Dtstart = dtstart
		r, err := rrule.NewRRule(*opt)
		if err != nil {
			return "", fmt.Errorf("build rrule %q: %w", raw, err)
		}
		if all := r.All(); len(all) > 0 {
			last := all[len(all)-1]
			if until, ok := rule.Until.Get(); !ok || last.Before(until) {
				rule.Until = mo.Some(last)
			}
		}
	}

	return Encode(rule), nil
}

func toRRuleFrequency(f Frequency) rrule.Frequency {
	switch f {
	case Daily:
		return rrule.DAILY
	case Weekly:
		return rrule.WEEKLY
	case Monthly:
		return rrule.MONTHLY
	default:
		return rrule.YEARLY
	}
}

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

func toRRuleWeekday(d time.Weekday) rrule.Weekday {
	return rruleWeekdays[d]
}

// fromRRuleWeekday maps rrule-go's Monday-first index to time.Weekday.
func fromRRuleWeekday(wd rrule.Weekday) time.Weekday {
	return time.Weekday((wd.Day() + 1) % 7)
}

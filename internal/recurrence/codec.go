package recurrence

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
)

const (
	untilLayout         = "20060102T150405Z"
	untilLayoutFloating = "20060102T150405"
	untilLayoutDate     = "20060102"
)

// Decode parses a rule string such as "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,FR".
//
// The result is absent when FREQ is missing or not one of DAILY, WEEKLY,
// MONTHLY, YEARLY; callers treat that as "not recurring". Unknown keys and
// malformed INTERVAL/BYDAY/UNTIL values are ignored.
func Decode(s string) mo.Option[Rule] {
	s = strings.TrimSpace(s)
	if len(s) >= 6 && strings.EqualFold(s[:6], "RRULE:") {
		s = s[6:]
	}

	rule := Rule{Interval: 1}
	haveFreq := false

	for _, tok := range strings.Split(s, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(tok), "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "FREQ":
			rule.Frequency, haveFreq = parseFrequency(value)
		case "INTERVAL":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				rule.Interval = n
			} else if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(value, "-") {
				rule.Interval = MaxInterval
			}
		case "BYDAY":
			rule.ByWeekday = parseByDay(value)
		case "UNTIL":
			if t, ok := parseUntil(value); ok {
				rule.Until = mo.Some(t)
			}
		}
	}

	if !haveFreq {
		return mo.None[Rule]()
	}
	return mo.Some(rule.Normalize())
}

// Encode serializes a rule back to its string form. INTERVAL is written only
// when greater than 1 and BYDAY only for Weekly rules with a non-empty set.
func Encode(r Rule) string {
	r = r.Normalize()

	parts := []string{"FREQ=" + r.Frequency.String()}
	if r.Interval > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(r.Interval))
	}
	if r.Frequency == Weekly && !r.ByWeekday.Empty() {
		days := r.ByWeekday.Days()
		tokens := make([]string, 0, len(days))
		for _, d := range days {
			tokens = append(tokens, weekdayTokens[d])
		}
		parts = append(parts, "BYDAY="+strings.Join(tokens, ","))
	}
	if until, ok := r.Until.Get(); ok {
		parts = append(parts, "UNTIL="+formatUntil(until))
	}
	return strings.Join(parts, ";")
}

// parseByDay accepts "MO,WE,FR". An ordinal prefix ("1MO", "-1FR") is
// dropped since the engine has no positional weekday support.
func parseByDay(value string) WeekdaySet {
	var set WeekdaySet
	for _, tok := range strings.Split(value, ",") {
		tok = strings.ToUpper(strings.TrimSpace(tok))
		if len(tok) < 2 {
			continue
		}
		tok = tok[len(tok)-2:]
		for d, name := range weekdayTokens {
			if name == tok {
				set = set.With(d)
				break
			}
		}
	}
	return set
}

// parseUntil reads the compact UTC token. Floating date-times are read as
// UTC and a bare date covers that whole day.
func parseUntil(value string) (time.Time, bool) {
	value = strings.ToUpper(value)
	if t, err := time.Parse(untilLayout, value); err == nil {
		return t, true
	}
	if t, err := time.Parse(untilLayoutFloating, value); err == nil {
		return t, true
	}
	if t, err := time.Parse(untilLayoutDate, value); err == nil {
		return t.Add(24*time.Hour - time.Second), true
	}
	return time.Time{}, false
}

func formatUntil(t time.Time) string {
	return t.UTC().Format(untilLayout)
}

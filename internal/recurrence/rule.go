package recurrence

import (
	"strings"
	"time"

	"github.com/samber/mo"
)

// Frequency is the unit a rule steps by.
type Frequency int

const (
	FrequencyNone Frequency = iota
	Daily
	Weekly
	Monthly
	Yearly
)

func (f Frequency) String() string {
	switch f {
	case Daily:
		return "DAILY"
	case Weekly:
		return "WEEKLY"
	case Monthly:
		return "MONTHLY"
	case Yearly:
		return "YEARLY"
	default:
		return ""
	}
}

// parseFrequency maps a FREQ value (any case) to a Frequency.
func parseFrequency(s string) (Frequency, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DAILY":
		return Daily, true
	case "WEEKLY":
		return Weekly, true
	case "MONTHLY":
		return Monthly, true
	case "YEARLY":
		return Yearly, true
	}
	return FrequencyNone, false
}

// WeekdaySet is a set of weekdays stored as a bitmask indexed by time.Weekday.
type WeekdaySet uint8

// canonicalWeekdays is the Mon..Sun order used for BYDAY output.
var canonicalWeekdays = [7]time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

var weekdayTokens = map[time.Weekday]string{
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
	time.Sunday:    "SU",
}

// NewWeekdaySet builds a set from the given days.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

func (s WeekdaySet) With(d time.Weekday) WeekdaySet {
	if d < time.Sunday || d > time.Saturday {
		return s
	}
	return s | 1<<uint(d)
}

func (s WeekdaySet) Has(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

func (s WeekdaySet) Empty() bool {
	return s == 0
}

// Days returns the members in Mon..Sun order.
func (s WeekdaySet) Days() []time.Weekday {
	out := make([]time.Weekday, 0, 7)
	for _, d := range canonicalWeekdays {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// Rule is the structured form of a rule string. It is always derived from,
// and serializable back to, the stored string.
type Rule struct {
	Frequency Frequency
	// Interval is "every N units" of Frequency; values below 1 mean 1.
	Interval int
	// ByWeekday is only meaningful for Weekly rules. Empty means "the
	// anchor's own weekday".
	ByWeekday WeekdaySet
	// Until is an inclusive bound on occurrence starts.
	Until mo.Option[time.Time]
}

// MaxInterval bounds INTERVAL. Larger steps would overflow date arithmetic
// and can never produce a second occurrence anyway.
const MaxInterval = 10000

// Normalize returns the rule in the form Decode produces: interval between 1
// and MaxInterval, no weekday set outside Weekly, Until in UTC at second
// precision.
func (r Rule) Normalize() Rule {
	if r.Interval < 1 {
		r.Interval = 1
	}
	if r.Interval > MaxInterval {
		r.Interval = MaxInterval
	}
	if r.Frequency != Weekly {
		r.ByWeekday = 0
	}
	if until, ok := r.Until.Get(); ok {
		r.Until = mo.Some(until.UTC().Truncate(time.Second))
	}
	return r
}

// Equal reports whether two rules describe the same recurrence.
func (r Rule) Equal(o Rule) bool {
	a, b := r.Normalize(), o.Normalize()
	if a.Frequency != b.Frequency || a.Interval != b.Interval || a.ByWeekday != b.ByWeekday {
		return false
	}
	au, aok := a.Until.Get()
	bu, bok := b.Until.Get()
	if aok != bok {
		return false
	}
	return !aok || au.Equal(bu)
}

func (r Rule) String() string {
	return Encode(r)
}

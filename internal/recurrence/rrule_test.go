package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"
)

func TestFromICalRule(t *testing.T) {
	dtstart := at(2024, 1, 2, 10, 0) // Tuesday

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "count becomes until",
			raw:  "FREQ=WEEKLY;COUNT=3;BYDAY=TU,TH",
			want: "FREQ=WEEKLY;BYDAY=TU,TH;UNTIL=20240109T100000Z",
		},
		{
			name: "rrule prefix and until kept",
			raw:  "RRULE:FREQ=DAILY;INTERVAL=2;UNTIL=20240201T000000Z",
			want: "FREQ=DAILY;INTERVAL=2;UNTIL=20240201T000000Z",
		},
		{
			name: "unmodelled parts dropped",
			raw:  "FREQ=MONTHLY;INTERVAL=2;BYMONTHDAY=15;WKST=SU",
			want: "FREQ=MONTHLY;INTERVAL=2",
		},
		{
			name: "yearly",
			raw:  "FREQ=YEARLY",
			want: "FREQ=YEARLY",
		},
		{name: "sub-daily frequency", raw: "FREQ=HOURLY;INTERVAL=4", wantErr: true},
		{name: "malformed", raw: "FREQ=WEEKLY;BYDAY", wantErr: true},
		{name: "no freq", raw: "INTERVAL=2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromICalRule(tt.raw, dtstart)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, Decode(got).IsPresent())
		})
	}
}

func TestToROption(t *testing.T) {
	rule := Decode("FREQ=WEEKLY;INTERVAL=2;BYDAY=SU,MO;UNTIL=20240301T000000Z").MustGet()
	dtstart := at(2024, 1, 1, 9, 0)

	opt := ToROption(rule, dtstart)

	assert.Equal(t, rrule.WEEKLY, opt.Freq)
	assert.Equal(t, 2, opt.Interval)
	assert.Equal(t, dtstart, opt.Dtstart)
	assert.Equal(t, []rrule.Weekday{rrule.MO, rrule.SU}, opt.Byweekday)
	assert.True(t, opt.Until.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))

	back, err := FromICalRule(opt.RRuleString(), dtstart)
	require.NoError(t, err)
	assert.Equal(t, Encode(rule), back)
}

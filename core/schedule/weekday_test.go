package schedule

import (
	"encoding/json"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextOnOrAfter(t *testing.T) {
	at := func(day, hour, min int) time.Time { // January 2024; the 1st is a Monday
		return time.Date(2024, 1, day, hour, min, 0, 0, time.UTC)
	}
	threePM := TimeOfDay{Hour: 15}

	tests := []struct {
		name      string
		weekday   time.Weekday
		tod       TimeOfDay
		reference time.Time
		want      time.Time
	}{
		{name: "exact match is inclusive", weekday: time.Wednesday, tod: threePM, reference: at(3, 15, 0), want: at(3, 15, 0)},
		{name: "one minute late rolls a week", weekday: time.Wednesday, tod: threePM, reference: at(3, 15, 1), want: at(10, 15, 0)},
		{name: "seconds late rolls a week", weekday: time.Wednesday, tod: threePM, reference: at(3, 15, 0).Add(time.Second), want: at(10, 15, 0)},
		{name: "earlier the same day", weekday: time.Wednesday, tod: threePM, reference: at(3, 9, 30), want: at(3, 15, 0)},
		{name: "later in the week", weekday: time.Friday, tod: threePM, reference: at(1, 10, 0), want: at(5, 15, 0)},
		{name: "earlier in the week wraps", weekday: time.Monday, tod: threePM, reference: at(3, 10, 0), want: at(8, 15, 0)},
		{name: "sunday to monday rollover", weekday: time.Monday, tod: TimeOfDay{Hour: 8}, reference: at(7, 23, 59), want: at(8, 8, 0)},
		{name: "monday to sunday", weekday: time.Sunday, tod: TimeOfDay{Hour: 8}, reference: at(1, 0, 0), want: at(7, 8, 0)},
		{name: "midnight target same day", weekday: time.Monday, tod: TimeOfDay{}, reference: at(1, 0, 0), want: at(1, 0, 0)},
		{name: "midnight target passed", weekday: time.Monday, tod: TimeOfDay{}, reference: at(1, 0, 1), want: at(8, 0, 0)},
		{name: "last minute of the day", weekday: time.Sunday, tod: TimeOfDay{Hour: 23, Minute: 59}, reference: at(7, 23, 58), want: at(7, 23, 59)},
		{name: "month boundary", weekday: time.Thursday, tod: threePM, reference: at(31, 16, 0), want: time.Date(2024, 2, 1, 15, 0, 0, 0, time.UTC)},
		{name: "year boundary", weekday: time.Monday, tod: threePM, reference: time.Date(2023, 12, 31, 12, 0, 0, 0, time.UTC), want: at(1, 15, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextOnOrAfter(tt.weekday, tt.tod, tt.reference)
			if !got.Equal(tt.want) {
				t.Errorf("NextOnOrAfter() = %v, want %v", got, tt.want)
			}
			assert.Equal(t, tt.weekday, got.Weekday())
			assert.False(t, got.Before(tt.reference))
		})
	}
}

func TestNextOnOrAfter_location(t *testing.T) {
	kinshasa, err := time.LoadLocation("Africa/Kinshasa") // UTC+1, no DST
	require.NoError(t, err)

	// Monday 23:30 UTC is already Tuesday 00:30 in Kinshasa
	ref := time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC).In(kinshasa)
	got := NextOnOrAfter(time.Tuesday, TimeOfDay{Hour: 8}, ref)
	assert.Equal(t, time.Date(2024, 1, 2, 7, 0, 0, 0, time.UTC), got.UTC())
}

func TestWeekdaySet(t *testing.T) {
	set, err := ParseWeekdaySet([]string{"Wed", "monday", "mon", "SUN"})
	require.NoError(t, err)

	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Sunday}, set.Days())
	assert.Equal(t, "mon,wed,sun", set.String())
	assert.Equal(t, []int64{0, 1, 3}, set.Int64s())
	assert.Equal(t, set, WeekdaySetFromInt64s(set.Int64s()))
	assert.True(t, set.Has(time.Sunday))
	assert.False(t, set.Has(time.Tuesday))
	assert.False(t, set.IsEmpty())
	assert.True(t, WeekdaySet(0).IsEmpty())

	data, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `["mon","wed","sun"]`, string(data))

	var decoded WeekdaySet
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, set, decoded)

	_, err = ParseWeekdaySet([]string{"mon", "funday"})
	assert.Error(t, err)
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "00:00", want: TimeOfDay{}},
		{in: "15:00", want: TimeOfDay{Hour: 15}},
		{in: "23:59", want: TimeOfDay{Hour: 23, Minute: 59}},
		{in: " 07:05 ", want: TimeOfDay{Hour: 7, Minute: 5}},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "3pm", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimeOfDay() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				assert.Equal(t, tt.want, got)
				assert.Equal(t, tt.want, mustParse(t, got.String()))
			}
		})
	}
}

func mustParse(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(s)
	require.NoError(t, err)
	return tod
}

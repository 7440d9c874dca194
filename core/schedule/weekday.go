package schedule

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// WeekdaySet is a set of weekdays, one bit per time.Weekday.
type WeekdaySet uint8

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday accepts short ("mon") and long ("monday") English names, case-insensitively.
func ParseWeekday(s string) (time.Weekday, error) {
	if d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return d, nil
	}
	return 0, errors.Errorf("invalid weekday %q", s)
}

// WeekdayName returns the short lowercase name of d ("mon").
func WeekdayName(d time.Weekday) string {
	return strings.ToLower(d.String()[:3])
}

func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var set WeekdaySet
	for _, d := range days {
		set = set.Add(d)
	}
	return set
}

// ParseWeekdaySet parses weekday names; duplicates collapse.
func ParseWeekdaySet(names []string) (WeekdaySet, error) {
	var set WeekdaySet
	for _, name := range names {
		d, err := ParseWeekday(name)
		if err != nil {
			return 0, err
		}
		set = set.Add(d)
	}
	return set, nil
}

func (s WeekdaySet) Add(d time.Weekday) WeekdaySet {
	if d < time.Sunday || d > time.Saturday {
		return s
	}
	return s | 1<<uint(d)
}

func (s WeekdaySet) Has(d time.Weekday) bool {
	return d >= time.Sunday && d <= time.Saturday && s&(1<<uint(d)) != 0
}

func (s WeekdaySet) IsEmpty() bool {
	return s&0x7f == 0
}

// Days lists the members of s in ISO order, Monday first.
func (s WeekdaySet) Days() []time.Weekday {
	days := make([]time.Weekday, 0, 7)
	for i := 1; i <= 7; i++ {
		d := time.Weekday(i % 7)
		if s.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

func (s WeekdaySet) Names() []string {
	days := s.Days()
	names := make([]string, 0, len(days))
	for _, d := range days {
		names = append(names, WeekdayName(d))
	}
	return names
}

func (s WeekdaySet) String() string {
	return strings.Join(s.Names(), ",")
}

func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

func (s *WeekdaySet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	set, err := ParseWeekdaySet(names)
	if err != nil {
		return err
	}
	*s = set
	return nil
}

// Int64s returns the members as time.Weekday numbers (Sunday = 0), in ascending order.
func (s WeekdaySet) Int64s() []int64 {
	days := s.Days()
	nums := make([]int64, 0, len(days))
	for _, d := range days {
		nums = append(nums, int64(d))
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	return nums
}

func WeekdaySetFromInt64s(nums []int64) WeekdaySet {
	var set WeekdaySet
	for _, n := range nums {
		set = set.Add(time.Weekday(n))
	}
	return set
}

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses a 24-hour "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, errors.Errorf("invalid time of day %q", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = tod
	return nil
}

// On returns the instant at t on the given calendar date in loc.
func (t TimeOfDay) On(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, t.Hour, t.Minute, 0, 0, loc)
}

// NextOnOrAfter returns the earliest instant >= reference that falls on weekday at tod,
// computed in reference's location. A reference exactly at tod on weekday is returned as is.
func NextOnOrAfter(weekday time.Weekday, tod TimeOfDay, reference time.Time) time.Time {
	y, m, d := reference.Date()
	delta := (int(weekday) - int(reference.Weekday()) + 7) % 7
	candidate := tod.On(y, m, d+delta, reference.Location())
	if candidate.Before(reference) {
		candidate = tod.On(y, m, d+delta+7, reference.Location())
	}
	return candidate
}

package schedule

import (
	"time"

	"github.com/pkg/errors"
	"github.com/teambition/rrule-go"
)

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

func (s Series) ruleOption(dtstart time.Time) rrule.ROption {
	days := s.Days.Days()
	byweekday := make([]rrule.Weekday, 0, len(days))
	for _, d := range days {
		byweekday = append(byweekday, rruleWeekdays[d])
	}
	return rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   dtstart,
		Wkst:      rrule.MO,
		Byweekday: byweekday,
		Byhour:    []int{s.StartTime.Hour},
		Byminute:  []int{s.StartTime.Minute},
		Bysecond:  []int{0},
	}
}

// RRule renders the series as an RFC 5545 recurrence rule, without DTSTART.
func (s Series) RRule() string {
	opt := s.ruleOption(time.Time{})
	return opt.RRuleString()
}

// Recurrence builds the equivalent RFC 5545 rule anchored at dtstart, in the series' location.
func (s Series) Recurrence(dtstart time.Time) (*rrule.RRule, error) {
	loc, err := s.Location()
	if err != nil {
		return nil, err
	}
	r, err := rrule.NewRRule(s.ruleOption(dtstart.In(loc)))
	if err != nil {
		return nil, errors.Wrap(err, "building recurrence rule")
	}
	return r, nil
}

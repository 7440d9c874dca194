package schedule

import (
	"sort"
	"time"
)

// DefaultWindowWeeks is used when no window is configured.
const DefaultWindowWeeks = 6

// Materialize plans the occurrences of s that should exist in [referenceNow, referenceNow+windowWeeks*7 days]
// and are not already present in existing. It does not touch storage.
//
// Weekday and time-of-day arithmetic runs in the series' location; results are in UTC, sorted by start.
// Existing occurrences of other series are ignored. A series whose time zone cannot be loaded yields ErrUnknownTimezone.
func Materialize(s Series, referenceNow time.Time, windowWeeks int, existing []Occurrence) ([]Occurrence, error) {
	loc, err := s.Location()
	if err != nil {
		return nil, err
	}
	if windowWeeks <= 0 || s.Days.IsEmpty() {
		return nil, nil
	}

	ref := referenceNow.In(loc)
	horizon := ref.AddDate(0, 0, 7*windowWeeks)

	seen := make(map[int64]struct{}, len(existing))
	for _, o := range existing {
		if o.SeriesID == s.ID {
			seen[o.StartAt.UnixNano()] = struct{}{}
		}
	}

	var planned []Occurrence
	for _, d := range s.Days.Days() {
		first := NextOnOrAfter(d, s.StartTime, ref)
		y, m, day := first.Date()
		for w := 0; w < windowWeeks; w++ {
			// step by calendar date so the wall-clock time survives DST changes
			candidate := s.StartTime.On(y, m, day+7*w, loc)
			if candidate.After(horizon) {
				break
			}
			key := candidate.UnixNano()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			planned = append(planned, s.occurrenceAt(candidate, referenceNow))
		}
	}

	sort.Slice(planned, func(i, j int) bool { return planned[i].StartAt.Before(planned[j].StartAt) })
	return planned, nil
}

// Standalone builds a one-off occurrence that belongs to no series.
func Standalone(no NewOccurrence, referenceNow time.Time) Occurrence {
	return Occurrence{
		GroupID:         no.GroupID,
		Subject:         no.Subject,
		DurationMinutes: no.DurationMinutes,
		Notes:           no.Notes,
		StartAt:         no.StartAt.UTC(),
		CreatedAt:       referenceNow.UTC(),
	}
}

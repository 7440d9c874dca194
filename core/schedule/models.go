package schedule

import (
	"fmt"
	"time"
)

const (
	MinDurationMinutes = 15
	MaxDurationMinutes = 480
)

type (
	// Series is a weekly recurrence rule. It is a template only: it never shows up on a calendar itself.
	Series struct {
		ID              string     `json:"id"`
		GroupID         string     `json:"group_id"`
		Subject         string     `json:"subject"`
		Days            WeekdaySet `json:"days_of_week"`
		StartTime       TimeOfDay  `json:"start_time"`
		DurationMinutes int        `json:"duration_minutes"`
		Notes           string     `json:"notes"`
		Timezone        string     `json:"timezone"`
		Version         int        `json:"version"`
		CreatedAt       time.Time  `json:"created_at"`
		UpdatedAt       time.Time  `json:"updated_at"`
	}

	// Occurrence is one materialized class session. Subject, duration and notes are copied from the
	// series when the occurrence is generated; later series edits do not touch existing rows.
	Occurrence struct {
		ID              string    `json:"id"`
		SeriesID        string    `json:"series_id,omitempty"` // empty for standalone occurrences
		GroupID         string    `json:"group_id"`
		Subject         string    `json:"subject"`
		DurationMinutes int       `json:"duration_minutes"`
		Notes           string    `json:"notes"`
		StartAt         time.Time `json:"start_at"`
		CreatedAt       time.Time `json:"created_at"`
	}

	// Rule holds the template fields of a series as submitted by clients.
	Rule struct {
		Subject   string   `json:"subject" validate:"required,min=2,max=255"`
		Days      []string `json:"days_of_week" validate:"required,min=1,dive,weekday"`
		StartTime string   `json:"start_time" validate:"required,hhmm"`
		EndTime   string   `json:"end_time" validate:"required,hhmm"`
		Notes     string   `json:"notes" validate:"max=1000"`
		Timezone  string   `json:"timezone" validate:"omitempty,timezone"`
	}

	NewSeries struct {
		GroupID string `json:"group_id" validate:"required,max=64"`
		Rule
	}

	UpdateSeries struct {
		Rule
		// Version enables the optimistic check when non-zero.
		Version int `json:"version" validate:"min=0"`
	}

	NewOccurrence struct {
		GroupID         string    `json:"group_id" validate:"required,max=64"`
		Subject         string    `json:"subject" validate:"required,min=2,max=255"`
		StartAt         time.Time `json:"start_at" validate:"required"`
		DurationMinutes int       `json:"duration_minutes" validate:"min=15,max=480"`
		Notes           string    `json:"notes" validate:"max=1000"`
	}

	DeleteOptions struct {
		Version int
		// Force deletes even when the dependents hook reports references.
		Force bool
	}

	SeriesFilter struct {
		GroupID string
	}

	// OccurrenceFilter selects occurrences; zero fields are ignored. From is inclusive, To exclusive.
	OccurrenceFilter struct {
		IDs      []string
		SeriesID string
		GroupID  string
		From     time.Time
		To       time.Time
	}

	// Materialization is the outcome of a create, edit or refresh.
	Materialization struct {
		Series   Series       `json:"series"`
		Inserted []Occurrence `json:"inserted"`
		Purged   int          `json:"purged"`
	}
)

// LoadLocation resolves an IANA zone name; the empty name is UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownTimezone, name)
	}
	return loc, nil
}

// Location returns the series' time zone.
func (s Series) Location() (*time.Location, error) {
	return LoadLocation(s.Timezone)
}

// EndTime is the local time the class ends.
func (s Series) EndTime() TimeOfDay {
	end := s.StartTime.Minutes() + s.DurationMinutes
	return TimeOfDay{Hour: end / 60, Minute: end % 60}
}

// Matches reports whether t falls on one of the series' weekdays at its start time.
func (s Series) Matches(t time.Time) bool {
	loc, err := s.Location()
	if err != nil {
		return false
	}
	local := t.In(loc)
	return s.Days.Has(local.Weekday()) && local.Hour() == s.StartTime.Hour && local.Minute() == s.StartTime.Minute
}

func (s Series) occurrenceAt(start, createdAt time.Time) Occurrence {
	return Occurrence{
		SeriesID:        s.ID,
		GroupID:         s.GroupID,
		Subject:         s.Subject,
		DurationMinutes: s.DurationMinutes,
		Notes:           s.Notes,
		StartAt:         start.UTC(),
		CreatedAt:       createdAt.UTC(),
	}
}

func (o Occurrence) EndAt() time.Time {
	return o.StartAt.Add(time.Duration(o.DurationMinutes) * time.Minute)
}

func (o Occurrence) IsStandalone() bool {
	return o.SeriesID == ""
}

// Matches reports whether o satisfies every non-zero field of the filter.
func (f OccurrenceFilter) Matches(o Occurrence) bool {
	if len(f.IDs) > 0 {
		found := false
		for _, id := range f.IDs {
			if id == o.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.SeriesID != "" && o.SeriesID != f.SeriesID {
		return false
	}
	if f.GroupID != "" && o.GroupID != f.GroupID {
		return false
	}
	if !f.From.IsZero() && o.StartAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !o.StartAt.Before(f.To) {
		return false
	}
	return true
}

func (f OccurrenceFilter) IsEmpty() bool {
	return len(f.IDs) == 0 && f.SeriesID == "" && f.GroupID == "" && f.From.IsZero() && f.To.IsZero()
}

// template parses the client-facing rule into series fields. The rule must have been validated.
func (r Rule) template(defaultTimezone string) (days WeekdaySet, start TimeOfDay, duration int, tz string, err error) {
	if days, err = ParseWeekdaySet(r.Days); err != nil {
		return
	}
	if start, err = ParseTimeOfDay(r.StartTime); err != nil {
		return
	}
	var end TimeOfDay
	if end, err = ParseTimeOfDay(r.EndTime); err != nil {
		return
	}
	duration = end.Minutes() - start.Minutes()
	tz = r.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	return
}

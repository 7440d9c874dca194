package icssvc

import (
	"io"

	ical "github.com/arran4/golang-ical"

	"github.com/trezcool/masomo-schedule/core"
	"github.com/trezcool/masomo-schedule/core/schedule"
)

const productID = "-//Masomo//Schedule//EN"

// Feed renders occurrences as an iCalendar document, one VEVENT per occurrence.
// Event UIDs are occurrence ids, so calendar clients keep tracking an occurrence until it is purged.
type Feed struct {
	conf *core.Config
}

func NewFeed(conf *core.Config) *Feed {
	return &Feed{conf: conf}
}

func (f *Feed) Calendar(name string, occs []schedule.Occurrence) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetName(name)
	cal.SetXWRCalName(name)

	for _, o := range occs {
		event := cal.AddEvent(o.ID + "@" + f.conf.Server.Host)
		event.SetCreatedTime(o.CreatedAt)
		event.SetDtStampTime(o.CreatedAt)
		event.SetStartAt(o.StartAt)
		event.SetEndAt(o.EndAt())
		event.SetSummary(o.Subject)
		if o.Notes != "" {
			event.SetDescription(o.Notes)
		}
		if o.SeriesID != "" {
			event.AddProperty(ical.ComponentProperty("X-MASOMO-SERIES-ID"), o.SeriesID)
		}
		event.AddProperty(ical.ComponentProperty("X-MASOMO-GROUP-ID"), o.GroupID)
	}
	return cal
}

func (f *Feed) Write(w io.Writer, name string, occs []schedule.Occurrence) error {
	_, err := io.WriteString(w, f.Calendar(name, occs).Serialize())
	return err
}

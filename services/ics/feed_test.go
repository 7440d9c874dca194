package icssvc

import (
	"bytes"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-schedule/core"
	"github.com/trezcool/masomo-schedule/core/schedule"
)

func TestFeed_Write(t *testing.T) {
	conf := &core.Config{Server: core.ServerConfig{Host: "masomo.test"}}
	start := time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)
	occs := []schedule.Occurrence{
		{ID: "o1", SeriesID: "s1", GroupID: "g1", Subject: "Maths", DurationMinutes: 90, Notes: "Room 4", StartAt: start, CreatedAt: start.Add(-5 * time.Hour)},
		{ID: "o2", GroupID: "g1", Subject: "Exam", DurationMinutes: 60, StartAt: start.AddDate(0, 0, 2), CreatedAt: start},
	}

	var buf bytes.Buffer
	require.NoError(t, NewFeed(conf).Write(&buf, "Group g1", occs))
	assert.True(t, strings.HasPrefix(buf.String(), "BEGIN:VCALENDAR"))

	cal, err := ical.ParseCalendar(&buf)
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 2)

	tests := []struct {
		name    string
		event   *ical.VEvent
		uid     string
		summary string
		end     time.Time
	}{
		{name: "series occurrence", event: events[0], uid: "o1@masomo.test", summary: "Maths", end: start.Add(90 * time.Minute)},
		{name: "standalone occurrence", event: events[1], uid: "o2@masomo.test", summary: "Exam", end: start.AddDate(0, 0, 2).Add(time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.uid, tt.event.GetProperty(ical.ComponentPropertyUniqueId).Value)
			assert.Equal(t, tt.summary, tt.event.GetProperty(ical.ComponentPropertySummary).Value)
			end, err := tt.event.GetEndAt()
			require.NoError(t, err)
			assert.True(t, end.Equal(tt.end), "end = %v, want %v", end, tt.end)
		})
	}

	assert.Equal(t, "s1", events[0].GetProperty(ical.ComponentProperty("X-MASOMO-SERIES-ID")).Value)
	assert.Nil(t, events[1].GetProperty(ical.ComponentProperty("X-MASOMO-SERIES-ID")))
}

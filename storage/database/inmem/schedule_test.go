package inmemdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-schedule/core"
	"github.com/trezcool/masomo-schedule/core/schedule"
)

var (
	ctx    = context.Background()
	monday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func seedSeries(t *testing.T, repo schedule.Repository, groupID, subject string, createdAt time.Time) schedule.Series {
	t.Helper()
	s, err := repo.CreateSeries(ctx, schedule.Series{
		GroupID:         groupID,
		Subject:         subject,
		Days:            schedule.NewWeekdaySet(time.Monday),
		StartTime:       schedule.TimeOfDay{Hour: 15},
		DurationMinutes: 60,
		Timezone:        "UTC",
		Version:         1,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	})
	require.NoError(t, err)
	return s
}

func TestScheduleRepository_RunInTx(t *testing.T) {
	db := NewDB()
	repo := NewScheduleRepository(db)
	s := seedSeries(t, repo, "g1", "Maths", monday)

	planned, err := schedule.Materialize(s, monday, 2, nil)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = repo.RunInTx(ctx, func(tx schedule.Repository) error {
		if _, err := tx.InsertOccurrences(ctx, planned); err != nil {
			return err
		}
		if err := tx.DeleteSeries(ctx, s.ID); err != nil {
			return err
		}
		// nested transactions join the outer one
		return tx.RunInTx(ctx, func(schedule.Repository) error { return boom })
	})
	assert.Equal(t, boom, err)

	got, err := repo.GetSeries(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s, got)
	occs, err := repo.QueryOccurrences(ctx, schedule.OccurrenceFilter{})
	require.NoError(t, err)
	assert.Empty(t, occs)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = repo.RunInTx(cancelled, func(schedule.Repository) error { return nil })
	assert.True(t, schedule.IsStorageFailure(err))
}

func TestScheduleRepository_UpdateSeries(t *testing.T) {
	repo := NewScheduleRepository(NewDB())
	s := seedSeries(t, repo, "g1", "Maths", monday)

	upd := s
	upd.GroupID = "hijack"
	upd.Subject = "Algebra"
	upd.Version = 2
	got, err := repo.UpdateSeries(ctx, upd, 1)
	require.NoError(t, err)
	assert.Equal(t, "g1", got.GroupID)
	assert.Equal(t, "Algebra", got.Subject)

	_, err = repo.UpdateSeries(ctx, upd, 1)
	assert.True(t, errors.Is(err, schedule.ErrConcurrentModification))

	upd.ID = "missing"
	_, err = repo.UpdateSeries(ctx, upd, 2)
	assert.True(t, errors.Is(err, schedule.ErrSeriesNotFound))
}

func TestScheduleRepository_QuerySeries(t *testing.T) {
	repo := NewScheduleRepository(NewDB())
	b := seedSeries(t, repo, "g2", "Biology", monday.Add(time.Hour))
	a := seedSeries(t, repo, "g1", "Algebra", monday.Add(2*time.Hour))
	c := seedSeries(t, repo, "g1", "Chemistry", monday)

	tests := []struct {
		name     string
		filter   schedule.SeriesFilter
		ordering []core.DBOrdering
		want     []schedule.Series
		wantErr  bool
	}{
		{name: "default order", want: []schedule.Series{c, b, a}},
		{name: "by subject desc", ordering: []core.DBOrdering{{Field: "subject"}}, want: []schedule.Series{c, b, a}},
		{name: "group then subject", ordering: []core.DBOrdering{{Field: "group_id", Ascending: true}, {Field: "subject", Ascending: true}}, want: []schedule.Series{a, c, b}},
		{name: "filtered", filter: schedule.SeriesFilter{GroupID: "g2"}, want: []schedule.Series{b}},
		{name: "unknown field", ordering: []core.DBOrdering{{Field: "password"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.QuerySeries(ctx, tt.filter, tt.ordering...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("QuerySeries() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestScheduleRepository_RunInTx_panic(t *testing.T) {
	db := NewDB()
	repo := NewScheduleRepository(db)

	assert.PanicsWithValue(t, "boom", func() {
		_ = repo.RunInTx(ctx, func(tx schedule.Repository) error {
			seedSeries(t, tx, "g1", "Maths", monday)
			panic("boom")
		})
	})

	// rolled back and unlocked
	series, err := repo.QuerySeries(ctx, schedule.SeriesFilter{})
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestScheduleRepository_occurrences(t *testing.T) {
	repo := NewScheduleRepository(NewDB())
	s := seedSeries(t, repo, "g1", "Maths", monday)

	planned, err := schedule.Materialize(s, monday, 3, nil)
	require.NoError(t, err)
	inserted, err := repo.InsertOccurrences(ctx, planned)
	require.NoError(t, err)
	require.Len(t, inserted, 3)

	t.Run("unique per series and start", func(t *testing.T) {
		dup := inserted[1]
		dup.ID = ""
		fresh := schedule.Occurrence{SeriesID: s.ID, GroupID: "g1", StartAt: monday.AddDate(0, 1, 0)}
		_, err := repo.InsertOccurrences(ctx, []schedule.Occurrence{fresh, dup})
		assert.True(t, errors.Is(err, schedule.ErrDuplicateOccurrence))

		// the batch is all or nothing
		occs, err := repo.QueryOccurrences(ctx, schedule.OccurrenceFilter{SeriesID: s.ID})
		require.NoError(t, err)
		assert.Len(t, occs, 3)
	})

	t.Run("standalone at a taken instant", func(t *testing.T) {
		alone := schedule.Occurrence{GroupID: "g1", Subject: "Exam", StartAt: inserted[0].StartAt}
		_, err := repo.InsertOccurrences(ctx, []schedule.Occurrence{alone, alone})
		assert.NoError(t, err)
	})

	t.Run("unknown series", func(t *testing.T) {
		_, err := repo.InsertOccurrences(ctx, []schedule.Occurrence{{SeriesID: "missing", StartAt: monday}})
		assert.True(t, schedule.IsStorageFailure(err))
	})

	t.Run("delete needs a filter", func(t *testing.T) {
		_, err := repo.DeleteOccurrences(ctx, schedule.OccurrenceFilter{})
		assert.True(t, schedule.IsStorageFailure(err))
	})

	t.Run("series cascade", func(t *testing.T) {
		require.NoError(t, repo.DeleteSeries(ctx, s.ID))
		_, err := repo.GetOccurrence(ctx, inserted[0].ID)
		assert.True(t, errors.Is(err, schedule.ErrOccurrenceNotFound))

		// standalone ones survive
		occs, err := repo.QueryOccurrences(ctx, schedule.OccurrenceFilter{GroupID: "g1"})
		require.NoError(t, err)
		assert.Len(t, occs, 2)
	})
}

func TestDB_InjectFault(t *testing.T) {
	db := NewDB()
	repo := NewScheduleRepository(db)
	db.InjectFault("CreateSeries", errors.New("disk full"))

	_, err := repo.CreateSeries(ctx, schedule.Series{GroupID: "g1"})
	assert.True(t, schedule.IsStorageFailure(err))

	// faults fire once
	_, err = repo.CreateSeries(ctx, schedule.Series{GroupID: "g1"})
	assert.NoError(t, err)

	db.Reset()
	got, err := repo.QuerySeries(ctx, schedule.SeriesFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-schedule/core"
	"github.com/trezcool/masomo-schedule/core/schedule"
)

type scheduleRepository struct {
	db   *DB
	inTx bool
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(db *DB) schedule.Repository {
	return &scheduleRepository{db: db}
}

func (repo *scheduleRepository) rlock() func() {
	if repo.inTx {
		return func() {}
	}
	repo.db.mutex.RLock()
	return repo.db.mutex.RUnlock
}

func (repo *scheduleRepository) lock() func() {
	if repo.inTx {
		return func() {}
	}
	repo.db.mutex.Lock()
	return repo.db.mutex.Unlock
}

// RunInTx holds the write lock for the whole of fn and restores the tables if fn fails or panics.
func (repo *scheduleRepository) RunInTx(ctx context.Context, fn func(tx schedule.Repository) error) error {
	if repo.inTx {
		return fn(repo)
	}
	if err := ctx.Err(); err != nil {
		return schedule.NewStorageError("RunInTx", err)
	}

	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	snap := repo.db.snapshot()
	defer func() {
		if p := recover(); p != nil {
			repo.db.restore(snap)
			panic(p)
		}
	}()
	if err := fn(&scheduleRepository{db: repo.db, inTx: true}); err != nil {
		repo.db.restore(snap)
		return err
	}
	return nil
}

func (repo *scheduleRepository) CreateSeries(_ context.Context, s schedule.Series) (schedule.Series, error) {
	defer repo.lock()()
	if err := repo.db.fault("CreateSeries"); err != nil {
		return schedule.Series{}, err
	}

	s.ID = uuid.New().String()
	repo.db.series[s.ID] = s
	return s, nil
}

func (repo *scheduleRepository) GetSeries(_ context.Context, id string) (schedule.Series, error) {
	defer repo.rlock()()

	if s, ok := repo.db.series[id]; ok {
		return s, nil
	}
	return schedule.Series{}, schedule.ErrSeriesNotFound
}

var seriesOrderings = map[string]func(a, b schedule.Series) int{
	"created_at": func(a, b schedule.Series) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"updated_at": func(a, b schedule.Series) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	"subject":    func(a, b schedule.Series) int { return strings.Compare(a.Subject, b.Subject) },
	"group_id":   func(a, b schedule.Series) int { return strings.Compare(a.GroupID, b.GroupID) },
}

func (repo *scheduleRepository) QuerySeries(_ context.Context, filter schedule.SeriesFilter, ordering ...core.DBOrdering) ([]schedule.Series, error) {
	defer repo.rlock()()

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: true}}
	}
	for _, ord := range ordering {
		if _, ok := seriesOrderings[ord.Field]; !ok {
			return nil, schedule.NewStorageError("QuerySeries", errors.Errorf("unknown ordering field %q", ord.Field))
		}
	}

	series := make([]schedule.Series, 0, len(repo.db.series))
	for _, s := range repo.db.series {
		if filter.GroupID != "" && s.GroupID != filter.GroupID {
			continue
		}
		series = append(series, s)
	}
	sort.Slice(series, func(i, j int) bool {
		for _, ord := range ordering {
			c := seriesOrderings[ord.Field](series[i], series[j])
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return series[i].ID < series[j].ID
	})
	return series, nil
}

func (repo *scheduleRepository) UpdateSeries(_ context.Context, s schedule.Series, expectedVersion int) (schedule.Series, error) {
	defer repo.lock()()
	if err := repo.db.fault("UpdateSeries"); err != nil {
		return schedule.Series{}, err
	}

	orig, ok := repo.db.series[s.ID]
	if !ok {
		return schedule.Series{}, schedule.ErrSeriesNotFound
	}
	if orig.Version != expectedVersion {
		return schedule.Series{}, schedule.ErrConcurrentModification
	}
	s.GroupID = orig.GroupID
	s.CreatedAt = orig.CreatedAt
	repo.db.series[s.ID] = s
	return s, nil
}

func (repo *scheduleRepository) DeleteSeries(_ context.Context, id string) error {
	defer repo.lock()()
	if err := repo.db.fault("DeleteSeries"); err != nil {
		return err
	}

	if _, ok := repo.db.series[id]; !ok {
		return schedule.ErrSeriesNotFound
	}
	for oid, o := range repo.db.occurrences {
		if o.SeriesID == id {
			delete(repo.db.occurrences, oid) // ON DELETE CASCADE
		}
	}
	delete(repo.db.series, id)
	return nil
}

func (repo *scheduleRepository) InsertOccurrences(_ context.Context, occs []schedule.Occurrence) ([]schedule.Occurrence, error) {
	defer repo.lock()()
	if err := repo.db.fault("InsertOccurrences"); err != nil {
		return nil, err
	}

	// enforce the unique (series_id, start_at) index before writing anything
	taken := make(map[string]struct{}, len(repo.db.occurrences)+len(occs))
	for _, o := range repo.db.occurrences {
		if !o.IsStandalone() {
			taken[occurrenceKey(o.SeriesID, o.StartAt)] = struct{}{}
		}
	}
	for _, o := range occs {
		if o.IsStandalone() {
			continue
		}
		if _, ok := repo.db.series[o.SeriesID]; !ok {
			return nil, schedule.NewStorageError("InsertOccurrences", errors.Errorf("series %s does not exist", o.SeriesID))
		}
		key := occurrenceKey(o.SeriesID, o.StartAt)
		if _, ok := taken[key]; ok {
			return nil, schedule.NewStorageError("InsertOccurrences", schedule.ErrDuplicateOccurrence)
		}
		taken[key] = struct{}{}
	}

	inserted := make([]schedule.Occurrence, 0, len(occs))
	for _, o := range occs {
		o.ID = uuid.New().String()
		o.StartAt = o.StartAt.UTC()
		repo.db.occurrences[o.ID] = o
		inserted = append(inserted, o)
	}
	return inserted, nil
}

func (repo *scheduleRepository) GetOccurrence(_ context.Context, id string) (schedule.Occurrence, error) {
	defer repo.rlock()()

	if o, ok := repo.db.occurrences[id]; ok {
		return o, nil
	}
	return schedule.Occurrence{}, schedule.ErrOccurrenceNotFound
}

func (repo *scheduleRepository) QueryOccurrences(_ context.Context, filter schedule.OccurrenceFilter) ([]schedule.Occurrence, error) {
	defer repo.rlock()()

	occs := make([]schedule.Occurrence, 0)
	for _, o := range repo.db.occurrences {
		if filter.Matches(o) {
			occs = append(occs, o)
		}
	}
	sort.Slice(occs, func(i, j int) bool {
		if occs[i].StartAt.Equal(occs[j].StartAt) {
			return occs[i].ID < occs[j].ID
		}
		return occs[i].StartAt.Before(occs[j].StartAt)
	})
	return occs, nil
}

func (repo *scheduleRepository) DeleteOccurrences(_ context.Context, filter schedule.OccurrenceFilter) (int, error) {
	defer repo.lock()()
	if err := repo.db.fault("DeleteOccurrences"); err != nil {
		return 0, err
	}
	if filter.IsEmpty() {
		return 0, schedule.NewStorageError("DeleteOccurrences", errors.New("refusing to delete without a filter"))
	}

	var n int
	for id, o := range repo.db.occurrences {
		if filter.Matches(o) {
			delete(repo.db.occurrences, id)
			n++
		}
	}
	return n, nil
}

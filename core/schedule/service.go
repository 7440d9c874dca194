package schedule

import (
	"context"
	"fmt"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-schedule/core"
)

type (
	// Repository is the series and occurrence store.
	// Not-found lookups return ErrSeriesNotFound / ErrOccurrenceNotFound; store failures return a *StorageError.
	Repository interface {
		// RunInTx runs fn against a repository bound to one transaction: fn's writes are committed
		// together when it returns nil and rolled back otherwise. Readers outside the transaction
		// never see a partial state.
		RunInTx(ctx context.Context, fn func(tx Repository) error) error

		// CreateSeries assigns the series ID.
		CreateSeries(ctx context.Context, s Series) (Series, error)
		GetSeries(ctx context.Context, id string) (Series, error)
		QuerySeries(ctx context.Context, filter SeriesFilter, ordering ...core.DBOrdering) ([]Series, error)
		// UpdateSeries saves s only if the stored version still equals expectedVersion,
		// otherwise it fails with ErrConcurrentModification.
		UpdateSeries(ctx context.Context, s Series, expectedVersion int) (Series, error)
		DeleteSeries(ctx context.Context, id string) error

		// InsertOccurrences assigns IDs. A second occurrence for the same (series, start) fails
		// with a *StorageError wrapping ErrDuplicateOccurrence.
		InsertOccurrences(ctx context.Context, occs []Occurrence) ([]Occurrence, error)
		GetOccurrence(ctx context.Context, id string) (Occurrence, error)
		// QueryOccurrences returns matches ordered by start time.
		QueryOccurrences(ctx context.Context, filter OccurrenceFilter) ([]Occurrence, error)
		// DeleteOccurrences refuses an empty filter.
		DeleteOccurrences(ctx context.Context, filter OccurrenceFilter) (int, error)
	}

	// DependencyChecker is populated by subsystems (attendance, ...) keying records on occurrence ids.
	DependencyChecker interface {
		HasDependents(ctx context.Context, occurrenceIDs []string) (bool, error)
	}

	Service interface {
		CreateSeries(ctx context.Context, now time.Time, ns NewSeries) (Materialization, error)
		EditSeries(ctx context.Context, now time.Time, id string, us UpdateSeries) (Materialization, error)
		DeleteSeries(ctx context.Context, id string, opts DeleteOptions) (int, error)
		GetSeries(ctx context.Context, id string) (Series, error)
		QuerySeries(ctx context.Context, filter SeriesFilter, ordering ...core.DBOrdering) ([]Series, error)
		ListOccurrences(ctx context.Context, groupID string, from, to time.Time) ([]Occurrence, error)
		Upcoming(ctx context.Context, now time.Time, within time.Duration) ([]Occurrence, error)
		CreateOccurrence(ctx context.Context, now time.Time, no NewOccurrence) (Occurrence, error)
		DeleteOccurrence(ctx context.Context, id string, force bool) error
		Refresh(ctx context.Context, now time.Time) (int, error)
		WindowWeeks() int
	}

	service struct {
		repo       Repository
		deps       DependencyChecker
		conf       *core.Config
		logger     core.Logger
		validate   *validator.Validate
		translator ut.Translator
		locks      *seriesLocks
	}
)

var _ Service = (*service)(nil)

// noDependents is used when no subsystem registered a DependencyChecker.
type noDependents struct{}

func (noDependents) HasDependents(context.Context, []string) (bool, error) { return false, nil }

func NewService(
	repo Repository,
	deps DependencyChecker,
	conf *core.Config,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
) Service {
	if deps == nil {
		deps = noDependents{}
	}
	return &service{
		repo:       repo,
		deps:       deps,
		conf:       conf,
		logger:     logger,
		validate:   validate,
		translator: translator,
		locks:      newSeriesLocks(),
	}
}

func (svc *service) WindowWeeks() int {
	if svc.conf.Schedule.WindowWeeks > 0 {
		return svc.conf.Schedule.WindowWeeks
	}
	return DefaultWindowWeeks
}

func (svc *service) validateStruct(s interface{}) error {
	return core.TranslateValidationErrors(svc.validate.Struct(s), svc.translator)
}

func (svc *service) CreateSeries(ctx context.Context, now time.Time, ns NewSeries) (Materialization, error) {
	ns.GroupID = core.CleanString(ns.GroupID)
	ns.Subject = core.CleanString(ns.Subject)
	if err := svc.validateStruct(ns); err != nil {
		return Materialization{}, err
	}
	days, start, duration, tz, err := ns.template(svc.conf.Schedule.Timezone)
	if err != nil {
		return Materialization{}, core.NewValidationError(err)
	}
	// a client zone passed validation already; only the configured default can fail here
	if _, err = LoadLocation(tz); err != nil {
		return Materialization{}, errors.Wrap(err, "loading default schedule timezone")
	}

	now = now.UTC()
	s := Series{
		GroupID:         ns.GroupID,
		Subject:         ns.Subject,
		Days:            days,
		StartTime:       start,
		DurationMinutes: duration,
		Notes:           ns.Notes,
		Timezone:        tz,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var res Materialization
	err = svc.repo.RunInTx(ctx, func(tx Repository) error {
		created, err := tx.CreateSeries(ctx, s)
		if err != nil {
			return errors.Wrap(err, "creating series")
		}
		planned, err := Materialize(created, now, svc.WindowWeeks(), nil)
		if err != nil {
			return errors.Wrap(err, "materializing occurrences")
		}
		inserted, err := tx.InsertOccurrences(ctx, planned)
		if err != nil {
			return errors.Wrap(err, "inserting occurrences")
		}
		res = Materialization{Series: created, Inserted: inserted}
		return nil
	})
	if err != nil {
		return Materialization{}, err
	}

	svc.logger.Info(
		fmt.Sprintf("series %s created with %d occurrences", res.Series.ID, len(res.Inserted)),
		map[string]interface{}{"group_id": res.Series.GroupID, "rule": res.Series.RRule()},
	)
	return res, nil
}

// EditSeries replaces the series' template. Occurrences starting before now are kept untouched; later ones
// are purged and regenerated from the new rule. All of it happens in one transaction.
func (svc *service) EditSeries(ctx context.Context, now time.Time, id string, us UpdateSeries) (Materialization, error) {
	us.Subject = core.CleanString(us.Subject)
	if err := svc.validateStruct(us); err != nil {
		return Materialization{}, err
	}

	unlock := svc.locks.lock(id)
	defer unlock()

	now = now.UTC()
	var res Materialization
	err := svc.repo.RunInTx(ctx, func(tx Repository) error {
		s, err := tx.GetSeries(ctx, id)
		if err != nil {
			return errors.Wrap(err, "getting series")
		}
		if us.Version != 0 && us.Version != s.Version {
			return ErrConcurrentModification
		}

		days, start, duration, tz, err := us.template(s.Timezone)
		if err != nil {
			return core.NewValidationError(err)
		}

		purged, err := tx.DeleteOccurrences(ctx, OccurrenceFilter{SeriesID: s.ID, From: now})
		if err != nil {
			return errors.Wrap(err, "purging future occurrences")
		}

		expected := s.Version
		s.Subject = us.Subject
		s.Days = days
		s.StartTime = start
		s.DurationMinutes = duration
		s.Notes = us.Notes
		s.Timezone = tz
		s.Version++
		s.UpdatedAt = now
		if s, err = tx.UpdateSeries(ctx, s, expected); err != nil {
			return errors.Wrap(err, "updating series")
		}

		existing, err := tx.QueryOccurrences(ctx, OccurrenceFilter{SeriesID: s.ID, From: now})
		if err != nil {
			return errors.Wrap(err, "querying remaining occurrences")
		}
		planned, err := Materialize(s, now, svc.WindowWeeks(), existing)
		if err != nil {
			return errors.Wrap(err, "materializing occurrences")
		}
		inserted, err := tx.InsertOccurrences(ctx, planned)
		if err != nil {
			return errors.Wrap(err, "inserting occurrences")
		}
		res = Materialization{Series: s, Inserted: inserted, Purged: purged}
		return nil
	})
	if err != nil {
		return Materialization{}, err
	}

	svc.logger.Info(
		fmt.Sprintf("series %s edited: %d purged, %d inserted", id, res.Purged, len(res.Inserted)),
		map[string]interface{}{"version": res.Series.Version, "rule": res.Series.RRule()},
	)
	return res, nil
}

// DeleteSeries removes the series and every one of its occurrences, past ones included.
func (svc *service) DeleteSeries(ctx context.Context, id string, opts DeleteOptions) (int, error) {
	unlock := svc.locks.lock(id)
	defer unlock()

	var purged int
	err := svc.repo.RunInTx(ctx, func(tx Repository) error {
		s, err := tx.GetSeries(ctx, id)
		if err != nil {
			return errors.Wrap(err, "getting series")
		}
		if opts.Version != 0 && opts.Version != s.Version {
			return ErrConcurrentModification
		}

		occs, err := tx.QueryOccurrences(ctx, OccurrenceFilter{SeriesID: s.ID})
		if err != nil {
			return errors.Wrap(err, "querying occurrences")
		}
		if !opts.Force && len(occs) > 0 {
			if err = svc.checkDependents(ctx, occs); err != nil {
				return err
			}
		}

		if purged, err = tx.DeleteOccurrences(ctx, OccurrenceFilter{SeriesID: s.ID}); err != nil {
			return errors.Wrap(err, "deleting occurrences")
		}
		return errors.Wrap(tx.DeleteSeries(ctx, s.ID), "deleting series")
	})
	if err != nil {
		return 0, err
	}

	svc.logger.Info(fmt.Sprintf("series %s deleted with %d occurrences", id, purged))
	return purged, nil
}

func (svc *service) checkDependents(ctx context.Context, occs []Occurrence) error {
	ids := make([]string, 0, len(occs))
	for _, o := range occs {
		ids = append(ids, o.ID)
	}
	has, err := svc.deps.HasDependents(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "checking dependents")
	}
	if has {
		return ErrHasDependents
	}
	return nil
}

func (svc *service) GetSeries(ctx context.Context, id string) (Series, error) {
	return svc.repo.GetSeries(ctx, id)
}

func (svc *service) QuerySeries(ctx context.Context, filter SeriesFilter, ordering ...core.DBOrdering) ([]Series, error) {
	return svc.repo.QuerySeries(ctx, filter, ordering...)
}

// ListOccurrences returns the group's occurrences starting in [from, to), standalone ones included.
func (svc *service) ListOccurrences(ctx context.Context, groupID string, from, to time.Time) ([]Occurrence, error) {
	if !to.IsZero() && !from.IsZero() && to.Before(from) {
		msg := "range end must not be before range start"
		return nil, core.NewValidationError(errors.New(msg), core.FieldError{Field: "to", Error: msg})
	}
	return svc.repo.QueryOccurrences(ctx, OccurrenceFilter{GroupID: groupID, From: from, To: to})
}

// Upcoming returns every occurrence starting in [now, now+within), for reminders.
func (svc *service) Upcoming(ctx context.Context, now time.Time, within time.Duration) ([]Occurrence, error) {
	if within <= 0 {
		within = svc.conf.Schedule.UpcomingWindow
	}
	now = now.UTC()
	return svc.repo.QueryOccurrences(ctx, OccurrenceFilter{From: now, To: now.Add(within)})
}

func (svc *service) CreateOccurrence(ctx context.Context, now time.Time, no NewOccurrence) (Occurrence, error) {
	no.GroupID = core.CleanString(no.GroupID)
	no.Subject = core.CleanString(no.Subject)
	if err := svc.validateStruct(no); err != nil {
		return Occurrence{}, err
	}

	inserted, err := svc.repo.InsertOccurrences(ctx, []Occurrence{Standalone(no, now)})
	if err != nil {
		return Occurrence{}, errors.Wrap(err, "inserting occurrence")
	}
	return inserted[0], nil
}

// DeleteOccurrence removes a standalone occurrence. Series occurrences only go away through the series.
func (svc *service) DeleteOccurrence(ctx context.Context, id string, force bool) error {
	return svc.repo.RunInTx(ctx, func(tx Repository) error {
		o, err := tx.GetOccurrence(ctx, id)
		if err != nil {
			return errors.Wrap(err, "getting occurrence")
		}
		if !o.IsStandalone() {
			return ErrOccurrenceOwnedBySeries
		}
		if !force {
			if err = svc.checkDependents(ctx, []Occurrence{o}); err != nil {
				return err
			}
		}
		_, err = tx.DeleteOccurrences(ctx, OccurrenceFilter{IDs: []string{o.ID}})
		return errors.Wrap(err, "deleting occurrence")
	})
}

// Refresh tops up every series so occurrences stay materialized windowWeeks ahead of now.
// Running it repeatedly with the same now inserts nothing new.
func (svc *service) Refresh(ctx context.Context, now time.Time) (int, error) {
	all, err := svc.repo.QuerySeries(ctx, SeriesFilter{})
	if err != nil {
		return 0, errors.Wrap(err, "querying series")
	}

	now = now.UTC()
	var total int
	for _, s := range all {
		n, err := svc.refreshSeries(ctx, now, s.ID)
		if err != nil {
			if errors.Is(err, ErrSeriesNotFound) { // deleted meanwhile
				continue
			}
			return total, errors.Wrapf(err, "refreshing series %s", s.ID)
		}
		total += n
	}

	svc.logger.Info(fmt.Sprintf("refreshed %d series: %d occurrences inserted", len(all), total))
	return total, nil
}

func (svc *service) refreshSeries(ctx context.Context, now time.Time, id string) (int, error) {
	unlock := svc.locks.lock(id)
	defer unlock()

	var n int
	err := svc.repo.RunInTx(ctx, func(tx Repository) error {
		s, err := tx.GetSeries(ctx, id)
		if err != nil {
			return err
		}
		existing, err := tx.QueryOccurrences(ctx, OccurrenceFilter{SeriesID: s.ID, From: now})
		if err != nil {
			return err
		}
		planned, err := Materialize(s, now, svc.WindowWeeks(), existing)
		if err != nil {
			return err
		}
		inserted, err := tx.InsertOccurrences(ctx, planned)
		n = len(inserted)
		return err
	})
	return n, err
}

package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-schedule/core"
	"github.com/trezcool/masomo-schedule/core/schedule"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

type (
	seriesRow struct {
		ID              string        `db:"id"`
		GroupID         string        `db:"group_id"`
		Subject         string        `db:"subject"`
		Days            pq.Int64Array `db:"days_of_week"`
		StartTime       string        `db:"start_time"`
		DurationMinutes int           `db:"duration_minutes"`
		Notes           null.String   `db:"notes"`
		Timezone        string        `db:"timezone"`
		Version         int           `db:"version"`
		CreatedAt       time.Time     `db:"created_at"`
		UpdatedAt       time.Time     `db:"updated_at"`
	}

	occurrenceRow struct {
		ID              string      `db:"id"`
		SeriesID        null.String `db:"series_id"`
		GroupID         string      `db:"group_id"`
		Subject         string      `db:"subject"`
		DurationMinutes int         `db:"duration_minutes"`
		Notes           null.String `db:"notes"`
		StartAt         time.Time   `db:"start_at"`
		CreatedAt       time.Time   `db:"created_at"`
	}
)

const (
	seriesColumns     = "id, group_id, subject, days_of_week, start_time, duration_minutes, notes, timezone, version, created_at, updated_at"
	occurrenceColumns = "id, series_id, group_id, subject, duration_minutes, notes, start_at, created_at"
)

var seriesOrderingColumns = map[string]bool{"created_at": true, "updated_at": true, "subject": true, "group_id": true}

type scheduleRepository struct {
	db   *sqlx.DB
	exec sqlx.ExtContext
	inTx bool
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(db *sqlx.DB) schedule.Repository {
	return &scheduleRepository{db: db, exec: db}
}

func toSeriesRow(s schedule.Series) seriesRow {
	return seriesRow{
		ID:              s.ID,
		GroupID:         s.GroupID,
		Subject:         s.Subject,
		Days:            pq.Int64Array(s.Days.Int64s()),
		StartTime:       s.StartTime.String(),
		DurationMinutes: s.DurationMinutes,
		Notes:           null.NewString(s.Notes, s.Notes != ""),
		Timezone:        s.Timezone,
		Version:         s.Version,
		CreatedAt:       s.CreatedAt.UTC(),
		UpdatedAt:       s.UpdatedAt.UTC(),
	}
}

func (row seriesRow) toSeries() (schedule.Series, error) {
	start, err := schedule.ParseTimeOfDay(row.StartTime)
	if err != nil {
		return schedule.Series{}, errors.Wrapf(err, "series %s", row.ID)
	}
	return schedule.Series{
		ID:              row.ID,
		GroupID:         row.GroupID,
		Subject:         row.Subject,
		Days:            schedule.WeekdaySetFromInt64s(row.Days),
		StartTime:       start,
		DurationMinutes: row.DurationMinutes,
		Notes:           row.Notes.String,
		Timezone:        row.Timezone,
		Version:         row.Version,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}, nil
}

func toOccurrenceRow(o schedule.Occurrence) occurrenceRow {
	return occurrenceRow{
		ID:              o.ID,
		SeriesID:        null.NewString(o.SeriesID, o.SeriesID != ""),
		GroupID:         o.GroupID,
		Subject:         o.Subject,
		DurationMinutes: o.DurationMinutes,
		Notes:           null.NewString(o.Notes, o.Notes != ""),
		StartAt:         o.StartAt.UTC(),
		CreatedAt:       o.CreatedAt.UTC(),
	}
}

func (row occurrenceRow) toOccurrence() schedule.Occurrence {
	return schedule.Occurrence{
		ID:              row.ID,
		SeriesID:        row.SeriesID.String,
		GroupID:         row.GroupID,
		Subject:         row.Subject,
		DurationMinutes: row.DurationMinutes,
		Notes:           row.Notes.String,
		StartAt:         row.StartAt.UTC(),
		CreatedAt:       row.CreatedAt.UTC(),
	}
}

// storageErr converts driver errors into schedule errors.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return schedule.NewStorageError(op, errors.Wrap(schedule.ErrDuplicateOccurrence, pqErr.Message))
		case pqForeignKeyViolation:
			return schedule.NewStorageError(op, errors.Wrap(schedule.ErrSeriesNotFound, pqErr.Message))
		}
	}
	return schedule.NewStorageError(op, errors.WithStack(err))
}

func (repo *scheduleRepository) RunInTx(ctx context.Context, fn func(tx schedule.Repository) error) error {
	if repo.inTx {
		return fn(repo)
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr("RunInTx", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err = fn(&scheduleRepository{db: repo.db, exec: tx, inTx: true}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return storageErr("RunInTx", tx.Commit())
}

func (repo *scheduleRepository) CreateSeries(ctx context.Context, s schedule.Series) (schedule.Series, error) {
	s.ID = uuid.New().String()
	q := "INSERT INTO schedule_series (" + seriesColumns + ") VALUES " +
		"(:id, :group_id, :subject, :days_of_week, :start_time, :duration_minutes, :notes, :timezone, :version, :created_at, :updated_at)"
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, q, toSeriesRow(s)); err != nil {
		return schedule.Series{}, storageErr("CreateSeries", err)
	}
	return s, nil
}

// GetSeries locks the row for the rest of the transaction when called inside one.
func (repo *scheduleRepository) GetSeries(ctx context.Context, id string) (schedule.Series, error) {
	if _, err := uuid.Parse(id); err != nil {
		return schedule.Series{}, schedule.ErrSeriesNotFound
	}

	q := "SELECT " + seriesColumns + " FROM schedule_series WHERE id = $1"
	if repo.inTx {
		q += " FOR UPDATE"
	}
	var row seriesRow
	if err := sqlx.GetContext(ctx, repo.exec, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return schedule.Series{}, schedule.ErrSeriesNotFound
		}
		return schedule.Series{}, storageErr("GetSeries", err)
	}
	s, err := row.toSeries()
	return s, storageErr("GetSeries", err)
}

func (repo *scheduleRepository) QuerySeries(ctx context.Context, filter schedule.SeriesFilter, ordering ...core.DBOrdering) ([]schedule.Series, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.GroupID != "" {
		args = append(args, filter.GroupID)
		conds = append(conds, fmt.Sprintf("group_id = $%d", len(args)))
	}

	q := "SELECT " + seriesColumns + " FROM schedule_series"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	orderBy := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if !seriesOrderingColumns[ord.Field] {
			return nil, schedule.NewStorageError("QuerySeries", errors.Errorf("unknown ordering field %q", ord.Field))
		}
		orderBy = append(orderBy, ord.String())
	}
	if len(orderBy) == 0 {
		orderBy = append(orderBy, "created_at ASC")
	}
	q += " ORDER BY " + strings.Join(append(orderBy, "id ASC"), ", ")

	var rows []seriesRow
	if err := sqlx.SelectContext(ctx, repo.exec, &rows, q, args...); err != nil {
		return nil, storageErr("QuerySeries", err)
	}
	series := make([]schedule.Series, 0, len(rows))
	for _, row := range rows {
		s, err := row.toSeries()
		if err != nil {
			return nil, storageErr("QuerySeries", err)
		}
		series = append(series, s)
	}
	return series, nil
}

func (repo *scheduleRepository) UpdateSeries(ctx context.Context, s schedule.Series, expectedVersion int) (schedule.Series, error) {
	row := toSeriesRow(s)
	res, err := repo.exec.ExecContext(
		ctx,
		`UPDATE schedule_series
		SET subject = $1, days_of_week = $2, start_time = $3, duration_minutes = $4, notes = $5,
			timezone = $6, version = $7, updated_at = $8
		WHERE id = $9 AND version = $10`,
		row.Subject, row.Days, row.StartTime, row.DurationMinutes, row.Notes,
		row.Timezone, row.Version, row.UpdatedAt,
		row.ID, expectedVersion,
	)
	if err != nil {
		return schedule.Series{}, storageErr("UpdateSeries", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return schedule.Series{}, storageErr("UpdateSeries", err)
	}
	if n == 0 {
		// distinguish a stale version from a missing row
		if _, err = repo.GetSeries(ctx, s.ID); err != nil {
			return schedule.Series{}, err
		}
		return schedule.Series{}, schedule.ErrConcurrentModification
	}
	return repo.GetSeries(ctx, s.ID)
}

func (repo *scheduleRepository) DeleteSeries(ctx context.Context, id string) error {
	res, err := repo.exec.ExecContext(ctx, "DELETE FROM schedule_series WHERE id = $1", id)
	if err != nil {
		return storageErr("DeleteSeries", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return storageErr("DeleteSeries", err)
	} else if n == 0 {
		return schedule.ErrSeriesNotFound
	}
	return nil
}

func (repo *scheduleRepository) InsertOccurrences(ctx context.Context, occs []schedule.Occurrence) ([]schedule.Occurrence, error) {
	inserted := make([]schedule.Occurrence, 0, len(occs))
	if len(occs) == 0 {
		return inserted, nil
	}

	q := "INSERT INTO schedule_occurrence (" + occurrenceColumns + ") VALUES " +
		"(:id, :series_id, :group_id, :subject, :duration_minutes, :notes, :start_at, :created_at)"
	rows := make([]occurrenceRow, 0, len(occs))
	for _, o := range occs {
		o.ID = uuid.New().String()
		o.StartAt = o.StartAt.UTC()
		rows = append(rows, toOccurrenceRow(o))
		inserted = append(inserted, o)
	}
	// batch insert; sqlx expands the VALUES clause for slices
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, q, rows); err != nil {
		return nil, storageErr("InsertOccurrences", err)
	}
	return inserted, nil
}

func (repo *scheduleRepository) GetOccurrence(ctx context.Context, id string) (schedule.Occurrence, error) {
	if _, err := uuid.Parse(id); err != nil {
		return schedule.Occurrence{}, schedule.ErrOccurrenceNotFound
	}

	var row occurrenceRow
	err := sqlx.GetContext(ctx, repo.exec, &row, "SELECT "+occurrenceColumns+" FROM schedule_occurrence WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return schedule.Occurrence{}, schedule.ErrOccurrenceNotFound
		}
		return schedule.Occurrence{}, storageErr("GetOccurrence", err)
	}
	return row.toOccurrence(), nil
}

func occurrenceWhere(filter schedule.OccurrenceFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if len(filter.IDs) > 0 {
		// ids that are not uuids cannot match any row
		ids := make([]string, 0, len(filter.IDs))
		for _, id := range filter.IDs {
			if _, err := uuid.Parse(id); err == nil {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			add("id = ANY($%d::uuid[])", pq.StringArray(ids))
		} else {
			conds = append(conds, "FALSE")
		}
	}
	if filter.SeriesID != "" {
		if _, err := uuid.Parse(filter.SeriesID); err == nil {
			add("series_id = $%d::uuid", filter.SeriesID)
		} else {
			conds = append(conds, "FALSE")
		}
	}
	if filter.GroupID != "" {
		add("group_id = $%d", filter.GroupID)
	}
	if !filter.From.IsZero() {
		add("start_at >= $%d", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		add("start_at < $%d", filter.To.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (repo *scheduleRepository) QueryOccurrences(ctx context.Context, filter schedule.OccurrenceFilter) ([]schedule.Occurrence, error) {
	where, args := occurrenceWhere(filter)
	q := "SELECT " + occurrenceColumns + " FROM schedule_occurrence" + where + " ORDER BY start_at ASC, id ASC"

	var rows []occurrenceRow
	if err := sqlx.SelectContext(ctx, repo.exec, &rows, q, args...); err != nil {
		return nil, storageErr("QueryOccurrences", err)
	}
	occs := make([]schedule.Occurrence, 0, len(rows))
	for _, row := range rows {
		occs = append(occs, row.toOccurrence())
	}
	return occs, nil
}

func (repo *scheduleRepository) DeleteOccurrences(ctx context.Context, filter schedule.OccurrenceFilter) (int, error) {
	where, args := occurrenceWhere(filter)
	if where == "" {
		return 0, schedule.NewStorageError("DeleteOccurrences", errors.New("refusing to delete without a filter"))
	}

	res, err := repo.exec.ExecContext(ctx, "DELETE FROM schedule_occurrence"+where, args...)
	if err != nil {
		return 0, storageErr("DeleteOccurrences", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("DeleteOccurrences", err)
	}
	return int(n), nil
}

package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-schedule/core"
	"github.com/trezcool/masomo-schedule/core/schedule"
	logsvc "github.com/trezcool/masomo-schedule/services/logger"
	inmemdb "github.com/trezcool/masomo-schedule/storage/database/inmem"
)

// Monday is 2024-01-01, a Monday, at midnight UTC.
var Monday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func NewConfig(windowWeeks int) *core.Config {
	return &core.Config{
		AppName:  "Masomo Schedule",
		Env:      "test",
		TestMode: true,
		Server: core.ServerConfig{
			Host:           "masomo.test",
			DisableReqLogs: true,
			JWTSecretKey:   "test-secret",
		},
		Schedule: core.ScheduleConfig{
			WindowWeeks:    windowWeeks,
			Timezone:       "UTC",
			RefreshCron:    "@every 1h",
			UpcomingWindow: 24 * time.Hour,
		},
	}
}

func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	return logger
}

func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	schedule.InitValidators(validate, translator)
	return validate, translator
}

// Env bundles a schedule service with its in-memory store.
type Env struct {
	Conf *core.Config
	DB   *inmemdb.DB
	Repo schedule.Repository
	Svc  schedule.Service
}

func NewEnv(windowWeeks int, deps schedule.DependencyChecker) *Env {
	conf := NewConfig(windowWeeks)
	db := inmemdb.NewDB()
	repo := inmemdb.NewScheduleRepository(db)
	validate, translator := NewValidator()
	return &Env{
		Conf: conf,
		DB:   db,
		Repo: repo,
		Svc:  schedule.NewService(repo, deps, conf, NewLogger(conf), validate, translator),
	}
}

func NewSeriesInput(groupID, subject, start, end string, days ...string) schedule.NewSeries {
	return schedule.NewSeries{
		GroupID: groupID,
		Rule: schedule.Rule{
			Subject:   subject,
			Days:      days,
			StartTime: start,
			EndTime:   end,
		},
	}
}

func CreateSeries(t *testing.T, svc schedule.Service, now time.Time, ns schedule.NewSeries) schedule.Materialization {
	t.Helper()
	res, err := svc.CreateSeries(context.Background(), now, ns)
	if err != nil {
		t.Fatalf("CreateSeries() failed: %v", err)
	}
	return res
}

func StartTimes(occs []schedule.Occurrence) []time.Time {
	starts := make([]time.Time, 0, len(occs))
	for _, o := range occs {
		starts = append(starts, o.StartAt)
	}
	return starts
}

// DependentsFunc adapts a func to schedule.DependencyChecker.
type DependentsFunc func(ctx context.Context, ids []string) (bool, error)

func (f DependentsFunc) HasDependents(ctx context.Context, ids []string) (bool, error) {
	return f(ctx, ids)
}

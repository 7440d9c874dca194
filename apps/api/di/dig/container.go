package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/masomo-schedule/apps/api/echo"
	"github.com/trezcool/masomo-schedule/core"
	"github.com/trezcool/masomo-schedule/core/schedule"
	icssvc "github.com/trezcool/masomo-schedule/services/ics"
	logsvc "github.com/trezcool/masomo-schedule/services/logger"
	refreshsvc "github.com/trezcool/masomo-schedule/services/refresher"
	"github.com/trezcool/masomo-schedule/storage/database"
	sqlxrepos "github.com/trezcool/masomo-schedule/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(context.Background(), conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

// newDependencyChecker wires the dependents hook when another subsystem's table is configured.
func newDependencyChecker(conf *core.Config, db *sqlx.DB) schedule.DependencyChecker {
	if conf.Schedule.DependentsTable == "" {
		return nil
	}
	return sqlxrepos.NewDependentsChecker(db, conf.Schedule.DependentsTable, conf.Schedule.DependentsColumn)
}

func newValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	schedule.InitValidators(validate, translator)
	return validate, translator
}

func newServer(conf *core.Config, logger core.Logger, svc schedule.Service, feed *icssvc.Feed) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:        conf,
		Logger:      logger,
		ScheduleSvc: svc,
		Feed:        feed,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(sqlxrepos.NewScheduleRepository))
	must(c.Provide(newDependencyChecker))
	must(c.Provide(newValidator))
	must(c.Provide(schedule.NewService))
	must(c.Provide(icssvc.NewFeed))
	must(c.Provide(refreshsvc.NewRefresher))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}

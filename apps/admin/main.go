package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-schedule/core"
	"github.com/trezcool/masomo-schedule/core/schedule"
	logsvc "github.com/trezcool/masomo-schedule/services/logger"
	"github.com/trezcool/masomo-schedule/storage/database"
	sqlxrepos "github.com/trezcool/masomo-schedule/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	if err := database.CreateIfNotExist(context.Background(), conf); err != nil {
		logger.Fatal(err.Error(), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(err.Error(), err)
	}

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	schedule.InitValidators(validate, translator)

	var deps schedule.DependencyChecker
	if conf.Schedule.DependentsTable != "" {
		deps = sqlxrepos.NewDependentsChecker(db, conf.Schedule.DependentsTable, conf.Schedule.DependentsColumn)
	}

	// start CLI
	cmd := commandLine{
		db:  db.DB,
		svc: schedule.NewService(sqlxrepos.NewScheduleRepository(db), deps, conf, logger, validate, translator),
		out: os.Stdout,
	}
	err = cmd.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			log.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

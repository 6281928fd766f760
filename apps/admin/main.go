package main

import (
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	dig_container "github.com/trezcool/bursar/apps/api/di/dig"
	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/ledger"
	"github.com/trezcool/bursar/core/user"
)

func main() {
	c := dig_container.New()

	var exitCode int
	err := c.Invoke(func(
		conf *core.Config,
		logger core.Logger,
		sqlDB *sqlx.DB, // nil with in-memory storage
		validate *validator.Validate,
		translator ut.Translator,
		usrSvc *user.Service,
		ledgerSvc *ledger.Service,
	) {
		core.InitValidators(validate, translator)
		user.InitValidators(validate, translator)

		cli := commandLine{
			conf:      conf,
			usrSvc:    usrSvc,
			ledgerSvc: ledgerSvc,
			out:       os.Stdout,
		}
		if sqlDB != nil {
			defer func() { _ = sqlDB.Close() }()
			cli.db = sqlDB.DB
		}

		if err := cli.run(os.Args); err != nil {
			if err != errHelp {
				logger.Error("admin command failed: "+err.Error(), err)
			}
			exitCode = 1
		}
	})
	if err != nil {
		panic(err)
	}
	os.Exit(exitCode)
}

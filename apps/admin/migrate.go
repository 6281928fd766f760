package main

import (
	"errors"

	"github.com/pressly/goose/v3"

	appfs "github.com/trezcool/bursar/fs"
	"github.com/trezcool/bursar/storage/database"
)

var (
	gooseRunFunc = goose.Run // mockable

	errNoDatabase = errors.New("migrations need a database, storage is in memory")
)

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	if err := database.SetupMigrations(); err != nil {
		return err
	}

	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.db, appfs.MigrationsDir, arguments...)
}

package main

import (
	"github.com/pkg/errors"

	"github.com/trezcool/kaushal/storage/database"
)

var gooseRunFunc = database.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	if cli.stores.DB == nil {
		return errors.Errorf("engine %q has no migrations", cli.conf.Database.Engine)
	}
	return gooseRunFunc(cli.stores.DB, cli.conf.Database.Engine, args[0], args[1:]...)
}

package main

import (
	"context"
	"fmt"

	"github.com/trezcool/kaushal/core/analysis"
)

// smokeTest checks the database answers and reports the size of every analysis table.
func (cli *commandLine) smokeTest(ctx context.Context) error {
	if err := cli.stores.Ping(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "database %s: ok\n", cli.conf.Database.Engine)
	for _, screen := range analysis.Screens() {
		n, err := cli.analysisSvc.Count(ctx, screen)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "%-18s %d rows\n", screen.ID, n)
	}
	fmt.Fprintf(cli.out, "institutions       %d records\n", cli.dir.Len())
	return nil
}

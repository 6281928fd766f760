package main

import (
	"context"
	"fmt"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/ledger"
	"github.com/trezcool/bursar/core/user"
)

func (cli *commandLine) generateFees(classID, year string, due core.Date) error {
	cols, err := cli.ledgerSvc.GenerateForClass(context.Background(), user.System, ledger.ClassGeneration{
		ClassID:      classID,
		AcademicYear: year,
		DueDate:      due,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d fee entries generated\n", len(cols))
	return nil
}

func (cli *commandLine) markOverdue(asOf core.Date) error {
	count, err := cli.ledgerSvc.MarkOverdue(context.Background(), user.System, asOf.Time)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d fee entries marked overdue\n", count)
	return nil
}

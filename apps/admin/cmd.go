package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/ledger"
	"github.com/trezcool/bursar/core/user"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf      *core.Config
	db        *sql.DB // nil with in-memory storage
	usrSvc    *user.Service
	ledgerSvc *ledger.Service
	out       io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                                      - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  adduser -name NAME -username USERNAME [-email EMAIL] -roles ROLES - create a user, or replace the roles of an existing one")
	fmt.Fprintln(cli.out, "  token -username USERNAME|EMAIL                              - mint an API token for a user")
	fmt.Fprintln(cli.out, "  generatefees -class CLASS_ID -year YYYY-YYYY -due YYYY-MM-DD - generate the fee ledger of a class")
	fmt.Fprintln(cli.out, "  markoverdue [-asof YYYY-MM-DD]                              - flag unpaid fees past their due date")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserRoles := addUserCmd.String("roles", "", "Comma separated roles, e.g. admin:bursar.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenUname := tokenCmd.String("username", "", "The user's username or email.")

	generateCmd := flag.NewFlagSet("generatefees", flag.ContinueOnError)
	generateClass := generateCmd.String("class", "", "The class ID.")
	generateYear := generateCmd.String("year", "", "The academic year, e.g. 2024-2025.")
	generateDue := generateCmd.String("due", "", "The due date of the generated fees.")

	overdueCmd := flag.NewFlagSet("markoverdue", flag.ContinueOnError)
	overdueAsOf := overdueCmd.String("asof", "", "Fees due before this day are flagged. Defaults to today.")

	for _, fs := range []*flag.FlagSet{addUserCmd, tokenCmd, generateCmd, overdueCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserRoles == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, splitRoles(*addUserRoles))

	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenUname == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenUname)

	case "generatefees":
		if err := generateCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *generateClass == "" || *generateYear == "" || *generateDue == "" {
			generateCmd.Usage()
			return errHelp
		}
		due, err := core.ParseDate(*generateDue)
		if err != nil {
			return fmt.Errorf("invalid due date %q, expected YYYY-MM-DD", *generateDue)
		}
		return cli.generateFees(*generateClass, *generateYear, due)

	case "markoverdue":
		if err := overdueCmd.Parse(args[2:]); err != nil {
			return err
		}
		asOf := core.NewDate(ledger.NowFunc())
		if *overdueAsOf != "" {
			var err error
			if asOf, err = core.ParseDate(*overdueAsOf); err != nil {
				return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", *overdueAsOf)
			}
		}
		return cli.markOverdue(asOf)

	default:
		cli.printUsage()
		return errHelp
	}
}

func splitRoles(s string) []string {
	roles := make([]string, 0)
	for _, role := range strings.Split(s, ",") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}

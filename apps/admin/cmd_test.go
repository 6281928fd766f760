package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/bursar/core/fee"
	"github.com/trezcool/bursar/core/ledger"
	"github.com/trezcool/bursar/core/user"
	"github.com/trezcool/bursar/tests"
)

func setup(t *testing.T) (*commandLine, *testutil.Env, *bytes.Buffer) {
	env := testutil.Setup(t)
	out := new(bytes.Buffer)
	return &commandLine{
		conf:      env.Conf,
		usrSvc:    env.UserSvc,
		ledgerSvc: env.LedgerSvc,
		out:       out,
	}, env, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()

	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	t.Run("in-memory storage", func(t *testing.T) {
		err := cli.run([]string{"admin", "migrate", "up"})
		assert.Equal(t, errNoDatabase, err)
	})

	// sql.Open does not connect
	db, err := sql.Open("postgres", "postgres://localhost/bursar_test?sslmode=disable")
	require.NoError(t, err)
	defer db.Close()
	cli.db = db

	var gotDir string
	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		gotDir = dir
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
	assert.Equal(t, "migrations", gotDir)
}

func Test_commandLine_addUser(t *testing.T) {
	cli, env, out := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no roles", args: []string{"adduser", "-username", "bursar"}, wantErr: errHelp},
		{name: "create", args: []string{"adduser", "-name", "The Bursar", "-username", "bursar", "-email", "bursar@test.cd", "-roles", "admin:bursar"}},
		{name: "promote", args: []string{"adduser", "-username", "bursar@test.cd", "-roles", "admin:bursar, admin:principal"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	usr, err := env.UserSvc.GetByUsernameOrEmail(context.Background(), "bursar")
	require.NoError(t, err)
	assert.Equal(t, "The Bursar", usr.Name)
	assert.Equal(t, []string{user.RoleAdminBursar, user.RoleAdminPrincipal}, usr.Roles)
	assert.Contains(t, out.String(), "created user bursar")
	assert.Contains(t, out.String(), "updated user bursar")

	t.Run("unknown role", func(t *testing.T) {
		err := cli.run([]string{"admin", "adduser", "-username", "bursar", "-roles", "admin:janitor"})
		assert.Error(t, err)
	})
}

func Test_commandLine_token(t *testing.T) {
	cli, env, out := setup(t)

	testutil.CreateUser(t, env.Users, "Bursar", "bursar", "bursar@test.cd", []string{user.RoleAdminBursar}, true)
	testutil.CreateUser(t, env.Users, "N Dog", "ndog", "ndog@test.cd", []string{user.RoleAdminBursar}, false)

	tests := []cliTest{
		{name: "no username", args: []string{"token"}, wantErr: errHelp},
		{name: "unknown user", args: []string{"token", "-username", "lol"}, wantErr: user.ErrNotFound},
		{name: "deactivated user", args: []string{"token", "-username", "ndog"}, wantErrStr: "user ndog is deactivated"},
		{name: "valid user", args: []string{"token", "-username", "bursar@test.cd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	tok := strings.TrimSpace(out.String())
	assert.Len(t, strings.Split(tok, "."), 3)
}

func Test_commandLine_ledger(t *testing.T) {
	cli, env, out := setup(t)

	class := testutil.CreateClass(t, env.Students, "Grade 1", "A")
	testutil.CreateStudent(t, env.Students, "S001", "Amani", class.ID, false, false)
	testutil.CreateStudent(t, env.Students, "S002", "Baraka", class.ID, true, false)
	testutil.CreateStructure(t, env.Structures, class.ID, fee.TypeTuition, "500", true, "2024-2025")
	testutil.CreateStructure(t, env.Structures, class.ID, fee.TypeTransport, "150", false, "2024-2025")

	tests := []cliTest{
		{name: "missing flags", args: []string{"generatefees", "-class", class.ID}, wantErr: errHelp},
		{name: "bad due date", args: []string{"generatefees", "-class", class.ID, "-year", "2024-2025", "-due", "soon"}, wantErrStr: `invalid due date "soon", expected YYYY-MM-DD`},
		{name: "generate", args: []string{"generatefees", "-class", class.ID, "-year", "2024-2025", "-due", "2024-09-30"}},
		{name: "bad as-of date", args: []string{"markoverdue", "-asof", "yesterday"}, wantErrStr: `invalid date "yesterday", expected YYYY-MM-DD`},
		{name: "mark overdue", args: []string{"markoverdue", "-asof", "2024-10-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	assert.Contains(t, out.String(), "3 fee entries generated")
	assert.Contains(t, out.String(), "3 fee entries marked overdue")

	cols, err := env.LedgerSvc.Query(context.Background(), &ledger.QueryFilter{ClassID: class.ID}, nil)
	require.NoError(t, err)
	require.Len(t, cols, 3)
	for _, col := range cols {
		assert.Equal(t, ledger.StatusOverdue, col.Status)
		assert.Equal(t, time.September, col.DueDate.Month())
	}
}

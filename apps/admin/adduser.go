package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	echoapi "github.com/trezcool/bursar/apps/api/echo"
	"github.com/trezcool/bursar/core/user"
)

// addUser creates a user.User, or replaces the roles of the existing one
func (cli *commandLine) addUser(name, uname, email string, roles []string) error {
	ctx := context.Background()

	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	switch errors.Cause(err) {
	case nil:
		if usr, err = cli.usrSvc.SetRoles(ctx, usr.Username, roles); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "updated user %s %v\n", usr.Username, usr.Roles)
		return nil
	case user.ErrNotFound:
	default:
		return err
	}

	if name == "" {
		name = uname
	}
	usr, err = cli.usrSvc.Create(ctx, user.NewUser{Name: name, Username: uname, Email: email, Roles: roles})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created user %s (%s) %v\n", usr.Username, usr.ID, usr.Roles)
	return nil
}

func (cli *commandLine) token(uname string) error {
	usr, err := cli.usrSvc.GetByUsernameOrEmail(context.Background(), uname)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return errors.Errorf("user %s is deactivated", usr.Username)
	}

	tok, err := echoapi.GenerateToken(cli.conf, echoapi.GetUserClaims(cli.conf, usr))
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, tok)
	return nil
}

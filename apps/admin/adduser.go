package main

import (
	"context"
	"fmt"

	"github.com/trezcool/kaushal/core/user"
)

// addUser updates or creates a user.User. Admins get every role, others are district officers.
func (cli *commandLine) addUser(ctx context.Context, nu user.NewUser, isAdmin bool) error {
	if isAdmin {
		nu.Roles = user.AllRoles
	} else {
		nu.Roles = user.OfficerRoles
	}
	usr, created, err := cli.usrSvc.Upsert(ctx, nu)
	if err != nil {
		return err
	}
	verb := "updated"
	if created {
		verb = "created"
	}
	fmt.Fprintf(cli.out, "user %s %s (%s)\n", usr.Username, verb, usr.ID)
	return nil
}

package main

import (
	"context"
	"fmt"

	"github.com/trezcool/kaushal/core/user"
)

func (cli *commandLine) resetPassword(ctx context.Context, uname, pwd string) error {
	usr, err := cli.usrSvc.ResetPassword(ctx, uname, user.SetPassword{Password: pwd, PasswordConfirm: pwd})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "password of %s changed\n", usr.Username)
	return nil
}

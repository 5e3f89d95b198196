package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/trezcool/kaushal/core"
	"github.com/trezcool/kaushal/core/analysis"
	"github.com/trezcool/kaushal/core/institution"
	"github.com/trezcool/kaushal/core/user"
	"github.com/trezcool/kaushal/storage"
)

var (
	readPasswordFunc = term.ReadPassword                             // mockable
	nowFunc          = func() time.Time { return time.Now().UTC() } // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf        *core.Config
	stores      *storage.Stores
	usrSvc      *user.Service
	analysisSvc *analysis.Service
	dir         *institution.Directory
	out         io.Writer
	// newS3Writer builds the report sink of `audit -s3`.
	newS3Writer func(ctx context.Context, bucket, prefix string) (institution.ReportWriter, error)
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                          - run database migrations (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  adduser -username U -email E -district D [-admin] - create or update a user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL          - reset user's password")
	fmt.Fprintln(cli.out, "  audit [-out DIR | -s3 BUCKET/PREFIX]            - write the institution audit reports")
	fmt.Fprintln(cli.out, "  smoketest                                       - check the database and count stored rows")
}

func (cli *commandLine) readPassword(prompt string) (string, error) {
	fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	return string(pwd), err
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserCmd.SetOutput(cli.out)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserDistrict := addUserCmd.String("district", "", "The district the user reports for.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant every role.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordCmd.SetOutput(cli.out)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	auditCmd := flag.NewFlagSet("audit", flag.ContinueOnError)
	auditCmd.SetOutput(cli.out)
	auditOut := auditCmd.String("out", "", "Directory the reports are written to (default: working directory).")
	auditS3 := auditCmd.String("s3", "", "Upload the reports to BUCKET/PREFIX instead.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(ctx, user.NewUser{
			Name:            *addUserName,
			Username:        *addUserUname,
			Email:           *addUserEmail,
			DistrictID:      *addUserDistrict,
			Password:        pwd,
			PasswordConfirm: pwd,
		}, *addUserAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *resetPasswordUname, pwd)

	case "audit":
		if err := auditCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *auditOut != "" && *auditS3 != "" {
			auditCmd.Usage()
			return errHelp
		}
		return cli.audit(ctx, *auditOut, *auditS3)

	case "smoketest":
		return cli.smokeTest(ctx)

	default:
		cli.printUsage()
		return errHelp
	}
}

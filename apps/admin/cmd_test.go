package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kaushal/core"
	"github.com/trezcool/kaushal/core/analysis"
	"github.com/trezcool/kaushal/core/institution"
	"github.com/trezcool/kaushal/core/user"
	"github.com/trezcool/kaushal/storage"
	testutil "github.com/trezcool/kaushal/tests"
)

const goodPwd = "Tr41n!ng-0k"

type memWriter struct {
	files map[string][]byte
}

func (w *memWriter) WriteReport(_ context.Context, name string, data []byte) error {
	w.files[name] = data
	return nil
}

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	t.Helper()
	conf := core.NewTestConfig()
	conf.Database.Engine = "sqlite"
	conf.Database.Path = ":memory:"

	stores, err := storage.Open(conf, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.Close() })

	dir, err := institution.LoadEmbedded()
	require.NoError(t, err)

	validate, translator := testutil.NewValidator()
	out := new(bytes.Buffer)
	return &commandLine{
		conf:        conf,
		stores:      stores,
		usrSvc:      user.NewService(stores.Users, validate, translator),
		analysisSvc: analysis.NewService(stores.Analysis, validate, translator),
		dir:         dir,
		out:         out,
	}, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			} else if tt.wantErr != nil || tt.wantErrStr != "" {
				t.Errorf("cli.run() succeeded, want an error")
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, out := setup(t)
	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	})
	assert.Contains(t, out.String(), "resetpassword -username USERNAME|EMAIL")
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	origRun := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = origRun })
	gooseRunFunc = func(db *sqlx.DB, engine, command string, args ...string) error {
		if engine != "sqlite" {
			return fmt.Errorf("unexpected engine %q", engine)
		}
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
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	runCLITests(t, cli, tests)
}

func Test_commandLine_migrateForReal(t *testing.T) {
	cli, _ := setup(t)
	runCLITests(t, cli, []cliTest{
		{name: "status", args: []string{"migrate", "status"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "up again", args: []string{"migrate", "up"}},
	})

	cli.stores = &storage.Stores{}
	cli.conf.Database.Engine = "memory"
	runCLITests(t, cli, []cliTest{
		{name: "memory engine", args: []string{"migrate", "up"}, wantErrStr: `engine "memory" has no migrations`},
	})
}

func withPassword(t *testing.T, pwd string) {
	t.Helper()
	origRead := readPasswordFunc
	t.Cleanup(func() { readPasswordFunc = origRead })
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
}

func Test_commandLine_addUser(t *testing.T) {
	ctx := context.Background()
	cli, out := setup(t)

	t.Run("usage", func(t *testing.T) {
		withPassword(t, "")
		runCLITests(t, cli, []cliTest{
			{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
			{name: "no email", args: []string{"adduser", "-username", "officer"}, wantErr: errHelp},
			{name: "no password", args: []string{"adduser", "-username", "officer", "-email", "officer@test.in"}, wantErr: errHelp},
		})
	})

	withPassword(t, goodPwd)
	runCLITests(t, cli, []cliTest{
		{name: "create officer", args: []string{"adduser", "-username", "Officer", "-email", "officer@test.in", "-district", "ranchi"}},
		{name: "create admin", args: []string{"adduser", "-username", "chief", "-email", "chief@test.in", "-district", "state", "-admin"}},
		{name: "update officer", args: []string{"adduser", "-username", "officer", "-email", "officer2@test.in", "-district", "dumka", "-name", "Asha"}},
	})
	assert.Contains(t, out.String(), "user officer created")
	assert.Contains(t, out.String(), "user officer updated")

	officer, err := cli.usrSvc.GetByUsernameOrEmail(ctx, "officer")
	require.NoError(t, err)
	assert.Equal(t, "Asha", officer.Name)
	assert.Equal(t, "officer2@test.in", officer.Email)
	assert.Equal(t, "dumka", officer.DistrictID)
	assert.Equal(t, user.OfficerRoles, officer.Roles)
	assert.NoError(t, officer.CheckPassword(goodPwd))

	chief, err := cli.usrSvc.GetByUsernameOrEmail(ctx, "chief")
	require.NoError(t, err)
	assert.True(t, chief.IsAdmin())

	t.Run("weak password", func(t *testing.T) {
		withPassword(t, "password")
		err := cli.run([]string{"admin", "adduser", "-username", "weak", "-email", "weak@test.in", "-district", "ranchi"})
		require.Error(t, err)
		_, err = cli.usrSvc.GetByUsernameOrEmail(ctx, "weak")
		assert.Equal(t, user.ErrNotFound, err)
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	ctx := context.Background()
	cli, _ := setup(t)

	usr := testutil.CreateUser(t, cli.stores.Users, "User", "awe", "awe@test.in", "ranchi", "Old-pa55word", nil, true)
	origRead := readPasswordFunc
	t.Cleanup(func() { readPasswordFunc = origRead })

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: goodPwd}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: goodPwd}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "N3w+" + goodPwd}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshedUsr, err := cli.usrSvc.GetByID(ctx, usr.ID)
				if err != nil {
					t.Fatalf("GetByID() failed, %v", err)
				}
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
				usr = refreshedUsr
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_audit(t *testing.T) {
	now := time.Date(2024, 8, 1, 10, 0, 0, 0, time.UTC)
	origNow := nowFunc
	t.Cleanup(func() { nowFunc = origNow })
	nowFunc = func() time.Time { return now }

	t.Run("to a directory", func(t *testing.T) {
		cli, out := setup(t)
		dir := filepath.Join(t.TempDir(), "reports")
		require.NoError(t, cli.run([]string{"admin", "audit", "-out", dir}))

		for _, name := range []string{"categories", "missing-data", "mismatches"} {
			data, err := os.ReadFile(filepath.Join(dir, name+"-report.json"))
			require.NoError(t, err)
			assert.Contains(t, string(data), "2024-08-01T10:00:00Z")
			assert.Contains(t, out.String(), "wrote "+dir+"/"+name+"-report.json")
		}
	})

	t.Run("to s3", func(t *testing.T) {
		cli, out := setup(t)
		w := &memWriter{files: make(map[string][]byte)}
		var gotBucket, gotPrefix string
		cli.newS3Writer = func(_ context.Context, bucket, prefix string) (institution.ReportWriter, error) {
			gotBucket, gotPrefix = bucket, prefix
			return w, nil
		}
		require.NoError(t, cli.run([]string{"admin", "audit", "-s3", "s3://kaushal/audits/2024"}))
		assert.Equal(t, "kaushal", gotBucket)
		assert.Equal(t, "audits/2024", gotPrefix)
		assert.Len(t, w.files, 3)
		assert.Contains(t, out.String(), "wrote s3://kaushal/audits/2024/mismatches-report.json")
	})

	t.Run("usage", func(t *testing.T) {
		cli, _ := setup(t)
		runCLITests(t, cli, []cliTest{
			{name: "both sinks", args: []string{"audit", "-out", "x", "-s3", "bucket"}, wantErr: errHelp},
			{name: "bad flag", args: []string{"audit", "-lol"}, wantErr: errHelp},
		})
	})
}

func Test_commandLine_smokeTest(t *testing.T) {
	ctx := context.Background()
	cli, out := setup(t)

	screen, err := analysis.LookupScreen("scheme")
	require.NoError(t, err)
	row := analysis.NewRow()
	row.Keys["scheme_name"] = "PMKVY"
	_, err = cli.analysisSvc.AddRow(ctx, screen, analysis.Scope{DistrictID: "ranchi", Period: "2024-25"}, row)
	require.NoError(t, err)

	require.NoError(t, cli.run([]string{"admin", "smoketest"}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "database sqlite: ok", lines[0])
	assert.Equal(t, "scheme             1 rows", lines[1])
	assert.Equal(t, "sector             0 rows", lines[2])
	assert.Equal(t, "institutions       10 records", lines[6])
}

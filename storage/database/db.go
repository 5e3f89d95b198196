package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // "pgx" driver
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // "postgres" driver
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // "sqlite" driver

	"github.com/trezcool/kaushal/core"
	appfs "github.com/trezcool/kaushal/fs"
)

const (
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite"
	EngineMemory   = "memory"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

func postgresURL(dbName string, conf *core.Config) string {
	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(conf.Database.User, conf.Database.Password),
		Host:     net.JoinHostPort(conf.Database.Host, conf.Database.Port),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func postgresDriver(conf *core.Config) string {
	if conf.Database.Driver == "pgx" {
		return "pgx"
	}
	return "postgres"
}

// Open connects to the configured SQL database and waits for it to answer.
func Open(conf *core.Config) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch conf.Database.Engine {
	case EnginePostgres:
		db, err = sqlx.Open(postgresDriver(conf), postgresURL(conf.Database.Name, conf))
	case EngineSQLite:
		db, err = OpenSQLite(conf.Database.Path)
	default:
		return nil, errors.Errorf("engine %q has no SQL database", conf.Database.Engine)
	}
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens a SQLite database file, or a private in-memory database for ":memory:".
func OpenSQLite(path string) (*sqlx.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer; an in-memory database lives as long as its connection
	db.SetMaxOpenConns(1)
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sql.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

// Ping checks the connection once.
func Ping(ctx context.Context, db *sqlx.DB) error {
	return errors.Wrap(db.PingContext(ctx), "pinging database")
}

func createDB(db *sql.DB, conf *core.Config) error {
	// check if DB exists
	var exists bool
	rows, err := db.Query("SELECT true FROM pg_database WHERE datname = $1", conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err = rows.Scan(&exists); err != nil {
			return errors.Wrap(err, "checking DB")
		}
	}
	if err = rows.Err(); err != nil {
		return errors.Wrap(err, "checking DB")
	}

	// create DB if not exist
	if !exists {
		if _, err = db.Exec(fmt.Sprintf("CREATE DATABASE %q", conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the configured PostgreSQL database, connecting through the maintenance database.
// It is a no-op for other engines.
func CreateIfNotExist(conf *core.Config) error {
	if conf.Database.Engine != EnginePostgres {
		return nil
	}
	db, err := sql.Open(postgresDriver(conf), postgresURL("postgres", conf))
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	if err = ping(db); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	return createDB(db, conf)
}

func dialect(engine string) (string, string) {
	if engine == EngineSQLite {
		return "sqlite3", "migrations/sqlite"
	}
	return "postgres", "migrations/postgres"
}

// Migrate applies every pending migration of the engine.
func Migrate(db *sqlx.DB, engine string) error {
	return Run(db, engine, "up")
}

// Run executes a goose command ("up", "down", "status", ...) against the engine's migrations.
func Run(db *sqlx.DB, engine, command string, args ...string) error {
	d, dir := dialect(engine)
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect(d); err != nil {
		return errors.Wrap(err, "setting migration dialect")
	}
	if err := goose.Run(command, db.DB, dir, args...); err != nil {
		return errors.Wrapf(err, "running migration %q", command)
	}
	return nil
}

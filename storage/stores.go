// Package storage wires the repositories of the configured database engine.
package storage

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/kaushal/core"
	"github.com/trezcool/kaushal/core/analysis"
	"github.com/trezcool/kaushal/core/user"
	"github.com/trezcool/kaushal/storage/database"
	dummydb "github.com/trezcool/kaushal/storage/database/dummy"
	sqlxrepos "github.com/trezcool/kaushal/storage/database/sqlx"
)

type Stores struct {
	Users    user.Repository
	Analysis analysis.Repository
	// DB is nil for the memory engine.
	DB *sqlx.DB
}

// Open connects the configured engine. With migrate, pending migrations are applied first.
func Open(conf *core.Config, migrate bool) (*Stores, error) {
	if conf.Database.Engine == database.EngineMemory {
		db, err := dummydb.Open()
		if err != nil {
			return nil, errors.Wrap(err, "opening memory database")
		}
		return &Stores{Users: dummydb.NewUserRepository(db), Analysis: dummydb.NewAnalysisRepository(db)}, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err = database.Migrate(db, conf.Database.Engine); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &Stores{
		Users:    sqlxrepos.NewUserRepository(db),
		Analysis: sqlxrepos.NewAnalysisRepository(db),
		DB:       db,
	}, nil
}

// Ping checks that the database answers. The memory engine always does.
func (s *Stores) Ping(ctx context.Context) error {
	if s.DB == nil {
		return nil
	}
	return database.Ping(ctx, s.DB)
}

func (s *Stores) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

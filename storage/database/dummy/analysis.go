package dummydb

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kaushal/core/analysis"
)

var errDuplicateKey = errors.New("duplicate key value violates unique constraint")

type analysisRepository struct {
	db *analysisTables
}

var _ analysis.Repository = (*analysisRepository)(nil) // interface compliance check

func NewAnalysisRepository(db *DB) analysis.Repository {
	return &analysisRepository{db: db.analysis}
}

func (repo *analysisRepository) query(screen *analysis.Screen, scope analysis.Scope) []analysis.Row {
	var rows []analysis.Row
	for _, rec := range repo.db.tables[screen.Table] {
		if rec.scope == scope {
			rows = append(rows, rec.row.Clone())
		}
	}
	return rows
}

func (repo *analysisRepository) QueryRows(_ context.Context, screen *analysis.Screen, scope analysis.Scope) ([]analysis.Row, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(screen, scope), nil
}

func (repo *analysisRepository) SaveRows(_ context.Context, screen *analysis.Screen, scope analysis.Scope, rows []analysis.Row) ([]analysis.Row, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// work on a copy so a failing row leaves the table untouched
	orig := repo.db.tables[screen.Table]
	table := make([]*analysisRecord, 0, len(orig)+len(rows))
	for _, rec := range orig {
		cp := *rec
		table = append(table, &cp)
	}
	pk := repo.db.pkCount

	find := func(match func(*analysisRecord) bool) int {
		for i, rec := range table {
			if rec.scope == scope && match(rec) {
				return i
			}
		}
		return -1
	}

	for _, row := range rows {
		row = row.Clone()
		key := screen.NaturalKey(row.Keys)

		if row.ID.Valid {
			idx := find(func(rec *analysisRecord) bool { return rec.row.ID.Int64 == row.ID.Int64 })
			if idx < 0 {
				return nil, errors.Wrapf(analysis.ErrNotFound, "updating %s row %d", screen.Table, row.ID.Int64)
			}
			if other := find(func(rec *analysisRecord) bool { return screen.NaturalKey(rec.row.Keys) == key }); other >= 0 && other != idx {
				return nil, errors.Wrapf(errDuplicateKey, "updating %s row %d", screen.Table, row.ID.Int64)
			}
			table[idx].row = row
			continue
		}

		// upsert on the natural key
		if idx := find(func(rec *analysisRecord) bool { return screen.NaturalKey(rec.row.Keys) == key }); idx >= 0 {
			row.ID = table[idx].row.ID
			table[idx].row = row
			continue
		}
		pk++
		row.ID = null.Int64From(pk)
		table = append(table, &analysisRecord{scope: scope, row: row})
	}

	repo.db.tables[screen.Table] = table
	repo.db.pkCount = pk
	return repo.query(screen, scope), nil
}

func (repo *analysisRepository) DeleteRow(_ context.Context, screen *analysis.Screen, scope analysis.Scope, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	table := repo.db.tables[screen.Table]
	for i, rec := range table {
		if rec.scope == scope && rec.row.ID.Int64 == id {
			repo.db.tables[screen.Table] = append(table[:i:i], table[i+1:]...)
			return nil
		}
	}
	return analysis.ErrNotFound
}

func (repo *analysisRepository) CountRows(_ context.Context, screen *analysis.Screen) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.db.tables[screen.Table]), nil
}

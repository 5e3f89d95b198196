package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kaushal/core/analysis"
)

type analysisRepository struct {
	db *sqlx.DB
}

var _ analysis.Repository = (*analysisRepository)(nil) // interface compliance check

func NewAnalysisRepository(db *sqlx.DB) analysis.Repository {
	return &analysisRepository{db: db}
}

func fieldNames(flds []analysis.Field) []string {
	names := make([]string, len(flds))
	for i, f := range flds {
		names[i] = f.Name
	}
	return names
}

func selectQuery(screen *analysis.Screen) string {
	cols := append([]string{"id"}, fieldNames(screen.Fields)...)
	return fmt.Sprintf(
		"SELECT %s FROM %s WHERE district_id = ? AND time_period = ? ORDER BY id",
		strings.Join(cols, ", "), screen.Table,
	)
}

func upsertQuery(screen *analysis.Screen) string {
	cols := append([]string{"district_id", "time_period", "natural_key"}, fieldNames(screen.Fields)...)
	params := make([]string, 0, len(cols)+2)
	for _, c := range cols {
		params = append(params, ":"+c)
	}
	sets := make([]string, 0, len(screen.Fields)+1)
	for _, f := range screen.Fields {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", f.Name, f.Name))
	}
	sets = append(sets, "updated_at = excluded.updated_at")

	return fmt.Sprintf(
		"INSERT INTO %s (%s, created_at, updated_at) VALUES (%s, :now, :now) "+
			"ON CONFLICT (district_id, time_period, natural_key) DO UPDATE SET %s",
		screen.Table, strings.Join(cols, ", "), strings.Join(params, ", "), strings.Join(sets, ", "),
	)
}

func updateQuery(screen *analysis.Screen) string {
	sets := []string{"natural_key = :natural_key"}
	for _, f := range screen.Fields {
		sets = append(sets, fmt.Sprintf("%s = :%s", f.Name, f.Name))
	}
	sets = append(sets, "updated_at = :now")
	return fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = :id AND district_id = :district_id AND time_period = :time_period",
		screen.Table, strings.Join(sets, ", "),
	)
}

func rowArgs(screen *analysis.Screen, scope analysis.Scope, row analysis.Row, now time.Time) map[string]interface{} {
	args := map[string]interface{}{
		"district_id": scope.DistrictID,
		"time_period": scope.Period,
		"natural_key": screen.NaturalKey(row.Keys),
		"now":         now,
	}
	if row.ID.Valid {
		args["id"] = row.ID.Int64
	}
	for _, f := range screen.Fields {
		switch f.Kind {
		case analysis.KeyField:
			args[f.Name] = row.Keys[f.Name]
		case analysis.CountField:
			args[f.Name] = int64(row.Measures[f.Name])
		default:
			args[f.Name] = row.Measures[f.Name]
		}
	}
	return args
}

func queryRows(ctx context.Context, q sqlx.ExtContext, screen *analysis.Screen, scope analysis.Scope) ([]analysis.Row, error) {
	rows, err := q.QueryxContext(ctx, q.Rebind(selectQuery(screen)), scope.DistrictID, scope.Period)
	if err != nil {
		return nil, errors.Wrapf(err, "selecting %s", screen.Table)
	}
	defer func() { _ = rows.Close() }()

	var out []analysis.Row
	for rows.Next() {
		var (
			id   int64
			dest = make([]interface{}, 0, len(screen.Fields)+1)
			keys = make([]string, len(screen.Fields))
			nums = make([]float64, len(screen.Fields))
		)
		dest = append(dest, &id)
		for i, f := range screen.Fields {
			if f.IsKey() {
				dest = append(dest, &keys[i])
			} else {
				dest = append(dest, &nums[i])
			}
		}
		if err = rows.Scan(dest...); err != nil {
			return nil, errors.Wrapf(err, "scanning %s", screen.Table)
		}

		row := analysis.NewRow()
		row.ID = null.Int64From(id)
		for i, f := range screen.Fields {
			if f.IsKey() {
				row.Keys[f.Name] = keys[i]
			} else {
				row.Measures[f.Name] = nums[i]
			}
		}
		out = append(out, row)
	}
	return out, errors.Wrapf(rows.Err(), "iterating %s", screen.Table)
}

func (repo *analysisRepository) QueryRows(ctx context.Context, screen *analysis.Screen, scope analysis.Scope) ([]analysis.Row, error) {
	return queryRows(ctx, repo.db, screen, scope)
}

func (repo *analysisRepository) SaveRows(ctx context.Context, screen *analysis.Screen, scope analysis.Scope, rows []analysis.Row) (saved []analysis.Row, err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	upsert, update := upsertQuery(screen), updateQuery(screen)
	for _, row := range rows {
		args := rowArgs(screen, scope, row, now)
		if !row.ID.Valid {
			if _, err = tx.NamedExecContext(ctx, upsert, args); err != nil {
				return nil, errors.Wrapf(err, "upserting %s", screen.Table)
			}
			continue
		}

		var res sql.Result
		if res, err = tx.NamedExecContext(ctx, update, args); err != nil {
			return nil, errors.Wrapf(err, "updating %s row %d", screen.Table, row.ID.Int64)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			err = errors.Wrapf(analysis.ErrNotFound, "updating %s row %d", screen.Table, row.ID.Int64)
			return nil, err
		}
	}

	if saved, err = queryRows(ctx, tx, screen, scope); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing transaction")
	}
	return saved, nil
}

func (repo *analysisRepository) DeleteRow(ctx context.Context, screen *analysis.Screen, scope analysis.Scope, id int64) error {
	q := repo.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ? AND district_id = ? AND time_period = ?", screen.Table))
	res, err := repo.db.ExecContext(ctx, q, id, scope.DistrictID, scope.Period)
	if err != nil {
		return errors.Wrapf(err, "deleting %s row %d", screen.Table, id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return analysis.ErrNotFound
	}
	return nil
}

func (repo *analysisRepository) CountRows(ctx context.Context, screen *analysis.Screen) (int, error) {
	var n int
	if err := repo.db.GetContext(ctx, &n, fmt.Sprintf("SELECT COUNT(*) FROM %s", screen.Table)); err != nil {
		return 0, errors.Wrapf(err, "counting %s", screen.Table)
	}
	return n, nil
}

package sqlxrepos

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kaushal/core/analysis"
	"github.com/trezcool/kaushal/storage/database"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, database.EngineSQLite))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func schemeRow(name string, maleTrained float64) analysis.Row {
	row := analysis.NewRow()
	row.Keys["scheme_name"] = name
	row.Measures["male_trained"] = maleTrained
	return row
}

func TestAnalysisRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAnalysisRepository(newTestDB(t))
	screen, err := analysis.LookupScreen("scheme")
	require.NoError(t, err)

	ranchi := analysis.Scope{DistrictID: "ranchi", Period: "2024-25"}
	dhanbad := analysis.Scope{DistrictID: "dhanbad", Period: "2024-25"}

	rows, err := repo.QueryRows(ctx, screen, ranchi)
	require.NoError(t, err)
	assert.Empty(t, rows)

	// insert
	saved, err := repo.SaveRows(ctx, screen, ranchi, []analysis.Row{
		screen.Normalize(schemeRow("PMKVY", 10)),
		screen.Normalize(schemeRow("NULM", 4)),
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.True(t, saved[0].ID.Valid)
	assert.Equal(t, "PMKVY", saved[0].Keys["scheme_name"])
	assert.Equal(t, float64(10), saved[0].Measures["male_trained"])
	assert.Equal(t, float64(0), saved[0].Measures["female_trained"])
	pmkvyID := saved[0].ID

	// upsert on the case-insensitive natural key
	saved, err = repo.SaveRows(ctx, screen, ranchi, []analysis.Row{screen.Normalize(schemeRow("pmkvy ", 12))})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, pmkvyID, saved[0].ID)
	assert.Equal(t, float64(12), saved[0].Measures["male_trained"])

	// update by id may edit the key
	edited := saved[1]
	edited.Keys["scheme_name"] = "DAY-NULM"
	saved, err = repo.SaveRows(ctx, screen, ranchi, []analysis.Row{edited})
	require.NoError(t, err)
	assert.Equal(t, "DAY-NULM", saved[1].Keys["scheme_name"])
	assert.Equal(t, edited.ID, saved[1].ID)

	// other districts are isolated
	saved, err = repo.SaveRows(ctx, screen, dhanbad, []analysis.Row{screen.Normalize(schemeRow("PMKVY", 1))})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.NotEqual(t, pmkvyID, saved[0].ID)

	n, err := repo.CountRows(ctx, screen)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// delete
	assert.Equal(t, analysis.ErrNotFound, repo.DeleteRow(ctx, screen, dhanbad, pmkvyID.Int64))
	require.NoError(t, repo.DeleteRow(ctx, screen, ranchi, pmkvyID.Int64))
	rows, err = repo.QueryRows(ctx, screen, ranchi)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "DAY-NULM", rows[0].Keys["scheme_name"])
}

func TestAnalysisRepositorySaveIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := NewAnalysisRepository(newTestDB(t))
	screen, _ := analysis.LookupScreen("scheme")
	scope := analysis.Scope{DistrictID: "ranchi", Period: "2024-25"}

	saved, err := repo.SaveRows(ctx, screen, scope, []analysis.Row{screen.Normalize(schemeRow("PMKVY", 10))})
	require.NoError(t, err)

	unknown := screen.Normalize(schemeRow("NULM", 3))
	unknown.ID = null.Int64From(saved[0].ID.Int64 + 100)
	_, err = repo.SaveRows(ctx, screen, scope, []analysis.Row{screen.Normalize(schemeRow("DDU-GKY", 1)), unknown})
	require.Error(t, err)
	assert.Equal(t, analysis.ErrNotFound, errors.Cause(err))

	// editing a key onto another row's key violates the unique index
	other, err := repo.SaveRows(ctx, screen, scope, []analysis.Row{screen.Normalize(schemeRow("NULM", 3))})
	require.NoError(t, err)
	clash := other[1]
	clash.Keys["scheme_name"] = "pmkvy"
	_, err = repo.SaveRows(ctx, screen, scope, []analysis.Row{clash})
	require.Error(t, err)

	rows, err := repo.QueryRows(ctx, screen, scope)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "PMKVY", rows[0].Keys["scheme_name"])
	assert.Equal(t, "NULM", rows[1].Keys["scheme_name"])
}

func TestAnalysisRepositoryCurrency(t *testing.T) {
	ctx := context.Background()
	repo := NewAnalysisRepository(newTestDB(t))
	screen, _ := analysis.LookupScreen("cost-category")
	scope := analysis.Scope{DistrictID: "ranchi", Period: "2023-24"}

	row := analysis.NewRow()
	row.Keys["cost_category"] = "Boarding"
	row.Measures["released_amount"] = 1250.5
	row.Measures["utilized_amount"] = 99.99

	saved, err := repo.SaveRows(ctx, screen, scope, []analysis.Row{screen.Normalize(row)})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, map[string]string{"cost_category": "Boarding", "scheme_name": ""}, saved[0].Keys)
	assert.Equal(t, map[string]float64{
		"sanctioned_amount": 0,
		"released_amount":   1250.5,
		"utilized_amount":   99.99,
	}, saved[0].Measures)
}

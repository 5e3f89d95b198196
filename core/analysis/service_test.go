package analysis_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kaushal/core"
	"github.com/trezcool/kaushal/core/analysis"
	"github.com/trezcool/kaushal/core/reconcile"
	dummydb "github.com/trezcool/kaushal/storage/database/dummy"
	testutil "github.com/trezcool/kaushal/tests"
)

var scope = analysis.Scope{DistrictID: "ranchi", Period: "2024-25"}

func newService(t *testing.T) *analysis.Service {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)
	validate, translator := testutil.NewValidator()
	return analysis.NewService(dummydb.NewAnalysisRepository(db), validate, translator)
}

func scheme(t *testing.T) *analysis.Screen {
	t.Helper()
	s, err := analysis.LookupScreen("scheme")
	require.NoError(t, err)
	return s
}

func schemeRow(name string, male, female float64) analysis.Row {
	row := analysis.NewRow()
	row.Keys["scheme_name"] = name
	row.Measures["male_trained"] = male
	row.Measures["female_trained"] = female
	return row
}

func TestServiceScope(t *testing.T) {
	svc := newService(t)
	_, err := svc.Fetch(context.Background(), scheme(t), analysis.Scope{DistrictID: " ", Period: "2024-26"})
	require.Error(t, err)
	verrs, ok := err.(validator.ValidationErrors)
	require.True(t, ok, "got %T", err)
	assert.Len(t, verrs, 2)
}

func TestServiceAddRow(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	screen := scheme(t)

	_, err := svc.AddRow(ctx, screen, scope, schemeRow("   ", 1, 1))
	require.Error(t, err)
	verr, ok := err.(*core.ValidationError)
	require.True(t, ok, "got %T", err)
	assert.Equal(t, map[string]string{"scheme_name": "this field is required"}, verr.FieldMap())

	row, err := svc.AddRow(ctx, screen, scope, schemeRow(" PMKVY ", 10, 5))
	require.NoError(t, err)
	assert.True(t, row.IsPersisted())
	assert.Equal(t, "PMKVY", row.Keys["scheme_name"])

	// same natural key: updates the stored row
	again, err := svc.AddRow(ctx, screen, scope, schemeRow("pmkvy", 11, 5))
	require.NoError(t, err)
	assert.Equal(t, row.ID, again.ID)

	rows, err := svc.Fetch(ctx, screen, scope)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, float64(11), rows[0].Measures["male_trained"])
}

func TestServiceSave(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	screen := scheme(t)

	_, err := svc.Save(ctx, screen, scope, []analysis.Row{schemeRow("PMKVY", 1, 1), schemeRow("", 1, 1)})
	verr, ok := err.(*core.ValidationError)
	require.True(t, ok, "got %T", err)
	assert.Equal(t, map[string]string{"rows[1].scheme_name": "this field is required"}, verr.FieldMap())

	saved, err := svc.Save(ctx, screen, scope, []analysis.Row{schemeRow("PMKVY", 1, 1), schemeRow("NULM", 2, 2)})
	require.NoError(t, err)
	require.Len(t, saved, 2)

	saved[0].Measures["target"] = 100
	saved, err = svc.Save(ctx, screen, scope, saved)
	require.NoError(t, err)
	assert.Equal(t, float64(100), saved[0].Measures["target"])

	ghost := schemeRow("DDU-GKY", 0, 0)
	ghost.ID = null.Int64From(99)
	_, err = svc.Save(ctx, screen, scope, []analysis.Row{ghost})
	assert.Equal(t, analysis.ErrNotFound, errors.Cause(err))
}

func TestServiceImport(t *testing.T) {
	ctx := context.Background()
	screen := scheme(t)
	csvData := "Scheme,Male Trained\npmkvy,12\nNULM,8\n,3\n"

	t.Run("against stored rows, no commit", func(t *testing.T) {
		svc := newService(t)
		_, err := svc.Save(ctx, screen, scope, []analysis.Row{schemeRow("PMKVY", 10, 5)})
		require.NoError(t, err)

		res, err := svc.Import(ctx, screen, scope, analysis.ImportRequest{File: strings.NewReader(csvData)})
		require.NoError(t, err)
		assert.Equal(t, reconcile.Result{Updated: 1, Appended: 1, Skipped: 1}, res.Result)
		assert.Equal(t, analysis.PolicyOverwrite, res.Policy)
		assert.False(t, res.Committed)
		require.Len(t, res.Rows, 2)
		assert.Equal(t, "PMKVY", res.Rows[0].Keys["scheme_name"])
		assert.Equal(t, float64(12), res.Rows[0].Measures["male_trained"])
		assert.Equal(t, float64(0), res.Rows[0].Measures["female_trained"])
		assert.False(t, res.Rows[1].IsPersisted())

		stored, _ := svc.Fetch(ctx, screen, scope)
		assert.Equal(t, float64(10), stored[0].Measures["male_trained"], "nothing is stored without commit")
	})

	t.Run("partial policy, commit", func(t *testing.T) {
		svc := newService(t)
		_, err := svc.Save(ctx, screen, scope, []analysis.Row{schemeRow("PMKVY", 10, 5)})
		require.NoError(t, err)

		res, err := svc.Import(ctx, screen, scope, analysis.ImportRequest{
			File:   strings.NewReader(csvData),
			Policy: analysis.PolicyPartial,
			Commit: true,
		})
		require.NoError(t, err)
		assert.True(t, res.Committed)
		require.Len(t, res.Rows, 2)
		assert.Equal(t, float64(5), res.Rows[0].Measures["female_trained"])
		assert.True(t, res.Rows[1].IsPersisted())
	})

	t.Run("against the unsaved table", func(t *testing.T) {
		svc := newService(t)
		current := []analysis.Row{schemeRow("Scheme A", 1, 1)}
		res, err := svc.Import(ctx, screen, scope, analysis.ImportRequest{
			File:    strings.NewReader("Scheme,Female Trained\nSCHEME A,9\n"),
			Current: current,
		})
		require.NoError(t, err)
		assert.Equal(t, reconcile.Result{Updated: 1}, res.Result)
		assert.Equal(t, float64(9), res.Rows[0].Measures["female_trained"])
		assert.Equal(t, "Scheme A", res.Rows[0].Keys["scheme_name"])
	})

	t.Run("unsaved table is left untouched", func(t *testing.T) {
		svc := newService(t)
		current := []analysis.Row{schemeRow("  Scheme A ", 1, 1)}
		_, err := svc.Import(ctx, screen, scope, analysis.ImportRequest{
			File:    strings.NewReader("Scheme,Female Trained\nSCHEME A,9\n"),
			Current: current,
		})
		require.NoError(t, err)
		assert.Equal(t, "  Scheme A ", current[0].Keys["scheme_name"])
		assert.Equal(t, float64(1), current[0].Measures["female_trained"])
	})

	t.Run("commit rejects blank keys", func(t *testing.T) {
		svc := newService(t)
		_, err := svc.Import(ctx, screen, scope, analysis.ImportRequest{
			File:    strings.NewReader("Scheme,Male Trained\nNULM,8\n"),
			Current: []analysis.Row{schemeRow("  ", 1, 1)},
			Commit:  true,
		})
		require.Error(t, err)
		verr, ok := err.(*core.ValidationError)
		require.True(t, ok, "got %T", err)
		assert.Equal(t, map[string]string{"rows[0].scheme_name": "this field is required"}, verr.FieldMap())

		stored, err := svc.Fetch(ctx, screen, scope)
		require.NoError(t, err)
		assert.Empty(t, stored)

		res, err := svc.Import(ctx, screen, scope, analysis.ImportRequest{
			File:    strings.NewReader("Scheme,Male Trained\nNULM,8\n"),
			Current: []analysis.Row{schemeRow("  ", 1, 1)},
		})
		require.NoError(t, err, "previews keep the unsaved table as is")
		assert.Len(t, res.Rows, 2)
	})

	t.Run("parse error", func(t *testing.T) {
		svc := newService(t)
		_, err := svc.Import(ctx, screen, scope, analysis.ImportRequest{File: strings.NewReader("")})
		_, ok := err.(*analysis.ParseError)
		assert.True(t, ok, "got %T", err)
	})
}

func TestServiceExportAndSummary(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	screen := scheme(t)
	_, err := svc.Save(ctx, screen, scope, []analysis.Row{schemeRow("PMKVY", 10, 5)})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.Export(ctx, screen, scope, &buf))
	assert.Equal(t, "Scheme,Target,Male Trained,Female Trained,Male Placed,Female Placed\nPMKVY,0,10,5,0,0\n", buf.String())

	sum, err := svc.Summary(ctx, screen, scope)
	require.NoError(t, err)
	assert.Equal(t, float64(15), sum.Totals["male_trained"]+sum.Totals["female_trained"])
	assert.Equal(t, "D", sum.Total.Grade)

	n, err := svc.Count(ctx, screen)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestServiceDeleteRow(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	screen := scheme(t)
	row, err := svc.AddRow(ctx, screen, scope, schemeRow("PMKVY", 1, 1))
	require.NoError(t, err)

	assert.Equal(t, analysis.ErrNotFound, svc.DeleteRow(ctx, screen, scope, row.ID.Int64+1))
	require.NoError(t, svc.DeleteRow(ctx, screen, scope, row.ID.Int64))
	rows, _ := svc.Fetch(ctx, screen, scope)
	assert.Empty(t, rows)
}

package echoapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kaushal/core"
	"github.com/trezcool/kaushal/core/analysis"
)

var (
	importFileField = "file"
	importRowsField = "rows"
)

type analysisApi struct {
	svc     *analysis.Service
	metrics *Metrics
}

func registerAnalysisAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *analysis.Service, metrics *Metrics) {
	api := analysisApi{svc: svc, metrics: metrics}

	g.GET("/screens", api.screens, jwt)

	ag := g.Group("/analysis/:screen", jwt, screenScopeMiddleware())
	ag.GET("", api.fetch)
	ag.PUT("", api.save)
	ag.POST("/rows", api.addRow)
	ag.DELETE("/rows/:id", api.deleteRow)
	ag.POST("/import", api.importFile)
	ag.GET("/export", api.export)
	ag.GET("/summary", api.summary)
}

type (
	TableResponse struct {
		Screen string         `json:"screen"`
		Scope  analysis.Scope `json:"scope"`
		Rows   []analysis.Row `json:"rows"`
	}

	SaveRequest struct {
		Rows []analysis.Row `json:"rows"`
	}

	ImportResponse struct {
		analysis.ImportResult
		Screen string         `json:"screen"`
		Scope  analysis.Scope `json:"scope"`
	}
)

func newTableResponse(screen *analysis.Screen, scope analysis.Scope, rows []analysis.Row) TableResponse {
	if rows == nil {
		rows = []analysis.Row{}
	}
	return TableResponse{Screen: screen.ID, Scope: scope, Rows: rows}
}

// Handlers

func (api *analysisApi) screens(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, analysis.Screens())
}

func (api *analysisApi) fetch(ctx echo.Context) error {
	screen, scope := contextScreenScope(ctx)
	rows, err := api.svc.Fetch(ctx.Request().Context(), screen, scope)
	if err != nil {
		return loadFailed(err)
	}
	return ctx.JSON(http.StatusOK, newTableResponse(screen, scope, rows))
}

func (api *analysisApi) save(ctx echo.Context) error {
	screen, scope := contextScreenScope(ctx)

	var data SaveRequest
	if err := json.NewDecoder(ctx.Request().Body).Decode(&data); err != nil {
		return errInvalidBody(err)
	}
	rows, err := api.svc.Save(ctx.Request().Context(), screen, scope, data.Rows)
	if err != nil {
		return writeFailed(err)
	}
	return ctx.JSON(http.StatusOK, newTableResponse(screen, scope, rows))
}

func (api *analysisApi) addRow(ctx echo.Context) error {
	screen, scope := contextScreenScope(ctx)

	var row analysis.Row
	if err := json.NewDecoder(ctx.Request().Body).Decode(&row); err != nil {
		return errInvalidBody(err)
	}
	row, err := api.svc.AddRow(ctx.Request().Context(), screen, scope, row)
	if err != nil {
		return writeFailed(err)
	}
	return ctx.JSON(http.StatusCreated, row)
}

func (api *analysisApi) deleteRow(ctx echo.Context) error {
	screen, scope := contextScreenScope(ctx)

	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		return errHttpNotFound
	}
	if err = api.svc.DeleteRow(ctx.Request().Context(), screen, scope, id); err != nil {
		return writeFailed(err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// importFile merges an uploaded CSV into the table. The form may carry the screen's
// unsaved table as JSON in `rows`; otherwise the stored rows are merged into.
func (api *analysisApi) importFile(ctx echo.Context) error {
	screen, scope := contextScreenScope(ctx)

	fh, err := ctx.FormFile(importFileField)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: importFileField, Error: "this field is required"})
	}
	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer file.Close()

	req := analysis.ImportRequest{
		File:   file,
		Policy: analysis.MergePolicy(ctx.QueryParam("policy")),
	}
	req.Commit, _ = strconv.ParseBool(ctx.QueryParam("commit"))
	if raw := ctx.FormValue(importRowsField); raw != "" {
		if err = json.Unmarshal([]byte(raw), &req.Current); err != nil {
			return core.NewValidationError(err, core.FieldError{Field: importRowsField, Error: "must be a JSON array of rows"})
		}
		if req.Current == nil {
			req.Current = []analysis.Row{}
		}
	}

	res, err := api.svc.Import(ctx.Request().Context(), screen, scope, req)
	if err != nil {
		api.metrics.observeImport(screen.ID, "failed", 0, 0, 0)
		return writeFailed(err)
	}
	outcome := "previewed"
	if res.Committed {
		outcome = "committed"
	}
	api.metrics.observeImport(screen.ID, outcome, res.Result.Updated, res.Result.Appended, res.Result.Skipped)

	if res.Rows == nil {
		res.Rows = []analysis.Row{}
	}
	return ctx.JSON(http.StatusOK, ImportResponse{ImportResult: res, Screen: screen.ID, Scope: scope})
}

func (api *analysisApi) export(ctx echo.Context) error {
	screen, scope := contextScreenScope(ctx)

	var buf bytes.Buffer
	if err := api.svc.Export(ctx.Request().Context(), screen, scope, &buf); err != nil {
		return loadFailed(err)
	}
	filename := fmt.Sprintf("%s-%s-%s.csv", screen.ID, scope.DistrictID, scope.Period)
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (api *analysisApi) summary(ctx echo.Context) error {
	screen, scope := contextScreenScope(ctx)
	sum, err := api.svc.Summary(ctx.Request().Context(), screen, scope)
	if err != nil {
		return loadFailed(err)
	}
	return ctx.JSON(http.StatusOK, sum)
}

package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/kaushal/core/institution"
)

type institutionApi struct {
	dir *institution.Directory
}

func registerInstitutionAPI(g *echo.Group, jwt echo.MiddlewareFunc, dir *institution.Directory) {
	api := institutionApi{dir: dir}

	ig := g.Group("/institutions", jwt)
	ig.GET("", api.query)
	ig.GET("/options", api.options)
	ig.GET("/:id", api.retrieve)
}

// Handlers

func (api *institutionApi) query(ctx echo.Context) error {
	var filter institution.Filter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []institution.Institution{})
	}
	return ctx.JSON(http.StatusOK, api.dir.Filter(filter))
}

func (api *institutionApi) options(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.dir.Options(ctx.QueryParam("category")))
}

func (api *institutionApi) retrieve(ctx echo.Context) error {
	inst, err := api.dir.Get(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, inst)
}

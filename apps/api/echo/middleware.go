package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kaushal/core"
	"github.com/trezcool/kaushal/core/analysis"
)

var (
	contextScreenKey = "screen"
	contextScopeKey  = "scope"
)

// screenScopeMiddleware resolves the `:screen` path param and the district/period scope of the request.
// The district is the token's; only admins may pick another one with `?district=`.
func screenScopeMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			screen, err := analysis.LookupScreen(ctx.Param("screen"))
			if err != nil {
				return errors.Wrapf(err, "looking up screen %q", ctx.Param("screen"))
			}

			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			scope := analysis.Scope{
				DistrictID: claims.DistrictID,
				Period:     core.CleanString(ctx.QueryParam("period")),
			}
			if district := core.CleanString(ctx.QueryParam("district")); district != "" && district != claims.DistrictID {
				if !claims.IsAdmin {
					return errHttpForbidden
				}
				scope.DistrictID = district
			}

			ctx.Set(contextScreenKey, screen)
			ctx.Set(contextScopeKey, scope)
			return next(ctx)
		}
	}
}

func contextScreenScope(ctx echo.Context) (*analysis.Screen, analysis.Scope) {
	screen, _ := ctx.Get(contextScreenKey).(*analysis.Screen)
	scope, _ := ctx.Get(contextScopeKey).(analysis.Scope)
	return screen, scope
}

package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/kaushal/core"
	"github.com/trezcool/kaushal/core/analysis"
	"github.com/trezcool/kaushal/core/institution"
	"github.com/trezcool/kaushal/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")

	msgFailedToLoad = "failed to load"
	msgBadCSV       = "could not parse CSV file"
)

func errInvalidBody(err error) error {
	return &echo.HTTPError{Code: http.StatusBadRequest, Message: "invalid JSON body", Internal: err}
}

// loadFailed hides store errors of read operations behind a fixed message.
func loadFailed(err error) error {
	if isClientError(err) {
		return err
	}
	return &echo.HTTPError{Code: http.StatusInternalServerError, Message: msgFailedToLoad, Internal: err}
}

// writeFailed reports store errors of write operations with the store's own message.
func writeFailed(err error) error {
	if isClientError(err) {
		return err
	}
	return &echo.HTTPError{Code: http.StatusInternalServerError, Message: errors.Cause(err).Error(), Internal: err}
}

func isClientError(err error) bool {
	var perr *analysis.ParseError
	if errors.As(err, &perr) {
		return true
	}
	switch cause := errors.Cause(err); cause.(type) {
	case *echo.HTTPError, validator.ValidationErrors, *core.ValidationError:
		return true
	default:
		return cause == analysis.ErrNotFound || cause == analysis.ErrUnknownScreen
	}
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		var perr *analysis.ParseError
		if errors.As(err, &perr) {
			sendError(ctx, http.StatusBadRequest, msgBadCSV)
			return
		}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			internal := origErr.Internal
			if herr, ok := internal.(*echo.HTTPError); ok {
				origErr = herr
			}
			code = origErr.Code
			message = origErr.Message
			if code >= http.StatusInternalServerError {
				logServerError(ctx, logger, err, internal)
			}
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				message = origErr.FieldMap()
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			switch origErr {
			case analysis.ErrNotFound, analysis.ErrUnknownScreen, institution.ErrNotFound, user.ErrNotFound:
				code, message = http.StatusNotFound, origErr.Error()
			case user.ErrInvalidCredentials:
				code, message = http.StatusBadRequest, origErr.Error()
			case user.ErrInactive:
				code, message = http.StatusForbidden, errAccountDeactivated.Message
			default: // any other error is a server error
				code = http.StatusInternalServerError
				message = http.StatusText(http.StatusInternalServerError)
				if ctx.Echo().Debug {
					message = err.Error()
				}
				logServerError(ctx, logger, err, nil)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		sendError(ctx, code, message)
	}
}

func logServerError(ctx echo.Context, logger core.Logger, err, internal error) {
	if internal != nil {
		err = internal
	}
	var usr user.User
	if claims, cErr := getContextClaims(ctx); cErr == nil {
		usr.ID = claims.Subject
		usr.Username = claims.Username
	}
	msg := http.StatusText(http.StatusInternalServerError)
	logger.Error(msg, errors.Wrapf(err, "%s %s", ctx.Request().Method, ctx.Path()), usr)
}

func sendError(ctx echo.Context, code int, message interface{}) {
	if m, ok := message.(string); ok {
		message = echo.Map{"error": m}
	}

	// Send response
	if !ctx.Response().Committed {
		var err error
		if ctx.Request().Method == http.MethodHead { // Issue #608
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, message)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}

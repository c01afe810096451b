package api

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/aarondl/null/v8"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/erazemk/zahtevki/internal/apperr"
)

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func jsonMessage(c echo.Context, status int, msg string) error {
	return c.JSON(status, messageResponse{Message: msg})
}

// requestValidator adapts go-playground/validator to echo.
type requestValidator struct {
	v *validator.Validate
}

func newValidator() *requestValidator {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if n, ok := field.Interface().(null.Int64); ok && n.Valid {
			return n.Int64
		}
		return nil
	}, null.Int64{})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if n, ok := field.Interface().(null.String); ok && n.Valid {
			return n.String
		}
		return nil
	}, null.String{})
	return &requestValidator{v: v}
}

func (rv *requestValidator) Validate(i any) error {
	return rv.v.Struct(i)
}

// bind decodes and validates a JSON body.
func bind(c echo.Context, target any) error {
	if err := c.Bind(target); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := c.Validate(target); err != nil {
		return err
	}
	return nil
}

func paramID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s", name)
	}
	return id, nil
}

func queryID(c echo.Context, name string) (int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.Validation("invalid %s", name)
	}
	return id, nil
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindAuthorization:       http.StatusForbidden,
	apperr.KindValidation:          http.StatusBadRequest,
	apperr.KindInsufficientStock:   http.StatusConflict,
	apperr.KindConfiguration:       http.StatusInternalServerError,
	apperr.KindReservation:         http.StatusConflict,
	apperr.KindImmutableState:      http.StatusConflict,
	apperr.KindPrematureCompletion: http.StatusConflict,
	apperr.KindNotFound:            http.StatusNotFound,
}

// errorHandler renders every error returned by a handler as
// {"error": "..."}.
func errorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, msg := http.StatusInternalServerError, "internal error"

		var httpErr *echo.HTTPError
		var appErr *apperr.Error
		var verrs validator.ValidationErrors
		switch {
		case errors.As(err, &httpErr):
			status = httpErr.Code
			if m, ok := httpErr.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(status)
			}
		case errors.As(err, &verrs):
			status = http.StatusBadRequest
			msg = validationMessage(verrs)
		case errors.As(err, &appErr):
			status = kindStatus[appErr.Kind]
			msg = appErr.Message
			if appErr.Kind == apperr.KindReservation && appErr.Err != nil {
				msg += ": " + appErr.Err.Error()
			}
		}

		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, errorResponse{Error: msg})
		}
		if err != nil {
			log.Warn("writing error response", zap.Error(err))
		}
	}
}

func validationMessage(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "oneof":
			parts = append(parts, field+" must be one of: "+fe.Param())
		case "min":
			parts = append(parts, field+" must be at least "+fe.Param()+" characters")
		default:
			parts = append(parts, field+" is invalid")
		}
	}
	return strings.Join(parts, ", ")
}

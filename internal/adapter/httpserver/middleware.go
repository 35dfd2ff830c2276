package httpserver

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/dkrasnow/worldmood/internal/apperr"
	"github.com/dkrasnow/worldmood/internal/domain"
)

// ErrorHandlingMiddleware converts handler errors into structured JSON
// responses with matching status codes.
func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			structuredErr := toStructuredError(err)
			logError(c, structuredErr)

			if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

// toStructuredError maps domain sentinels onto the structured error type
// before falling back to the generic conversion.
func toStructuredError(err error) *apperr.Error {
	switch {
	case errors.Is(err, domain.ErrCountryUnknown):
		return apperr.NotFound("unknown country")
	case errors.Is(err, domain.ErrResultNotFound):
		return apperr.NotFound("no result for country yet")
	case errors.Is(err, domain.ErrResourceUnavailable):
		return apperr.External("aggregation resources unavailable", err)
	default:
		return apperr.From(err)
	}
}

func logError(c echo.Context, err *apperr.Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	switch err.Type {
	case apperr.TypeValidation:
		slog.Info("Validation error", attrs...)
	case apperr.TypeNotFound:
		slog.Info("Not found", attrs...)
	default:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.Error("Request failed", attrs...)
	}
}

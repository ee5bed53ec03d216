package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	apperrors "stock-analyzer/internal/errors"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func errorResponse(c echo.Context, status int, err error) error {
	body := ErrorResponse{Status: status, Message: http.StatusText(status)}
	if err != nil {
		body.Error = err.Error()
	}
	return c.JSON(status, body)
}

// statusFor maps pipeline errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case apperrors.Is(err, apperrors.ErrTickerInvalid), apperrors.Is(err, apperrors.ErrConfigInvalid):
		return http.StatusBadRequest
	case apperrors.Is(err, apperrors.ErrDataUnavailable):
		return http.StatusNotFound
	case apperrors.Is(err, apperrors.ErrNotAuthenticated):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func recoverMiddleware(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().
						Str("path", c.Path()).
						Str("stack", string(debug.Stack())).
						Msgf("panic: %v", r)
					err = errorResponse(c, http.StatusInternalServerError, fmt.Errorf("internal error"))
				}
			}()
			return next(c)
		}
	}
}

func requestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			logger.Debug().
				Str("method", c.Request().Method).
				Str("route", c.Path()).
				Int("status", c.Response().Status).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
			return nil
		}
	}
}

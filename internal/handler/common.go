package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ticketing/internal/booking"
	"github.com/iliyamo/cinema-ticketing/internal/middleware"
	"github.com/iliyamo/cinema-ticketing/internal/pricing"
)

// errUnauthorized is returned when a protected handler runs without an
// authenticated user in the context.
var errUnauthorized = errors.New("unauthorized")

// getUserID returns the authenticated user id stored by middleware.JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, errUnauthorized
	}
	return id, nil
}

// parseID reads a positive integer from a path or query value.
func parseID(raw string) (uint64, bool) {
	id, err := strconv.ParseUint(raw, 10, 64)
	return id, err == nil && id > 0
}

// writeError maps booking errors onto HTTP responses.  Unknown errors are
// logged and reported as 500 without detail.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	var (
		conflict *booking.SeatConflictError
		points   *pricing.InsufficientPointsError
		invalid  *booking.ValidationError
	)
	switch {
	case errors.As(err, &conflict):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seats unavailable", "unavailable": conflict.SeatIDs})
	case errors.As(err, &points):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":     "insufficient points",
			"current":   points.Available,
			"requested": points.Requested,
		})
	case errors.As(err, &invalid):
		body := echo.Map{"error": invalid.Msg}
		if len(invalid.SeatIDs) > 0 {
			body["seat_ids"] = invalid.SeatIDs
		}
		if len(invalid.Types) > 0 {
			body["seat_types"] = invalid.Types
		}
		return c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, booking.ErrAlreadyConfirmed), errors.Is(err, booking.ErrHoldExpired):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrNotFoundOrForbidden):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, booking.ErrConfirmationLost), errors.Is(err, booking.ErrCannotCancelConfirmed):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, errUnauthorized):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	log.Error("request failed",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

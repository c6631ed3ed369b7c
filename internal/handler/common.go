package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-broker/internal/middleware"
	"github.com/iliyamo/seat-reservation-broker/internal/repository"
)

// getUserID extracts the authenticated holder id placed in the context by
// middleware.JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get(middleware.HolderKey).(type) {
	case uint64:
		if t > 0 {
			return t, nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	return n, err == nil && n > 0
}

// writeError maps service and repository errors onto HTTP responses.
func writeError(c echo.Context, err error) error {
	var conflict *repository.ConflictError
	var rejected *repository.RejectedError
	switch {
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "seats_unavailable", "seats": conflict.Seats})
	case errors.As(err, &rejected):
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking_rejected", "reason": rejected.Reason, "seats": rejected.Seats})
	case errors.Is(err, repository.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	case errors.Is(err, repository.ErrScreeningNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "screening not found"})
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, repository.ErrBookingNotCancellable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not confirmed"})
	}
	c.Logger().Errorf("request failed: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-broker/internal/service"
)

// SeatHandler exposes the hold table and booking transaction over HTTP.
// Every route except SeatMap expects middleware.JWTAuth to have run.
type SeatHandler struct {
	Seats *service.SeatService
}

// NewSeatHandler panics when seats is nil.
func NewSeatHandler(seats *service.SeatService) *SeatHandler {
	if seats == nil {
		panic("nil seat service passed to NewSeatHandler")
	}
	return &SeatHandler{Seats: seats}
}

type holdRequest struct {
	Seats []string `json:"seats"`
}

type holdResponse struct {
	ScreeningID uint64    `json:"screening_id"`
	Seats       []string  `json:"seats"`
	ExpiresAt   time.Time `json:"expires_at"`
	TTLSeconds  int       `json:"ttl_seconds"`
}

type confirmRequest struct {
	Seats            []string `json:"seats"`
	TotalAmountCents uint32   `json:"total_amount_cents"`
}

// SeatMap handles GET /v1/screenings/:id/seats.
func (h *SeatHandler) SeatMap(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid screening id"})
	}
	m, err := h.Seats.SeatState(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// Hold handles POST /v1/screenings/:id/hold.  The body names the seats to
// hold; the new set replaces any seats the caller already held on the
// screening.  A 409 lists the seats that blocked the request.
func (h *SeatHandler) Hold(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid screening id"})
	}
	var body holdRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	holds, err := h.Seats.Acquire(c.Request().Context(), id, userID, body.Seats)
	if err != nil {
		return writeError(c, err)
	}
	resp := holdResponse{
		ScreeningID: id,
		Seats:       make([]string, 0, len(holds)),
		TTLSeconds:  int(h.Seats.HoldTTL() / time.Second),
	}
	for _, hold := range holds {
		resp.Seats = append(resp.Seats, hold.SeatNumber)
		resp.ExpiresAt = hold.ExpiresAt.UTC()
	}
	return c.JSON(http.StatusCreated, resp)
}

// Release handles DELETE /v1/screenings/:id/hold.  Releasing when nothing
// is held still returns 200 with an empty list.
func (h *SeatHandler) Release(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid screening id"})
	}
	released, err := h.Seats.Release(c.Request().Context(), id, userID)
	if err != nil {
		return writeError(c, err)
	}
	if released == nil {
		released = []string{}
	}
	return c.JSON(http.StatusOK, echo.Map{"released": released})
}

// ReleaseSeat handles DELETE /v1/screenings/:id/hold/:seat and drops one
// of the caller's holds.  A seat the caller does not hold yields 200 with
// an empty list.
func (h *SeatHandler) ReleaseSeat(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid screening id"})
	}
	seat := strings.ToUpper(strings.TrimSpace(c.Param("seat")))
	ok, err = h.Seats.Unlock(c.Request().Context(), id, userID, seat)
	if err != nil {
		return writeError(c, err)
	}
	released := []string{}
	if ok {
		released = append(released, seat)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": released})
}

// Confirm handles POST /v1/screenings/:id/confirm and turns the caller's
// holds into a booking.
func (h *SeatHandler) Confirm(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid screening id"})
	}
	var body confirmRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	b, err := h.Seats.Commit(c.Request().Context(), id, userID, body.Seats, body.TotalAmountCents)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// GetBooking handles GET /v1/bookings/:id.  Callers only see their own
// bookings; others get 404.
func (h *SeatHandler) GetBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.Seats.Booking(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	if b.HolderID != userID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	}
	return c.JSON(http.StatusOK, b)
}

// CancelBooking handles DELETE /v1/bookings/:id.
func (h *SeatHandler) CancelBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	ctx := c.Request().Context()
	b, err := h.Seats.Booking(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	if b.HolderID != userID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	}
	if b, err = h.Seats.Cancel(ctx, id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

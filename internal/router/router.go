// Package router wires HTTP routes onto an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-broker/internal/handler"
	"github.com/iliyamo/seat-reservation-broker/internal/middleware"
)

// Deps carries everything RegisterRoutes needs.  Chat may be nil, in which
// case the chat routes are not registered.  HoldLimiter wraps the hold
// route; nil disables limiting.
type Deps struct {
	Health      echo.HandlerFunc
	Seats       *handler.SeatHandler
	Chat        *handler.ChatHandler
	JWTSecret   string
	HoldLimiter echo.MiddlewareFunc
}

// RegisterRoutes registers the health check, the public seat map and the
// authenticated hold, booking and chat endpoints under /v1.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", d.Health)
	e.GET("/v1/screenings/:id/seats", d.Seats.SeatMap)

	auth := e.Group("/v1", middleware.JWTAuth(d.JWTSecret))

	hold := []echo.MiddlewareFunc{}
	if d.HoldLimiter != nil {
		hold = append(hold, d.HoldLimiter)
	}
	auth.POST("/screenings/:id/hold", d.Seats.Hold, hold...)
	auth.DELETE("/screenings/:id/hold", d.Seats.Release)
	auth.DELETE("/screenings/:id/hold/:seat", d.Seats.ReleaseSeat)
	auth.POST("/screenings/:id/confirm", d.Seats.Confirm)
	auth.GET("/bookings/:id", d.Seats.GetBooking)
	auth.DELETE("/bookings/:id", d.Seats.CancelBooking)

	if d.Chat != nil {
		auth.POST("/messages", d.Chat.SendMessage)
		auth.POST("/messages/read", d.Chat.MarkRead)
		auth.POST("/typing", d.Chat.Typing)
	}
}

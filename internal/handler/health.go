package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Probe reports a numeric gauge for the health endpoint.
type Probe func() int

// Health returns a health-check endpoint for load balancers.  It always
// answers 200; the body carries the broker connection count and whether
// the notification facade is connected.
func Health(connections Probe, notifyConnected func() bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		resp := echo.Map{"status": "ok"}
		if connections != nil {
			resp["broker_connections"] = connections()
		}
		if notifyConnected != nil {
			resp["notify_connected"] = notifyConnected()
		}
		return c.JSON(http.StatusOK, resp)
	}
}

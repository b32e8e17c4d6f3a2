package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/handler"
	"github.com/iliyamo/cinema-ticketing/internal/middleware"
)

// RegisterBooking registers /v1/bookings.  Seat maps and prices are
// public; everything tied to a user needs a valid JWT, and the writes
// additionally pass through limit.
func RegisterBooking(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/bookings")
	g.GET("/seats", h.Seats)
	g.GET("/status", h.Status)
	g.GET("/ticket-prices", h.TicketPrices)

	auth := middleware.JWTAuth(jwtSecret)
	g.POST("/hold", h.Hold, auth, limit)
	g.POST("/confirm", h.Confirm, auth, limit)
	g.POST("/cancel", h.Cancel, auth, limit)
	g.GET("/my", h.My, auth)
	g.GET("/:id", h.Get, auth)
}

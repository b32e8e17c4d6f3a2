// Package router registers the HTTP routes on an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/handler"
)

// RegisterRoutes registers unauthenticated operational routes.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterPublic registers the catalog browse routes.  cache wraps every
// route; pass a no-op middleware to disable caching.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1", cache)
	g.GET("/movies", p.ListMovies)
	g.GET("/movies/:id", p.GetMovie)
	g.GET("/theaters", p.ListTheaters)
	g.GET("/show-times", p.SearchShowTimes)
	g.GET("/show-times/:id", p.GetShowTime)
}

// RegisterRealtime mounts the seat update websocket.
func RegisterRealtime(e *echo.Echo, ws echo.HandlerFunc) {
	e.GET("/v1/ws/seats", ws)
}

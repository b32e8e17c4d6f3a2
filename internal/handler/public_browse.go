package handler

// Public browse endpoints.  These routes need no authentication and only
// read the catalog maintained by the scheduling system.

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ticketing/internal/clock"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// MovieCatalog reads movies and theaters.
type MovieCatalog interface {
	ListMovies(ctx context.Context) ([]model.Movie, error)
	GetMovie(ctx context.Context, id uint64) (model.Movie, error)
	ListTheaters(ctx context.Context) ([]model.Theater, error)
}

// ShowTimeLister reads the public showtime listing.
type ShowTimeLister interface {
	SearchShowTimes(ctx context.Context, q repository.ShowTimeQuery, now time.Time) ([]repository.ShowTimeRow, int64, error)
	GetShowTimeRow(ctx context.Context, id uint64) (repository.ShowTimeRow, error)
}

// PublicHandler serves the unauthenticated catalog routes.
type PublicHandler struct {
	Catalog   MovieCatalog
	ShowTimes ShowTimeLister
	Clock     clock.Clock
	Log       *zap.Logger
}

// PublicMovie is a movie as exposed publicly.
type PublicMovie struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	DurationMin uint32    `json:"duration_min"`
	PosterURL   *string   `json:"poster_url,omitempty"`
	ReleaseDate time.Time `json:"release_date"`
}

// PublicTheater is a theater as exposed publicly.
type PublicTheater struct {
	ID      uint64 `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

func toPublicMovie(m model.Movie) PublicMovie {
	return PublicMovie{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		DurationMin: m.DurationMin,
		PosterURL:   m.PosterURL,
		ReleaseDate: m.ReleaseDate,
	}
}

func (h *PublicHandler) dbError(c echo.Context, err error) error {
	if h.Log != nil {
		h.Log.Error("catalog query failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}

// ListMovies handles GET /v1/movies.  The response holds an "items" array.
func (h *PublicHandler) ListMovies(c echo.Context) error {
	movies, err := h.Catalog.ListMovies(c.Request().Context())
	if err != nil {
		return h.dbError(c, err)
	}
	out := make([]PublicMovie, 0, len(movies))
	for _, m := range movies {
		out = append(out, toPublicMovie(m))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetMovie handles GET /v1/movies/:id.
func (h *PublicHandler) GetMovie(c echo.Context) error {
	id, ok := parseID(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	m, err := h.Catalog.GetMovie(c.Request().Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "movie not found"})
	}
	if err != nil {
		return h.dbError(c, err)
	}
	return c.JSON(http.StatusOK, toPublicMovie(m))
}

// ListTheaters handles GET /v1/theaters.
func (h *PublicHandler) ListTheaters(c echo.Context) error {
	theaters, err := h.Catalog.ListTheaters(c.Request().Context())
	if err != nil {
		return h.dbError(c, err)
	}
	out := make([]PublicTheater, 0, len(theaters))
	for _, t := range theaters {
		out = append(out, PublicTheater{ID: t.ID, Name: t.Name, Address: t.Address})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// SearchShowTimes handles GET /v1/show-times.  Optional query parameters:
// movie_id, theater_id, time ("upcoming" or "any"), page and page_size
// (capped at 100).
func (h *PublicHandler) SearchShowTimes(c echo.Context) error {
	q := repository.ShowTimeQuery{TimeFilter: c.QueryParam("time")}
	if v := c.QueryParam("movie_id"); v != "" {
		id, ok := parseID(v)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie_id"})
		}
		q.MovieID = id
	}
	if v := c.QueryParam("theater_id"); v != "" {
		id, ok := parseID(v)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid theater_id"})
		}
		q.TheaterID = id
	}
	q.Page, _ = strconv.Atoi(c.QueryParam("page"))
	if q.Page < 1 {
		q.Page = 1
	}
	q.PageSize, _ = strconv.Atoi(c.QueryParam("page_size"))
	if q.PageSize < 1 {
		q.PageSize = 20
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}

	rows, total, err := h.ShowTimes.SearchShowTimes(c.Request().Context(), q, h.Clock.Now())
	if err != nil {
		return h.dbError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":     rows,
		"page":      q.Page,
		"page_size": q.PageSize,
		"total":     total,
	})
}

// GetShowTime handles GET /v1/show-times/:id.
func (h *PublicHandler) GetShowTime(c echo.Context) error {
	id, ok := parseID(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	row, err := h.ShowTimes.GetShowTimeRow(c.Request().Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "show time not found"})
	}
	if err != nil {
		return h.dbError(c, err)
	}
	return c.JSON(http.StatusOK, row)
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ticketing/internal/booking"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/pricing"
)

// BookingService is the part of booking.Service the HTTP layer calls.
type BookingService interface {
	Availability(ctx context.Context, showTimeID uint64) ([]model.SeatAvailability, error)
	Status(ctx context.Context, showTimeID uint64) ([]model.SeatClaim, error)
	TicketPrices(ctx context.Context, showTimeID uint64) (pricing.Table, error)
	Hold(ctx context.Context, userID, showTimeID uint64, seatIDs []uint64) (booking.HoldResult, error)
	Confirm(ctx context.Context, in booking.ConfirmInput) (pricing.Quote, error)
	Cancel(ctx context.Context, userID, bookingID uint64) error
	MyBookings(ctx context.Context, userID uint64) ([]model.BookingDetail, error)
	Booking(ctx context.Context, userID, bookingID uint64) (model.BookingDetail, error)
}

// BookingHandler serves /v1/bookings.  Write endpoints and the per-user
// listings expect middleware.JWTAuth in front of them.
type BookingHandler struct {
	svc BookingService
	log *zap.Logger
}

// NewBookingHandler constructs a BookingHandler; a nil logger disables
// error logging.
func NewBookingHandler(svc BookingService, log *zap.Logger) *BookingHandler {
	if svc == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingHandler{svc: svc, log: log}
}

type holdRequest struct {
	ShowTimeID uint64   `json:"show_time_id"`
	SeatIDs    []uint64 `json:"seat_ids"`
}

type holdResponse struct {
	BookingID  uint64    `json:"booking_id"`
	ExpireAt   time.Time `json:"expire_at"`
	TotalPrice int64     `json:"total_price"`
}

type confirmRequest struct {
	BookingID     uint64 `json:"booking_id"`
	PaymentMethod string `json:"payment_method"`
	UsePoints     int64  `json:"use_points"`
}

type confirmResponse struct {
	PointsUsed     int64 `json:"pointsUsed"`
	Discount       int64 `json:"discount"`
	FinalPrice     int64 `json:"finalPrice"`
	PointsEarned   int64 `json:"pointsEarned"`
	NewTotalPoints int64 `json:"newTotalPoints"`
}

type cancelRequest struct {
	BookingID uint64 `json:"booking_id"`
}

// showTimeParam reads the required show_time_id query parameter.
func showTimeParam(c echo.Context) (uint64, bool) {
	return parseID(c.QueryParam("show_time_id"))
}

func badShowTime(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show_time_id"})
}

// Seats handles GET /v1/bookings/seats?show_time_id=N.  It lists every
// seat of the showtime's room with its current availability.
func (h *BookingHandler) Seats(c echo.Context) error {
	stID, ok := showTimeParam(c)
	if !ok {
		return badShowTime(c)
	}
	seats, err := h.svc.Availability(c.Request().Context(), stID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	if seats == nil {
		seats = []model.SeatAvailability{}
	}
	return c.JSON(http.StatusOK, seats)
}

// Status handles GET /v1/bookings/status?show_time_id=N and returns the
// active hold and confirmed rows of the showtime.
func (h *BookingHandler) Status(c echo.Context) error {
	stID, ok := showTimeParam(c)
	if !ok {
		return badShowTime(c)
	}
	claims, err := h.svc.Status(c.Request().Context(), stID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	if claims == nil {
		claims = []model.SeatClaim{}
	}
	return c.JSON(http.StatusOK, claims)
}

// TicketPrices handles GET /v1/bookings/ticket-prices?show_time_id=N and
// returns a seat type to price map.
func (h *BookingHandler) TicketPrices(c echo.Context) error {
	stID, ok := showTimeParam(c)
	if !ok {
		return badShowTime(c)
	}
	table, err := h.svc.TicketPrices(c.Request().Context(), stID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	if table == nil {
		table = pricing.Table{}
	}
	return c.JSON(http.StatusOK, table)
}

// Hold handles POST /v1/bookings/hold.  It holds every requested seat or
// none; unavailable seats are listed in the 400 response.
func (h *BookingHandler) Hold(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	var req holdRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.svc.Hold(c.Request().Context(), userID, req.ShowTimeID, req.SeatIDs)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, holdResponse{
		BookingID:  res.BookingID,
		ExpireAt:   res.ExpireAt,
		TotalPrice: res.TotalPrice,
	})
}

// Confirm handles POST /v1/bookings/confirm and returns the pricing
// breakdown of the confirmed booking.
func (h *BookingHandler) Confirm(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	q, err := h.svc.Confirm(c.Request().Context(), booking.ConfirmInput{
		UserID:        userID,
		BookingID:     req.BookingID,
		PaymentMethod: req.PaymentMethod,
		PointsToUse:   req.UsePoints,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, confirmResponse{
		PointsUsed:     q.PointsUsed,
		Discount:       q.Discount,
		FinalPrice:     q.FinalPrice,
		PointsEarned:   q.PointsEarned,
		NewTotalPoints: q.NewTotalPoints,
	})
}

// Cancel handles POST /v1/bookings/cancel for the caller's own held
// booking.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.svc.Cancel(c.Request().Context(), userID, req.BookingID); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "booking cancelled"})
}

// My handles GET /v1/bookings/my.
func (h *BookingHandler) My(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	list, err := h.svc.MyBookings(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	if list == nil {
		list = []model.BookingDetail{}
	}
	return c.JSON(http.StatusOK, list)
}

// Get handles GET /v1/bookings/:id.  Bookings of other users are reported
// as not found.
func (h *BookingHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	id, ok := parseID(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	d, err := h.svc.Booking(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, d)
}

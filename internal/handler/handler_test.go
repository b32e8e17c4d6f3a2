package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ticketing/internal/booking"
	"github.com/iliyamo/cinema-ticketing/internal/clock"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/pricing"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

var _ BookingService = (*booking.Service)(nil)

type fakeService struct {
	err       error
	gotUser   uint64
	gotShow   uint64
	gotSeats  []uint64
	gotInput  booking.ConfirmInput
	cancelled uint64
}

func (f *fakeService) Availability(_ context.Context, st uint64) ([]model.SeatAvailability, error) {
	f.gotShow = st
	return []model.SeatAvailability{{ID: 1, SeatNumber: "A1", SeatType: "standard", IsAvailable: true}}, f.err
}

func (f *fakeService) Status(_ context.Context, st uint64) ([]model.SeatClaim, error) {
	f.gotShow = st
	return nil, f.err
}

func (f *fakeService) TicketPrices(context.Context, uint64) (pricing.Table, error) {
	return pricing.Table{"standard": 100000}, f.err
}

func (f *fakeService) Hold(_ context.Context, userID, st uint64, seats []uint64) (booking.HoldResult, error) {
	f.gotUser, f.gotShow, f.gotSeats = userID, st, seats
	if f.err != nil {
		return booking.HoldResult{}, f.err
	}
	return booking.HoldResult{
		BookingID:  55,
		ShowTimeID: st,
		SeatIDs:    seats,
		ExpireAt:   time.Date(2025, 3, 1, 18, 5, 0, 0, time.UTC),
		TotalPrice: 200000,
	}, nil
}

func (f *fakeService) Confirm(_ context.Context, in booking.ConfirmInput) (pricing.Quote, error) {
	f.gotInput = in
	if f.err != nil {
		return pricing.Quote{}, f.err
	}
	return pricing.Quote{PointsUsed: 2000, Discount: 10000, FinalPrice: 190000, PointsEarned: 3000, NewTotalPoints: 3000}, nil
}

func (f *fakeService) Cancel(_ context.Context, userID, id uint64) error {
	f.gotUser, f.cancelled = userID, id
	return f.err
}

func (f *fakeService) MyBookings(_ context.Context, userID uint64) ([]model.BookingDetail, error) {
	f.gotUser = userID
	return nil, f.err
}

func (f *fakeService) Booking(_ context.Context, userID, id uint64) (model.BookingDetail, error) {
	f.gotUser = userID
	if f.err != nil {
		return model.BookingDetail{}, f.err
	}
	return model.BookingDetail{ID: id, Status: model.BookingHeld, Seats: []string{"A1"}}, nil
}

// call runs h with an optional JSON body and an authenticated user when
// userID is non-zero.
func call(t *testing.T, h echo.HandlerFunc, method, target, body string, userID uint64, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != 0 {
		c.Set("user_id", userID)
	}
	if len(params) == 2 {
		c.SetParamNames(params[0])
		c.SetParamValues(params[1])
	}
	require.NoError(t, h(c))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestSeats(t *testing.T) {
	svc := &fakeService{}
	h := NewBookingHandler(svc, zap.NewNop())

	rec := call(t, h.Seats, http.MethodGet, "/v1/bookings/seats?show_time_id=3", "", 0)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":1,"seat_number":"A1","seat_type":"standard","is_available":true}]`, rec.Body.String())
	assert.Equal(t, uint64(3), svc.gotShow)

	rec = call(t, h.Seats, http.MethodGet, "/v1/bookings/seats?show_time_id=abc", "", 0)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusReturnsEmptyArray(t *testing.T) {
	h := NewBookingHandler(&fakeService{}, nil)
	rec := call(t, h.Status, http.MethodGet, "/v1/bookings/status?show_time_id=1", "", 0)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestTicketPricesHandler(t *testing.T) {
	h := NewBookingHandler(&fakeService{}, nil)
	rec := call(t, h.TicketPrices, http.MethodGet, "/v1/bookings/ticket-prices?show_time_id=1", "", 0)
	assert.JSONEq(t, `{"standard":100000}`, rec.Body.String())
}

func TestHoldHandler(t *testing.T) {
	svc := &fakeService{}
	h := NewBookingHandler(svc, nil)

	rec := call(t, h.Hold, http.MethodPost, "/v1/bookings/hold", `{"show_time_id":1,"seat_ids":[1,2]}`, 7)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"booking_id":55,"expire_at":"2025-03-01T18:05:00Z","total_price":200000}`, rec.Body.String())
	assert.Equal(t, uint64(7), svc.gotUser)
	assert.Equal(t, []uint64{1, 2}, svc.gotSeats)

	rec = call(t, h.Hold, http.MethodPost, "/v1/bookings/hold", `{"show_time_id":1,"seat_ids":[1]}`, 0)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, h.Hold, http.MethodPost, "/v1/bookings/hold", `{"seat_ids":"x"}`, 7)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmHandler(t *testing.T) {
	svc := &fakeService{}
	h := NewBookingHandler(svc, nil)

	rec := call(t, h.Confirm, http.MethodPost, "/v1/bookings/confirm", `{"booking_id":55,"payment_method":"card","use_points":2000}`, 7)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pointsUsed":2000,"discount":10000,"finalPrice":190000,"pointsEarned":3000,"newTotalPoints":3000}`, rec.Body.String())
	assert.Equal(t, booking.ConfirmInput{UserID: 7, BookingID: 55, PaymentMethod: "card", PointsToUse: 2000}, svc.gotInput)
}

func TestCancelHandler(t *testing.T) {
	svc := &fakeService{}
	h := NewBookingHandler(svc, nil)

	rec := call(t, h.Cancel, http.MethodPost, "/v1/bookings/cancel", `{"booking_id":55}`, 7)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "booking cancelled", decode(t, rec)["message"])
	assert.Equal(t, uint64(55), svc.cancelled)
}

func TestBookingDetailHandler(t *testing.T) {
	svc := &fakeService{}
	h := NewBookingHandler(svc, nil)

	rec := call(t, h.Get, http.MethodGet, "/v1/bookings/9", "", 7, "id", "9")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 9, decode(t, rec)["id"])

	rec = call(t, h.Get, http.MethodGet, "/v1/bookings/x", "", 7, "id", "x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.err = booking.ErrNotFoundOrForbidden
	rec = call(t, h.Get, http.MethodGet, "/v1/bookings/9", "", 7, "id", "9")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMyHandler(t *testing.T) {
	h := NewBookingHandler(&fakeService{}, nil)
	rec := call(t, h.My, http.MethodGet, "/v1/bookings/my", "", 7)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"conflict", &booking.SeatConflictError{SeatIDs: []uint64{2, 3}}, http.StatusBadRequest,
			`{"error":"seats unavailable","unavailable":[2,3]}`},
		{"points", &pricing.InsufficientPointsError{Requested: 500, Available: 100}, http.StatusBadRequest,
			`{"error":"insufficient points","current":100,"requested":500}`},
		{"validation", &booking.ValidationError{Msg: "no price for seat types", Types: []string{"vip"}}, http.StatusBadRequest,
			`{"error":"no price for seat types","seat_types":["vip"]}`},
		{"already confirmed", booking.ErrAlreadyConfirmed, http.StatusBadRequest,
			`{"error":"booking already confirmed"}`},
		{"hold expired", booking.ErrHoldExpired, http.StatusBadRequest, `{"error":"hold expired"}`},
		{"not found", booking.ErrNotFoundOrForbidden, http.StatusNotFound, `{"error":"booking not found"}`},
		{"lost", booking.ErrConfirmationLost, http.StatusConflict,
			`{"error":"booking changed during confirmation"}`},
		{"cancel confirmed", booking.ErrCannotCancelConfirmed, http.StatusConflict,
			`{"error":"confirmed bookings cannot be cancelled"}`},
		{"storage", &booking.StorageError{Op: "hold", Err: errors.New("db down")}, http.StatusInternalServerError,
			`{"error":"internal error"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewBookingHandler(&fakeService{err: tt.err}, nil)
			rec := call(t, h.Hold, http.MethodPost, "/v1/bookings/hold", `{"show_time_id":1,"seat_ids":[2,3]}`, 7)
			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}

type fakeCatalog struct {
	movies   []model.Movie
	theaters []model.Theater
	rows     []repository.ShowTimeRow
	gotQuery repository.ShowTimeQuery
	gotNow   time.Time
	err      error
}

func (f *fakeCatalog) ListMovies(context.Context) ([]model.Movie, error) { return f.movies, f.err }

func (f *fakeCatalog) GetMovie(_ context.Context, id uint64) (model.Movie, error) {
	for _, m := range f.movies {
		if m.ID == id {
			return m, nil
		}
	}
	return model.Movie{}, repository.ErrNotFound
}

func (f *fakeCatalog) ListTheaters(context.Context) ([]model.Theater, error) {
	return f.theaters, f.err
}

func (f *fakeCatalog) SearchShowTimes(_ context.Context, q repository.ShowTimeQuery, now time.Time) ([]repository.ShowTimeRow, int64, error) {
	f.gotQuery, f.gotNow = q, now
	return f.rows, int64(len(f.rows)), f.err
}

func (f *fakeCatalog) GetShowTimeRow(_ context.Context, id uint64) (repository.ShowTimeRow, error) {
	for _, r := range f.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return repository.ShowTimeRow{}, repository.ErrNotFound
}

func newPublic(cat *fakeCatalog, now time.Time) *PublicHandler {
	return &PublicHandler{Catalog: cat, ShowTimes: cat, Clock: clock.NewManual(now), Log: zap.NewNop()}
}

func TestPublicMovies(t *testing.T) {
	release := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	cat := &fakeCatalog{movies: []model.Movie{{ID: 1, Title: "Dune", DurationMin: 155, ReleaseDate: release}}}
	h := newPublic(cat, time.Now())

	rec := call(t, h.ListMovies, http.MethodGet, "/v1/movies", "", 0)
	assert.JSONEq(t, `{"items":[{"id":1,"title":"Dune","duration_min":155,"release_date":"2024-12-01T00:00:00Z"}]}`, rec.Body.String())

	rec = call(t, h.GetMovie, http.MethodGet, "/v1/movies/2", "", 0, "id", "2")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	cat.err = errors.New("db down")
	rec = call(t, h.ListTheaters, http.MethodGet, "/v1/theaters", "", 0)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPublicShowTimes(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cat := &fakeCatalog{rows: []repository.ShowTimeRow{{ID: 4, MovieID: 1, MovieTitle: "Dune", TheaterID: 2, TheaterName: "Galaxy", RoomID: 10, ShowTime: now.Add(6 * time.Hour)}}}
	h := newPublic(cat, now)

	rec := call(t, h.SearchShowTimes, http.MethodGet, "/v1/show-times?movie_id=1&page_size=500", "", 0)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 1, body["total"])
	assert.EqualValues(t, 100, body["page_size"])
	assert.Equal(t, uint64(1), cat.gotQuery.MovieID)
	assert.Equal(t, now, cat.gotNow)

	rec = call(t, h.SearchShowTimes, http.MethodGet, "/v1/show-times?theater_id=-1", "", 0)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, h.GetShowTime, http.MethodGet, "/v1/show-times/4", "", 0, "id", "4")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Galaxy", decode(t, rec)["theater_name"])
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	rec := call(t, Health(pinger{}), http.MethodGet, "/healthz", "", 0)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = call(t, Health(pinger{err: errors.New("down")}), http.MethodGet, "/healthz", "", 0)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

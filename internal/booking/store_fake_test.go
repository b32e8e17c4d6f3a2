package booking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/pricing"
	"github.com/iliyamo/cinema-ticketing/internal/queue"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// fakeStore keeps everything in maps.  WithTx serializes transactions on
// one mutex, which stands in for the showtime row lock, and restores a
// snapshot when fn fails.
type fakeStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	showTimes    map[uint64]model.ShowTime
	seats        map[uint64]model.Seat
	prices       map[uint64]pricing.Table
	bookings     map[uint64]model.Booking
	bookingSeats map[uint64][]uint64
	wallets      map[uint64]model.Wallet
	nextID       uint64

	addSeatsErr    error
	applyWalletErr error
	confirmMisses  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		showTimes:    map[uint64]model.ShowTime{},
		seats:        map[uint64]model.Seat{},
		prices:       map[uint64]pricing.Table{},
		bookings:     map[uint64]model.Booking{},
		bookingSeats: map[uint64][]uint64{},
		wallets:      map[uint64]model.Wallet{},
	}
}

// seed creates showtime 1 in room 10 with seats 1..4 standard and 5 vip,
// and showtime 2 in room 20 with seat 9.
func seed(fs *fakeStore) {
	fs.showTimes[1] = model.ShowTime{ID: 1, RoomID: 10, MovieID: 1, TheaterID: 1}
	fs.showTimes[2] = model.ShowTime{ID: 2, RoomID: 20, MovieID: 1, TheaterID: 1}
	for i := uint64(1); i <= 4; i++ {
		fs.seats[i] = model.Seat{ID: i, RoomID: 10, SeatNumber: "A" + string(rune('0'+i)), SeatType: "standard"}
	}
	fs.seats[5] = model.Seat{ID: 5, RoomID: 10, SeatNumber: "B1", SeatType: "vip"}
	fs.seats[9] = model.Seat{ID: 9, RoomID: 20, SeatNumber: "C1", SeatType: "standard"}
	fs.prices[1] = pricing.Table{"standard": 100000, "vip": 150000}
	fs.prices[2] = pricing.Table{"standard": 80000}
	fs.wallets[7] = model.Wallet{UserID: 7, Points: 2000}
	fs.wallets[8] = model.Wallet{UserID: 8}
}

type fakeSnapshot struct {
	bookings     map[uint64]model.Booking
	bookingSeats map[uint64][]uint64
	nextID       uint64
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()

	f.mu.Lock()
	snap := fakeSnapshot{
		bookings:     make(map[uint64]model.Booking, len(f.bookings)),
		bookingSeats: make(map[uint64][]uint64, len(f.bookingSeats)),
		nextID:       f.nextID,
	}
	for k, v := range f.bookings {
		snap.bookings[k] = v
	}
	for k, v := range f.bookingSeats {
		snap.bookingSeats[k] = append([]uint64(nil), v...)
	}
	f.mu.Unlock()

	if err := fn(ctx); err != nil {
		f.mu.Lock()
		f.bookings = snap.bookings
		f.bookingSeats = snap.bookingSeats
		f.nextID = snap.nextID
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeStore) GetShowTime(_ context.Context, id uint64) (model.ShowTime, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.showTimes[id]
	if !ok {
		return model.ShowTime{}, repository.ErrNotFound
	}
	return st, nil
}

func (f *fakeStore) LockShowTime(ctx context.Context, id uint64) (model.ShowTime, error) {
	return f.GetShowTime(ctx, id)
}

func (f *fakeStore) SeatsByIDs(_ context.Context, ids []uint64) ([]model.Seat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Seat
	for _, id := range ids {
		if s, ok := f.seats[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// claimed returns seat id -> booking for every active booking of the
// showtime.  Callers hold f.mu.
func (f *fakeStore) claimed(showTimeID uint64, now time.Time) map[uint64]model.Booking {
	out := map[uint64]model.Booking{}
	for id, b := range f.bookings {
		if b.ShowTimeID != showTimeID || !b.IsActive(now) {
			continue
		}
		for _, seatID := range f.bookingSeats[id] {
			out[seatID] = b
		}
	}
	return out
}

func (f *fakeStore) SeatAvailability(_ context.Context, showTimeID uint64, now time.Time) ([]model.SeatAvailability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.showTimes[showTimeID]
	taken := f.claimed(showTimeID, now)
	var out []model.SeatAvailability
	for _, s := range f.seats {
		if s.RoomID != st.RoomID {
			continue
		}
		_, busy := taken[s.ID]
		out = append(out, model.SeatAvailability{ID: s.ID, SeatNumber: s.SeatNumber, SeatType: s.SeatType, IsAvailable: !busy})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) TicketPrices(_ context.Context, showTimeID uint64) (pricing.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := pricing.Table{}
	for k, v := range f.prices[showTimeID] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) ActiveClaims(_ context.Context, showTimeID uint64, now time.Time) ([]model.SeatClaim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.SeatClaim
	for seatID, b := range f.claimed(showTimeID, now) {
		out = append(out, model.SeatClaim{SeatID: seatID, BookingID: b.ID, Status: b.Status, ExpireAt: b.ExpireAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeatID < out[j].SeatID })
	return out, nil
}

func (f *fakeStore) ClaimedSeatIDs(_ context.Context, showTimeID uint64, seatIDs []uint64, now time.Time) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	taken := f.claimed(showTimeID, now)
	var out []uint64
	for _, id := range seatIDs {
		if _, ok := taken[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateBooking(_ context.Context, b *model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	b.ID = f.nextID
	f.bookings[b.ID] = *b
	return nil
}

func (f *fakeStore) AddBookingSeats(_ context.Context, bookingID uint64, seatIDs []uint64) error {
	if f.addSeatsErr != nil {
		return f.addSeatsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookingSeats[bookingID] = append(f.bookingSeats[bookingID], seatIDs...)
	return nil
}

func (f *fakeStore) GetBooking(_ context.Context, id uint64) (model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) BookingSeatIDs(_ context.Context, bookingID uint64) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.bookingSeats[bookingID]...), nil
}

func (f *fakeStore) ConfirmBooking(_ context.Context, c model.Confirmation) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[c.BookingID]
	if f.confirmMisses || !ok || b.UserID != c.UserID || b.Status != model.BookingHeld || !b.IsActive(c.Now) {
		return 0, nil
	}
	method := c.PaymentMethod
	b.Status = model.BookingConfirmed
	b.ExpireAt = nil
	b.TotalPrice = c.FinalPrice
	b.PaymentMethod = &method
	b.PointsUsed = c.PointsUsed
	b.DiscountAmount = c.Discount
	f.bookings[b.ID] = b
	return 1, nil
}

func (f *fakeStore) DeleteBookingSeats(_ context.Context, bookingID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.bookingSeats, bookingID)
	return nil
}

func (f *fakeStore) DeleteHeldBooking(_ context.Context, bookingID, userID uint64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok || b.UserID != userID || b.Status != model.BookingHeld {
		return 0, nil
	}
	delete(f.bookings, bookingID)
	return 1, nil
}

func (f *fakeStore) ListBookingsByUser(_ context.Context, userID uint64, now time.Time) ([]model.BookingDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.BookingDetail
	for id, b := range f.bookings {
		if b.UserID != userID || !b.IsActive(now) {
			continue
		}
		d := model.BookingDetail{
			ID: id, ShowTimeID: b.ShowTimeID, Status: b.Status, TotalPrice: b.TotalPrice,
			PaymentMethod: b.PaymentMethod, PointsUsed: b.PointsUsed, DiscountAmount: b.DiscountAmount,
			CreatedAt: b.CreatedAt, ExpireAt: b.ExpireAt,
		}
		for _, seatID := range f.bookingSeats[id] {
			d.Seats = append(d.Seats, f.seats[seatID].SeatNumber)
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeStore) ExpiredHolds(_ context.Context, now time.Time, limit int) ([]model.ExpiredHold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ExpiredHold
	for id, b := range f.bookings {
		if b.Status != model.BookingHeld || b.IsActive(now) {
			continue
		}
		out = append(out, model.ExpiredHold{BookingID: id, ShowTimeID: b.ShowTimeID, SeatIDs: append([]uint64(nil), f.bookingSeats[id]...)})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteExpiredBooking(_ context.Context, bookingID uint64, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok || b.Status != model.BookingHeld || b.IsActive(now) {
		return 0, nil
	}
	delete(f.bookings, bookingID)
	return 1, nil
}

func (f *fakeStore) GetWallet(_ context.Context, userID uint64) (model.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.wallets[userID]
	if !ok {
		return model.Wallet{}, repository.ErrNotFound
	}
	return w, nil
}

func (f *fakeStore) RedeemPoints(_ context.Context, userID uint64, points int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.wallets[userID]
	if !ok || w.Points < points {
		return 0, nil
	}
	w.Points -= points
	f.wallets[userID] = w
	return 1, nil
}

func (f *fakeStore) ApplyWallet(_ context.Context, userID uint64, pointsDelta int64, spent float64) error {
	if f.applyWalletErr != nil {
		return f.applyWalletErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	w := f.wallets[userID]
	w.UserID = userID
	w.Points += pointsDelta
	w.MoneySpent += spent
	f.wallets[userID] = w
	return nil
}

func (f *fakeStore) activeBookingsFor(showTimeID, seatID uint64, now time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, b := range f.bookings {
		if b.ShowTimeID != showTimeID || !b.IsActive(now) {
			continue
		}
		for _, s := range f.bookingSeats[id] {
			if s == seatID {
				n++
			}
		}
	}
	return n
}

type broadcast struct {
	showTimeID uint64
	seats      []model.SeatDelta
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []broadcast
	err  error
}

func (r *recordingNotifier) Broadcast(_ context.Context, showTimeID uint64, seats []model.SeatDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, broadcast{showTimeID: showTimeID, seats: seats})
	return r.err
}

func (r *recordingNotifier) all() []broadcast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]broadcast(nil), r.sent...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingEvent
}

func (r *recordingPublisher) PublishBookingEvent(_ context.Context, ev queue.BookingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

var errBoom = errors.New("boom")

var (
	_ Store = (*fakeStore)(nil)
	_ Store = (*repository.Store)(nil)
)

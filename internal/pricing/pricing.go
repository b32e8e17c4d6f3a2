// Package pricing holds the ticket price lookup and the loyalty points
// formulas.  Everything here is pure; callers supply the price table and
// balances they loaded.
package pricing

import (
	"errors"
	"fmt"
	"sort"
)

const (
	// PointsBlock is the smallest redeemable amount of points.
	PointsBlock int64 = 1000
	// BlockValue is the discount granted per redeemed block.
	BlockValue int64 = 5000
	// EarnSpend is the spend that earns one EarnBlock of points.
	EarnSpend int64 = 80000
	// EarnBlock is the number of points earned per full EarnSpend.
	EarnBlock int64 = 1500
)

// Table maps a seat type to its unit price for one showtime.
type Table map[string]int64

// Has reports whether a price is defined for seatType.
func (t Table) Has(seatType string) bool {
	_, ok := t[seatType]
	return ok
}

// PriceFor returns the unit price of seatType.  A missing entry is priced
// at 0; callers that must not sell unpriced seats check Missing first.
func PriceFor(t Table, seatType string) int64 {
	return t[seatType]
}

// TotalFor sums the unit prices of the given seat types.
func TotalFor(t Table, seatTypes []string) int64 {
	var total int64
	for _, st := range seatTypes {
		total += PriceFor(t, st)
	}
	return total
}

// Missing returns the distinct seat types that have no price, sorted.
func Missing(t Table, seatTypes []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, st := range seatTypes {
		if t.Has(st) {
			continue
		}
		if _, dup := seen[st]; dup {
			continue
		}
		seen[st] = struct{}{}
		out = append(out, st)
	}
	sort.Strings(out)
	return out
}

// DiscountFor converts pointsToUse into a discount on total.  Points are
// redeemed in whole blocks.  When the discount would exceed the total it is
// clamped to the total and only the blocks needed to cover it are charged.
// It returns the discount and the points actually charged.
func DiscountFor(pointsToUse, total int64) (discount, pointsUsed int64) {
	if pointsToUse <= 0 {
		return 0, 0
	}
	if total < 0 {
		total = 0
	}
	discount = (pointsToUse / PointsBlock) * BlockValue
	pointsUsed = pointsToUse
	if discount > total {
		discount = total
		pointsUsed = ceilDiv(discount, BlockValue) * PointsBlock
	}
	return discount, pointsUsed
}

// PointsEarnedFor returns the points earned for paying finalPrice.
func PointsEarnedFor(finalPrice int64) int64 {
	if finalPrice <= 0 {
		return 0
	}
	return (finalPrice / EarnSpend) * EarnBlock
}

// ErrInsufficientPoints matches any *InsufficientPointsError.
var ErrInsufficientPoints = errors.New("insufficient points")

// InsufficientPointsError is returned when a redemption asks for more points
// than the user holds.
type InsufficientPointsError struct {
	Requested int64
	Available int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: requested %d, available %d", e.Requested, e.Available)
}

func (e *InsufficientPointsError) Is(target error) bool { return target == ErrInsufficientPoints }

// CheckPoints fails with *InsufficientPointsError when pointsToUse exceeds
// the balance.
func CheckPoints(currentPoints, pointsToUse int64) error {
	if pointsToUse > currentPoints {
		return &InsufficientPointsError{Requested: pointsToUse, Available: currentPoints}
	}
	return nil
}

// Quote is the outcome of pricing a confirmation.
type Quote struct {
	PointsUsed     int64
	Discount       int64
	FinalPrice     int64
	PointsEarned   int64
	NewTotalPoints int64
}

// Confirm prices a confirmation of a booking worth total for a user holding
// currentPoints who wants to redeem pointsToUse.  It fails with
// *InsufficientPointsError before computing anything when the balance is
// too low.
func Confirm(total, currentPoints, pointsToUse int64) (Quote, error) {
	if err := CheckPoints(currentPoints, pointsToUse); err != nil {
		return Quote{}, err
	}
	discount, used := DiscountFor(pointsToUse, total)
	final := total - discount
	earned := PointsEarnedFor(final)
	return Quote{
		PointsUsed:     used,
		Discount:       discount,
		FinalPrice:     final,
		PointsEarned:   earned,
		NewTotalPoints: currentPoints - used + earned,
	}, nil
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

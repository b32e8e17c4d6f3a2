package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// UserRepo reads and updates the loyalty columns of the 'users' table.
// Accounts themselves are created by the identity provider.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// GetWallet fetches the points balance and total spend of a user.
func (r *UserRepo) GetWallet(ctx context.Context, userID uint64) (model.Wallet, error) {
	w := model.Wallet{UserID: userID}
	err := conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT points, moneySpent FROM users WHERE id=? LIMIT 1",
		userID).Scan(&w.Points, &w.MoneySpent)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Wallet{}, ErrNotFound
	}
	return w, err
}

// RedeemPoints subtracts points from the balance only when the balance
// still covers them.  Zero rows affected means it did not.
func (r *UserRepo) RedeemPoints(ctx context.Context, userID uint64, points int64) (int64, error) {
	res, err := conn(ctx, r.DB).ExecContext(ctx,
		"UPDATE users SET points = points - ? WHERE id=? AND points >= ?",
		points, userID, points)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ApplyWallet adds pointsDelta to the balance and spent to the total
// spend in one relative update, so concurrent confirmations of the same
// user do not overwrite each other.
func (r *UserRepo) ApplyWallet(ctx context.Context, userID uint64, pointsDelta int64, spent float64) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx,
		"UPDATE users SET points = points + ?, moneySpent = moneySpent + ? WHERE id=?",
		pointsDelta, spent, userID)
	return err
}

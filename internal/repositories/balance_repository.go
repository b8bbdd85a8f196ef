package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BalanceRepository struct {
	pool *pgxpool.Pool
}

func NewBalanceRepository(pool *pgxpool.Pool) *BalanceRepository {
	return &BalanceRepository{pool: pool}
}

// Get returns the creator's released earnings, zero when nothing was credited yet.
func (r *BalanceRepository) Get(ctx context.Context, creatorID string) (int64, error) {
	var amount int64
	err := r.pool.QueryRow(ctx, `SELECT amount FROM creator_balances WHERE creator_id = $1`, creatorID).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return amount, err
}

func creditBalance(ctx context.Context, q DBTX, creatorID string, amount int64) error {
	_, err := q.Exec(ctx, `
		INSERT INTO creator_balances (creator_id, amount, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (creator_id) DO UPDATE
		SET amount = creator_balances.amount + EXCLUDED.amount, updated_at = NOW()
	`, creatorID, amount)
	return err
}

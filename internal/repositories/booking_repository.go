package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"visionmatch/internal/models"
)

const bookingColumns = `id, request_id, payment_id, client_id, creator_id, final_amount,
	deliverables, status, escrow_status, dispute_reason, created_at, updated_at`

type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// GetByID returns nil, nil when the booking does not exist.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	err := scanBooking(r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id), &b)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepository) ListByClientID(ctx context.Context, clientID string) ([]models.Booking, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE client_id = $1 ORDER BY created_at DESC`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := []models.Booking{}
	for rows.Next() {
		var b models.Booking
		if err := scanBooking(rows, &b); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// Dispute flags a confirmed booking. Escrow stays held.
func (r *BookingRepository) Dispute(ctx context.Context, id, reason string) (*models.Booking, error) {
	var out *models.Booking
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var b models.Booking
		err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id), &b)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("booking %s: %w", id, ErrNotFound)
			}
			return err
		}
		if b.Status != models.BookingConfirmed {
			return fmt.Errorf("%w: booking %s is %s", ErrPaymentState, id, b.Status)
		}
		b.Status = models.BookingDisputed
		b.DisputeReason = reason
		if err := updateBooking(ctx, tx, &b); err != nil {
			return err
		}
		out = &b
		return nil
	})
	return out, err
}

func getBookingByRequest(ctx context.Context, q DBTX, requestID string) (*models.Booking, error) {
	var b models.Booking
	err := scanBooking(q.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE request_id = $1 FOR UPDATE`, requestID), &b)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("booking for %s: %w", requestID, ErrNotFound)
		}
		return nil, err
	}
	return &b, nil
}

func insertBooking(ctx context.Context, q DBTX, b *models.Booking) error {
	query := `INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := q.Exec(ctx, query,
		b.ID,
		b.RequestID,
		b.PaymentID,
		b.ClientID,
		b.CreatorID,
		b.FinalAmount,
		b.Deliverables,
		b.Status,
		b.EscrowStatus,
		b.DisputeReason,
		b.CreatedAt,
		b.UpdatedAt,
	)
	return err
}

func updateBooking(ctx context.Context, q DBTX, b *models.Booking) error {
	b.UpdatedAt = time.Now().UTC()
	_, err := q.Exec(ctx,
		`UPDATE bookings SET status = $2, escrow_status = $3, dispute_reason = $4, updated_at = $5 WHERE id = $1`,
		b.ID, b.Status, b.EscrowStatus, b.DisputeReason, b.UpdatedAt)
	return err
}

func scanBooking(row pgx.Row, b *models.Booking) error {
	return row.Scan(
		&b.ID,
		&b.RequestID,
		&b.PaymentID,
		&b.ClientID,
		&b.CreatorID,
		&b.FinalAmount,
		&b.Deliverables,
		&b.Status,
		&b.EscrowStatus,
		&b.DisputeReason,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
}

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

var ErrPaymentState = errors.New("payment is not in the required state")

const paymentColumns = `id, request_id, client_id, creator_id, base_amount, platform_fee, gst,
	amount, currency, status, gateway_order_id, gateway_payment_id, description,
	created_at, updated_at, completed_at`

// BookingFunc builds the booking created when a payment enters escrow.
type BookingFunc func(req *models.ProjectRequest, p *models.Payment) *models.Booking

type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	p.Prepare()

	query := `INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.RequestID,
		p.ClientID,
		p.CreatorID,
		p.BaseAmount,
		p.PlatformFee,
		p.GST,
		p.Amount,
		p.Currency,
		p.Status,
		p.GatewayOrderID,
		p.GatewayPaymentID,
		p.Description,
		p.CreatedAt,
		p.UpdatedAt,
		p.CompletedAt,
	)
	return err
}

// GetByID returns nil, nil when no payment matches.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

func (r *PaymentRepository) GetByGatewayOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE gateway_order_id = $1 LIMIT 1`, orderID)
}

// LatestByRequestID returns the most recently created payment for a request.
func (r *PaymentRepository) LatestByRequestID(ctx context.Context, requestID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE request_id = $1
		ORDER BY created_at DESC LIMIT 1`
	return r.getOne(ctx, query, requestID)
}

func (r *PaymentRepository) getOne(ctx context.Context, query string, arg string) (*models.Payment, error) {
	var p models.Payment
	if err := scanPayment(r.pool.QueryRow(ctx, query, arg), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Escrow marks a pending payment as held, creates its booking and moves the
// request to paid, all in one transaction.
func (r *PaymentRepository) Escrow(ctx context.Context, paymentID, gatewayPaymentID string, build BookingFunc) (*models.Payment, *models.Booking, error) {
	var (
		payment *models.Payment
		booking *models.Booking
	)
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		payment, err = lockPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != models.PaymentPending {
			return fmt.Errorf("%w: %s is %s", ErrPaymentState, payment.ID, payment.Status)
		}
		req, err := getRequest(ctx, tx, payment.RequestID, true)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		payment.Status = models.PaymentEscrowed
		payment.GatewayPaymentID = &gatewayPaymentID
		payment.UpdatedAt = now
		_, err = tx.Exec(ctx,
			`UPDATE payments SET status = $2, gateway_payment_id = $3, updated_at = $4 WHERE id = $1`,
			payment.ID, payment.Status, payment.GatewayPaymentID, now)
		if err != nil {
			return err
		}

		booking = build(req, payment)
		booking.Prepare()
		if err := insertBooking(ctx, tx, booking); err != nil {
			return err
		}

		req.Status = models.StatusPaid
		req.PaymentID = &payment.ID
		req.BookingID = &booking.ID
		return updateRequest(ctx, tx, req)
	})
	if err != nil {
		return nil, nil, err
	}
	return payment, booking, nil
}

// Release completes an escrowed payment: the booking is released, the creator
// balance is credited with the base amount and the request is completed. A
// disputed booking keeps its escrow held.
func (r *PaymentRepository) Release(ctx context.Context, paymentID string) (*models.Payment, *models.Booking, error) {
	var (
		payment *models.Payment
		booking *models.Booking
	)
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		payment, err = lockPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != models.PaymentEscrowed {
			return fmt.Errorf("%w: payment must be in escrow, current: %s", ErrPaymentState, payment.Status)
		}
		booking, err = getBookingByRequest(ctx, tx, payment.RequestID)
		if err != nil {
			return err
		}
		if booking.Status == models.BookingDisputed {
			return fmt.Errorf("%w: booking %s is disputed", ErrPaymentState, booking.ID)
		}

		now := time.Now().UTC()
		payment.Status = models.PaymentCompleted
		payment.CompletedAt = &now
		payment.UpdatedAt = now
		_, err = tx.Exec(ctx,
			`UPDATE payments SET status = $2, completed_at = $3, updated_at = $3 WHERE id = $1`,
			payment.ID, payment.Status, now)
		if err != nil {
			return err
		}

		booking.Status = models.BookingCompleted
		booking.EscrowStatus = models.EscrowReleased
		if err := updateBooking(ctx, tx, booking); err != nil {
			return err
		}

		// The creator receives the agreed base price; platform fee and GST
		// stay with the platform.
		if err := creditBalance(ctx, tx, payment.CreatorID, payment.BaseAmount); err != nil {
			return err
		}

		req, err := getRequest(ctx, tx, payment.RequestID, true)
		if err != nil {
			return err
		}
		req.Status = models.StatusCompleted
		return updateRequest(ctx, tx, req)
	})
	if err != nil {
		return nil, nil, err
	}
	return payment, booking, nil
}

func lockPayment(ctx context.Context, q DBTX, id string) (*models.Payment, error) {
	var p models.Payment
	err := scanPayment(q.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id), &p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payment %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

func scanPayment(row pgx.Row, p *models.Payment) error {
	return row.Scan(
		&p.ID,
		&p.RequestID,
		&p.ClientID,
		&p.CreatorID,
		&p.BaseAmount,
		&p.PlatformFee,
		&p.GST,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.GatewayOrderID,
		&p.GatewayPaymentID,
		&p.Description,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.CompletedAt,
	)
}

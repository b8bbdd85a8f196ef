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

const requestColumns = `id, client_id, creator_id, status, package, is_inquiry, service_type,
	category, event_date, duration, location, budget, message, creator_name,
	creator_specialisation, creator_starting_price, creator_message, current_offer,
	final_offer, payment_id, booking_id, version, created_at, updated_at`

type RequestRepository struct {
	pool *pgxpool.Pool
}

func NewRequestRepository(pool *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{pool: pool}
}

func (r *RequestRepository) Create(ctx context.Context, req *models.ProjectRequest) error {
	req.Prepare()

	query := `
		INSERT INTO project_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`
	_, err := r.pool.Exec(ctx, query,
		req.ID,
		req.ClientID,
		req.CreatorID,
		req.Status,
		req.Package,
		req.IsInquiry,
		req.ServiceType,
		req.Category,
		req.EventDate,
		req.Duration,
		req.Location,
		req.Budget,
		req.Message,
		req.CreatorName,
		req.CreatorSpecialisation,
		req.CreatorStartingPrice,
		req.CreatorMessage,
		req.CurrentOffer,
		req.FinalOffer,
		req.PaymentID,
		req.BookingID,
		req.Version,
		req.CreatedAt,
		req.UpdatedAt,
	)
	return err
}

// GetByID returns nil, nil when the request does not exist.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.ProjectRequest, error) {
	req, err := getRequest(ctx, r.pool, id, false)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return req, err
}

func (r *RequestRepository) ListByClientID(ctx context.Context, clientID string) ([]models.ProjectRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM project_requests WHERE client_id = $1 ORDER BY created_at`
	return r.list(ctx, query, clientID)
}

// ListByCreatorID returns the creator's requests newest first.
func (r *RequestRepository) ListByCreatorID(ctx context.Context, creatorID string) ([]models.ProjectRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM project_requests WHERE creator_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, creatorID)
}

func (r *RequestRepository) list(ctx context.Context, query string, args ...any) ([]models.ProjectRequest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := []models.ProjectRequest{}
	for rows.Next() {
		var req models.ProjectRequest
		if err := scanRequest(rows, &req); err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// Mutate locks the request row, applies fn and persists the result with a
// bumped version. Returning an error from fn aborts without writing.
func (r *RequestRepository) Mutate(ctx context.Context, id string, fn func(req *models.ProjectRequest) error) (*models.ProjectRequest, error) {
	var out *models.ProjectRequest
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		req, err := getRequest(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := fn(req); err != nil {
			return err
		}
		if err := updateRequest(ctx, tx, req); err != nil {
			return err
		}
		out = req
		return nil
	})
	return out, err
}

func getRequest(ctx context.Context, q DBTX, id string, forUpdate bool) (*models.ProjectRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM project_requests WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var req models.ProjectRequest
	if err := scanRequest(q.QueryRow(ctx, query, id), &req); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("project request %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &req, nil
}

// updateRequest writes the mutable columns and increments version, guarded by
// the version the caller read.
func updateRequest(ctx context.Context, q DBTX, req *models.ProjectRequest) error {
	query := `
		UPDATE project_requests SET
			status = $3, current_offer = $4, final_offer = $5, creator_message = $6,
			payment_id = $7, booking_id = $8, version = version + 1, updated_at = $9
		WHERE id = $1 AND version = $2
	`
	now := time.Now().UTC()
	tag, err := q.Exec(ctx, query,
		req.ID,
		req.Version,
		req.Status,
		req.CurrentOffer,
		req.FinalOffer,
		req.CreatorMessage,
		req.PaymentID,
		req.BookingID,
		now,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project request %s: %w", req.ID, ErrVersionConflict)
	}
	req.Version++
	req.UpdatedAt = now
	return nil
}

func scanRequest(row pgx.Row, req *models.ProjectRequest) error {
	return row.Scan(
		&req.ID,
		&req.ClientID,
		&req.CreatorID,
		&req.Status,
		&req.Package,
		&req.IsInquiry,
		&req.ServiceType,
		&req.Category,
		&req.EventDate,
		&req.Duration,
		&req.Location,
		&req.Budget,
		&req.Message,
		&req.CreatorName,
		&req.CreatorSpecialisation,
		&req.CreatorStartingPrice,
		&req.CreatorMessage,
		&req.CurrentOffer,
		&req.FinalOffer,
		&req.PaymentID,
		&req.BookingID,
		&req.Version,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
}

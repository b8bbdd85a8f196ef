package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"visionmatch/internal/models"
)

const messageColumns = `id, request_id, sender, sender_id, type, text, price, deliverables, status, created_at`

// DecideFunc inspects the locked request and its feed and returns the message
// to append. It may modify req; the changes are saved with the message.
type DecideFunc func(req *models.ProjectRequest, feed []models.NegotiationMessage) (*models.NegotiationMessage, error)

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// ListByRequestID returns the feed oldest first. A non-empty after limits the
// result to messages appended after that message id.
func (r *MessageRepository) ListByRequestID(ctx context.Context, requestID, after string) ([]models.NegotiationMessage, error) {
	return listMessages(ctx, r.pool, requestID, after)
}

// AppendMessage locks the request row, lets decide build the next message from
// the current feed and stores both the message and the updated request in one
// transaction.
func (r *MessageRepository) AppendMessage(ctx context.Context, requestID string, decide DecideFunc) (*models.NegotiationMessage, *models.ProjectRequest, error) {
	var (
		msg *models.NegotiationMessage
		req *models.ProjectRequest
	)
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		req, err = getRequest(ctx, tx, requestID, true)
		if err != nil {
			return err
		}
		feed, err := listMessages(ctx, tx, requestID, "")
		if err != nil {
			return err
		}
		msg, err = decide(req, feed)
		if err != nil {
			return err
		}
		msg.RequestID = requestID
		msg.Prepare()
		if err := insertMessage(ctx, tx, msg); err != nil {
			return err
		}
		return updateRequest(ctx, tx, req)
	})
	if err != nil {
		return nil, nil, err
	}
	return msg, req, nil
}

func listMessages(ctx context.Context, q DBTX, requestID, after string) ([]models.NegotiationMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM negotiation_messages WHERE request_id = $1`
	args := []any{requestID}
	if after != "" {
		query += ` AND id > $2`
		args = append(args, after)
	}
	query += ` ORDER BY id`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.NegotiationMessage{}
	for rows.Next() {
		var m models.NegotiationMessage
		err := rows.Scan(
			&m.ID,
			&m.RequestID,
			&m.Sender,
			&m.SenderID,
			&m.Type,
			&m.Text,
			&m.Price,
			&m.Deliverables,
			&m.Status,
			&m.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func insertMessage(ctx context.Context, q DBTX, m *models.NegotiationMessage) error {
	query := `INSERT INTO negotiation_messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := q.Exec(ctx, query,
		m.ID,
		m.RequestID,
		m.Sender,
		m.SenderID,
		m.Type,
		m.Text,
		m.Price,
		m.Deliverables,
		m.Status,
		m.Timestamp,
	)
	return err
}

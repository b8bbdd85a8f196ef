package services

import (
	"context"

	"github.com/google/uuid"

	"visionmatch/internal/models"
	"visionmatch/internal/repositories"
	"visionmatch/internal/utils"
)

type RequestStore interface {
	Create(ctx context.Context, req *models.ProjectRequest) error
	GetByID(ctx context.Context, id string) (*models.ProjectRequest, error)
	ListByClientID(ctx context.Context, clientID string) ([]models.ProjectRequest, error)
	ListByCreatorID(ctx context.Context, creatorID string) ([]models.ProjectRequest, error)
	Mutate(ctx context.Context, id string, fn func(req *models.ProjectRequest) error) (*models.ProjectRequest, error)
}

type MessageStore interface {
	ListByRequestID(ctx context.Context, requestID, after string) ([]models.NegotiationMessage, error)
	AppendMessage(ctx context.Context, requestID string, decide repositories.DecideFunc) (*models.NegotiationMessage, *models.ProjectRequest, error)
}

type PaymentStore interface {
	Create(ctx context.Context, p *models.Payment) error
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	GetByGatewayOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	LatestByRequestID(ctx context.Context, requestID string) (*models.Payment, error)
	Escrow(ctx context.Context, paymentID, gatewayPaymentID string, build repositories.BookingFunc) (*models.Payment, *models.Booking, error)
	Release(ctx context.Context, paymentID string) (*models.Payment, *models.Booking, error)
}

type BookingStore interface {
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	ListByClientID(ctx context.Context, clientID string) ([]models.Booking, error)
	Dispute(ctx context.Context, id, reason string) (*models.Booking, error)
}

type BalanceStore interface {
	Get(ctx context.Context, creatorID string) (int64, error)
}

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
}

type TokenBlacklist interface {
	Blacklist(ctx context.Context, jti string) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// Caller is the authenticated identity behind a request.
type Caller struct {
	UserID string
	Email  string
	Role   models.Role
}

// Is reports whether id names the caller, by user id or e-mail.
func (c Caller) Is(id string) bool {
	return utils.SameIdentity(id, c.UserID) || utils.SameIdentity(id, c.Email)
}

// participant resolves which side of the request the caller is on.
func participant(req *models.ProjectRequest, c Caller) (models.Sender, error) {
	switch {
	case c.Is(req.ClientID):
		return models.SenderClient, nil
	case c.Is(req.CreatorID):
		return models.SenderCreator, nil
	}
	return "", ErrForbidden
}

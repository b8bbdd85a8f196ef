package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"visionmatch/internal/models"
	"visionmatch/internal/negotiation"
	"visionmatch/internal/responses"
	"visionmatch/internal/services"
	"visionmatch/internal/utils"
)

type AuthService interface {
	Register(ctx context.Context, user *models.User) (*utils.TokenPair, error)
	Login(ctx context.Context, email, password string) (*models.User, *utils.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*utils.TokenPair, error)
	Logout(ctx context.Context, jti string) error
	Me(ctx context.Context, userID string) (*models.User, error)
}

type RequestService interface {
	Create(ctx context.Context, caller services.Caller, in services.CreateRequestInput) (*models.ProjectRequest, error)
	Get(ctx context.Context, caller services.Caller, id string) (*models.ProjectRequest, error)
	ListByClient(ctx context.Context, caller services.Caller, clientID string) ([]models.ProjectRequest, error)
	ListByCreator(ctx context.Context, caller services.Caller, creatorID string) ([]models.ProjectRequest, error)
	Respond(ctx context.Context, caller services.Caller, id string, action negotiation.Action, message string) (*services.RespondResult, error)
}

type NegotiationService interface {
	ListMessages(ctx context.Context, caller services.Caller, requestID, after string, knownVersion int64) (*services.Feed, error)
	PostMessage(ctx context.Context, caller services.Caller, requestID string, in services.PostMessageInput) (*models.NegotiationMessage, error)
	GetNegotiation(ctx context.Context, caller services.Caller, requestID string) (*services.NegotiationView, error)
}

type PaymentService interface {
	CreateOrder(ctx context.Context, caller services.Caller, requestID string) (*services.Order, error)
	VerifyPayment(ctx context.Context, caller services.Caller, in services.VerifyInput) (*services.Escrowed, error)
	StatusByRequest(ctx context.Context, caller services.Caller, requestID string) (*models.Payment, error)
	Status(ctx context.Context, caller services.Caller, id string) (*models.Payment, error)
	Release(ctx context.Context, caller services.Caller, paymentID string) (*services.Escrowed, error)
	Booking(ctx context.Context, caller services.Caller, id string) (*models.Booking, error)
	ClientBookings(ctx context.Context, caller services.Caller, clientID string) ([]models.Booking, error)
	ConfirmEvent(ctx context.Context, caller services.Caller, bookingID string, confirmed bool, reason string) (*models.Booking, error)
	Balance(ctx context.Context, caller services.Caller, creatorID string) (int64, error)
}

// currentCaller reads the identity the Authenticate middleware stored.
func currentCaller(c *gin.Context) (services.Caller, bool) {
	userID := c.GetString("userId")
	if userID == "" {
		return services.Caller{}, false
	}
	return services.Caller{
		UserID: userID,
		Email:  c.GetString("email"),
		Role:   models.Role(c.GetString("role")),
	}, true
}

// mustCaller writes a 401 and returns false when no identity is present.
func mustCaller(c *gin.Context) (services.Caller, bool) {
	caller, ok := currentCaller(c)
	if !ok {
		responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
	}
	return caller, ok
}

// fail maps a service error onto a status code and writes it.
func fail(c *gin.Context, err error, message string) {
	var violation *negotiation.ContentViolation
	switch {
	case errors.As(err, &violation):
		responses.Fail(c, http.StatusUnprocessableEntity, err, violation.Message)
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrSignature),
		errors.Is(err, negotiation.ErrInvalidPrice),
		errors.Is(err, negotiation.ErrMissingDeliverables),
		errors.Is(err, negotiation.ErrEmptyMessage),
		errors.Is(err, negotiation.ErrUnknownAction):
		responses.Fail(c, http.StatusBadRequest, err, message)
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInvalidToken):
		responses.Fail(c, http.StatusUnauthorized, err, message)
	case errors.Is(err, services.ErrForbidden):
		responses.Fail(c, http.StatusForbidden, err, "Access denied")
	case errors.Is(err, services.ErrNotFound):
		responses.Fail(c, http.StatusNotFound, err, message)
	case errors.Is(err, services.ErrConflict),
		errors.Is(err, services.ErrUserExists),
		errors.Is(err, negotiation.ErrStaleOffer),
		errors.Is(err, negotiation.ErrNoOffer),
		errors.Is(err, negotiation.ErrOwnOffer),
		errors.Is(err, negotiation.ErrIllegalTransition),
		errors.Is(err, negotiation.ErrMessageNotAllowed):
		responses.Fail(c, http.StatusConflict, err, message)
	case errors.Is(err, services.ErrGateway):
		responses.Fail(c, http.StatusBadGateway, err, message)
	case errors.Is(err, services.ErrPaymentsDisabled):
		responses.Fail(c, http.StatusServiceUnavailable, err, message)
	default:
		responses.Fail(c, http.StatusInternalServerError, err, message)
	}
}

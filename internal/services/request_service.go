package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"visionmatch/internal/metrics"
	"visionmatch/internal/models"
	"visionmatch/internal/negotiation"
	"visionmatch/internal/notify"
	"visionmatch/internal/repositories"
)

const notifyTimeout = 10 * time.Second

type RequestService struct {
	requests RequestStore
	users    UserStore
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	pending  sync.WaitGroup
}

func NewRequestService(requests RequestStore, users UserStore, notifier notify.Notifier, m *metrics.Metrics, logger *slog.Logger) *RequestService {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestService{
		requests: requests,
		users:    users,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// CreateRequestInput is the body of a new project request or inquiry.
type CreateRequestInput struct {
	CreatorID             string             `json:"creatorId" binding:"required"`
	Package               *models.Package    `json:"package"`
	IsInquiry             bool               `json:"isInquiry"`
	ServiceType           string             `json:"serviceType"`
	Category              string             `json:"category"`
	EventDate             string             `json:"eventDate"`
	Duration              string             `json:"duration"`
	Location              string             `json:"location"`
	Budget                models.PriceLabel  `json:"budget"`
	Message               string             `json:"message"`
	CreatorName           string             `json:"creatorName"`
	CreatorSpecialisation string             `json:"creatorSpecialisation"`
	CreatorStartingPrice  *models.PriceLabel `json:"creatorStartingPrice"`
}

// Create files a request from the caller to a creator. It always starts pending.
func (s *RequestService) Create(ctx context.Context, caller Caller, in CreateRequestInput) (*models.ProjectRequest, error) {
	creatorID := strings.TrimSpace(in.CreatorID)
	if creatorID == "" {
		return nil, fmt.Errorf("%w: creatorId is required", ErrInvalidInput)
	}
	if caller.Is(creatorID) {
		return nil, fmt.Errorf("%w: cannot send a request to yourself", ErrInvalidInput)
	}
	if !in.IsInquiry && (in.Package == nil || strings.TrimSpace(in.Package.Name) == "") {
		return nil, fmt.Errorf("%w: a package is required unless this is an inquiry", ErrInvalidInput)
	}

	req := &models.ProjectRequest{
		ClientID:              caller.UserID,
		CreatorID:             creatorID,
		Status:                models.StatusPendingCreator,
		Package:               in.Package,
		IsInquiry:             in.IsInquiry,
		ServiceType:           in.ServiceType,
		Category:              in.Category,
		EventDate:             in.EventDate,
		Duration:              in.Duration,
		Location:              in.Location,
		Budget:                string(in.Budget),
		Message:               in.Message,
		CreatorName:           in.CreatorName,
		CreatorSpecialisation: in.CreatorSpecialisation,
	}
	if in.CreatorStartingPrice != nil {
		if p, ok := negotiation.ParsePrice(string(*in.CreatorStartingPrice)); ok {
			req.CreatorStartingPrice = &p
		}
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	s.logger.Info("project request created", "request_id", req.ID, "creator_id", req.CreatorID, "inquiry", req.IsInquiry)
	return req, nil
}

// Get returns a request the caller takes part in.
func (s *RequestService) Get(ctx context.Context, caller Caller, id string) (*models.ProjectRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := participant(req, caller); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *RequestService) ListByClient(ctx context.Context, caller Caller, clientID string) ([]models.ProjectRequest, error) {
	if !caller.Is(clientID) {
		return nil, ErrForbidden
	}
	requests, err := s.requests.ListByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list client requests: %w", err)
	}
	return requests, nil
}

// ListByCreator returns the creator's incoming requests, newest first.
func (s *RequestService) ListByCreator(ctx context.Context, caller Caller, creatorID string) ([]models.ProjectRequest, error) {
	if !caller.Is(creatorID) {
		return nil, ErrForbidden
	}
	requests, err := s.requests.ListByCreatorID(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list creator requests: %w", err)
	}
	return requests, nil
}

type RespondResult struct {
	Request  *models.ProjectRequest `json:"request"`
	ChatPath string                 `json:"chatPath,omitempty"`
}

// Respond applies the creator's accept, decline or negotiate action.
func (s *RequestService) Respond(ctx context.Context, caller Caller, id string, action negotiation.Action, message string) (*RespondResult, error) {
	req, err := s.requests.Mutate(ctx, id, func(req *models.ProjectRequest) error {
		side, err := participant(req, caller)
		if err != nil {
			return err
		}
		if side != models.SenderCreator {
			return fmt.Errorf("%w: only the creator can respond", ErrForbidden)
		}
		next, err := negotiation.Respond(req.Status, action)
		if err != nil {
			return err
		}
		req.Status = next
		if m := strings.TrimSpace(message); m != "" {
			req.CreatorMessage = m
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	s.logger.Info("creator responded", "request_id", req.ID, "action", action, "status", req.Status)

	result := &RespondResult{Request: req}
	switch action {
	case negotiation.ActionNegotiate:
		result.ChatPath = "/creator/requests/" + req.ID + "/chat"
	case negotiation.ActionAccept, negotiation.ActionDecline:
		s.notifyClient(*req, action)
	}
	return result, nil
}

// notifyClient e-mails the client in the background. Failures are logged and
// counted only; the response has already been decided.
func (s *RequestService) notifyClient(req models.ProjectRequest, action negotiation.Action) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		to, err := s.recipient(ctx, req.ClientID)
		if err != nil {
			s.logger.Warn("no recipient for notification", "request_id", req.ID, "error", err)
			s.metrics.NotificationFailed()
			return
		}

		email := notify.Email{
			To:        to,
			RequestID: req.ID,
			Kind:      string(action),
		}
		creator := req.CreatorName
		if creator == "" {
			creator = "The creator"
		}
		if action == negotiation.ActionAccept {
			email.Subject = "Your project request was accepted"
			email.Body = fmt.Sprintf("%s accepted your request. You can now proceed to payment.", creator)
		} else {
			email.Subject = "Your project request was declined"
			email.Body = fmt.Sprintf("%s declined your request.", creator)
		}
		if req.CreatorMessage != "" {
			email.Body += "\n\n" + req.CreatorMessage
		}

		if err := s.notifier.Notify(ctx, email); err != nil {
			s.logger.Warn("notification failed", "request_id", req.ID, "kind", action, "error", err)
			s.metrics.NotificationFailed()
		}
	}()
}

func (s *RequestService) recipient(ctx context.Context, clientID string) (string, error) {
	if strings.Contains(clientID, "@") {
		return clientID, nil
	}
	if s.users == nil {
		return "", errors.New("user lookup not configured")
	}
	id, err := uuid.Parse(clientID)
	if err != nil {
		return "", fmt.Errorf("client id %q: %w", clientID, err)
	}
	user, err := s.users.FindUserByID(ctx, id)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", fmt.Errorf("client %s: %w", clientID, ErrNotFound)
	}
	return user.Email, nil
}

// Wait blocks until background notifications have finished.
func (s *RequestService) Wait() {
	s.pending.Wait()
}

func (s *RequestService) load(ctx context.Context, id string) (*models.ProjectRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	return req, nil
}

// translate maps storage errors onto service errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, repositories.ErrPaymentState), errors.Is(err, repositories.ErrVersionConflict):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

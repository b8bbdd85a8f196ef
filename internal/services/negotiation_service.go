package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"visionmatch/internal/metrics"
	"visionmatch/internal/models"
	"visionmatch/internal/negotiation"
)

type NegotiationService struct {
	requests  RequestStore
	messages  MessageStore
	sanitizer *bluemonday.Policy
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewNegotiationService(requests RequestStore, messages MessageStore, m *metrics.Metrics, logger *slog.Logger) *NegotiationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NegotiationService{
		requests:  requests,
		messages:  messages,
		sanitizer: bluemonday.StrictPolicy(),
		metrics:   m,
		logger:    logger,
	}
}

// Feed is a page of the message feed. NotModified is set when the caller's
// version is still current; Messages is then empty.
type Feed struct {
	Messages    []models.NegotiationMessage `json:"messages"`
	Version     int64                       `json:"version"`
	NotModified bool                        `json:"-"`
}

// ListMessages returns the feed oldest first, or only the messages after the
// given id. knownVersion is the feed version the caller already has, 0 if none.
// The feed version is the request row's version, which every append bumps in
// the same transaction as the insert.
func (s *NegotiationService) ListMessages(ctx context.Context, caller Caller, requestID, after string, knownVersion int64) (*Feed, error) {
	req, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if _, err := participant(req, caller); err != nil {
		return nil, err
	}

	version := req.Version
	if knownVersion > 0 && version == knownVersion {
		return &Feed{Version: version, NotModified: true}, nil
	}

	messages, err := s.messages.ListByRequestID(ctx, requestID, after)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return &Feed{Messages: messages, Version: version}, nil
}

// PostMessageInput is a message as submitted by a participant. The sender is
// always derived from the caller.
type PostMessageInput struct {
	Type         models.MessageType
	Text         string
	Price        *int64
	Deliverables string
}

// PostMessage validates and appends a message, updating the request's offer
// fields and status in the same transaction.
func (s *NegotiationService) PostMessage(ctx context.Context, caller Caller, requestID string, in PostMessageInput) (*models.NegotiationMessage, error) {
	if in.Type == "" {
		in.Type = models.MessageText
	}
	if !in.Type.Valid() || in.Type == models.MessageSystem {
		return nil, fmt.Errorf("%w: unsupported message type %q", ErrInvalidInput, in.Type)
	}

	text := s.sanitize(in.Text)
	deliverables := s.sanitize(in.Deliverables)
	for _, field := range []string{text, deliverables} {
		if err := negotiation.ValidateMessage(field); err != nil {
			var v *negotiation.ContentViolation
			if errors.As(err, &v) {
				s.metrics.FilterRejected(v.Reason)
			}
			return nil, err
		}
	}
	if in.Type == models.MessageText && text == "" {
		return nil, negotiation.ErrEmptyMessage
	}
	if in.Type.IsOffer() {
		var price int64
		if in.Price != nil {
			price = *in.Price
		}
		if err := negotiation.ValidateOffer(price, deliverables); err != nil {
			return nil, err
		}
	}

	msg, req, err := s.messages.AppendMessage(ctx, requestID,
		func(req *models.ProjectRequest, feed []models.NegotiationMessage) (*models.NegotiationMessage, error) {
			sender, err := participant(req, caller)
			if err != nil {
				return nil, err
			}
			if err := negotiation.CanPost(req.Status, in.Type); err != nil {
				return nil, err
			}

			msg := &models.NegotiationMessage{
				Sender:   sender,
				SenderID: caller.UserID,
				Type:     in.Type,
				Text:     text,
			}
			switch {
			case in.Type.IsOffer():
				price := *in.Price
				msg.Price = &price
				msg.Deliverables = deliverables
				req.CurrentOffer = &models.Offer{Price: price, Deliverables: deliverables, From: sender}
			case in.Type == models.MessageAccepted:
				terms, err := negotiation.ValidateAccept(negotiation.Fold(feed), sender, in.Price, deliverables)
				if err != nil {
					return nil, err
				}
				msg.Price = &terms.Price
				msg.Deliverables = terms.Deliverables
				req.FinalOffer = &terms
			}
			req.Status = negotiation.StatusAfter(req.Status, in.Type)
			return msg, nil
		})
	if err != nil {
		return nil, translate(err)
	}

	s.metrics.MessagePosted(string(msg.Type))
	s.logger.Info("negotiation message posted",
		"request_id", requestID, "message_id", msg.ID, "type", msg.Type, "sender", msg.Sender, "status", req.Status)
	return msg, nil
}

// sanitize strips markup and returns plain text.
func (s *NegotiationService) sanitize(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(text)))
}

// NegotiationView is the negotiation as seen by one participant.
type NegotiationView struct {
	Request          *models.ProjectRequest `json:"request"`
	Viewer           models.Sender          `json:"viewer"`
	Status           models.RequestStatus   `json:"status"`
	CurrentOffer     *models.Offer          `json:"currentOffer,omitempty"`
	LatestOffer      *models.Offer          `json:"latestOffer,omitempty"`
	AcceptedOffer    *models.Offer          `json:"acceptedOffer,omitempty"`
	Pricing          negotiation.Pricing    `json:"pricing"`
	AvailableActions []negotiation.Action   `json:"availableActions"`
	MessageCount     int                    `json:"messageCount"`
	LastMessageID    string                 `json:"lastMessageId,omitempty"`
}

func (s *NegotiationService) GetNegotiation(ctx context.Context, caller Caller, requestID string) (*NegotiationView, error) {
	req, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	viewer, err := participant(req, caller)
	if err != nil {
		return nil, err
	}
	feed, err := s.messages.ListByRequestID(ctx, requestID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	state := negotiation.Fold(feed)
	status := state.EffectiveStatus(req.Status)
	view := &NegotiationView{
		Request:          req,
		Viewer:           viewer,
		Status:           status,
		CurrentOffer:     state.CurrentOfferFor(viewer),
		AcceptedOffer:    state.Accepted,
		Pricing:          negotiation.ComputePricing(negotiation.BasePrice(req)),
		AvailableActions: []negotiation.Action{},
		MessageCount:     state.Messages,
		LastMessageID:    state.LastID,
	}
	if state.LatestOffer != nil {
		latest := state.LatestOffer.Offer
		view.LatestOffer = &latest
	}
	if viewer == models.SenderCreator {
		if actions := negotiation.AvailableActions(status); actions != nil {
			view.AvailableActions = actions
		}
	}
	return view, nil
}

func (s *NegotiationService) load(ctx context.Context, id string) (*models.ProjectRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	return req, nil
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"visionmatch/internal/models"
	"visionmatch/internal/negotiation"
)

type PaymentService struct {
	requests RequestStore
	payments PaymentStore
	bookings BookingStore
	balances BalanceStore
	gateway  Gateway
	logger   *slog.Logger
}

// NewPaymentService wires escrow payments. A nil gateway disables order
// creation and verification; lookups keep working.
func NewPaymentService(requests RequestStore, payments PaymentStore, bookings BookingStore, balances BalanceStore, gateway Gateway, logger *slog.Logger) *PaymentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentService{
		requests: requests,
		payments: payments,
		bookings: bookings,
		balances: balances,
		gateway:  gateway,
		logger:   logger,
	}
}

// Order is what the checkout widget needs to collect a payment.
type Order struct {
	Payment     *models.Payment     `json:"payment"`
	OrderID     string              `json:"orderId"`
	AmountPaise int64               `json:"amountPaise"`
	Currency    string              `json:"currency"`
	KeyID       string              `json:"keyId"`
	Pricing     negotiation.Pricing `json:"pricing"`
}

// CreateOrder opens an escrow order for an accepted request. The amount is
// always derived from the agreed terms, never from the caller.
func (s *PaymentService) CreateOrder(ctx context.Context, caller Caller, requestID string) (*Order, error) {
	if s.gateway == nil {
		return nil, ErrPaymentsDisabled
	}
	req, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if side, err := participant(req, caller); err != nil || side != models.SenderClient {
		return nil, fmt.Errorf("%w: only the client can pay", ErrForbidden)
	}
	if err := negotiation.CanPay(req.Status); err != nil {
		return nil, err
	}

	pricing := negotiation.ComputePricing(negotiation.BasePrice(req))

	// Reuse an open order for the same amount so a retried checkout does not
	// create a second charge.
	if latest, err := s.payments.LatestByRequestID(ctx, requestID); err != nil {
		return nil, fmt.Errorf("failed to look up payments: %w", err)
	} else if latest != nil && latest.Status == models.PaymentPending && latest.Amount == pricing.Total {
		return s.order(latest, pricing), nil
	}

	payment := &models.Payment{
		RequestID:   req.ID,
		ClientID:    req.ClientID,
		CreatorID:   req.CreatorID,
		BaseAmount:  pricing.Base,
		PlatformFee: pricing.PlatformFee,
		GST:         pricing.GST,
		Amount:      pricing.Total,
		Description: describe(req),
	}
	payment.Prepare()

	orderID, err := s.gateway.CreateOrder(ctx, pricing.Total*100, payment.Currency, payment.ID, map[string]string{
		"request_id": req.ID,
		"client_id":  req.ClientID,
		"creator_id": req.CreatorID,
	})
	if err != nil {
		return nil, err
	}
	payment.GatewayOrderID = orderID

	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}
	s.logger.Info("escrow order created", "payment_id", payment.ID, "order_id", orderID, "amount", payment.Amount)
	return s.order(payment, pricing), nil
}

func (s *PaymentService) order(p *models.Payment, pricing negotiation.Pricing) *Order {
	return &Order{
		Payment:     p,
		OrderID:     p.GatewayOrderID,
		AmountPaise: p.Amount * 100,
		Currency:    p.Currency,
		KeyID:       s.gateway.KeyID(),
		Pricing:     pricing,
	}
}

func describe(req *models.ProjectRequest) string {
	name := "Custom project"
	if req.Package != nil && req.Package.Name != "" {
		name = req.Package.Name
	}
	if req.CreatorName != "" {
		return name + " with " + req.CreatorName
	}
	return name
}

type VerifyInput struct {
	OrderID   string `json:"razorpay_order_id" binding:"required"`
	PaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature string `json:"razorpay_signature" binding:"required"`
}

type Escrowed struct {
	Payment *models.Payment `json:"payment"`
	Booking *models.Booking `json:"booking"`
}

// VerifyPayment checks the gateway signature and moves the funds into escrow:
// the request becomes paid and a booking is opened.
func (s *PaymentService) VerifyPayment(ctx context.Context, caller Caller, in VerifyInput) (*Escrowed, error) {
	if s.gateway == nil {
		return nil, ErrPaymentsDisabled
	}
	payment, err := s.payments.GetByGatewayOrderID(ctx, in.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if payment == nil {
		return nil, fmt.Errorf("order %s: %w", in.OrderID, ErrNotFound)
	}
	if !caller.Is(payment.ClientID) {
		return nil, ErrForbidden
	}
	if !s.gateway.VerifySignature(in.OrderID, in.PaymentID, in.Signature) {
		s.logger.Warn("payment signature mismatch", "payment_id", payment.ID, "order_id", in.OrderID)
		return nil, ErrSignature
	}

	payment, booking, err := s.payments.Escrow(ctx, payment.ID, in.PaymentID,
		func(req *models.ProjectRequest, p *models.Payment) *models.Booking {
			return &models.Booking{
				RequestID:    req.ID,
				PaymentID:    p.ID,
				ClientID:     req.ClientID,
				CreatorID:    req.CreatorID,
				FinalAmount:  p.Amount,
				Deliverables: negotiation.AgreedDeliverables(req),
			}
		})
	if err != nil {
		return nil, translate(err)
	}
	s.logger.Info("payment held in escrow", "payment_id", payment.ID, "booking_id", booking.ID, "amount", payment.Amount)
	return &Escrowed{Payment: payment, Booking: booking}, nil
}

// StatusByRequest returns the latest payment for a request, nil when none exists.
func (s *PaymentService) StatusByRequest(ctx context.Context, caller Caller, requestID string) (*models.Payment, error) {
	req, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if _, err := participant(req, caller); err != nil {
		return nil, err
	}
	payment, err := s.payments.LatestByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return payment, nil
}

// Status looks a payment up by its own id or by the gateway order id.
func (s *PaymentService) Status(ctx context.Context, caller Caller, id string) (*models.Payment, error) {
	payment, err := s.payments.GetByID(ctx, id)
	if err == nil && payment == nil {
		payment, err = s.payments.GetByGatewayOrderID(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if payment == nil {
		return nil, fmt.Errorf("payment %s: %w", id, ErrNotFound)
	}
	if !caller.Is(payment.ClientID) && !caller.Is(payment.CreatorID) {
		return nil, ErrForbidden
	}
	return payment, nil
}

// Release pays the creator out of escrow once the client confirms delivery.
func (s *PaymentService) Release(ctx context.Context, caller Caller, paymentID string) (*Escrowed, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if payment == nil {
		return nil, fmt.Errorf("payment %s: %w", paymentID, ErrNotFound)
	}
	if !caller.Is(payment.ClientID) {
		return nil, fmt.Errorf("%w: only the client can release funds", ErrForbidden)
	}

	payment, booking, err := s.payments.Release(ctx, paymentID)
	if err != nil {
		return nil, translate(err)
	}
	s.logger.Info("escrow released", "payment_id", payment.ID, "creator_id", payment.CreatorID, "amount", payment.BaseAmount)
	return &Escrowed{Payment: payment, Booking: booking}, nil
}

func (s *PaymentService) Booking(ctx context.Context, caller Caller, id string) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", id, ErrNotFound)
	}
	if !caller.Is(booking.ClientID) && !caller.Is(booking.CreatorID) {
		return nil, ErrForbidden
	}
	return booking, nil
}

func (s *PaymentService) ClientBookings(ctx context.Context, caller Caller, clientID string) ([]models.Booking, error) {
	if !caller.Is(clientID) {
		return nil, ErrForbidden
	}
	bookings, err := s.bookings.ListByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// ConfirmEvent records the client's verdict on a booked event. A confirmation
// releases escrow; a rejection opens a dispute and keeps the funds held.
func (s *PaymentService) ConfirmEvent(ctx context.Context, caller Caller, bookingID string, confirmed bool, reason string) (*models.Booking, error) {
	booking, err := s.Booking(ctx, caller, bookingID)
	if err != nil {
		return nil, err
	}
	if !caller.Is(booking.ClientID) {
		return nil, fmt.Errorf("%w: only the client can confirm the event", ErrForbidden)
	}

	if confirmed {
		released, err := s.Release(ctx, caller, booking.PaymentID)
		if err != nil {
			return nil, err
		}
		return released.Booking, nil
	}

	reason = strings.TrimSpace(reason)
	disputed, err := s.bookings.Dispute(ctx, bookingID, reason)
	if err != nil {
		return nil, translate(err)
	}
	s.logger.Warn("booking disputed", "booking_id", bookingID, "reason", reason)
	return disputed, nil
}

// Balance returns a creator's released earnings.
func (s *PaymentService) Balance(ctx context.Context, caller Caller, creatorID string) (int64, error) {
	if !caller.Is(creatorID) {
		return 0, ErrForbidden
	}
	return s.balances.Get(ctx, creatorID)
}

func (s *PaymentService) loadRequest(ctx context.Context, id string) (*models.ProjectRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	return req, nil
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus flows pending -> escrowed -> completed, or escrowed -> refunded.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentEscrowed  PaymentStatus = "escrowed"
	PaymentCompleted PaymentStatus = "completed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type Payment struct {
	ID               string        `json:"id"`
	RequestID        string        `json:"requestId"`
	ClientID         string        `json:"clientId"`
	CreatorID        string        `json:"creatorId"`
	BaseAmount       int64         `json:"baseAmount"`
	PlatformFee      int64         `json:"platformFee"`
	GST              int64         `json:"gst"`
	Amount           int64         `json:"amount"`
	Currency         string        `json:"currency"`
	Status           PaymentStatus `json:"status"`
	GatewayOrderID   string        `json:"gatewayOrderId,omitempty"`
	GatewayPaymentID *string       `json:"gatewayPaymentId,omitempty"`
	Description      string        `json:"description,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
	CompletedAt      *time.Time    `json:"completedAt,omitempty"`
}

func (p *Payment) Prepare() {
	if p.ID == "" {
		p.ID = "PAY" + uuid.NewString()
	}
	if p.Currency == "" {
		p.Currency = "INR"
	}
	if p.Status == "" {
		p.Status = PaymentPending
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingDisputed  BookingStatus = "disputed"
)

type EscrowStatus string

const (
	EscrowHeld     EscrowStatus = "held"
	EscrowReleased EscrowStatus = "released"
)

type Booking struct {
	ID            string        `json:"id"`
	RequestID     string        `json:"requestId"`
	PaymentID     string        `json:"paymentId"`
	ClientID      string        `json:"clientId"`
	CreatorID     string        `json:"creatorId"`
	FinalAmount   int64         `json:"finalAmount"`
	Deliverables  string        `json:"deliverables"`
	Status        BookingStatus `json:"status"`
	EscrowStatus  EscrowStatus  `json:"escrowStatus"`
	DisputeReason string        `json:"disputeReason,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

func (b *Booking) Prepare() {
	if b.ID == "" {
		b.ID = "book_" + uuid.NewString()
	}
	if b.Status == "" {
		b.Status = BookingConfirmed
	}
	if b.EscrowStatus == "" {
		b.EscrowStatus = EscrowHeld
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

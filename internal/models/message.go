package models

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type Sender string

const (
	SenderClient  Sender = "client"
	SenderCreator Sender = "creator"
	SenderSystem  Sender = "system"
)

// Counterparty returns the other side of a client/creator pair.
func (s Sender) Counterparty() Sender {
	switch s {
	case SenderClient:
		return SenderCreator
	case SenderCreator:
		return SenderClient
	}
	return ""
}

type MessageType string

const (
	MessageText     MessageType = "text"
	MessageOffer    MessageType = "offer"
	MessageCounter  MessageType = "counter"
	MessageAccepted MessageType = "accepted"
	MessageSystem   MessageType = "system"
)

// IsOffer reports whether the message proposes terms.
func (t MessageType) IsOffer() bool {
	return t == MessageOffer || t == MessageCounter
}

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageOffer, MessageCounter, MessageAccepted, MessageSystem:
		return true
	}
	return false
}

type DeliveryStatus string

const (
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryRead      DeliveryStatus = "read"
)

// NegotiationMessage is one entry of a request's append-only feed.
// IDs are ULIDs so lexical order equals insertion order.
type NegotiationMessage struct {
	ID           string         `json:"id"`
	RequestID    string         `json:"requestId"`
	Sender       Sender         `json:"sender"`
	SenderID     string         `json:"senderId"`
	Type         MessageType    `json:"type"`
	Text         string         `json:"message"`
	Price        *int64         `json:"price,omitempty"`
	Deliverables string         `json:"deliverables,omitempty"`
	Status       DeliveryStatus `json:"status"`
	Timestamp    time.Time      `json:"timestamp"`
}

func (m *NegotiationMessage) Prepare() {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if m.ID == "" {
		m.ID = ulid.MustNew(ulid.Timestamp(m.Timestamp), ulid.DefaultEntropy()).String()
	}
	if m.Type == "" {
		m.Type = MessageText
	}
	if m.Status == "" {
		m.Status = DeliverySent
	}
}

// Terms returns the price/deliverables carried by the message, or nil when it has no price.
func (m *NegotiationMessage) Terms() *Offer {
	if m.Price == nil {
		return nil
	}
	return &Offer{Price: *m.Price, Deliverables: m.Deliverables, From: m.Sender}
}

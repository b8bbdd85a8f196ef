package models

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	StatusPendingCreator      RequestStatus = "pending_creator"
	StatusAccepted            RequestStatus = "accepted"
	StatusDeclined            RequestStatus = "declined"
	StatusNegotiationProposed RequestStatus = "negotiation_proposed"
	StatusNegotiating         RequestStatus = "negotiating"
	StatusPaid                RequestStatus = "paid"
	StatusEscrowed            RequestStatus = "escrowed"
	StatusCompleted           RequestStatus = "completed"
)

// Valid reports whether s is one of the known request statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPendingCreator, StatusAccepted, StatusDeclined, StatusNegotiationProposed,
		StatusNegotiating, StatusPaid, StatusEscrowed, StatusCompleted:
		return true
	}
	return false
}

// PriceLabel is the display price of a package. Older records store a number,
// newer ones a formatted string such as "₹50,000".
type PriceLabel string

func (p *PriceLabel) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*p = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*p = PriceLabel(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*p = PriceLabel(n.String())
	return nil
}

type Package struct {
	ID           string     `json:"id,omitempty"`
	Name         string     `json:"name"`
	Price        PriceLabel `json:"price"`
	Duration     string     `json:"duration,omitempty"`
	Deliverables []string   `json:"deliverables,omitempty"`
}

// Offer holds proposed or agreed terms. Price is in whole rupees.
type Offer struct {
	Price        int64  `json:"price"`
	Deliverables string `json:"deliverables"`
	From         Sender `json:"from,omitempty"`
}

// ProjectRequest is a client's solicitation to a creator, optionally tied to a package.
type ProjectRequest struct {
	ID                    string        `json:"id"`
	ClientID              string        `json:"clientId"`
	CreatorID             string        `json:"creatorId"`
	Status                RequestStatus `json:"status"`
	Package               *Package      `json:"package,omitempty"`
	IsInquiry             bool          `json:"isInquiry"`
	ServiceType           string        `json:"serviceType,omitempty"`
	Category              string        `json:"category,omitempty"`
	EventDate             string        `json:"eventDate,omitempty"`
	Duration              string        `json:"duration,omitempty"`
	Location              string        `json:"location,omitempty"`
	Budget                string        `json:"budget,omitempty"`
	Message               string        `json:"message,omitempty"`
	CreatorName           string        `json:"creatorName,omitempty"`
	CreatorSpecialisation string        `json:"creatorSpecialisation,omitempty"`
	CreatorStartingPrice  *int64        `json:"creatorStartingPrice,omitempty"`
	CreatorMessage        string        `json:"creatorMessage,omitempty"`
	CurrentOffer          *Offer        `json:"currentOffer,omitempty"`
	FinalOffer            *Offer        `json:"finalOffer,omitempty"`
	PaymentID             *string       `json:"paymentId,omitempty"`
	BookingID             *string       `json:"bookingId,omitempty"`
	Version               int64         `json:"version"`
	CreatedAt             time.Time     `json:"createdAt"`
	UpdatedAt             time.Time     `json:"updatedAt"`
}

func (p *ProjectRequest) Prepare() {
	if p.ID == "" {
		p.ID = "req_" + uuid.NewString()
	}
	if p.Status == "" {
		p.Status = StatusPendingCreator
	}
	if p.IsInquiry && p.Package == nil {
		p.Package = &Package{Name: "Custom Inquiry", Price: "To be discussed"}
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Version == 0 {
		p.Version = 1
	}
}

// FormatRupees renders an amount the way the web client shows it, e.g. "₹32,450".
func FormatRupees(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := strconv.FormatInt(amount, 10)
	// Indian grouping: last three digits, then pairs.
	if len(s) > 3 {
		head, tail := s[:len(s)-3], s[len(s)-3:]
		var out []byte
		for i, c := range []byte(head) {
			if i > 0 && (len(head)-i)%2 == 0 {
				out = append(out, ',')
			}
			out = append(out, c)
		}
		s = string(out) + "," + tail
	}
	if neg {
		return "-₹" + s
	}
	return "₹" + s
}

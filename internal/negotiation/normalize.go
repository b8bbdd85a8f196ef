package negotiation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"visionmatch/internal/models"
)

// NormalizeRequest builds a ProjectRequest from a loosely shaped backend record.
// Every field is looked up under its camelCase and snake_case spelling; the
// first non-empty value wins.
func NormalizeRequest(raw map[string]any) models.ProjectRequest {
	req := models.ProjectRequest{
		ID:                    str(raw, "id", "_id"),
		ClientID:              str(raw, "clientId", "client_id"),
		CreatorID:             str(raw, "creatorId", "creator_id"),
		Status:                models.RequestStatus(str(raw, "status")),
		IsInquiry:             boolean(raw, "isInquiry", "is_inquiry"),
		ServiceType:           str(raw, "serviceType", "service_type", "projectType", "project_type"),
		Category:              str(raw, "category"),
		EventDate:             str(raw, "eventDate", "event_date"),
		Duration:              str(raw, "duration"),
		Location:              str(raw, "location"),
		Budget:                str(raw, "budget"),
		Message:               str(raw, "message"),
		CreatorName:           str(raw, "creatorName", "creator_name"),
		CreatorSpecialisation: str(raw, "creatorSpecialisation", "creator_specialisation"),
		CreatorMessage:        str(raw, "creatorMessage", "creator_message"),
		CurrentOffer:          offer(pick(raw, "currentOffer", "current_offer")),
		FinalOffer:            offer(pick(raw, "finalOffer", "final_offer")),
		Package:               pkg(pick(raw, "package")),
		CreatedAt:             timestamp(pick(raw, "createdAt", "created_at")),
		UpdatedAt:             timestamp(pick(raw, "updatedAt", "updated_at")),
	}
	if !req.Status.Valid() {
		req.Status = models.StatusPendingCreator
	}
	if p, ok := ParsePrice(pick(raw, "creatorStartingPrice", "creator_starting_price")); ok {
		req.CreatorStartingPrice = &p
	}
	if v, ok := ParsePrice(pick(raw, "version")); ok {
		req.Version = v
	}
	if id := str(raw, "paymentId", "payment_id"); id != "" {
		req.PaymentID = &id
	}
	if id := str(raw, "bookingId", "booking_id"); id != "" {
		req.BookingID = &id
	}
	return req
}

// NormalizeMessage builds a NegotiationMessage from a backend record.
// The body may arrive as "message" or "text"; a missing type means text.
func NormalizeMessage(raw map[string]any) models.NegotiationMessage {
	m := models.NegotiationMessage{
		ID:           str(raw, "id", "_id"),
		RequestID:    str(raw, "requestId", "request_id"),
		Sender:       models.Sender(str(raw, "sender")),
		SenderID:     str(raw, "senderId", "sender_id"),
		Type:         models.MessageType(str(raw, "type")),
		Text:         str(raw, "message", "text"),
		Deliverables: str(raw, "deliverables"),
		Status:       models.DeliveryStatus(str(raw, "status")),
		Timestamp:    timestamp(pick(raw, "timestamp", "createdAt", "created_at")),
	}
	if !m.Type.Valid() {
		m.Type = models.MessageText
	}
	if m.Status == "" {
		m.Status = models.DeliverySent
	}
	if p, ok := ParsePrice(pick(raw, "price")); ok {
		m.Price = &p
	}
	return m
}

func pick(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			continue
		}
		return v
	}
	return nil
}

func str(raw map[string]any, keys ...string) string {
	switch v := pick(raw, keys...).(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprint(v)
	}
}

func boolean(raw map[string]any, keys ...string) bool {
	switch v := pick(raw, keys...).(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

func offer(v any) *models.Offer {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	price, ok := ParsePrice(m["price"])
	if !ok {
		return nil
	}
	return &models.Offer{
		Price:        price,
		Deliverables: str(m, "deliverables"),
		From:         models.Sender(str(m, "from")),
	}
}

func pkg(v any) *models.Package {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	p := &models.Package{
		ID:       str(m, "id"),
		Name:     str(m, "name"),
		Price:    models.PriceLabel(str(m, "price")),
		Duration: str(m, "duration"),
	}
	switch d := m["deliverables"].(type) {
	case []any:
		for _, item := range d {
			if s, ok := item.(string); ok && s != "" {
				p.Deliverables = append(p.Deliverables, s)
			}
		}
	case []string:
		p.Deliverables = append(p.Deliverables, d...)
	case string:
		if d != "" {
			p.Deliverables = []string{d}
		}
	}
	return p
}

// timestamp accepts epoch milliseconds or an RFC 3339 string.
func timestamp(v any) time.Time {
	switch t := v.(type) {
	case float64:
		return time.UnixMilli(int64(t)).UTC()
	case int64:
		return time.UnixMilli(t).UTC()
	case int:
		return time.UnixMilli(int64(t)).UTC()
	case json.Number:
		if ms, err := t.Int64(); err == nil {
			return time.UnixMilli(ms).UTC()
		}
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

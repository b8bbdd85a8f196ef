package negotiation

import "visionmatch/internal/models"

// OfferRef is an offer together with the message that made it.
type OfferRef struct {
	MessageID string
	Type      models.MessageType
	Offer     models.Offer
}

// State is the negotiation as derived from a request's message feed.
// Status is empty until the feed contains an offer, counter or acceptance;
// callers fall back to the stored request status in that case.
type State struct {
	Status       models.RequestStatus
	LatestOffer  *OfferRef
	ClientOffer  *OfferRef
	CreatorOffer *OfferRef
	Accepted     *models.Offer
	Messages     int
	LastID       string
}

// Fold reduces a feed, oldest first, into its negotiation state.
func Fold(messages []models.NegotiationMessage) State {
	var s State
	for i := range messages {
		s = Apply(s, &messages[i])
	}
	return s
}

// Apply advances the state by one message.
func Apply(s State, m *models.NegotiationMessage) State {
	s.Messages++
	s.LastID = m.ID

	switch {
	case m.Type.IsOffer():
		terms := m.Terms()
		if terms == nil {
			return s
		}
		ref := &OfferRef{MessageID: m.ID, Type: m.Type, Offer: *terms}
		s.LatestOffer = ref
		switch m.Sender {
		case models.SenderClient:
			s.ClientOffer = ref
		case models.SenderCreator:
			s.CreatorOffer = ref
		}
		s.Status = models.StatusNegotiating
	case m.Type == models.MessageAccepted:
		if terms := m.Terms(); terms != nil {
			s.Accepted = terms
		} else if s.LatestOffer != nil {
			accepted := s.LatestOffer.Offer
			s.Accepted = &accepted
		}
		s.LatestOffer = nil
		s.Status = models.StatusAccepted
	}
	return s
}

// CurrentOfferFor returns the terms a viewer is being asked to consider:
// the most recent offer or counter authored by the other party.
func (s State) CurrentOfferFor(viewer models.Sender) *models.Offer {
	var ref *OfferRef
	switch viewer {
	case models.SenderClient:
		ref = s.CreatorOffer
	case models.SenderCreator:
		ref = s.ClientOffer
	default:
		ref = s.LatestOffer
	}
	if ref == nil {
		return nil
	}
	o := ref.Offer
	return &o
}

// EffectiveStatus merges the derived status with the stored one. Stored
// statuses past acceptance (paid, completed, declined) are never overridden.
func (s State) EffectiveStatus(stored models.RequestStatus) models.RequestStatus {
	switch stored {
	case models.StatusDeclined, models.StatusPaid, models.StatusEscrowed, models.StatusCompleted:
		return stored
	}
	if s.Status == "" {
		return stored
	}
	return s.Status
}

package negotiation

import (
	"regexp"
	"strings"

	"visionmatch/internal/models"
)

var (
	phonePattern = regexp.MustCompile(`\b\d{10}\b|\+\d{1,3}\d{9,14}`)
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	linkPattern  = regexp.MustCompile(`(?i)(https?://|www\.)\S+`)
)

// ValidateMessage rejects text carrying a phone number, e-mail address or external link.
func ValidateMessage(text string) error {
	switch {
	case phonePattern.MatchString(text):
		return ErrPhoneNumber
	case emailPattern.MatchString(text):
		return ErrEmailAddress
	case linkPattern.MatchString(text):
		return ErrExternalLink
	}
	return nil
}

// ValidateOffer checks the terms of an offer or counter.
func ValidateOffer(price int64, deliverables string) error {
	if price <= 0 {
		return ErrInvalidPrice
	}
	if strings.TrimSpace(deliverables) == "" {
		return ErrMissingDeliverables
	}
	return nil
}

// ValidateAccept resolves the terms an accepted message closes. The most
// recent offer or counter must exist and come from the other party. Terms the
// caller supplies must match it; omitted terms are taken from it.
func ValidateAccept(s State, sender models.Sender, price *int64, deliverables string) (models.Offer, error) {
	live := s.LatestOffer
	if live == nil {
		return models.Offer{}, ErrNoOffer
	}
	if live.Offer.From == sender {
		return models.Offer{}, ErrOwnOffer
	}
	if price != nil && *price != live.Offer.Price {
		return models.Offer{}, ErrStaleOffer
	}
	if d := strings.TrimSpace(deliverables); d != "" && d != strings.TrimSpace(live.Offer.Deliverables) {
		return models.Offer{}, ErrStaleOffer
	}
	return live.Offer, nil
}

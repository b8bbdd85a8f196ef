package negotiation

import "errors"

var (
	ErrInvalidPrice        = errors.New("price must be greater than zero")
	ErrMissingDeliverables = errors.New("deliverables are required")
	ErrNoOffer             = errors.New("no offer to accept")
	ErrOwnOffer            = errors.New("cannot accept your own offer")
	ErrStaleOffer          = errors.New("accepted terms do not match the latest offer")
	ErrIllegalTransition   = errors.New("illegal status transition")
	ErrUnknownAction       = errors.New("unknown action")
	ErrMessageNotAllowed   = errors.New("message type not allowed in current status")
	ErrEmptyMessage        = errors.New("message is empty")
)

// ContentViolation is returned when free text carries personal contact information.
type ContentViolation struct {
	Reason  string
	Message string
}

func (v *ContentViolation) Error() string {
	return v.Message
}

var (
	ErrPhoneNumber  = &ContentViolation{Reason: "phone", Message: "Phone numbers are not allowed for your protection."}
	ErrEmailAddress = &ContentViolation{Reason: "email", Message: "Email addresses are not allowed for your protection."}
	ErrExternalLink = &ContentViolation{Reason: "link", Message: "External links are not allowed for your protection."}
)

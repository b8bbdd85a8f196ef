package negotiation

import (
	"fmt"
	"strings"

	"visionmatch/internal/models"
)

// Action is a creator's response to a pending request.
type Action string

const (
	ActionAccept    Action = "accept"
	ActionNegotiate Action = "negotiate"
	ActionDecline   Action = "decline"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionAccept, ActionNegotiate, ActionDecline:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// AvailableActions lists the creator actions exposed for a status:
// all three for a pending request, none otherwise.
func AvailableActions(status models.RequestStatus) []Action {
	if status != models.StatusPendingCreator {
		return nil
	}
	return []Action{ActionAccept, ActionNegotiate, ActionDecline}
}

// Respond returns the status a creator action moves a request to.
// Actions are only legal while the request awaits the creator.
func Respond(current models.RequestStatus, action Action) (models.RequestStatus, error) {
	if current != models.StatusPendingCreator {
		return "", fmt.Errorf("%w: cannot %s a request in status %s", ErrIllegalTransition, action, current)
	}
	switch action {
	case ActionAccept:
		return models.StatusAccepted, nil
	case ActionDecline:
		return models.StatusDeclined, nil
	case ActionNegotiate:
		return models.StatusNegotiationProposed, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, action)
}

// IsTerminal reports whether no further negotiation or payment can happen.
func IsTerminal(status models.RequestStatus) bool {
	return status == models.StatusDeclined || status == models.StatusCompleted
}

// IsFunded reports whether the client's payment is held or released.
func IsFunded(status models.RequestStatus) bool {
	switch status {
	case models.StatusPaid, models.StatusEscrowed, models.StatusCompleted:
		return true
	}
	return false
}

// CanPost checks whether a message of type t may be appended in status.
func CanPost(status models.RequestStatus, t models.MessageType) error {
	if IsTerminal(status) {
		return fmt.Errorf("%w: request is %s", ErrMessageNotAllowed, status)
	}
	switch t {
	case models.MessageText:
		return nil
	case models.MessageOffer, models.MessageCounter:
		switch status {
		case models.StatusPendingCreator, models.StatusNegotiationProposed, models.StatusNegotiating:
			return nil
		}
	case models.MessageAccepted:
		switch status {
		case models.StatusNegotiationProposed, models.StatusNegotiating:
			return nil
		}
	}
	return fmt.Errorf("%w: %s in status %s", ErrMessageNotAllowed, t, status)
}

// StatusAfter returns the request status once a message of type t has been appended.
func StatusAfter(current models.RequestStatus, t models.MessageType) models.RequestStatus {
	switch {
	case t.IsOffer():
		return models.StatusNegotiating
	case t == models.MessageAccepted:
		return models.StatusAccepted
	}
	return current
}

// CanPay checks that a request is ready for an escrow order.
func CanPay(status models.RequestStatus) error {
	if status != models.StatusAccepted {
		return fmt.Errorf("%w: request must be accepted before payment, got %s", ErrIllegalTransition, status)
	}
	return nil
}

package market

import (
	"errors"
	"fmt"
)

// Common errors surfaced by the negotiation engine.
var (
	// ErrInvalidOffer is returned when a proposal violates a price bound.
	ErrInvalidOffer = errors.New("offer violates price bound")
	// ErrStaleNegotiation is returned when acting on a terminal negotiation.
	ErrStaleNegotiation = errors.New("negotiation is no longer active")
	// ErrUnknownParticipant is returned when an agent ID is not in the session.
	ErrUnknownParticipant = errors.New("participant not found")
	// ErrNegotiationNotFound is returned when a negotiation ID is unknown.
	ErrNegotiationNotFound = errors.New("negotiation not found")
	// ErrSessionNotFound is returned when a session ID is unknown.
	ErrSessionNotFound = errors.New("session not found")
	// ErrListingNotFound is returned when a listing ID is unknown.
	ErrListingNotFound = errors.New("listing not found")
	// ErrNotInterested is returned when a buyer targets a seller outside
	// its interest list.
	ErrNotInterested = errors.New("seller not in buyer's interest list")
	// ErrAlreadyInactive is returned when a deactivated participant acts.
	ErrAlreadyInactive = errors.New("participant is inactive")
	// ErrDuplicateNegotiation is returned when the pairing already has an
	// active negotiation.
	ErrDuplicateNegotiation = errors.New("negotiation already active for this pairing")
)

// InvalidOfferError describes a bound violation. The offending turn is
// rejected and never recorded.
type InvalidOfferError struct {
	AgentID string
	Role    Role
	Offer   float64
	Bound   float64
}

// Error returns a human-readable description of the violation.
func (e *InvalidOfferError) Error() string {
	if e.Role == RoleBuyer {
		return fmt.Sprintf("buyer %s offered %.2f above max bound %.2f", e.AgentID, e.Offer, e.Bound)
	}
	return fmt.Sprintf("seller %s offered %.2f below min bound %.2f", e.AgentID, e.Offer, e.Bound)
}

// Unwrap returns ErrInvalidOffer for errors.Is compatibility.
func (e *InvalidOfferError) Unwrap() error {
	return ErrInvalidOffer
}

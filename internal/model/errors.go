package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrOwnershipMismatch means an object is no longer owned by the party
	// the operation claims. Safe to retry after refreshing state.
	ErrOwnershipMismatch = errors.New("ownership mismatch")

	// ErrStaleState means a transition was attempted on a resolved proposal.
	ErrStaleState = errors.New("proposal already resolved")

	// ErrNotAuthorized means the actor is not the party allowed to act.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrEmptyOffer means a proposal has no items on either side.
	ErrEmptyOffer = errors.New("proposal has no items")

	// ErrInvalidProposal covers malformed proposals: self-exchange or an
	// object listed on both sides.
	ErrInvalidProposal = errors.New("invalid proposal")

	// ErrReconciliationRequired means a proposal was left half-executed and
	// is frozen until an operator resolves it.
	ErrReconciliationRequired = errors.New("proposal requires manual reconciliation")

	// ErrDelivery means a message could not be appended to the store.
	ErrDelivery = errors.New("message delivery failed")

	// ErrInvalidMessage means a message was empty or too long.
	ErrInvalidMessage = errors.New("invalid message")
)

// OwnershipMismatchError lists the objects whose owner differed from the
// expected one.
type OwnershipMismatchError struct {
	ObjectIDs []string
}

func (e *OwnershipMismatchError) Error() string {
	return fmt.Sprintf("ownership mismatch: %s", strings.Join(e.ObjectIDs, ", "))
}

func (e *OwnershipMismatchError) Is(target error) bool {
	return target == ErrOwnershipMismatch
}

// PartialTransferError is returned when the sender side of a two-phase
// exchange was committed but the receiver side was not.
type PartialTransferError struct {
	ProposalID string
	Moved      []string
	Err        error
}

func (e *PartialTransferError) Error() string {
	return fmt.Sprintf("partial transfer for proposal %s (moved %s): %v",
		e.ProposalID, strings.Join(e.Moved, ", "), e.Err)
}

func (e *PartialTransferError) Unwrap() error { return e.Err }

func (e *PartialTransferError) Is(target error) bool {
	return target == ErrReconciliationRequired
}

// DeliveryError carries the text of a message that failed to send so the
// caller can restore it.
type DeliveryError struct {
	LocalID string
	Text    string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("sending message %s: %v", e.LocalID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func (e *DeliveryError) Is(target error) bool {
	return target == ErrDelivery
}

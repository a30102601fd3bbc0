package ticket

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when a channel topic does not parse as
	// ticket state for the expected panel. All ticket actions on such a
	// channel are rejected rather than guessed at.
	ErrInvalidState = errors.New("channel topic is not a valid ticket state")

	// ErrForbidden is returned when the actor lacks the role or ownership
	// required for the action.
	ErrForbidden = errors.New("actor is not permitted to perform this action")

	// ErrNoClaimRoles is returned when a ticket is opened against a panel
	// with no claim roles configured. This is checked on every open attempt,
	// not at panel creation time.
	ErrNoClaimRoles = errors.New("panel has no claim roles configured")

	// ErrCategoryInvalid is returned when the panel's category does not
	// resolve to a category channel.
	ErrCategoryInvalid = errors.New("panel category does not resolve to a category channel")
)

// AlreadyClaimedError is returned when a claim attempt loses to an earlier
// claim. It carries the current claimer so the loser can be told who won.
// It is not a hard failure: nothing was mutated.
type AlreadyClaimedError struct {
	// ClaimerID is the ID of the user that holds the claim.
	ClaimerID string
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("ticket is already claimed by %s", e.ClaimerID)
}

// ExistingTicketError is returned when a user opens a ticket against a
// panel they already have an open ticket for. It carries the existing
// channel so the user can be pointed at it instead of a duplicate.
type ExistingTicketError struct {
	// ChannelID is the ID of the user's existing ticket channel.
	ChannelID string
}

func (e *ExistingTicketError) Error() string {
	return fmt.Sprintf("user already has an open ticket in channel %s", e.ChannelID)
}

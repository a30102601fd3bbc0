package messages

const (
	// ErrUserErrorProcessing is shown when a command or button press fails for
	// a reason the user cannot do anything about.
	ErrUserErrorProcessing = "Something went wrong processing that, please try again."

	// ErrAdminOnly is shown when a non-administrator runs an admin command.
	ErrAdminOnly = "You must be an administrator to use this command."

	// ErrPanelNotFound is shown when a panel ID does not resolve.
	ErrPanelNotFound = "Panel not found."

	// ErrNoClaimRoles is shown when a ticket is opened against a panel with no
	// claim roles configured.
	ErrNoClaimRoles = "No claim roles are set for this panel."

	// ErrCategoryMissing is shown when the panel's ticket category no longer
	// resolves to a category channel.
	ErrCategoryMissing = "The ticket category for this panel is missing."

	// ErrNotATicket is shown when a ticket action is pressed in a channel
	// whose topic does not carry a valid ticket state.
	ErrNotATicket = "This channel is not a ticket."

	// ErrNoPermission is shown when the actor lacks the role or ownership
	// needed for the action.
	ErrNoPermission = "You do not have permission to do that."

	// ErrOpenTooFast is shown when a user trips the ticket open rate limit.
	ErrOpenTooFast = "You are opening tickets too quickly. Please wait a moment."

	// Closing is the acknowledgement sent before a ticket channel is deleted.
	Closing = "Closing..."

	// Done is the generic success reply for panel maintenance commands.
	Done = "✅ Done."

	// Deleted is the success reply for panel deletion.
	Deleted = "✅ Deleted."

	// NoPanels is shown when listing panels and none exist.
	NoPanels = "No panels."
)

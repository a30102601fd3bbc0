package entities

// Panel is a stored ticket panel configuration. A panel is a message posted
// in a channel from which users open tickets; every ticket carries the
// panel's ID in its channel topic so that it can be resolved back to this
// record.
type Panel struct {
	// PanelID is the unique ID of the panel.
	PanelID string `json:"panel_id"`

	// GuildID is the ID of the guild that the panel belongs to.
	GuildID string `json:"guild_id"`

	// ChannelID is the ID of the channel that the panel message is posted in.
	ChannelID string `json:"channel_id"`

	// CategoryID is the ID of the category that tickets are created under.
	CategoryID string `json:"category_id"`

	// Title is the panel title, shown on the panel message and inside tickets.
	Title string `json:"title"`

	// Description is the panel description.
	Description string `json:"description"`

	// ImageURL is an optional banner image for the panel message.
	ImageURL string `json:"image_url,omitempty"`

	// ThumbnailURL is an optional thumbnail for the panel message.
	ThumbnailURL string `json:"thumbnail_url,omitempty"`

	// Availability is an optional availability notice shown on the panel.
	Availability string `json:"availability,omitempty"`

	// Disclaimer is an optional disclaimer shown inside each ticket.
	Disclaimer string `json:"disclaimer,omitempty"`

	// ButtonLabel is the label of the open ticket button.
	ButtonLabel string `json:"button_label"`

	// TicketName is the prefix used for generated ticket channel names.
	TicketName string `json:"ticket_name"`

	// ClaimRoleIDs are the roles whose members may claim tickets created from
	// this panel.
	ClaimRoleIDs []string `json:"claim_role_ids"`

	// TranscriptChannelID is an optional channel that transcripts are
	// delivered to when a ticket is closed.
	TranscriptChannelID string `json:"transcript_channel_id,omitempty"`

	// MessageID is the ID of the posted panel message. It is best-effort;
	// deleting the panel does not retract the message.
	MessageID string `json:"message_id"`

	// Color is the accent colour of the panel embed.
	Color int `json:"color"`
}

// HasClaimRole reports whether roleID is one of the panel's claim roles.
func (p *Panel) HasClaimRole(roleID string) bool {
	for _, id := range p.ClaimRoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

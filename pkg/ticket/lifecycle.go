package ticket

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lynxbot/lynx/pkg/entities"
	"github.com/lynxbot/lynx/pkg/logging"
)

const (
	// ActionOpenTicket is the button action for opening a ticket.
	ActionOpenTicket = "open_ticket"

	// ActionClaimTicket is the button action for claiming a ticket.
	ActionClaimTicket = "claim_ticket"

	// ActionCloseTicket is the button action for closing a ticket.
	ActionCloseTicket = "close_ticket"
)

const (
	// CloseGraceDelay is how long a closed ticket channel survives before it
	// is deleted. The delay is fire-and-forget: a restart before it elapses
	// leaves the channel undeleted, which is accepted.
	CloseGraceDelay = 3 * time.Second

	// maxChannelNameLen bounds generated ticket channel names.
	maxChannelNameLen = 90

	// defaultChannelName is used when sanitising leaves nothing.
	defaultChannelName = "ticket"
)

var (
	// channelNameStrip removes everything a ticket channel name may not
	// contain.
	channelNameStrip = regexp.MustCompile(`[^a-z0-9- ]`)

	// whitespaceRun collapses runs of whitespace.
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// SanitizeChannelName lower-cases, strips disallowed characters, collapses
// whitespace to hyphens and truncates a candidate ticket channel name,
// substituting a default if nothing survives.
func SanitizeChannelName(name string) string {
	name = strings.ToLower(name)
	name = channelNameStrip.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	name = whitespaceRun.ReplaceAllString(name, "-")
	if len(name) > maxChannelNameLen {
		name = name[:maxChannelNameLen]
	}
	if name == "" {
		return defaultChannelName
	}
	return name
}

// Lifecycle orchestrates the open, claim and close transitions of tickets.
// The state machine per ticket is NONE -> UNCLAIMED -> CLAIMED -> CLOSED;
// claim is monotonic and close is terminal. All state is read from and
// written to the ticket channel's topic.
type Lifecycle struct {
	// l is the logger.
	l *slog.Logger

	// discord is the collaborator capability handle.
	discord Discord

	// archiver delivers transcripts on close.
	archiver *Archiver

	// closeDelay is the grace delay before a closed channel is deleted.
	closeDelay time.Duration

	mu sync.Mutex

	// claimLocks serialises claim attempts per ticket channel.
	claimLocks map[string]*sync.Mutex
}

// NewLifecycle creates a new ticket lifecycle.
func NewLifecycle(l *slog.Logger, discord Discord, archiver *Archiver) *Lifecycle {
	return &Lifecycle{
		l:          l,
		discord:    discord,
		archiver:   archiver,
		closeDelay: CloseGraceDelay,
		claimLocks: make(map[string]*sync.Mutex),
	}
}

// lockFor returns the claim lock for a ticket channel, creating it on first
// use. Locks are never removed; a guild's ticket churn is small enough that
// the map stays bounded for the life of the process.
func (lc *Lifecycle) lockFor(channelID string) *sync.Mutex {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	lock, ok := lc.claimLocks[channelID]
	if !ok {
		lock = new(sync.Mutex)
		lc.claimLocks[channelID] = lock
	}
	return lock
}

// Open creates a new ticket channel for the given panel and opener. It
// fails cleanly if the panel has no claim roles, the category no longer
// resolves, or the opener already has an open ticket for the panel.
func (lc *Lifecycle) Open(panel *entities.Panel, openerID, openerName string) (*discordgo.Channel, error) {
	if len(panel.ClaimRoleIDs) == 0 {
		return nil, ErrNoClaimRoles
	}

	category, err := lc.discord.Channel(panel.CategoryID)
	if err != nil || category.Type != discordgo.ChannelTypeGuildCategory {
		return nil, ErrCategoryInvalid
	}

	// One open ticket per user per panel. The scan over guild channels is
	// O(channel count), which is fine at the guild sizes this serves.
	channels, err := lc.discord.GuildChannels(panel.GuildID)
	if err != nil {
		return nil, fmt.Errorf("error listing guild channels: %w", err)
	}
	prefix := EncodeTopic(panel.PanelID, openerID)
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildText && strings.HasPrefix(ch.Topic, prefix) {
			return nil, &ExistingTicketError{ChannelID: ch.ID}
		}
	}

	base := panel.TicketName
	if base == "" {
		base = defaultChannelName
	}

	channel, err := lc.discord.GuildChannelCreateComplex(panel.GuildID, discordgo.GuildChannelCreateData{
		Name:                 SanitizeChannelName(base + "-" + openerName),
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                EncodeTopic(panel.PanelID, openerID),
		ParentID:             panel.CategoryID,
		PermissionOverwrites: PlanOverwrites(panel.GuildID, openerID, panel.ClaimRoleIDs, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating ticket channel: %w", err)
	}

	// The control message is best effort; the ticket is usable without it.
	if _, err := lc.discord.ChannelMessageSendComplex(channel.ID, controlMessage(panel, openerID)); err != nil {
		lc.l.Warn("Error sending ticket control message",
			slog.String("channel_id", channel.ID),
			slog.String(logging.KeyError, err.Error()),
		)
	}

	return channel, nil
}

// Claim records the actor as the ticket's claimer. Claim attempts on the
// same channel are serialised, and the claimed check is re-evaluated from a
// fresh topic read inside the critical section, so two near-simultaneous
// claims resolve to exactly one winner. controlMessageID, when non-empty,
// identifies the control message whose Claim button is disabled on success.
func (lc *Lifecycle) Claim(panel *entities.Panel, channelID, actorID string, actorRoles []string, controlMessageID string) (*State, error) {
	lock := lc.lockFor(channelID)
	lock.Lock()
	defer lock.Unlock()

	channel, err := lc.discord.Channel(channelID)
	if err != nil {
		return nil, fmt.Errorf("error getting ticket channel: %w", err)
	}

	st, ok := ParseTopic(channel.Topic, panel.PanelID)
	if !ok {
		return nil, ErrInvalidState
	}

	if !hasAnyRole(actorRoles, panel.ClaimRoleIDs) {
		return nil, ErrForbidden
	}

	if st.Claimed() {
		return nil, &AlreadyClaimedError{ClaimerID: st.ClaimerID}
	}

	// The topic write and the overwrite replacement travel in one edit. The
	// overwrite set is recomputed in full, so reapplying it converges.
	if _, err := lc.discord.ChannelEditComplex(channelID, &discordgo.ChannelEdit{
		Topic:                MarkClaimed(channel.Topic, actorID),
		PermissionOverwrites: PlanOverwrites(panel.GuildID, st.OpenerID, panel.ClaimRoleIDs, actorID),
	}); err != nil {
		return nil, fmt.Errorf("error updating ticket channel: %w", err)
	}

	st.ClaimerID = actorID

	if controlMessageID != "" {
		if err := lc.disableClaimButton(panel.PanelID, channelID, controlMessageID); err != nil {
			lc.l.Warn("Error disabling claim button",
				slog.String("channel_id", channelID),
				slog.String(logging.KeyError, err.Error()),
			)
		}
	}

	return st, nil
}

// CloseRequest describes a close attempt.
type CloseRequest struct {
	// Panel is the panel the ticket was opened from.
	Panel *entities.Panel

	// ChannelID is the ticket channel.
	ChannelID string

	// ActorID is the user closing the ticket.
	ActorID string

	// Admin is whether the actor holds the administrative override.
	Admin bool
}

// Close validates a close attempt and, on success, schedules the transcript
// delivery and the grace-delayed channel deletion in a detached goroutine.
// Only the opener, the claimer, or an administrator may close. The method
// returns before the channel is deleted.
func (lc *Lifecycle) Close(req *CloseRequest) error {
	channel, err := lc.discord.Channel(req.ChannelID)
	if err != nil {
		return fmt.Errorf("error getting ticket channel: %w", err)
	}

	st, ok := ParseTopic(channel.Topic, req.Panel.PanelID)
	if !ok {
		return ErrInvalidState
	}

	isOpener := req.ActorID == st.OpenerID
	isClaimer := st.Claimed() && req.ActorID == st.ClaimerID
	if !req.Admin && !isOpener && !isClaimer {
		return ErrForbidden
	}

	go lc.finishClose(req.Panel, channel, st, req.ActorID)
	return nil
}

// finishClose runs the slow half of a close without holding any lock:
// transcript delivery (best effort), the grace delay, then the channel
// deletion. A channel that is already gone counts as success.
func (lc *Lifecycle) finishClose(panel *entities.Panel, channel *discordgo.Channel, st *State, closerID string) {
	if panel.TranscriptChannelID != "" {
		if err := lc.archiver.Archive(&TranscriptRequest{
			Panel:     panel,
			Channel:   channel,
			OpenerID:  st.OpenerID,
			ClaimerID: st.ClaimerID,
			CloserID:  closerID,
			ClosedAt:  time.Now().UTC(),
		}); err != nil {
			lc.l.Warn("Error delivering ticket transcript",
				slog.String("channel_id", channel.ID),
				slog.String(logging.KeyError, err.Error()),
			)
		}
	}

	time.Sleep(lc.closeDelay)

	if _, err := lc.discord.ChannelDelete(channel.ID); err != nil && !isUnknownChannel(err) {
		lc.l.Error("Error deleting ticket channel",
			slog.String("channel_id", channel.ID),
			slog.String(logging.KeyError, err.Error()),
		)
	}
}

// disableClaimButton rewrites the control message's button row with the
// Claim button disabled. The row is rebuilt from the desired state rather
// than patched, so reapplying it to an already-disabled message is a no-op.
func (lc *Lifecycle) disableClaimButton(panelID, channelID, messageID string) error {
	rows := controlButtons(panelID, true)
	if _, err := lc.discord.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         messageID,
		Channel:    channelID,
		Components: &rows,
	}); err != nil {
		return fmt.Errorf("error editing control message: %w", err)
	}
	return nil
}

// controlMessage builds the message posted into a fresh ticket channel,
// carrying the panel title, description and disclaimer plus the Claim and
// Close buttons.
func controlMessage(panel *entities.Panel, openerID string) *discordgo.MessageSend {
	title := panel.Title
	if title == "" {
		title = "Ticket"
	}

	description := panel.Description
	if panel.Disclaimer != "" {
		description += "\n\n**Disclaimer**\n" + panel.Disclaimer
	}
	if len(description) > 4096 {
		description = description[:4096]
	}

	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:       title,
				Description: description,
				Color:       0x57F287,
				Fields: []*discordgo.MessageEmbedField{
					{
						Name:   "Opener",
						Value:  fmt.Sprintf("<@%s>", openerID),
						Inline: true,
					},
					{
						Name:   "Status",
						Value:  "Unclaimed",
						Inline: true,
					},
				},
				Footer: &discordgo.MessageEmbedFooter{
					Text: "Press Claim to take this ticket.",
				},
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			},
		},
		Components: controlButtons(panel.PanelID, false),
	}
}

// controlButtons builds the Claim/Close button row for a ticket's control
// message.
func controlButtons(panelID string, claimDisabled bool) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Claim",
					Style:    discordgo.SuccessButton,
					Disabled: claimDisabled,
					CustomID: ActionClaimTicket + ":" + panelID,
				},
				discordgo.Button{
					Label:    "Close",
					Style:    discordgo.DangerButton,
					CustomID: ActionCloseTicket + ":" + panelID,
				},
			},
		},
	}
}

// hasAnyRole reports whether the member's roles intersect the wanted set.
func hasAnyRole(memberRoles, wanted []string) bool {
	for _, roleID := range memberRoles {
		for _, wantedID := range wanted {
			if roleID == wantedID {
				return true
			}
		}
	}
	return false
}

// isUnknownChannel reports whether an error is Discord telling us the
// channel no longer exists.
func isUnknownChannel(err error) bool {
	restErr := new(discordgo.RESTError)
	return errors.As(err, &restErr) && restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownChannel
}

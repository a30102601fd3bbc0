package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/lynxbot/lynx/pkg/entities"
	"github.com/lynxbot/lynx/pkg/messages"
	"github.com/lynxbot/lynx/pkg/panelstore"
	"github.com/lynxbot/lynx/pkg/ticket"
)

const (
	// outcomeSuccess labels ticket transitions that went through.
	outcomeSuccess = "success"

	// outcomeRejected labels ticket transitions refused by a rule, such as a
	// missing role or a lost claim race.
	outcomeRejected = "rejected"

	// outcomeError labels ticket transitions that failed unexpectedly.
	outcomeError = "error"
)

// buttonPanel resolves the panel behind a pressed ticket button. A nil panel
// with a nil error means the press was already answered with an ephemeral
// message.
func buttonPanel(a IApp, i *discordgo.InteractionCreate) (*entities.Panel, error) {
	panel, err := a.Panels().GetPanel(context.Background(), buttonPanelID(i))
	if err != nil {
		if errors.Is(err, panelstore.ErrPanelNotFound) {
			if err := respondEphemeral(a, i, messages.ErrPanelNotFound); err != nil {
				return nil, fmt.Errorf("error responding to interaction: %w", err)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("error getting panel: %w", err)
	}
	return panel, nil
}

func openTicketHandler(a IApp, i *discordgo.InteractionCreate) error {
	// Throttle ticket opens per user before doing anything else.
	if !a.OpenLimiter(i.Member.User.ID).Allow() {
		TicketActions.WithLabelValues(ticket.ActionOpenTicket, outcomeRejected).Inc()
		if err := respondEphemeral(a, i, messages.ErrOpenTooFast); err != nil {
			return fmt.Errorf("error responding to interaction: %w", err)
		}
		return nil
	}

	panel, err := buttonPanel(a, i)
	if err != nil || panel == nil {
		return err
	}

	channel, err := a.Tickets().Open(panel, i.Member.User.ID, i.Member.User.Username)
	if err != nil {
		reply := ""
		existing := new(ticket.ExistingTicketError)
		switch {
		case errors.Is(err, ticket.ErrNoClaimRoles):
			reply = messages.ErrNoClaimRoles
		case errors.Is(err, ticket.ErrCategoryInvalid):
			reply = messages.ErrCategoryMissing
		case errors.As(err, &existing):
			reply = fmt.Sprintf("You already have a ticket: <#%s>", existing.ChannelID)
		default:
			TicketActions.WithLabelValues(ticket.ActionOpenTicket, outcomeError).Inc()
			return fmt.Errorf("error opening ticket: %w", err)
		}

		TicketActions.WithLabelValues(ticket.ActionOpenTicket, outcomeRejected).Inc()
		if err := respondEphemeral(a, i, reply); err != nil {
			return fmt.Errorf("error responding to interaction: %w", err)
		}
		return nil
	}

	TicketActions.WithLabelValues(ticket.ActionOpenTicket, outcomeSuccess).Inc()

	if err := respondEphemeral(a, i, fmt.Sprintf("✅ <#%s>", channel.ID)); err != nil {
		return fmt.Errorf("error responding to interaction: %w", err)
	}
	return nil
}

func claimTicketHandler(a IApp, i *discordgo.InteractionCreate) error {
	panel, err := buttonPanel(a, i)
	if err != nil || panel == nil {
		return err
	}

	st, err := a.Tickets().Claim(panel, i.ChannelID, i.Member.User.ID, i.Member.Roles, i.Message.ID)
	if err != nil {
		reply := ""
		claimed := new(ticket.AlreadyClaimedError)
		switch {
		case errors.Is(err, ticket.ErrInvalidState):
			reply = messages.ErrNotATicket
		case errors.Is(err, ticket.ErrForbidden):
			reply = messages.ErrNoPermission
		case errors.As(err, &claimed):
			reply = fmt.Sprintf("Already claimed by <@%s>.", claimed.ClaimerID)
		default:
			TicketActions.WithLabelValues(ticket.ActionClaimTicket, outcomeError).Inc()
			return fmt.Errorf("error claiming ticket: %w", err)
		}

		TicketActions.WithLabelValues(ticket.ActionClaimTicket, outcomeRejected).Inc()
		if err := respondEphemeral(a, i, reply); err != nil {
			return fmt.Errorf("error responding to interaction: %w", err)
		}
		return nil
	}

	TicketActions.WithLabelValues(ticket.ActionClaimTicket, outcomeSuccess).Inc()

	// The claim is announced publicly so the opener can see who picked the
	// ticket up.
	if err := respond(a, i, fmt.Sprintf("✅ Claimed by <@%s>", st.ClaimerID)); err != nil {
		return fmt.Errorf("error responding to interaction: %w", err)
	}
	return nil
}

func closeTicketHandler(a IApp, i *discordgo.InteractionCreate) error {
	panel, err := buttonPanel(a, i)
	if err != nil || panel == nil {
		return err
	}

	err = a.Tickets().Close(&ticket.CloseRequest{
		Panel:     panel,
		ChannelID: i.ChannelID,
		ActorID:   i.Member.User.ID,
		Admin:     isAdmin(i),
	})
	if err != nil {
		reply := ""
		switch {
		case errors.Is(err, ticket.ErrInvalidState):
			reply = messages.ErrNotATicket
		case errors.Is(err, ticket.ErrForbidden):
			reply = messages.ErrNoPermission
		default:
			TicketActions.WithLabelValues(ticket.ActionCloseTicket, outcomeError).Inc()
			return fmt.Errorf("error closing ticket: %w", err)
		}

		TicketActions.WithLabelValues(ticket.ActionCloseTicket, outcomeRejected).Inc()
		if err := respondEphemeral(a, i, reply); err != nil {
			return fmt.Errorf("error responding to interaction: %w", err)
		}
		return nil
	}

	TicketActions.WithLabelValues(ticket.ActionCloseTicket, outcomeSuccess).Inc()

	// The channel will be deleted shortly after this acknowledgement.
	if err := respondEphemeral(a, i, messages.Closing); err != nil {
		return fmt.Errorf("error responding to interaction: %w", err)
	}
	return nil
}

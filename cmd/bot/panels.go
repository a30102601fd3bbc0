package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lynxbot/lynx/pkg/entities"
	"github.com/lynxbot/lynx/pkg/logging"
	"github.com/lynxbot/lynx/pkg/messages"
	"github.com/lynxbot/lynx/pkg/panelstore"
	"github.com/lynxbot/lynx/pkg/ticket"
)

const (
	// PanelCmdName is the command for managing ticket panels.
	PanelCmdName = "panel"

	// PanelCreateCmdName is the sub command for creating a panel.
	PanelCreateCmdName = "create"

	// PanelClaimRolesAddCmdName is the sub command for adding a claim role.
	PanelClaimRolesAddCmdName = "claimroles_add"

	// PanelClaimRolesRemoveCmdName is the sub command for removing a claim role.
	PanelClaimRolesRemoveCmdName = "claimroles_remove"

	// PanelListCmdName is the sub command for listing panels.
	PanelListCmdName = "list"

	// PanelDeleteCmdName is the sub command for deleting a panel.
	PanelDeleteCmdName = "delete"
)

const (
	// defaultPanelTitle is used on the panel message when no title is set.
	defaultPanelTitle = "Support Tickets"

	// defaultPanelAvailability is used on the panel message when no
	// availability notice is set.
	defaultPanelAvailability = "We'll respond as soon as possible."

	// defaultPanelColor is the accent colour of the panel embed.
	defaultPanelColor = 0x00ff7f

	// maxListReplyLen bounds the panel list reply so it stays inside the
	// message size limit.
	maxListReplyLen = 1900
)

var (
	// panelCmd is the command for managing ticket panels.
	panelCmd = &discordgo.ApplicationCommand{
		Name:        PanelCmdName,
		Type:        discordgo.ChatApplicationCommand,
		Description: "This is the command for managing ticket panels.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        PanelCreateCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This creates a ticket panel and posts its message.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:         "channel",
						Type:         discordgo.ApplicationCommandOptionChannel,
						Description:  "The channel to post the panel message in.",
						Required:     true,
						ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews},
					},
					{
						Name:         "category",
						Type:         discordgo.ApplicationCommandOptionChannel,
						Description:  "The category that tickets are created under.",
						Required:     true,
						ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildCategory},
					},
					{
						Name:        "title",
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "The panel title.",
						Required:    true,
					},
					{
						Name:        "description",
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "The panel description.",
						Required:    true,
					},
					{
						Name:        "claimrole",
						Type:        discordgo.ApplicationCommandOptionRole,
						Description: "A role whose members may claim tickets from this panel.",
						Required:    true,
					},
					{
						Name:        "ticketname",
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "The prefix used for generated ticket channel names.",
						Required:    true,
					},
					{
						Name:        "claimrole2",
						Type:        discordgo.ApplicationCommandOptionRole,
						Description: "A second claim role.",
					},
					{
						Name:        "claimrole3",
						Type:        discordgo.ApplicationCommandOptionRole,
						Description: "A third claim role.",
					},
					{
						Name:        "button",
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "The label of the open ticket button.",
					},
					{
						Name:        "availability",
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "An availability notice shown on the panel.",
					},
					{
						Name:        "disclaimer",
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "A disclaimer shown inside each ticket.",
					},
					{
						Name:         "transcriptchannel",
						Type:         discordgo.ApplicationCommandOptionChannel,
						Description:  "The channel that transcripts are delivered to on close.",
						ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews},
					},
					{
						Name:        "image",
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "A banner image URL for the panel message.",
					},
					{
						Name:        "thumbnail",
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "A thumbnail URL for the panel message.",
					},
				},
			},
			{
				Name:        PanelClaimRolesAddCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This adds a claim role to a panel.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "panel",
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "The ID of the panel.",
						Required:    true,
					},
					{
						Name:        "role",
						Type:        discordgo.ApplicationCommandOptionRole,
						Description: "The role to add.",
						Required:    true,
					},
				},
			},
			{
				Name:        PanelClaimRolesRemoveCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This removes a claim role from a panel.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "panel",
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "The ID of the panel.",
						Required:    true,
					},
					{
						Name:        "role",
						Type:        discordgo.ApplicationCommandOptionRole,
						Description: "The role to remove.",
						Required:    true,
					},
				},
			},
			{
				Name:        PanelListCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This lists all panels.",
			},
			{
				Name:        PanelDeleteCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This deletes a panel. The posted panel message is not removed.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "panel",
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "The ID of the panel.",
						Required:    true,
					},
				},
			},
		},
	}
)

func panelCmdController(a IApp, i *discordgo.InteractionCreate) (commandProcessor, error) {
	// Panel management is admin only.
	if !isAdmin(i) {
		if err := respondEphemeral(a, i, messages.ErrAdminOnly); err != nil {
			return nil, fmt.Errorf("error responding to interaction: %w", err)
		}
		return nil, nil
	}

	switch i.ApplicationCommandData().Options[0].Name {
	case PanelCreateCmdName:
		return createPanelProcessor, nil
	case PanelClaimRolesAddCmdName:
		return addClaimRoleProcessor, nil
	case PanelClaimRolesRemoveCmdName:
		return removeClaimRoleProcessor, nil
	case PanelListCmdName:
		return listPanelsProcessor, nil
	case PanelDeleteCmdName:
		return deletePanelProcessor, nil
	default:
		return nil, fmt.Errorf("unknown sub command: %s", i.ApplicationCommandData().Options[0].Name)
	}
}

// subCommandOptions indexes the options of the invoked sub command by name.
func subCommandOptions(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	opts := make(map[string]*discordgo.ApplicationCommandInteractionDataOption)
	for _, opt := range i.ApplicationCommandData().Options[0].Options {
		opts[opt.Name] = opt
	}
	return opts
}

func optString(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	opt, ok := opts[name]
	if !ok {
		return ""
	}
	return opt.StringValue()
}

func optChannelID(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	opt, ok := opts[name]
	if !ok {
		return ""
	}
	return opt.ChannelValue(nil).ID
}

// optClaimRoles collects the claim role options, deduplicated in option
// order. The schema caps the count at three.
func optClaimRoles(opts map[string]*discordgo.ApplicationCommandInteractionDataOption) []string {
	roles := make([]string, 0, 3)
	for _, name := range []string{"claimrole", "claimrole2", "claimrole3"} {
		opt, ok := opts[name]
		if !ok {
			continue
		}
		id := opt.RoleValue(nil, "").ID
		if id == "" {
			continue
		}
		dup := false
		for _, existing := range roles {
			if existing == id {
				dup = true
				break
			}
		}
		if !dup {
			roles = append(roles, id)
		}
	}
	return roles
}

func createPanelProcessor(a IApp, i *discordgo.InteractionCreate) error {
	opts := subCommandOptions(i)

	panel := &entities.Panel{
		GuildID:             i.GuildID,
		ChannelID:           optChannelID(opts, "channel"),
		CategoryID:          optChannelID(opts, "category"),
		Title:               optString(opts, "title"),
		Description:         optString(opts, "description"),
		ImageURL:            optString(opts, "image"),
		ThumbnailURL:        optString(opts, "thumbnail"),
		Availability:        optString(opts, "availability"),
		Disclaimer:          optString(opts, "disclaimer"),
		ButtonLabel:         optString(opts, "button"),
		TicketName:          optString(opts, "ticketname"),
		ClaimRoleIDs:        optClaimRoles(opts),
		TranscriptChannelID: optChannelID(opts, "transcriptchannel"),
		Color:               defaultPanelColor,
	}

	// The schema restricts the channel options to the right kinds, but the
	// values are IDs supplied by the client so they are verified here anyway.
	channel, err := a.Session().Channel(panel.ChannelID)
	if err != nil {
		return fmt.Errorf("error getting panel channel: %w", err)
	}
	if !isTextChannel(channel) {
		if err := respondEphemeral(a, i, "The panel channel must be a text channel."); err != nil {
			return fmt.Errorf("error responding to interaction: %w", err)
		}
		return nil
	}

	category, err := a.Session().Channel(panel.CategoryID)
	if err != nil {
		return fmt.Errorf("error getting ticket category: %w", err)
	}
	if category.Type != discordgo.ChannelTypeGuildCategory {
		if err := respondEphemeral(a, i, "The ticket category must be a category channel."); err != nil {
			return fmt.Errorf("error responding to interaction: %w", err)
		}
		return nil
	}

	panel, err = a.Panels().CreatePanel(context.Background(), panel)
	if err != nil {
		return fmt.Errorf("error creating panel: %w", err)
	}

	// Post the panel message and remember its ID. If the post fails, the
	// stored panel is removed again so a broken panel is not left behind.
	msg, err := postPanelMessage(a, panel)
	if err != nil {
		if derr := a.Panels().DeletePanel(context.Background(), panel.PanelID); derr != nil {
			a.Log().Error("Error deleting panel after failed message post", slog.String(logging.KeyError, derr.Error()))
		}
		return fmt.Errorf("error posting panel message: %w", err)
	}

	panel.MessageID = msg.ID
	if err := a.Panels().SavePanel(context.Background(), panel); err != nil {
		return fmt.Errorf("error saving panel: %w", err)
	}

	err = respondEphemeral(a, i, fmt.Sprintf("✅ Panel `%s` created in <#%s>.", panel.PanelID, panel.ChannelID))
	if err != nil {
		return fmt.Errorf("error responding to interaction: %w", err)
	}
	return nil
}

// postPanelMessage posts the panel embed with its open ticket button.
func postPanelMessage(a IApp, panel *entities.Panel) (*discordgo.Message, error) {
	title := panel.Title
	if title == "" {
		title = defaultPanelTitle
	}

	availability := panel.Availability
	if availability == "" {
		availability = defaultPanelAvailability
	}

	roleMentions := "None"
	if len(panel.ClaimRoleIDs) > 0 {
		mentions := make([]string, 0, len(panel.ClaimRoleIDs))
		for _, id := range panel.ClaimRoleIDs {
			mentions = append(mentions, "<@&"+id+">")
		}
		roleMentions = strings.Join(mentions, " ")
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: panel.Description,
		Color:       panel.Color,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "Availability",
				Value: availability,
			},
			{
				Name:  "Who can handle tickets",
				Value: roleMentions,
			},
		},
	}
	if panel.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: panel.ImageURL}
	}
	if panel.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: panel.ThumbnailURL}
	}

	label := panel.ButtonLabel
	if label == "" {
		label = "Open Ticket"
	}

	msg, err := a.Session().ChannelMessageSendComplex(panel.ChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    label,
						Style:    discordgo.PrimaryButton,
						CustomID: ticket.ActionOpenTicket + ":" + panel.PanelID,
					},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error sending message: %w", err)
	}
	return msg, nil
}

func addClaimRoleProcessor(a IApp, i *discordgo.InteractionCreate) error {
	opts := subCommandOptions(i)

	err := a.Panels().AddClaimRole(context.Background(), optString(opts, "panel"), opts["role"].RoleValue(nil, "").ID)
	if err != nil {
		if errors.Is(err, panelstore.ErrPanelNotFound) {
			if err := respondEphemeral(a, i, messages.ErrPanelNotFound); err != nil {
				return fmt.Errorf("error responding to interaction: %w", err)
			}
			return nil
		}
		return fmt.Errorf("error adding claim role: %w", err)
	}

	if err := respondEphemeral(a, i, messages.Done); err != nil {
		return fmt.Errorf("error responding to interaction: %w", err)
	}
	return nil
}

func removeClaimRoleProcessor(a IApp, i *discordgo.InteractionCreate) error {
	opts := subCommandOptions(i)

	err := a.Panels().RemoveClaimRole(context.Background(), optString(opts, "panel"), opts["role"].RoleValue(nil, "").ID)
	if err != nil {
		if errors.Is(err, panelstore.ErrPanelNotFound) {
			if err := respondEphemeral(a, i, messages.ErrPanelNotFound); err != nil {
				return fmt.Errorf("error responding to interaction: %w", err)
			}
			return nil
		}
		return fmt.Errorf("error removing claim role: %w", err)
	}

	if err := respondEphemeral(a, i, messages.Done); err != nil {
		return fmt.Errorf("error responding to interaction: %w", err)
	}
	return nil
}

func listPanelsProcessor(a IApp, i *discordgo.InteractionCreate) error {
	panels, err := a.Panels().ListPanels(context.Background())
	if err != nil {
		return fmt.Errorf("error listing panels: %w", err)
	}

	if len(panels) == 0 {
		if err := respondEphemeral(a, i, messages.NoPanels); err != nil {
			return fmt.Errorf("error responding to interaction: %w", err)
		}
		return nil
	}

	sb := new(strings.Builder)
	for _, p := range panels {
		line := fmt.Sprintf("• `%s` — %s — <#%s> — ticketname: %s\n", p.PanelID, p.Title, p.ChannelID, p.TicketName)
		if sb.Len()+len(line) > maxListReplyLen {
			sb.WriteString("…")
			break
		}
		sb.WriteString(line)
	}

	if err := respondEphemeral(a, i, sb.String()); err != nil {
		return fmt.Errorf("error responding to interaction: %w", err)
	}
	return nil
}

func deletePanelProcessor(a IApp, i *discordgo.InteractionCreate) error {
	opts := subCommandOptions(i)

	err := a.Panels().DeletePanel(context.Background(), optString(opts, "panel"))
	if err != nil {
		if errors.Is(err, panelstore.ErrPanelNotFound) {
			if err := respondEphemeral(a, i, messages.ErrPanelNotFound); err != nil {
				return fmt.Errorf("error responding to interaction: %w", err)
			}
			return nil
		}
		return fmt.Errorf("error deleting panel: %w", err)
	}

	if err := respondEphemeral(a, i, messages.Deleted); err != nil {
		return fmt.Errorf("error responding to interaction: %w", err)
	}
	return nil
}

package main

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lynxbot/lynx/pkg/messages"
)

func respondError(a IApp, i *discordgo.InteractionCreate) error {
	return respondEphemeral(a, i, messages.ErrUserErrorProcessing)
}

func respondEphemeral(a IApp, i *discordgo.InteractionCreate, content string) error {
	return a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func respond(a IApp, i *discordgo.InteractionCreate, content string) error {
	return a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	})
}

// isAdmin reports whether the interaction's member holds the administrator
// permission in the guild.
func isAdmin(i *discordgo.InteractionCreate) bool {
	return i.Member != nil && i.Member.Permissions&discordgo.PermissionAdministrator == discordgo.PermissionAdministrator
}

// buttonPanelID extracts the panel ID from a button's "<action>:<panelID>"
// custom ID.
func buttonPanelID(i *discordgo.InteractionCreate) string {
	_, panelID, _ := strings.Cut(i.MessageComponentData().CustomID, ":")
	return panelID
}

// isTextChannel reports whether a channel can carry panel or transcript
// messages.
func isTextChannel(channel *discordgo.Channel) bool {
	return channel != nil && (channel.Type == discordgo.ChannelTypeGuildText || channel.Type == discordgo.ChannelTypeGuildNews)
}

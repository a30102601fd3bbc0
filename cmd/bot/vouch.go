package main

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	// VouchCmdName is the command for posting vouch instructions.
	VouchCmdName = "vouch"

	// vouchColor is the accent colour of the vouch embed.
	vouchColor = 0x57f287
)

// vouchCmd is the command for posting vouch instructions.
var vouchCmd = &discordgo.ApplicationCommand{
	Name:        VouchCmdName,
	Type:        discordgo.ChatApplicationCommand,
	Description: "This posts instructions for vouching in a channel.",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Name:         "channel",
			Type:         discordgo.ApplicationCommandOptionChannel,
			Description:  "The channel to vouch in.",
			Required:     true,
			ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews},
		},
	},
}

func vouchCmdController(IApp, *discordgo.InteractionCreate) (commandProcessor, error) {
	return vouchProcessor, nil
}

func vouchProcessor(a IApp, i *discordgo.InteractionCreate) error {
	channelID := i.ApplicationCommandData().Options[0].ChannelValue(nil).ID

	channel, err := a.Session().Channel(channelID)
	if err != nil {
		return fmt.Errorf("error getting channel: %w", err)
	}
	if !isTextChannel(channel) {
		if err := respondEphemeral(a, i, "Pick a text channel."); err != nil {
			return fmt.Errorf("error responding to interaction: %w", err)
		}
		return nil
	}

	err = a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "Vouches",
					Description: fmt.Sprintf("Please vouch your indexer in <#%s>.\n\nKeep it honest and specific.", channel.ID),
					Color:       vouchColor,
					Footer: &discordgo.MessageEmbedFooter{
						Text: "Thanks for supporting the team.",
					},
					Timestamp: time.Now().UTC().Format(time.RFC3339),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("error responding to interaction: %w", err)
	}
	return nil
}

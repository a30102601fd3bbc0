package ticket

import (
	"github.com/bwmarrin/discordgo"
)

// Discord is the subset of the Discord session that the ticket lifecycle
// and the transcript archiver consume. *discordgo.Session satisfies it;
// tests substitute a fake.
type Discord interface {
	// Channel returns a channel by ID.
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)

	// GuildChannels returns all channels of a guild.
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)

	// GuildChannelCreateComplex creates a channel with a name, topic and
	// initial permission overwrites under a parent category.
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)

	// ChannelEditComplex edits a channel; the permission overwrite set it
	// carries replaces the channel's set wholesale.
	ChannelEditComplex(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error)

	// ChannelDelete deletes a channel.
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)

	// ChannelMessageSendComplex sends a message carrying structured content,
	// interactive controls and file attachments.
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)

	// ChannelMessageEditComplex edits an existing message.
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)

	// ChannelMessages pages through a channel's message history in
	// reverse-chronological batches.
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
}

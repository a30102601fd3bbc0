package ticket

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/bwmarrin/discordgo"
	"github.com/lynxbot/lynx/pkg/entities"
)

const (
	// transcriptPageSize is how many messages are fetched per history page.
	transcriptPageSize = 100

	// transcriptMaxMessages caps the total number of messages retrieved for
	// a transcript, bounding memory and delivery size.
	transcriptMaxMessages = 2000
)

// Archiver renders and delivers ticket transcripts. Delivery is best
// effort throughout: any failure is reported to the caller to log and
// swallow, and must never prevent the channel deletion step of a close.
type Archiver struct {
	// l is the logger.
	l *slog.Logger

	// discord is the collaborator capability handle.
	discord Discord

	// pageSize and maxMessages bound the history fetch.
	pageSize    int
	maxMessages int
}

// NewArchiver creates a new transcript archiver.
func NewArchiver(l *slog.Logger, discord Discord) *Archiver {
	return &Archiver{
		l:           l,
		discord:     discord,
		pageSize:    transcriptPageSize,
		maxMessages: transcriptMaxMessages,
	}
}

// TranscriptRequest describes the transcript of one closed ticket.
type TranscriptRequest struct {
	// Panel is the panel the ticket was opened from.
	Panel *entities.Panel

	// Channel is the ticket channel being closed.
	Channel *discordgo.Channel

	// OpenerID, ClaimerID and CloserID identify the participants. ClaimerID
	// is empty for a ticket closed unclaimed.
	OpenerID  string
	ClaimerID string
	CloserID  string

	// ClosedAt is the close time recorded in the header.
	ClosedAt time.Time
}

// Archive fetches the ticket channel's history, renders it as a text
// document and delivers it as an attachment to the panel's transcript
// channel with a short summary embed.
func (a *Archiver) Archive(req *TranscriptRequest) error {
	dest, err := a.discord.Channel(req.Panel.TranscriptChannelID)
	if err != nil {
		return fmt.Errorf("error resolving transcript channel: %w", err)
	}
	if dest.Type != discordgo.ChannelTypeGuildText && dest.Type != discordgo.ChannelTypeGuildNews {
		return fmt.Errorf("transcript channel %s is not a text channel", dest.ID)
	}

	history, err := a.fetchHistory(req.Channel.ID)
	if err != nil {
		return fmt.Errorf("error fetching ticket history: %w", err)
	}

	doc := renderTranscript(req, history)

	if _, err := a.discord.ChannelMessageSendComplex(dest.ID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title: "Ticket Transcript",
				Color: 0xED4245,
				Fields: []*discordgo.MessageEmbedField{
					{
						Name:   "Panel",
						Value:  panelLabel(req.Panel),
						Inline: true,
					},
					{
						Name:   "Ticket",
						Value:  "#" + req.Channel.Name,
						Inline: true,
					},
				},
				Timestamp: req.ClosedAt.Format(time.RFC3339),
			},
		},
		Files: []*discordgo.File{
			{
				Name:        "transcript-" + req.Channel.ID + ".txt",
				ContentType: "text/plain",
				Reader:      strings.NewReader(doc),
			},
		},
	}); err != nil {
		return fmt.Errorf("error delivering transcript: %w", err)
	}

	return nil
}

// fetchHistory pages through the channel's history newest-first until it is
// exhausted or the cap is reached, then returns the messages oldest-first.
func (a *Archiver) fetchHistory(channelID string) ([]*discordgo.Message, error) {
	var all []*discordgo.Message
	beforeID := ""

	for len(all) < a.maxMessages {
		batch, err := a.discord.ChannelMessages(channelID, a.pageSize, beforeID, "", "")
		if err != nil {
			return nil, fmt.Errorf("error fetching message page: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		all = append(all, batch...)
		beforeID = batch[len(batch)-1].ID

		if len(batch) < a.pageSize {
			break
		}
	}

	if len(all) > a.maxMessages {
		all = all[:a.maxMessages]
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})
	return all, nil
}

// renderTranscript renders the header block and one line per message.
func renderTranscript(req *TranscriptRequest, history []*discordgo.Message) string {
	var b strings.Builder

	claimed := req.ClaimerID
	if claimed == "" {
		claimed = "unclaimed"
	}
	opened := req.OpenerID
	if opened == "" {
		opened = "unknown"
	}

	fmt.Fprintf(&b, "Panel: %s\n", panelLabel(req.Panel))
	fmt.Fprintf(&b, "Ticket Channel: #%s (%s)\n", req.Channel.Name, req.Channel.ID)
	fmt.Fprintf(&b, "Opened By: %s\n", opened)
	fmt.Fprintf(&b, "Claimed By: %s\n", claimed)
	fmt.Fprintf(&b, "Closed By: %s\n", req.CloserID)
	fmt.Fprintf(&b, "Closed At: %s\n\n", req.ClosedAt.Format(time.RFC3339))

	for i, m := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(renderLine(m))
	}

	return b.String()
}

// renderLine renders a single message: timestamp, author, sanitised text,
// attachment URLs and embed count.
func renderLine(m *discordgo.Message) string {
	author := "Unknown (?)"
	if m.Author != nil {
		author = fmt.Sprintf("%s (%s)", m.Author.Username, m.Author.ID)
	}

	line := fmt.Sprintf("[%s] %s: %s",
		m.Timestamp.UTC().Format(time.RFC3339),
		author,
		sanitizeContent(m.Content),
	)

	if len(m.Attachments) > 0 {
		urls := make([]string, 0, len(m.Attachments))
		for _, att := range m.Attachments {
			urls = append(urls, att.URL)
		}
		line += fmt.Sprintf(" [attachments: %s]", strings.Join(urls, " "))
	}

	if len(m.Embeds) > 0 {
		line += fmt.Sprintf(" [embeds: %d]", len(m.Embeds))
	}

	return line
}

// sanitizeContent strips control characters from message text so each
// message stays on its own transcript line.
func sanitizeContent(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// panelLabel is the panel's title, falling back to its ID.
func panelLabel(panel *entities.Panel) string {
	if panel.Title != "" {
		return panel.Title
	}
	return panel.PanelID
}

package ticket

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lynxbot/lynx/pkg/entities"
	"github.com/lynxbot/lynx/pkg/logging"
	"github.com/stretchr/testify/require"
)

const (
	testTicketChannelID = "500000000000000001"
	testTranscriptDest  = "600000000000000001"
	testCloserID        = "700000000000000001"
)

// seedHistory populates the fake with count messages, oldest first, and
// returns the expected attachment URLs. Attachments are scattered across
// the history at the given indexes.
func seedHistory(f *fakeDiscord, count int, attachmentAt []int) []string {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	withAttachment := make(map[int]bool, len(attachmentAt))
	for _, i := range attachmentAt {
		withAttachment[i] = true
	}

	var urls []string
	oldestFirst := make([]*discordgo.Message, 0, count)
	for i := 0; i < count; i++ {
		m := &discordgo.Message{
			ID:        fmt.Sprintf("m-%03d", i),
			ChannelID: testTicketChannelID,
			Content:   fmt.Sprintf("message %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Author: &discordgo.User{
				ID:       testOpener,
				Username: "opener",
			},
		}
		if withAttachment[i] {
			url := fmt.Sprintf("https://cdn.example.com/file-%d.png", i)
			m.Attachments = []*discordgo.MessageAttachment{{URL: url}}
			urls = append(urls, url)
		}
		oldestFirst = append(oldestFirst, m)
	}

	// History is served newest-first, the way the platform pages it.
	newestFirst := make([]*discordgo.Message, count)
	for i, m := range oldestFirst {
		newestFirst[count-1-i] = m
	}
	f.history[testTicketChannelID] = newestFirst

	return urls
}

func newTestArchiver(t *testing.T, f *fakeDiscord) *Archiver {
	t.Helper()

	l, err := logging.CommonLogger(logging.NewConfig(`tests`))
	require.NoError(t, err, "Failed to create logger")

	return NewArchiver(l, f)
}

func transcriptRequest(panel *entities.Panel) *TranscriptRequest {
	return &TranscriptRequest{
		Panel: panel,
		Channel: &discordgo.Channel{
			ID:   testTicketChannelID,
			Name: "ticket-opener",
		},
		OpenerID:  testOpener,
		ClaimerID: testClaimer,
		CloserID:  testCloserID,
		ClosedAt:  time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC),
	}
}

func deliveredDocument(t *testing.T, f *fakeDiscord) string {
	t.Helper()

	sent := f.sentTo(testTranscriptDest)
	require.Len(t, sent, 1)
	require.Len(t, sent[0].Files, 1)
	require.Equal(t, "transcript-"+testTicketChannelID+".txt", sent[0].Files[0].Name)

	b, err := io.ReadAll(sent[0].Files[0].Reader)
	require.NoError(t, err)
	return string(b)
}

func TestArchivePreservesHistory(t *testing.T) {
	f := newFakeDiscord()
	f.addChannel(&discordgo.Channel{
		ID:   testTranscriptDest,
		Type: discordgo.ChannelTypeGuildText,
	})
	urls := seedHistory(f, 50, []int{5, 25, 45})

	a := newTestArchiver(t, f)
	// A small page size forces the pagination loop through several fetches.
	a.pageSize = 10

	panel := newTestPanel()
	panel.TranscriptChannelID = testTranscriptDest

	require.NoError(t, a.Archive(transcriptRequest(panel)))

	doc := deliveredDocument(t, f)
	lines := strings.Split(doc, "\n")

	// Header block carries the participant identities and close time.
	require.Equal(t, "Panel: Support", lines[0])
	require.Equal(t, "Ticket Channel: #ticket-opener ("+testTicketChannelID+")", lines[1])
	require.Equal(t, "Opened By: "+testOpener, lines[2])
	require.Equal(t, "Claimed By: "+testClaimer, lines[3])
	require.Equal(t, "Closed By: "+testCloserID, lines[4])
	require.Equal(t, "Closed At: 2024-03-01T15:00:00Z", lines[5])
	require.Equal(t, "", lines[6])

	// All 50 messages are present, in chronological order.
	body := lines[7:]
	require.Len(t, body, 50)
	for i, line := range body {
		require.Contains(t, line, fmt.Sprintf("message %d", i))
	}

	// All attachment URLs survive.
	for _, url := range urls {
		require.Contains(t, doc, url)
	}
}

func TestArchiveUnclaimedTicket(t *testing.T) {
	f := newFakeDiscord()
	f.addChannel(&discordgo.Channel{
		ID:   testTranscriptDest,
		Type: discordgo.ChannelTypeGuildText,
	})
	seedHistory(f, 3, nil)

	a := newTestArchiver(t, f)
	panel := newTestPanel()
	panel.TranscriptChannelID = testTranscriptDest

	req := transcriptRequest(panel)
	req.ClaimerID = ""

	require.NoError(t, a.Archive(req))
	require.Contains(t, deliveredDocument(t, f), "Claimed By: unclaimed")
}

func TestArchiveDestinationMissing(t *testing.T) {
	f := newFakeDiscord()
	a := newTestArchiver(t, f)

	panel := newTestPanel()
	panel.TranscriptChannelID = testTranscriptDest

	// The destination does not resolve; the caller logs and swallows this.
	require.Error(t, a.Archive(transcriptRequest(panel)))
	require.Empty(t, f.sentTo(testTranscriptDest))
}

func TestArchiveDestinationWrongType(t *testing.T) {
	f := newFakeDiscord()
	f.addChannel(&discordgo.Channel{
		ID:   testTranscriptDest,
		Type: discordgo.ChannelTypeGuildCategory,
	})

	a := newTestArchiver(t, f)
	panel := newTestPanel()
	panel.TranscriptChannelID = testTranscriptDest

	require.Error(t, a.Archive(transcriptRequest(panel)))
}

func TestArchiveCapsHistory(t *testing.T) {
	f := newFakeDiscord()
	f.addChannel(&discordgo.Channel{
		ID:   testTranscriptDest,
		Type: discordgo.ChannelTypeGuildText,
	})
	seedHistory(f, 30, nil)

	a := newTestArchiver(t, f)
	a.pageSize = 10
	a.maxMessages = 20

	panel := newTestPanel()
	panel.TranscriptChannelID = testTranscriptDest

	require.NoError(t, a.Archive(transcriptRequest(panel)))

	doc := deliveredDocument(t, f)
	require.Len(t, strings.Split(doc, "\n"), 7+20)
}

func TestRenderLineSanitisesContent(t *testing.T) {
	m := &discordgo.Message{
		Content:   "line one\nline two\rwith\ttab",
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Author: &discordgo.User{
			ID:       testOpener,
			Username: "opener",
		},
		Embeds: []*discordgo.MessageEmbed{{}, {}},
	}

	line := renderLine(m)
	require.Equal(t, "[2024-03-01T12:00:00Z] opener ("+testOpener+"): line oneline twowith\ttab [embeds: 2]", line)
}

package ticket

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lynxbot/lynx/pkg/entities"
	"github.com/lynxbot/lynx/pkg/logging"
	"github.com/stretchr/testify/require"
)

const (
	testCategoryID   = "300000000000000001"
	testClaimRoleID  = "200000000000000001"
	testClaimRole2ID = "200000000000000002"
)

// fakeDiscord is an in-memory implementation of the Discord capability
// surface. It records every mutation so tests can assert on exactly what
// was sent, edited and deleted.
type fakeDiscord struct {
	mu       sync.Mutex
	channels map[string]*discordgo.Channel
	history  map[string][]*discordgo.Message // newest-first
	sent     map[string][]*discordgo.MessageSend
	edited   []*discordgo.MessageEdit
	deleted  []string
	nextID   int
}

func newFakeDiscord() *fakeDiscord {
	return &fakeDiscord{
		channels: make(map[string]*discordgo.Channel),
		history:  make(map[string][]*discordgo.Message),
		sent:     make(map[string][]*discordgo.MessageSend),
	}
}

func unknownChannelErr() error {
	return &discordgo.RESTError{
		Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownChannel},
	}
}

func (f *fakeDiscord) addChannel(ch *discordgo.Channel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[ch.ID] = ch
}

func (f *fakeDiscord) channelCopy(id string) *discordgo.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[id]
	if !ok {
		return nil
	}
	dup := *ch
	return &dup
}

func (f *fakeDiscord) Channel(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, unknownChannelErr()
	}
	dup := *ch
	return &dup, nil
}

func (f *fakeDiscord) GuildChannels(guildID string, _ ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*discordgo.Channel
	for _, ch := range f.channels {
		if ch.GuildID == guildID {
			dup := *ch
			out = append(out, &dup)
		}
	}
	return out, nil
}

func (f *fakeDiscord) GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	ch := &discordgo.Channel{
		ID:                   fmt.Sprintf("chan-%d", f.nextID),
		GuildID:              guildID,
		Name:                 data.Name,
		Topic:                data.Topic,
		Type:                 data.Type,
		ParentID:             data.ParentID,
		PermissionOverwrites: data.PermissionOverwrites,
	}
	f.channels[ch.ID] = ch
	dup := *ch
	return &dup, nil
}

func (f *fakeDiscord) ChannelEditComplex(channelID string, data *discordgo.ChannelEdit, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, unknownChannelErr()
	}
	if data.Topic != "" {
		ch.Topic = data.Topic
	}
	if data.PermissionOverwrites != nil {
		ch.PermissionOverwrites = data.PermissionOverwrites
	}
	dup := *ch
	return &dup, nil
}

func (f *fakeDiscord) ChannelDelete(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, unknownChannelErr()
	}
	delete(f.channels, channelID)
	f.deleted = append(f.deleted, channelID)
	return ch, nil
}

func (f *fakeDiscord) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[channelID] = append(f.sent[channelID], data)
	f.nextID++
	return &discordgo.Message{ID: fmt.Sprintf("msg-%d", f.nextID), ChannelID: channelID}, nil
}

func (f *fakeDiscord) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, m)
	return &discordgo.Message{ID: m.ID, ChannelID: m.Channel}, nil
}

func (f *fakeDiscord) ChannelMessages(channelID string, limit int, beforeID, _, _ string, _ ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hist := f.history[channelID]

	start := 0
	if beforeID != "" {
		for i, m := range hist {
			if m.ID == beforeID {
				start = i + 1
				break
			}
		}
	}
	if start >= len(hist) {
		return nil, nil
	}

	end := start + limit
	if end > len(hist) {
		end = len(hist)
	}

	out := make([]*discordgo.Message, end-start)
	copy(out, hist[start:end])
	return out, nil
}

func (f *fakeDiscord) deletedChannels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.deleted))
	copy(out, f.deleted)
	return out
}

func (f *fakeDiscord) sentTo(channelID string) []*discordgo.MessageSend {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*discordgo.MessageSend, len(f.sent[channelID]))
	copy(out, f.sent[channelID])
	return out
}

func newTestLifecycle(t *testing.T, f *fakeDiscord) *Lifecycle {
	t.Helper()

	l, err := logging.CommonLogger(logging.NewConfig(`tests`))
	require.NoError(t, err, "Failed to create logger")

	lc := NewLifecycle(l, f, NewArchiver(l, f))
	lc.closeDelay = time.Millisecond
	return lc
}

func newTestPanel() *entities.Panel {
	return &entities.Panel{
		PanelID:      testPanelID,
		GuildID:      testGuildID,
		ChannelID:    "400000000000000001",
		CategoryID:   testCategoryID,
		Title:        "Support",
		Description:  "Open a ticket and we'll help you out.",
		TicketName:   "ticket",
		ClaimRoleIDs: []string{testClaimRoleID, testClaimRole2ID},
	}
}

func addCategory(f *fakeDiscord, panel *entities.Panel) {
	f.addChannel(&discordgo.Channel{
		ID:      panel.CategoryID,
		GuildID: panel.GuildID,
		Type:    discordgo.ChannelTypeGuildCategory,
	})
}

func TestOpenCreatesTicket(t *testing.T) {
	f := newFakeDiscord()
	lc := newTestLifecycle(t, f)
	panel := newTestPanel()
	addCategory(f, panel)

	channel, err := lc.Open(panel, testOpener, "Some User!")
	require.NoError(t, err)
	require.Equal(t, "ticket-some-user", channel.Name)
	require.Equal(t, EncodeTopic(testPanelID, testOpener), channel.Topic)
	require.Equal(t, testCategoryID, channel.ParentID)

	// Unclaimed regime: everyone, opener, two claim roles.
	require.Len(t, channel.PermissionOverwrites, 4)

	// The control message carries the Claim and Close buttons.
	sent := f.sentTo(channel.ID)
	require.Len(t, sent, 1)
	require.Len(t, sent[0].Components, 1)
	row, ok := sent[0].Components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row.Components, 2)
	claim, ok := row.Components[0].(discordgo.Button)
	require.True(t, ok)
	require.Equal(t, ActionClaimTicket+":"+testPanelID, claim.CustomID)
	require.False(t, claim.Disabled)
}

func TestOpenNoClaimRoles(t *testing.T) {
	f := newFakeDiscord()
	lc := newTestLifecycle(t, f)
	panel := newTestPanel()
	panel.ClaimRoleIDs = nil
	addCategory(f, panel)

	_, err := lc.Open(panel, testOpener, "user")
	require.ErrorIs(t, err, ErrNoClaimRoles)
}

func TestOpenCategoryMissing(t *testing.T) {
	f := newFakeDiscord()
	lc := newTestLifecycle(t, f)

	_, err := lc.Open(newTestPanel(), testOpener, "user")
	require.ErrorIs(t, err, ErrCategoryInvalid)
}

func TestOpenRejectsDuplicate(t *testing.T) {
	f := newFakeDiscord()
	lc := newTestLifecycle(t, f)
	panel := newTestPanel()
	addCategory(f, panel)

	first, err := lc.Open(panel, testOpener, "user")
	require.NoError(t, err)

	_, err = lc.Open(panel, testOpener, "user")
	existing := new(ExistingTicketError)
	require.ErrorAs(t, err, &existing)
	require.Equal(t, first.ID, existing.ChannelID)
}

func TestClaim(t *testing.T) {
	f := newFakeDiscord()
	lc := newTestLifecycle(t, f)
	panel := newTestPanel()
	addCategory(f, panel)

	channel, err := lc.Open(panel, testOpener, "user")
	require.NoError(t, err)

	st, err := lc.Claim(panel, channel.ID, testClaimer, []string{testClaimRoleID}, "msg-control")
	require.NoError(t, err)
	require.Equal(t, testClaimer, st.ClaimerID)
	require.Equal(t, testOpener, st.OpenerID)

	got := f.channelCopy(channel.ID)
	parsed, ok := ParseTopic(got.Topic, testPanelID)
	require.True(t, ok)
	require.Equal(t, testClaimer, parsed.ClaimerID)

	// Claimed regime: everyone, opener, claimer, two claim roles.
	require.Len(t, got.PermissionOverwrites, 5)

	// The Claim button on the control message was rewritten disabled.
	f.mu.Lock()
	edits := append([]*discordgo.MessageEdit(nil), f.edited...)
	f.mu.Unlock()
	require.Len(t, edits, 1)
	require.Equal(t, "msg-control", edits[0].ID)
	row, ok := (*edits[0].Components)[0].(discordgo.ActionsRow)
	require.True(t, ok)
	claim, ok := row.Components[0].(discordgo.Button)
	require.True(t, ok)
	require.True(t, claim.Disabled)
}

func TestClaimWithoutRole(t *testing.T) {
	f := newFakeDiscord()
	lc := newTestLifecycle(t, f)
	panel := newTestPanel()
	addCategory(f, panel)

	channel, err := lc.Open(panel, testOpener, "user")
	require.NoError(t, err)
	before := f.channelCopy(channel.ID).Topic

	_, err = lc.Claim(panel, channel.ID, testClaimer, []string{"999999999999999999"}, "")
	require.ErrorIs(t, err, ErrForbidden)

	// Rejection leaves the state field untouched.
	require.Equal(t, before, f.channelCopy(channel.ID).Topic)
}

func TestClaimAlreadyClaimed(t *testing.T) {
	f := newFakeDiscord()
	lc := newTestLifecycle(t, f)
	panel := newTestPanel()
	addCategory(f, panel)

	channel, err := lc.Open(panel, testOpener, "user")
	require.NoError(t, err)

	_, err = lc.Claim(panel, channel.ID, testClaimer, []string{testClaimRoleID}, "")
	require.NoError(t, err)

	second := "300000000000000001"
	_, err = lc.Claim(panel, channel.ID, second, []string{testClaimRole2ID}, "")
	already := new(AlreadyClaimedError)
	require.ErrorAs(t, err, &already)
	require.Equal(t, testClaimer, already.ClaimerID)

	// The recorded claimer never changes.
	parsed, ok := ParseTopic(f.channelCopy(channel.ID).Topic, testPanelID)
	require.True(t, ok)
	require.Equal(t, testClaimer, parsed.ClaimerID)
}

func TestConcurrentClaims(t *testing.T) {
	f := newFakeDiscord()
	lc := newTestLifecycle(t, f)
	panel := newTestPanel()
	addCategory(f, panel)

	channel, err := lc.Open(panel, testOpener, "user")
	require.NoError(t, err)

	actors := []string{"210000000000000001", "210000000000000002"}
	errs := make([]error, len(actors))

	var wg sync.WaitGroup
	for i, actor := range actors {
		wg.Add(1)
		go func(i int, actor string) {
			defer wg.Done()
			_, errs[i] = lc.Claim(panel, channel.ID, actor, []string{testClaimRoleID}, "")
		}(i, actor)
	}
	wg.Wait()

	var winners, losers int
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		already := new(AlreadyClaimedError)
		require.ErrorAs(t, err, &already)
		losers++
	}
	require.Equal(t, 1, winners, "exactly one claim must win")
	require.Equal(t, 1, losers)

	parsed, ok := ParseTopic(f.channelCopy(channel.ID).Topic, testPanelID)
	require.True(t, ok)
	require.Contains(t, actors, parsed.ClaimerID)
}

func TestCloseForbidden(t *testing.T) {
	f := newFakeDiscord()
	lc := newTestLifecycle(t, f)
	panel := newTestPanel()
	addCategory(f, panel)

	channel, err := lc.Open(panel, testOpener, "user")
	require.NoError(t, err)

	err = lc.Close(&CloseRequest{
		Panel:     panel,
		ChannelID: channel.ID,
		ActorID:   "999999999999999999",
	})
	require.ErrorIs(t, err, ErrForbidden)
	require.Empty(t, f.deletedChannels())
}

func TestCloseByOpenerDeletesChannel(t *testing.T) {
	f := newFakeDiscord()
	lc := newTestLifecycle(t, f)
	panel := newTestPanel()
	addCategory(f, panel)

	channel, err := lc.Open(panel, testOpener, "user")
	require.NoError(t, err)

	require.NoError(t, lc.Close(&CloseRequest{
		Panel:     panel,
		ChannelID: channel.ID,
		ActorID:   testOpener,
	}))

	require.Eventually(t, func() bool {
		for _, id := range f.deletedChannels() {
			if id == channel.ID {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestCloseByAdminOverride(t *testing.T) {
	f := newFakeDiscord()
	lc := newTestLifecycle(t, f)
	panel := newTestPanel()
	addCategory(f, panel)

	channel, err := lc.Open(panel, testOpener, "user")
	require.NoError(t, err)

	require.NoError(t, lc.Close(&CloseRequest{
		Panel:     panel,
		ChannelID: channel.ID,
		ActorID:   "999999999999999999",
		Admin:     true,
	}))

	require.Eventually(t, func() bool {
		return len(f.deletedChannels()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestCloseNotATicket(t *testing.T) {
	f := newFakeDiscord()
	lc := newTestLifecycle(t, f)
	panel := newTestPanel()

	f.addChannel(&discordgo.Channel{
		ID:      "plain-channel",
		GuildID: panel.GuildID,
		Type:    discordgo.ChannelTypeGuildText,
		Topic:   "general chatter",
	})

	err := lc.Close(&CloseRequest{
		Panel:     panel,
		ChannelID: "plain-channel",
		ActorID:   testOpener,
	})
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestSanitizeChannelName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "ticket-user", want: "ticket-user"},
		{name: "upper case", in: "Ticket-User", want: "ticket-user"},
		{name: "spaces collapse", in: "lava   tickets here", want: "lava-tickets-here"},
		{name: "specials stripped", in: "candy!!-üser❤", want: "candy-ser"},
		{name: "empty falls back", in: "❤❤❤", want: "ticket"},
		{name: "truncated", in: strings.Repeat("a", 120), want: strings.Repeat("a", 90)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, SanitizeChannelName(tt.in))
		})
	}
}

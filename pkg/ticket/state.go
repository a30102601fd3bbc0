package ticket

import (
	"regexp"
	"strings"
)

// Ticket state is carried entirely in the ticket channel's topic string.
// The unclaimed form is "ticket:<panelID>:<openerID>"; a claim appends
// "|claimed=<claimerID>" exactly once. There is no other record of a
// ticket: every access decision is rederived from the topic.

const (
	// topicPrefix starts every ticket topic.
	topicPrefix = "ticket:"

	// claimTag introduces the claimer suffix on a ticket topic.
	claimTag = "|claimed="
)

var (
	// openerPattern is the grammar for opener IDs (Discord snowflakes).
	openerPattern = regexp.MustCompile(`^[0-9]{10,30}$`)

	// claimTagPattern recognises a well-formed claim tag anywhere in the
	// topic. A claim tag that does not match is treated as absent.
	claimTagPattern = regexp.MustCompile(`\|claimed=([0-9]{10,30})`)
)

// State is the decoded state of a ticket channel.
type State struct {
	// PanelID is the ID of the panel the ticket was opened from.
	PanelID string

	// OpenerID is the ID of the user that opened the ticket.
	OpenerID string

	// ClaimerID is the ID of the user that claimed the ticket. Empty until
	// the ticket is claimed.
	ClaimerID string
}

// Claimed reports whether the ticket has been claimed.
func (s *State) Claimed() bool {
	return s.ClaimerID != ""
}

// EncodeTopic produces the topic for a freshly opened, unclaimed ticket.
func EncodeTopic(panelID, openerID string) string {
	return topicPrefix + panelID + ":" + openerID
}

// ParseTopic decodes a channel topic as ticket state for the given panel.
// It returns false unless the topic starts with exactly
// "ticket:<panelID>:" and the opener substring matches the ID grammar. A
// malformed claim tag is ignored rather than failing the parse, so a
// corrupted tag reads as "not yet claimed".
func ParseTopic(topic, panelID string) (*State, bool) {
	prefix := topicPrefix + panelID + ":"
	if !strings.HasPrefix(topic, prefix) {
		return nil, false
	}

	rest := strings.TrimPrefix(topic, prefix)
	opener, _, _ := strings.Cut(rest, "|")
	if !openerPattern.MatchString(opener) {
		return nil, false
	}

	st := &State{
		PanelID:  panelID,
		OpenerID: opener,
	}

	if m := claimTagPattern.FindStringSubmatch(rest); m != nil {
		st.ClaimerID = m[1]
	}
	return st, true
}

// MarkClaimed appends the claim tag to a ticket topic. The transform is
// pure and monotonic: a topic that already carries a claim tag is returned
// unchanged, so the first claim wins and is never overwritten.
func MarkClaimed(topic, claimerID string) string {
	if strings.Contains(topic, claimTag) {
		return topic
	}
	return topic + claimTag + claimerID
}

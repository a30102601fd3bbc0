package ticket

import (
	"github.com/bwmarrin/discordgo"
)

const (
	// participantAllow is the permission set granted to the opener and, once
	// claimed, the claimer.
	participantAllow = discordgo.PermissionViewChannel |
		discordgo.PermissionSendMessages |
		discordgo.PermissionReadMessageHistory |
		discordgo.PermissionAttachFiles |
		discordgo.PermissionEmbedLinks

	// claimRoleAllow is the permission set granted to claim role holders.
	// Send is explicitly denied: holding a claim role never grants send,
	// only being the recorded claimer does.
	claimRoleAllow = discordgo.PermissionViewChannel |
		discordgo.PermissionReadMessageHistory
)

// PlanOverwrites computes the complete permission overwrite set for a
// ticket channel from its state. The set is always rebuilt from scratch,
// never patched, so applying it wholesale converges even if a previous
// application partially failed and no stale grant can survive a
// transition. Pass an empty claimerID for an unclaimed ticket.
func PlanOverwrites(guildID, openerID string, claimRoleIDs []string, claimerID string) []*discordgo.PermissionOverwrite {
	overwrites := []*discordgo.PermissionOverwrite{
		// Deny @everyone from seeing the ticket.
		{
			ID:   guildID,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
		// The opener can always see and use the ticket.
		{
			ID:    openerID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: participantAllow,
		},
	}

	// The claimer gets identical rights to the opener.
	if claimerID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    claimerID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: participantAllow,
		})
	}

	// Claim roles are view-only in both regimes.
	for _, roleID := range claimRoleIDs {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    roleID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: claimRoleAllow,
			Deny:  discordgo.PermissionSendMessages,
		})
	}

	return overwrites
}

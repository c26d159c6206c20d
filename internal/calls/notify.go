package calls

import (
	"webconferencing/internal/presence"

	"github.com/samber/lo"
)

// Recipient selection. Only internal participants can hold listeners, so
// external participants are never recipients. Order is participant order.

func userIDs(c *Call) []string {
	return lo.FilterMap(c.Participants, func(p Participant, _ int) (string, bool) {
		return p.ID, p.IsUser()
	})
}

func exceptUser(ids []string, userID string) []string {
	if userID == "" {
		return ids
	}
	return lo.Without(ids, userID)
}

// startedRecipients is used by AddCall: the initiator created the call and
// is not told about it.
func startedRecipients(c *Call, initiator string) []string {
	return exceptUser(userIDs(c), initiator)
}

// memberRecipients is used by StartCall, JoinCall and LeaveCall: everyone,
// the acting user included.
func memberRecipients(c *Call) []string {
	return userIDs(c)
}

// stoppedRecipients skips the initiator of a removal for group calls and
// the initiator of a plain stop for peer-to-peer calls. An empty initiator
// (system work) reaches everyone.
func stoppedRecipients(c *Call, initiator string, remove bool) []string {
	ids := userIDs(c)
	if c.IsGroup() {
		if remove {
			return exceptUser(ids, initiator)
		}
		return ids
	}
	if remove {
		return ids
	}
	return exceptUser(ids, initiator)
}

func stateEvent(c *Call, state CallState) presence.Event {
	return presence.Event{
		Kind: presence.EventStateChanged,
		State: presence.StateChange{
			CallID:       c.ID,
			ProviderType: c.ProviderType,
			State:        string(state),
			OwnerID:      c.Owner.ID,
			OwnerType:    string(c.Owner.Type),
		},
	}
}

func membershipEvent(kind presence.EventKind, c *Call, participantID string) presence.Event {
	return presence.Event{
		Kind: kind,
		Membership: presence.Membership{
			CallID:        c.ID,
			ProviderType:  c.ProviderType,
			OwnerID:       c.Owner.ID,
			OwnerType:     string(c.Owner.Type),
			ParticipantID: participantID,
		},
	}
}

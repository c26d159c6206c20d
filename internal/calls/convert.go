package calls

import (
	"context"
	"encoding/json"
	"fmt"
)

// roomSettings is the settings JSON of calls owned by a chat room.
type roomSettings struct {
	RoomName  string `json:"roomName,omitempty"`
	RoomTitle string `json:"roomTitle,omitempty"`
}

func toCallRecord(c *Call) CallRecord {
	rec := CallRecord{
		ID:           c.ID,
		Title:        c.Title,
		OwnerID:      c.Owner.ID,
		OwnerType:    c.Owner.Type,
		ProviderType: c.ProviderType,
		State:        c.State,
		LastDate:     c.LastDate,
		IsGroup:      c.Group,
		IsUser:       c.Owner.Type == OwnerUser,
	}
	if c.Owner.Room != nil {
		b, _ := json.Marshal(roomSettings{RoomName: c.Owner.Room.Name, RoomTitle: c.Owner.Title})
		rec.Settings = string(b)
	}
	return rec
}

func toParticipantRecord(callID string, p Participant) ParticipantRecord {
	return ParticipantRecord{
		ID:       p.ID,
		CallID:   callID,
		Type:     p.Type,
		State:    p.State,
		ClientID: p.ClientID,
	}
}

// load reads a call and its participants and resolves display data.
func (e *Engine) load(ctx context.Context, r Reader, id string) (*Call, error) {
	rec, ok, err := r.Find(ctx, id)
	if err != nil {
		return nil, storageErr("reading call", err)
	}
	if !ok {
		return nil, nil
	}
	parts, err := r.FindParticipants(ctx, id)
	if err != nil {
		return nil, storageErr("reading participants", err)
	}

	owner, err := e.ownerFromRecord(ctx, rec)
	if err != nil {
		return nil, err
	}
	c := &Call{
		ID:           rec.ID,
		Title:        rec.Title,
		Owner:        owner,
		ProviderType: rec.ProviderType,
		State:        rec.State.OrStopped(),
		LastDate:     rec.LastDate,
		Group:        rec.IsGroup,
		Participants: make([]Participant, 0, len(parts)),
	}
	if c.Group {
		c.Owner.setGroupCallID(c.ID)
	}
	for _, pr := range parts {
		p := Participant{ID: pr.ID, Type: pr.Type, State: pr.State, ClientID: pr.ClientID}
		if p.IsUser() {
			u, found, err := e.dir.User(ctx, p.ID)
			if err != nil {
				return nil, fmt.Errorf("resolving participant %s: %w", p.ID, err)
			}
			if found {
				p.Title, p.AvatarLink = u.Title, avatarOr(u.AvatarLink, DefaultProfileAvatar)
			}
		}
		if p.Title == "" {
			p.Title = p.ID
		}
		c.Participants = append(c.Participants, p)
	}
	return c, nil
}

func (e *Engine) ownerFromRecord(ctx context.Context, rec CallRecord) (Identity, error) {
	switch rec.OwnerType {
	case OwnerUser:
		u, found, err := e.dir.User(ctx, rec.OwnerID)
		if err != nil {
			return Identity{}, fmt.Errorf("resolving owner %s: %w", rec.OwnerID, err)
		}
		if found {
			return u, nil
		}
		return UserIdentity(rec.OwnerID, "", ""), nil
	case OwnerSpace:
		s, found, err := e.dir.Space(ctx, rec.OwnerID)
		if err != nil {
			return Identity{}, fmt.Errorf("resolving owner %s: %w", rec.OwnerID, err)
		}
		if found {
			return s, nil
		}
		return SpaceIdentity(rec.OwnerID, "", rec.OwnerID), nil
	default:
		var rs roomSettings
		if rec.Settings != "" {
			if err := json.Unmarshal([]byte(rec.Settings), &rs); err != nil {
				e.log.Warn("bad room settings", "call_id", rec.ID, "error", err)
			}
		}
		if rs.RoomName == "" {
			rs.RoomName = rec.OwnerID
		}
		return RoomIdentity(rec.OwnerID, rs.RoomName, rs.RoomTitle), nil
	}
}

func avatarOr(link, fallback string) string {
	if link == "" {
		return fallback
	}
	return link
}

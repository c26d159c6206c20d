package calls

type OwnerType string

const (
	OwnerUser     OwnerType = "user"
	OwnerSpace    OwnerType = "space"
	OwnerChatRoom OwnerType = "chat_room"
)

// ParseOwnerType returns false for anything outside user, space and chat_room.
func ParseOwnerType(v string) (OwnerType, bool) {
	switch t := OwnerType(v); t {
	case OwnerUser, OwnerSpace, OwnerChatRoom:
		return t, true
	default:
		return "", false
	}
}

// IsGroup is true for space and chat_room owners.
func (t OwnerType) IsGroup() bool {
	return t == OwnerSpace || t == OwnerChatRoom
}

const (
	DefaultProfileAvatar = "/avatars/profile-default.png"
	DefaultSpaceAvatar   = "/avatars/space-default.png"
)

// Identity is a user, space or chat room. Type selects which of User, Space, Room is set.
type Identity struct {
	ID          string    `json:"id"`
	Type        OwnerType `json:"type"`
	Title       string    `json:"title"`
	AvatarLink  string    `json:"avatar_link,omitempty"`
	ProfileLink string    `json:"profile_link,omitempty"`

	User  *UserDetails  `json:"user,omitempty"`
	Space *SpaceDetails `json:"space,omitempty"`
	Room  *RoomDetails  `json:"room,omitempty"`
}

func (i Identity) IsGroup() bool { return i.Type.IsGroup() }

// GroupCallID returns the lazily resolved call id of a group identity.
func (i Identity) GroupCallID() string {
	switch {
	case i.Space != nil:
		return i.Space.CallID
	case i.Room != nil:
		return i.Room.CallID
	}
	return ""
}

type UserDetails struct {
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	IMs       []IMInfo `json:"ims,omitempty"`
}

type SpaceDetails struct {
	GroupID string     `json:"group_id"`
	Members []Identity `json:"members,omitempty"`
	CallID  string     `json:"call_id,omitempty"`
}

type RoomDetails struct {
	Name    string     `json:"name"`
	Members []Identity `json:"members,omitempty"`
	CallID  string     `json:"call_id,omitempty"`
}

// UserIdentity builds a user variant.
func UserIdentity(id, firstName, lastName string) Identity {
	title := firstName
	if lastName != "" {
		if title != "" {
			title += " "
		}
		title += lastName
	}
	if title == "" {
		title = id
	}
	return Identity{
		ID:    id,
		Type:  OwnerUser,
		Title: title,
		User:  &UserDetails{FirstName: firstName, LastName: lastName},
	}
}

// RoomIdentity builds a chat room variant.
func RoomIdentity(id, name, title string) Identity {
	if title == "" {
		title = name
	}
	return Identity{
		ID:         id,
		Type:       OwnerChatRoom,
		Title:      title,
		AvatarLink: DefaultSpaceAvatar,
		Room:       &RoomDetails{Name: name},
	}
}

// SpaceIdentity builds a space variant.
func SpaceIdentity(prettyName, groupID, title string) Identity {
	return Identity{
		ID:    prettyName,
		Type:  OwnerSpace,
		Title: title,
		Space: &SpaceDetails{GroupID: groupID},
	}
}

func (i *Identity) setGroupCallID(callID string) {
	switch {
	case i.Space != nil:
		i.Space.CallID = callID
	case i.Room != nil:
		i.Room.CallID = callID
	}
}

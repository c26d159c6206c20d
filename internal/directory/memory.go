// Package directory resolves users and spaces for the call engine.
package directory

import (
	"context"
	"sort"
	"sync"

	"webconferencing/internal/calls"
)

// User is a directory entry for one internal user.
type User struct {
	ID          string `yaml:"id"`
	FirstName   string `yaml:"first_name"`
	LastName    string `yaml:"last_name"`
	AvatarLink  string `yaml:"avatar_link,omitempty"`
	ProfileLink string `yaml:"profile_link,omitempty"`
	// IMs maps an IM type (e.g. sip) to the account id.
	IMs map[string]string `yaml:"ims,omitempty"`
}

// Space is a directory entry for a space, keyed by its pretty name.
type Space struct {
	ID         string   `yaml:"id"`
	GroupID    string   `yaml:"group_id"`
	Title      string   `yaml:"title"`
	AvatarLink string   `yaml:"avatar_link,omitempty"`
	Members    []string `yaml:"members,omitempty"`
}

// Memory is an in-process directory. Lookups return fresh values, so
// callers may mutate what they get.
type Memory struct {
	mu     sync.RWMutex
	users  map[string]User
	spaces map[string]Space
}

func NewMemory() *Memory {
	return &Memory{users: make(map[string]User), spaces: make(map[string]Space)}
}

func (m *Memory) PutUser(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *Memory) PutSpace(s Space) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spaces[s.ID] = s
}

func (m *Memory) User(ctx context.Context, id string) (calls.Identity, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return calls.Identity{}, false, nil
	}
	return userIdentity(u), true, nil
}

// Space returns the space with its members resolved. Members missing from
// the directory are skipped.
func (m *Memory) Space(ctx context.Context, id string) (calls.Identity, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.spaces[id]
	if !ok {
		return calls.Identity{}, false, nil
	}
	title := s.Title
	if title == "" {
		title = s.ID
	}
	ident := calls.SpaceIdentity(s.ID, s.GroupID, title)
	ident.AvatarLink = s.AvatarLink
	for _, memberID := range s.Members {
		if u, ok := m.users[memberID]; ok {
			ident.Space.Members = append(ident.Space.Members, userIdentity(u))
		}
	}
	return ident, true, nil
}

func userIdentity(u User) calls.Identity {
	ident := calls.UserIdentity(u.ID, u.FirstName, u.LastName)
	ident.AvatarLink = u.AvatarLink
	ident.ProfileLink = u.ProfileLink
	for imType, imID := range u.IMs {
		ident.User.IMs = append(ident.User.IMs, calls.IMInfo{Type: imType, ID: imID})
	}
	sort.Slice(ident.User.IMs, func(i, j int) bool {
		return ident.User.IMs[i].Type < ident.User.IMs[j].Type
	})
	return ident
}

package core

// Presence is the connection state of a user.
type Presence int

const (
	PresenceOffline Presence = iota
	PresenceOnline
	PresenceAway
	PresenceBusy
)

func (p Presence) String() string {
	switch p {
	case PresenceOnline:
		return "online"
	case PresenceAway:
		return "away"
	case PresenceBusy:
		return "busy"
	default:
		return "offline"
	}
}

// User is the cached view of an account together with its social sets.
// Presence is changed only by the hub's connect/disconnect, the social sets
// only by friendship and block operations.
type User struct {
	ID       string
	Name     string
	Email    string
	Presence Presence

	friends       map[string]struct{}
	blocked       map[string]struct{}
	conversations map[string][]Message
}

// NewUser constructs an offline user with empty social sets.
func NewUser(id, name, email string) *User {
	if name == "" {
		name = id
	}
	return &User{
		ID:            id,
		Name:          name,
		Email:         email,
		Presence:      PresenceOffline,
		friends:       make(map[string]struct{}),
		blocked:       make(map[string]struct{}),
		conversations: make(map[string][]Message),
	}
}

// IsFriend reports whether id is in the user's friend set.
func (u *User) IsFriend(id string) bool {
	_, ok := u.friends[id]
	return ok
}

// HasBlocked reports whether the user has blocked id.
func (u *User) HasBlocked(id string) bool {
	_, ok := u.blocked[id]
	return ok
}

// Online reports whether the user has a live session.
func (u *User) Online() bool {
	return u.Presence != PresenceOffline
}

func (u *User) addFriend(id string) {
	if id == u.ID {
		return
	}
	u.friends[id] = struct{}{}
}

func (u *User) block(id string) {
	if id == u.ID {
		return
	}
	u.blocked[id] = struct{}{}
}

func (u *User) unblock(id string) {
	delete(u.blocked, id)
}

// UserInfo is a point-in-time snapshot of a user.
type UserInfo struct {
	ID       string
	Name     string
	Presence Presence
}

func (u *User) info() UserInfo {
	return UserInfo{ID: u.ID, Name: u.Name, Presence: u.Presence}
}

package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUserExists is returned when creating a user with an id that is already taken.
	ErrUserExists = errors.New("user already exists")
)

// User represents a persisted account.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Online       bool
	CreatedAt    time.Time
}

// DirectMessage is a persisted message between two users.
type DirectMessage struct {
	ID             string
	ConversationID string
	SenderID       string
	ReceiverID     string
	Body           string
	CreatedAt      time.Time
}

// Channel represents a persisted broadcast channel ("local server").
type Channel struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
}

// ChannelMessage is a persisted message posted to a channel.
type ChannelMessage struct {
	ID        string
	ChannelID string
	SenderID  string
	Body      string
	CreatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// UserExists reports whether an account with the id exists.
	UserExists(ctx context.Context, id string) (bool, error)

	// CreateUser inserts a new account. Returns ErrUserExists on id collision.
	CreateUser(ctx context.Context, user *User) error

	// GetUser retrieves an account by id. Returns ErrNotFound if absent.
	GetUser(ctx context.Context, id string) (*User, error)

	// SetOnline updates the persisted online flag.
	SetOnline(ctx context.Context, id string, online bool) error
}

// FriendStore handles friendship persistence.
type FriendStore interface {
	// ListFriends returns the ids of the user's friends.
	ListFriends(ctx context.Context, userID string) ([]string, error)

	// AddFriendship stores both directions of a friendship in one transaction.
	AddFriendship(ctx context.Context, userID, friendID string) error
}

// BlockStore handles block persistence.
type BlockStore interface {
	// IsBlocked reports whether userID has blocked targetID.
	IsBlocked(ctx context.Context, userID, targetID string) (bool, error)

	// Block records that userID blocked targetID. Idempotent.
	Block(ctx context.Context, userID, targetID string) error

	// Unblock removes the block record. Idempotent.
	Unblock(ctx context.Context, userID, targetID string) error

	// ListBlocked returns the ids blocked by the user.
	ListBlocked(ctx context.Context, userID string) ([]string, error)
}

// MessageStore handles direct and channel message persistence.
type MessageStore interface {
	// SaveDirectMessage persists a direct message.
	SaveDirectMessage(ctx context.Context, msg *DirectMessage) error

	// ListDirectMessages returns the messages exchanged between exactly these
	// two users, oldest first.
	ListDirectMessages(ctx context.Context, userID, otherID string) ([]*DirectMessage, error)

	// SaveChannelMessage persists a channel message.
	SaveChannelMessage(ctx context.Context, msg *ChannelMessage) error
}

// ChannelStore handles channel and membership persistence.
type ChannelStore interface {
	// CreateChannel inserts a channel. An existing id is left untouched.
	CreateChannel(ctx context.Context, ch *Channel) error

	// CreateOwnedChannel inserts a channel together with its owner's
	// membership. Either both rows are written or neither is.
	CreateOwnedChannel(ctx context.Context, ch *Channel) error

	// ListChannels returns every channel in creation order.
	ListChannels(ctx context.Context) ([]*Channel, error)

	// AddMember adds a user to a channel. Idempotent.
	AddMember(ctx context.Context, channelID, userID string) error

	// RemoveMember removes a user from a channel. Idempotent.
	RemoveMember(ctx context.Context, channelID, userID string) error

	// ListMembers returns the user ids of the channel members.
	ListMembers(ctx context.Context, channelID string) ([]string, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	FriendStore
	BlockStore
	MessageStore
	ChannelStore

	// Close closes the underlying database connection.
	Close() error
}

// ConversationID returns the stable id of the conversation between two users.
func ConversationID(a, b string) string {
	if a < b {
		return a + "_" + b
	}
	return b + "_" + a
}

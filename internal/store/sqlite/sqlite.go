package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/relaychat-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		return Migrate(context.Background(), db)
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// UserExists reports whether an account with the id exists.
func (s *SQLiteStore) UserExists(ctx context.Context, id string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query user: %w", err)
	}
	return true, nil
}

// CreateUser inserts a new account.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *store.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, online)
		VALUES (?, ?, ?, ?, 0)
	`
	if _, err := s.db.ExecContext(ctx, query, user.ID, user.Username, user.Email, user.PasswordHash); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return store.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser retrieves an account by id.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*store.User, error) {
	query := `
		SELECT id, username, email, password_hash, online, created_at
		FROM users
		WHERE id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Online,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// SetOnline updates the persisted online flag.
func (s *SQLiteStore) SetOnline(ctx context.Context, id string, online bool) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET online = ? WHERE id = ?`, online, id); err != nil {
		return fmt.Errorf("update online: %w", err)
	}
	return nil
}

// ==== FriendStore implementation ====

// ListFriends returns the ids of the user's friends.
func (s *SQLiteStore) ListFriends(ctx context.Context, userID string) ([]string, error) {
	return s.queryIDs(ctx, `SELECT friend_id FROM friends WHERE user_id = ? ORDER BY friend_id`, userID)
}

// AddFriendship stores both directions of a friendship.
func (s *SQLiteStore) AddFriendship(ctx context.Context, userID, friendID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	query := `INSERT OR IGNORE INTO friends (user_id, friend_id) VALUES (?, ?)`
	if _, err := tx.ExecContext(ctx, query, userID, friendID); err != nil {
		return fmt.Errorf("insert friendship: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, friendID, userID); err != nil {
		return fmt.Errorf("insert reverse friendship: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ==== BlockStore implementation ====

// IsBlocked reports whether userID has blocked targetID.
func (s *SQLiteStore) IsBlocked(ctx context.Context, userID, targetID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM blocked WHERE user_id = ? AND blocked_id = ?`, userID, targetID,
	).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query block: %w", err)
	}
	return true, nil
}

// Block records that userID blocked targetID.
func (s *SQLiteStore) Block(ctx context.Context, userID, targetID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO blocked (user_id, blocked_id) VALUES (?, ?)`, userID, targetID)
	if err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}

// Unblock removes the block record.
func (s *SQLiteStore) Unblock(ctx context.Context, userID, targetID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM blocked WHERE user_id = ? AND blocked_id = ?`, userID, targetID)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	return nil
}

// ListBlocked returns the ids blocked by the user.
func (s *SQLiteStore) ListBlocked(ctx context.Context, userID string) ([]string, error) {
	return s.queryIDs(ctx, `SELECT blocked_id FROM blocked WHERE user_id = ? ORDER BY blocked_id`, userID)
}

// ==== MessageStore implementation ====

// SaveDirectMessage persists a direct message.
func (s *SQLiteStore) SaveDirectMessage(ctx context.Context, msg *store.DirectMessage) error {
	query := `
		INSERT INTO dm_messages (id, conversation_id, sender_id, receiver_id, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.SenderID,
		msg.ReceiverID,
		msg.Body,
		msg.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert direct message: %w", err)
	}
	return nil
}

// ListDirectMessages returns the conversation between two users, oldest first.
func (s *SQLiteStore) ListDirectMessages(ctx context.Context, userID, otherID string) ([]*store.DirectMessage, error) {
	query := `
		SELECT id, conversation_id, sender_id, receiver_id, body, created_at
		FROM dm_messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at ASC, rowid ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, otherID, otherID, userID)
	if err != nil {
		return nil, fmt.Errorf("query direct messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.DirectMessage
	for rows.Next() {
		var msg store.DirectMessage
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.ReceiverID, &msg.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("scan direct message: %w", err)
		}
		msg.CreatedAt = time.UnixMilli(createdAt)
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

// SaveChannelMessage persists a channel message.
func (s *SQLiteStore) SaveChannelMessage(ctx context.Context, msg *store.ChannelMessage) error {
	query := `
		INSERT INTO channel_messages (id, channel_id, sender_id, body, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, msg.ID, msg.ChannelID, msg.SenderID, msg.Body, msg.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert channel message: %w", err)
	}
	return nil
}

// ==== ChannelStore implementation ====

// CreateChannel inserts a channel, leaving an existing id untouched.
func (s *SQLiteStore) CreateChannel(ctx context.Context, ch *store.Channel) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO channels (id, name, owner_id) VALUES (?, ?, ?)`, ch.ID, ch.Name, ch.OwnerID)
	if err != nil {
		return fmt.Errorf("insert channel: %w", err)
	}
	return nil
}

// CreateOwnedChannel inserts a channel and its owner's membership in one transaction.
func (s *SQLiteStore) CreateOwnedChannel(ctx context.Context, ch *store.Channel) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO channels (id, name, owner_id) VALUES (?, ?, ?)`, ch.ID, ch.Name, ch.OwnerID); err != nil {
		return fmt.Errorf("insert channel: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO channel_members (channel_id, user_id) VALUES (?, ?)`, ch.ID, ch.OwnerID); err != nil {
		return fmt.Errorf("insert channel owner: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListChannels returns every channel in creation order.
func (s *SQLiteStore) ListChannels(ctx context.Context) ([]*store.Channel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, owner_id, created_at FROM channels ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var channels []*store.Channel
	for rows.Next() {
		var ch store.Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.OwnerID, &ch.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, &ch)
	}

	return channels, rows.Err()
}

// AddMember adds a user to a channel.
func (s *SQLiteStore) AddMember(ctx context.Context, channelID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO channel_members (channel_id, user_id) VALUES (?, ?)`, channelID, userID)
	if err != nil {
		return fmt.Errorf("insert channel member: %w", err)
	}
	return nil
}

// RemoveMember removes a user from a channel.
func (s *SQLiteStore) RemoveMember(ctx context.Context, channelID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM channel_members WHERE channel_id = ? AND user_id = ?`, channelID, userID)
	if err != nil {
		return fmt.Errorf("delete channel member: %w", err)
	}
	return nil
}

// ListMembers returns the user ids of the channel members.
func (s *SQLiteStore) ListMembers(ctx context.Context, channelID string) ([]string, error) {
	return s.queryIDs(ctx,
		`SELECT user_id FROM channel_members WHERE channel_id = ? ORDER BY joined_at ASC, rowid ASC`, channelID)
}

func (s *SQLiteStore) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)

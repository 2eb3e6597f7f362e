package core

import (
	"context"
	"errors"

	"github.com/vovakirdan/relaychat-server/internal/store"
)

// socialGraph caches users and their friend/block sets on top of the store.
// Entries are loaded on first reference and never evicted. Writes hit the
// store before the cache so a failed write leaves the cache untouched.
// Callers hold the hub lock.
type socialGraph struct {
	store store.Store
	users map[string]*User
}

func newSocialGraph(st store.Store) *socialGraph {
	return &socialGraph{
		store: st,
		users: make(map[string]*User),
	}
}

// load returns the cached user, reading it from the store on a miss.
func (g *socialGraph) load(ctx context.Context, id string) (*User, error) {
	if u, ok := g.users[id]; ok {
		return u, nil
	}
	if id == "" || id == SystemSender {
		return nil, ErrUnknownUser
	}

	rec, err := g.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, internalError("load user", err)
	}

	friends, err := g.store.ListFriends(ctx, id)
	if err != nil {
		return nil, internalError("load friends", err)
	}
	blocked, err := g.store.ListBlocked(ctx, id)
	if err != nil {
		return nil, internalError("load blocked", err)
	}

	u := NewUser(rec.ID, rec.Username, rec.Email)
	for _, f := range friends {
		u.addFriend(f)
	}
	for _, b := range blocked {
		u.block(b)
	}
	g.users[id] = u
	return u, nil
}

// pair loads both users of a relation.
func (g *socialGraph) pair(ctx context.Context, a, b string) (*User, *User, error) {
	ua, err := g.load(ctx, a)
	if err != nil {
		return nil, nil, err
	}
	ub, err := g.load(ctx, b)
	if err != nil {
		return nil, nil, err
	}
	return ua, ub, nil
}

func (g *socialGraph) areFriends(ctx context.Context, a, b string) (bool, error) {
	ua, _, err := g.pair(ctx, a, b)
	if err != nil {
		return false, err
	}
	return ua.IsFriend(b), nil
}

// isBlocked reports whether by has blocked target.
func (g *socialGraph) isBlocked(ctx context.Context, target, by string) (bool, error) {
	ub, err := g.load(ctx, by)
	if err != nil {
		return false, err
	}
	return ub.HasBlocked(target), nil
}

// eitherBlocked reports whether a block holds in either direction.
func (g *socialGraph) eitherBlocked(ctx context.Context, a, b string) (bool, error) {
	ua, ub, err := g.pair(ctx, a, b)
	if err != nil {
		return false, err
	}
	return ua.HasBlocked(b) || ub.HasBlocked(a), nil
}

func (g *socialGraph) addFriendship(ctx context.Context, a, b string) error {
	ua, ub, err := g.pair(ctx, a, b)
	if err != nil {
		return err
	}
	if a == b {
		return ErrSelfTarget
	}
	if ua.IsFriend(b) && ub.IsFriend(a) {
		return nil
	}
	if err := g.store.AddFriendship(ctx, a, b); err != nil {
		return internalError("add friendship", err)
	}
	ua.addFriend(b)
	ub.addFriend(a)
	return nil
}

func (g *socialGraph) block(ctx context.Context, by, target string) error {
	ub, _, err := g.pair(ctx, by, target)
	if err != nil {
		return err
	}
	if by == target {
		return ErrSelfTarget
	}
	if ub.HasBlocked(target) {
		return nil
	}
	if err := g.store.Block(ctx, by, target); err != nil {
		return internalError("block user", err)
	}
	ub.block(target)
	return nil
}

func (g *socialGraph) unblock(ctx context.Context, by, target string) error {
	ub, _, err := g.pair(ctx, by, target)
	if err != nil {
		return err
	}
	if !ub.HasBlocked(target) {
		return nil
	}
	if err := g.store.Unblock(ctx, by, target); err != nil {
		return internalError("unblock user", err)
	}
	ub.unblock(target)
	return nil
}

// conversation returns the message log between u and other, loading it from
// the store the first time the pair is referenced.
func (g *socialGraph) conversation(ctx context.Context, u *User, other string) ([]Message, error) {
	if log, ok := u.conversations[other]; ok {
		return log, nil
	}
	recs, err := g.store.ListDirectMessages(ctx, u.ID, other)
	if err != nil {
		return nil, internalError("load conversation", err)
	}
	log := make([]Message, 0, len(recs))
	for _, r := range recs {
		log = append(log, Message{
			ID:        r.ID,
			From:      r.SenderID,
			To:        r.ReceiverID,
			Body:      r.Body,
			Type:      MessageDirect,
			CreatedAt: r.CreatedAt,
		})
	}
	u.conversations[other] = log
	return log, nil
}

// name resolves a display name, falling back to the id itself.
func (g *socialGraph) name(ctx context.Context, id string) string {
	if id == SystemSender {
		return SystemSender
	}
	u, err := g.load(ctx, id)
	if err != nil {
		return id
	}
	return u.Name
}

func (g *socialGraph) resolver(ctx context.Context) NameResolver {
	return NameResolverFunc(func(id string) string {
		return g.name(ctx, id)
	})
}

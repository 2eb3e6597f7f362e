package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/vovakirdan/relaychat-server/internal/proto"
	"github.com/vovakirdan/relaychat-server/internal/store"
)

// Hub is the server context. One mutex guards presence, the social graph
// cache and the channel directory; every operation runs under it and any
// resulting deliveries are written after it is released.
type Hub struct {
	mu sync.Mutex

	store  store.Store
	logger *zerolog.Logger
	now    func() time.Time

	graph    *socialGraph
	presence *presence
	dir      *directory
}

// Option configures a Hub.
type Option func(*Hub)

// WithClock overrides the time source used to stamp messages.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		h.now = now
	}
}

// WithChannelLogLimit caps the number of messages retained per channel. Zero keeps all.
func WithChannelLogLimit(limit int) Option {
	return func(h *Hub) {
		h.dir.logLimit = limit
	}
}

// NewHub creates a hub backed by st. The "general" channel always exists.
func NewHub(st store.Store, logger *zerolog.Logger, opts ...Option) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	h := &Hub{
		store:    st,
		logger:   logger,
		now:      time.Now,
		graph:    newSocialGraph(st),
		presence: newPresence(),
		dir:      newDirectory(0),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Load persists the general channel and restores user channels and their
// memberships from the store.
func (h *Hub) Load(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	general := &store.Channel{ID: GeneralChannelID, Name: GeneralChannelName, OwnerID: SystemSender}
	if err := h.store.CreateChannel(ctx, general); err != nil {
		return fmt.Errorf("create general channel: %w", err)
	}

	channels, err := h.store.ListChannels(ctx)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}
	for _, c := range channels {
		if c.ID == GeneralChannelID {
			continue
		}
		members, err := h.store.ListMembers(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("list members of %s: %w", c.ID, err)
		}
		ch := newChannel(c.ID, c.Name, c.OwnerID)
		for _, m := range members {
			ch.add(m)
		}
		h.dir.put(ch)
	}

	h.logger.Info().Int("channels", len(h.dir.order)).Msg("hub loaded")
	return nil
}

func (h *Hub) do(fn func(out *outbox) error) error {
	var out outbox
	h.mu.Lock()
	err := fn(&out)
	h.mu.Unlock()

	h.flush(&out)
	return err
}

// Connect marks userID online and binds conn to it.
func (h *Hub) Connect(ctx context.Context, userID string, conn Conn) error {
	return h.Admit(ctx, userID, conn, "")
}

// Admit is Connect with a greeting line delivered to conn before any of the
// connect notifications.
func (h *Hub) Admit(ctx context.Context, userID string, conn Conn, greeting string) error {
	return h.do(func(out *outbox) error {
		u, err := h.graph.load(ctx, userID)
		if err != nil {
			return err
		}
		if _, ok := h.presence.route(userID); ok {
			return ErrAlreadyOnline
		}

		if greeting != "" {
			out.push(userID, conn, greeting)
		}
		h.presence.bind(userID, conn)
		u.Presence = PresenceOnline
		if err := h.store.SetOnline(ctx, userID, true); err != nil {
			h.logger.Warn().Err(err).Str("user_id", userID).Msg("persist online flag")
		}

		general := h.dir.general()
		h.noticeLocked(ctx, out, general, MessagePresence, u.Name+" is now online")
		general.add(userID)
		h.sendTo(out, userID, proto.Line(proto.TagServerJoined, general.ID, general.Name))
		h.noticeLocked(ctx, out, general, MessageJoin, u.Name+" joined the server")
		h.notifyFriendsLocked(out, u, proto.StatusOnline)

		h.logger.Info().Str("user_id", userID).Msg("user connected")
		return nil
	})
}

// Disconnect marks userID offline, unbinds its connection and removes it from
// "general". Calling it for an offline user is a no-op.
func (h *Hub) Disconnect(ctx context.Context, userID string) {
	_ = h.do(func(out *outbox) error {
		if !h.presence.unbind(userID) {
			return nil
		}
		u, ok := h.graph.users[userID]
		if !ok {
			return nil
		}
		u.Presence = PresenceOffline
		if err := h.store.SetOnline(ctx, userID, false); err != nil {
			h.logger.Warn().Err(err).Str("user_id", userID).Msg("persist offline flag")
		}

		general := h.dir.general()
		h.noticeLocked(ctx, out, general, MessagePresence, u.Name+" is now offline")
		if general.remove(userID) {
			h.noticeLocked(ctx, out, general, MessageLeave, u.Name+" left the server")
		}
		h.notifyFriendsLocked(out, u, proto.StatusOffline)

		h.logger.Info().Str("user_id", userID).Msg("user disconnected")
		return nil
	})
}

// Route returns the live connection of userID.
func (h *Hub) Route(userID string) (Conn, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.presence.route(userID)
}

// IsOnline reports whether userID has a live connection.
func (h *Hub) IsOnline(userID string) bool {
	_, ok := h.Route(userID)
	return ok
}

// Online returns a snapshot of every connected user, sorted by id.
func (h *Hub) Online() []UserInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	return lo.FilterMap(h.presence.online(), func(id string, _ int) (UserInfo, bool) {
		u, ok := h.graph.users[id]
		if !ok {
			return UserInfo{}, false
		}
		return u.info(), true
	})
}

// notifyFriendsLocked sends STATUS to the user's online friends.
func (h *Hub) notifyFriendsLocked(out *outbox, u *User, status string) {
	friends := lo.Keys(u.friends)
	sort.Strings(friends)
	line := proto.Line(proto.TagStatus, u.ID, u.Name, status)
	for _, id := range friends {
		h.sendTo(out, id, line)
	}
}

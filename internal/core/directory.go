package core

import (
	"context"

	"github.com/samber/lo"
	"github.com/vovakirdan/relaychat-server/internal/proto"
	"github.com/vovakirdan/relaychat-server/internal/store"
)

const (
	// GeneralChannelID is the id of the default channel every user joins on connect.
	GeneralChannelID = "general"
	// GeneralChannelName is the display name of the default channel.
	GeneralChannelName = "General"
)

// Channel is a named broadcast group ("local server").
type Channel struct {
	ID      string
	Name    string
	OwnerID string

	members map[string]struct{}
	order   []string
	log     []Message
}

func newChannel(id, name, ownerID string) *Channel {
	ch := &Channel{
		ID:      id,
		Name:    name,
		OwnerID: ownerID,
		members: make(map[string]struct{}),
	}
	if ownerID != SystemSender {
		ch.add(ownerID)
	}
	return ch
}

// IsMember reports whether userID belongs to the channel.
func (c *Channel) IsMember(userID string) bool {
	_, ok := c.members[userID]
	return ok
}

// SystemOwned reports whether the channel is owned by the server.
func (c *Channel) SystemOwned() bool {
	return c.OwnerID == SystemSender
}

func (c *Channel) add(userID string) bool {
	if c.IsMember(userID) {
		return false
	}
	c.members[userID] = struct{}{}
	c.order = append(c.order, userID)
	return true
}

func (c *Channel) remove(userID string) bool {
	if !c.IsMember(userID) {
		return false
	}
	delete(c.members, userID)
	c.order = lo.Without(c.order, userID)
	return true
}

// canLeave checks the leave rules without mutating anything.
func (c *Channel) canLeave(userID string) error {
	if userID == c.OwnerID && !c.SystemOwned() {
		return ErrOwnerCannotLeave
	}
	if !c.IsMember(userID) {
		return ErrNotMember
	}
	return nil
}

// append adds msg to the log, keeping at most limit entries when limit > 0.
func (c *Channel) append(msg Message, limit int) {
	c.log = append(c.log, msg)
	if limit > 0 && len(c.log) > limit {
		c.log = append([]Message(nil), c.log[len(c.log)-limit:]...)
	}
}

func (c *Channel) memberIDs() []string {
	return append([]string(nil), c.order...)
}

// ChannelInfo is a point-in-time snapshot of a channel.
type ChannelInfo struct {
	ID      string
	Name    string
	OwnerID string
	Members int
}

func (c *Channel) info() ChannelInfo {
	return ChannelInfo{ID: c.ID, Name: c.Name, OwnerID: c.OwnerID, Members: len(c.members)}
}

// directory holds every channel in creation order. Callers hold the hub lock.
type directory struct {
	channels map[string]*Channel
	order    []string
	logLimit int
}

func newDirectory(logLimit int) *directory {
	d := &directory{
		channels: make(map[string]*Channel),
		logLimit: logLimit,
	}
	d.put(newChannel(GeneralChannelID, GeneralChannelName, SystemSender))
	return d
}

func (d *directory) put(ch *Channel) {
	if _, exists := d.channels[ch.ID]; !exists {
		d.order = append(d.order, ch.ID)
	}
	d.channels[ch.ID] = ch
}

func (d *directory) exists(id string) bool {
	_, ok := d.channels[id]
	return ok
}

func (d *directory) get(id string) (*Channel, error) {
	ch, ok := d.channels[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ch, nil
}

func (d *directory) general() *Channel {
	return d.channels[GeneralChannelID]
}

func (d *directory) list() []ChannelInfo {
	return lo.Map(d.order, func(id string, _ int) ChannelInfo {
		return d.channels[id].info()
	})
}

// CreateChannel creates a channel owned by ownerID. The owner receives
// SERVER_CREATED and every other online user NEW_SERVER.
func (h *Hub) CreateChannel(ctx context.Context, ownerID, channelID, name string) error {
	return h.do(func(out *outbox) error {
		owner, err := h.graph.load(ctx, ownerID)
		if err != nil {
			return err
		}
		if h.dir.exists(channelID) {
			return ErrAlreadyExists
		}

		if err := h.store.CreateOwnedChannel(ctx, &store.Channel{ID: channelID, Name: name, OwnerID: ownerID}); err != nil {
			return internalError("create channel", err)
		}
		h.dir.put(newChannel(channelID, name, ownerID))

		h.sendTo(out, ownerID, proto.Line(proto.TagServerCreated, channelID, name))
		announce := proto.Line(proto.TagNewServer, channelID, name, owner.Name)
		for _, uid := range h.presence.online() {
			if uid != ownerID {
				h.sendTo(out, uid, announce)
			}
		}

		h.logger.Info().Str("channel_id", channelID).Str("owner_id", ownerID).Msg("channel created")
		return nil
	})
}

// JoinChannel adds userID to the channel. Joining twice only repeats the
// SERVER_JOINED reply.
func (h *Hub) JoinChannel(ctx context.Context, userID, channelID string) error {
	return h.do(func(out *outbox) error {
		u, err := h.graph.load(ctx, userID)
		if err != nil {
			return err
		}
		ch, err := h.dir.get(channelID)
		if err != nil {
			return err
		}

		joined := proto.Line(proto.TagServerJoined, ch.ID, ch.Name)
		if ch.IsMember(userID) {
			h.sendTo(out, userID, joined)
			return nil
		}

		if ch.ID != GeneralChannelID {
			if err := h.store.AddMember(ctx, ch.ID, userID); err != nil {
				return internalError("add channel member", err)
			}
		}
		ch.add(userID)

		h.sendTo(out, userID, joined)
		h.noticeLocked(ctx, out, ch, MessageJoin, u.Name+" joined the server")
		return nil
	})
}

// LeaveChannel removes userID from the channel. A user-owned channel's owner cannot leave.
func (h *Hub) LeaveChannel(ctx context.Context, userID, channelID string) error {
	return h.do(func(out *outbox) error {
		u, err := h.graph.load(ctx, userID)
		if err != nil {
			return err
		}
		ch, err := h.dir.get(channelID)
		if err != nil {
			return err
		}
		if err := ch.canLeave(userID); err != nil {
			return err
		}

		if ch.ID != GeneralChannelID {
			if err := h.store.RemoveMember(ctx, ch.ID, userID); err != nil {
				return internalError("remove channel member", err)
			}
		}
		ch.remove(userID)

		h.sendTo(out, userID, proto.Line(proto.TagServerLeft, ch.ID))
		h.noticeLocked(ctx, out, ch, MessageLeave, u.Name+" left the server")
		return nil
	})
}

// PostChannel appends a message to the channel log and broadcasts it to the
// online members, sender included.
func (h *Hub) PostChannel(ctx context.Context, userID, channelID, body string) error {
	return h.do(func(out *outbox) error {
		u, err := h.graph.load(ctx, userID)
		if err != nil {
			return err
		}
		ch, err := h.dir.get(channelID)
		if err != nil {
			return err
		}
		if !ch.IsMember(userID) {
			return ErrNotMember
		}

		msg := NewMessage(userID, ch.ID, body, MessageChannel, h.now())
		err = h.store.SaveChannelMessage(ctx, &store.ChannelMessage{
			ID:        msg.ID,
			ChannelID: ch.ID,
			SenderID:  userID,
			Body:      body,
			CreatedAt: msg.CreatedAt,
		})
		if err != nil {
			return internalError("save channel message", err)
		}
		ch.append(msg, h.dir.logLimit)

		display := Format(msg, h.graph.resolver(ctx))
		h.broadcastLocked(out, ch, proto.Line(proto.TagServerMsg, ch.ID, userID, u.Name, display))
		return nil
	})
}

// ChannelMembers returns a snapshot of the channel's members.
func (h *Hub) ChannelMembers(ctx context.Context, channelID string) ([]UserInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, err := h.dir.get(channelID)
	if err != nil {
		return nil, err
	}
	return h.infosLocked(ctx, ch.memberIDs()), nil
}

// Channels returns a snapshot of every channel in creation order.
func (h *Hub) Channels() []ChannelInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.dir.list()
}

// ChannelLog returns a copy of the channel's retained messages, oldest first.
func (h *Hub) ChannelLog(channelID string) ([]Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, err := h.dir.get(channelID)
	if err != nil {
		return nil, err
	}
	return append([]Message(nil), ch.log...), nil
}

// Announce broadcasts a system notice to the online members of a channel.
func (h *Hub) Announce(ctx context.Context, channelID, text string) error {
	return h.do(func(out *outbox) error {
		ch, err := h.dir.get(channelID)
		if err != nil {
			return err
		}
		h.noticeLocked(ctx, out, ch, MessageChannel, text)
		return nil
	})
}

// noticeLocked broadcasts a system notice to the channel.
func (h *Hub) noticeLocked(ctx context.Context, out *outbox, ch *Channel, typ MessageType, text string) {
	msg := NewMessage(SystemSender, ch.ID, text, typ, h.now())
	display := Format(msg, h.graph.resolver(ctx))
	h.broadcastLocked(out, ch, proto.Line(proto.TagServerMsg, ch.ID, SystemSender, SystemSender, display))
}

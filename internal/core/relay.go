package core

import (
	"context"
	"sort"

	"github.com/samber/lo"
	"github.com/vovakirdan/relaychat-server/internal/proto"
	"github.com/vovakirdan/relaychat-server/internal/store"
)

type delivery struct {
	userID string
	conn   Conn
	line   string
}

// outbox collects deliveries under the hub lock. They are written in order
// after the lock is released.
type outbox struct {
	items []delivery
}

func (o *outbox) push(userID string, conn Conn, line string) {
	o.items = append(o.items, delivery{userID: userID, conn: conn, line: line})
}

// sendTo queues line for userID if the user is online. Offline users are skipped.
func (h *Hub) sendTo(out *outbox, userID, line string) {
	if conn, ok := h.presence.route(userID); ok {
		out.push(userID, conn, line)
	}
}

// broadcastLocked queues line for every online member of the channel.
func (h *Hub) broadcastLocked(out *outbox, ch *Channel, line string) {
	for _, uid := range ch.order {
		h.sendTo(out, uid, line)
	}
}

func (h *Hub) flush(out *outbox) {
	for _, d := range out.items {
		if err := d.conn.Send(d.line); err != nil {
			h.logger.Debug().Err(err).Str("user_id", d.userID).Msg("delivery failed")
		}
	}
}

// SendFriendRequest forwards a friend request to the target if online and
// acknowledges it to the sender.
func (h *Hub) SendFriendRequest(ctx context.Context, fromID, toID string) error {
	return h.do(func(out *outbox) error {
		sender, target, err := h.graph.pair(ctx, fromID, toID)
		if err != nil {
			return err
		}
		if fromID == toID {
			return ErrSelfTarget
		}
		if target.HasBlocked(fromID) {
			return ErrBlocked
		}

		h.sendTo(out, toID, proto.Line(proto.TagFriendRequest, fromID, sender.Name))
		h.sendTo(out, fromID, proto.Line(proto.TagFriendRequestSent, toID))
		return nil
	})
}

// AcceptFriend makes accepterID and requesterID mutual friends and notifies both.
func (h *Hub) AcceptFriend(ctx context.Context, accepterID, requesterID string) error {
	return h.do(func(out *outbox) error {
		accepter, requester, err := h.graph.pair(ctx, accepterID, requesterID)
		if err != nil {
			return err
		}
		if accepterID == requesterID {
			return ErrSelfTarget
		}
		if accepter.HasBlocked(requesterID) || requester.HasBlocked(accepterID) {
			return ErrBlocked
		}
		if err := h.graph.addFriendship(ctx, accepterID, requesterID); err != nil {
			return err
		}

		h.sendTo(out, accepterID, proto.Line(proto.TagFriendAdded, requesterID, requester.Name))
		h.sendTo(out, requesterID, proto.Line(proto.TagFriendAdded, accepterID, accepter.Name))
		h.logger.Info().Str("user_id", accepterID).Str("friend_id", requesterID).Msg("friendship added")
		return nil
	})
}

// AreFriends reports whether a and b are friends.
func (h *Hub) AreFriends(ctx context.Context, a, b string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.graph.areFriends(ctx, a, b)
}

// IsBlocked reports whether by has blocked target.
func (h *Hub) IsBlocked(ctx context.Context, target, by string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.graph.isBlocked(ctx, target, by)
}

// Block records that byID blocked targetID and returns the target.
func (h *Hub) Block(ctx context.Context, byID, targetID string) (UserInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.graph.block(ctx, byID, targetID); err != nil {
		return UserInfo{}, err
	}
	return h.graph.users[targetID].info(), nil
}

// Unblock removes a block and returns the target.
func (h *Hub) Unblock(ctx context.Context, byID, targetID string) (UserInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.graph.unblock(ctx, byID, targetID); err != nil {
		return UserInfo{}, err
	}
	return h.graph.users[targetID].info(), nil
}

// BlockedUsers returns the users blocked by userID, sorted by id.
func (h *Hub) BlockedUsers(ctx context.Context, userID string) ([]UserInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	u, err := h.graph.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := lo.Keys(u.blocked)
	sort.Strings(ids)
	return h.infosLocked(ctx, ids), nil
}

// OnlineFriends returns the online friends of userID, sorted by id.
func (h *Hub) OnlineFriends(ctx context.Context, userID string) ([]UserInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	u, err := h.graph.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := lo.Filter(lo.Keys(u.friends), func(id string, _ int) bool {
		_, online := h.presence.route(id)
		return online
	})
	sort.Strings(ids)
	return h.infosLocked(ctx, ids), nil
}

// SendDirect relays a direct message. The checks run in order: unknown user,
// block in either direction, friendship. On success the message is stored,
// appended to both conversation logs, delivered to the receiver if online and
// acknowledged to the sender.
func (h *Hub) SendDirect(ctx context.Context, fromID, toID, body string) error {
	return h.do(func(out *outbox) error {
		sender, receiver, err := h.graph.pair(ctx, fromID, toID)
		if err != nil {
			return err
		}
		if sender.HasBlocked(toID) || receiver.HasBlocked(fromID) {
			return ErrBlocked
		}
		if !sender.IsFriend(toID) {
			return ErrNotFriends
		}

		senderLog, err := h.graph.conversation(ctx, sender, toID)
		if err != nil {
			return err
		}
		receiverLog, err := h.graph.conversation(ctx, receiver, fromID)
		if err != nil {
			return err
		}

		msg := NewMessage(fromID, toID, body, MessageDirect, h.now())
		err = h.store.SaveDirectMessage(ctx, &store.DirectMessage{
			ID:             msg.ID,
			ConversationID: store.ConversationID(fromID, toID),
			SenderID:       fromID,
			ReceiverID:     toID,
			Body:           body,
			CreatedAt:      msg.CreatedAt,
		})
		if err != nil {
			return internalError("save direct message", err)
		}
		sender.conversations[toID] = append(senderLog, msg)
		receiver.conversations[fromID] = append(receiverLog, msg)

		display := Format(msg, h.graph.resolver(ctx))
		h.sendTo(out, toID, proto.Line(proto.TagDM, fromID, sender.Name, display))
		h.sendTo(out, fromID, proto.Line(proto.TagDMDelivered, toID, receiver.Name, display))
		return nil
	})
}

// Conversation returns a copy of userID's message log with otherID, oldest first.
func (h *Hub) Conversation(ctx context.Context, userID, otherID string) ([]Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	u, _, err := h.graph.pair(ctx, userID, otherID)
	if err != nil {
		return nil, err
	}
	log, err := h.graph.conversation(ctx, u, otherID)
	if err != nil {
		return nil, err
	}
	return append([]Message(nil), log...), nil
}

// HistoryEntry is a replayed direct message with its sender name resolved.
type HistoryEntry struct {
	Message    Message
	SenderName string
}

// History replays the conversation between userID and otherID, oldest first.
func (h *Hub) History(ctx context.Context, userID, otherID string) ([]HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	u, _, err := h.graph.pair(ctx, userID, otherID)
	if err != nil {
		return nil, err
	}
	log, err := h.graph.conversation(ctx, u, otherID)
	if err != nil {
		return nil, err
	}
	return lo.Map(log, func(m Message, _ int) HistoryEntry {
		return HistoryEntry{Message: m, SenderName: h.graph.name(ctx, m.From)}
	}), nil
}

// infosLocked resolves user snapshots, skipping ids that no longer load.
func (h *Hub) infosLocked(ctx context.Context, ids []string) []UserInfo {
	infos := make([]UserInfo, 0, len(ids))
	for _, id := range ids {
		u, err := h.graph.load(ctx, id)
		if err != nil {
			h.logger.Warn().Err(err).Str("user_id", id).Msg("skip unresolvable user")
			continue
		}
		infos = append(infos, u.info())
	}
	return infos
}

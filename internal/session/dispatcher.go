package session

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/vovakirdan/relaychat-server/internal/auth"
	"github.com/vovakirdan/relaychat-server/internal/core"
	"github.com/vovakirdan/relaychat-server/internal/proto"
	"github.com/vovakirdan/relaychat-server/internal/store"
)

// Authenticator registers and verifies accounts.
type Authenticator interface {
	Register(ctx context.Context, reg auth.Registration) (*store.User, error)
	Login(ctx context.Context, id, password string) (*store.User, error)
}

type handlerFunc func(ctx context.Context, s *Session, args []string) error

// route describes one action: how many fields the line is cut into, whether
// it is allowed before login and what to answer on a malformed line.
type route struct {
	fields    int
	public    bool
	badFormat string
	handle    handlerFunc
}

// Dispatcher maps protocol actions to hub operations. One Dispatcher is
// shared by every session.
type Dispatcher struct {
	hub    *core.Hub
	auth   Authenticator
	logger *zerolog.Logger

	commandsPerMinute int

	routes map[string]route
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCommandsPerMinute limits the commands a session may issue per minute. Zero disables the limit.
func WithCommandsPerMinute(n int) Option {
	return func(d *Dispatcher) {
		d.commandsPerMinute = n
	}
}

// NewDispatcher builds the command table.
func NewDispatcher(hub *core.Hub, authenticator Authenticator, logger *zerolog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	d := &Dispatcher{
		hub:    hub,
		auth:   authenticator,
		logger: logger,
	}
	for _, opt := range opts {
		opt(d)
	}

	badFormat := proto.Error(core.ErrCodeBadFormat)
	d.routes = map[string]route{
		proto.ActionRegister: {fields: 4, public: true, badFormat: proto.Line(proto.TagRegisterFailed, proto.ReasonBadFormat), handle: d.register},
		proto.ActionLogin:    {fields: 3, public: true, badFormat: proto.Line(proto.TagLoginFailed, proto.ReasonBadFormat), handle: d.login},

		proto.ActionFriendRequest: {fields: 2, badFormat: badFormat, handle: d.friendRequest},
		proto.ActionAcceptFriend:  {fields: 2, badFormat: badFormat, handle: d.acceptFriend},
		proto.ActionSendDM:        {fields: 3, badFormat: badFormat, handle: d.sendDM},
		proto.ActionGetFriends:    {fields: 1, badFormat: badFormat, handle: d.getFriends},
		proto.ActionBlockUser:     {fields: 2, badFormat: badFormat, handle: d.blockUser},
		proto.ActionUnblockUser:   {fields: 2, badFormat: badFormat, handle: d.unblockUser},
		proto.ActionGetBlocked:    {fields: 1, badFormat: badFormat, handle: d.getBlocked},
		proto.ActionGetHistory:    {fields: 2, badFormat: badFormat, handle: d.getHistory},

		proto.ActionCreateServer:  {fields: 3, badFormat: badFormat, handle: d.createServer},
		proto.ActionJoinServer:    {fields: 2, badFormat: badFormat, handle: d.joinServer},
		proto.ActionLeaveServer:   {fields: 2, badFormat: badFormat, handle: d.leaveServer},
		proto.ActionServerMsg:     {fields: 3, badFormat: badFormat, handle: d.serverMsg},
		proto.ActionListServers:   {fields: 1, badFormat: badFormat, handle: d.listServers},
		proto.ActionServerMembers: {fields: 2, badFormat: badFormat, handle: d.serverMembers},
	}
	return d
}

// Serve runs a new session over t until the connection ends.
func (d *Dispatcher) Serve(ctx context.Context, t Transport) error {
	return New(t, d).Run(ctx)
}

// Dispatch handles one inbound line for s. Blank lines are ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, line string) {
	line = proto.Clean(line)
	if strings.TrimSpace(line) == "" {
		return
	}
	if !s.limiter.allow() {
		s.reply(proto.Error(core.ErrCodeRateLimited))
		return
	}

	action := proto.Action(line)
	r, known := d.routes[action]
	if s.state != StateAuthenticated && !r.public {
		s.reply(proto.Error(core.ErrCodeNotLoggedIn))
		return
	}
	if !known {
		s.reply(proto.Error(core.ErrCodeUnknownCommand, line))
		return
	}

	parts := proto.Split(line, r.fields)
	if len(parts) != r.fields || slices.Contains(parts[1:], "") {
		s.reply(r.badFormat)
		return
	}

	if !r.public {
		d.logger.Debug().Str("session_id", s.ID).Str("user_id", s.userID).Str("action", action).Msg("command")
	}
	if err := r.handle(ctx, s, parts[1:]); err != nil {
		code := core.ErrorCode(err)
		if code == core.ErrCodeInternal {
			d.logger.Error().Err(err).Str("session_id", s.ID).Str("action", action).Msg("command failed")
		}
		s.reply(proto.Error(code))
	}
}

func (d *Dispatcher) register(ctx context.Context, s *Session, args []string) error {
	if s.state == StateAuthenticated {
		s.reply(proto.Line(proto.TagRegisterFailed, proto.ReasonAlreadyOnline))
		return nil
	}

	user, err := d.auth.Register(ctx, auth.Registration{ID: args[0], Name: args[1], Password: args[2]})
	switch {
	case errors.Is(err, auth.ErrUserExists):
		s.reply(proto.Line(proto.TagRegisterFailed, proto.ReasonUserExists))
		return nil
	case errors.Is(err, auth.ErrInvalidInput):
		s.reply(proto.Line(proto.TagRegisterFailed, proto.ReasonInvalid))
		return nil
	case err != nil:
		return err
	}

	d.logger.Info().Str("user_id", user.ID).Msg("user registered")
	return d.admit(ctx, s, user, proto.TagRegisterOK, proto.TagRegisterFailed)
}

func (d *Dispatcher) login(ctx context.Context, s *Session, args []string) error {
	if s.state == StateAuthenticated {
		s.reply(proto.Line(proto.TagLoginFailed, proto.ReasonAlreadyOnline))
		return nil
	}

	user, err := d.auth.Login(ctx, args[0], args[1])
	switch {
	case errors.Is(err, auth.ErrNoSuchUser):
		s.reply(proto.Line(proto.TagLoginFailed, proto.ReasonNoSuchUser))
		return nil
	case errors.Is(err, auth.ErrInvalidCredentials):
		d.logger.Info().Str("session_id", s.ID).Str("user_id", args[0]).Msg("bad password")
		s.reply(proto.Line(proto.TagLoginFailed, proto.ReasonBadPassword))
		return nil
	case err != nil:
		return err
	}

	return d.admit(ctx, s, user, proto.TagLoginOK, proto.TagLoginFailed)
}

// admit binds the session to the user and moves it to Authenticated. The
// greeting reaches the client before any connect notification.
func (d *Dispatcher) admit(ctx context.Context, s *Session, user *store.User, okTag, failTag string) error {
	err := d.hub.Admit(ctx, user.ID, s, proto.Line(okTag, user.ID, user.Username))
	if errors.Is(err, core.ErrAlreadyOnline) {
		s.reply(proto.Line(failTag, proto.ReasonAlreadyOnline))
		return nil
	}
	if err != nil {
		return err
	}

	s.authenticate(user.ID)
	d.logger.Info().Str("session_id", s.ID).Str("user_id", user.ID).Msg("session authenticated")
	return nil
}

func (d *Dispatcher) friendRequest(ctx context.Context, s *Session, args []string) error {
	return d.hub.SendFriendRequest(ctx, s.userID, args[0])
}

func (d *Dispatcher) acceptFriend(ctx context.Context, s *Session, args []string) error {
	return d.hub.AcceptFriend(ctx, s.userID, args[0])
}

func (d *Dispatcher) sendDM(ctx context.Context, s *Session, args []string) error {
	return d.hub.SendDirect(ctx, s.userID, args[0], args[1])
}

func (d *Dispatcher) getFriends(ctx context.Context, s *Session, _ []string) error {
	friends, err := d.hub.OnlineFriends(ctx, s.userID)
	if err != nil {
		return err
	}
	s.reply(proto.Line(proto.TagFriends, pairs(friends)))
	return nil
}

func (d *Dispatcher) blockUser(ctx context.Context, s *Session, args []string) error {
	target, err := d.hub.Block(ctx, s.userID, args[0])
	if err != nil {
		return err
	}
	s.reply(proto.Line(proto.TagBlocked, target.ID, target.Name))
	return nil
}

func (d *Dispatcher) unblockUser(ctx context.Context, s *Session, args []string) error {
	target, err := d.hub.Unblock(ctx, s.userID, args[0])
	if err != nil {
		return err
	}
	s.reply(proto.Line(proto.TagUnblocked, target.ID, target.Name))
	return nil
}

func (d *Dispatcher) getBlocked(ctx context.Context, s *Session, _ []string) error {
	blocked, err := d.hub.BlockedUsers(ctx, s.userID)
	if err != nil {
		return err
	}
	s.reply(proto.Line(proto.TagBlockedList, pairs(blocked)))
	return nil
}

func (d *Dispatcher) getHistory(ctx context.Context, s *Session, args []string) error {
	entries, err := d.hub.History(ctx, s.userID, args[0])
	if err != nil {
		return err
	}
	payload := lo.Map(entries, func(e core.HistoryEntry, _ int) string {
		return proto.HistoryEntry(e.Message.FormattedTimestamp(), e.SenderName, e.Message.Body)
	})
	s.reply(proto.Line(proto.TagHistory, args[0], proto.History(payload)))
	return nil
}

func (d *Dispatcher) createServer(ctx context.Context, s *Session, args []string) error {
	return d.hub.CreateChannel(ctx, s.userID, args[0], args[1])
}

func (d *Dispatcher) joinServer(ctx context.Context, s *Session, args []string) error {
	return d.hub.JoinChannel(ctx, s.userID, args[0])
}

func (d *Dispatcher) leaveServer(ctx context.Context, s *Session, args []string) error {
	return d.hub.LeaveChannel(ctx, s.userID, args[0])
}

func (d *Dispatcher) serverMsg(ctx context.Context, s *Session, args []string) error {
	return d.hub.PostChannel(ctx, s.userID, args[0], args[1])
}

func (d *Dispatcher) listServers(_ context.Context, s *Session, _ []string) error {
	channels := lo.Map(d.hub.Channels(), func(c core.ChannelInfo, _ int) string {
		return proto.Pair(c.ID, c.Name)
	})
	s.reply(proto.Line(proto.TagServers, proto.List(channels)))
	return nil
}

func (d *Dispatcher) serverMembers(ctx context.Context, s *Session, args []string) error {
	members, err := d.hub.ChannelMembers(ctx, args[0])
	if err != nil {
		return err
	}
	s.reply(proto.Line(proto.TagMembers, args[0], pairs(members)))
	return nil
}

func pairs(users []core.UserInfo) string {
	return proto.List(lo.Map(users, func(u core.UserInfo, _ int) string {
		return proto.Pair(u.ID, u.Name)
	}))
}

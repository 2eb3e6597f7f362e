package session

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vovakirdan/relaychat-server/internal/auth"
	"github.com/vovakirdan/relaychat-server/internal/core"
	"github.com/vovakirdan/relaychat-server/internal/store/sqlite"
)

var testNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

const testStamp = "[2024-03-09 14:05:07] "

// fakeTransport records written lines. Sessions driven through Dispatch never read from it.
type fakeTransport struct {
	mu     sync.Mutex
	lines  []string
	closed bool
}

func (f *fakeTransport) ReadLine() (string, error) { return "", io.EOF }

func (f *fakeTransport) WriteLine(line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return io.ErrClosedPipe
	}
	f.lines = append(f.lines, line)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) RemoteAddr() string { return "test" }

func (f *fakeTransport) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func (f *fakeTransport) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = nil
}

type fixture struct {
	t    *testing.T
	ctx  context.Context
	hub  *core.Hub
	auth *auth.Service
	d    *Dispatcher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	hub := core.NewHub(st, nil, core.WithClock(func() time.Time { return testNow }))
	require.NoError(t, hub.Load(context.Background()))

	svc := auth.NewService(st)
	return &fixture{
		t:    t,
		ctx:  context.Background(),
		hub:  hub,
		auth: svc,
		d:    NewDispatcher(hub, svc, nil, opts...),
	}
}

func (f *fixture) session() (*Session, *fakeTransport) {
	tr := &fakeTransport{}
	return New(tr, f.d), tr
}

// register creates an account on a new session and clears the connect traffic.
func (f *fixture) register(id, name string) (*Session, *fakeTransport) {
	f.t.Helper()

	s, tr := f.session()
	f.d.Dispatch(f.ctx, s, "REGISTER:"+id+":"+name+":secret")
	require.Equal(f.t, "REGISTER_OK:"+id+":"+name, tr.Lines()[0])
	require.Equal(f.t, StateAuthenticated, s.State())
	tr.Reset()
	return s, tr
}

func resetAll(trs ...*fakeTransport) {
	for _, tr := range trs {
		tr.Reset()
	}
}

func TestCommandsBeforeLoginAreRejected(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	s, tr := f.session()

	for _, line := range []string{"GET_FRIENDS", "SEND_DM:bob:hi", "NOPE:x", "JOIN_SERVER:general"} {
		f.d.Dispatch(f.ctx, s, line)
	}

	req.Equal([]string{
		"ERROR:NOT_LOGGED_IN",
		"ERROR:NOT_LOGGED_IN",
		"ERROR:NOT_LOGGED_IN",
		"ERROR:NOT_LOGGED_IN",
	}, tr.Lines())
	req.Equal(StateUnauthenticated, s.State())
	req.Empty(s.UserID())
}

func TestRegisterConnectsToGeneral(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	s, tr := f.session()

	f.d.Dispatch(f.ctx, s, "REGISTER:alice:Alice:secret")

	req.Equal([]string{
		"REGISTER_OK:alice:Alice",
		"SERVER_JOINED:general:General",
		"SERVER_MSG:general:SYSTEM:SYSTEM:" + testStamp + "Alice joined the server",
	}, tr.Lines())
	req.Equal("alice", s.UserID())
	req.True(f.hub.IsOnline("alice"))
}

func TestRegisterFailures(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, aliceTr := f.register("alice", "Alice")

	s, tr := f.session()
	f.d.Dispatch(f.ctx, s, "REGISTER:alice:Other:secret")
	f.d.Dispatch(f.ctx, s, "REGISTER:a,b:Name:secret")
	f.d.Dispatch(f.ctx, s, "REGISTER:bob:Bob:abc")
	f.d.Dispatch(f.ctx, s, "REGISTER:SYSTEM:Mallory:secret")
	f.d.Dispatch(f.ctx, s, "REGISTER:bob:Bob")
	f.d.Dispatch(f.ctx, s, "REGISTER:bob::secret")
	req.Equal([]string{
		"REGISTER_FAILED:USER_EXISTS",
		"REGISTER_FAILED:INVALID",
		"REGISTER_FAILED:INVALID",
		"REGISTER_FAILED:INVALID",
		"REGISTER_FAILED:BAD_FORMAT",
		"REGISTER_FAILED:BAD_FORMAT",
	}, tr.Lines())
	req.Equal(StateUnauthenticated, s.State())

	f.d.Dispatch(f.ctx, alice, "REGISTER:carol:Carol:secret")
	f.d.Dispatch(f.ctx, alice, "LOGIN:alice:secret")
	req.Equal([]string{
		"REGISTER_FAILED:ALREADY_ONLINE",
		"LOGIN_FAILED:ALREADY_ONLINE",
	}, aliceTr.Lines())
	req.Equal("alice", alice.UserID())
}

func TestLoginFailuresAndReconnect(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, err := f.auth.Register(f.ctx, auth.Registration{ID: "alice", Name: "Alice", Password: "secret"})
	req.NoError(err)

	first, firstTr := f.session()
	f.d.Dispatch(f.ctx, first, "LOGIN:ghost:secret")
	f.d.Dispatch(f.ctx, first, "LOGIN:alice:wrong")
	f.d.Dispatch(f.ctx, first, "LOGIN:alice")
	f.d.Dispatch(f.ctx, first, "LOGIN:alice:secret")
	req.Equal([]string{
		"LOGIN_FAILED:NO_SUCH_USER",
		"LOGIN_FAILED:BAD_PASSWORD",
		"LOGIN_FAILED:BAD_FORMAT",
		"LOGIN_OK:alice:Alice",
	}, firstTr.Lines()[:4])

	second, secondTr := f.session()
	f.d.Dispatch(f.ctx, second, "LOGIN:alice:secret")
	req.Equal([]string{"LOGIN_FAILED:ALREADY_ONLINE"}, secondTr.Lines())
	req.Equal(StateUnauthenticated, second.State())

	f.hub.Disconnect(f.ctx, "alice")
	secondTr.Reset()
	f.d.Dispatch(f.ctx, second, "LOGIN:alice:secret")
	req.Equal("LOGIN_OK:alice:Alice", secondTr.Lines()[0])
	req.Equal(StateAuthenticated, second.State())
}

func TestUnknownCommandAndBadFormat(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	s, tr := f.register("alice", "Alice")

	tests := []struct {
		line string
		want string
	}{
		{"DANCE:now:please", "ERROR:UNKNOWN_COMMAND:DANCE:now:please"},
		{"SEND_DM:bob", "ERROR:BAD_FORMAT"},
		{"SEND_DM::hi", "ERROR:BAD_FORMAT"},
		{"JOIN_SERVER", "ERROR:BAD_FORMAT"},
		{"CREATE_SERVER:g1:", "ERROR:BAD_FORMAT"},
		{"FRIEND_REQUEST:", "ERROR:BAD_FORMAT"},
	}
	for _, tt := range tests {
		tr.Reset()
		f.d.Dispatch(f.ctx, s, tt.line)
		req.Equal([]string{tt.want}, tr.Lines(), tt.line)
	}
}

func TestBlankLinesAreIgnored(t *testing.T) {
	f := newFixture(t)
	s, tr := f.session()

	f.d.Dispatch(f.ctx, s, "")
	f.d.Dispatch(f.ctx, s, "  \r\n")
	require.Empty(t, tr.Lines())
}

func TestFriendAndDirectMessageFlow(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, aliceTr := f.register("alice", "Alice")
	bob, bobTr := f.register("bob", "Bob")
	resetAll(aliceTr, bobTr)

	f.d.Dispatch(f.ctx, alice, "FRIEND_REQUEST:bob")
	req.Equal([]string{"FRIEND_REQUEST:alice:Alice"}, bobTr.Lines())
	req.Equal([]string{"FRIEND_REQUEST_SENT:bob"}, aliceTr.Lines())
	resetAll(aliceTr, bobTr)

	f.d.Dispatch(f.ctx, bob, "ACCEPT_FRIEND:alice")
	req.Equal([]string{"FRIEND_ADDED:alice:Alice"}, bobTr.Lines())
	req.Equal([]string{"FRIEND_ADDED:bob:Bob"}, aliceTr.Lines())
	resetAll(aliceTr, bobTr)

	f.d.Dispatch(f.ctx, alice, "GET_FRIENDS")
	req.Equal([]string{"FRIENDS:bob:Bob"}, aliceTr.Lines())
	aliceTr.Reset()

	f.d.Dispatch(f.ctx, alice, "SEND_DM:bob:see you at 10:30")
	display := testStamp + "Alice: see you at 10:30"
	req.Equal([]string{"DM:alice:Alice:" + display}, bobTr.Lines())
	req.Equal([]string{"DM_DELIVERED:bob:Bob:" + display}, aliceTr.Lines())
	resetAll(aliceTr, bobTr)

	f.d.Dispatch(f.ctx, bob, "SEND_DM:alice:ok")
	bobTr.Reset()
	f.d.Dispatch(f.ctx, bob, "GET_HISTORY:alice")
	req.Equal([]string{
		"HISTORY:alice:2024-03-09 14:05:07~Alice~see you at 10:30|2024-03-09 14:05:07~Bob~ok",
	}, bobTr.Lines())

	f.d.Dispatch(f.ctx, alice, "SEND_DM:ghost:hi")
	req.Equal("ERROR:UNKNOWN_USER", aliceTr.Lines()[len(aliceTr.Lines())-1])
}

func TestBlockCommands(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, aliceTr := f.register("alice", "Alice")
	bob, bobTr := f.register("bob", "Bob")
	f.d.Dispatch(f.ctx, alice, "FRIEND_REQUEST:bob")
	f.d.Dispatch(f.ctx, bob, "ACCEPT_FRIEND:alice")
	resetAll(aliceTr, bobTr)

	for _, line := range []string{
		"BLOCK_USER:bob",
		"GET_BLOCKED",
		"SEND_DM:bob:hello",
		"BLOCK_USER:alice",
		"BLOCK_USER:ghost",
		"UNBLOCK_USER:bob",
		"GET_BLOCKED",
	} {
		f.d.Dispatch(f.ctx, alice, line)
	}
	req.Equal([]string{
		"BLOCKED:bob:Bob",
		"BLOCKED_LIST:bob:Bob",
		"ERROR:BLOCKED",
		"ERROR:SELF_TARGET",
		"ERROR:UNKNOWN_USER",
		"UNBLOCKED:bob:Bob",
		"BLOCKED_LIST:",
	}, aliceTr.Lines())
	req.Empty(bobTr.Lines())

	f.d.Dispatch(f.ctx, bob, "BLOCK_USER:alice")
	bobTr.Reset()
	f.d.Dispatch(f.ctx, bob, "SEND_DM:alice:hi")
	req.Equal([]string{"ERROR:BLOCKED"}, bobTr.Lines())
}

func TestDirectMessageRequiresFriendship(t *testing.T) {
	f := newFixture(t)
	alice, aliceTr := f.register("alice", "Alice")
	_, bobTr := f.register("bob", "Bob")
	resetAll(aliceTr, bobTr)

	f.d.Dispatch(f.ctx, alice, "SEND_DM:bob:hi")
	require.Equal(t, []string{"ERROR:NOT_FRIENDS"}, aliceTr.Lines())
	require.Empty(t, bobTr.Lines())
}

func TestServerCommands(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, aliceTr := f.register("alice", "Alice")
	bob, bobTr := f.register("bob", "Bob")
	resetAll(aliceTr, bobTr)

	f.d.Dispatch(f.ctx, alice, "CREATE_SERVER:g1:Games")
	req.Equal([]string{"SERVER_CREATED:g1:Games"}, aliceTr.Lines())
	req.Equal([]string{"NEW_SERVER:g1:Games:Alice"}, bobTr.Lines())
	resetAll(aliceTr, bobTr)

	f.d.Dispatch(f.ctx, bob, "CREATE_SERVER:g1:Other")
	req.Equal([]string{"ERROR:ALREADY_EXISTS"}, bobTr.Lines())
	bobTr.Reset()

	f.d.Dispatch(f.ctx, bob, "JOIN_SERVER:g1")
	joined := "SERVER_MSG:g1:SYSTEM:SYSTEM:" + testStamp + "Bob joined the server"
	req.Equal([]string{"SERVER_JOINED:g1:Games", joined}, bobTr.Lines())
	req.Equal([]string{joined}, aliceTr.Lines())
	resetAll(aliceTr, bobTr)

	f.d.Dispatch(f.ctx, bob, "LIST_SERVERS")
	f.d.Dispatch(f.ctx, bob, "SERVER_MEMBERS:g1")
	req.Equal([]string{
		"SERVERS:general:General,g1:Games",
		"MEMBERS:g1:alice:Alice,bob:Bob",
	}, bobTr.Lines())
	bobTr.Reset()

	f.d.Dispatch(f.ctx, bob, "SERVER_MSG:g1:gg: wp")
	msg := "SERVER_MSG:g1:bob:Bob:" + testStamp + "Bob: gg: wp"
	req.Equal([]string{msg}, bobTr.Lines())
	req.Equal([]string{msg}, aliceTr.Lines())
	resetAll(aliceTr, bobTr)

	f.d.Dispatch(f.ctx, alice, "LEAVE_SERVER:g1")
	req.Equal([]string{"ERROR:OWNER_CANNOT_LEAVE"}, aliceTr.Lines())
	aliceTr.Reset()

	f.d.Dispatch(f.ctx, bob, "LEAVE_SERVER:g1")
	req.Equal([]string{"SERVER_LEFT:g1"}, bobTr.Lines())
	req.Equal([]string{"SERVER_MSG:g1:SYSTEM:SYSTEM:" + testStamp + "Bob left the server"}, aliceTr.Lines())
	resetAll(aliceTr, bobTr)

	for _, line := range []string{"SERVER_MSG:g1:hello?", "LEAVE_SERVER:g1", "JOIN_SERVER:nope", "SERVER_MEMBERS:nope"} {
		f.d.Dispatch(f.ctx, bob, line)
	}
	req.Equal([]string{
		"ERROR:NOT_MEMBER",
		"ERROR:NOT_MEMBER",
		"ERROR:NOT_FOUND",
		"ERROR:NOT_FOUND",
	}, bobTr.Lines())
	req.Empty(aliceTr.Lines())
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, WithCommandsPerMinute(3))
	s, tr := f.register("alice", "Alice")

	f.d.Dispatch(f.ctx, s, "GET_FRIENDS")
	f.d.Dispatch(f.ctx, s, "")
	f.d.Dispatch(f.ctx, s, "GET_BLOCKED")
	f.d.Dispatch(f.ctx, s, "LIST_SERVERS")

	require.Equal(t, []string{"FRIENDS:", "BLOCKED_LIST:", "ERROR:RATE_LIMITED"}, tr.Lines())
}

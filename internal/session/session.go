package session

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/vovakirdan/relaychat-server/internal/utils"
)

// State is the authentication state of a session.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
)

func (s State) String() string {
	if s == StateAuthenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// Session is one client connection. State and the bound user id are owned by
// the goroutine running the session; Send may be called from any goroutine.
type Session struct {
	ID string

	transport  Transport
	dispatcher *Dispatcher
	limiter    *rateLimiter

	writeMu sync.Mutex

	state  State
	userID string
}

// New creates an unauthenticated session over t.
func New(t Transport, d *Dispatcher) *Session {
	return &Session{
		ID:         utils.NewID(),
		transport:  t,
		dispatcher: d,
		limiter:    newRateLimiter(d.commandsPerMinute),
	}
}

// State returns the authentication state.
func (s *Session) State() State {
	return s.state
}

// UserID returns the bound user id, empty before authentication.
func (s *Session) UserID() string {
	return s.userID
}

func (s *Session) authenticate(userID string) {
	s.userID = userID
	s.state = StateAuthenticated
}

// Send writes one line to the client.
func (s *Session) Send(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.transport.WriteLine(line)
}

func (s *Session) reply(line string) {
	if err := s.Send(line); err != nil {
		s.dispatcher.logger.Debug().Err(err).Str("session_id", s.ID).Msg("reply failed")
	}
}

// Run reads lines until the transport fails or ctx is done, dispatching each
// one in order. On exit the bound user is disconnected from the hub.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		_ = s.transport.Close()
	}()

	stop := make(chan struct{})
	defer close(stop)
	s.limiter.startReset(stop)

	logger := s.dispatcher.logger
	logger.Debug().Str("session_id", s.ID).Str("remote", s.transport.RemoteAddr()).Msg("session started")
	defer s.end(ctx)

	for {
		line, err := s.transport.ReadLine()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}
		s.dispatcher.Dispatch(ctx, s, line)
	}
}

func (s *Session) end(ctx context.Context) {
	if s.state == StateAuthenticated {
		s.dispatcher.hub.Disconnect(context.WithoutCancel(ctx), s.userID)
	}
	s.dispatcher.logger.Debug().Str("session_id", s.ID).Str("user_id", s.userID).Msg("session ended")
}

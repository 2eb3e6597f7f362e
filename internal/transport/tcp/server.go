package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/relaychat-server/internal/session"
)

// Server accepts line-protocol connections and runs one session per connection.
type Server struct {
	addr       string
	dispatcher *session.Dispatcher
	maxLine    int
	log        *zerolog.Logger

	wg sync.WaitGroup
}

// NewServer creates a TCP server listening on addr.
func NewServer(addr string, dispatcher *session.Dispatcher, maxLine int, logger *zerolog.Logger) *Server {
	return &Server{
		addr:       addr,
		dispatcher: dispatcher,
		maxLine:    maxLine,
		log:        logger,
	}
}

// ListenAndServe listens on the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then waits for every
// session to end.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("tcp server listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			s.log.Warn().Err(err).Msg("accept connection")
			continue
		}

		s.wg.Add(1)
		go s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	s.log.Debug().Str("remote", remote).Msg("client connected")

	if err := s.dispatcher.Serve(ctx, session.NewConnTransport(conn, s.maxLine)); err != nil {
		s.log.Warn().Err(err).Str("remote", remote).Msg("connection closed with error")
		return
	}
	s.log.Debug().Str("remote", remote).Msg("client disconnected")
}

package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/relaychat-server/internal/auth"
	"github.com/vovakirdan/relaychat-server/internal/config"
	"github.com/vovakirdan/relaychat-server/internal/core"
	"github.com/vovakirdan/relaychat-server/internal/log"
	"github.com/vovakirdan/relaychat-server/internal/session"
	"github.com/vovakirdan/relaychat-server/internal/store"
	"github.com/vovakirdan/relaychat-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/relaychat-server/internal/transport/http"
	"github.com/vovakirdan/relaychat-server/internal/transport/tcp"
)

// App wires together core and transport layers.
type App struct {
	tcp             *tcp.Server
	http            *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	hub := core.NewHub(st, log.Component(logger, "hub"), core.WithChannelLogLimit(cfg.ChannelLogLimit))
	if err := hub.Load(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("load hub: %w", err)
	}

	dispatcher := session.NewDispatcher(
		hub,
		auth.NewService(st),
		log.Component(logger, "session"),
		session.WithCommandsPerMinute(cfg.CommandsPerMinute),
	)

	a := &App{
		tcp:             tcp.NewServer(cfg.Addr, dispatcher, cfg.MaxLineBytes, log.Component(logger, "tcp")),
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}

	if cfg.HTTPAddr != "" {
		a.http = transporthttp.NewServer(hub, dispatcher, JWTConfig(cfg), cfg, log.Component(logger, "http"))
		if cfg.JWTSecret == "" {
			logger.Warn().Msg("jwt_secret is empty, ops api disabled")
		}
	}

	return a, nil
}

// JWTConfig builds the operator token configuration.
func JWTConfig(cfg *config.Config) *auth.JWTConfig {
	return &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
}

// Run starts the TCP and HTTP servers and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tcpErr := make(chan error, 1)
	go func() {
		tcpErr <- a.tcp.ListenAndServe(ctx)
	}()

	httpErr := make(chan error, 1)
	if a.http != nil {
		// WebSocket sessions outlive ServeHTTP's request handling, so they
		// derive from the app context to stop on shutdown.
		a.http.BaseContext = func(net.Listener) context.Context { return ctx }
		go func() {
			a.log.Info().Str("addr", a.http.Addr).Msg("http server listening")
			if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				httpErr <- err
				return
			}
			httpErr <- nil
		}()
	}

	var runErr error
	select {
	case runErr = <-tcpErr:
		tcpErr = nil
	case runErr = <-httpErr:
		httpErr = nil
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	cancel()

	if a.http != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancelShutdown()
		if err := a.http.Shutdown(shutdownCtx); err != nil && runErr == nil {
			runErr = err
		}
		if httpErr != nil {
			if err := <-httpErr; err != nil && runErr == nil {
				runErr = err
			}
		}
	}
	if tcpErr != nil {
		if err := <-tcpErr; err != nil && runErr == nil {
			runErr = err
		}
	}

	return runErr
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}

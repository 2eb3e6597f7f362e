package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat-server/internal/auth"
	"github.com/vovakirdan/relaychat-server/internal/config"
	"github.com/vovakirdan/relaychat-server/internal/core"
	"github.com/vovakirdan/relaychat-server/internal/session"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// NewServer builds the HTTP server: health check, the WebSocket bridge to the
// line protocol and the operator API.
func NewServer(hub *core.Hub, dispatcher *session.Dispatcher, jwtConfig *auth.JWTConfig, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/ws", gin.WrapH(NewWSHandler(dispatcher, cfg.MaxLineBytes, logger)))

	ops := NewOpsHandlers(hub, logger)
	api := router.Group("/api", AuthMiddleware(jwtConfig, logger))
	{
		api.GET("/presence", ops.Presence)
		api.GET("/servers", ops.Servers)
		api.GET("/servers/:id/members", ops.ServerMembers)
		api.GET("/servers/:id/messages", ops.ServerMessages)
		api.POST("/servers/:id/announce", ops.Announce)
	}

	return &stdhttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}

package handler

import (
	"context"
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"agrolink/internal/adapter/api/middleware"
	"agrolink/internal/infrastructure/auth"
	ws "agrolink/internal/infrastructure/websocket"
	"agrolink/pkg/logger"
	"agrolink/pkg/metrics"
	"agrolink/pkg/response"
)

type WebSocketHandler struct {
	wsManager    *ws.Manager
	dispatcher   ws.Handler
	verifier     *auth.IdentityVerifier
	upgrader     gorillaws.Upgrader
	pingInterval time.Duration
	pingTimeout  time.Duration
}

func NewWebSocketHandler(
	wsManager *ws.Manager,
	dispatcher ws.Handler,
	verifier *auth.IdentityVerifier,
	allowedOrigins []string,
	pingInterval, pingTimeout time.Duration,
) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:  wsManager,
		dispatcher: dispatcher,
		verifier:   verifier,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		pingInterval: pingInterval,
		pingTimeout:  pingTimeout,
	}
}

// originChecker admits browsers from the configured origins. Requests without
// an Origin header come from non-browser clients and are let through.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	wildcard := false
	for _, origin := range allowed {
		if origin == "*" {
			wildcard = true
		}
		set[origin] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || wildcard {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// HandleWebSocket authenticates the handshake and then serves the connection
// until it closes. Nothing is joined or registered for a rejected handshake.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		token = middleware.BearerToken(c)
	}
	role := c.QueryParam("role")
	if role == "" {
		role = c.Request().Header.Get(middleware.RoleHeader)
	}

	identity, err := h.verifier.Verify(c.Request().Context(), token, role)
	if err != nil {
		metrics.HandshakesTotal.WithLabelValues("rejected").Inc()
		return response.Error(c, err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		metrics.HandshakesTotal.WithLabelValues("upgrade_failed").Inc()
		logger.Warn("WebSocket: upgrade for %s failed: %v", identity.UserID, err)
		return nil
	}
	metrics.HandshakesTotal.WithLabelValues("accepted").Inc()

	client := ws.NewClient(conn, identity, h.pingInterval, h.pingTimeout)
	client.Serve(context.WithoutCancel(c.Request().Context()), h.wsManager, h.dispatcher)
	return nil
}

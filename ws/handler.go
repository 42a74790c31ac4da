package ws

import (
	"context"
	"net/http"

	"creatorhub/internal/auth"
	"creatorhub/internal/logger"
	"creatorhub/internal/middleware"
	"creatorhub/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	coord    *Coordinator
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(coord *Coordinator, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		coord: coord,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(allowedOrigins, r.Header.Get("Origin"))
			},
		},
	}
}

// ServeWS upgrades the request. A token in the Authorization header or the
// token query parameter authenticates the connection right away; otherwise
// the client must send authenticate.
func (h *WebSocketHandler) ServeWS(c *gin.Context) {
	// The request context ends when this handler returns.
	ctx := context.WithoutCancel(c.Request.Context())

	var identity *auth.Identity
	if credential := middleware.Credential(c); credential != "" {
		resolved, err := h.coord.Resolve(ctx, credential)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		identity = resolved
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.CtxWarn(ctx, "websocket upgrade failed", "error", err)
		return
	}

	session := h.coord.NewSession(ctx)
	if identity != nil {
		if err := h.coord.Bind(session.Context(), session, identity); err != nil {
			session.sendError(EventAuthenticate, err, correlation{})
		}
	}

	logger.CtxInfo(session.Context(), "websocket connected", "authenticated", identity != nil)
	NewClient(conn, session).Start()
}

package wskit

import (
	"context"

	"github.com/fgrzl/mux"
	"github.com/fgrzl/obskit/pkg/host"
	"golang.org/x/net/websocket"
)

func ConfigureWebSocketServer(router *mux.Router, manager host.Manager) {
	server := &webSocketServer{
		manager: manager,
	}
	router.GET("/", server.connect)
}

type webSocketServer struct {
	manager host.Manager
}

func (s *webSocketServer) connect(c *mux.RouteContext) {

	session, err := NewServerMuxerSession(c.User)
	if err != nil {
		c.Unauthorized()
		return
	}

	handler := &webSocketHandler{
		ctx:     c,
		session: session,
		manager: s.manager,
	}

	websocket.Handler(handler.handle).ServeHTTP(c.Response, c.Request)
}

type webSocketHandler struct {
	ctx     context.Context
	session MuxerSession
	manager host.Manager
}

func (h *webSocketHandler) handle(conn *websocket.Conn) {
	NewServerWebSocketMuxer(h.ctx, h.session, h.manager, conn)
}

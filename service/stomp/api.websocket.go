package stomp

import (
	"net/http"

	"github.com/woutdenolf/coilmq/api"

	"nhooyr.io/websocket"
)

// websocketHandler upgrades the request and serves the session over the
// websocket as a byte stream, sharing the tcp code path end to end.
type websocketHandler struct {
	server *Server
}

func (h websocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{api.WebSocketSubprotocol},
	})
	if err != nil {
		_serviceLogger.Warnf("websocket accept failed: %s", err)
		return
	}
	if c.Subprotocol() != api.WebSocketSubprotocol {
		_serviceLogger.Warnf("reject websocket connection with subprotocol:[%s]", c.Subprotocol())
		_ = c.Close(websocket.StatusPolicyViolation, "unsupported subprotocol")
		return
	}

	conn := websocket.NetConn(r.Context(), c, websocket.MessageBinary)
	h.server.serveConn(conn)
}

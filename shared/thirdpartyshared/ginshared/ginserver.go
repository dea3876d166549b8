package ginshared

import (
	"net"
	"net/http"

	"github.com/woutdenolf/coilmq/shared/logging"

	"github.com/gin-gonic/gin"
)

var _ginServerLogger = logging.NewLogger("GinServer")

// StartBareMetalGinServer serves the engine on l from a background goroutine.
// Stop it through Shutdown or Close on the returned server.
func StartBareMetalGinServer(l net.Listener, engine *gin.Engine) *http.Server {
	server := &http.Server{Handler: engine}
	go func() {
		if err := server.Serve(l); err != nil && err != http.ErrServerClosed {
			_ginServerLogger.Errorf("gin server stopped serving:[%s]", err)
		}
	}()
	return server
}

package stomp

import (
	"net/http"

	"github.com/woutdenolf/coilmq/shared/thirdpartyshared/ginshared"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newManageEngine builds the management API: broker introspection, health
// probe and prometheus metrics.
func newManageEngine(s *Server) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(func(context *gin.Context) {
		context.Next()
		var err error
		// handling first error to respond
		for _, v := range context.Errors {
			err = v
			break
		}
		if err != nil {
			_manageLogger.Errorf("request [%s] failed:[%s]", context.Request.URL.Path, err)
			context.String(http.StatusInternalServerError, err.Error())
		}
	})

	engine.GET("/health", ginshared.Wrap(func(ctx *gin.Context) ginshared.Render {
		return ginshared.RenderOKString("ok")
	}))

	engine.GET("/queues", ginshared.Wrap(func(ctx *gin.Context) ginshared.Render {
		infos, err := s.queues.QueueInfos()
		if err != nil {
			return ginshared.RenderError(err)
		}
		return ginshared.RenderJson(http.StatusOK, infos)
	}))

	engine.GET("/topics", ginshared.Wrap(func(ctx *gin.Context) ginshared.Render {
		return ginshared.RenderJson(http.StatusOK, s.topics.TopicInfos())
	}))

	engine.GET("/connections", ginshared.Wrap(func(ctx *gin.Context) ginshared.Render {
		return ginshared.RenderJson(http.StatusOK, gin.H{"connections": s.ConnectionCount()})
	}))

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))

	return engine
}

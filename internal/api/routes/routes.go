package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/livecoach/internal/api/handlers"
)

type Deps struct {
	WS      *handlers.WSHandler
	Metrics http.Handler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	// WebSocket
	r.GET("/ws/socket_server", d.WS.LiveWS)
}

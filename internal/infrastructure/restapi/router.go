package restapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wallet_orchestrator/internal/infrastructure/eventstream"
)

// SetupRouter wires the HTTP surface: the versioned API, the websocket event
// stream and the Prometheus metrics endpoint.
func SetupRouter(handler *Handler, hub *eventstream.Hub) *gin.Engine {
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true // Adjust for production
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.POST("/session/connect", handler.ConnectHandler)
		v1.POST("/session/disconnect", handler.DisconnectHandler)
		v1.GET("/session", handler.GetSessionHandler)
		v1.POST("/session/chain", handler.SwitchChainHandler)

		v1.GET("/balances", handler.GetBalancesHandler)

		v1.POST("/transfers", handler.SubmitTransferHandler)
		v1.GET("/transfers", handler.HistoryHandler)
		v1.POST("/transfers/estimate", handler.EstimateHandler)
		v1.GET("/transfers/max-native", handler.MaxNativeHandler)

		v1.GET("/prices", handler.PricesHandler)
		v1.GET("/networks", handler.NetworksHandler)
		v1.GET("/networks/:chainId/tokens", handler.TokensHandler)
	}

	router.GET("/ws", func(c *gin.Context) {
		hub.HandleUpgrade(c.Writer, c.Request)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	return router
}

package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"regmap/internal/admin/api"
	"regmap/internal/device"
)

// SetupRouter 配置 Gin 路由, metrics 非空时挂载 /metrics
func SetupRouter(root *device.Root, metrics http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// 配置 CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowMethods = []string{"GET", "PUT", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(config))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	h := api.NewHandler(root)
	apiV1 := r.Group("/api/v1")
	{
		variables := apiV1.Group("/variables")
		{
			variables.GET("", h.ListVariables)       // GET /api/v1/variables
			variables.GET("/*path", h.ReadVariable)  // GET /api/v1/variables/Root.UdpEngineServer.ServerRemotePort
			variables.PUT("/*path", h.WriteVariable) // PUT /api/v1/variables/Root.UdpEngineServer.ServerRemotePort
		}
		apiV1.GET("/engines", h.ListEngines) // GET /api/v1/engines
	}

	return r
}

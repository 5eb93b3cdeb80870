package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/rto-lookup/config"
	"github.com/yeremiapane/rto-lookup/controllers"
	"github.com/yeremiapane/rto-lookup/hub"
	"github.com/yeremiapane/rto-lookup/middlewares"
)

// Dependencies are the collaborators the HTTP layer is built from.
type Dependencies struct {
	Config  *config.Config
	Lookups controllers.LookupFlow
	Metrics controllers.MetricsSource
	Tokens  middlewares.TokenParser
	Hub     *hub.Hub
}

func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(middlewares.RequestID())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(deps.Config.CORSAllowedOrigins))
	r.Use(middlewares.LoggerMiddleware())

	paymentCtrl := controllers.NewPaymentController(deps.Lookups, deps.Metrics, deps.Hub, deps.Config.PublicBaseURL)
	streamCtrl := controllers.NewPaymentStreamController(deps.Lookups, deps.Hub, deps.Config.CORSAllowedOrigins)
	vehicleCtrl := controllers.NewVehicleController(deps.Lookups)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	limiter := middlewares.NewRateLimiter(deps.Config.PaymentRatePerMinute, 0)

	api := r.Group("/api")
	{
		payments := api.Group("/payments")
		payments.POST("", limiter.RateLimit(), paymentCtrl.CreatePayment)
		payments.GET("/metrics", paymentCtrl.GetMetrics)
		payments.GET("/:order_id/status", paymentCtrl.GetPaymentStatus)

		vehicles := api.Group("/vehicles")
		vehicles.Use(middlewares.UnlockAuthMiddleware(deps.Tokens))
		vehicles.POST("/lookup", vehicleCtrl.LookupVehicle)
	}

	ws := r.Group("/ws")
	{
		ws.GET("/payments/:order_id", streamCtrl.StreamPayment)
	}

	return r
}

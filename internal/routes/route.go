package routes

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventpass/internal/container"
	"github.com/joshua-takyi/eventpass/internal/handlers"
	"github.com/joshua-takyi/eventpass/internal/middleware"
	"github.com/joshua-takyi/eventpass/internal/models"
)

// SetupRoutes configures all routes with the dependency container
func SetupRoutes(container *container.Container) *gin.Engine {
	if container.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     container.Config.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
	}))

	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(container.Logger))
	r.Use(middleware.ErrorHandler(container.Logger))
	r.Use(gin.Recovery())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "OK",
				"service": "eventpass-api",
			})
		})

		// The gateway calls this without a user token.
		v1.POST("/payments/webhook", handlers.PaymentWebhook(container.BookingService))
	}

	api := v1.Group("/")
	api.Use(middleware.Authenticate(container.Tokens, container.Logger))
	{
		// Anonymous callers may register for free events.
		api.POST("/registrations", handlers.RegisterFree(container.BookingService))
	}

	protected := api.Group("/")
	protected.Use(middleware.RequireAuth())
	{
		protected.POST("/orders", handlers.CreateOrder(container.BookingService))
		protected.POST("/payments/verify", handlers.VerifyPayment(container.BookingService))
		protected.POST("/passes/resend", handlers.ResendPass(container.BookingService))
		protected.GET("/bookings/mine", handlers.MyBookings(container.BookingService))
		protected.GET("/bookings/:id/pass", handlers.PreviewPass(container.BookingService))
	}

	admin := api.Group("/")
	admin.Use(middleware.RequireRole(models.RoleAdmin, models.RoleSuperAdmin))
	{
		admin.POST("/checkin", handlers.CheckIn(container.CheckInService))
		admin.GET("/bookings", handlers.ListBookings(container.BookingService))
	}

	return r
}

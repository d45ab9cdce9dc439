package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"rentsafi/server/internal/api/handlers"
	"rentsafi/server/internal/api/middleware"
	"rentsafi/server/internal/cache"
	"rentsafi/server/internal/config"
	"rentsafi/server/internal/models"
	"rentsafi/server/internal/services"
	"rentsafi/server/internal/storage"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient handlers.IAsynqClient) *gin.Engine {
	// Initialize services needed by API handlers
	propertyService := services.NewPropertyService(db, cfg)
	userService := services.NewUserService(db, propertyService)
	messageService := services.NewMessageService(db)

	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
	}

	var queryCache *cache.QueryCache
	if rdb != nil {
		queryCache = cache.NewQueryCache(rdb, cfg.GetCacheTTL)
	}

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)

	// Global middleware first (order matters)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	// Initialize handlers
	propertyHandler := handlers.NewRestPropertyHandler(propertyService, s3StorageService, taskClient, queryCache)
	authHandler := handlers.NewRestAuthHandler(userService, cfg)
	userHandler := handlers.NewRestUserHandler(userService)
	messageHandler := handlers.NewRestMessageHandler(messageService, userService, propertyService, taskClient)

	v1 := r.Group("/api/v1")
	{
		// Public routes
		v1.GET("/properties", propertyHandler.GetProperties)
		v1.GET("/properties/search", propertyHandler.SearchProperties)
		v1.GET("/properties/:id", propertyHandler.GetPropertyByID)

		v1.POST("/auth/register", authHandler.Register)
		v1.POST("/auth/login", authHandler.Login)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Authenticated routes
		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.GET("/auth/me", authHandler.GetMe)
			authRequired.PUT("/auth/updatedetails", authHandler.UpdateDetails)
			authRequired.PUT("/auth/updatepassword", authHandler.UpdatePassword)
			authRequired.POST("/auth/logout", authHandler.Logout)

			landlordOnly := middleware.RequireRole(models.RoleLandlord)
			authRequired.POST("/properties", landlordOnly, propertyHandler.CreateProperty)
			authRequired.PUT("/properties/:id", landlordOnly, propertyHandler.UpdateProperty)
			authRequired.DELETE("/properties/:id", landlordOnly, propertyHandler.DeleteProperty)
			authRequired.POST("/properties/:id/images", landlordOnly, propertyHandler.RequestImageUpload)
			authRequired.POST("/properties/:id/images/confirm", landlordOnly, propertyHandler.ConfirmImageUpload)
			authRequired.POST("/properties/:id/report", propertyHandler.ReportProperty)

			authRequired.POST("/messages", messageHandler.SendMessage)
			authRequired.GET("/messages", messageHandler.GetInbox)
			authRequired.GET("/messages/sent", messageHandler.GetSent)
			authRequired.GET("/messages/:id", messageHandler.GetMessageByID)
			authRequired.PUT("/messages/:id/read", messageHandler.MarkMessageRead)
			authRequired.PUT("/messages/:id/viewing", messageHandler.UpdateViewingStatus)

			tenantOnly := middleware.RequireRole(models.RoleTenant)
			authRequired.PUT("/users/favorites/:propertyId", tenantOnly, userHandler.AddFavorite)
			authRequired.DELETE("/users/favorites/:propertyId", tenantOnly, userHandler.RemoveFavorite)
		}
	}

	return r
}

// Package server assembles the HTTP router.
package server

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rusticroots/storefront-api/config"
	"github.com/rusticroots/storefront-api/controllers"
	"github.com/rusticroots/storefront-api/middleware"
	"github.com/rusticroots/storefront-api/models"
	"gorm.io/gorm"
)

// SetupRouter wires middleware and every /api route. Services are read from
// their package-level accessors, so they must be initialized first.
func SetupRouter(cfg *config.Config, metrics *middleware.Metrics) (*gin.Engine, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	sessionValidator, err := middleware.NewSessionValidator(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the session validator: %w", err)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	if metrics != nil {
		router.Use(metrics.Middleware())
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	loadUser := middleware.LoadCurrentUser(func() *gorm.DB { return config.GetDB() })
	authenticated := []gin.HandlerFunc{middleware.RequireSession(sessionValidator), loadUser}
	optional := []gin.HandlerFunc{middleware.OptionalSession(sessionValidator), loadUser}
	admin := chain(authenticated, middleware.RequireRole(models.RoleAdmin))

	api := router.Group("/api")
	{
		api.GET("/health", controllers.HealthCheck)
		api.GET("/database/status", controllers.DatabaseStatus)

		auth := api.Group("/auth")
		{
			auth.POST("/register", controllers.Register)
			auth.POST("/login", controllers.Login)
			auth.POST("/logout", controllers.Logout)
			auth.POST("/forgot-password", controllers.ForgotPassword)
			auth.POST("/reset-password", controllers.ResetPassword)
			auth.GET("/me", chain(authenticated, controllers.Me)...)
		}

		products := api.Group("/products")
		{
			products.GET("", controllers.ListProducts)
			products.GET("/featured", controllers.ListFeaturedProducts)
			products.GET("/:id", controllers.GetProduct)
			products.POST("", chain(admin, controllers.CreateProduct)...)
			products.PATCH("/:id", chain(admin, controllers.UpdateProduct)...)
			products.DELETE("/:id", chain(admin, controllers.DeleteProduct)...)
		}

		orders := api.Group("/orders", authenticated...)
		{
			orders.POST("", controllers.CreateOrder)
			orders.GET("", controllers.ListOrders)
			orders.GET("/:id", controllers.GetOrder)
			orders.PATCH("/:id/status", middleware.RequireRole(models.RoleAdmin), controllers.UpdateOrderStatus)
			orders.PATCH("/:id/notes", middleware.RequireRole(models.RoleAdmin), controllers.UpdateOrderNotes)
		}

		promotions := api.Group("/promotions")
		{
			promotions.GET("", chain(optional, controllers.ListPromotions)...)
			promotions.POST("/validate", chain(authenticated, controllers.ValidatePromotion)...)
			promotions.GET("/:id", chain(optional, controllers.GetPromotion)...)
			promotions.POST("", chain(admin, controllers.CreatePromotion)...)
			promotions.PUT("/:id", chain(admin, controllers.UpdatePromotion)...)
			promotions.DELETE("/:id", chain(admin, controllers.DeletePromotion)...)
		}

		users := api.Group("/users", authenticated...)
		{
			users.PUT("/me", controllers.UpdateMyProfile)
			users.GET("", middleware.RequireRole(models.RoleAdmin), controllers.ListUsers)
			users.POST("", middleware.RequireRole(models.RoleAdmin), controllers.CreateUser)
			users.PATCH("/:id", middleware.RequireRole(models.RoleAdmin), controllers.UpdateUser)
			users.DELETE("/:id", middleware.RequireRole(models.RoleAdmin), controllers.DeleteUser)
		}

		upload := api.Group("/upload", admin...)
		{
			upload.POST("/image", controllers.UploadImage)
			upload.DELETE("/image", controllers.DeleteImage)
		}

		api.POST("/contact", controllers.SubmitContact)
		api.POST("/cart/quote", chain(optional, controllers.QuoteCart)...)
	}

	return router, nil
}

// chain copies base so route handler lists never share a backing array
func chain(base []gin.HandlerFunc, handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(base)+len(handlers))
	out = append(out, base...)
	return append(out, handlers...)
}

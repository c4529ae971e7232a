package transport

import (
	"time"

	"github.com/postline/postline/internal/transport/middleware"

	"github.com/gin-gonic/gin"
)

func InitRoutes(postHandler *PostHandler, dispatchHandler *DispatchHandler, dispatchSecret string, requestTimeout time.Duration) *gin.Engine {

	router := gin.New()

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(requestTimeout))

	// API routes
	api := router.Group("/api/v1")
	{
		// Post routes (authoring surface, consumed by the dashboard UI)
		posts := api.Group("/posts")
		{
			posts.POST("", postHandler.CreatePost)
			posts.GET("", postHandler.GetUserPosts)
			posts.GET("/:id", postHandler.GetPost)
			posts.DELETE("/:id", postHandler.DeletePost)
		}

		// Dispatch routes, guarded by the shared secret
		dispatch := api.Group("/dispatch")
		dispatch.Use(middleware.DispatchAuth(dispatchSecret))
		{
			dispatch.POST("/run", dispatchHandler.RunTick)
			dispatch.POST("/schedule", dispatchHandler.Schedule)
			dispatch.GET("/deadletter", dispatchHandler.DeadLetters)
			dispatch.POST("/deadletter/pop", dispatchHandler.PopDeadLetter)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	return router
}

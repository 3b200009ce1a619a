package routes

import (
	"net/http"

	"ansr/handlers"
	"ansr/middleware"
	"ansr/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the API is origin-agnostic; auth happens at the HTTP layer
	},
}

func SetupRoutes(
	router *gin.Engine,
	authHandler *handlers.AuthHandler,
	roomHandler *handlers.RoomHandler,
	webhookHandler *handlers.WebhookHandler,
	testingHandler *handlers.TestingHandler,
	hub *services.Hub,
	roomService *services.RoomService,
	jwtSecret string,
	logger *zap.Logger,
) {
	// LINE platform webhook (authenticated by signature, not JWT)
	router.POST("/webhook", webhookHandler.HandleWebhook)

	api := router.Group("/api")
	{
		api.GET("/info", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"name": "ansr"})
		})

		auth := api.Group("/auth")
		{
			auth.GET("/authorize-url", authHandler.GetAuthorizeURL)
			auth.POST("/callback", authHandler.HandleCallback)
		}

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(jwtSecret))
		{
			protected.GET("/auth/profile", authHandler.GetProfile)

			rooms := protected.Group("/rooms")
			{
				rooms.POST("", roomHandler.CreateRoom)
				rooms.GET("", roomHandler.ListRecentRooms)
				rooms.GET("/:id", roomHandler.GetRoom)
				rooms.GET("/:id/pin", roomHandler.GetRoomPin)
				rooms.POST("/:id/questions", roomHandler.CreateQuestion)
				rooms.PATCH("/:id/questions/:qid", roomHandler.UpdateQuestion)
				rooms.GET("/:id/questions/:qid/answers", roomHandler.GetQuestionResults)
				rooms.PUT("/:id/active-question", roomHandler.SetActiveQuestion)
				rooms.GET("/:id/leaderboard", roomHandler.GetLeaderboard)
			}
		}

		// Only mounted in memory-store mode; see main.go
		if testingHandler != nil {
			api.POST("/testing/message", testingHandler.InjectMessage)
		}
	}

	// Room event stream for the host UI
	router.GET("/ws/rooms/:id", func(c *gin.Context) {
		roomID := c.Param("id")
		if _, err := roomService.GetRoom(c.Request.Context(), roomID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		hub.RegisterClient(conn, roomID)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

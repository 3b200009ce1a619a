package main

import (
	"ansr/config"
	"ansr/handlers"
	"ansr/line"
	"ansr/logger"
	"ansr/middleware"
	"ansr/models"
	"ansr/routes"
	"ansr/services"
	"ansr/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer log.Sync()

	// Initialize database (host accounts)
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Initialize the data store
	var dataStore store.Store
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("Using the in-memory store; all room data is lost on restart")
		dataStore = store.NewMemoryStore()
	default:
		dataStore = store.NewRedisStore(config.InitRedis(cfg), cfg.Environment)
	}

	// Initialize WebSocket hub
	hub := services.NewHub(log.Named("hub"))
	go hub.Run()

	// Initialize the LINE platform client
	lineClient := line.NewClient(cfg.LineAPIBaseURL, cfg.LineChannelAccessToken)
	richMenus := line.NewRichMenuCache(lineClient)

	// Initialize services
	pinService := services.NewPinService(dataStore)
	conversationService := services.NewConversationService(dataStore, pinService, hub, log.Named("conversation"))
	roomService := services.NewRoomService(dataStore, hub)
	authService := services.NewAuthService(db, lineClient, cfg.JWTSecret, cfg.LineLoginClientID, cfg.LineLoginClientSecret)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	roomHandler := handlers.NewRoomHandler(roomService, pinService, log.Named("rooms"))
	webhookHandler := handlers.NewWebhookHandler(conversationService, lineClient, richMenus, cfg.LineChannelSecret, log.Named("webhook"))

	// The injection endpoint never runs against a real store
	var testingHandler *handlers.TestingHandler
	if cfg.StoreDriver == "memory" {
		testingHandler = handlers.NewTestingHandler(conversationService, log.Named("testing"))
	}

	// Setup Gin router
	router := gin.Default()
	router.Use(middleware.CORS())

	routes.SetupRoutes(router, authHandler, roomHandler, webhookHandler, testingHandler,
		hub, roomService, cfg.JWTSecret, log)

	// Start server
	log.Info("Server starting", zap.String("port", cfg.Port))
	if err := router.Run(cfg.BindAddress + ":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}

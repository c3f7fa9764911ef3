package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"fable-server/internal/clients"
	"fable-server/internal/config"
	"fable-server/internal/contextstore"
	"fable-server/internal/handler"
	"fable-server/internal/logger"
	"fable-server/internal/middleware"
	"fable-server/internal/repository"
	"fable-server/internal/service"
)

func main() {
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	zap.ReplaceGlobals(zapLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mongoClient, db, err := repository.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(disconnectCtx); err != nil {
			zapLogger.Error("Failed to disconnect from MongoDB", zap.Error(err))
		}
	}()
	if err := repository.EnsureIndexes(ctx, db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to ensure MongoDB indexes", zap.Error(err))
	}

	storyRepo := repository.NewMongoStoryRepository(db, zapLogger)
	userRepo := repository.NewMongoUserRepository(db, zapLogger)

	textClient, err := clients.NewTextClient(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create text client", zap.Error(err))
	}
	imageClient := clients.NewImageClient(cfg, zapLogger)
	speechClient := clients.NewSpeechClient(cfg, zapLogger)

	contexts := contextstore.NewStore(cfg.ContextTTL, cfg.ContextCleanupInterval, zapLogger)

	authService := service.NewAuthService(userRepo, cfg, zapLogger)
	storyService := service.NewStoryService(storyRepo, textClient, imageClient, speechClient, contexts, zapLogger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.GetAllowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	prom := ginprometheus.NewPrometheus("fable")
	prom.Use(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handler.New(authService, storyService, cfg, zapLogger).RegisterRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		zapLogger.Info("Server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

package main

import (
	"ShadowStream/streamvault/config"
	"ShadowStream/streamvault/internal/bot"
	"ShadowStream/streamvault/internal/cache"
	"ShadowStream/streamvault/internal/database"
	"ShadowStream/streamvault/internal/ingest"
	"ShadowStream/streamvault/internal/routes"
	"ShadowStream/streamvault/internal/stream"
	"ShadowStream/streamvault/internal/utils"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:                "run",
	Short:              "Run the archive bot and streaming server.",
	DisableSuggestions: false,
	Run:                runApp,
}

func init() {
	config.SetFlagsFromConfig(runCmd)
}

func runApp(cmd *cobra.Command, args []string) {
	// Bootstrap logger until the real log level is known.
	utils.InitLogger(false, "info")
	log := utils.Logger
	mainLogger := log.Named("Main")
	mainLogger.Info("Starting StreamVault", zap.String("version", versionString))
	config.Load(log, cmd)

	utils.InitLogger(config.ValueOf.Dev, config.ValueOf.LogLevel)
	log = utils.Logger
	mainLogger = log.Named("Main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache.InitCache(log)

	db, err := database.Connect(ctx, log, config.ValueOf.MongoURL, config.ValueOf.MongoDBName)
	if err != nil {
		mainLogger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}

	client, err := bot.StartClient(log)
	if err != nil {
		mainLogger.Fatal("Failed to start Telegram client", zap.Error(err))
	}
	pool := bot.NewPool(client, log)
	streamer := stream.NewService(
		stream.NewTelegramSource(client, pool),
		log,
		time.Duration(config.ValueOf.GetFileTimeout)*time.Second,
	)
	ingest.Register(client, db, log)

	routes.Version = versionString
	router := getRouter(log)
	routes.Load(log, router, routes.Deps{
		Store:    db,
		Streamer: streamer,
		Ready:    bot.Ready,
		PoolSize: pool.Size,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.ValueOf.Port),
		Handler: router,
	}
	go func() {
		mainLogger.Sugar().Infof("Server is running at %s", config.ValueOf.Host)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go bot.Idle(ctx, client)

	<-ctx.Done()
	mainLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		mainLogger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	if err := pool.Close(); err != nil {
		mainLogger.Warn("Failed to close download sessions", zap.Error(err))
	}
	client.Stop()
	if err := db.Disconnect(shutdownCtx); err != nil {
		mainLogger.Warn("Failed to disconnect from MongoDB", zap.Error(err))
	}
	mainLogger.Info("Bye")
}

func getRouter(log *zap.Logger) *gin.Engine {
	if config.ValueOf.Dev {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Gin's request logger is noise at warn and above.
	var router *gin.Engine
	if config.ValueOf.LogLevel == "error" || config.ValueOf.LogLevel == "warn" {
		router = gin.New()
		router.Use(gin.Recovery())
		router.Use(gin.ErrorLogger())
	} else {
		router = gin.Default()
		router.Use(gin.ErrorLogger())
	}
	return router
}

package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"farmlink/platform/platform-backend/internal/config"
	"farmlink/platform/platform-backend/internal/database"
	"farmlink/platform/platform-backend/internal/notifications"
	"farmlink/platform/platform-backend/internal/notifications/websocket"
	"farmlink/platform/platform-backend/internal/projects"
	"farmlink/platform/platform-backend/internal/settlement"
	"farmlink/platform/platform-backend/internal/users"
	"farmlink/platform/platform-backend/pkg/storage"
)

// The settlement worker runs the deadline sweep outside the API process.
// Disable settlement in the API config when running it.
func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	gdb, err := database.OpenGorm(db)
	if err != nil {
		logger.Fatal("Failed to open gorm", zap.Error(err))
	}

	email := notifications.NewNoopEmailSender()
	if cfg.Email.Enabled {
		awsCfg, err := storage.LoadAWSConfig(ctx, storage.AWSOptions{
			Region:          cfg.Storage.S3Region,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
		})
		if err != nil {
			logger.Fatal("Failed to load AWS config", zap.Error(err))
		}
		email = notifications.NewSESEmailSender(awsCfg, cfg.Email.FromAddress)
	}

	userService := users.NewService(users.NewRepository(db), logger)
	store, err := notifications.NewGormStore(gdb)
	if err != nil {
		logger.Fatal("Failed to initialize notification store", zap.Error(err))
	}
	// No clients connect to the worker, so live pushes go nowhere. Users
	// still see the stored notifications.
	ws := websocket.NewManager(nil, logger)
	defer ws.Close()
	notifier := notifications.NewService(store, ws, email, userService, logger)

	projectService, err := projects.Setup(cfg, db, gdb, userService, notifier, nil, logger)
	if err != nil {
		logger.Fatal("Failed to initialize projects", zap.Error(err))
	}

	sweeper, err := settlement.NewSweeper(projectService, cfg.Settlement.Schedule, logger)
	if err != nil {
		logger.Fatal("Failed to configure settlement", zap.Error(err))
	}

	if *once {
		outcomes := sweeper.RunOnce(ctx)
		logger.Info("Settlement run complete", zap.Int("settled", len(outcomes)))
		return
	}

	if err := sweeper.Start(ctx); err != nil {
		logger.Fatal("Failed to start settlement", zap.Error(err))
	}
	logger.Info("Settlement worker running", zap.String("schedule", cfg.Settlement.Schedule))

	<-ctx.Done()
	logger.Info("Settlement worker shutting down")
	sweeper.Stop()
}

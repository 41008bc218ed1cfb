package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"farmlink/platform/platform-backend/internal/auth"
	"farmlink/platform/platform-backend/internal/config"
	"farmlink/platform/platform-backend/internal/dashboard"
	"farmlink/platform/platform-backend/internal/database"
	"farmlink/platform/platform-backend/internal/farmers"
	"farmlink/platform/platform-backend/internal/investments"
	"farmlink/platform/platform-backend/internal/middleware"
	"farmlink/platform/platform-backend/internal/notifications"
	"farmlink/platform/platform-backend/internal/notifications/websocket"
	"farmlink/platform/platform-backend/internal/projects"
	"farmlink/platform/platform-backend/internal/settlement"
	"farmlink/platform/platform-backend/internal/users"
	"farmlink/platform/platform-backend/pkg/pdf"
	"farmlink/platform/platform-backend/pkg/storage"
)

const dashboardTTL = 30 * time.Second

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.Logging.Level == "production" {
		if prod, err := zap.NewProduction(); err == nil {
			logger = prod
			defer prod.Sync()
		}
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, logger); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	gdb, err := database.OpenGorm(db)
	if err != nil {
		logger.Fatal("Failed to open gorm", zap.Error(err))
	}

	// Nonce store
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis is not reachable, logins will fail until it is", zap.Error(err))
	}
	cancelPing()

	// Object storage, IPFS and email
	awsCfg, err := storage.LoadAWSConfig(ctx, storage.AWSOptions{
		Region:          cfg.Storage.S3Region,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		Endpoint:        cfg.Storage.S3Endpoint,
	})
	if err != nil {
		logger.Fatal("Failed to load AWS config", zap.Error(err))
	}
	objects := storage.NewS3Client(awsCfg, cfg.Storage.S3Endpoint)
	ipfs := storage.NewIPFSClient(cfg.Storage.IPFSAPIURL, cfg.Storage.IPFSTimeout)

	email := notifications.NewNoopEmailSender()
	if cfg.Email.Enabled {
		email = notifications.NewSESEmailSender(awsCfg, cfg.Email.FromAddress)
	}

	// Users and notifications
	userService := users.NewService(users.NewRepository(db), logger)

	ws := websocket.NewManager(cfg.Server.AllowedOrigins, logger)
	defer ws.Close()
	store, err := notifications.NewGormStore(gdb)
	if err != nil {
		logger.Fatal("Failed to initialize notification store", zap.Error(err))
	}
	notifier := notifications.NewService(store, ws, email, userService, logger)

	// Auth
	tokens := middleware.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
	authService := auth.NewService(auth.NewRedisNonceStore(rdb), userService, &cfg.Security, tokens, cfg.Security.NonceTTL, logger)

	// Vetting
	farmerService := farmers.NewService(farmers.NewRepository(db), userService, objects, ipfs, notifier, farmers.Config{
		Bucket:          cfg.Storage.S3Bucket,
		ENSParent:       cfg.Security.ENSParent,
		MaxDocumentSize: cfg.Storage.MaxDocumentSize,
		MaxDocuments:    cfg.Storage.MaxDocuments,
	}, logger)

	// Projects, investments and dashboards
	cache := dashboard.NewCache(dashboardTTL)
	defer cache.Stop()
	projectService, err := projects.Setup(cfg, db, gdb, userService, notifier, cache, logger)
	if err != nil {
		logger.Fatal("Failed to initialize projects", zap.Error(err))
	}

	investmentService := investments.NewService(
		investments.NewRepository(db),
		projectService,
		userService,
		notifier,
		cache,
		pdf.NewGenerator(pdf.DefaultOptions()),
		logger,
	)
	aggregator := dashboard.NewAggregator(projectService, investmentService, cache, logger)

	// Router
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.CORS(cfg.Server.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if err := db.PingContext(c.Request.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":      status,
			"timestamp":   time.Now(),
			"connections": ws.GetConnectionCount(),
		})
	})

	api := router.Group("/api/v1")
	authed := api.Group("", middleware.RequireAuth(tokens))
	admin := authed.Group("/admin", middleware.RequireAdmin())
	{
		auth.NewHandler(authService, tokens, logger).RegisterRoutes(api)
		users.NewHandler(userService, authService, logger).RegisterRoutes(authed)
		farmers.NewHandler(farmerService, logger).RegisterRoutes(authed, admin)
		projects.NewHandler(projectService, logger).RegisterRoutes(api, authed, admin)
		investments.NewHandler(investmentService, logger).RegisterRoutes(authed)
		dashboard.NewHandler(aggregator, logger).RegisterRoutes(authed)
		notifications.NewHandler(notifier, ws, logger).RegisterRoutes(authed)
	}

	// Deadline settlement
	if cfg.Settlement.Enabled {
		sweeper, err := settlement.NewSweeper(projectService, cfg.Settlement.Schedule, logger)
		if err != nil {
			logger.Fatal("Failed to configure settlement", zap.Error(err))
		}
		if err := sweeper.Start(ctx); err != nil {
			logger.Fatal("Failed to start settlement", zap.Error(err))
		}
		defer sweeper.Stop()
	}

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()
	logger.Info("Server started", zap.String("addr", srv.Addr))

	// Graceful Shutdown
	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exiting")
}

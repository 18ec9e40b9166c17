package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/stocktech/marketplace-service/config"
	"github.com/stocktech/marketplace-service/internal/auth"
	"github.com/stocktech/marketplace-service/internal/avadmin"
	"github.com/stocktech/marketplace-service/pkg/broker"
	"github.com/stocktech/marketplace-service/pkg/cache"
	"github.com/stocktech/marketplace-service/pkg/logger"
	"github.com/stocktech/marketplace-service/pkg/postgres"
	"github.com/stocktech/marketplace-service/pkg/search"

	catH "github.com/stocktech/marketplace-service/internal/category/handler"
	catRepoPkg "github.com/stocktech/marketplace-service/internal/category/repository"
	catUCPkg "github.com/stocktech/marketplace-service/internal/category/usecase"

	prodH "github.com/stocktech/marketplace-service/internal/product/handler"
	prodRepoPkg "github.com/stocktech/marketplace-service/internal/product/repository"
	prodUCPkg "github.com/stocktech/marketplace-service/internal/product/usecase"

	txH "github.com/stocktech/marketplace-service/internal/transaction/handler"
	txListenerPkg "github.com/stocktech/marketplace-service/internal/transaction/listener"
	txRepoPkg "github.com/stocktech/marketplace-service/internal/transaction/repository"
	txUCPkg "github.com/stocktech/marketplace-service/internal/transaction/usecase"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}
	if cfg.Server.AppEnv == "dev" || cfg.Server.AppEnv == "development" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = "console"
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	// 3. Connect to Database
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	// 4. Initialize Redis
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// 5. Initialize Kafka
	kafkaProducer := broker.NewProducer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
	})
	defer kafkaProducer.Close()

	kafkaConsumer := broker.NewConsumer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer kafkaConsumer.Close()
	appLogger.Info("Connected to Kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))

	// 6. Initialize Elasticsearch. Search degrades to SQL when it is down,
	// so a failure here is not fatal.
	esClient, err := search.NewClient(&search.Config{
		Addresses: cfg.Elastic.Addresses,
		Username:  cfg.Elastic.Username,
		Password:  cfg.Elastic.Password,
	})
	if err != nil {
		appLogger.Warn("Could not connect to Elasticsearch, search falls back to SQL", zap.Error(err))
		esClient = nil
	} else {
		appLogger.Info("Connected to Elasticsearch", zap.Strings("addresses", cfg.Elastic.Addresses))
	}

	// 7. Account service gateway
	gateway := avadmin.NewGateway(&cfg.AvAdmin, appLogger)

	// 8. Repositories and use cases
	catRepo := catRepoPkg.NewPGRepository(db)
	prodRepo := prodRepoPkg.NewPGRepository(db)
	txRepo := txRepoPkg.NewPGRepository(db)

	catUC := catUCPkg.NewCategoryUseCase(catRepo, appLogger)
	prodUC := prodUCPkg.NewProductUseCase(prodRepo, gateway, redisClient, esClient, appLogger)
	txUC := txUCPkg.NewTransactionUseCase(txRepo, prodUC, gateway, kafkaProducer, appLogger)

	// 9. Kafka listener releases reserved stock for cancelled transactions
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	txListener := txListenerPkg.NewTransactionListener(kafkaConsumer, prodUC, appLogger)
	go txListener.Start(ctx)

	// 10. HTTP server
	app := fiber.New(fiber.Config{
		AppName:      "marketplace-service",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		status := fiber.Map{
			"status":  "healthy",
			"avadmin": gateway.HealthCheck(c.Context()),
		}
		if err := db.PingContext(c.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = false
		}
		return c.JSON(status)
	})

	api := app.Group("/api", auth.RequireModuleAccess(gateway, cfg.AvAdmin.Module))
	catH.NewCategoryHandler(catUC, appLogger).RegisterRoutes(api)
	prodH.NewProductHandler(prodUC, appLogger).RegisterRoutes(api)
	txH.NewTransactionHandler(txUC, appLogger).RegisterRoutes(api)

	go func() {
		appLogger.Info("Starting HTTP server", zap.String("port", cfg.Server.HTTPPort))
		if err := app.Listen(cfg.Server.HTTPPort); err != nil {
			appLogger.Fatal("HTTP server stopped", zap.Error(err))
		}
	}()

	// 11. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Forced shutdown", zap.Error(err))
	}
	appLogger.Info("Server exited")
}

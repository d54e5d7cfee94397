package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/skilltrade-app/SkillTradeBack/internal/cache"
	"github.com/skilltrade-app/SkillTradeBack/internal/config"
	"github.com/skilltrade-app/SkillTradeBack/internal/database"
	applogger "github.com/skilltrade-app/SkillTradeBack/internal/logger"
	"github.com/skilltrade-app/SkillTradeBack/internal/routes"
	"github.com/skilltrade-app/SkillTradeBack/internal/workers"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog := applogger.New()

	// 2. Connect to Database
	if cfg.DBUrl == "" {
		log.Fatal("DB_URL is required")
	}
	if err := database.ConnectDB(cfg.DBUrl); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB()
	appLog.Info("connected to postgres")

	// 3. Optional redis (balance read cache)
	var balanceCache cache.Cache
	if cfg.RedisURL != "" {
		if err := database.ConnectRedis(cfg.RedisURL); err != nil {
			appLog.WithError(err).Warn("redis unavailable, balance cache disabled")
		} else {
			defer database.CloseRedis()
			balanceCache = cache.NewRedisCache(database.RedisClient)
			appLog.Info("connected to redis")
		}
	}

	// 4. Setup Fiber
	app := fiber.New()

	// Middleware
	app.Use(cors.New())
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	sessionService := routes.RegisterRoutes(app, cfg, database.DB, balanceCache, appLog)

	// 5. Background reconciliation
	reconciler := &workers.EscrowReconcileWorker{
		Sessions:  sessionService,
		Interval:  cfg.ReconcileInterval,
		BatchSize: cfg.ReconcileBatchSize,
		Logger:    appLog,
	}
	if err := reconciler.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start reconciler: %v", err)
	}

	// 6. Start Server
	appLog.WithField("port", cfg.Port).Info("server starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/med-tracker/backend/internal/api/handlers"
	"github.com/med-tracker/backend/internal/cache/memory"
	"github.com/med-tracker/backend/internal/metrics"
	"github.com/med-tracker/backend/internal/middleware/ratelimit"
	"github.com/med-tracker/backend/internal/middleware/security"
	"github.com/med-tracker/backend/internal/middleware/validation"
	"github.com/med-tracker/backend/internal/query"
	"github.com/med-tracker/backend/internal/storage/sqlite"
	"github.com/med-tracker/backend/pkg/config"
	appLogger "github.com/med-tracker/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting medication tracker API server")

	metrics.Init()

	store, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to open drug store", zap.Error(err))
	}
	defer store.Close()

	initialized, err := store.Initialized()
	if err != nil {
		appLogger.Fatal("Failed to check drug store", zap.Error(err))
	}
	if !initialized {
		appLogger.Warn("Drug store is empty; queries will fail until the ingest command has been run",
			zap.String("path", cfg.SQLite.Path),
		)
	}

	engine := query.NewEngine(store, cfg.DrugBank.Aliases)

	// One cache instance per process, created here and torn down with it.
	responseCache := memory.New(memory.Config{
		QueryTTL:       cfg.Cache.QueryTTL,
		DrugTTL:        cfg.Cache.DrugTTL,
		InteractionTTL: cfg.Cache.InteractionTTL,
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
		Logger:               appLogger.Log,
	})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{Logger: appLogger.Log}))

	drugHandler := handlers.NewDrugHandler(engine, responseCache)
	interactionHandler := handlers.NewInteractionHandler(engine, responseCache)
	cacheHandler := handlers.NewCacheHandler(responseCache)

	api := app.Group("/api/v1")

	api.Get("/drugs/search", drugHandler.Search)
	api.Get("/drugs/:name", drugHandler.GetDetails)
	api.Get("/drugs/:name/food-interactions", drugHandler.GetFoodInteractions)
	api.Post("/interactions", interactionHandler.CheckInteractions)
	api.Get("/status", drugHandler.Status)

	api.Get("/cache/stats", cacheHandler.Stats)
	api.Post("/cache/clear", cacheHandler.Clear)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"productcatalog-api/internal/cache"
	"productcatalog-api/internal/config"
	"productcatalog-api/internal/handler"
	"productcatalog-api/internal/middleware"
	"productcatalog-api/internal/model"
	"productcatalog-api/internal/repository"
	"productcatalog-api/internal/router"
	"productcatalog-api/internal/service"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting product catalog API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	logger := log.Default()

	// Initialize product repository based on config
	repo, err := openRepository(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize %s product repository: %v", cfg.ProductDB.Type, err)
	}
	defer repo.Close()
	log.Printf("%s product repository initialized", cfg.ProductDB.Type)

	// Initialize cache store
	store, err := openStore(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize %s cache store: %v", cfg.Cache.Type, err)
	}
	defer store.Close()

	codec, err := cache.NewCodec(cfg.Cache.Codec)
	if err != nil {
		log.Fatalf("Invalid cache codec: %v", err)
	}

	lists := cache.NewListCache[model.ProductView](store, cache.ListCacheOptions{
		Namespace: service.ProductCacheNamespace,
		TTL:       cfg.Cache.ListTTL,
		Codec:     codec,
		Logger:    logger,
	})
	log.Printf("List cache initialized - store:%s, codec:%s, ttl:%s", cfg.Cache.Type, codec.Name(), cfg.Cache.ListTTL)

	// Initialize services
	productService := service.NewProductService(repo, lists)

	if cfg.ProductDB.Seed {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := productService.Seed(ctx); err != nil {
			log.Printf("Warning: seeding products failed: %v", err)
		}
		cancel()
	}

	warmup := service.NewWarmupScheduler(productService, service.WarmupConfig{
		Interval: cfg.Cache.WarmInterval,
	})
	warmup.Start()

	// Initialize handlers
	healthHandler := handler.New(cfg.App.Name, cfg.App.Version,
		handler.Dependency{Name: "database", Ping: repo.Ping},
		handler.Dependency{Name: "cache", Ping: store.Ping},
	)
	productHandler := handler.NewProductHandler(productService)
	adminHandler := handler.NewAdminHandler(productService, cfg.ProductDB.Type, cfg.Cache.Type)

	if len(cfg.Security.APIKeys) == 0 {
		log.Println("Warning: API_KEYS is empty, admin routes are unauthenticated")
	}

	// Create router
	r := router.New(router.Config{
		Handler:        healthHandler,
		ProductHandler: productHandler,
		AdminHandler:   adminHandler,
		AdminAuth:      middleware.NewAPIKeyMiddleware(cfg.Security.APIKeys),
		RateLimit:      middleware.NewRateLimiter(cfg.Security.RateLimitRPS, cfg.Security.RateLimitBurst),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	warmup.Stop()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}

func openRepository(cfg *config.Config, logger *log.Logger) (repository.ProductRepository, error) {
	opts := repository.Options{Logger: logger, LogSQL: cfg.ProductDB.LogSQL || cfg.App.Debug}
	db := cfg.ProductDB

	switch db.Type {
	case "mongodb":
		return repository.NewMongoDBProductRepository(db.MongoURI, db.MongoDatabase, db.MongoCollection, opts)
	case "postgres":
		return repository.NewPostgresProductRepository(db.PostgresDSN(), opts)
	case "mysql":
		return repository.NewMySQLProductRepository(repository.MySQLConfig{
			Host:     db.Host,
			Port:     db.DBPort(),
			Name:     db.Name,
			User:     db.DBUser(),
			Password: db.Password,
		}, opts)
	default: // sqlite
		return repository.NewSQLiteProductRepository(db.Path, opts)
	}
}

func openStore(cfg *config.Config, logger *log.Logger) (cache.Store, error) {
	if cfg.Cache.Type == "memory" {
		log.Println("Warning: in-memory cache store is not shared between instances")
		return cache.NewMemoryStore(cache.MemoryConfig{MaxCost: cfg.Cache.MemoryMaxMB << 20})
	}

	return cache.NewRedisStore(cache.RedisConfig{
		Addr:      cfg.Cache.RedisAddress(),
		Password:  cfg.Cache.RedisPassword,
		DB:        cfg.Cache.RedisDB,
		KeyPrefix: cfg.Cache.RedisKeyPrefix,
	}, logger)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/catalog-api/internal/api"
	"github.com/isdelr/catalog-api/internal/auth"
	"github.com/isdelr/catalog-api/internal/config"
	"github.com/isdelr/catalog-api/internal/database"
	"github.com/isdelr/catalog-api/internal/logger"
	"github.com/isdelr/catalog-api/internal/monitoring"
	"github.com/isdelr/catalog-api/internal/services"
	"github.com/isdelr/catalog-api/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Init(cfg.Environment, cfg.LogLevel)

	ctx := context.Background()

	// Set up database
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("database", cfg.DatabaseURL).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	var tokenService services.TokenServiceProvider
	switch cfg.RevocationBackend {
	case config.RevocationRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("Failed to connect to Redis")
		}
		tokenService = services.NewRedisTokenService(rdb)
	default:
		tokenService = services.NewTokenService(db)
	}

	eventService := services.NewEventService(db, hub)
	userService := services.NewUserService(db, auth.NewPasswordHasher(cfg.BcryptCost), eventService)
	productService := services.NewProductService(db, eventService)
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)

	// Set up and run the revocation janitor
	janitor, err := monitoring.NewJanitor(tokenService, cfg.TokenPurgeSchedule)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up token janitor")
	}
	janitor.Start()

	// Set up router
	router := api.NewRouter(api.Dependencies{
		Hub:            hub,
		UserService:    userService,
		ProductService: productService,
		EventService:   eventService,
		TokenService:   tokenService,
		Issuer:         issuer,
		Monitor:        monitoring.NewSystemMonitor(db),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		ExposeErrors:   cfg.IsDevelopment(),
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("env", cfg.Environment).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	janitor.Stop() // Stop the token janitor
	hub.Stop()     // Disconnect websocket clients

	log.Info().Msg("Server exiting")
}

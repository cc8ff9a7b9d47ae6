package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"comfyguardians/docs"
	"comfyguardians/internal/config"
	"comfyguardians/internal/database"
	"comfyguardians/internal/database/migration"
	handlers "comfyguardians/internal/http/handler"
	"comfyguardians/internal/http/middleware"
	"comfyguardians/internal/logger"
	"comfyguardians/internal/mailer"
	tracing "comfyguardians/internal/otel"
	"comfyguardians/internal/repository/postgres"
	"comfyguardians/internal/service"
	"comfyguardians/internal/storage"
)

// Attachments are the largest bodies accepted.
const maxBodyBytes = 10 << 20

// @title Comfy Guardians API
// @version 1.0
// @description Guardian authorization of child accounts and the psychologist chat.
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name apikey
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	loc := logger.LoadLocation(cfg.Timezone)
	log := logger.New(cfg.LogLevel, loc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracing")
	}

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := migration.EnsureMigrated(ctx, db, log, database.Host(cfg.Database)); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	// Attachments need an S3-compatible store; without one the chat still works.
	var objStore storage.Storage = storage.Disabled{}
	if cfg.MinIO.Enabled() {
		objStore, err = storage.NewMinIO(cfg.MinIO)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize object storage")
		}
	} else {
		log.Info().Str("event", "storage_disabled").Msg("MINIO_ENDPOINT not configured")
	}

	mail, err := mailer.NewSES(ctx, cfg.Mail, cfg.BaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize mailer")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	decisionMetrics, err := service.NewDecisionMetrics(reg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register metrics")
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register metrics")
	}

	// Initialize repositories and services
	profileRepo := postgres.NewProfilePostgres(db)
	guardianRepo := postgres.NewGuardianPostgres(db)
	chatRepo := postgres.NewChatPostgres(db)
	messageRepo := postgres.NewMessagePostgres(db)

	services := handlers.Services{
		Authorization: service.NewAuthorizationService(profileRepo, guardianRepo, mail, decisionMetrics, log),
		Chat:          service.NewChatService(chatRepo, messageRepo, profileRepo, objStore, log),
		Debug: service.NewDebugService(profileRepo, chatRepo, messageRepo, objStore, service.EnvironmentFlags{
			DatabaseURL: cfg.Database.URL != "",
			AnonKey:     cfg.AnonKey != "",
		}, log),
	}

	app := fiber.New(handlers.TrustProxies(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             maxBodyBytes,
		DisableStartupMessage: true,
	}, cfg.TrustedProxies, cfg.ProxyHeader))

	// Register global middleware
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger(log))
	app.Use(otelfiber.Middleware())
	app.Use(httpMetrics.Handler())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSAllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, apikey, X-Request-ID",
		AllowMethods: "GET,POST,PATCH,OPTIONS",
	}))

	// Register HTTP routes with injected services
	handlers.RegisterRoutes(app, db, services, handlers.RouteOptions{
		AnonKey:      cfg.AnonKey,
		RateLimitMax: cfg.RateLimitMax,
		Gatherer:     reg,
	})

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	go func() {
		<-ctx.Done()
		log.Info().Str("event", "shutdown").Msg("signal received, draining connections")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown")
		}
	}()

	addr := ":" + cfg.Port
	log.Info().Str("event", "server_start").Str("addr", addr).Send()

	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
}

package router

import (
	"context"
	"net/http"

	"app/internal/api/v1/handler"
	"app/internal/config"
	"app/internal/database"
	"app/internal/metrics"
	"app/internal/middleware"
	"app/internal/repository"
	"app/internal/service"
	"app/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New wires the application: database, object storage, services, handlers
// and middleware. The returned pool must be closed by the caller.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, error) {
	if err := database.RunMigrations(cfg.DBConnectionString); err != nil {
		return nil, nil, err
	}
	pool, err := database.Open(ctx, cfg.DBConnectionString)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	store, err := storage.NewS3Store(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	userRepo := repository.NewUserRepo(pool)
	imageRepo := repository.NewImageRepo(pool, logger)
	txRepo := repository.NewTransactionRepo(pool)

	generator := service.NewGeminiGenerator(cfg, logger)
	tryOnSvc := service.NewTryOnService(userRepo, imageRepo, generator, store, collector, logger)
	imageSvc := service.NewImageService(imageRepo, store, cfg, logger)
	billingSvc := service.NewBillingService(cfg, userRepo, txRepo, collector, logger)
	userSvc := service.NewUserService(userRepo, imageRepo, store, logger)

	tryOnHandler := handler.NewTryOnHandler(tryOnSvc, validate, cfg.Environment, logger)
	imageHandler := handler.NewImageHandler(imageSvc, validate, cfg.MaxUploadSizeBytes(), cfg.Environment, logger)
	billingHandler := handler.NewBillingHandler(billingSvc, validate, cfg.Environment, logger)
	userHandler := handler.NewUserHandler(userSvc, validate, cfg.Environment, logger)

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, logger)

	apiV1Mux := http.NewServeMux()
	tryOnHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	imageHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	billingHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	userHandler.RegisterRoutes(apiV1Mux, authMiddleware)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", apiV1Mux))
	mux.Handle("/metrics", metrics.Handler(registry))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	loggerMw := middleware.LoggerMiddleware(logger, collector)
	return loggerMw(c.Handler(mux)), pool, nil
}

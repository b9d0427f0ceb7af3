package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/blogbackend/backend/docs"
	"github.com/blogbackend/backend/internal/auth/middleware"
	"github.com/blogbackend/backend/internal/auth/service"
	"github.com/blogbackend/backend/internal/config"
	"github.com/blogbackend/backend/internal/handlers"
	"github.com/blogbackend/backend/internal/logger"
	sharedMiddleware "github.com/blogbackend/backend/internal/middleware"
	"github.com/blogbackend/backend/internal/repositories"
	"github.com/blogbackend/backend/internal/scheduler"
	"github.com/blogbackend/backend/internal/services"
	"github.com/blogbackend/backend/internal/storage"
	"github.com/blogbackend/backend/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// @title Blog API
// @version 1.0
// @description API for blog posts, tags and user authentication

// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting blog backend")

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := runMigrations(db); err != nil {
		logger.Logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	tokenService := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.TokenExpiry)

	// Uploads go to local disk, writes are retried on transient failures
	files := storage.NewLocalStorage(cfg.Uploads.Dir)
	blobs := storage.NewRetryingStorage(files, cfg.Uploads.WriteRetries, cfg.Uploads.RetryBackoff, logger.Logger)

	// Initialize repositories
	tagRepo := repositories.NewTagRepository(db)
	postRepo := repositories.NewPostRepository(db, tagRepo)
	userRepo := repositories.NewUserRepository(db, logger.Logger)

	// Scheduled orphan tag cleanup
	if cfg.Tags.PruneSchedule != "" {
		tagCleaner, err := scheduler.NewTagCleaner(tagRepo, cfg.Tags.PruneSchedule, logger.Logger)
		if err != nil {
			logger.Logger.Fatal("Failed to create tag cleaner", zap.Error(err))
		}
		tagCleaner.Start()
		defer tagCleaner.Stop()
	}

	// Initialize services
	authService := services.NewAuthService(userRepo, blobs, tokenService, cfg.Owner.Email, logger.Logger)
	if err := authService.EnsureOwner(context.Background()); err != nil {
		logger.Logger.Fatal("Failed to ensure owner account", zap.Error(err))
	}
	postService := services.NewPostService(postRepo, tagRepo, blobs, logger.Logger)

	// Initialize handlers
	validator := validation.New()
	authHandler := handlers.NewAuthHandler(authService, validator, tokenService.Expiry(), logger.Logger)
	postHandler := handlers.NewPostHandler(postService, validator, logger.Logger)
	mediaHandler := handlers.NewMediaHandler(files, logger.Logger)

	authMiddleware := middleware.AuthMiddleware(tokenService)
	loginLimiter := httprate.LimitByIP(5, time.Minute)

	// Setup router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(sharedMiddleware.RequestIDMiddleware)
	r.Use(sharedMiddleware.LoggerMiddleware(logger.Logger))
	r.Use(sharedMiddleware.RecoveryMiddleware(logger.Logger))
	r.Use(sharedMiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(httprate.LimitByIP(100, time.Minute))
	r.Use(sharedMiddleware.RequestSizeLimitMiddleware(cfg.Server.MaxRequestSize))

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://localhost:%d/swagger/doc.json", cfg.Server.Port)),
	))

	r.Route("/api", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authMiddleware, loginLimiter)
		postHandler.RegisterRoutes(r, authMiddleware)
		mediaHandler.RegisterRoutes(r)
	})

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Logger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Logger.Info("Server exited")
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	driver, err := mysql.WithInstance(db, &mysql.Config{
		MigrationsTable: "blog_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Running from cmd/ resolves migrations one level up
	migrationPath := "file://migrations"
	if _, err := os.Stat("migrations"); os.IsNotExist(err) {
		if _, err := os.Stat("../migrations"); err == nil {
			migrationPath = "file://../migrations"
		}
	}

	m, err := migrate.NewWithDatabaseInstance(migrationPath, "mysql", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

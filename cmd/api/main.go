package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "ans-review/docs" // This is for Swagger
	"ans-review/internal/auth"
	"ans-review/internal/config"
	"ans-review/internal/database"
	"ans-review/internal/handlers"
	"ans-review/internal/logger"
	"ans-review/internal/middleware"
	"ans-review/internal/notification"
	"ans-review/internal/repository"
	"ans-review/internal/scheduler"
	"ans-review/internal/service"

	httpSwagger "github.com/swaggo/http-swagger"
)

// @title ANS Review API
// @version 1.0
// @description Backend API for peer review integrity and gating of air navigation service providers

// @contact.name API Support
// @contact.email support@ansreview.aero

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logger
	logger.Setup(logger.Config{
		Level: cfg.Log.Level,
	})

	slog.Info("Starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"env", cfg.App.Env,
		"log_level", cfg.Log.Level,
	)

	// Initialize database
	db, err := database.New(&cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func(db *database.Database) {
		err := db.Close()
		if err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}(db)

	slog.Info("Database connection established")

	// Run database migrations
	migrator := database.NewMigrationExecutor(db.DB)
	if err := migrator.RunMigrations("./migrations"); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations completed")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.DB)
	orgRepo := repository.NewOrganizationRepository(db.DB)
	reviewerRepo := repository.NewReviewerRepository(db.DB)
	reviewRepo := repository.NewReviewRepository(db.DB)
	conflictRepo := repository.NewConflictRecordRepository(db.DB)
	overrideRepo := repository.NewConflictOverrideRepository(db.DB)
	checklistRepo := repository.NewChecklistRepository(db.DB)
	documentRepo := repository.NewDocumentRepository(db.DB)
	findingRepo := repository.NewFindingRepository(db.DB)
	capRepo := repository.NewCAPRepository(db.DB)
	escalationLogRepo := repository.NewEscalationLogRepository(db.DB)
	auditRepo := repository.NewAuditRepository(db.DB)

	// Initialize services
	authService := auth.NewService(&cfg.JWT)
	notificationService := notification.NewService(&cfg.Notification)
	eligibilityService := service.NewEligibilityService(reviewerRepo, conflictRepo, overrideRepo, userRepo, orgRepo, auditRepo, notificationService)
	checklistService := service.NewChecklistService(db.DB, checklistRepo, documentRepo, findingRepo, reviewRepo, userRepo, auditRepo)
	capService := service.NewCAPService(db.DB, capRepo, findingRepo, userRepo, auditRepo)
	escalationService := service.NewEscalationService(capRepo, orgRepo, userRepo, auditRepo)

	// Initialize scheduler
	schedulerService := scheduler.NewScheduler(escalationService, eligibilityService, notificationService, escalationLogRepo, reviewerRepo, &cfg.Scheduler)
	schedulerService.Start()
	defer schedulerService.Stop()

	// Initialize middleware
	authMw := middleware.NewAuthMiddleware(authService)
	rbacMw := middleware.NewRBACMiddleware(db.DB)
	corsMw := middleware.NewCORSMiddleware(&cfg.CORS)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit)
	auditMw := middleware.NewAuditMiddleware(db.DB)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, userRepo, auditMw)
	conflictHandler := handlers.NewConflictHandler(eligibilityService)
	checklistHandler := handlers.NewChecklistHandler(checklistService)
	capHandler := handlers.NewCAPHandler(capService)
	auditHandler := handlers.NewAuditHandler(auditRepo)

	// Setup router
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("/api/v1/auth/login", authHandler.Login)

	// Protected routes
	mux.Handle("/api/v1/auth/me", authMw.Authenticate(http.HandlerFunc(authHandler.Me)))

	// Conflict-of-interest routes
	mux.Handle("/api/v1/conflicts/check",
		authMw.Authenticate(http.HandlerFunc(conflictHandler.CheckReviewer)))
	mux.Handle("/api/v1/conflicts/check-team",
		authMw.Authenticate(http.HandlerFunc(conflictHandler.CheckTeam)))
	mux.Handle("/api/v1/conflicts/declare",
		authMw.Authenticate(http.HandlerFunc(conflictHandler.Declare)))
	mux.Handle("/api/v1/conflicts/sync",
		authMw.Authenticate(
			rbacMw.RequireAnyRole("coordinator", "admin")(
				http.HandlerFunc(conflictHandler.Sync),
			),
		),
	)
	mux.Handle("/api/v1/conflicts/overrides/create",
		authMw.Authenticate(http.HandlerFunc(conflictHandler.IssueOverride)))
	mux.Handle("/api/v1/conflicts/overrides/revoke",
		authMw.Authenticate(
			rbacMw.RequireAnyRole("coordinator", "admin")(
				http.HandlerFunc(conflictHandler.RevokeOverride),
			),
		),
	)

	// Checklist routes
	mux.Handle("/api/v1/reviews/checklist",
		authMw.Authenticate(http.HandlerFunc(checklistHandler.Get)))
	mux.Handle("/api/v1/reviews/checklist/status",
		authMw.Authenticate(http.HandlerFunc(checklistHandler.Status)))
	mux.Handle("/api/v1/reviews/checklist/initialize",
		authMw.Authenticate(
			rbacMw.RequireAnyRole("coordinator", "team_lead", "admin")(
				http.HandlerFunc(checklistHandler.Initialize),
			),
		),
	)
	mux.Handle("/api/v1/reviews/checklist/toggle",
		authMw.Authenticate(http.HandlerFunc(checklistHandler.Toggle)))
	mux.Handle("/api/v1/reviews/checklist/override",
		authMw.Authenticate(http.HandlerFunc(checklistHandler.Override)))
	mux.Handle("/api/v1/reviews/checklist/override/remove",
		authMw.Authenticate(http.HandlerFunc(checklistHandler.RemoveOverride)))
	mux.Handle("/api/v1/reviews/complete-fieldwork",
		authMw.Authenticate(
			rbacMw.RequireAnyRole("coordinator", "team_lead", "admin")(
				http.HandlerFunc(checklistHandler.CompleteFieldwork),
			),
		),
	)

	// Corrective action plan routes
	mux.Handle("/api/v1/caps/create",
		authMw.Authenticate(http.HandlerFunc(capHandler.Create)))
	mux.Handle("/api/v1/caps/get",
		authMw.Authenticate(http.HandlerFunc(capHandler.Get)))
	mux.Handle("/api/v1/caps/transition",
		authMw.Authenticate(http.HandlerFunc(capHandler.Transition)))
	mux.Handle("/api/v1/caps/deadline",
		authMw.Authenticate(http.HandlerFunc(capHandler.Deadline)))
	mux.Handle("/api/v1/caps/overdue",
		authMw.Authenticate(http.HandlerFunc(capHandler.Overdue)))
	mux.Handle("/api/v1/caps/due-soon",
		authMw.Authenticate(http.HandlerFunc(capHandler.DueSoon)))
	mux.Handle("/api/v1/caps/statistics",
		authMw.Authenticate(http.HandlerFunc(capHandler.Statistics)))
	mux.Handle("/api/v1/caps/milestones/add",
		authMw.Authenticate(http.HandlerFunc(capHandler.AddMilestone)))

	// Admin routes
	mux.Handle("/api/v1/admin/audit-logs",
		authMw.Authenticate(
			rbacMw.RequireRole("admin")(
				http.HandlerFunc(auditHandler.GetRecent),
			),
		),
	)

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.HealthCheck(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, err := w.Write([]byte(`{"status":"unhealthy","database":"error"}`))
			if err != nil {
				slog.Error("Failed to write health check response", "error", err)
				return
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(`{"status":"healthy","version":"` + cfg.App.Version + `"}`))
		if err != nil {
			slog.Error("Failed to write health check response", "error", err)
			return
		}
	})

	// Swagger documentation
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	// Apply global middleware
	handler := middleware.LoggingMiddleware(
		middleware.SecurityHeaders(
			corsMw.Handler(
				rateLimiter.Limit(mux),
			),
		),
	)

	// Create server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.TimeoutRead,
		WriteTimeout: cfg.Server.TimeoutWrite,
		IdleTimeout:  cfg.Server.TimeoutIdle,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped")
}

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

	"github.com/joho/godotenv"

	"fleet-expenses/internal/attachments"
	"fleet-expenses/internal/auth"
	"fleet-expenses/internal/config"
	"fleet-expenses/internal/handlers"
	"fleet-expenses/internal/models"
	"fleet-expenses/internal/storage"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.MustLoad(os.Getenv("CONFIG_PATH"))
	log := setupLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	db, err := storage.NewDB(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	files, err := attachments.NewStore(cfg.Attachments.Dir, cfg.Attachments.MaxBytes)
	if err != nil {
		return fmt.Errorf("attachment store: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.TokenConfig())
	if err != nil {
		return fmt.Errorf("token service: %w", err)
	}
	authSvc := auth.NewService(db, auth.NewBcryptHasher(0), tokens, log)

	if err := ensureAdmin(ctx, db, authSvc, cfg.Admin, log); err != nil {
		return err
	}

	h := handlers.NewHandlers(db, authSvc, files, log)
	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      setupRouter(h),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", slog.String("addr", srv.Addr), slog.String("env", cfg.Env))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		log.Info("server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// ensureAdmin creates the configured admin account on an empty database.
func ensureAdmin(ctx context.Context, db *storage.DB, authSvc *auth.Service, admin config.Admin, log *slog.Logger) error {
	if admin.Email == "" || admin.Password == "" {
		return nil
	}
	n, err := db.UserCount(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil
	}
	user, err := authSvc.CreateUser(ctx, auth.SignupInput{
		Email:           admin.Email,
		Password:        admin.Password,
		ConfirmPassword: admin.Password,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	log.Info("admin user created", slog.String("email", user.Email))
	return nil
}

var referenceRoutes = []struct {
	kind models.ReferenceKind
	path string
}{
	{models.KindBusinessUnit, "/api/v1/business-units"},
	{models.KindTruck, "/api/v1/trucks"},
	{models.KindTrailer, "/api/v1/trailers"},
	{models.KindFuelStation, "/api/v1/fuel-stations"},
}

func setupRouter(h *handlers.Handlers) http.Handler {
	mux := http.NewServeMux()

	public := func(pattern, route string, fn http.HandlerFunc) {
		mux.Handle(pattern, h.Instrument(route, fn))
	}
	protected := func(pattern, route string, fn http.HandlerFunc) {
		mux.Handle(pattern, h.Instrument(route, h.AuthMiddleware(fn)))
	}
	// collection registers both "/path" and "/path/".
	collection := func(method, path string, fn http.HandlerFunc) {
		protected(method+" "+path, path+"/", fn)
		protected(method+" "+path+"/{$}", path+"/", fn)
	}

	public("GET /{$}", "/", h.Root)
	public("GET /health", "/health", h.Health)
	mux.Handle("GET /metrics", h.Metrics())

	public("POST /auth/signup", "/auth/signup", h.Signup)
	public("POST /auth/login", "/auth/login", h.Login)
	public("GET /auth/me", "/auth/me", h.Me)
	public("POST /auth/security-questions", "/auth/security-questions", h.SetSecurityQuestions)
	public("PUT /auth/security-questions", "/auth/security-questions", h.SetSecurityQuestions)
	public("GET /auth/security-questions", "/auth/security-questions", h.GetSecurityQuestions)
	public("PUT /auth/security-questions/individual", "/auth/security-questions/individual", h.UpdateSecurityQuestion)
	public("POST /auth/password/change", "/auth/password/change", h.ChangePassword)
	public("POST /auth/password/reset-request", "/auth/password/reset-request", h.PasswordResetRequest)
	public("POST /auth/password/reset-verify", "/auth/password/reset-verify", h.PasswordResetVerify)

	collection(http.MethodPost, "/api/v1/expenses", h.CreateExpense)
	collection(http.MethodGet, "/api/v1/expenses", h.ListExpenses)
	protected("GET /api/v1/expenses/export", "/api/v1/expenses/export", h.ExportExpenses)
	protected("GET /api/v1/expenses/{id}", "/api/v1/expenses/{id}", h.GetExpense)
	protected("PUT /api/v1/expenses/{id}", "/api/v1/expenses/{id}", h.UpdateExpense)
	protected("DELETE /api/v1/expenses/{id}", "/api/v1/expenses/{id}", h.DeleteExpense)
	protected("POST /api/v1/expenses/{id}/attachment", "/api/v1/expenses/{id}/attachment", h.UploadAttachment)
	protected("GET /api/v1/expenses/{id}/attachment", "/api/v1/expenses/{id}/attachment", h.DownloadAttachment)
	protected("DELETE /api/v1/expenses/{id}/attachment", "/api/v1/expenses/{id}/attachment", h.DeleteAttachment)

	for _, ref := range referenceRoutes {
		item := ref.path + "/{id}"
		collection(http.MethodPost, ref.path, h.CreateReference(ref.kind))
		collection(http.MethodGet, ref.path, h.ListReferences(ref.kind))
		protected("GET "+item, item, h.GetReference(ref.kind))
		protected("PUT "+item, item, h.UpdateReference(ref.kind))
		protected("DELETE "+item, item, h.DeleteReference(ref.kind))
	}

	protected("GET /api/v1/reports/monthly-trend", "/api/v1/reports/monthly-trend", h.MonthlyTrend)
	protected("GET /api/v1/reports/category-breakdown", "/api/v1/reports/category-breakdown", h.CategoryBreakdown)

	return mux
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}

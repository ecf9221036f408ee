package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"truelens-inquiry-api/config"
	_ "truelens-inquiry-api/docs" // Important for Swagger
	v1 "truelens-inquiry-api/internal/delivery/http/v1"
	"truelens-inquiry-api/internal/usecase"
	"truelens-inquiry-api/pkg/email"
	"truelens-inquiry-api/pkg/logger"
	"truelens-inquiry-api/pkg/redis"
	"truelens-inquiry-api/pkg/security"
	"truelens-inquiry-api/pkg/validation"

	"github.com/gin-gonic/gin"
)

// @title           TrueLens Inquiry API
// @version         1.0
// @description     Contact form backend for the TrueLens International site.
// @host            localhost:8080
// @BasePath        /api
func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Setup Loggers
	logger.Init(cfg.LogLevel)
	logger.Log.Info("Starting inquiry API", "port", cfg.Port, "env", cfg.Environment)

	auditLogger := security.InitSecurityLogger("truelens-inquiry-api", cfg.Environment)
	defer auditLogger.Sync()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	// 3. Setup Redis (optional, rate limiting falls back to memory)
	var redisClient *redis.Client
	var healthRedis usecase.Pinger
	if cfg.UpstashRedisURL != "" {
		redisClient, err = redis.Connect(context.Background(), redis.Config{URL: cfg.UpstashRedisURL, Password: cfg.UpstashRedisPassword})
		if err != nil {
			logger.Log.Warn("Redis unavailable, using in-memory rate limiting", "error", err)
		} else {
			defer redisClient.Close()
		}
		healthRedis = redisClient
	}

	// 4. Setup Email
	transport := email.NewSMTPTransport(cfg)
	composer, err := email.NewComposer(cfg)
	if err != nil {
		logger.Log.Error("Failed to load email templates", "error", err)
		os.Exit(1)
	}
	logger.Log.Info("SMTP transport configured",
		"host", cfg.SMTPHost,
		"port", cfg.SMTPPort,
		"tls_mode", cfg.SMTPTLSMode,
		"inbox", security.MaskEmail(cfg.BusinessInbox()),
	)

	// 5. Setup UseCases
	inquiryUC := usecase.NewInquiryUsecase(transport, composer, validation.New(), cfg.SMTPTimeout,
		usecase.WithAuditLogger(auditLogger))
	healthUC := usecase.NewHealthUsecase(transport.IsConfigured(), healthRedis)

	// 6. Setup Router
	router := v1.NewRouter(v1.RouterDeps{
		InquiryUC: inquiryUC,
		HealthUC:  healthUC,
		Redis:     redisClient.Conn(),
		Config:    cfg,
	})

	// 7. Start Server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Error("Listen failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// In-flight submissions may still be waiting on SMTP
	ctx, cancel := context.WithTimeout(context.Background(), cfg.SMTPTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", "error", err)
	}

	logger.Log.Info("Server exiting")
}

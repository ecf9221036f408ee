package v1

import (
	"time"

	"truelens-inquiry-api/config"
	"truelens-inquiry-api/internal/delivery/http/middleware"
	"truelens-inquiry-api/internal/domain"
	"truelens-inquiry-api/internal/usecase"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type RouterDeps struct {
	InquiryUC domain.InquiryUsecase
	HealthUC  usecase.HealthUsecase
	Redis     *goredis.Client // nil keeps rate limiting in memory
	Config    *config.Config
}

func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	r := gin.New()

	// Global Middlewares
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins, cfg.IsDevelopment())) // CORS must be first!
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.RequestID())
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.CSRFMiddleware())
	r.Use(middleware.ErrorHandler(cfg.IsDevelopment()))

	api := r.Group("/api")

	NewHealthHandler(api, deps.HealthUC)

	contactLimit := middleware.RateLimitMiddleware(middleware.ContactRateLimitConfig(
		cfg.RateLimitContactThreshold,
		time.Duration(cfg.RateLimitWindowSeconds)*time.Second,
		deps.Redis,
	))
	NewInquiryHandler(api, deps.InquiryUC, contactLimit)

	// Swagger
	api.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"easyentrepreneur/internal/core/numerator"
	"easyentrepreneur/internal/infrastructure/http/v1/handlers"
	"easyentrepreneur/internal/infrastructure/http/v1/middleware"
	"easyentrepreneur/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	Documents handlers.DocumentService
	Clients   handlers.ClientService
	Quota     handlers.UsageReporter
	Health    handlers.Pinger

	// Idempotency enables Idempotency-Key handling on creations when set.
	Idempotency middleware.IdempotencyStore

	// Metrics records request latency when set; MetricsHandler serves /metrics.
	Metrics        middleware.RequestObserver
	MetricsHandler http.Handler

	// Mode is a gin mode; defaults to release.
	Mode string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	mode := cfg.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	router := gin.New()

	// Order matters: ErrorHandler must wrap Recovery so recovered panics are rendered.
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics))
	}
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	healthHandler := handlers.NewHealthHandler(cfg.Health)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTValidator))
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	RegisterDocumentRoutes(api.Group("/invoices"), handlers.NewDocumentHandler(base, cfg.Documents, numerator.KindInvoice))
	RegisterDocumentRoutes(api.Group("/quotes"), handlers.NewDocumentHandler(base, cfg.Documents, numerator.KindQuote))

	clientHandler := handlers.NewClientHandler(base, cfg.Clients)
	clientsGroup := api.Group("/clients")
	{
		clientsGroup.GET("", clientHandler.List)
		clientsGroup.POST("", clientHandler.Create)
		clientsGroup.GET("/:id", clientHandler.Get)
	}

	quotaHandler := handlers.NewQuotaHandler(base, cfg.Quota)
	api.GET("/quota", quotaHandler.Get)

	return router
}

package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/Armour007/docproc-backend/internal/logging"
	"github.com/Armour007/docproc-backend/internal/processor"
)

// RouterOptions configures the HTTP surface. Handlers read their
// collaborators from Configure.
type RouterOptions struct {
	Logger         *zap.Logger
	ServiceName    string
	Tracing        bool
	CORSOrigins    []string
	TrustedProxies []string
	BodyLimitBytes int64
	LoginRPM       int
	Redis          *redis.Client
}

// NewRouter builds the gin engine with middleware and all routes.
func NewRouter(opts RouterOptions) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.L()
	}
	if opts.BodyLimitBytes <= 0 {
		opts.BodyLimitBytes = 50 << 20
	}

	router := gin.New()
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		logger.Warn("failed to set trusted proxies", zap.Error(err))
	}
	if opts.Tracing {
		router.Use(otelgin.Middleware(opts.ServiceName))
	}
	router.Use(
		RequestIDMiddleware(),
		logging.GinLogger(logger),
		logging.GinRecovery(logger),
		MetricsMiddleware(),
		cors.New(corsConfig(opts.CORSOrigins)),
	)

	router.GET("/health", Health)
	router.GET("/healthz", func(c *gin.Context) { c.Status(200) })
	router.GET("/readyz", Readiness(opts.Redis))
	router.GET("/openapi.json", OpenAPIJSON)
	router.GET("/docs", SwaggerUI)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiRoutes := router.Group("/api")
	apiRoutes.Use(BodyLimitMiddleware(opts.BodyLimitBytes))
	apiRoutes.GET("/document-types", ListDocumentTypes)

	auth := apiRoutes.Group("/auth")
	{
		auth.POST("/login", RedisRateLimitMiddleware(opts.Redis, opts.LoginRPM), LoginUser)
		auth.POST("/logout", AuthMiddleware(), LogoutUser)
		auth.GET("/me", AuthMiddleware(), Me)
	}

	protected := apiRoutes.Group("")
	protected.Use(AuthMiddleware())
	{
		protected.GET("/history", GetUserHistory)
		protected.GET("/history/:sessionId", GetSessionHistory)
		protected.POST("/history/log", LogHistory)
		protected.GET("/audit/verify", VerifyAuditChain)

		protected.POST("/preprocess", ProcessHandler(processor.OpPreprocess))
		protected.POST("/autoindex", ProcessHandler(processor.OpAutoIndex))
		protected.POST("/classify", ProcessHandler(processor.OpClassify))
		protected.POST("/extract", ProcessHandler(processor.OpExtract))
		protected.POST("/extract-validate", ProcessHandler(processor.OpExtractValidate))
	}
	return router
}

func corsConfig(origins []string) cors.Config {
	config := cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) > 0 {
		config.AllowAllOrigins = false
		config.AllowOrigins = origins
		config.AllowCredentials = true
	}
	return config
}

package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"contract-backend/internal/contracts"
	"contract-backend/internal/newsletter"
	"contract-backend/internal/notifications"
	"contract-backend/internal/services/health"
	"contract-backend/internal/shared/config"
	"contract-backend/internal/shared/metrics"
	"contract-backend/internal/shared/server/middleware"
	"contract-backend/internal/shared/server/respond"
)

const rateLimitGroupAnalysis = "ANALYSIS"

// RouterDeps carries the handlers mounted by NewRouter.
type RouterDeps struct {
	Config               config.Config
	Health               *health.Service
	ContractsHandler     *contracts.Handler
	NotificationsHandler *notifications.Handler
	NewsletterHandler    *newsletter.Handler
	RateLimiter          *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(middleware.AuthOptions{
			PublicPrefixes: []string{
				"/api/v1/health",
				"/api/v1/newsletter/",
				"/api/v1/internal/",
				"/metrics",
			},
			AllowGuests: deps.Config.IsDevLike(),
		}),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				rateLimitGroupAnalysis: {Rate: 0.2, Burst: 5},
			},
			GroupFor: rateLimitGroup,
			Limiter:  deps.RateLimiter,
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		body, ok := deps.Health.Status(c.Request.Context())
		if !ok {
			respond.JSON(c, http.StatusServiceUnavailable, body)
			return
		}
		respond.OK(c, body)
	})

	if deps.ContractsHandler != nil {
		deps.ContractsHandler.RegisterRoutes(api)
	}
	if deps.NewsletterHandler != nil {
		deps.NewsletterHandler.RegisterRoutes(api)
	}
	if deps.NotificationsHandler != nil {
		internal := api.Group("/internal", middleware.InternalToken(deps.Config.InternalAPIToken))
		deps.NotificationsHandler.RegisterRoutes(internal)
	}

	return r
}

// rateLimitGroup puts the extractor-bound routes in their own bucket.
func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method != http.MethodPost {
		return ""
	}
	path := c.Request.URL.Path
	if path == "/api/v1/contracts/upload" ||
		(strings.HasPrefix(path, "/api/v1/contracts/") && strings.HasSuffix(path, "/reanalyze")) {
		return rateLimitGroupAnalysis
	}
	return ""
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}

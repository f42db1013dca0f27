package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/onboarding-api/internal/handler"
	"github.com/jwalitptl/onboarding-api/internal/handler/health"
	"github.com/jwalitptl/onboarding-api/internal/handler/prometheus"
	"github.com/jwalitptl/onboarding-api/internal/middleware"
)

// PublicHandler registers routes reachable without a token.
type PublicHandler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// Handler registers authenticated routes, guarding each with guard.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup, handler.Guard)
}

type Router struct {
	engine    *gin.Engine
	auth      *middleware.AuthMiddleware
	health    *health.Handler
	metrics   *prometheus.Handler
	public    []PublicHandler
	protected []Handler
}

type RouterConfig struct {
	Mode         string
	RateLimit    rate.Limit
	RateBurst    int
	MaxBodyBytes int64
	CORSConfig   middleware.CORSConfig
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	healthH *health.Handler,
	metricsH *prometheus.Handler,
	public []PublicHandler,
	protected []Handler,
	config RouterConfig,
) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	engine := gin.New()

	r := &Router{
		engine:    engine,
		auth:      auth,
		health:    healthH,
		metrics:   metricsH,
		public:    public,
		protected: protected,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		metricsH.Middleware(),
		middleware.ErrorHandler(),
		middleware.SecurityHeaders(middleware.SecurityConfig{HSTS: true, HSTSMaxAge: 31536000}),
		middleware.CORS(config.CORSConfig),
	)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.RateLimit,
		Burst: config.RateBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	if config.MaxBodyBytes > 0 {
		engine.Use(middleware.SizeLimit(config.MaxBodyBytes))
	}
	engine.Use(middleware.AuditContext())

	return r
}

func (r *Router) Setup() {
	r.health.RegisterRoutes(r.engine)
	r.engine.GET("/metrics", r.metrics.Handler())

	api := r.engine.Group("/api/v1")
	for _, h := range r.public {
		h.RegisterRoutes(api)
	}

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	for _, h := range r.protected {
		h.RegisterRoutes(protected, r.auth)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Package api exposes the service's HTTP surface: health, Prometheus
// metrics, an ops websocket feed, and read-only snapshot endpoints.
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bbt-251/geofence-attendance-core/internal/monitor"
	"github.com/bbt-251/geofence-attendance-core/internal/store"
)

// Dependencies bundles everything the router needs to serve requests.
type Dependencies struct {
	Projects *store.Projects
	Monitor  *monitor.Loop
	Feed     *Feed
	Registry *prometheus.Registry
	Logger   *zap.Logger
	RateSpec string // e.g. "100/minute", matching the teacher's config shape
}

// NewRouter builds the gin engine with all routes registered, mirroring the
// teacher's setupRouter: release mode, recovery middleware, a global rate
// limiter, then route registration.
func NewRouter(deps Dependencies) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(rateLimitMiddleware(deps.RateSpec, deps.Logger))

	r.GET("/health", handleHealth(deps))
	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}
	r.GET("/ws", handleWS(deps))
	r.GET("/api/employees/:uid/location", handleEmployeeLocation(deps))
	r.GET("/api/monitor/status", handleMonitorStatus(deps))

	return r
}

func handleHealth(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		healthy := deps.Projects.Healthy(c.Request.Context())
		all := deps.Projects.All()
		c.JSON(http.StatusOK, gin.H{
			"status":          "ok",
			"healthyProjects": len(healthy),
			"totalProjects":   len(all),
		})
	}
}

func handleEmployeeLocation(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.Param("uid")
		for _, st := range deps.Projects.All() {
			emp, err := st.GetEmployee(c.Request.Context(), uid)
			if err != nil || emp == nil {
				continue
			}
			c.JSON(http.StatusOK, emp.CurrentLocation)
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
	}
}

func handleMonitorStatus(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		running := false
		if deps.Monitor != nil {
			running = deps.Monitor.Running()
		}
		dashboardClients := 0
		if deps.Feed != nil {
			dashboardClients = deps.Feed.Count()
		}
		c.JSON(http.StatusOK, gin.H{
			"running":          running,
			"dashboardClients": dashboardClients,
			"checkedAt":        time.Now().UTC(),
		})
	}
}

// rateLimitMiddleware parses a "N/unit" spec string the same way the
// teacher's buildRateLimitMiddleware does, building a token-bucket limiter
// shared across all requests.
func rateLimitMiddleware(spec string, logger *zap.Logger) gin.HandlerFunc {
	limiter := parseRateLimit(spec, logger)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func parseRateLimit(spec string, logger *zap.Logger) *rate.Limiter {
	defaultLimiter := rate.NewLimiter(rate.Limit(50), 100)
	if spec == "" {
		return defaultLimiter
	}
	parts := strings.SplitN(spec, "/", 2)
	if len(parts) != 2 {
		if logger != nil {
			logger.Warn("api: invalid rate limit spec, using default", zap.String("spec", spec))
		}
		return defaultLimiter
	}
	num, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || num <= 0 {
		if logger != nil {
			logger.Warn("api: invalid rate limit count, using default", zap.String("spec", spec))
		}
		return defaultLimiter
	}
	var per time.Duration
	switch strings.ToLower(strings.TrimSpace(parts[1])) {
	case "second", "sec", "s":
		per = time.Second
	case "minute", "min", "m":
		per = time.Minute
	case "hour", "h":
		per = time.Hour
	default:
		if logger != nil {
			logger.Warn("api: invalid rate limit unit, using default", zap.String("spec", spec))
		}
		return defaultLimiter
	}
	every := per / time.Duration(num)
	return rate.NewLimiter(rate.Every(every), num)
}

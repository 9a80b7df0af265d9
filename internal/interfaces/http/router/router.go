// Package router 提供 HTTP 路由配置
package router

import (
	"codecraft-ai-api/internal/config"
	"codecraft-ai-api/internal/infrastructure/persistence/redis"
	"codecraft-ai-api/internal/interfaces/http/handler"
	"codecraft-ai-api/internal/interfaces/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router HTTP 路由器
type Router struct {
	engine *gin.Engine
	cfg    *config.Config

	healthHandler   *handler.HealthHandler
	generateHandler *handler.GenerateHandler
	projectHandler  *handler.ProjectHandler
	redisClient     *redis.Client
}

// New 创建新的路由器
func New(
	cfg *config.Config,
	healthHandler *handler.HealthHandler,
	generateHandler *handler.GenerateHandler,
	projectHandler *handler.ProjectHandler,
	redisClient *redis.Client,
) *Router {
	// 设置 Gin 模式
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	r := &Router{
		engine:          engine,
		cfg:             cfg,
		healthHandler:   healthHandler,
		generateHandler: generateHandler,
		projectHandler:  projectHandler,
		redisClient:     redisClient,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	// 基础中间件
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	// CORS 中间件
	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	// 追踪中间件
	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	// 指标中间件
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	// 系统端点
	r.engine.GET("/health", r.healthHandler.Health)
	r.engine.GET("/ready", r.healthHandler.Ready)
	r.engine.GET("/live", r.healthHandler.Live)

	// Prometheus 指标端点
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// 生成接口按客户端 IP 限流
	rateLimit := r.rateLimitMiddleware()

	// API v1 路由组
	v1 := r.engine.Group("/v1")
	{
		generate := v1.Group("/generate", rateLimit)
		{
			generate.POST("", r.generateHandler.Generate)
			generate.POST("/stream", r.generateHandler.GenerateStream)
		}

		projects := v1.Group("/projects")
		{
			projects.GET("/:pid/download", r.projectHandler.Download)
			projects.GET("/:pid/preview", r.projectHandler.Preview)
		}
	}
}

// rateLimitMiddleware 构建限流中间件，未配置 Redis 时不限流
func (r *Router) rateLimitMiddleware() gin.HandlerFunc {
	cfg := middleware.RateLimitConfig{
		Enabled:           r.cfg.Security.RateLimit.Enabled,
		RequestsPerSecond: r.cfg.Security.RateLimit.RequestsPerSecond,
		Burst:             r.cfg.Security.RateLimit.Burst,
	}
	if r.redisClient == nil {
		return middleware.NewRateLimitMiddleware(cfg, nil)
	}
	return middleware.NewRateLimitMiddleware(cfg, r.redisClient.Redis())
}

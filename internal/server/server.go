package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/wadesk/internal/clock"
	"github.com/smallbiznis/wadesk/internal/config"
	"github.com/smallbiznis/wadesk/internal/observability"
	obslogger "github.com/smallbiznis/wadesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/wadesk/internal/observability/metrics"
	obstracing "github.com/smallbiznis/wadesk/internal/observability/tracing"
	"github.com/smallbiznis/wadesk/internal/ratelimit"
	usagedomain "github.com/smallbiznis/wadesk/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

type EngineParams struct {
	fx.In

	ObsConfig   observability.Config
	Log         *zap.Logger
	HTTPMetrics *obsmetrics.HTTPMetrics `optional:"true"`
}

func NewEngine(p EngineParams) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(p.Log, obslogger.MiddlewareConfig{
		Debug:           p.ObsConfig.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(p.HTTPMetrics.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	log      *zap.Logger
	clock    clock.Clock
	calendar usagedomain.Calendar
	usagesvc usagedomain.Service
	limiter  *ratelimit.AggregationLimiter
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Cfg      config.Config
	Log      *zap.Logger
	Clock    clock.Clock
	Calendar usagedomain.Calendar
	Usagesvc usagedomain.Service
	Limiter  *ratelimit.AggregationLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:   p.Gin,
		cfg:      p.Cfg,
		log:      p.Log.Named("http.server"),
		clock:    p.Clock,
		calendar: p.Calendar,
		usagesvc: p.Usagesvc,
		limiter:  p.Limiter,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	api.GET("/plans", s.ListPlans)

	// -------- Usage --------
	tenant := api.Group("/tenants/:tenant_id", TenantContext())
	tenant.GET("/usage", s.GetUsageStatistics)
	tenant.GET("/usage/current", s.GetCurrentUsage)
	tenant.GET("/usage/report", s.GenerateUsageReport)
	tenant.GET("/usage/quota", s.CheckQuota)
	tenant.POST("/usage/daily", s.AggregateRateLimit(), s.RecordDailyUsage)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

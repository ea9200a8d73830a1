package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	catalogdomain "github.com/smallbiznis/animegate/internal/catalog/domain"
	"github.com/smallbiznis/animegate/internal/config"
	"github.com/smallbiznis/animegate/internal/observability"
	obsmiddleware "github.com/smallbiznis/animegate/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/animegate/internal/observability/metrics"
	obstracing "github.com/smallbiznis/animegate/internal/observability/tracing"
	"github.com/smallbiznis/animegate/internal/telegram"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
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
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
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
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	catalogSvc catalogdomain.Service
	intake     *telegram.Intake
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	CatalogSvc catalogdomain.Service
	Intake     *telegram.Intake `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http"),
		catalogSvc: p.CatalogSvc,
		intake:     p.Intake,
	}

	svc.RegisterWebhookRoutes()
	svc.RegisterAPIRoutes()

	return svc
}

func (s *Server) RegisterWebhookRoutes() {
	// polling deployments never expose the intake route
	if !s.cfg.IsWebhook() || s.intake == nil {
		return
	}
	s.engine.POST(telegram.WebhookPath+"/:secret", s.TelegramWebhook)
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/titles", s.ListTitles)
		api.GET("/titles/:slug", s.GetTitle)
		api.GET("/stats", s.CatalogStats)
	}
}

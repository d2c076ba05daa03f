package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/medsera/returns/internal/audit"
	auditdomain "github.com/medsera/returns/internal/audit/domain"
	"github.com/medsera/returns/internal/config"
	"github.com/medsera/returns/internal/gateway"
	"github.com/medsera/returns/internal/inventory"
	"github.com/medsera/returns/internal/observability"
	obsmiddleware "github.com/medsera/returns/internal/observability/logger"
	obsmetrics "github.com/medsera/returns/internal/observability/metrics"
	obstracing "github.com/medsera/returns/internal/observability/tracing"
	"github.com/medsera/returns/internal/order"
	"github.com/medsera/returns/internal/ratelimit"
	"github.com/medsera/returns/internal/refund"
	refunddomain "github.com/medsera/returns/internal/refund/domain"
	"github.com/medsera/returns/internal/returns"
	returnsdomain "github.com/medsera/returns/internal/returns/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	order.Module,
	inventory.Module,
	gateway.Module,
	ratelimit.Module,
	returns.Module,
	refund.Module,
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

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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
	engine     *gin.Engine
	cfg        config.Config
	db         *gorm.DB
	genID      *snowflake.Node
	returnsSvc returnsdomain.Service
	refundSvc  refunddomain.Service
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
	limiter    *ratelimit.IngressLimiter
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	GenID      *snowflake.Node
	ReturnsSvc returnsdomain.Service
	RefundSvc  refunddomain.Service
	AuditSvc   auditdomain.Service
	ObsMetrics *obsmetrics.Metrics           `optional:"true"`
	Limiter    *ratelimit.IngressLimiter     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		genID:      p.GenID,
		returnsSvc: p.ReturnsSvc,
		refundSvc:  p.RefundSvc,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
		limiter:    p.Limiter,
	}

	svc.registerAPIRoutes()
	svc.registerWebhookRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Returns --------
	api.POST("/returns", s.CreateReturn)
	api.GET("/returns", s.ListReturns)
	api.GET("/returns/:id", s.GetReturn)
	api.PATCH("/returns/:id/status", s.UpdateReturnStatus)
	api.POST("/returns/:id/inspections", s.SubmitInspection)

	// -------- Refunds --------
	api.POST("/refunds", s.InitiateRefund)
	api.GET("/refunds", s.ListRefunds)
}

func (s *Server) registerWebhookRoutes() {
	webhooks := s.engine.Group("/webhooks")

	webhooks.POST("/courier", s.CourierWebhookRateLimit(), s.HandleCourierWebhook)
}

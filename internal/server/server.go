package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	accountlinkdomain "github.com/smallbiznis/groupledger/internal/accountlink/domain"
	auditdomain "github.com/smallbiznis/groupledger/internal/audit/domain"
	bridgedomain "github.com/smallbiznis/groupledger/internal/bridge/domain"
	"github.com/smallbiznis/groupledger/internal/clock"
	"github.com/smallbiznis/groupledger/internal/config"
	cycledomain "github.com/smallbiznis/groupledger/internal/cycle/domain"
	ledgerdomain "github.com/smallbiznis/groupledger/internal/ledger/domain"
	"github.com/smallbiznis/groupledger/internal/observability/logger"
	"github.com/smallbiznis/groupledger/internal/observability/metrics"
	"github.com/smallbiznis/groupledger/internal/observability/tracing"
	shareoutdomain "github.com/smallbiznis/groupledger/internal/shareout/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)

type Params struct {
	fx.In

	Config   config.Config
	Log      *zap.Logger
	DB       *gorm.DB
	Clock    clock.Clock
	Registry *prometheus.Registry `optional:"true"`
	Metrics  *metrics.Metrics     `optional:"true"`

	Ledger   ledgerdomain.Service
	Links    accountlinkdomain.Service
	Bridge   bridgedomain.Service
	Cycles   cycledomain.Service
	Shareout shareoutdomain.Service
	Audit    auditdomain.Service
}

type Server struct {
	engine  *gin.Engine
	cfg     config.Config
	log     *zap.Logger
	db      *gorm.DB
	limiter *rateLimiter

	ledgerSvc   ledgerdomain.Service
	linkSvc     accountlinkdomain.Service
	bridgeSvc   bridgedomain.Service
	cycleSvc    cycledomain.Service
	shareoutSvc shareoutdomain.Service
	auditSvc    auditdomain.Service
}

func NewServer(p Params) *Server {
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{SkipPaths: []string{"/healthz", p.Config.Metrics.Path}}))
	engine.Use(tracing.GinMiddleware())
	engine.Use(metrics.GinMiddleware(p.Metrics))

	s := &Server{
		engine:      engine,
		cfg:         p.Config,
		log:         p.Log.Named("http.server"),
		db:          p.DB,
		limiter:     newRateLimiter(p.Config.HTTP.WriteRateLimit, p.Config.HTTP.WriteRateWindow, p.Clock),
		ledgerSvc:   p.Ledger,
		linkSvc:     p.Links,
		bridgeSvc:   p.Bridge,
		cycleSvc:    p.Cycles,
		shareoutSvc: p.Shareout,
		auditSvc:    p.Audit,
	}
	s.registerRoutes(p.Registry)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes(registry *prometheus.Registry) {
	s.engine.GET("/healthz", s.Health)
	if s.cfg.Metrics.Enabled && registry != nil {
		path := s.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		s.engine.GET(path, gin.WrapH(metrics.Handler(registry)))
	}

	api := s.engine.Group("/api", s.TenantRequired(), s.AuditContext(), s.WriteRateLimit())

	api.POST("/accounts", s.CreateAccount)
	api.GET("/accounts", s.ListAccounts)
	api.GET("/accounts/:id", s.GetAccount)
	api.GET("/accounts/:id/entries", s.ListEntries)
	api.POST("/accounts/:id/recalculate", s.RecalculateBalance)
	api.POST("/reconcile", s.ReconcileTenant)

	api.POST("/entries", s.CreateEntry)
	api.POST("/entries/:id/approve", s.ApproveEntry)
	api.POST("/entries/:id/reject", s.RejectEntry)
	api.POST("/entries/:id/cancel", s.CancelEntry)

	api.PUT("/account-links", s.LinkAccount)
	api.GET("/account-links", s.ListAccountLinks)

	api.POST("/member-events", s.PostMemberEvent)

	api.POST("/cycles", s.OpenCycle)
	api.GET("/cycles", s.ListCycles)
	api.GET("/cycles/:id", s.GetCycle)
	api.POST("/cycles/:id/close-window", s.CloseCycleWindow)
	api.POST("/cycles/:id/totals", s.CalculateCycleTotals)
	api.GET("/cycles/:id/integrity", s.ValidateCycleIntegrity)
	api.POST("/cycles/:id/archive", s.ArchiveCycle)
	api.POST("/cycles/:id/contributions", s.RecordContribution)
	api.POST("/contributions/:id/approve", s.ApproveContribution)

	api.POST("/cycles/:id/settle", s.SettleCycle)
	api.POST("/cycles/:id/settle/resume", s.ResumeSettlement)
	api.GET("/cycles/:id/allocations", s.ListAllocations)
	api.GET("/cycles/:id/members/:member_id/allocation", s.CalculateMemberAllocation)
	api.POST("/allocations/:id/approve", s.ApproveAllocation)
	api.POST("/allocations/:id/pay", s.MarkAllocationPaid)
	api.POST("/allocations/:id/cancel", s.CancelAllocation)

	api.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) Health(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RunHTTP serves the router for the life of the fx app.
func RunHTTP(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:    s.cfg.HTTP.Addr,
		Handler: s.engine,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			listener, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			go func() {
				if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			s.log.Info("http server listening", zap.String("addr", srv.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if s.cfg.HTTP.ShutdownTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, s.cfg.HTTP.ShutdownTimeout)
				defer cancel()
			}
			return srv.Shutdown(ctx)
		},
	})
}

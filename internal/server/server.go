package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/creditera/cobranza/internal/config"
	"github.com/creditera/cobranza/internal/ledger"
	ledgerdomain "github.com/creditera/cobranza/internal/ledger/domain"
	"github.com/creditera/cobranza/internal/loan"
	loandomain "github.com/creditera/cobranza/internal/loan/domain"
	"github.com/creditera/cobranza/internal/lock"
	"github.com/creditera/cobranza/internal/observability"
	obsmiddleware "github.com/creditera/cobranza/internal/observability/logger"
	obsmetrics "github.com/creditera/cobranza/internal/observability/metrics"
	"github.com/creditera/cobranza/internal/payment"
	paymentdomain "github.com/creditera/cobranza/internal/payment/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	loan.Module,
	ledger.Module,
	payment.Module,
	lock.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
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
	loanSvc    loandomain.Service
	paymentSvc paymentdomain.Service
	ledgerSvc  ledgerdomain.Service
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	GenID      *snowflake.Node
	LoanSvc    loandomain.Service
	PaymentSvc paymentdomain.Service
	LedgerSvc  ledgerdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		genID:      p.GenID,
		loanSvc:    p.LoanSvc,
		paymentSvc: p.PaymentSvc,
		ledgerSvc:  p.LedgerSvc,
		obsMetrics: p.ObsMetrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	loans := v1.Group("/loans")
	{
		loans.POST("", s.CreateLoan)
		loans.GET("", s.ListLoans)
		loans.GET("/:loanId", s.GetLoan)
		loans.GET("/:loanId/installments", s.ListInstallments)
		loans.GET("/:loanId/payments", s.ListPayments)
		loans.POST("/:loanId/payments", s.ProcessPayment)
		loans.POST("/:loanId/approve", s.ApproveLoan)
		loans.POST("/:loanId/deliver", s.DeliverLoan)
		loans.POST("/:loanId/write-off", s.WriteOffLoan)
	}

	v1.POST("/penalties/assess", s.AssessPenalties)

	ledgerGroup := v1.Group("/ledger")
	{
		ledgerGroup.GET("/trial-balance", s.TrialBalance)
		ledgerGroup.GET("/entries/:entryId/lines", s.ListJournalLines)
		ledgerGroup.POST("/entries/:entryId/reverse", s.ReverseJournalEntry)
	}
}

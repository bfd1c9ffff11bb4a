package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nordbroker/octasure/internal/config"
	"github.com/nordbroker/octasure/internal/insurer/adapters"
	obsmiddleware "github.com/nordbroker/octasure/internal/observability/logger"
	"github.com/nordbroker/octasure/internal/payment/checkout"
	"github.com/nordbroker/octasure/internal/payment/webhook"
	"github.com/nordbroker/octasure/internal/quote"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine, NewServer),
	fx.Invoke(registerRoutes, run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(log.Named("http")))
	return r
}

type Params struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	Registry   *adapters.Registry
	Quotes     *quote.Service
	Checkout   *checkout.Service
	Reconciler *webhook.Service
	PromReg    *prometheus.Registry
	Log        *zap.Logger
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	db         *gorm.DB
	registry   *adapters.Registry
	quotes     *quote.Service
	checkout   *checkout.Service
	reconciler *webhook.Service
	promReg    *prometheus.Registry
	log        *zap.Logger
}

func NewServer(p Params) *Server {
	return &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		registry:   p.Registry,
		quotes:     p.Quotes,
		checkout:   p.Checkout,
		reconciler: p.Reconciler,
		promReg:    p.PromReg,
		log:        p.Log.Named("server"),
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func registerRoutes(s *Server) {
	s.engine.GET("/healthz", s.Healthz)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{})))

	api := s.engine.Group("/api")

	api.POST("/auto", s.QuoteAll)
	api.POST("/auto/:provider", s.QuoteOne)

	api.POST("/payment/create", s.CreateCheckout)
	api.GET("/payment/callback", s.PaymentCallback)
}

func run(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Fatal("http server failed", zap.Error(err))
				}
			}()
			s.log.Info("http server listening", zap.String("addr", srv.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

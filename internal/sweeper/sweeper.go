package sweeper

import (
	"context"
	"time"

	"github.com/nordbroker/octasure/internal/clock"
	"github.com/nordbroker/octasure/internal/config"
	"github.com/nordbroker/octasure/internal/order/repository"
	"github.com/nordbroker/octasure/internal/payment/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config     config.Config
	Orders     *repository.Repository
	Reconciler *webhook.Service
	Clock      clock.Clock
	Log        *zap.Logger
}

// Sweeper periodically resyncs orders stuck in checkout_initiated, so a
// lost callback cannot strand a paid customer.
type Sweeper struct {
	orders     *repository.Repository
	reconciler *webhook.Service
	clock      clock.Clock
	log        *zap.Logger

	interval  time.Duration
	minAge    time.Duration
	batchSize int

	cancel context.CancelFunc
	done   chan struct{}
}

func New(p Params) *Sweeper {
	interval := p.Config.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	minAge := p.Config.SweepMinAge
	if minAge <= 0 {
		minAge = 15 * time.Minute
	}
	batchSize := p.Config.SweepBatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Sweeper{
		orders:     p.Orders,
		reconciler: p.Reconciler,
		clock:      p.Clock,
		log:        p.Log.Named("sweeper"),
		interval:   interval,
		minAge:     minAge,
		batchSize:  batchSize,
	}
}

func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
	s.log.Info("sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("min_age", s.minAge),
	)
}

func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Sweep runs one pass. Per-order failures are logged and skipped; the
// next pass picks the order up again.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := s.clock.Now().Add(-s.minAge)
	stale, err := s.orders.FindStaleCheckouts(ctx, cutoff, s.batchSize)
	if err != nil {
		s.log.Error("stale checkout query failed", zap.Error(err))
		return
	}
	if len(stale) == 0 {
		return
	}

	s.log.Info("sweeping stale checkouts", zap.Int("count", len(stale)))
	for i := range stale {
		if ctx.Err() != nil {
			return
		}
		order := &stale[i]
		if err := s.reconciler.Resync(ctx, order); err != nil {
			s.log.Warn("stale checkout resync failed",
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
		}
	}
}

var Module = fx.Module("sweeper",
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, s *Sweeper) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error { s.Start(); return nil },
			OnStop:  func(context.Context) error { s.Stop(); return nil },
		})
	}),
)

package quote

import (
	"context"
	"sync"
	"time"

	"github.com/nordbroker/octasure/internal/insurer/adapters"
	"github.com/nordbroker/octasure/internal/insurer/domain"
	obsmetrics "github.com/nordbroker/octasure/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Registry *adapters.Registry
	Log      *zap.Logger
	Cache    Cache               `optional:"true"`
	Metrics  *obsmetrics.Metrics `optional:"true"`
	Timeout  time.Duration       `name:"quote_timeout"`
}

// Service fans a pricing request out to the selected adapters and merges
// the successes. It is a pure read-through: no persistence, no retries.
type Service struct {
	registry *adapters.Registry
	log      *zap.Logger
	cache    Cache
	metrics  *obsmetrics.Metrics
	timeout  time.Duration
}

func NewService(p Params) *Service {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		registry: p.Registry,
		log:      p.Log.Named("quote.service"),
		cache:    p.Cache,
		metrics:  p.Metrics,
		timeout:  timeout,
	}
}

type outcome struct {
	quote   *domain.Quote
	failure *domain.ProviderError
}

// Quotes prices a vehicle with every requested provider concurrently,
// each call under its own timeout. Results keep the order of the
// requested provider list (the configured order when providers is empty);
// completion order never leaks to callers.
//
// A single requested provider's failure propagates as that provider's
// error. When several providers were asked and every one of them failed,
// an AggregateError lists each failure. Providers that succeed with an
// empty premium table still count as successes: "no offers today" is a
// valid answer.
func (s *Service) Quotes(ctx context.Context, vehicle domain.Vehicle, providers []string) ([]domain.Quote, error) {
	if len(providers) == 0 {
		providers = s.registry.Providers()
	}

	selected := make([]domain.Adapter, len(providers))
	for i, provider := range providers {
		adapter, err := s.registry.Get(provider)
		if err != nil {
			return nil, err
		}
		selected[i] = adapter
	}

	outcomes := make([]outcome, len(selected))
	var wg sync.WaitGroup
	for i, adapter := range selected {
		wg.Add(1)
		go func(i int, adapter domain.Adapter) {
			defer wg.Done()
			outcomes[i] = s.price(ctx, adapter, vehicle)
		}(i, adapter)
	}
	wg.Wait()

	quotes := make([]domain.Quote, 0, len(outcomes))
	failures := make([]*domain.ProviderError, 0)
	for _, result := range outcomes {
		if result.failure != nil {
			failures = append(failures, result.failure)
			continue
		}
		quotes = append(quotes, *result.quote)
	}

	if len(quotes) == 0 && len(failures) > 0 {
		if len(providers) == 1 {
			return nil, failures[0]
		}
		return nil, &domain.AggregateError{Failures: failures}
	}
	return quotes, nil
}

func (s *Service) price(ctx context.Context, adapter domain.Adapter, vehicle domain.Vehicle) outcome {
	provider := adapter.Provider()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, provider, vehicle); ok {
			s.metrics.IncQuoteServed(provider)
			return outcome{quote: cached}
		}
	}

	quote, err := adapter.GetPricing(ctx, vehicle)
	if err != nil {
		failure := asProviderError(provider, err)
		s.metrics.IncProviderFailure(provider, string(failure.Kind))
		s.log.Warn("provider pricing failed",
			zap.String("provider", provider),
			zap.String("kind", string(failure.Kind)),
			zap.Error(failure.Err),
		)
		return outcome{failure: failure}
	}

	if s.cache != nil {
		s.cache.Set(ctx, provider, vehicle, quote)
	}
	s.metrics.IncQuoteServed(provider)
	return outcome{quote: quote}
}

// asProviderError keeps the adapter's own classification and turns
// anything else, a deadline in particular, into an unavailability.
func asProviderError(provider string, err error) *domain.ProviderError {
	if failure, ok := err.(*domain.ProviderError); ok {
		return failure
	}
	return domain.UnavailableError(provider, err)
}

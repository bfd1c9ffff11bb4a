package quote

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nordbroker/octasure/internal/insurer/adapters"
	"github.com/nordbroker/octasure/internal/insurer/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedAdapter struct {
	id      string
	quote   *domain.Quote
	err     error
	delay   time.Duration
	mu      sync.Mutex
	pricing int
}

func (a *scriptedAdapter) Provider() string { return a.id }

func (a *scriptedAdapter) GetPricing(ctx context.Context, vehicle domain.Vehicle) (*domain.Quote, error) {
	a.mu.Lock()
	a.pricing++
	a.mu.Unlock()

	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.quote, nil
}

func (a *scriptedAdapter) ReserveOffer(ctx context.Context, vehicle domain.Vehicle, termMonths int) (*domain.Reservation, error) {
	return nil, errors.New("not used")
}

func (a *scriptedAdapter) ConcludeOffer(ctx context.Context, offerID string, vehicle domain.Vehicle, holder domain.Holder, termMonths int) (string, error) {
	return "", errors.New("not used")
}

func priced(id string, amount int64) *domain.Quote {
	return &domain.Quote{
		Provider: id,
		Prices:   map[int]decimal.Decimal{12: decimal.NewFromInt(amount)},
	}
}

func newTestService(t *testing.T, timeout time.Duration, list ...domain.Adapter) *Service {
	t.Helper()
	return NewService(Params{
		Registry: adapters.NewRegistry(list...),
		Log:      zap.NewNop(),
		Timeout:  timeout,
	})
}

var testVehicle = domain.Vehicle{RegNumber: "BJ8614", CertNumber: "AF2984030"}

func TestQuotesKeepConfiguredOrder(t *testing.T) {
	// the slowest provider answers first in config order; results must not
	// surface completion order
	a := &scriptedAdapter{id: "a", quote: priced("a", 10), delay: 80 * time.Millisecond}
	b := &scriptedAdapter{id: "b", quote: priced("b", 20), delay: 10 * time.Millisecond}
	c := &scriptedAdapter{id: "c", quote: priced("c", 30)}
	svc := newTestService(t, time.Second, a, b, c)

	quotes, err := svc.Quotes(context.Background(), testVehicle, nil)
	require.NoError(t, err)
	require.Len(t, quotes, 3)
	assert.Equal(t, "a", quotes[0].Provider)
	assert.Equal(t, "b", quotes[1].Provider)
	assert.Equal(t, "c", quotes[2].Provider)
}

func TestQuotesPartialFailure(t *testing.T) {
	a := &scriptedAdapter{id: "a", quote: priced("a", 10)}
	b := &scriptedAdapter{id: "b", err: domain.UnavailableError("b", errors.New("connection refused"))}
	svc := newTestService(t, time.Second, a, b)

	quotes, err := svc.Quotes(context.Background(), testVehicle, nil)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "a", quotes[0].Provider)
}

func TestQuotesSlowProviderTimesOutIndependently(t *testing.T) {
	fast := &scriptedAdapter{id: "fast", quote: priced("fast", 10)}
	slow := &scriptedAdapter{id: "slow", quote: priced("slow", 20), delay: 500 * time.Millisecond}
	svc := newTestService(t, 50*time.Millisecond, fast, slow)

	start := time.Now()
	quotes, err := svc.Quotes(context.Background(), testVehicle, nil)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "fast", quotes[0].Provider)
	// the slow provider's timeout bounds the whole call
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestQuotesAllFailed(t *testing.T) {
	a := &scriptedAdapter{id: "a", err: domain.UnavailableError("a", errors.New("down"))}
	b := &scriptedAdapter{id: "b", err: domain.AuthError("b", errors.New("rejected"))}
	svc := newTestService(t, time.Second, a, b)

	_, err := svc.Quotes(context.Background(), testVehicle, nil)
	var aggregate *domain.AggregateError
	require.ErrorAs(t, err, &aggregate)
	require.Len(t, aggregate.Failures, 2)
	assert.Equal(t, "a", aggregate.Failures[0].Provider)
	assert.Equal(t, "b", aggregate.Failures[1].Provider)
}

func TestQuotesSingleProviderFailurePropagates(t *testing.T) {
	a := &scriptedAdapter{id: "a", quote: priced("a", 10)}
	b := &scriptedAdapter{id: "b", err: domain.QuoteError("b", errors.New("vehicle cannot be insured"))}
	svc := newTestService(t, time.Second, a, b)

	_, err := svc.Quotes(context.Background(), testVehicle, []string{"b"})
	var provider *domain.ProviderError
	require.ErrorAs(t, err, &provider)
	assert.Equal(t, "b", provider.Provider)
	assert.Equal(t, domain.KindQuote, provider.Kind)
	// only the requested provider was called
	assert.Equal(t, 0, a.pricing)
}

func TestQuotesUnknownProviderRejectedUpfront(t *testing.T) {
	a := &scriptedAdapter{id: "a", quote: priced("a", 10)}
	svc := newTestService(t, time.Second, a)

	_, err := svc.Quotes(context.Background(), testVehicle, []string{"a", "nosuch"})
	require.ErrorIs(t, err, domain.ErrUnknownProvider)
	assert.Equal(t, 0, a.pricing)
}

func TestQuotesPlainErrorWrappedAsUnavailable(t *testing.T) {
	a := &scriptedAdapter{id: "a", err: errors.New("boom")}
	svc := newTestService(t, time.Second, a)

	_, err := svc.Quotes(context.Background(), testVehicle, []string{"a"})
	var provider *domain.ProviderError
	require.ErrorAs(t, err, &provider)
	assert.Equal(t, domain.KindUnavailable, provider.Kind)
}

func TestQuotesEmptyPriceTableIsSuccess(t *testing.T) {
	a := &scriptedAdapter{id: "a", quote: &domain.Quote{Provider: "a", Prices: map[int]decimal.Decimal{}}}
	b := &scriptedAdapter{id: "b", err: domain.UnavailableError("b", errors.New("down"))}
	svc := newTestService(t, time.Second, a, b)

	quotes, err := svc.Quotes(context.Background(), testVehicle, nil)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
}

package balta

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nordbroker/octasure/internal/clock"
	"github.com/nordbroker/octasure/internal/insurer/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPeriodCodec(t *testing.T) {
	for _, months := range domain.TermMonths {
		encoded, err := EncodePeriod(months)
		require.NoError(t, err)
		back, err := DecodePeriod(encoded)
		require.NoError(t, err)
		assert.Equal(t, months, back)
	}

	_, err := EncodePeriod(2)
	require.Error(t, err)
	_, err = DecodePeriod("months")
	require.Error(t, err)
	_, err = DecodePeriod("7")
	require.Error(t, err)
}

type soapCall struct {
	action string
	body   string
}

func testAdapter(t *testing.T, respond func(call soapCall) (int, string)) (*Adapter, *[]soapCall) {
	t.Helper()
	calls := &[]soapCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		call := soapCall{action: r.Header.Get("SOAPAction"), body: string(raw)}
		*calls = append(*calls, call)

		status, payload := respond(call)
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)

	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	adapter := NewWithClient(Config{URL: srv.URL}, srv.Client(), clk, zap.NewNop())
	return adapter, calls
}

const calculateResponseXML = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <CalculateResponse xmlns="http://www.balta.lv/">
      <CalculateResult>
        <CalculationVariants>
          <CalculationVariant><PolicyPeriod>1</PolicyPeriod><PolicyPremium>8.40</PolicyPremium></CalculationVariant>
          <CalculationVariant><PolicyPeriod>12</PolicyPeriod><PolicyPremium>61.20</PolicyPremium></CalculationVariant>
        </CalculationVariants>
      </CalculateResult>
    </CalculateResponse>
  </soap:Body>
</soap:Envelope>`

func TestGetPricing(t *testing.T) {
	adapter, calls := testAdapter(t, func(call soapCall) (int, string) {
		return http.StatusOK, calculateResponseXML
	})

	quote, err := adapter.GetPricing(context.Background(), domain.Vehicle{RegNumber: "BJ8614", CertNumber: "AF2984030"})
	require.NoError(t, err)
	assert.Equal(t, "balta", quote.Provider)
	require.Len(t, quote.Prices, 2)
	assert.Equal(t, "8.4", quote.Prices[1].String())
	assert.Equal(t, "61.2", quote.Prices[12].String())

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, `"http://www.balta.lv/Calculate"`, call.action)
	assert.Contains(t, call.body, `xmlns="http://www.balta.lv/"`)
	assert.Contains(t, call.body, "<VehicleRegNr>BJ8614</VehicleRegNr>")
	assert.Contains(t, call.body, "<VehicleRegCertNr>AF2984030</VehicleRegCertNr>")
	assert.True(t, strings.HasPrefix(call.body, "<?xml"))
}

func TestGetPricingBusinessError(t *testing.T) {
	adapter, _ := testAdapter(t, func(call soapCall) (int, string) {
		return http.StatusOK, `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <CalculateResponse xmlns="http://www.balta.lv/">
      <CalculateResult>
        <Message>
          <Message><Type>1</Type><Text>vehicle not found in registry</Text></Message>
        </Message>
      </CalculateResult>
    </CalculateResponse>
  </soap:Body>
</soap:Envelope>`
	})

	_, err := adapter.GetPricing(context.Background(), domain.Vehicle{RegNumber: "XX0000", CertNumber: "AF0000000"})
	var provider *domain.ProviderError
	require.ErrorAs(t, err, &provider)
	assert.Equal(t, domain.KindQuote, provider.Kind)
	assert.Contains(t, provider.Err.Error(), "vehicle not found in registry")
}

func TestCertificateRejected(t *testing.T) {
	adapter, _ := testAdapter(t, func(call soapCall) (int, string) {
		return http.StatusForbidden, ""
	})

	_, err := adapter.GetPricing(context.Background(), domain.Vehicle{RegNumber: "BJ8614", CertNumber: "AF2984030"})
	var provider *domain.ProviderError
	require.ErrorAs(t, err, &provider)
	assert.Equal(t, domain.KindAuth, provider.Kind)
}

func TestReserveOffer(t *testing.T) {
	adapter, calls := testAdapter(t, func(call soapCall) (int, string) {
		return http.StatusOK, `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <SaveResponse xmlns="http://www.balta.lv/">
      <SaveResult>
        <PolicyID>POL-889900</PolicyID>
        <PolicyPremium>17.30</PolicyPremium>
      </SaveResult>
    </SaveResponse>
  </soap:Body>
</soap:Envelope>`
	})

	reservation, err := adapter.ReserveOffer(context.Background(), domain.Vehicle{RegNumber: "BJ8614", CertNumber: "AF2984030"}, 3)
	require.NoError(t, err)
	assert.Equal(t, "POL-889900", reservation.OfferID)
	assert.Equal(t, "17.3", reservation.Premium.String())

	call := (*calls)[0]
	assert.Equal(t, `"http://www.balta.lv/Save"`, call.action)
	assert.Contains(t, call.body, "<PolicyPeriod>3</PolicyPeriod>")
}

func TestConcludeOffer(t *testing.T) {
	adapter, calls := testAdapter(t, func(call soapCall) (int, string) {
		return http.StatusOK, `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <ConcludeResponse xmlns="http://www.balta.lv/">
      <ConcludeResult>
        <PolicyID>POL-889900</PolicyID>
      </ConcludeResult>
    </ConcludeResponse>
  </soap:Body>
</soap:Envelope>`
	})

	policyID, err := adapter.ConcludeOffer(context.Background(), "POL-889900", domain.Vehicle{}, domain.Holder{}, 3)
	require.NoError(t, err)
	assert.Equal(t, "POL-889900", policyID)

	call := (*calls)[0]
	assert.Equal(t, `"http://www.balta.lv/Conclude"`, call.action)
	assert.Contains(t, call.body, "<PolicyID>POL-889900</PolicyID>")
	// cover starts the next calendar day
	assert.Contains(t, call.body, "<PolicyStartDate>2025-06-02</PolicyStartDate>")
}

package ergo

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nordbroker/octasure/internal/insurer/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestVariantCodec(t *testing.T) {
	for index, months := range []int{1, 3, 6, 9, 12} {
		got, err := IndexForTerm(months)
		require.NoError(t, err)
		assert.Equal(t, index, got)

		back, err := TermForIndex(index)
		require.NoError(t, err)
		assert.Equal(t, months, back)
	}

	_, err := IndexForTerm(4)
	require.Error(t, err)
	_, err = TermForIndex(5)
	require.Error(t, err)
	_, err = TermForIndex(-1)
	require.Error(t, err)
}

const authResponseXML = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <authentificateUserResponse xmlns="http://webservices.dis.ergo.com/">
      <return>session-key-42</return>
    </authentificateUserResponse>
  </soap:Body>
</soap:Envelope>`

const offerResponseXML = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <getOfferDataOCTAResponse xmlns="http://webservices.dis.ergo.com/">
      <return>
        <offerNr>OFF-3141</offerNr>
        <premiums><premiumAmount>6.90</premiumAmount></premiums>
        <premiums><premiumAmount>18.20</premiumAmount></premiums>
        <premiums><premiumAmount>33.10</premiumAmount></premiums>
        <premiums><premiumAmount>47.80</premiumAmount></premiums>
        <premiums><premiumAmount>59.90</premiumAmount></premiums>
      </return>
    </getOfferDataOCTAResponse>
  </soap:Body>
</soap:Envelope>`

// ergoBackend routes by the operation element inside the request body.
func ergoBackend(t *testing.T, calls *[]string, respond map[string]string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		body := string(raw)
		*calls = append(*calls, body)

		for operation, payload := range respond {
			if strings.Contains(body, "<"+operation) {
				w.Header().Set("Content-Type", "application/xml")
				_, _ = w.Write([]byte(payload))
				return
			}
		}
		t.Fatalf("unexpected request body: %s", body)
	})
}

func testAdapter(t *testing.T, handler http.Handler) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{URL: srv.URL, Username: "broker", Password: "secret"}, zap.NewNop())
}

func TestGetPricing(t *testing.T) {
	var calls []string
	adapter := testAdapter(t, ergoBackend(t, &calls, map[string]string{
		"authentificateUser": authResponseXML,
		"getOfferDataOCTA":   offerResponseXML,
	}))

	quote, err := adapter.GetPricing(context.Background(), domain.Vehicle{RegNumber: "BJ8614", CertNumber: "AF2984030"})
	require.NoError(t, err)
	assert.Equal(t, "ergo", quote.Provider)
	require.Len(t, quote.Prices, 5)
	assert.Equal(t, "6.9", quote.Prices[1].String())
	assert.Equal(t, "18.2", quote.Prices[3].String())
	assert.Equal(t, "59.9", quote.Prices[12].String())

	require.Len(t, calls, 2)
	assert.Contains(t, calls[0], "<username xmlns=\"\">broker</username>")
	assert.Contains(t, calls[1], "<sessionKey xmlns=\"\">session-key-42</sessionKey>")
	assert.Contains(t, calls[1], "<vehicleRegNr xmlns=\"\">BJ8614</vehicleRegNr>")
}

func TestGetPricingFault(t *testing.T) {
	var calls []string
	adapter := testAdapter(t, ergoBackend(t, &calls, map[string]string{
		"authentificateUser": authResponseXML,
		"getOfferDataOCTA": `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <soap:Fault>
      <faultcode>soap:Server</faultcode>
      <faultstring>no valid offer for vehicle</faultstring>
    </soap:Fault>
  </soap:Body>
</soap:Envelope>`,
	}))

	_, err := adapter.GetPricing(context.Background(), domain.Vehicle{RegNumber: "XX0000", CertNumber: "AF0000000"})
	var provider *domain.ProviderError
	require.ErrorAs(t, err, &provider)
	assert.Equal(t, domain.KindQuote, provider.Kind)
	assert.Contains(t, provider.Err.Error(), "no valid offer for vehicle")
}

func TestMissingSessionKey(t *testing.T) {
	var calls []string
	adapter := testAdapter(t, ergoBackend(t, &calls, map[string]string{
		"authentificateUser": `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <authentificateUserResponse xmlns="http://webservices.dis.ergo.com/">
      <return></return>
    </authentificateUserResponse>
  </soap:Body>
</soap:Envelope>`,
	}))

	_, err := adapter.GetPricing(context.Background(), domain.Vehicle{RegNumber: "BJ8614", CertNumber: "AF2984030"})
	var provider *domain.ProviderError
	require.ErrorAs(t, err, &provider)
	assert.Equal(t, domain.KindAuth, provider.Kind)
}

func TestReserveOffer(t *testing.T) {
	var calls []string
	adapter := testAdapter(t, ergoBackend(t, &calls, map[string]string{
		"authentificateUser": authResponseXML,
		"getOfferDataOCTA":   offerResponseXML,
		"saveOfferOCTA": `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <saveOfferOCTAResponse xmlns="http://webservices.dis.ergo.com/">
      <return>OFF-3141</return>
    </saveOfferOCTAResponse>
  </soap:Body>
</soap:Envelope>`,
	}))

	reservation, err := adapter.ReserveOffer(context.Background(), domain.Vehicle{RegNumber: "BJ8614", CertNumber: "AF2984030"}, 6)
	require.NoError(t, err)
	assert.Equal(t, "OFF-3141", reservation.OfferID)
	// third variant is the six month premium
	assert.Equal(t, "33.1", reservation.Premium.String())

	require.Len(t, calls, 3)
	assert.Contains(t, calls[2], "<offerNr xmlns=\"\">OFF-3141</offerNr>")
	assert.Contains(t, calls[2], "<variantNr xmlns=\"\">2</variantNr>")
}

func TestReserveOfferVariantOutOfRange(t *testing.T) {
	short := `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <getOfferDataOCTAResponse xmlns="http://webservices.dis.ergo.com/">
      <return>
        <offerNr>OFF-3141</offerNr>
        <premiums><premiumAmount>6.90</premiumAmount></premiums>
      </return>
    </getOfferDataOCTAResponse>
  </soap:Body>
</soap:Envelope>`
	var calls []string
	adapter := testAdapter(t, ergoBackend(t, &calls, map[string]string{
		"authentificateUser": authResponseXML,
		"getOfferDataOCTA":   short,
	}))

	_, err := adapter.ReserveOffer(context.Background(), domain.Vehicle{RegNumber: "BJ8614", CertNumber: "AF2984030"}, 12)
	var provider *domain.ProviderError
	require.ErrorAs(t, err, &provider)
	assert.Equal(t, domain.KindProtocol, provider.Kind)
}

func TestConcludeOffer(t *testing.T) {
	var calls []string
	adapter := testAdapter(t, ergoBackend(t, &calls, map[string]string{
		"authentificateUser": authResponseXML,
		"concludeOfferOCTA": `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <concludeOfferOCTAResponse xmlns="http://webservices.dis.ergo.com/">
      <return>LV-POL-0042</return>
    </concludeOfferOCTAResponse>
  </soap:Body>
</soap:Envelope>`,
	}))

	policyNr, err := adapter.ConcludeOffer(context.Background(), "OFF-3141", domain.Vehicle{}, domain.Holder{}, 6)
	require.NoError(t, err)
	assert.Equal(t, "LV-POL-0042", policyNr)
}

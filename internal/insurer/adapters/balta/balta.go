package balta

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nordbroker/octasure/internal/clock"
	"github.com/nordbroker/octasure/internal/insurer/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	providerID = "balta"
	logoPath   = "/balta.png"

	actionNS        = "http://www.balta.lv/"
	soapEnvelopeNS  = "http://schemas.xmlsoap.org/soap/envelope/"
	actionCalculate = `"http://www.balta.lv/Calculate"`
	actionSave      = `"http://www.balta.lv/Save"`
	actionConclude  = `"http://www.balta.lv/Conclude"`
)

// Config carries the Balta endpoint and the client certificate pair that
// authenticates the broker. The certificate is the credential; there is no
// token exchange.
type Config struct {
	URL      string
	CertFile string
	KeyFile  string
	Timeout  time.Duration
}

// Adapter speaks Balta's SOAP API over mutual TLS.
type Adapter struct {
	cfg    Config
	client *http.Client
	clock  clock.Clock
	log    *zap.Logger
}

func New(cfg Config, clk clock.Clock, log *zap.Logger) (*Adapter, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("balta client certificate: %w", err)
		}
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			},
		}
	}
	return newWithClient(cfg, client, clk, log), nil
}

// NewWithClient injects the transport; used by tests.
func NewWithClient(cfg Config, client *http.Client, clk clock.Clock, log *zap.Logger) *Adapter {
	return newWithClient(cfg, client, clk, log)
}

func newWithClient(cfg Config, client *http.Client, clk clock.Clock, log *zap.Logger) *Adapter {
	return &Adapter{cfg: cfg, client: client, clock: clk, log: log.Named("insurer.balta")}
}

func (a *Adapter) Provider() string { return providerID }

func (a *Adapter) GetPricing(ctx context.Context, vehicle domain.Vehicle) (*domain.Quote, error) {
	request := calculateRequest{
		XMLNS: actionNS,
		Input: calculateInput{
			VehicleRegNr:     vehicle.RegNumber,
			VehicleRegCertNr: vehicle.CertNumber,
		},
	}

	var response calculateResponseEnvelope
	if err := a.call(ctx, actionCalculate, request, &response); err != nil {
		return nil, err
	}
	result := response.Body.Response.Result
	if err := businessError(result.Messages); err != nil {
		return nil, err
	}

	prices := make(map[int]decimal.Decimal, len(result.Variants.Variant))
	for _, variant := range result.Variants.Variant {
		months, err := DecodePeriod(variant.PolicyPeriod)
		if err != nil {
			continue
		}
		premium, err := decimal.NewFromString(variant.PolicyPremium)
		if err != nil {
			continue
		}
		prices[months] = premium
	}

	return &domain.Quote{Provider: providerID, Logo: logoPath, Prices: prices}, nil
}

func (a *Adapter) ReserveOffer(ctx context.Context, vehicle domain.Vehicle, termMonths int) (*domain.Reservation, error) {
	period, err := EncodePeriod(termMonths)
	if err != nil {
		return nil, domain.ProtocolError(providerID, err)
	}
	request := saveRequest{
		XMLNS: actionNS,
		Input: saveInput{
			VehicleRegNr:     vehicle.RegNumber,
			VehicleRegCertNr: vehicle.CertNumber,
			PolicyPeriod:     period,
		},
	}

	var response saveResponseEnvelope
	if err := a.call(ctx, actionSave, request, &response); err != nil {
		return nil, err
	}
	result := response.Body.Response.Result
	if err := businessError(result.Messages); err != nil {
		return nil, err
	}
	if result.PolicyID == "" {
		return nil, domain.ProtocolError(providerID, errors.New("save response carries no policy id"))
	}
	premium, err := decimal.NewFromString(result.PolicyPremium)
	if err != nil {
		return nil, domain.ProtocolError(providerID, fmt.Errorf("unparsable premium %q", result.PolicyPremium))
	}

	return &domain.Reservation{OfferID: result.PolicyID, Premium: premium}, nil
}

// ConcludeOffer finalizes a saved policy. Balta requires an effective date
// in the future; cover starts on the next calendar day.
func (a *Adapter) ConcludeOffer(ctx context.Context, offerID string, _ domain.Vehicle, _ domain.Holder, _ int) (string, error) {
	startDate := a.clock.Now().AddDate(0, 0, 1).Format("2006-01-02")
	request := concludeRequest{
		XMLNS: actionNS,
		Input: concludeInput{
			PolicyID:        offerID,
			PolicyStartDate: startDate,
		},
	}

	var response concludeResponseEnvelope
	if err := a.call(ctx, actionConclude, request, &response); err != nil {
		return "", err
	}
	result := response.Body.Response.Result
	if err := businessError(result.Messages); err != nil {
		return "", err
	}

	if result.PolicyID != "" {
		return result.PolicyID, nil
	}
	return offerID, nil
}

func (a *Adapter) call(ctx context.Context, action string, payload any, out any) error {
	body, err := xml.Marshal(envelope{SoapNS: soapEnvelopeNS, Body: envelopeBody{Payload: payload}})
	if err != nil {
		return domain.ProtocolError(providerID, err)
	}
	body = append([]byte(xml.Header), body...)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return domain.UnavailableError(providerID, err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", action)

	resp, err := a.client.Do(req)
	if err != nil {
		return domain.UnavailableError(providerID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.AuthError(providerID, fmt.Errorf("client certificate rejected: %s", resp.Status))
	case resp.StatusCode != http.StatusOK:
		return domain.UnavailableError(providerID, fmt.Errorf("endpoint returned %s", resp.Status))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.UnavailableError(providerID, err)
	}
	if err := xml.Unmarshal(raw, out); err != nil {
		return domain.ProtocolError(providerID, err)
	}
	return nil
}

func businessError(messages messageList) error {
	for _, message := range messages.Message {
		if message.Type == "1" {
			return domain.QuoteError(providerID, errors.New(message.Text))
		}
	}
	return nil
}

type envelope struct {
	XMLName xml.Name     `xml:"soap:Envelope"`
	SoapNS  string       `xml:"xmlns:soap,attr"`
	Body    envelopeBody `xml:"soap:Body"`
}

type envelopeBody struct {
	Payload any
}

type calculateRequest struct {
	XMLName xml.Name       `xml:"Calculate"`
	XMLNS   string         `xml:"xmlns,attr"`
	Input   calculateInput `xml:"CalculateInput"`
}

type calculateInput struct {
	VehicleRegNr     string `xml:"VehicleRegNr"`
	VehicleRegCertNr string `xml:"VehicleRegCertNr"`
}

type saveRequest struct {
	XMLName xml.Name  `xml:"Save"`
	XMLNS   string    `xml:"xmlns,attr"`
	Input   saveInput `xml:"SaveInput"`
}

type saveInput struct {
	VehicleRegNr     string `xml:"VehicleRegNr"`
	VehicleRegCertNr string `xml:"VehicleRegCertNr"`
	PolicyPeriod     string `xml:"PolicyPeriod"`
}

type concludeRequest struct {
	XMLName xml.Name      `xml:"Conclude"`
	XMLNS   string        `xml:"xmlns,attr"`
	Input   concludeInput `xml:"ConcludeInput"`
}

type concludeInput struct {
	PolicyID        string `xml:"PolicyID"`
	PolicyStartDate string `xml:"PolicyStartDate"`
}

type messageList struct {
	Message []resultMessage `xml:"Message"`
}

type resultMessage struct {
	Type string `xml:"Type"`
	Text string `xml:"Text"`
}

type calculateResponseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Response struct {
			Result calculateResult `xml:"CalculateResult"`
		} `xml:"CalculateResponse"`
	} `xml:"Body"`
}

type calculateResult struct {
	Messages messageList `xml:"Message"`
	Variants struct {
		Variant []calculationVariant `xml:"CalculationVariant"`
	} `xml:"CalculationVariants"`
}

type calculationVariant struct {
	PolicyPeriod  string `xml:"PolicyPeriod"`
	PolicyPremium string `xml:"PolicyPremium"`
}

type saveResponseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Response struct {
			Result saveResult `xml:"SaveResult"`
		} `xml:"SaveResponse"`
	} `xml:"Body"`
}

type saveResult struct {
	Messages      messageList `xml:"Message"`
	PolicyID      string      `xml:"PolicyID"`
	PolicyPremium string      `xml:"PolicyPremium"`
}

type concludeResponseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Response struct {
			Result concludeResult `xml:"ConcludeResult"`
		} `xml:"ConcludeResponse"`
	} `xml:"Body"`
}

type concludeResult struct {
	Messages messageList `xml:"Message"`
	PolicyID string      `xml:"PolicyID"`
}

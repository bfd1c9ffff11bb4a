package ergo

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nordbroker/octasure/internal/insurer/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	providerID = "ergo"
	logoPath   = "/ergo.png"

	serviceNS      = "http://webservices.dis.ergo.com/"
	soapEnvelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"
)

// Config carries the ERGO endpoint and web-service credentials.
type Config struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
}

// Adapter speaks ERGO's SOAP API. Every business call is preceded by a
// fresh authentificateUser exchange; session keys are never reused across
// calls.
type Adapter struct {
	cfg    Config
	client *http.Client
	log    *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Adapter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		log:    log.Named("insurer.ergo"),
	}
}

func (a *Adapter) Provider() string { return providerID }

func (a *Adapter) GetPricing(ctx context.Context, vehicle domain.Vehicle) (*domain.Quote, error) {
	offer, err := a.offerData(ctx, vehicle)
	if err != nil {
		return nil, err
	}

	prices := make(map[int]decimal.Decimal, len(offer.Premiums))
	for index, row := range offer.Premiums {
		months, err := TermForIndex(index)
		if err != nil {
			continue
		}
		premium, err := decimal.NewFromString(row.PremiumAmount)
		if err != nil {
			continue
		}
		prices[months] = premium
	}
	if len(prices) == 0 {
		return nil, domain.ProtocolError(providerID, errors.New("offer carries no usable premium variants"))
	}

	return &domain.Quote{Provider: providerID, Logo: logoPath, Prices: prices}, nil
}

// ReserveOffer fetches the full offer first and indexes into its variant
// list; ERGO's save call addresses a variant by position, not by term.
func (a *Adapter) ReserveOffer(ctx context.Context, vehicle domain.Vehicle, termMonths int) (*domain.Reservation, error) {
	index, err := IndexForTerm(termMonths)
	if err != nil {
		return nil, domain.ProtocolError(providerID, err)
	}

	sessionKey, err := a.sessionKey(ctx)
	if err != nil {
		return nil, err
	}
	offer, err := a.offerDataWithSession(ctx, sessionKey, vehicle)
	if err != nil {
		return nil, err
	}
	if index >= len(offer.Premiums) {
		return nil, domain.ProtocolError(providerID, fmt.Errorf("offer has %d variants, need index %d", len(offer.Premiums), index))
	}
	premium, err := decimal.NewFromString(offer.Premiums[index].PremiumAmount)
	if err != nil {
		return nil, domain.ProtocolError(providerID, fmt.Errorf("unparsable premium %q", offer.Premiums[index].PremiumAmount))
	}

	request := saveOfferRequest{
		XMLNS:      serviceNS,
		SessionKey: plainField(sessionKey),
		OfferNr:    plainField(offer.OfferNr),
		VariantNr:  plainIntField(index),
	}
	var response saveOfferResponseEnvelope
	if err := a.call(ctx, request, &response); err != nil {
		return nil, err
	}
	saved := strings.TrimSpace(response.Body.Response.Return)
	if saved == "" {
		return nil, domain.ProtocolError(providerID, errors.New("save response carries no offer number"))
	}

	return &domain.Reservation{OfferID: saved, Premium: premium}, nil
}

// ConcludeOffer needs only the reservation id; ERGO keeps everything else
// from the saved offer.
func (a *Adapter) ConcludeOffer(ctx context.Context, offerID string, _ domain.Vehicle, _ domain.Holder, _ int) (string, error) {
	sessionKey, err := a.sessionKey(ctx)
	if err != nil {
		return "", err
	}

	request := concludeOfferRequest{
		XMLNS:      serviceNS,
		SessionKey: plainField(sessionKey),
		OfferNr:    plainField(offerID),
	}
	var response concludeOfferResponseEnvelope
	if err := a.call(ctx, request, &response); err != nil {
		return "", err
	}
	policyNr := strings.TrimSpace(response.Body.Response.Return)
	if policyNr == "" {
		return "", domain.ProtocolError(providerID, errors.New("conclude response carries no policy number"))
	}
	return policyNr, nil
}

func (a *Adapter) offerData(ctx context.Context, vehicle domain.Vehicle) (*offerData, error) {
	sessionKey, err := a.sessionKey(ctx)
	if err != nil {
		return nil, err
	}
	return a.offerDataWithSession(ctx, sessionKey, vehicle)
}

func (a *Adapter) offerDataWithSession(ctx context.Context, sessionKey string, vehicle domain.Vehicle) (*offerData, error) {
	request := offerDataRequest{
		XMLNS:         serviceNS,
		SessionKey:    plainField(sessionKey),
		VehicleRegNr:  plainField(vehicle.RegNumber),
		VehicleCertNr: plainField(vehicle.CertNumber),
	}
	var response offerDataResponseEnvelope
	if err := a.call(ctx, request, &response); err != nil {
		return nil, err
	}
	offer := response.Body.Response.Return
	if strings.TrimSpace(offer.OfferNr) == "" {
		return nil, domain.ProtocolError(providerID, errors.New("offer response carries no offer number"))
	}
	return &offer, nil
}

// sessionKey authenticates and returns a single-use session key.
func (a *Adapter) sessionKey(ctx context.Context) (string, error) {
	request := authenticateRequest{
		XMLNS:    serviceNS,
		Username: plainField(a.cfg.Username),
		Password: plainField(a.cfg.Password),
	}
	var response authenticateResponseEnvelope
	if err := a.call(ctx, request, &response); err != nil {
		return "", err
	}
	sessionKey := strings.TrimSpace(response.Body.Response.Return)
	if sessionKey == "" {
		return "", domain.AuthError(providerID, errors.New("session key not acquired"))
	}
	return sessionKey, nil
}

func (a *Adapter) call(ctx context.Context, payload any, out any) error {
	body, err := xml.Marshal(envelope{SoapNS: soapEnvelopeNS, Body: envelopeBody{Payload: payload}})
	if err != nil {
		return domain.ProtocolError(providerID, err)
	}
	body = append([]byte(xml.Header), body...)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return domain.UnavailableError(providerID, err)
	}
	req.Header.Set("Content-Type", "application/xml")

	resp, err := a.client.Do(req)
	if err != nil {
		return domain.UnavailableError(providerID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.UnavailableError(providerID, fmt.Errorf("endpoint returned %s", resp.Status))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.UnavailableError(providerID, err)
	}
	if fault := parseFault(raw); fault != nil {
		return fault
	}
	if err := xml.Unmarshal(raw, out); err != nil {
		return domain.ProtocolError(providerID, err)
	}
	return nil
}

func parseFault(raw []byte) error {
	var fault faultEnvelope
	if err := xml.Unmarshal(raw, &fault); err != nil {
		return nil
	}
	text := strings.TrimSpace(fault.Body.Fault.FaultString)
	if text == "" {
		return nil
	}
	return domain.QuoteError(providerID, errors.New(text))
}

// plainField renders a child element with an emptied namespace, the way
// ERGO's endpoint expects parameters inside a namespaced operation.
type plainField string

func (f plainField) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "xmlns"}, Value: ""})
	return e.EncodeElement(string(f), start)
}

type plainIntField int

func (f plainIntField) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "xmlns"}, Value: ""})
	return e.EncodeElement(int(f), start)
}

type envelope struct {
	XMLName xml.Name     `xml:"soap:Envelope"`
	SoapNS  string       `xml:"xmlns:soap,attr"`
	Body    envelopeBody `xml:"soap:Body"`
}

type envelopeBody struct {
	Payload any
}

type authenticateRequest struct {
	XMLName  xml.Name   `xml:"authentificateUser"`
	XMLNS    string     `xml:"xmlns,attr"`
	Username plainField `xml:"username"`
	Password plainField `xml:"password"`
}

type authenticateResponseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Response struct {
			Return string `xml:"return"`
		} `xml:"authentificateUserResponse"`
	} `xml:"Body"`
}

type offerDataRequest struct {
	XMLName       xml.Name   `xml:"getOfferDataOCTA"`
	XMLNS         string     `xml:"xmlns,attr"`
	SessionKey    plainField `xml:"sessionKey"`
	VehicleRegNr  plainField `xml:"vehicleRegNr"`
	VehicleCertNr plainField `xml:"vehicleCertNr"`
}

type offerDataResponseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Response struct {
			Return offerData `xml:"return"`
		} `xml:"getOfferDataOCTAResponse"`
	} `xml:"Body"`
}

// offerData is the subset of ERGO's offer payload the adapter consumes.
// Premiums arrive as an ordered variant list; position decides the term.
type offerData struct {
	OfferNr  string       `xml:"offerNr"`
	Premiums []premiumRow `xml:"premiums"`
}

type premiumRow struct {
	PremiumAmount string `xml:"premiumAmount"`
}

type saveOfferRequest struct {
	XMLName    xml.Name      `xml:"saveOfferOCTA"`
	XMLNS      string        `xml:"xmlns,attr"`
	SessionKey plainField    `xml:"sessionKey"`
	OfferNr    plainField    `xml:"offerNr"`
	VariantNr  plainIntField `xml:"variantNr"`
}

type saveOfferResponseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Response struct {
			Return string `xml:"return"`
		} `xml:"saveOfferOCTAResponse"`
	} `xml:"Body"`
}

type concludeOfferRequest struct {
	XMLName    xml.Name   `xml:"concludeOfferOCTA"`
	XMLNS      string     `xml:"xmlns,attr"`
	SessionKey plainField `xml:"sessionKey"`
	OfferNr    plainField `xml:"offerNr"`
}

type concludeOfferResponseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Response struct {
			Return string `xml:"return"`
		} `xml:"concludeOfferOCTAResponse"`
	} `xml:"Body"`
}

type faultEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Fault struct {
			FaultString string `xml:"faultstring"`
		} `xml:"Fault"`
	} `xml:"Body"`
}

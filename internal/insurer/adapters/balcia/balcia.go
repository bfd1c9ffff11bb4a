package balcia

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nordbroker/octasure/internal/insurer/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	providerID = "balcia"
	logoPath   = "/balcia.png"

	branchLV       = "LV"
	agreementType  = "TL05"
	agreementLang  = "LV"
	paymentCountIc = "M1"
	policyType     = "DEFAULT"
)

// Config carries the Balcia endpoint and API credentials.
type Config struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
}

// Adapter speaks Balcia's token-authenticated JSON agreement API. A fresh
// bearer token is fetched before every business call.
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
		log:    log.Named("insurer.balcia"),
	}
}

func (a *Adapter) Provider() string { return providerID }

func (a *Adapter) GetPricing(ctx context.Context, vehicle domain.Vehicle) (*domain.Quote, error) {
	token, err := a.token(ctx)
	if err != nil {
		return nil, err
	}

	premiumRequests := make([]premiumRequest, 0, len(domain.TermMonths))
	for _, months := range domain.TermMonths {
		code, err := EncodePeriod(months)
		if err != nil {
			return nil, domain.ProtocolError(providerID, err)
		}
		premiumRequests = append(premiumRequests, premiumRequest{
			RequestType: "TlPremiumRequest",
			PeriodIc:    code,
		})
	}

	resp, err := a.postAgreement(ctx, token, agreementRequest{
		Approve:          false,
		Save:             false,
		AgreementDetails: baseAgreementDetails("1MON"),
		Vehicle:          vehiclePayload(vehicle),
		PremiumRequests:  premiumRequests,
	})
	if err != nil {
		return nil, err
	}
	if err := businessError(resp); err != nil {
		return nil, err
	}
	if len(resp.PremiumDataList) == 0 {
		return nil, domain.ProtocolError(providerID, errors.New("no pricing data in response"))
	}

	prices := make(map[int]decimal.Decimal, len(resp.PremiumDataList))
	for _, row := range resp.PremiumDataList {
		months, err := DecodePeriod(string(row.PeriodDuration))
		if err != nil {
			continue
		}
		premium, err := decimal.NewFromString(string(row.PremiumCalculated))
		if err != nil {
			continue
		}
		prices[months] = premium
	}
	if len(prices) == 0 {
		return nil, domain.ProtocolError(providerID, errors.New("no usable premium rows in response"))
	}

	return &domain.Quote{Provider: providerID, Logo: logoPath, Prices: prices}, nil
}

func (a *Adapter) ReserveOffer(ctx context.Context, vehicle domain.Vehicle, termMonths int) (*domain.Reservation, error) {
	code, err := EncodePeriod(termMonths)
	if err != nil {
		return nil, domain.ProtocolError(providerID, err)
	}
	token, err := a.token(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := a.postAgreement(ctx, token, agreementRequest{
		Approve:          false,
		Save:             true,
		AgreementDetails: baseAgreementDetails(code),
		Vehicle:          vehiclePayload(vehicle),
	})
	if err != nil {
		return nil, err
	}
	if err := businessError(resp); err != nil {
		return nil, err
	}
	details := resp.AgreementDetails
	if details == nil || details.AgreementID == "" {
		return nil, domain.ProtocolError(providerID, errors.New("save response carries no agreement id"))
	}
	premium, err := decimal.NewFromString(string(details.Premium))
	if err != nil {
		return nil, domain.ProtocolError(providerID, fmt.Errorf("unparsable premium %q", details.Premium))
	}

	return &domain.Reservation{OfferID: string(details.AgreementID), Premium: premium}, nil
}

// ConcludeOffer re-saves the agreement to recover the holder identity
// Balcia resolved from the vehicle registry, then approves it with the
// customer's contact data attached.
func (a *Adapter) ConcludeOffer(ctx context.Context, offerID string, vehicle domain.Vehicle, holder domain.Holder, termMonths int) (string, error) {
	code, err := EncodePeriod(termMonths)
	if err != nil {
		return "", domain.ProtocolError(providerID, err)
	}
	token, err := a.token(ctx)
	if err != nil {
		return "", err
	}

	details := baseAgreementDetails(code)
	details.AgreementID = flexString(offerID)
	saved, err := a.postAgreement(ctx, token, agreementRequest{
		Approve:          false,
		Save:             true,
		AgreementDetails: details,
		Vehicle:          vehiclePayload(vehicle),
	})
	if err != nil {
		return "", err
	}
	if err := businessError(saved); err != nil {
		return "", err
	}
	if saved.AgreementDetails == nil {
		return "", domain.ProtocolError(providerID, errors.New("save response carries no agreement details"))
	}

	details.Holder = &holderPayload{
		RegistrationCode:   string(saved.AgreementDetails.HolderCode),
		Name:               string(saved.AgreementDetails.HolderName),
		FirstName:          string(saved.AgreementDetails.HolderFirstName),
		Email:              holder.Email,
		Phone:              "+" + holder.Phone.CountryCode + holder.Phone.Number,
		UpdateWithProposal: false,
	}
	approved, err := a.postAgreement(ctx, token, agreementRequest{
		Approve:          true,
		Save:             true,
		AgreementDetails: details,
		Vehicle:          vehiclePayload(vehicle),
	})
	if err != nil {
		return "", err
	}
	if err := businessError(approved); err != nil {
		return "", err
	}

	policyID := offerID
	if approved.AgreementDetails != nil && approved.AgreementDetails.AgreementID != "" {
		policyID = string(approved.AgreementDetails.AgreementID)
	}
	return policyID, nil
}

// token fetches a fresh bearer token; Balcia sessions are not assumed to
// survive across calls.
func (a *Adapter) token(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"username": a.cfg.Username,
		"password": a.cfg.Password,
	})
	if err != nil {
		return "", domain.ProtocolError(providerID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.URL+"/auth", bytes.NewReader(body))
	if err != nil {
		return "", domain.UnavailableError(providerID, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", domain.UnavailableError(providerID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", domain.AuthError(providerID, fmt.Errorf("auth rejected: %s", resp.Status))
	case resp.StatusCode != http.StatusOK:
		return "", domain.UnavailableError(providerID, fmt.Errorf("auth endpoint returned %s", resp.Status))
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", domain.ProtocolError(providerID, err)
	}
	if strings.TrimSpace(payload.Token) == "" {
		return "", domain.AuthError(providerID, errors.New("token not received"))
	}
	return payload.Token, nil
}

func (a *Adapter) postAgreement(ctx context.Context, token string, request agreementRequest) (*agreementResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, domain.ProtocolError(providerID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.URL+"/auto", bytes.NewReader(body))
	if err != nil {
		return nil, domain.UnavailableError(providerID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, domain.UnavailableError(providerID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, domain.AuthError(providerID, fmt.Errorf("agreement endpoint rejected token: %s", resp.Status))
	case resp.StatusCode != http.StatusOK:
		return nil, domain.UnavailableError(providerID, fmt.Errorf("agreement endpoint returned %s", resp.Status))
	}

	var payload agreementResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, domain.ProtocolError(providerID, err)
	}
	return &payload, nil
}

func businessError(resp *agreementResponse) error {
	if len(resp.ErrorList) == 0 {
		return nil
	}
	return domain.QuoteError(providerID, errors.New(resp.ErrorList[0].Message))
}

func baseAgreementDetails(periodIc string) agreementDetails {
	return agreementDetails{
		Branch:         branchLV,
		AgrType:        agreementType,
		AgrLanguage:    agreementLang,
		PaymentCountIc: paymentCountIc,
		PeriodIc:       periodIc,
		IsLVRpack:      true,
		PolicyType:     policyType,
	}
}

func vehiclePayload(vehicle domain.Vehicle) vehicleDetails {
	return vehicleDetails{
		VehicleRegistrationNumber: vehicle.RegNumber,
		RegCertNr:                 vehicle.CertNumber,
	}
}

type agreementRequest struct {
	Approve          bool             `json:"approve"`
	Save             bool             `json:"save"`
	AgreementDetails agreementDetails `json:"agreementDetails"`
	Vehicle          vehicleDetails   `json:"vehicle"`
	PremiumRequests  []premiumRequest `json:"premiumRequests,omitempty"`
}

type agreementDetails struct {
	Branch         string         `json:"branch"`
	AgrType        string         `json:"agrType"`
	AgrLanguage    string         `json:"agrLanguage"`
	PaymentCountIc string         `json:"paymentCountIc"`
	PeriodIc       string         `json:"periodIc"`
	IsLVRpack      bool           `json:"isLVRpack"`
	PolicyType     string         `json:"policyType"`
	AgreementID    flexString     `json:"agreementId,omitempty"`
	Holder         *holderPayload `json:"holder,omitempty"`
}

type holderPayload struct {
	RegistrationCode   string `json:"registrationCode"`
	Name               string `json:"name"`
	FirstName          string `json:"firstName"`
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	UpdateWithProposal bool   `json:"updateWithProposal"`
}

type vehicleDetails struct {
	VehicleRegistrationNumber string `json:"vehicleRegistrationNumber"`
	RegCertNr                 string `json:"regCertNr"`
}

type premiumRequest struct {
	RequestType string `json:"requestType"`
	PeriodIc    string `json:"periodIc"`
}

type agreementResponse struct {
	ErrorList        []apiError       `json:"errorList"`
	PremiumDataList  []premiumRow     `json:"premiumDataList"`
	AgreementDetails *agreementDetail `json:"agreementDetails"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type premiumRow struct {
	PeriodDuration    flexString `json:"periodDuration"`
	PremiumCalculated flexString `json:"premiumCalculated"`
}

type agreementDetail struct {
	AgreementID     flexString `json:"agreementId"`
	Premium         flexString `json:"premium"`
	HolderCode      flexString `json:"holder_code"`
	HolderName      flexString `json:"holder_name"`
	HolderFirstName flexString `json:"holder_first_name"`
}

// flexString tolerates Balcia fields arriving as either JSON strings or
// numbers.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*s = flexString(value)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return err
	}
	*s = flexString(number.String())
	return nil
}

func (s flexString) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(s), 10, 64); err == nil {
		return json.Marshal(n)
	}
	return json.Marshal(string(s))
}

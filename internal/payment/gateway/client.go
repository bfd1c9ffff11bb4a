package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/nordbroker/octasure/internal/clock"
	"github.com/nordbroker/octasure/internal/payment/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config carries the processor account credentials. Username and secret
// feed HTTP basic auth; api_username rides in every payload as well.
type Config struct {
	BaseURL     string
	Username    string
	Secret      string
	AccountName string
	CustomerURL string
	Timeout     time.Duration
}

// Client implements domain.Gateway against the processor's oneoff
// payment API.
type Client struct {
	cfg    Config
	client *http.Client
	clock  clock.Clock
	log    *zap.Logger
}

func New(cfg Config, clk clock.Clock, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		clock:  clk,
		log:    log.Named("payment.gateway"),
	}
}

type oneoffRequest struct {
	AccountName    string      `json:"account_name"`
	Amount         json.Number `json:"amount"`
	APIUsername    string      `json:"api_username"`
	CustomerURL    string      `json:"customer_url"`
	Email          string      `json:"email"`
	Nonce          string      `json:"nonce"`
	OrderReference string      `json:"order_reference"`
	Timestamp      string      `json:"timestamp"`
}

type oneoffResponse struct {
	PaymentReference string `json:"payment_reference"`
	PaymentLink      string `json:"payment_link"`
	PaymentState     string `json:"payment_state"`
}

// CreateCheckout opens a hosted checkout session and returns the
// processor's reference plus the link the customer is redirected to.
func (c *Client) CreateCheckout(ctx context.Context, orderReference string, amount decimal.Decimal, email string) (*domain.Checkout, error) {
	payload := oneoffRequest{
		AccountName:    c.cfg.AccountName,
		Amount:         json.Number(amount.StringFixed(2)),
		APIUsername:    c.cfg.Username,
		CustomerURL:    c.cfg.CustomerURL,
		Email:          email,
		Nonce:          uuid.NewString(),
		OrderReference: orderReference,
		Timestamp:      c.clock.Now().Format(time.RFC3339),
	}

	var out oneoffResponse
	if err := c.post(ctx, "/api/v4/payments/oneoff", payload, &out); err != nil {
		return nil, &domain.GatewayError{Op: "create checkout", Err: err}
	}
	if out.PaymentReference == "" || out.PaymentLink == "" {
		return nil, &domain.GatewayError{Op: "create checkout", Err: fmt.Errorf("incomplete response: reference=%q link=%q", out.PaymentReference, out.PaymentLink)}
	}

	c.log.Info("checkout created",
		zap.String("order_reference", orderReference),
		zap.String("payment_reference", out.PaymentReference),
	)
	return &domain.Checkout{
		PaymentReference: out.PaymentReference,
		PaymentLink:      out.PaymentLink,
	}, nil
}

// FetchStatus reads the authoritative payment state for a reference.
func (c *Client) FetchStatus(ctx context.Context, paymentReference string) (domain.SettlementState, error) {
	endpoint := fmt.Sprintf("%s/api/v4/payments/%s?api_username=%s",
		c.cfg.BaseURL, url.PathEscape(paymentReference), url.QueryEscape(c.cfg.Username))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", &domain.GatewayError{Op: "fetch status", Err: err}
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Secret)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &domain.GatewayError{Op: "fetch status", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &domain.GatewayError{Op: "fetch status", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var out oneoffResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &domain.GatewayError{Op: "fetch status", Err: err}
	}

	switch domain.SettlementState(out.PaymentState) {
	case domain.SettlementSettled, domain.SettlementFailed, domain.SettlementAbandoned:
		return domain.SettlementState(out.PaymentState), nil
	default:
		return "", &domain.UnknownSettlementStateError{State: out.PaymentState}
	}
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.Username, c.cfg.Secret)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

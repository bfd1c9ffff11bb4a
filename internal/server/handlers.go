package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	insurerdomain "github.com/nordbroker/octasure/internal/insurer/domain"
	orderdomain "github.com/nordbroker/octasure/internal/order/domain"
	paymentdomain "github.com/nordbroker/octasure/internal/payment/domain"
	"github.com/nordbroker/octasure/internal/payment/webhook"
	"go.uber.org/zap"
)

type quoteRequest struct {
	Reg string `json:"reg"`
	Vin string `json:"vin"`
}

type checkoutRequest struct {
	CarData struct {
		Reg string `json:"reg"`
		Vin string `json:"vin"`
	} `json:"carData"`
	Email string `json:"email"`
	Phone struct {
		CountryCode string `json:"countryCode"`
		Number      string `json:"number"`
	} `json:"phone"`
	SelectedOfferID string `json:"selectedOfferId"`
	TermMonths      int    `json:"termMonths"`
}

type checkoutResponse struct {
	OrderID          string `json:"orderId"`
	PaymentLink      string `json:"paymentLink"`
	PaymentReference string `json:"paymentReference"`
}

func (s *Server) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// QuoteAll prices a vehicle with every configured insurer.
func (s *Server) QuoteAll(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, &ValidationError{Field: "body", Message: "malformed request body"})
		return
	}
	vehicle, err := s.vehicleFromRequest(req.Reg, req.Vin)
	if err != nil {
		s.respondError(c, err)
		return
	}

	quotes, err := s.quotes.Quotes(c.Request.Context(), *vehicle, nil)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quotes)
}

// QuoteOne prices a vehicle with a single insurer and returns the bare
// quote object rather than a one-element list.
func (s *Server) QuoteOne(c *gin.Context) {
	provider := c.Param("provider")
	if !s.registry.Exists(provider) {
		s.respondError(c, insurerdomain.ErrUnknownProvider)
		return
	}

	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, &ValidationError{Field: "body", Message: "malformed request body"})
		return
	}
	vehicle, err := s.vehicleFromRequest(req.Reg, req.Vin)
	if err != nil {
		s.respondError(c, err)
		return
	}

	quotes, err := s.quotes.Quotes(c.Request.Context(), *vehicle, []string{provider})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quotes[0])
}

// CreateCheckout reserves the selected offer, creates the order and opens
// the hosted payment session in one request.
func (s *Server) CreateCheckout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, &ValidationError{Field: "body", Message: "malformed request body"})
		return
	}
	if err := s.validateCheckout(&req); err != nil {
		s.respondError(c, err)
		return
	}

	vehicle := insurerdomain.Vehicle{RegNumber: req.CarData.Reg, CertNumber: req.CarData.Vin}
	holder := insurerdomain.Holder{
		Email: req.Email,
		Phone: insurerdomain.Phone{CountryCode: req.Phone.CountryCode, Number: req.Phone.Number},
	}

	result, err := s.checkout.Start(c.Request.Context(), req.SelectedOfferID, vehicle, holder, req.TermMonths)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, checkoutResponse{
		OrderID:          result.Order.ID.String(),
		PaymentLink:      result.PaymentLink,
		PaymentReference: *result.Order.PaymentReference,
	})
}

// PaymentCallback is the processor's webhook entry point. Responses are
// bare text: the processor only cares about the status code.
func (s *Server) PaymentCallback(c *gin.Context) {
	delivery := webhook.Delivery{
		PaymentReference: c.Query("payment_reference"),
		OrderReference:   c.Query("order_reference"),
		EventName:        c.Query("event_name"),
	}

	err := s.reconciler.Reconcile(c.Request.Context(), delivery)
	switch {
	case err == nil:
		c.String(http.StatusOK, "ok")
	case err == paymentdomain.ErrMissingParams || err == webhook.ErrReferenceMismatch:
		c.String(http.StatusBadRequest, "invalid parameters")
	case err == orderdomain.ErrNotFound:
		c.String(http.StatusNotFound, "not found")
	case err == paymentdomain.ErrUnknownEvent:
		// unhandled events are acknowledged so the processor stops retrying
		c.String(http.StatusOK, "unhandled")
	case isUnknownSettlementState(err):
		c.String(http.StatusOK, "unknown status")
	case isGatewayError(err):
		// retryable: the processor redelivers on 5xx
		c.String(http.StatusBadGateway, "temporary failure")
	default:
		s.log.Error("callback reconciliation failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "error")
	}
}

package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	insurerdomain "github.com/nordbroker/octasure/internal/insurer/domain"
	paymentdomain "github.com/nordbroker/octasure/internal/payment/domain"
	"go.uber.org/zap"
)

// respondError maps the error taxonomy onto HTTP. Provider failures stay
// tagged with the originating insurer so the caller can explain which one
// failed; everything unclassified collapses to a generic message.
func (s *Server) respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var validation *ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": validation.Message,
			"field": validation.Field,
		})
		return
	}

	if errors.Is(err, insurerdomain.ErrUnknownProvider) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown insurance provider"})
		return
	}

	var provider *insurerdomain.ProviderError
	if errors.As(err, &provider) {
		status := http.StatusBadGateway
		message := "insurer is temporarily unavailable"
		if provider.Kind == insurerdomain.KindQuote {
			// a business rejection, not an outage
			status = http.StatusBadRequest
			message = provider.Err.Error()
		}
		c.JSON(status, gin.H{
			"error":    message,
			"provider": provider.Provider,
		})
		return
	}

	var aggregate *insurerdomain.AggregateError
	if errors.As(err, &aggregate) {
		failures := make([]gin.H, 0, len(aggregate.Failures))
		for _, failure := range aggregate.Failures {
			failures = append(failures, gin.H{
				"provider": failure.Provider,
				"kind":     string(failure.Kind),
			})
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"error":    "no insurer could provide a quote",
			"failures": failures,
		})
		return
	}

	var gateway *paymentdomain.GatewayError
	if errors.As(err, &gateway) {
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment service is temporarily unavailable"})
		return
	}

	s.log.Error("request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func isGatewayError(err error) bool {
	var gateway *paymentdomain.GatewayError
	return errors.As(err, &gateway)
}

func isUnknownSettlementState(err error) bool {
	var unknown *paymentdomain.UnknownSettlementStateError
	return errors.As(err, &unknown)
}

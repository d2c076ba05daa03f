package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obsmiddleware "github.com/medsera/returns/internal/observability/logger"
	returnsdomain "github.com/medsera/returns/internal/returns/domain"
	"go.uber.org/zap"
)

type courierWebhookRequest struct {
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	Reason    string `json:"reason"`
	CourierID string `json:"courier_id"`
	EventID   string `json:"event_id"`
}

// CourierWebhookRateLimit throttles webhook traffic per courier when the
// redis limiter is configured. Limiter outages fail open, a degraded redis
// must not take courier ingestion down with it.
func (s *Server) CourierWebhookRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		var peek courierWebhookRequest
		if err := c.ShouldBindBodyWithJSON(&peek); err != nil {
			c.Next()
			return
		}
		courier := strings.TrimSpace(peek.CourierID)
		if courier == "" {
			courier = c.ClientIP()
		}

		allowed, err := s.limiter.AllowCourier(c.Request.Context(), courier)
		if err != nil {
			obsmiddleware.FromContext(c.Request.Context()).Warn("courier rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), "/webhooks/courier", "courier_rate")
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}

// HandleCourierWebhook ingests courier RTO notifications. Couriers retry
// aggressively on non-2xx, so internal failures are logged and acknowledged;
// only malformed payloads get a 400.
func (s *Server) HandleCourierWebhook(c *gin.Context) {
	var req courierWebhookRequest
	if err := c.ShouldBindBodyWithJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.OrderID) == "" || strings.TrimSpace(req.CourierID) == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	status := strings.TrimSpace(req.Status)
	if status != returnsdomain.CourierStatusDeliveryFailed && status != returnsdomain.CourierStatusRTOInitiated {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	err := s.returnsSvc.LogRTO(c.Request.Context(), returnsdomain.LogRTORequest{
		OrderID:        req.OrderID,
		CourierID:      req.CourierID,
		CourierEventID: req.EventID,
		CourierStatus:  status,
		Reason:         req.Reason,
	})
	if err != nil {
		if errors.Is(err, returnsdomain.ErrInvalidOrder) ||
			errors.Is(err, returnsdomain.ErrInvalidCourier) ||
			errors.Is(err, returnsdomain.ErrInvalidStatus) {
			AbortWithError(c, invalidRequestError())
			return
		}
		obsmiddleware.FromContext(c.Request.Context()).Error("courier webhook processing failed",
			zap.String("order_id", req.OrderID),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"status": "accepted"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "logged"})
}

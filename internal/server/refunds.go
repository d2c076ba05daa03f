package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	refunddomain "github.com/medsera/returns/internal/refund/domain"
)

type initiateRefundRequest struct {
	OrderID         string `json:"order_id"`
	ReturnRequestID string `json:"return_request_id"`
	Amount          int64  `json:"amount"`
	Speed           string `json:"speed"`
	Reason          string `json:"reason"`
	InitiatedBy     string `json:"initiated_by"`
}

func (s *Server) InitiateRefund(c *gin.Context) {
	var req initiateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		AbortWithError(c, newValidationError("order_id", "invalid_order_id", "order_id is required"))
		return
	}

	resp, err := s.refundSvc.Initiate(c.Request.Context(), refunddomain.InitiateRefundRequest{
		OrderID:         strings.TrimSpace(req.OrderID),
		ReturnRequestID: strings.TrimSpace(req.ReturnRequestID),
		Amount:          req.Amount,
		Speed:           req.Speed,
		Reason:          req.Reason,
		InitiatedBy:     req.InitiatedBy,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListRefunds(c *gin.Context) {
	orderID := strings.TrimSpace(c.Query("order_id"))
	if orderID == "" {
		AbortWithError(c, newValidationError("order_id", "invalid_order_id", "order_id is required"))
		return
	}

	resp, err := s.refundSvc.ListByOrder(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	returnsdomain "github.com/medsera/returns/internal/returns/domain"
	"github.com/medsera/returns/pkg/db/pagination"
)

type createReturnItem struct {
	OrderItemID string `json:"order_item_id"`
	Quantity    int    `json:"quantity"`
	Reason      string `json:"reason"`
	Condition   string `json:"condition"`
}

type createReturnRequest struct {
	OrderID      string             `json:"order_id"`
	UserID       string             `json:"user_id"`
	Reason       string             `json:"reason"`
	Description  string             `json:"description"`
	Images       []string           `json:"images"`
	Items        []createReturnItem `json:"items"`
	PickupSlot   *time.Time         `json:"pickup_slot"`
	RefundMethod string             `json:"refund_method"`
}

func (s *Server) CreateReturn(c *gin.Context) {
	var req createReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	items := make([]returnsdomain.ReturnItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, returnsdomain.ReturnItemInput{
			OrderItemID: item.OrderItemID,
			Quantity:    item.Quantity,
			Reason:      item.Reason,
			Condition:   item.Condition,
		})
	}

	resp, err := s.returnsSvc.Create(c.Request.Context(), returnsdomain.CreateReturnRequest{
		OrderID:      strings.TrimSpace(req.OrderID),
		UserID:       strings.TrimSpace(req.UserID),
		Reason:       req.Reason,
		Description:  req.Description,
		Images:       req.Images,
		Items:        items,
		PickupSlot:   req.PickupSlot,
		RefundMethod: req.RefundMethod,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetReturn(c *gin.Context) {
	code := strings.TrimSpace(c.Param("id"))

	resp, err := s.returnsSvc.Get(c.Request.Context(), code)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListReturns(c *gin.Context) {
	var query struct {
		pagination.Pagination
		OrderID string `form:"order_id"`
		Status  string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	requests, pageInfo, err := s.returnsSvc.List(c.Request.Context(), returnsdomain.ListReturnFilter{
		OrderID: strings.TrimSpace(query.OrderID),
		Status:  returnsdomain.Status(strings.TrimSpace(query.Status)),
	}, query.Pagination)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": requests, "page_info": pageInfo})
}

type updateReturnStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) UpdateReturnStatus(c *gin.Context) {
	var req updateReturnStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.returnsSvc.UpdateStatus(c.Request.Context(), returnsdomain.UpdateStatusRequest{
		Code:   strings.TrimSpace(c.Param("id")),
		Status: returnsdomain.Status(strings.TrimSpace(req.Status)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type submitInspectionRequest struct {
	InspectorID    string   `json:"inspector_id"`
	Outcome        string   `json:"outcome"`
	Notes          string   `json:"notes"`
	Images         []string `json:"images"`
	RestockBatchID string   `json:"restock_batch_id"`
}

func (s *Server) SubmitInspection(c *gin.Context) {
	var req submitInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var batchID *snowflake.ID
	if raw := strings.TrimSpace(req.RestockBatchID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("restock_batch_id", "invalid_restock_batch_id", "invalid restock_batch_id"))
			return
		}
		batchID = &parsed
	}

	resp, err := s.returnsSvc.ProcessInspection(c.Request.Context(), returnsdomain.SubmitInspectionRequest{
		Code:           strings.TrimSpace(c.Param("id")),
		InspectorID:    strings.TrimSpace(req.InspectorID),
		Outcome:        strings.TrimSpace(req.Outcome),
		Notes:          req.Notes,
		Images:         req.Images,
		RestockBatchID: batchID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/medsera/returns/pkg/db/pagination"
)

type ReturnItemInput struct {
	OrderItemID string `json:"order_item_id"`
	Quantity    int    `json:"quantity"`
	Reason      string `json:"reason"`
	Condition   string `json:"condition"`
}

type CreateReturnRequest struct {
	OrderID      string            `json:"order_id"`
	UserID       string            `json:"user_id"`
	Reason       string            `json:"reason"`
	Description  string            `json:"description"`
	Images       []string          `json:"images"`
	Items        []ReturnItemInput `json:"items"`
	PickupSlot   *time.Time        `json:"pickup_slot"`
	RefundMethod string            `json:"refund_method"`
}

type UpdateStatusRequest struct {
	Code   string
	Status Status
}

type SubmitInspectionRequest struct {
	Code           string
	InspectorID    string        `json:"inspector_id"`
	Outcome        string        `json:"outcome"`
	Notes          string        `json:"notes"`
	Images         []string      `json:"images"`
	RestockBatchID *snowflake.ID `json:"restock_batch_id"`
}

type LogRTORequest struct {
	OrderID        string
	CourierID      string
	CourierEventID string
	CourierStatus  string
	Reason         string
}

type ReturnDetails struct {
	ReturnRequest
	Items       []ReturnItem `json:"items"`
	Inspections []Inspection `json:"inspections"`
}

type Service interface {
	Create(ctx context.Context, req CreateReturnRequest) (*ReturnRequest, error)
	Get(ctx context.Context, code string) (*ReturnDetails, error)
	List(ctx context.Context, filter ListReturnFilter, page pagination.Pagination) ([]ReturnRequest, *pagination.PageInfo, error)
	UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*ReturnRequest, error)
	ProcessInspection(ctx context.Context, req SubmitInspectionRequest) (*ReturnRequest, error)
	LogRTO(ctx context.Context, req LogRTORequest) error
}

var (
	ErrInvalidOrder        = errors.New("invalid_order")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrEmptyItems          = errors.New("empty_items")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrInvalidRefundMethod = errors.New("invalid_refund_method")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidOutcome      = errors.New("invalid_outcome")
	ErrInvalidInspector    = errors.New("invalid_inspector")
	ErrInvalidCourier      = errors.New("invalid_courier")
	ErrNotFound            = errors.New("not_found")
	ErrCodeExhausted       = errors.New("return_code_space_exhausted")
)

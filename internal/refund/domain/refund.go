package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Refund kinds. Full refunds close out the payment, partials do not.
const (
	KindFull    = "full"
	KindPartial = "partial"
)

// RefundTransaction is the append-only record of one refund attempt that
// reached the gateway. Status is whatever the gateway reported at
// initiation time.
type RefundTransaction struct {
	ID              snowflake.ID  `json:"-" gorm:"primaryKey"`
	RefundID        string        `json:"refund_id" gorm:"type:text;not null;uniqueIndex"`
	PaymentID       snowflake.ID  `json:"payment_id" gorm:"not null;index"`
	OrderID         string        `json:"order_id" gorm:"type:text;not null;index"`
	ReturnRequestID *snowflake.ID `json:"-" gorm:"index"`
	ReturnCode      string        `json:"return_request_id,omitempty" gorm:"-"`
	Amount          int64         `json:"amount" gorm:"not null"`
	Kind            string        `json:"kind" gorm:"type:text;not null"`
	Status          string        `json:"status" gorm:"type:text;not null"`
	Speed           string        `json:"speed" gorm:"type:text;not null"`
	Reason          string        `json:"reason" gorm:"type:text"`
	InitiatedBy     string        `json:"initiated_by" gorm:"type:text"`
	CreatedAt       time.Time     `json:"created_at" gorm:"not null"`
}

func (RefundTransaction) TableName() string { return "refund_transactions" }

type InitiateRefundRequest struct {
	OrderID string `json:"order_id"`
	// ReturnRequestID is the public return code. When set the named return
	// must be in approved status; when empty any approved return on the
	// order is moved along best-effort.
	ReturnRequestID string `json:"return_request_id"`
	Amount          int64  `json:"amount"`
	Speed           string `json:"speed"`
	Reason          string `json:"reason"`
	InitiatedBy     string `json:"initiated_by"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, refund *RefundTransaction) error
	// SumSettledByPayment totals prior refund amounts for the payment,
	// excluding failed attempts.
	SumSettledByPayment(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (int64, error)
	ListByOrder(ctx context.Context, db *gorm.DB, orderID string) ([]RefundTransaction, error)
}

type Service interface {
	Initiate(ctx context.Context, req InitiateRefundRequest) (*RefundTransaction, error)
	ListByOrder(ctx context.Context, orderID string) ([]RefundTransaction, error)
}

var (
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrAmountExceedsPayment = errors.New("amount_exceeds_payment")
	ErrInvalidSpeed         = errors.New("invalid_speed")
	ErrReturnNotFound       = errors.New("return_request_not_found")
	ErrRefundInProgress     = errors.New("refund_in_progress")
)

package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindOrder(ctx context.Context, db *gorm.DB, orderNo string) (*Order, error)
	FindCapturedPayment(ctx context.Context, db *gorm.DB, orderNo string) (*Payment, error)
	MarkPaymentRefunded(ctx context.Context, db *gorm.DB, paymentID snowflake.ID, updatedAt time.Time) error
	UpdateOrderPaymentStatus(ctx context.Context, db *gorm.DB, orderNo string, status string, updatedAt time.Time) error
}

var (
	ErrOrderNotFound   = errors.New("order_not_found")
	ErrPaymentNotFound = errors.New("captured_payment_not_found")
)

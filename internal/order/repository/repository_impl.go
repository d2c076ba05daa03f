package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/medsera/returns/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindOrder(ctx context.Context, db *gorm.DB, orderNo string) (*domain.Order, error) {
	var item domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_no, status, payment_status, total_amount, created_at, updated_at
		 FROM orders
		 WHERE order_no = ?
		 LIMIT 1`,
		orderNo,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindCapturedPayment(ctx context.Context, db *gorm.DB, orderNo string) (*domain.Payment, error) {
	var item domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_no, reference, amount, status, created_at, updated_at
		 FROM payments
		 WHERE order_no = ? AND status = ?
		 LIMIT 1`,
		orderNo,
		domain.PaymentStatusCaptured,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) MarkPaymentRefunded(ctx context.Context, db *gorm.DB, paymentID snowflake.ID, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = ?, updated_at = ?
		 WHERE id = ?`,
		domain.PaymentStatusRefunded,
		updatedAt,
		paymentID,
	).Error
}

func (r *repo) UpdateOrderPaymentStatus(ctx context.Context, db *gorm.DB, orderNo string, status string, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET payment_status = ?, updated_at = ?
		 WHERE order_no = ?`,
		status,
		updatedAt,
		orderNo,
	).Error
}

package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/medsera/returns/internal/refund/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, refund *domain.RefundTransaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO refund_transactions (
			id, refund_id, payment_id, order_id, return_request_id,
			amount, kind, status, speed, reason, initiated_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		refund.ID,
		refund.RefundID,
		refund.PaymentID,
		refund.OrderID,
		refund.ReturnRequestID,
		refund.Amount,
		refund.Kind,
		refund.Status,
		refund.Speed,
		refund.Reason,
		refund.InitiatedBy,
		refund.CreatedAt,
	).Error
}

func (r *repo) SumSettledByPayment(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) FROM refund_transactions
		 WHERE payment_id = ? AND status <> ?`,
		paymentID,
		"failed",
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repo) ListByOrder(ctx context.Context, db *gorm.DB, orderID string) ([]domain.RefundTransaction, error) {
	var refunds []domain.RefundTransaction
	err := db.WithContext(ctx).Raw(
		`SELECT id, refund_id, payment_id, order_id, return_request_id,
		        amount, kind, status, speed, reason, initiated_by, created_at
		 FROM refund_transactions WHERE order_id = ? ORDER BY created_at, id`,
		orderID,
	).Scan(&refunds).Error
	if err != nil {
		return nil, err
	}
	return refunds, nil
}

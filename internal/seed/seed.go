package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	inventorydomain "github.com/medsera/returns/internal/inventory/domain"
	orderdomain "github.com/medsera/returns/internal/order/domain"
	"gorm.io/gorm"
)

const (
	demoOrderNo     = "ORD-1001"
	demoPaymentRef  = "pay_demo_1001"
	demoOrderAmount = int64(149900)
	demoBatchNo     = "BAT-2401"
	demoProductID   = "prod_paracetamol_500"
)

// EnsureDemoData seeds a captured order, its payment and a warehouse batch
// so a fresh local instance can exercise the whole workflow immediately.
// Idempotent, keyed on the demo order number.
func EnsureDemoData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order orderdomain.Order
		if err := tx.Raw(`SELECT id, order_no FROM orders WHERE order_no = ?`, demoOrderNo).Scan(&order).Error; err != nil {
			return err
		}
		if order.ID != 0 {
			return nil
		}

		now := time.Now().UTC()
		if err := tx.Exec(
			`INSERT INTO orders (id, order_no, status, payment_status, total_amount, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			node.Generate(), demoOrderNo, "delivered", "paid", demoOrderAmount, now, now,
		).Error; err != nil {
			return err
		}
		if err := tx.Exec(
			`INSERT INTO payments (id, order_no, reference, amount, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			node.Generate(), demoOrderNo, demoPaymentRef, demoOrderAmount, orderdomain.PaymentStatusCaptured, now, now,
		).Error; err != nil {
			return err
		}

		var batch inventorydomain.Batch
		if err := tx.Raw(`SELECT id FROM batches WHERE batch_no = ?`, demoBatchNo).Scan(&batch).Error; err != nil {
			return err
		}
		if batch.ID != 0 {
			return nil
		}
		return tx.Exec(
			`INSERT INTO batches (id, product_id, batch_no, qty_available, expires_at)
			 VALUES (?, ?, ?, ?, ?)`,
			node.Generate(), demoProductID, demoBatchNo, 100, now.AddDate(2, 0, 0),
		).Error
	})
}

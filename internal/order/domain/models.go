package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Order is owned by the order subsystem; this service only reads its
// status fields and flips payment_status after a full refund.
type Order struct {
	ID            snowflake.ID `json:"-" gorm:"primaryKey"`
	OrderNo       string       `json:"order_id" gorm:"type:text;not null;uniqueIndex"`
	Status        string       `json:"status" gorm:"type:text;not null"`
	PaymentStatus string       `json:"payment_status" gorm:"type:text;not null"`
	TotalAmount   int64        `json:"total_amount" gorm:"not null"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time    `json:"updated_at" gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

// Payment is the captured payment a refund draws against. Amounts are in
// minor currency units.
type Payment struct {
	ID        snowflake.ID `json:"-" gorm:"primaryKey"`
	OrderNo   string       `json:"order_id" gorm:"type:text;not null;index"`
	Reference string       `json:"reference" gorm:"type:text;not null"`
	Amount    int64        `json:"amount" gorm:"not null"`
	Status    string       `json:"status" gorm:"type:text;not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

const (
	PaymentStatusCaptured = "captured"
	PaymentStatusRefunded = "refunded"

	OrderPaymentStatusRefunded = "refunded"
)

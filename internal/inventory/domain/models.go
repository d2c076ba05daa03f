package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Batch is the warehouse stock unit accepted returns restock into.
type Batch struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	ProductID    string       `json:"product_id" gorm:"type:text;not null;index"`
	BatchNo      string       `json:"batch_no" gorm:"type:text;not null"`
	QtyAvailable int          `json:"qty_available" gorm:"not null"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
}

func (Batch) TableName() string { return "batches" }

type Repository interface {
	// IncrementAvailable adds qty to the batch. Returns false when the
	// batch does not exist.
	IncrementAvailable(ctx context.Context, db *gorm.DB, batchID snowflake.ID, qty int) (bool, error)
	FindBatch(ctx context.Context, db *gorm.DB, batchID snowflake.ID) (*Batch, error)
}

var ErrBatchNotFound = errors.New("batch_not_found")

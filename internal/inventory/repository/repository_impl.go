package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/medsera/returns/internal/inventory/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) IncrementAvailable(ctx context.Context, db *gorm.DB, batchID snowflake.ID, qty int) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE batches
		 SET qty_available = qty_available + ?
		 WHERE id = ?`,
		qty,
		batchID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindBatch(ctx context.Context, db *gorm.DB, batchID snowflake.ID) (*domain.Batch, error) {
	var item domain.Batch
	err := db.WithContext(ctx).Raw(
		`SELECT id, product_id, batch_no, qty_available, expires_at
		 FROM batches
		 WHERE id = ?
		 LIMIT 1`,
		batchID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

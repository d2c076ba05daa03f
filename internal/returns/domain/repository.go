package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/medsera/returns/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListReturnFilter struct {
	OrderID string
	Status  Status
}

type Repository interface {
	// InsertRequest returns false without error when the public code
	// collides with an existing row, so the caller can regenerate.
	InsertRequest(ctx context.Context, db *gorm.DB, request *ReturnRequest) (bool, error)
	InsertItems(ctx context.Context, db *gorm.DB, items []ReturnItem) error

	FindRequestByCode(ctx context.Context, db *gorm.DB, code string) (*ReturnRequest, error)
	FindItems(ctx context.Context, db *gorm.DB, requestID snowflake.ID) ([]ReturnItem, error)
	FindInspections(ctx context.Context, db *gorm.DB, requestID snowflake.ID) ([]Inspection, error)
	ListRequests(ctx context.Context, db *gorm.DB, filter ListReturnFilter, page pagination.Pagination) ([]ReturnRequest, *pagination.PageInfo, error)

	// UpdateStatusIfCurrent performs the compare-and-write transition:
	// UPDATE ... WHERE id = ? AND status = ?. Returns false when the row
	// was not in the expected status anymore.
	UpdateStatusIfCurrent(ctx context.Context, db *gorm.DB, id snowflake.ID, current, next Status, updatedAt time.Time) (bool, error)

	// UpdateStatusByOrder transitions every request for the order currently
	// in the given status. Used for the best-effort refund linkage when no
	// explicit return request is supplied.
	UpdateStatusByOrder(ctx context.Context, db *gorm.DB, orderID string, current, next Status, updatedAt time.Time) (int64, error)

	InsertInspection(ctx context.Context, db *gorm.DB, inspection *Inspection) error

	// InsertRTOLog returns false without error when the courier event id
	// was already recorded.
	InsertRTOLog(ctx context.Context, db *gorm.DB, entry *RTOLog) (bool, error)
}

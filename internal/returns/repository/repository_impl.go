package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/medsera/returns/internal/returns/domain"
	pkgdb "github.com/medsera/returns/pkg/db"
	"github.com/medsera/returns/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertRequest(ctx context.Context, db *gorm.DB, request *domain.ReturnRequest) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO return_requests (
			id, code, order_id, user_id, reason, description, images,
			pickup_slot, refund_method, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (code) DO NOTHING`,
		request.ID,
		request.Code,
		request.OrderID,
		request.UserID,
		request.Reason,
		request.Description,
		request.Images,
		request.PickupSlot,
		request.RefundMethod,
		request.Status,
		request.CreatedAt,
		request.UpdatedAt,
	)
	if res.Error != nil {
		if pkgdb.IsDuplicateKeyErr(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []domain.ReturnItem) error {
	for i := range items {
		err := db.WithContext(ctx).Exec(
			`INSERT INTO return_items (id, return_request_id, order_item_id, quantity, reason, condition, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			items[i].ID,
			items[i].ReturnRequestID,
			items[i].OrderItemID,
			items[i].Quantity,
			items[i].Reason,
			items[i].Condition,
			items[i].Status,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) FindRequestByCode(ctx context.Context, db *gorm.DB, code string) (*domain.ReturnRequest, error) {
	var request domain.ReturnRequest
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, order_id, user_id, reason, description, images,
		        pickup_slot, refund_method, status, created_at, updated_at
		 FROM return_requests WHERE code = ?`,
		code,
	).Scan(&request).Error
	if err != nil {
		return nil, err
	}
	if request.ID == 0 {
		return nil, nil
	}
	return &request, nil
}

func (r *repo) FindItems(ctx context.Context, db *gorm.DB, requestID snowflake.ID) ([]domain.ReturnItem, error) {
	var items []domain.ReturnItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, return_request_id, order_item_id, quantity, reason, condition, status
		 FROM return_items WHERE return_request_id = ? ORDER BY id`,
		requestID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindInspections(ctx context.Context, db *gorm.DB, requestID snowflake.ID) ([]domain.Inspection, error) {
	var inspections []domain.Inspection
	err := db.WithContext(ctx).Raw(
		`SELECT id, return_request_id, inspector_id, outcome, notes, images, restock_batch_id, created_at
		 FROM inspections WHERE return_request_id = ? ORDER BY created_at, id`,
		requestID,
	).Scan(&inspections).Error
	if err != nil {
		return nil, err
	}
	return inspections, nil
}

func (r *repo) ListRequests(ctx context.Context, db *gorm.DB, filter domain.ListReturnFilter, page pagination.Pagination) ([]domain.ReturnRequest, *pagination.PageInfo, error) {
	pageSize := page.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 250 {
		pageSize = 250
	}

	stmt := db.WithContext(ctx).Model(&domain.ReturnRequest{})
	if filter.OrderID != "" {
		stmt = stmt.Where("order_id = ?", filter.OrderID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, nil, err
		}
		id, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return nil, nil, err
		}
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, nil, err
		}
		stmt = stmt.Where("(created_at, id) < (?, ?)", createdAt, snowflake.ID(id))
	}

	var requests []domain.ReturnRequest
	err := stmt.
		Order("created_at desc, id desc").
		Limit(pageSize + 1).
		Find(&requests).Error
	if err != nil {
		return nil, nil, err
	}

	info := &pagination.PageInfo{}
	if len(requests) > pageSize {
		requests = requests[:pageSize]
		last := requests[len(requests)-1]
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        last.ID.String(),
			CreatedAt: last.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, nil, err
		}
		info.HasMore = true
		info.NextPageToken = token
	}
	return requests, info, nil
}

func (r *repo) UpdateStatusIfCurrent(ctx context.Context, db *gorm.DB, id snowflake.ID, current, next domain.Status, updatedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE return_requests SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		next,
		updatedAt,
		id,
		current,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) UpdateStatusByOrder(ctx context.Context, db *gorm.DB, orderID string, current, next domain.Status, updatedAt time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE return_requests SET status = ?, updated_at = ? WHERE order_id = ? AND status = ?`,
		next,
		updatedAt,
		orderID,
		current,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) InsertInspection(ctx context.Context, db *gorm.DB, inspection *domain.Inspection) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO inspections (id, return_request_id, inspector_id, outcome, notes, images, restock_batch_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inspection.ID,
		inspection.ReturnRequestID,
		inspection.InspectorID,
		inspection.Outcome,
		inspection.Notes,
		inspection.Images,
		inspection.RestockBatchID,
		inspection.CreatedAt,
	).Error
}

func (r *repo) InsertRTOLog(ctx context.Context, db *gorm.DB, entry *domain.RTOLog) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO rto_logs (id, order_id, courier_id, courier_event_id, reason, status, received_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (courier_event_id) DO NOTHING`,
		entry.ID,
		entry.OrderID,
		entry.CourierID,
		entry.CourierEventID,
		entry.Reason,
		entry.Status,
		entry.ReceivedAt,
	)
	if res.Error != nil {
		if pkgdb.IsDuplicateKeyErr(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

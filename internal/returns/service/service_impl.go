package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/medsera/returns/internal/audit/domain"
	"github.com/medsera/returns/internal/clock"
	inventorydomain "github.com/medsera/returns/internal/inventory/domain"
	"github.com/medsera/returns/internal/observability/logger"
	"github.com/medsera/returns/internal/observability/metrics"
	orderdomain "github.com/medsera/returns/internal/order/domain"
	"github.com/medsera/returns/internal/returns/domain"
	"github.com/medsera/returns/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxCodeAttempts = 10

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          domain.Repository
	OrderRepo     orderdomain.Repository
	InventoryRepo inventorydomain.Repository
	Audit         auditdomain.Service
	Metrics       *metrics.Metrics
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          domain.Repository
	orderRepo     orderdomain.Repository
	inventoryRepo inventorydomain.Repository
	audit         auditdomain.Service
	metrics       *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("returns.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		orderRepo:     p.OrderRepo,
		inventoryRepo: p.InventoryRepo,
		audit:         p.Audit,
		metrics:       p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateReturnRequest) (*domain.ReturnRequest, error) {
	log := logger.WithContext(ctx, s.log)

	req.OrderID = strings.TrimSpace(req.OrderID)
	req.UserID = strings.TrimSpace(req.UserID)
	if req.OrderID == "" {
		return nil, domain.ErrInvalidOrder
	}
	if req.UserID == "" {
		return nil, domain.ErrInvalidUser
	}
	if len(req.Items) == 0 {
		return nil, domain.ErrEmptyItems
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.OrderItemID) == "" || item.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
	}

	method := strings.TrimSpace(req.RefundMethod)
	if method == "" {
		method = domain.RefundMethodOriginal
	}
	if method != domain.RefundMethodOriginal && method != domain.RefundMethodWallet {
		return nil, domain.ErrInvalidRefundMethod
	}

	order, err := s.orderRepo.FindOrder(ctx, s.db, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderdomain.ErrOrderNotFound
	}

	images, err := marshalImages(req.Images)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	request := domain.ReturnRequest{
		ID:           s.genID.Generate(),
		OrderID:      req.OrderID,
		UserID:       req.UserID,
		Reason:       strings.TrimSpace(req.Reason),
		Description:  strings.TrimSpace(req.Description),
		Images:       images,
		PickupSlot:   req.PickupSlot,
		RefundMethod: method,
		Status:       domain.StatusRequested,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	items := make([]domain.ReturnItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.ReturnItem{
			ID:              s.genID.Generate(),
			ReturnRequestID: request.ID,
			OrderItemID:     strings.TrimSpace(item.OrderItemID),
			Quantity:        item.Quantity,
			Reason:          strings.TrimSpace(item.Reason),
			Condition:       strings.TrimSpace(item.Condition),
			Status:          string(domain.StatusRequested),
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted := false
		for attempt := 0; attempt < maxCodeAttempts; attempt++ {
			request.Code = s.newCode(now.Year())
			ok, err := s.repo.InsertRequest(ctx, tx, &request)
			if err != nil {
				return err
			}
			if ok {
				inserted = true
				break
			}
			log.Debug("return code collision, regenerating", zap.String("code", request.Code))
		}
		if !inserted {
			return domain.ErrCodeExhausted
		}
		return s.repo.InsertItems(ctx, tx, items)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordReturnCreated(ctx, method)
	if err := s.audit.AuditLog(ctx, "return.requested", "return_request", &request.Code, map[string]any{
		"order_id":      request.OrderID,
		"user_id":       request.UserID,
		"refund_method": request.RefundMethod,
		"item_count":    len(items),
	}); err != nil {
		log.Warn("audit write failed", zap.Error(err))
	}

	log.Info("return request created",
		zap.String("code", request.Code),
		zap.String("order_id", request.OrderID),
	)
	return &request, nil
}

func (s *Service) Get(ctx context.Context, code string) (*domain.ReturnDetails, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrNotFound
	}

	request, err := s.repo.FindRequestByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, domain.ErrNotFound
	}

	items, err := s.repo.FindItems(ctx, s.db, request.ID)
	if err != nil {
		return nil, err
	}
	inspections, err := s.repo.FindInspections(ctx, s.db, request.ID)
	if err != nil {
		return nil, err
	}

	return &domain.ReturnDetails{
		ReturnRequest: *request,
		Items:         items,
		Inspections:   inspections,
	}, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListReturnFilter, page pagination.Pagination) ([]domain.ReturnRequest, *pagination.PageInfo, error) {
	if filter.Status != "" && !domain.ValidStatus(filter.Status) {
		return nil, nil, domain.ErrInvalidStatus
	}
	return s.repo.ListRequests(ctx, s.db, filter, page)
}

func (s *Service) UpdateStatus(ctx context.Context, req domain.UpdateStatusRequest) (*domain.ReturnRequest, error) {
	log := logger.WithContext(ctx, s.log)

	if !domain.ValidStatus(req.Status) {
		return nil, domain.ErrInvalidStatus
	}

	request, err := s.repo.FindRequestByCode(ctx, s.db, req.Code)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, domain.ErrNotFound
	}
	if err := domain.CheckTransition(request.Status, req.Status); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	ok, err := s.repo.UpdateStatusIfCurrent(ctx, s.db, request.ID, request.Status, req.Status, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race. Re-read so the caller sees the actual state.
		fresh, err := s.repo.FindRequestByCode(ctx, s.db, req.Code)
		if err != nil {
			return nil, err
		}
		if fresh == nil {
			return nil, domain.ErrNotFound
		}
		return nil, &domain.TransitionError{Current: fresh.Status, Attempted: req.Status}
	}

	from := request.Status
	request.Status = req.Status
	request.UpdatedAt = now

	s.metrics.RecordTransition(ctx, string(from), string(req.Status))
	if err := s.audit.AuditLog(ctx, "return.status_changed", "return_request", &request.Code, map[string]any{
		"from": string(from),
		"to":   string(req.Status),
	}); err != nil {
		log.Warn("audit write failed", zap.Error(err))
	}

	log.Info("return status changed",
		zap.String("code", request.Code),
		zap.String("from", string(from)),
		zap.String("to", string(req.Status)),
	)
	return request, nil
}

func (s *Service) ProcessInspection(ctx context.Context, req domain.SubmitInspectionRequest) (*domain.ReturnRequest, error) {
	log := logger.WithContext(ctx, s.log)

	if strings.TrimSpace(req.InspectorID) == "" {
		return nil, domain.ErrInvalidInspector
	}
	derived, ok := domain.StatusForOutcome(req.Outcome)
	if !ok {
		return nil, domain.ErrInvalidOutcome
	}

	images, err := marshalImages(req.Images)
	if err != nil {
		return nil, err
	}

	var request *domain.ReturnRequest
	var entryStatus domain.Status
	now := s.clock.Now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err = s.repo.FindRequestByCode(ctx, tx, req.Code)
		if err != nil {
			return err
		}
		if request == nil {
			return domain.ErrNotFound
		}

		entryStatus = request.Status
		switch entryStatus {
		case domain.StatusReceived:
			ok, err := s.repo.UpdateStatusIfCurrent(ctx, tx, request.ID, domain.StatusReceived, domain.StatusInspected, now)
			if err != nil {
				return err
			}
			if !ok {
				return &domain.TransitionError{Current: entryStatus, Attempted: domain.StatusInspected}
			}
		case domain.StatusInspected:
			// Held after a repair or quarantine outcome; re-inspection is
			// the only way out of the holding state.
		default:
			return &domain.TransitionError{Current: entryStatus, Attempted: domain.StatusInspected}
		}

		if derived != domain.StatusInspected {
			ok, err := s.repo.UpdateStatusIfCurrent(ctx, tx, request.ID, domain.StatusInspected, derived, now)
			if err != nil {
				return err
			}
			if !ok {
				return &domain.TransitionError{Current: domain.StatusInspected, Attempted: derived}
			}
		}

		inspection := domain.Inspection{
			ID:              s.genID.Generate(),
			ReturnRequestID: request.ID,
			InspectorID:     strings.TrimSpace(req.InspectorID),
			Outcome:         req.Outcome,
			Notes:           strings.TrimSpace(req.Notes),
			Images:          images,
			RestockBatchID:  req.RestockBatchID,
			CreatedAt:       now,
		}
		if err := s.repo.InsertInspection(ctx, tx, &inspection); err != nil {
			return err
		}

		if req.Outcome == domain.OutcomeAccept && req.RestockBatchID != nil {
			items, err := s.repo.FindItems(ctx, tx, request.ID)
			if err != nil {
				return err
			}
			qty := 0
			for _, item := range items {
				qty += item.Quantity
			}
			restocked, err := s.inventoryRepo.IncrementAvailable(ctx, tx, *req.RestockBatchID, qty)
			if err != nil {
				return err
			}
			if !restocked {
				return inventorydomain.ErrBatchNotFound
			}
		}

		request.Status = derived
		request.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordInspection(ctx, req.Outcome)
	if derived != entryStatus {
		s.metrics.RecordTransition(ctx, string(entryStatus), string(derived))
	}
	if err := s.audit.AuditLog(ctx, "return.inspected", "return_request", &request.Code, map[string]any{
		"outcome":      req.Outcome,
		"inspector_id": req.InspectorID,
		"status":       string(derived),
	}); err != nil {
		log.Warn("audit write failed", zap.Error(err))
	}

	log.Info("inspection recorded",
		zap.String("code", request.Code),
		zap.String("outcome", req.Outcome),
		zap.String("status", string(derived)),
	)
	return request, nil
}

func (s *Service) LogRTO(ctx context.Context, req domain.LogRTORequest) error {
	log := logger.WithContext(ctx, s.log)

	req.OrderID = strings.TrimSpace(req.OrderID)
	req.CourierID = strings.TrimSpace(req.CourierID)
	if req.OrderID == "" {
		return domain.ErrInvalidOrder
	}
	if req.CourierID == "" {
		return domain.ErrInvalidCourier
	}
	if req.CourierStatus != domain.CourierStatusDeliveryFailed && req.CourierStatus != domain.CourierStatusRTOInitiated {
		return domain.ErrInvalidStatus
	}

	entry := domain.RTOLog{
		ID:         s.genID.Generate(),
		OrderID:    req.OrderID,
		CourierID:  req.CourierID,
		Reason:     strings.TrimSpace(req.Reason),
		Status:     domain.RTOStatusInitiated,
		ReceivedAt: s.clock.Now(),
	}
	if eventID := strings.TrimSpace(req.CourierEventID); eventID != "" {
		entry.CourierEventID = &eventID
	}

	inserted, err := s.repo.InsertRTOLog(ctx, s.db, &entry)
	if err != nil {
		return err
	}
	if !inserted {
		log.Debug("duplicate courier event ignored",
			zap.String("order_id", req.OrderID),
			zap.Stringp("courier_event_id", entry.CourierEventID),
		)
		return nil
	}

	s.metrics.RecordRTOEvent(ctx, req.CourierStatus)
	if err := s.audit.AuditLog(ctx, "rto.logged", "order", &req.OrderID, map[string]any{
		"courier_id":     req.CourierID,
		"courier_status": req.CourierStatus,
	}); err != nil {
		log.Warn("audit write failed", zap.Error(err))
	}

	log.Info("rto event logged",
		zap.String("order_id", req.OrderID),
		zap.String("courier_id", req.CourierID),
		zap.String("courier_status", req.CourierStatus),
	)
	return nil
}

// newCode produces a customer-facing RET-<year>-<nnnn> code. The unique
// index on code plus the insert retry loop handles collisions.
func (s *Service) newCode(year int) string {
	var buf [2]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return fmt.Sprintf("RET-%d-%04d", year, s.genID.Generate().Int64()%10000)
	}
	n := binary.BigEndian.Uint16(buf[:]) % 10000
	return fmt.Sprintf("RET-%d-%04d", year, n)
}

func marshalImages(images []string) (datatypes.JSON, error) {
	if images == nil {
		images = []string{}
	}
	raw, err := json.Marshal(images)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/medsera/returns/internal/audit/domain"
	"github.com/medsera/returns/internal/clock"
	gatewaydomain "github.com/medsera/returns/internal/gateway/domain"
	"github.com/medsera/returns/internal/observability/logger"
	"github.com/medsera/returns/internal/observability/metrics"
	orderdomain "github.com/medsera/returns/internal/order/domain"
	"github.com/medsera/returns/internal/ratelimit"
	"github.com/medsera/returns/internal/refund/domain"
	returnsdomain "github.com/medsera/returns/internal/returns/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	OrderRepo   orderdomain.Repository
	ReturnsRepo returnsdomain.Repository
	Gateway     gatewaydomain.Gateway
	Limiter     *ratelimit.IngressLimiter
	Audit       auditdomain.Service
	Metrics     *metrics.Metrics
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	orderRepo   orderdomain.Repository
	returnsRepo returnsdomain.Repository
	gateway     gatewaydomain.Gateway
	limiter     *ratelimit.IngressLimiter
	audit       auditdomain.Service
	metrics     *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("refund.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		orderRepo:   p.OrderRepo,
		returnsRepo: p.ReturnsRepo,
		gateway:     p.Gateway,
		limiter:     p.Limiter,
		audit:       p.Audit,
		metrics:     p.Metrics,
	}
}

func (s *Service) Initiate(ctx context.Context, req domain.InitiateRefundRequest) (*domain.RefundTransaction, error) {
	log := logger.WithContext(ctx, s.log)

	req.OrderID = strings.TrimSpace(req.OrderID)
	if req.OrderID == "" {
		return nil, orderdomain.ErrOrderNotFound
	}
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	speed := strings.TrimSpace(req.Speed)
	if speed == "" {
		speed = gatewaydomain.SpeedNormal
	}
	if speed != gatewaydomain.SpeedNormal && speed != gatewaydomain.SpeedInstant {
		return nil, domain.ErrInvalidSpeed
	}

	token, acquired, err := s.limiter.TryLockRefund(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, domain.ErrRefundInProgress
	}
	defer func() {
		if err := s.limiter.ReleaseRefund(ctx, req.OrderID, token); err != nil {
			log.Warn("failed to release refund lock", zap.Error(err))
		}
	}()

	now := s.clock.Now()
	var refund *domain.RefundTransaction

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindOrder(ctx, tx, req.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return orderdomain.ErrOrderNotFound
		}

		payment, err := s.orderRepo.FindCapturedPayment(ctx, tx, req.OrderID)
		if err != nil {
			return err
		}
		if payment == nil {
			return orderdomain.ErrPaymentNotFound
		}

		settled, err := s.repo.SumSettledByPayment(ctx, tx, payment.ID)
		if err != nil {
			return err
		}
		if req.Amount+settled > payment.Amount {
			return domain.ErrAmountExceedsPayment
		}

		var returnID *snowflake.ID
		returnCode := strings.TrimSpace(req.ReturnRequestID)
		if returnCode != "" {
			ret, err := s.returnsRepo.FindRequestByCode(ctx, tx, returnCode)
			if err != nil {
				return err
			}
			if ret == nil {
				return domain.ErrReturnNotFound
			}
			if err := returnsdomain.CheckTransition(ret.Status, returnsdomain.StatusRefunded); err != nil {
				return err
			}
			ok, err := s.returnsRepo.UpdateStatusIfCurrent(ctx, tx, ret.ID, ret.Status, returnsdomain.StatusRefunded, now)
			if err != nil {
				return err
			}
			if !ok {
				return &returnsdomain.TransitionError{Current: ret.Status, Attempted: returnsdomain.StatusRefunded}
			}
			returnID = &ret.ID
		} else {
			moved, err := s.returnsRepo.UpdateStatusByOrder(ctx, tx, req.OrderID, returnsdomain.StatusApproved, returnsdomain.StatusRefunded, now)
			if err != nil {
				return err
			}
			if moved > 0 {
				log.Debug("approved returns moved to refunded", zap.Int64("count", moved))
			}
		}

		result, err := s.gateway.Refund(ctx, gatewaydomain.RefundRequest{
			PaymentReference: payment.Reference,
			Amount:           req.Amount,
			Speed:            speed,
			Notes:            map[string]string{"order_id": req.OrderID},
		})
		if err != nil {
			return err
		}

		kind := domain.KindPartial
		if req.Amount == payment.Amount {
			kind = domain.KindFull
		}

		refund = &domain.RefundTransaction{
			ID:              s.genID.Generate(),
			RefundID:        result.ProviderRefundID,
			PaymentID:       payment.ID,
			OrderID:         req.OrderID,
			ReturnRequestID: returnID,
			ReturnCode:      returnCode,
			Amount:          req.Amount,
			Kind:            kind,
			Status:          result.Status,
			Speed:           speed,
			Reason:          strings.TrimSpace(req.Reason),
			InitiatedBy:     strings.TrimSpace(req.InitiatedBy),
			CreatedAt:       now,
		}
		if err := s.repo.Insert(ctx, tx, refund); err != nil {
			return err
		}

		if kind == domain.KindFull {
			if err := s.orderRepo.MarkPaymentRefunded(ctx, tx, payment.ID, now); err != nil {
				return err
			}
			if err := s.orderRepo.UpdateOrderPaymentStatus(ctx, tx, req.OrderID, orderdomain.OrderPaymentStatusRefunded, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordRefund(ctx, refund.Kind, refund.Status)
	if err := s.audit.AuditLog(ctx, "refund.initiated", "order", &req.OrderID, map[string]any{
		"refund_id": refund.RefundID,
		"amount":    refund.Amount,
		"kind":      refund.Kind,
		"status":    refund.Status,
	}); err != nil {
		log.Warn("audit write failed", zap.Error(err))
	}

	log.Info("refund initiated",
		zap.String("order_id", req.OrderID),
		zap.String("refund_id", refund.RefundID),
		zap.Int64("amount", refund.Amount),
		zap.String("kind", refund.Kind),
		zap.String("status", refund.Status),
	)
	return refund, nil
}

func (s *Service) ListByOrder(ctx context.Context, orderID string) ([]domain.RefundTransaction, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, orderdomain.ErrOrderNotFound
	}
	return s.repo.ListByOrder(ctx, s.db, orderID)
}

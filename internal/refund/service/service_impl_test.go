package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/medsera/returns/internal/clock"
	gatewaydomain "github.com/medsera/returns/internal/gateway/domain"
	orderdomain "github.com/medsera/returns/internal/order/domain"
	orderrepo "github.com/medsera/returns/internal/order/repository"
	"github.com/medsera/returns/internal/refund/domain"
	refundrepo "github.com/medsera/returns/internal/refund/repository"
	returnsdomain "github.com/medsera/returns/internal/returns/domain"
	returnsrepo "github.com/medsera/returns/internal/returns/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type auditStub struct{}

func (auditStub) AuditLog(ctx context.Context, action, targetType string, targetID *string, metadata map[string]any) error {
	return nil
}

type gatewayStub struct {
	calls  int
	status string
	err    error
}

func (g *gatewayStub) Provider() string { return "stub" }

func (g *gatewayStub) Refund(ctx context.Context, req gatewaydomain.RefundRequest) (*gatewaydomain.RefundResult, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	status := g.status
	if status == "" {
		status = gatewaydomain.StatusProcessed
	}
	return &gatewaydomain.RefundResult{
		ProviderRefundID: fmt.Sprintf("rfnd_stub_%d", g.calls),
		Status:           status,
	}, nil
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error
	prepareSchema(t, db)
	return db
}

func prepareSchema(t *testing.T, db *gorm.DB) {
	t.Helper()
	statements := []string{
		`CREATE TABLE orders (
			id BIGINT PRIMARY KEY,
			order_no TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL,
			payment_status TEXT NOT NULL,
			total_amount BIGINT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE payments (
			id BIGINT PRIMARY KEY,
			order_no TEXT NOT NULL,
			reference TEXT NOT NULL,
			amount BIGINT NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE return_requests (
			id BIGINT PRIMARY KEY,
			code TEXT NOT NULL,
			order_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			images JSON,
			pickup_slot DATETIME,
			refund_method TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX uidx_return_requests_code ON return_requests (code)`,
		`CREATE TABLE refund_transactions (
			id BIGINT PRIMARY KEY,
			refund_id TEXT NOT NULL,
			payment_id BIGINT NOT NULL,
			order_id TEXT NOT NULL,
			return_request_id BIGINT,
			amount BIGINT NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			speed TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			initiated_by TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX uidx_refund_transactions_refund_id ON refund_transactions (refund_id)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("prepare schema: %v", err)
		}
	}
}

func seedOrderWithPayment(t *testing.T, db *gorm.DB, node *snowflake.Node, orderNo string, amount int64) snowflake.ID {
	t.Helper()
	now := time.Now().UTC()
	if err := db.Exec(
		`INSERT INTO orders (id, order_no, status, payment_status, total_amount, created_at, updated_at)
		 VALUES (?, ?, 'delivered', 'paid', ?, ?, ?)`,
		node.Generate(), orderNo, amount, now, now,
	).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	paymentID := node.Generate()
	if err := db.Exec(
		`INSERT INTO payments (id, order_no, reference, amount, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 'captured', ?, ?)`,
		paymentID, orderNo, "pay_"+orderNo, amount, now, now,
	).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return paymentID
}

func seedReturn(t *testing.T, db *gorm.DB, node *snowflake.Node, code, orderNo string, status returnsdomain.Status) snowflake.ID {
	t.Helper()
	now := time.Now().UTC()
	id := node.Generate()
	if err := db.Exec(
		`INSERT INTO return_requests (id, code, order_id, user_id, refund_method, status, created_at, updated_at)
		 VALUES (?, ?, ?, 'user_1', 'original', ?, ?, ?)`,
		id, code, orderNo, string(status), now, now,
	).Error; err != nil {
		t.Fatalf("seed return: %v", err)
	}
	return id
}

func returnStatus(t *testing.T, db *gorm.DB, code string) returnsdomain.Status {
	t.Helper()
	var status string
	if err := db.Raw(`SELECT status FROM return_requests WHERE code = ?`, code).Scan(&status).Error; err != nil {
		t.Fatalf("read return status: %v", err)
	}
	return returnsdomain.Status(status)
}

func paymentStatus(t *testing.T, db *gorm.DB, paymentID snowflake.ID) string {
	t.Helper()
	var status string
	if err := db.Raw(`SELECT status FROM payments WHERE id = ?`, paymentID).Scan(&status).Error; err != nil {
		t.Fatalf("read payment status: %v", err)
	}
	return status
}

func orderPaymentStatus(t *testing.T, db *gorm.DB, orderNo string) string {
	t.Helper()
	var status string
	if err := db.Raw(`SELECT payment_status FROM orders WHERE order_no = ?`, orderNo).Scan(&status).Error; err != nil {
		t.Fatalf("read order payment status: %v", err)
	}
	return status
}

func countRefunds(t *testing.T, db *gorm.DB) int {
	t.Helper()
	var count int
	if err := db.Raw(`SELECT COUNT(1) FROM refund_transactions`).Scan(&count).Error; err != nil {
		t.Fatalf("count refunds: %v", err)
	}
	return count
}

func setupService(t *testing.T) (domain.Service, *gorm.DB, *gatewayStub) {
	t.Helper()

	db := openTestDB(t)
	gateway := &gatewayStub{}
	svc := NewService(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       mustNode(t),
		Clock:       clock.NewFake(time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)),
		Repo:        refundrepo.Provide(),
		OrderRepo:   orderrepo.Provide(),
		ReturnsRepo: returnsrepo.Provide(),
		Gateway:     gateway,
		Limiter:     nil,
		Audit:       auditStub{},
		Metrics:     nil,
	})
	return svc, db, gateway
}

func TestInitiateFullRefundClosesPayment(t *testing.T) {
	svc, db, gateway := setupService(t)
	node := mustNode(t)
	paymentID := seedOrderWithPayment(t, db, node, "ORD-1", 14900)

	refund, err := svc.Initiate(context.Background(), domain.InitiateRefundRequest{
		OrderID:     "ORD-1",
		Amount:      14900,
		Reason:      "full return",
		InitiatedBy: "admin_1",
	})
	if err != nil {
		t.Fatalf("initiate refund: %v", err)
	}
	if refund.Kind != domain.KindFull {
		t.Fatalf("expected full refund, got %s", refund.Kind)
	}
	if refund.Status != gatewaydomain.StatusProcessed {
		t.Fatalf("expected processed status, got %s", refund.Status)
	}
	if refund.Speed != gatewaydomain.SpeedNormal {
		t.Fatalf("expected normal speed default, got %s", refund.Speed)
	}
	if gateway.calls != 1 {
		t.Fatalf("expected 1 gateway call, got %d", gateway.calls)
	}
	if got := paymentStatus(t, db, paymentID); got != orderdomain.PaymentStatusRefunded {
		t.Fatalf("expected payment refunded, got %s", got)
	}
	if got := orderPaymentStatus(t, db, "ORD-1"); got != orderdomain.OrderPaymentStatusRefunded {
		t.Fatalf("expected order payment_status refunded, got %s", got)
	}
}

func TestInitiatePartialRefundKeepsPaymentCaptured(t *testing.T) {
	svc, db, _ := setupService(t)
	node := mustNode(t)
	paymentID := seedOrderWithPayment(t, db, node, "ORD-1", 14900)

	refund, err := svc.Initiate(context.Background(), domain.InitiateRefundRequest{
		OrderID: "ORD-1",
		Amount:  5000,
	})
	if err != nil {
		t.Fatalf("initiate refund: %v", err)
	}
	if refund.Kind != domain.KindPartial {
		t.Fatalf("expected partial refund, got %s", refund.Kind)
	}
	if got := paymentStatus(t, db, paymentID); got != orderdomain.PaymentStatusCaptured {
		t.Fatalf("partial refund must not close the payment, got %s", got)
	}
}

func TestInitiateRefundAmountBounds(t *testing.T) {
	svc, db, _ := setupService(t)
	node := mustNode(t)
	seedOrderWithPayment(t, db, node, "ORD-1", 10000)

	_, err := svc.Initiate(context.Background(), domain.InitiateRefundRequest{OrderID: "ORD-1", Amount: 0})
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}

	_, err = svc.Initiate(context.Background(), domain.InitiateRefundRequest{OrderID: "ORD-1", Amount: 10001})
	if !errors.Is(err, domain.ErrAmountExceedsPayment) {
		t.Fatalf("expected amount exceeds payment, got %v", err)
	}

	if _, err := svc.Initiate(context.Background(), domain.InitiateRefundRequest{OrderID: "ORD-1", Amount: 6000}); err != nil {
		t.Fatalf("first partial refund: %v", err)
	}

	_, err = svc.Initiate(context.Background(), domain.InitiateRefundRequest{OrderID: "ORD-1", Amount: 6000})
	if !errors.Is(err, domain.ErrAmountExceedsPayment) {
		t.Fatalf("expected cumulative bound to reject, got %v", err)
	}

	if _, err := svc.Initiate(context.Background(), domain.InitiateRefundRequest{OrderID: "ORD-1", Amount: 4000}); err != nil {
		t.Fatalf("remainder refund: %v", err)
	}
	if count := countRefunds(t, db); count != 2 {
		t.Fatalf("expected 2 refund rows, got %d", count)
	}
}

func TestInitiateRefundValidation(t *testing.T) {
	svc, db, _ := setupService(t)
	node := mustNode(t)
	seedOrderWithPayment(t, db, node, "ORD-1", 10000)

	_, err := svc.Initiate(context.Background(), domain.InitiateRefundRequest{OrderID: "ORD-1", Amount: 100, Speed: "overnight"})
	if !errors.Is(err, domain.ErrInvalidSpeed) {
		t.Fatalf("expected invalid speed, got %v", err)
	}

	_, err = svc.Initiate(context.Background(), domain.InitiateRefundRequest{OrderID: "ORD-404", Amount: 100})
	if !errors.Is(err, orderdomain.ErrOrderNotFound) {
		t.Fatalf("expected order not found, got %v", err)
	}

	_, err = svc.Initiate(context.Background(), domain.InitiateRefundRequest{OrderID: "ORD-1", Amount: 100, ReturnRequestID: "RET-2026-0404"})
	if !errors.Is(err, domain.ErrReturnNotFound) {
		t.Fatalf("expected return not found, got %v", err)
	}
}

func TestInitiateRefundGatewayFailureRollsBack(t *testing.T) {
	svc, db, gateway := setupService(t)
	node := mustNode(t)
	seedOrderWithPayment(t, db, node, "ORD-1", 10000)
	seedReturn(t, db, node, "RET-2026-0001", "ORD-1", returnsdomain.StatusApproved)
	gateway.err = &gatewaydomain.Error{Provider: "stub", Err: errors.New("provider timeout")}

	_, err := svc.Initiate(context.Background(), domain.InitiateRefundRequest{
		OrderID:         "ORD-1",
		ReturnRequestID: "RET-2026-0001",
		Amount:          10000,
	})
	if !errors.Is(err, gatewaydomain.ErrGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}

	if count := countRefunds(t, db); count != 0 {
		t.Fatalf("expected no refund rows after rollback, got %d", count)
	}
	if got := returnStatus(t, db, "RET-2026-0001"); got != returnsdomain.StatusApproved {
		t.Fatalf("expected return rolled back to approved, got %s", got)
	}
}

func TestInitiateRefundMovesNamedReturn(t *testing.T) {
	svc, db, _ := setupService(t)
	node := mustNode(t)
	seedOrderWithPayment(t, db, node, "ORD-1", 10000)
	seedReturn(t, db, node, "RET-2026-0001", "ORD-1", returnsdomain.StatusApproved)

	refund, err := svc.Initiate(context.Background(), domain.InitiateRefundRequest{
		OrderID:         "ORD-1",
		ReturnRequestID: "RET-2026-0001",
		Amount:          10000,
	})
	if err != nil {
		t.Fatalf("initiate refund: %v", err)
	}
	if refund.ReturnRequestID == nil {
		t.Fatal("expected refund linked to return request")
	}
	if got := returnStatus(t, db, "RET-2026-0001"); got != returnsdomain.StatusRefunded {
		t.Fatalf("expected return refunded, got %s", got)
	}
}

func TestInitiateRefundRejectsUnapprovedReturn(t *testing.T) {
	svc, db, _ := setupService(t)
	node := mustNode(t)
	seedOrderWithPayment(t, db, node, "ORD-1", 10000)
	seedReturn(t, db, node, "RET-2026-0001", "ORD-1", returnsdomain.StatusReceived)

	_, err := svc.Initiate(context.Background(), domain.InitiateRefundRequest{
		OrderID:         "ORD-1",
		ReturnRequestID: "RET-2026-0001",
		Amount:          10000,
	})
	if !errors.Is(err, returnsdomain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	var tErr *returnsdomain.TransitionError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected TransitionError, got %T", err)
	}
	if tErr.Current != returnsdomain.StatusReceived {
		t.Fatalf("unexpected current status: %s", tErr.Current)
	}
	if count := countRefunds(t, db); count != 0 {
		t.Fatalf("expected no refund rows, got %d", count)
	}
}

func TestInitiateRefundBestEffortMovesApprovedReturns(t *testing.T) {
	svc, db, _ := setupService(t)
	node := mustNode(t)
	seedOrderWithPayment(t, db, node, "ORD-1", 10000)
	seedReturn(t, db, node, "RET-2026-0001", "ORD-1", returnsdomain.StatusApproved)
	seedReturn(t, db, node, "RET-2026-0002", "ORD-1", returnsdomain.StatusReceived)

	refund, err := svc.Initiate(context.Background(), domain.InitiateRefundRequest{
		OrderID: "ORD-1",
		Amount:  10000,
	})
	if err != nil {
		t.Fatalf("initiate refund: %v", err)
	}
	if refund.ReturnRequestID != nil {
		t.Fatal("best-effort refund must not pin a return request id")
	}
	if got := returnStatus(t, db, "RET-2026-0001"); got != returnsdomain.StatusRefunded {
		t.Fatalf("expected approved return moved to refunded, got %s", got)
	}
	if got := returnStatus(t, db, "RET-2026-0002"); got != returnsdomain.StatusReceived {
		t.Fatalf("expected received return untouched, got %s", got)
	}
}

func TestListByOrder(t *testing.T) {
	svc, db, _ := setupService(t)
	node := mustNode(t)
	seedOrderWithPayment(t, db, node, "ORD-1", 10000)

	if _, err := svc.Initiate(context.Background(), domain.InitiateRefundRequest{OrderID: "ORD-1", Amount: 3000}); err != nil {
		t.Fatalf("initiate refund: %v", err)
	}
	if _, err := svc.Initiate(context.Background(), domain.InitiateRefundRequest{OrderID: "ORD-1", Amount: 2000}); err != nil {
		t.Fatalf("initiate refund: %v", err)
	}

	refunds, err := svc.ListByOrder(context.Background(), "ORD-1")
	if err != nil {
		t.Fatalf("list refunds: %v", err)
	}
	if len(refunds) != 2 {
		t.Fatalf("expected 2 refunds, got %d", len(refunds))
	}
}

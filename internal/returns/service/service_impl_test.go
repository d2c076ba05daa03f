package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/medsera/returns/internal/clock"
	inventorydomain "github.com/medsera/returns/internal/inventory/domain"
	inventoryrepo "github.com/medsera/returns/internal/inventory/repository"
	orderdomain "github.com/medsera/returns/internal/order/domain"
	orderrepo "github.com/medsera/returns/internal/order/repository"
	"github.com/medsera/returns/internal/returns/domain"
	returnsrepo "github.com/medsera/returns/internal/returns/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type auditStub struct{}

func (auditStub) AuditLog(ctx context.Context, action, targetType string, targetID *string, metadata map[string]any) error {
	return nil
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
		`CREATE TABLE batches (
			id BIGINT PRIMARY KEY,
			product_id TEXT NOT NULL,
			batch_no TEXT NOT NULL,
			qty_available INTEGER NOT NULL,
			expires_at DATETIME
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
		`CREATE TABLE return_items (
			id BIGINT PRIMARY KEY,
			return_request_id BIGINT NOT NULL,
			order_item_id TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			condition TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL
		)`,
		`CREATE TABLE inspections (
			id BIGINT PRIMARY KEY,
			return_request_id BIGINT NOT NULL,
			inspector_id TEXT NOT NULL,
			outcome TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			images JSON,
			restock_batch_id BIGINT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE rto_logs (
			id BIGINT PRIMARY KEY,
			order_id TEXT NOT NULL,
			courier_id TEXT NOT NULL,
			courier_event_id TEXT,
			reason TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			received_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX uidx_rto_logs_courier_event_id ON rto_logs (courier_event_id)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("prepare schema: %v", err)
		}
	}
}

func seedOrder(t *testing.T, db *gorm.DB, node *snowflake.Node, orderNo string, amount int64) {
	t.Helper()
	now := time.Now().UTC()
	if err := db.Exec(
		`INSERT INTO orders (id, order_no, status, payment_status, total_amount, created_at, updated_at)
		 VALUES (?, ?, 'delivered', 'paid', ?, ?, ?)`,
		node.Generate(), orderNo, amount, now, now,
	).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
}

func seedBatch(t *testing.T, db *gorm.DB, batchID snowflake.ID, qty int) {
	t.Helper()
	if err := db.Exec(
		`INSERT INTO batches (id, product_id, batch_no, qty_available) VALUES (?, 'prod_x', 'BAT-1', ?)`,
		batchID, qty,
	).Error; err != nil {
		t.Fatalf("seed batch: %v", err)
	}
}

func batchQty(t *testing.T, db *gorm.DB, batchID snowflake.ID) int {
	t.Helper()
	var qty int
	if err := db.Raw(`SELECT qty_available FROM batches WHERE id = ?`, batchID).Scan(&qty).Error; err != nil {
		t.Fatalf("read batch qty: %v", err)
	}
	return qty
}

func countRows(t *testing.T, db *gorm.DB, table string) int {
	t.Helper()
	var count int
	if err := db.Raw(`SELECT COUNT(1) FROM ` + table).Scan(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}

func setupService(t *testing.T) (domain.Service, *gorm.DB, *clock.Fake) {
	t.Helper()

	db := openTestDB(t)
	fake := clock.NewFake(time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         mustNode(t),
		Clock:         fake,
		Repo:          returnsrepo.Provide(),
		OrderRepo:     orderrepo.Provide(),
		InventoryRepo: inventoryrepo.Provide(),
		Audit:         auditStub{},
		Metrics:       nil,
	})
	return svc, db, fake
}

func createReturn(t *testing.T, svc domain.Service, orderNo string, items []domain.ReturnItemInput) *domain.ReturnRequest {
	t.Helper()
	request, err := svc.Create(context.Background(), domain.CreateReturnRequest{
		OrderID:      orderNo,
		UserID:       "user_1",
		Reason:       "damaged",
		Items:        items,
		RefundMethod: domain.RefundMethodOriginal,
	})
	if err != nil {
		t.Fatalf("create return: %v", err)
	}
	return request
}

func moveToStatus(t *testing.T, svc domain.Service, code string, path ...domain.Status) {
	t.Helper()
	for _, next := range path {
		if _, err := svc.UpdateStatus(context.Background(), domain.UpdateStatusRequest{Code: code, Status: next}); err != nil {
			t.Fatalf("move to %s: %v", next, err)
		}
	}
}

func TestCreateReturnInsertsHeaderAndItems(t *testing.T) {
	svc, db, _ := setupService(t)
	node := mustNode(t)
	seedOrder(t, db, node, "ORD-1", 10000)

	request := createReturn(t, svc, "ORD-1", []domain.ReturnItemInput{
		{OrderItemID: "item_1", Quantity: 2, Reason: "expired", Condition: "sealed"},
		{OrderItemID: "item_2", Quantity: 1},
	})

	if request.Status != domain.StatusRequested {
		t.Fatalf("expected requested status, got %s", request.Status)
	}
	if matched := regexp.MustCompile(`^RET-2026-\d{4}$`).MatchString(request.Code); !matched {
		t.Fatalf("unexpected code format: %s", request.Code)
	}
	if count := countRows(t, db, "return_requests"); count != 1 {
		t.Fatalf("expected 1 return request, got %d", count)
	}
	if count := countRows(t, db, "return_items"); count != 2 {
		t.Fatalf("expected 2 return items, got %d", count)
	}

	details, err := svc.Get(context.Background(), request.Code)
	if err != nil {
		t.Fatalf("get return: %v", err)
	}
	if len(details.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(details.Items))
	}
}

func TestCreateReturnValidation(t *testing.T) {
	svc, db, _ := setupService(t)
	node := mustNode(t)
	seedOrder(t, db, node, "ORD-1", 10000)

	cases := []struct {
		name string
		req  domain.CreateReturnRequest
		want error
	}{
		{
			name: "missing order",
			req:  domain.CreateReturnRequest{UserID: "u", Items: []domain.ReturnItemInput{{OrderItemID: "i", Quantity: 1}}},
			want: domain.ErrInvalidOrder,
		},
		{
			name: "missing user",
			req:  domain.CreateReturnRequest{OrderID: "ORD-1", Items: []domain.ReturnItemInput{{OrderItemID: "i", Quantity: 1}}},
			want: domain.ErrInvalidUser,
		},
		{
			name: "no items",
			req:  domain.CreateReturnRequest{OrderID: "ORD-1", UserID: "u"},
			want: domain.ErrEmptyItems,
		},
		{
			name: "zero quantity",
			req:  domain.CreateReturnRequest{OrderID: "ORD-1", UserID: "u", Items: []domain.ReturnItemInput{{OrderItemID: "i", Quantity: 0}}},
			want: domain.ErrInvalidQuantity,
		},
		{
			name: "bad refund method",
			req:  domain.CreateReturnRequest{OrderID: "ORD-1", UserID: "u", Items: []domain.ReturnItemInput{{OrderItemID: "i", Quantity: 1}}, RefundMethod: "cheque"},
			want: domain.ErrInvalidRefundMethod,
		},
		{
			name: "unknown order",
			req:  domain.CreateReturnRequest{OrderID: "ORD-404", UserID: "u", Items: []domain.ReturnItemInput{{OrderItemID: "i", Quantity: 1}}},
			want: orderdomain.ErrOrderNotFound,
		},
	}

	for _, tc := range cases {
		if _, err := svc.Create(context.Background(), tc.req); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}

	if count := countRows(t, db, "return_requests"); count != 0 {
		t.Fatalf("expected no return requests after rejected creates, got %d", count)
	}
}

// collidingRepo reports the first rejects InsertRequest calls as code
// collisions before delegating to the real repository.
type collidingRepo struct {
	domain.Repository
	rejects int
	calls   int
}

func (r *collidingRepo) InsertRequest(ctx context.Context, db *gorm.DB, request *domain.ReturnRequest) (bool, error) {
	r.calls++
	if r.calls <= r.rejects {
		return false, nil
	}
	return r.Repository.InsertRequest(ctx, db, request)
}

func setupServiceWithRepo(t *testing.T, repo domain.Repository) (domain.Service, *gorm.DB) {
	t.Helper()

	db := openTestDB(t)
	svc := NewService(Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         mustNode(t),
		Clock:         clock.NewFake(time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)),
		Repo:          repo,
		OrderRepo:     orderrepo.Provide(),
		InventoryRepo: inventoryrepo.Provide(),
		Audit:         auditStub{},
		Metrics:       nil,
	})
	return svc, db
}

func TestCreateReturnRetriesOnCodeCollision(t *testing.T) {
	repo := &collidingRepo{Repository: returnsrepo.Provide(), rejects: 2}
	svc, db := setupServiceWithRepo(t, repo)
	node := mustNode(t)
	seedOrder(t, db, node, "ORD-1", 10000)

	request := createReturn(t, svc, "ORD-1", []domain.ReturnItemInput{{OrderItemID: "i1", Quantity: 1}})

	if repo.calls != 3 {
		t.Fatalf("expected 3 insert attempts, got %d", repo.calls)
	}
	if matched := regexp.MustCompile(`^RET-2026-\d{4}$`).MatchString(request.Code); !matched {
		t.Fatalf("unexpected code format after retries: %s", request.Code)
	}
	if count := countRows(t, db, "return_requests"); count != 1 {
		t.Fatalf("expected 1 return request, got %d", count)
	}
	if count := countRows(t, db, "return_items"); count != 1 {
		t.Fatalf("expected 1 return item, got %d", count)
	}
}

func TestCreateReturnCodeSpaceExhausted(t *testing.T) {
	repo := &collidingRepo{Repository: returnsrepo.Provide(), rejects: maxCodeAttempts}
	svc, db := setupServiceWithRepo(t, repo)
	node := mustNode(t)
	seedOrder(t, db, node, "ORD-1", 10000)

	_, err := svc.Create(context.Background(), domain.CreateReturnRequest{
		OrderID: "ORD-1",
		UserID:  "user_1",
		Items:   []domain.ReturnItemInput{{OrderItemID: "i1", Quantity: 1}},
	})
	if !errors.Is(err, domain.ErrCodeExhausted) {
		t.Fatalf("expected code space exhaustion, got %v", err)
	}
	if repo.calls != maxCodeAttempts {
		t.Fatalf("expected %d insert attempts, got %d", maxCodeAttempts, repo.calls)
	}
	if count := countRows(t, db, "return_requests"); count != 0 {
		t.Fatalf("expected no return requests, got %d", count)
	}
	if count := countRows(t, db, "return_items"); count != 0 {
		t.Fatalf("expected no return items, got %d", count)
	}
}

func TestUpdateStatusFollowsTable(t *testing.T) {
	svc, db, _ := setupService(t)
	node := mustNode(t)
	seedOrder(t, db, node, "ORD-1", 10000)
	request := createReturn(t, svc, "ORD-1", []domain.ReturnItemInput{{OrderItemID: "i", Quantity: 1}})

	updated, err := svc.UpdateStatus(context.Background(), domain.UpdateStatusRequest{Code: request.Code, Status: domain.StatusScheduled})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != domain.StatusScheduled {
		t.Fatalf("expected scheduled, got %s", updated.Status)
	}

	_, err = svc.UpdateStatus(context.Background(), domain.UpdateStatusRequest{Code: request.Code, Status: domain.StatusRefunded})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	var tErr *domain.TransitionError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected TransitionError, got %T", err)
	}
	if tErr.Current != domain.StatusScheduled || tErr.Attempted != domain.StatusRefunded {
		t.Fatalf("unexpected transition detail: %+v", tErr)
	}

	details, err := svc.Get(context.Background(), request.Code)
	if err != nil {
		t.Fatalf("get return: %v", err)
	}
	if details.Status != domain.StatusScheduled {
		t.Fatalf("status mutated by rejected transition: %s", details.Status)
	}
}

func TestUpdateStatusUnknownReturn(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.UpdateStatus(context.Background(), domain.UpdateStatusRequest{Code: "RET-2026-0000", Status: domain.StatusScheduled})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err = svc.UpdateStatus(context.Background(), domain.UpdateStatusRequest{Code: "RET-2026-0000", Status: "teleported"})
	if !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected invalid status, got %v", err)
	}
}

func TestInspectionAcceptApprovesAndRestocks(t *testing.T) {
	svc, db, _ := setupService(t)
	node := mustNode(t)
	seedOrder(t, db, node, "ORD-1", 10000)
	batchID := node.Generate()
	seedBatch(t, db, batchID, 10)

	request := createReturn(t, svc, "ORD-1", []domain.ReturnItemInput{
		{OrderItemID: "i1", Quantity: 2},
		{OrderItemID: "i2", Quantity: 3},
	})
	moveToStatus(t, svc, request.Code, domain.StatusScheduled, domain.StatusPickedUp, domain.StatusReceived)

	updated, err := svc.ProcessInspection(context.Background(), domain.SubmitInspectionRequest{
		Code:           request.Code,
		InspectorID:    "insp_1",
		Outcome:        domain.OutcomeAccept,
		RestockBatchID: &batchID,
	})
	if err != nil {
		t.Fatalf("process inspection: %v", err)
	}
	if updated.Status != domain.StatusApproved {
		t.Fatalf("expected approved, got %s", updated.Status)
	}
	if qty := batchQty(t, db, batchID); qty != 15 {
		t.Fatalf("expected batch restocked to 15, got %d", qty)
	}
	if count := countRows(t, db, "inspections"); count != 1 {
		t.Fatalf("expected 1 inspection, got %d", count)
	}
}

func TestInspectionRejectWithoutRestock(t *testing.T) {
	svc, db, _ := setupService(t)
	node := mustNode(t)
	seedOrder(t, db, node, "ORD-1", 10000)
	batchID := node.Generate()
	seedBatch(t, db, batchID, 10)

	request := createReturn(t, svc, "ORD-1", []domain.ReturnItemInput{{OrderItemID: "i1", Quantity: 4}})
	moveToStatus(t, svc, request.Code, domain.StatusScheduled, domain.StatusPickedUp, domain.StatusReceived)

	updated, err := svc.ProcessInspection(context.Background(), domain.SubmitInspectionRequest{
		Code:           request.Code,
		InspectorID:    "insp_1",
		Outcome:        domain.OutcomeReject,
		RestockBatchID: &batchID,
	})
	if err != nil {
		t.Fatalf("process inspection: %v", err)
	}
	if updated.Status != domain.StatusRejected {
		t.Fatalf("expected rejected, got %s", updated.Status)
	}
	if qty := batchQty(t, db, batchID); qty != 10 {
		t.Fatalf("rejected outcome must not restock, got %d", qty)
	}
}

func TestInspectionRepairHoldsAtInspected(t *testing.T) {
	svc, db, _ := setupService(t)
	node := mustNode(t)
	seedOrder(t, db, node, "ORD-1", 10000)

	request := createReturn(t, svc, "ORD-1", []domain.ReturnItemInput{{OrderItemID: "i1", Quantity: 1}})
	moveToStatus(t, svc, request.Code, domain.StatusScheduled, domain.StatusPickedUp, domain.StatusReceived)

	updated, err := svc.ProcessInspection(context.Background(), domain.SubmitInspectionRequest{
		Code:        request.Code,
		InspectorID: "insp_1",
		Outcome:     domain.OutcomeRepair,
	})
	if err != nil {
		t.Fatalf("process inspection: %v", err)
	}
	if updated.Status != domain.StatusInspected {
		t.Fatalf("expected inspected, got %s", updated.Status)
	}
}

func TestReinspectionAfterRepairApprovesAndRestocks(t *testing.T) {
	svc, db, _ := setupService(t)
	node := mustNode(t)
	seedOrder(t, db, node, "ORD-1", 10000)
	batchID := node.Generate()
	seedBatch(t, db, batchID, 10)

	request := createReturn(t, svc, "ORD-1", []domain.ReturnItemInput{{OrderItemID: "i1", Quantity: 2}})
	moveToStatus(t, svc, request.Code, domain.StatusScheduled, domain.StatusPickedUp, domain.StatusReceived)

	held, err := svc.ProcessInspection(context.Background(), domain.SubmitInspectionRequest{
		Code:        request.Code,
		InspectorID: "insp_1",
		Outcome:     domain.OutcomeRepair,
	})
	if err != nil {
		t.Fatalf("repair inspection: %v", err)
	}
	if held.Status != domain.StatusInspected {
		t.Fatalf("expected inspected after repair, got %s", held.Status)
	}

	updated, err := svc.ProcessInspection(context.Background(), domain.SubmitInspectionRequest{
		Code:           request.Code,
		InspectorID:    "insp_2",
		Outcome:        domain.OutcomeAccept,
		RestockBatchID: &batchID,
	})
	if err != nil {
		t.Fatalf("re-inspection after repair: %v", err)
	}
	if updated.Status != domain.StatusApproved {
		t.Fatalf("expected approved, got %s", updated.Status)
	}
	if qty := batchQty(t, db, batchID); qty != 12 {
		t.Fatalf("expected batch restocked to 12, got %d", qty)
	}
	if count := countRows(t, db, "inspections"); count != 2 {
		t.Fatalf("expected 2 inspection rows, got %d", count)
	}
}

func TestReinspectionAfterQuarantineStaysHeld(t *testing.T) {
	svc, db, _ := setupService(t)
	node := mustNode(t)
	seedOrder(t, db, node, "ORD-1", 10000)

	request := createReturn(t, svc, "ORD-1", []domain.ReturnItemInput{{OrderItemID: "i1", Quantity: 1}})
	moveToStatus(t, svc, request.Code, domain.StatusScheduled, domain.StatusPickedUp, domain.StatusReceived)

	for i, outcome := range []string{domain.OutcomeQuarantine, domain.OutcomeRepair} {
		updated, err := svc.ProcessInspection(context.Background(), domain.SubmitInspectionRequest{
			Code:        request.Code,
			InspectorID: "insp_1",
			Outcome:     outcome,
		})
		if err != nil {
			t.Fatalf("inspection %d: %v", i, err)
		}
		if updated.Status != domain.StatusInspected {
			t.Fatalf("expected inspected after %s, got %s", outcome, updated.Status)
		}
	}
	if count := countRows(t, db, "inspections"); count != 2 {
		t.Fatalf("expected 2 inspection rows, got %d", count)
	}
}

func TestInspectionRequiresReceivedStatus(t *testing.T) {
	svc, db, _ := setupService(t)
	node := mustNode(t)
	seedOrder(t, db, node, "ORD-1", 10000)

	request := createReturn(t, svc, "ORD-1", []domain.ReturnItemInput{{OrderItemID: "i1", Quantity: 1}})

	_, err := svc.ProcessInspection(context.Background(), domain.SubmitInspectionRequest{
		Code:        request.Code,
		InspectorID: "insp_1",
		Outcome:     domain.OutcomeAccept,
	})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if count := countRows(t, db, "inspections"); count != 0 {
		t.Fatalf("expected no inspections, got %d", count)
	}
}

func TestInspectionMissingBatchRollsBack(t *testing.T) {
	svc, db, _ := setupService(t)
	node := mustNode(t)
	seedOrder(t, db, node, "ORD-1", 10000)

	request := createReturn(t, svc, "ORD-1", []domain.ReturnItemInput{{OrderItemID: "i1", Quantity: 1}})
	moveToStatus(t, svc, request.Code, domain.StatusScheduled, domain.StatusPickedUp, domain.StatusReceived)

	missing := node.Generate()
	_, err := svc.ProcessInspection(context.Background(), domain.SubmitInspectionRequest{
		Code:           request.Code,
		InspectorID:    "insp_1",
		Outcome:        domain.OutcomeAccept,
		RestockBatchID: &missing,
	})
	if !errors.Is(err, inventorydomain.ErrBatchNotFound) {
		t.Fatalf("expected batch not found, got %v", err)
	}

	if count := countRows(t, db, "inspections"); count != 0 {
		t.Fatalf("expected rollback to remove inspection row, got %d", count)
	}
	details, err := svc.Get(context.Background(), request.Code)
	if err != nil {
		t.Fatalf("get return: %v", err)
	}
	if details.Status != domain.StatusReceived {
		t.Fatalf("expected status unchanged at received, got %s", details.Status)
	}
}

func TestLogRTOIdempotentOnEventID(t *testing.T) {
	svc, db, _ := setupService(t)

	req := domain.LogRTORequest{
		OrderID:        "ORD-9",
		CourierID:      "courier_a",
		CourierEventID: "evt-123",
		CourierStatus:  domain.CourierStatusDeliveryFailed,
		Reason:         "address not found",
	}
	if err := svc.LogRTO(context.Background(), req); err != nil {
		t.Fatalf("log rto: %v", err)
	}
	if err := svc.LogRTO(context.Background(), req); err != nil {
		t.Fatalf("log rto replay: %v", err)
	}

	if count := countRows(t, db, "rto_logs"); count != 1 {
		t.Fatalf("expected 1 rto log, got %d", count)
	}
}

func TestLogRTOWithoutEventIDAlwaysInserts(t *testing.T) {
	svc, db, _ := setupService(t)

	req := domain.LogRTORequest{
		OrderID:       "ORD-9",
		CourierID:     "courier_a",
		CourierStatus: domain.CourierStatusRTOInitiated,
	}
	for i := 0; i < 2; i++ {
		if err := svc.LogRTO(context.Background(), req); err != nil {
			t.Fatalf("log rto: %v", err)
		}
	}

	if count := countRows(t, db, "rto_logs"); count != 2 {
		t.Fatalf("expected 2 rto logs, got %d", count)
	}
}

func TestLogRTORejectsUnknownCourierStatus(t *testing.T) {
	svc, _, _ := setupService(t)

	err := svc.LogRTO(context.Background(), domain.LogRTORequest{
		OrderID:       "ORD-9",
		CourierID:     "courier_a",
		CourierStatus: "out_for_delivery",
	})
	if !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected invalid status, got %v", err)
	}
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"shopledger/backend/internal/cache"
	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/store"
	"shopledger/backend/internal/store/memory"
)

func newTestService() *Service {
	repo := memory.New()
	return New(repo, cache.NoopReportCache{}, Options{
		LowStockThreshold:      10,
		ReportLocation:         time.UTC,
		ReportCacheTTL:         time.Minute,
		EnforceUniqueCustomers: true,
		EnforceUniqueItems:     true,
	})
}

func testCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func mustCreateItem(t *testing.T, svc *Service, name string, qty int, price string) domain.InventoryItem {
	t.Helper()
	item, err := svc.CreateItem(testCtx(), domain.ItemCreateRequest{
		Name:     name,
		Quantity: qty,
		Price:    decimal.RequireFromString(price),
	})
	if err != nil {
		t.Fatalf("create item %s: %v", name, err)
	}
	return item
}

func TestCreateSaleDecrementsStockAndFreezesPrice(t *testing.T) {
	svc := newTestService()
	ctx := testCtx()
	item := mustCreateItem(t, svc, "Widget", 5, "10.00")

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleLineRequest{{ItemID: item.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	got, err := svc.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Quantity != 2 {
		t.Fatalf("expected stock 2 after sale, got %d", got.Quantity)
	}

	if len(sale.Items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(sale.Items))
	}
	line := sale.Items[0]
	if !line.PriceAtSale.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("expected price at sale 10.00, got %s", line.PriceAtSale)
	}
	if !line.Subtotal.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("expected subtotal 30.00, got %s", line.Subtotal)
	}
	if !sale.TotalAmount.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("expected total 30.00, got %s", sale.TotalAmount)
	}

	// A later price change must not touch the committed snapshot.
	newPrice := decimal.RequireFromString("12.50")
	if _, err := svc.UpdateItem(ctx, item.ID, domain.ItemUpdateRequest{Price: &newPrice}); err != nil {
		t.Fatalf("update item price: %v", err)
	}
	reread, err := svc.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if !reread.Items[0].PriceAtSale.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("sale line price changed after item price update: %s", reread.Items[0].PriceAtSale)
	}
}

func TestCreateSaleInsufficientStockFails(t *testing.T) {
	svc := newTestService()
	ctx := testCtx()
	item := mustCreateItem(t, svc, "Widget", 5, "10.00")

	_, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleLineRequest{{ItemID: item.ID, Quantity: 6}},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}

	var lineErr *store.LineError
	if !errors.As(err, &lineErr) || lineErr.Line != 0 {
		t.Fatalf("expected line error for line 0, got %v", err)
	}
	var shortage *store.StockShortageError
	if !errors.As(err, &shortage) {
		t.Fatalf("expected stock shortage detail, got %v", err)
	}
	if shortage.Requested != 6 || shortage.Available != 5 {
		t.Fatalf("expected requested=6 available=5, got %+v", shortage)
	}

	got, _ := svc.GetItem(ctx, item.ID)
	if got.Quantity != 5 {
		t.Fatalf("stock must be untouched after failed sale, got %d", got.Quantity)
	}
}

func TestCreateSaleRollsBackEarlierLines(t *testing.T) {
	svc := newTestService()
	ctx := testCtx()
	itemA := mustCreateItem(t, svc, "Widget A", 10, "4.00")
	itemB := mustCreateItem(t, svc, "Widget B", 1, "6.00")

	_, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleLineRequest{
			{ItemID: itemA.ID, Quantity: 4},
			{ItemID: itemB.ID, Quantity: 5},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	var lineErr *store.LineError
	if !errors.As(err, &lineErr) || lineErr.Line != 1 {
		t.Fatalf("expected failure on line 1, got %v", err)
	}

	gotA, _ := svc.GetItem(ctx, itemA.ID)
	gotB, _ := svc.GetItem(ctx, itemB.ID)
	if gotA.Quantity != 10 || gotB.Quantity != 1 {
		t.Fatalf("expected full rollback to 10/1, got %d/%d", gotA.Quantity, gotB.Quantity)
	}
}

func TestCreateSaleUnknownItemFails(t *testing.T) {
	svc := newTestService()
	ctx := testCtx()
	item := mustCreateItem(t, svc, "Widget", 5, "10.00")

	_, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleLineRequest{
			{ItemID: item.ID, Quantity: 2},
			{ItemID: "item-missing", Quantity: 1},
		},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}

	got, _ := svc.GetItem(ctx, item.ID)
	if got.Quantity != 5 {
		t.Fatalf("expected rollback to 5, got %d", got.Quantity)
	}
}

func TestCreateSaleUnknownCustomerFails(t *testing.T) {
	svc := newTestService()
	ctx := testCtx()
	item := mustCreateItem(t, svc, "Widget", 5, "10.00")

	_, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		CustomerID: "cust-missing",
		Items:      []domain.SaleLineRequest{{ItemID: item.ID, Quantity: 2}},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for dangling customer, got %v", err)
	}

	got, _ := svc.GetItem(ctx, item.ID)
	if got.Quantity != 5 {
		t.Fatalf("stock must be untouched, got %d", got.Quantity)
	}
}

func TestCreateSaleCashSaleLabel(t *testing.T) {
	svc := newTestService()
	ctx := testCtx()
	item := mustCreateItem(t, svc, "Widget", 5, "10.00")

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleLineRequest{{ItemID: item.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if !sale.IsCashSale || sale.CustomerName != domain.CashSaleLabel {
		t.Fatalf("expected cash sale with label %q, got %+v", domain.CashSaleLabel, sale)
	}
	if sale.PaymentMethod != domain.PaymentCash {
		t.Fatalf("expected default payment method cash, got %s", sale.PaymentMethod)
	}
}

func TestCreateSaleFreezesCustomerName(t *testing.T) {
	svc := newTestService()
	ctx := testCtx()
	item := mustCreateItem(t, svc, "Widget", 5, "10.00")
	customer, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Budi", Mobile: "0812"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		CustomerID: customer.ID,
		Items:      []domain.SaleLineRequest{{ItemID: item.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if sale.IsCashSale || sale.CustomerName != "Budi" {
		t.Fatalf("expected credit to customer Budi, got %+v", sale)
	}

	newName := "Budi Santoso"
	if _, err := svc.UpdateCustomer(ctx, customer.ID, domain.CustomerUpdateRequest{Name: &newName}); err != nil {
		t.Fatalf("rename customer: %v", err)
	}
	reread, _ := svc.GetSale(ctx, sale.ID)
	if reread.CustomerName != "Budi" {
		t.Fatalf("sale customer name must stay frozen, got %s", reread.CustomerName)
	}
}

func TestCreateSaleRejectsInvalidLines(t *testing.T) {
	svc := newTestService()
	ctx := testCtx()
	item := mustCreateItem(t, svc, "Widget", 5, "10.00")

	cases := []domain.SaleCreateRequest{
		{Items: nil},
		{Items: []domain.SaleLineRequest{{ItemID: item.ID, Quantity: 0}}},
		{Items: []domain.SaleLineRequest{{ItemID: "", Quantity: 1}}},
		{PaymentMethod: "barter", Items: []domain.SaleLineRequest{{ItemID: item.ID, Quantity: 1}}},
	}
	for i, req := range cases {
		if _, err := svc.CreateSale(ctx, req); !errors.Is(err, store.ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}

	got, _ := svc.GetItem(ctx, item.ID)
	if got.Quantity != 5 {
		t.Fatalf("stock must be untouched by rejected sales, got %d", got.Quantity)
	}
}

func TestCreateSaleDuplicateItemLines(t *testing.T) {
	svc := newTestService()
	ctx := testCtx()
	item := mustCreateItem(t, svc, "Widget", 5, "2.00")

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleLineRequest{
			{ItemID: item.ID, Quantity: 2},
			{ItemID: item.ID, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("create sale with duplicate lines: %v", err)
	}
	if !sale.TotalAmount.Equal(decimal.RequireFromString("8.00")) {
		t.Fatalf("expected total 8.00, got %s", sale.TotalAmount)
	}

	got, _ := svc.GetItem(ctx, item.ID)
	if got.Quantity != 1 {
		t.Fatalf("expected stock 1 after both lines, got %d", got.Quantity)
	}
}

func TestUpdateSaleTouchesOnlyMeta(t *testing.T) {
	svc := newTestService()
	ctx := testCtx()
	item := mustCreateItem(t, svc, "Widget", 5, "10.00")

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleLineRequest{{ItemID: item.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	newDate := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	credit := domain.PaymentCredit
	updated, err := svc.UpdateSale(ctx, sale.ID, domain.SaleUpdateRequest{Date: &newDate, PaymentMethod: &credit})
	if err != nil {
		t.Fatalf("update sale: %v", err)
	}
	if !updated.Date.Equal(newDate) || updated.PaymentMethod != domain.PaymentCredit {
		t.Fatalf("expected updated meta, got %+v", updated)
	}
	if !updated.TotalAmount.Equal(sale.TotalAmount) || len(updated.Items) != len(sale.Items) {
		t.Fatalf("lines and total must be untouched by meta update")
	}

	if _, err := svc.UpdateSale(ctx, sale.ID, domain.SaleUpdateRequest{}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for empty update, got %v", err)
	}
	bad := "barter"
	if _, err := svc.UpdateSale(ctx, sale.ID, domain.SaleUpdateRequest{PaymentMethod: &bad}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for unknown payment method, got %v", err)
	}
}

func TestDeleteSaleRestoresStock(t *testing.T) {
	svc := newTestService()
	ctx := testCtx()
	item := mustCreateItem(t, svc, "Widget", 5, "10.00")

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleLineRequest{{ItemID: item.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	if _, err := svc.DeleteSale(ctx, sale.ID); err != nil {
		t.Fatalf("delete sale: %v", err)
	}

	got, _ := svc.GetItem(ctx, item.ID)
	if got.Quantity != 5 {
		t.Fatalf("expected stock restored to 5, got %d", got.Quantity)
	}
	if _, err := svc.GetSale(ctx, sale.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected sale gone after delete, got %v", err)
	}
}

func TestDeleteSaleSkipsRemovedItem(t *testing.T) {
	svc := newTestService()
	ctx := testCtx()
	itemA := mustCreateItem(t, svc, "Widget A", 5, "10.00")
	itemB := mustCreateItem(t, svc, "Widget B", 5, "3.00")

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleLineRequest{
			{ItemID: itemA.ID, Quantity: 2},
			{ItemID: itemB.ID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	if err := svc.DeleteItem(ctx, itemB.ID); err != nil {
		t.Fatalf("delete item B: %v", err)
	}

	if _, err := svc.DeleteSale(ctx, sale.ID); err != nil {
		t.Fatalf("delete sale with removed item must succeed: %v", err)
	}

	gotA, _ := svc.GetItem(ctx, itemA.ID)
	if gotA.Quantity != 5 {
		t.Fatalf("expected item A restored to 5, got %d", gotA.Quantity)
	}
}

func TestCreateItemDuplicateNameConflict(t *testing.T) {
	svc := newTestService()
	mustCreateItem(t, svc, "Widget", 5, "10.00")

	_, err := svc.CreateItem(testCtx(), domain.ItemCreateRequest{
		Name:     "widget",
		Quantity: 1,
		Price:    decimal.RequireFromString("1.00"),
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for duplicate item name, got %v", err)
	}
}

func TestCreateCustomerDuplicateConflict(t *testing.T) {
	svc := newTestService()
	ctx := testCtx()

	if _, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Budi", Mobile: "0812"}); err != nil {
		t.Fatalf("create customer: %v", err)
	}
	if _, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Budi", Mobile: "0812"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for duplicate customer, got %v", err)
	}
	// Same name with a different mobile is a different person.
	if _, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Budi", Mobile: "0899"}); err != nil {
		t.Fatalf("expected distinct mobile to pass, got %v", err)
	}
}

func TestAuditLogWrittenOnSaleCommit(t *testing.T) {
	svc := newTestService()
	ctx := testCtx()
	item := mustCreateItem(t, svc, "Widget", 5, "10.00")

	if _, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleLineRequest{{ItemID: item.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	logs, err := svc.ListAuditLogs(ctx, time.Time{}, time.Time{}, 50)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	found := false
	for _, entry := range logs {
		if entry.Action == "sale_create" && entry.Actor == "admin" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected sale_create audit entry, got %+v", logs)
	}
}

package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/store"
	"shopledger/backend/internal/store/memory"
)

// mapReportCache is an in-process ReportCache so tests can observe
// writes and invalidations without a redis server.
type mapReportCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMapReportCache() *mapReportCache {
	return &mapReportCache{entries: make(map[string][]byte)}
}

func (c *mapReportCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.entries[key]
	return payload, ok, nil
}

func (c *mapReportCache) Set(_ context.Context, key string, payload []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = payload
	return nil
}

func (c *mapReportCache) Invalidate(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *mapReportCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func sellOn(t *testing.T, svc *Service, itemID string, qty int, date time.Time) domain.Sale {
	t.Helper()
	sale, err := svc.CreateSale(testCtx(), domain.SaleCreateRequest{
		Date:  &date,
		Items: []domain.SaleLineRequest{{ItemID: itemID, Quantity: qty}},
	})
	if err != nil {
		t.Fatalf("create sale on %s: %v", date.Format("2006-01-02"), err)
	}
	return sale
}

func TestSalesReportDayBuckets(t *testing.T) {
	svc := newTestService()
	item := mustCreateItem(t, svc, "Widget", 100, "5.00")

	day1 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 12, 15, 30, 0, 0, time.UTC)
	sellOn(t, svc, item.ID, 2, day1)
	sellOn(t, svc, item.ID, 1, day1)
	sellOn(t, svc, item.ID, 4, day2)

	report, err := svc.SalesReport(testCtx(), domain.SaleFilter{}, GroupByDay)
	if err != nil {
		t.Fatalf("sales report: %v", err)
	}

	if report.Summary.SaleCount != 3 || report.Summary.TotalUnits != 7 {
		t.Fatalf("expected 3 sales / 7 units, got %+v", report.Summary)
	}
	if !report.Summary.TotalRevenue.Equal(decimal.RequireFromString("35.00")) {
		t.Fatalf("expected revenue 35.00, got %s", report.Summary.TotalRevenue)
	}

	if len(report.Breakdown) != 2 {
		t.Fatalf("expected 2 day buckets, got %d", len(report.Breakdown))
	}
	if report.Breakdown[0].Period != "2025-03-10" || report.Breakdown[1].Period != "2025-03-12" {
		t.Fatalf("expected ascending day buckets, got %s / %s", report.Breakdown[0].Period, report.Breakdown[1].Period)
	}
	if report.Breakdown[0].SaleCount != 2 || report.Breakdown[0].Units != 3 {
		t.Fatalf("unexpected first bucket: %+v", report.Breakdown[0])
	}
}

func TestSalesReportWeekAndMonthBuckets(t *testing.T) {
	svc := newTestService()
	item := mustCreateItem(t, svc, "Widget", 100, "5.00")

	// 2025-03-12 is a Wednesday in ISO week 11.
	sellOn(t, svc, item.ID, 1, time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC))
	sellOn(t, svc, item.ID, 1, time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC))

	weekly, err := svc.SalesReport(testCtx(), domain.SaleFilter{}, GroupByWeek)
	if err != nil {
		t.Fatalf("weekly report: %v", err)
	}
	if len(weekly.Breakdown) != 2 || weekly.Breakdown[0].Period != "2025-W11" || weekly.Breakdown[1].Period != "2025-W14" {
		t.Fatalf("unexpected week buckets: %+v", weekly.Breakdown)
	}

	monthly, err := svc.SalesReport(testCtx(), domain.SaleFilter{}, GroupByMonth)
	if err != nil {
		t.Fatalf("monthly report: %v", err)
	}
	if len(monthly.Breakdown) != 2 || monthly.Breakdown[0].Period != "2025-03" || monthly.Breakdown[1].Period != "2025-04" {
		t.Fatalf("unexpected month buckets: %+v", monthly.Breakdown)
	}
}

func TestSalesReportEmptyRange(t *testing.T) {
	svc := newTestService()

	report, err := svc.SalesReport(testCtx(), domain.SaleFilter{}, GroupByDay)
	if err != nil {
		t.Fatalf("sales report: %v", err)
	}
	if report.Summary.SaleCount != 0 || !report.Summary.TotalRevenue.Equal(decimal.Zero) {
		t.Fatalf("expected zero summary, got %+v", report.Summary)
	}
	if report.Breakdown == nil || report.Sales == nil {
		t.Fatalf("expected non-nil empty slices, got %+v", report)
	}
	if len(report.Breakdown) != 0 || len(report.Sales) != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
}

func TestSalesReportRejectsUnknownGroupBy(t *testing.T) {
	svc := newTestService()
	if _, err := svc.SalesReport(testCtx(), domain.SaleFilter{}, "fortnight"); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestItemsReportPerformance(t *testing.T) {
	svc := newTestService()
	fast := mustCreateItem(t, svc, "Fast Mover", 50, "2.00")
	slow := mustCreateItem(t, svc, "Slow Mover", 4, "9.00")

	early := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	late := time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)
	sellOn(t, svc, fast.ID, 10, early)
	sellOn(t, svc, fast.ID, 5, late)

	report, err := svc.ItemsReport(testCtx())
	if err != nil {
		t.Fatalf("items report: %v", err)
	}
	if report.TotalItemKinds != 2 {
		t.Fatalf("expected 2 item kinds, got %d", report.TotalItemKinds)
	}
	if report.LowStockCount != 1 {
		t.Fatalf("expected 1 low-stock item, got %d", report.LowStockCount)
	}

	var fastPerf, slowPerf *domain.ItemPerformance
	for i := range report.Items {
		switch report.Items[i].ItemID {
		case fast.ID:
			fastPerf = &report.Items[i]
		case slow.ID:
			slowPerf = &report.Items[i]
		}
	}
	if fastPerf == nil || slowPerf == nil {
		t.Fatalf("expected both items in report, got %+v", report.Items)
	}

	if fastPerf.TotalSold != 15 || !fastPerf.TotalRevenue.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("unexpected fast mover stats: %+v", fastPerf)
	}
	if fastPerf.LastSold == nil || !fastPerf.LastSold.Equal(late) {
		t.Fatalf("expected last sold %s, got %v", late, fastPerf.LastSold)
	}
	if fastPerf.IsLowStock {
		t.Fatalf("fast mover should not be low stock at quantity %d", fastPerf.Quantity)
	}

	if slowPerf.TotalSold != 0 || slowPerf.LastSold != nil {
		t.Fatalf("unsold item must have zero stats, got %+v", slowPerf)
	}
	if !slowPerf.IsLowStock {
		t.Fatalf("expected slow mover low stock at quantity %d", slowPerf.Quantity)
	}
	if !slowPerf.StockValue.Equal(decimal.RequireFromString("36.00")) {
		t.Fatalf("expected stock value 36.00, got %s", slowPerf.StockValue)
	}
}

func TestCustomerLedgerChronology(t *testing.T) {
	svc := newTestService()
	ctx := testCtx()
	item := mustCreateItem(t, svc, "Widget", 100, "3.00")
	customer, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Budi", Mobile: "0812"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}

	first := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	second := time.Date(2025, 2, 14, 8, 0, 0, 0, time.UTC)
	for _, date := range []time.Time{second, first} {
		d := date
		if _, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
			Date:       &d,
			CustomerID: customer.ID,
			Items:      []domain.SaleLineRequest{{ItemID: item.ID, Quantity: 2}},
		}); err != nil {
			t.Fatalf("create sale: %v", err)
		}
	}
	// Cash sales must not leak into a customer ledger.
	sellOn(t, svc, item.ID, 1, second)

	ledger, err := svc.CustomerLedger(ctx, customer.ID, nil, nil)
	if err != nil {
		t.Fatalf("customer ledger: %v", err)
	}
	if ledger.Summary.SaleCount != 2 {
		t.Fatalf("expected 2 sales in ledger, got %d", ledger.Summary.SaleCount)
	}
	if !ledger.Summary.TotalPurchases.Equal(decimal.RequireFromString("12.00")) {
		t.Fatalf("expected total purchases 12.00, got %s", ledger.Summary.TotalPurchases)
	}
	if len(ledger.Sales) != 2 || !ledger.Sales[0].Date.Equal(first) || !ledger.Sales[1].Date.Equal(second) {
		t.Fatalf("expected chronological sales, got %+v", ledger.Sales)
	}
	if ledger.Summary.FirstPurchase == nil || !ledger.Summary.FirstPurchase.Equal(first) {
		t.Fatalf("unexpected first purchase: %v", ledger.Summary.FirstPurchase)
	}
	if ledger.Summary.LastPurchase == nil || !ledger.Summary.LastPurchase.Equal(second) {
		t.Fatalf("unexpected last purchase: %v", ledger.Summary.LastPurchase)
	}

	if _, err := svc.CustomerLedger(ctx, "cust-missing", nil, nil); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown customer, got %v", err)
	}
}

func TestReportCacheInvalidatedOnCommit(t *testing.T) {
	repo := memory.New()
	reportCache := newMapReportCache()
	svc := New(repo, reportCache, Options{LowStockThreshold: 10, ReportLocation: time.UTC, ReportCacheTTL: time.Minute})

	item := mustCreateItem(t, svc, "Widget", 100, "5.00")
	sellOn(t, svc, item.ID, 2, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	before, err := svc.SalesReport(testCtx(), domain.SaleFilter{}, GroupByDay)
	if err != nil {
		t.Fatalf("sales report: %v", err)
	}
	if reportCache.size() == 0 {
		t.Fatalf("expected report to be cached")
	}

	sellOn(t, svc, item.ID, 3, time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC))

	after, err := svc.SalesReport(testCtx(), domain.SaleFilter{}, GroupByDay)
	if err != nil {
		t.Fatalf("sales report after second sale: %v", err)
	}
	if after.Summary.SaleCount != before.Summary.SaleCount+1 {
		t.Fatalf("expected fresh report after invalidation, got %+v", after.Summary)
	}
	if !after.Summary.TotalRevenue.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("expected revenue 25.00, got %s", after.Summary.TotalRevenue)
	}
}

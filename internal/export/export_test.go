package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"shopledger/backend/internal/domain"
)

func sampleSalesReport() domain.SalesReport {
	date := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	return domain.SalesReport{
		Summary: domain.SalesSummary{
			TotalRevenue: decimal.RequireFromString("30.00"),
			SaleCount:    1,
			TotalUnits:   3,
		},
		Breakdown: []domain.SalesBucket{
			{Period: "2025-03-10", Revenue: decimal.RequireFromString("30.00"), SaleCount: 1, Units: 3},
		},
		Sales: []domain.Sale{
			{
				ID:            "sale-abc123",
				Date:          date,
				CustomerName:  "Cash Sale",
				IsCashSale:    true,
				PaymentMethod: domain.PaymentCash,
				TotalAmount:   decimal.RequireFromString("30.00"),
				Items: []domain.SaleLine{
					{ItemID: "item-1", Name: "Widget", Quantity: 3, PriceAtSale: decimal.RequireFromString("10.00"), Subtotal: decimal.RequireFromString("30.00")},
				},
			},
		},
	}
}

func TestSalesReportExcel(t *testing.T) {
	payload, err := SalesReportExcel(sampleSalesReport())
	if err != nil {
		t.Fatalf("render excel: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	header, err := f.GetCellValue("Sheet1", "A1")
	if err != nil || header != "Date" {
		t.Fatalf("expected header Date in A1, got %q (%v)", header, err)
	}
	saleID, _ := f.GetCellValue("Sheet1", "B2")
	if saleID != "sale-abc123" {
		t.Fatalf("expected sale id in B2, got %q", saleID)
	}
	customer, _ := f.GetCellValue("Sheet1", "C2")
	if customer != "Cash Sale" {
		t.Fatalf("expected customer in C2, got %q", customer)
	}
	total, _ := f.GetCellValue("Sheet1", "G2")
	if total != "30" {
		t.Fatalf("expected total 30 in G2, got %q", total)
	}
	label, _ := f.GetCellValue("Sheet1", "A4")
	if label != "Total revenue" {
		t.Fatalf("expected summary label in A4, got %q", label)
	}
}

func TestItemsReportExcel(t *testing.T) {
	report := domain.ItemsReport{
		Items: []domain.ItemPerformance{
			{
				ItemID:       "item-1",
				Name:         "Widget",
				Quantity:     4,
				Price:        decimal.RequireFromString("9.00"),
				StockValue:   decimal.RequireFromString("36.00"),
				TotalSold:    15,
				TotalRevenue: decimal.RequireFromString("135.00"),
				IsLowStock:   true,
			},
		},
		TotalValue:     decimal.RequireFromString("36.00"),
		LowStockCount:  1,
		TotalItemKinds: 1,
	}

	payload, err := ItemsReportExcel(report)
	if err != nil {
		t.Fatalf("render excel: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	name, _ := f.GetCellValue("Sheet1", "B2")
	if name != "Widget" {
		t.Fatalf("expected item name in B2, got %q", name)
	}
	lowStock, _ := f.GetCellValue("Sheet1", "H2")
	if lowStock != "TRUE" {
		t.Fatalf("expected low stock TRUE in H2, got %q", lowStock)
	}
	label, _ := f.GetCellValue("Sheet1", "A4")
	if label != "Inventory value" {
		t.Fatalf("expected summary label in A4, got %q", label)
	}
}

func TestCustomerLedgerExcel(t *testing.T) {
	date := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	ledger := domain.CustomerLedger{
		Customer: domain.Customer{ID: "cust-1", Name: "Budi", Mobile: "0812"},
		Summary: domain.LedgerSummary{
			TotalPurchases: decimal.RequireFromString("6.00"),
			SaleCount:      1,
		},
		Sales: []domain.Sale{
			{
				ID:            "sale-1",
				Date:          date,
				PaymentMethod: domain.PaymentCredit,
				TotalAmount:   decimal.RequireFromString("6.00"),
				Items: []domain.SaleLine{
					{ItemID: "item-1", Name: "Widget", Quantity: 2, PriceAtSale: decimal.RequireFromString("3.00"), Subtotal: decimal.RequireFromString("6.00")},
				},
			},
		},
	}

	payload, err := CustomerLedgerExcel(ledger)
	if err != nil {
		t.Fatalf("render excel: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	name, _ := f.GetCellValue("Sheet1", "B1")
	if name != "Budi" {
		t.Fatalf("expected customer name in B1, got %q", name)
	}
	item, _ := f.GetCellValue("Sheet1", "D6")
	if item != "Widget" {
		t.Fatalf("expected line item in D6, got %q", item)
	}
}

func TestSalesReportHTML(t *testing.T) {
	payload, err := SalesReportHTML(sampleSalesReport())
	if err != nil {
		t.Fatalf("render html: %v", err)
	}
	page := string(payload)
	for _, want := range []string{"Sales Report", "2025-03-10", "sale-abc123", "Cash Sale", "30"} {
		if !strings.Contains(page, want) {
			t.Fatalf("expected page to contain %q", want)
		}
	}
}

func TestCustomerLedgerHTMLEscapesNames(t *testing.T) {
	ledger := domain.CustomerLedger{
		Customer: domain.Customer{Name: "<script>alert(1)</script>"},
		Summary:  domain.LedgerSummary{TotalPurchases: decimal.Zero},
	}
	payload, err := CustomerLedgerHTML(ledger)
	if err != nil {
		t.Fatalf("render html: %v", err)
	}
	if strings.Contains(string(payload), "<script>alert(1)</script>") {
		t.Fatalf("customer name must be escaped in html output")
	}
}

func TestFilename(t *testing.T) {
	name := Filename("sales", "xlsx")
	if !strings.HasPrefix(name, "sales-report-") || !strings.HasSuffix(name, ".xlsx") {
		t.Fatalf("unexpected filename %q", name)
	}
	stamp := time.Now().UTC().Format("2006-01-02")
	if !strings.Contains(name, stamp) {
		t.Fatalf("expected filename %q to contain date %s", name, stamp)
	}
}

// Package export renders aggregated reports into downloadable documents:
// Excel workbooks for spreadsheet use and HTML pages for printing.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"shopledger/backend/internal/domain"
)

const sheetName = "Sheet1"

func SalesReportExcel(report domain.SalesReport) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	headers := []string{"Date", "Sale ID", "Customer", "Payment", "Lines", "Units", "Total"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, h)
	}

	row := 2
	for _, sale := range report.Sales {
		units := 0
		for _, line := range sale.Items {
			units += line.Quantity
		}
		setRow(f, row,
			sale.Date.Format("2006-01-02"),
			sale.ID,
			sale.CustomerName,
			sale.PaymentMethod,
			len(sale.Items),
			units,
			sale.TotalAmount.InexactFloat64(),
		)
		row++
	}

	row++
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), "Total revenue")
	f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), report.Summary.TotalRevenue.InexactFloat64())
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", row+1), "Sale count")
	f.SetCellValue(sheetName, fmt.Sprintf("G%d", row+1), report.Summary.SaleCount)

	return writeBuffer(f)
}

func ItemsReportExcel(report domain.ItemsReport) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	headers := []string{"Item ID", "Name", "In Stock", "Unit Price", "Stock Value", "Total Sold", "Revenue", "Low Stock", "Last Sold"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, h)
	}

	row := 2
	for _, item := range report.Items {
		lastSold := ""
		if item.LastSold != nil {
			lastSold = item.LastSold.Format("2006-01-02")
		}
		setRow(f, row,
			item.ItemID,
			item.Name,
			item.Quantity,
			item.Price.InexactFloat64(),
			item.StockValue.InexactFloat64(),
			item.TotalSold,
			item.TotalRevenue.InexactFloat64(),
			item.IsLowStock,
			lastSold,
		)
		row++
	}

	row++
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), "Inventory value")
	f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), report.TotalValue.InexactFloat64())
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", row+1), "Low stock items")
	f.SetCellValue(sheetName, fmt.Sprintf("E%d", row+1), report.LowStockCount)

	return writeBuffer(f)
}

func CustomerLedgerExcel(ledger domain.CustomerLedger) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	f.SetCellValue(sheetName, "A1", "Customer")
	f.SetCellValue(sheetName, "B1", ledger.Customer.Name)
	f.SetCellValue(sheetName, "A2", "Mobile")
	f.SetCellValue(sheetName, "B2", ledger.Customer.Mobile)
	f.SetCellValue(sheetName, "A3", "Total purchases")
	f.SetCellValue(sheetName, "B3", ledger.Summary.TotalPurchases.InexactFloat64())

	headers := []string{"Date", "Sale ID", "Payment", "Item", "Qty", "Unit Price", "Subtotal"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 5)
		f.SetCellValue(sheetName, cell, h)
	}

	row := 6
	for _, sale := range ledger.Sales {
		for _, line := range sale.Items {
			setRow(f, row,
				sale.Date.Format("2006-01-02"),
				sale.ID,
				sale.PaymentMethod,
				line.Name,
				line.Quantity,
				line.PriceAtSale.InexactFloat64(),
				line.Subtotal.InexactFloat64(),
			)
			row++
		}
	}

	return writeBuffer(f)
}

func setRow(f *excelize.File, row int, values ...any) {
	for i, value := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		f.SetCellValue(sheetName, cell, value)
	}
}

func writeBuffer(f *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Filename builds the attachment name for an export, stamped with the
// generation date.
func Filename(report string, ext string) string {
	return fmt.Sprintf("%s-report-%s.%s", report, time.Now().UTC().Format("2006-01-02"), ext)
}

package export

import (
	"bytes"
	"html/template"

	"shopledger/backend/internal/domain"
)

// The HTML renditions double as the printable/PDF-ready report pages.
// All user-controlled fields are auto-escaped by html/template.

var salesReportHTMLTmpl = template.Must(template.New("sales-report").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Sales Report</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    h2, h3 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>Sales Report</h2>
  <p>Total revenue: {{.Summary.TotalRevenue}} | Sales: {{.Summary.SaleCount}} | Units: {{.Summary.TotalUnits}}</p>

  <h3>Breakdown</h3>
  <table>
    <thead><tr><th>Period</th><th>Sales</th><th>Units</th><th>Revenue</th></tr></thead>
    <tbody>{{range .Breakdown}}<tr><td>{{.Period}}</td><td style="text-align:right;">{{.SaleCount}}</td><td style="text-align:right;">{{.Units}}</td><td style="text-align:right;">{{.Revenue}}</td></tr>{{end}}</tbody>
  </table>

  <h3>Sales</h3>
  <table>
    <thead><tr><th>Date</th><th>ID</th><th>Customer</th><th>Payment</th><th>Total</th></tr></thead>
    <tbody>{{range .Sales}}<tr><td>{{.Date.Format "2006-01-02"}}</td><td>{{.ID}}</td><td>{{.CustomerName}}</td><td>{{.PaymentMethod}}</td><td style="text-align:right;">{{.TotalAmount}}</td></tr>{{end}}</tbody>
  </table>
</body>
</html>
`))

var itemsReportHTMLTmpl = template.Must(template.New("items-report").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Inventory Report</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    h2 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>Inventory Report</h2>
  <p>Inventory value: {{.TotalValue}} | Item kinds: {{.TotalItemKinds}} | Low stock: {{.LowStockCount}}</p>

  <table>
    <thead><tr><th>Name</th><th>In Stock</th><th>Unit Price</th><th>Stock Value</th><th>Total Sold</th><th>Revenue</th><th>Low Stock</th></tr></thead>
    <tbody>{{range .Items}}<tr><td>{{.Name}}</td><td style="text-align:right;">{{.Quantity}}</td><td style="text-align:right;">{{.Price}}</td><td style="text-align:right;">{{.StockValue}}</td><td style="text-align:right;">{{.TotalSold}}</td><td style="text-align:right;">{{.TotalRevenue}}</td><td>{{if .IsLowStock}}yes{{end}}</td></tr>{{end}}</tbody>
  </table>
</body>
</html>
`))

var customerLedgerHTMLTmpl = template.Must(template.New("customer-ledger").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Customer Ledger {{.Customer.Name}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    h2 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>Customer Ledger: {{.Customer.Name}}</h2>
  <p>Mobile: {{.Customer.Mobile}} | Purchases: {{.Summary.SaleCount}} | Total: {{.Summary.TotalPurchases}}</p>

  <table>
    <thead><tr><th>Date</th><th>Sale</th><th>Payment</th><th>Item</th><th>Qty</th><th>Unit Price</th><th>Subtotal</th></tr></thead>
    <tbody>{{range .Sales}}{{$sale := .}}{{range .Items}}<tr><td>{{$sale.Date.Format "2006-01-02"}}</td><td>{{$sale.ID}}</td><td>{{$sale.PaymentMethod}}</td><td>{{.Name}}</td><td style="text-align:right;">{{.Quantity}}</td><td style="text-align:right;">{{.PriceAtSale}}</td><td style="text-align:right;">{{.Subtotal}}</td></tr>{{end}}{{end}}</tbody>
  </table>
</body>
</html>
`))

func SalesReportHTML(report domain.SalesReport) ([]byte, error) {
	return renderHTML(salesReportHTMLTmpl, report)
}

func ItemsReportHTML(report domain.ItemsReport) ([]byte, error) {
	return renderHTML(itemsReportHTMLTmpl, report)
}

func CustomerLedgerHTML(ledger domain.CustomerLedger) ([]byte, error) {
	return renderHTML(customerLedgerHTMLTmpl, ledger)
}

func renderHTML(tmpl *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

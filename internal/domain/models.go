package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentCash   = "cash"
	PaymentCredit = "credit"

	RoleAdmin = "admin"
	RoleStaff = "staff"

	// CashSaleLabel is the frozen customer label for sales committed
	// without a customer reference.
	CashSaleLabel = "Cash Sale"
)

type InventoryItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category,omitempty"`
	CreatedBy   string          `json:"created_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ItemCreateRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
}

type ItemUpdateRequest struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Quantity    *int             `json:"quantity,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Category    *string          `json:"category,omitempty"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Mobile    string    `json:"mobile,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Mobile  string `json:"mobile"`
	Email   string `json:"email"`
}

type CustomerUpdateRequest struct {
	Name    *string `json:"name,omitempty"`
	Address *string `json:"address,omitempty"`
	Mobile  *string `json:"mobile,omitempty"`
	Email   *string `json:"email,omitempty"`
}

// SaleLine is a frozen snapshot of one sold item: name and unit price are
// captured at commit time and never re-read from the inventory ledger.
type SaleLine struct {
	ItemID      string          `json:"item_id"`
	Name        string          `json:"name"`
	Quantity    int             `json:"quantity"`
	PriceAtSale decimal.Decimal `json:"price_at_sale"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type Sale struct {
	ID            string          `json:"id"`
	Date          time.Time       `json:"date"`
	CustomerID    string          `json:"customer_id,omitempty"`
	CustomerName  string          `json:"customer_name"`
	IsCashSale    bool            `json:"is_cash_sale"`
	Items         []SaleLine      `json:"items"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentMethod string          `json:"payment_method"`
	CreatedBy     string          `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type SaleLineRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type SaleCreateRequest struct {
	Date          *time.Time        `json:"date,omitempty"`
	CustomerID    string            `json:"customer_id,omitempty"`
	PaymentMethod string            `json:"payment_method"`
	Items         []SaleLineRequest `json:"items"`
}

// SaleUpdateRequest carries the only mutable sale fields. Items and
// customer references are frozen at commit; the handler rejects requests
// that try to change them.
type SaleUpdateRequest struct {
	Date          *time.Time `json:"date,omitempty"`
	PaymentMethod *string    `json:"payment_method,omitempty"`
}

type SaleFilter struct {
	From       *time.Time
	To         *time.Time
	CustomerID string
	ItemID     string
	Page       int
	Limit      int
}

type SaleList struct {
	Sales []Sale `json:"sales"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}

type ItemList struct {
	Items []InventoryItem `json:"items"`
	Total int             `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

type CustomerList struct {
	Customers []Customer `json:"customers"`
	Total     int        `json:"total"`
	Page      int        `json:"page"`
	Limit     int        `json:"limit"`
}

type SalesSummary struct {
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	SaleCount    int             `json:"sale_count"`
	TotalUnits   int             `json:"total_units"`
}

// SalesBucket is one period of the sales breakdown. Period is the bucket
// key: "2025-03-14" for day grouping, "2025-W11" for ISO week grouping,
// "2025-03" for month grouping.
type SalesBucket struct {
	Period    string          `json:"period"`
	Revenue   decimal.Decimal `json:"revenue"`
	SaleCount int             `json:"sale_count"`
	Units     int             `json:"units"`
}

type SalesReport struct {
	Summary   SalesSummary  `json:"summary"`
	Breakdown []SalesBucket `json:"breakdown"`
	Sales     []Sale        `json:"sales"`
}

type ItemPerformance struct {
	ItemID       string          `json:"item_id"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	StockValue   decimal.Decimal `json:"stock_value"`
	TotalSold    int             `json:"total_sold"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	IsLowStock   bool            `json:"is_low_stock"`
	LastSold     *time.Time      `json:"last_sold,omitempty"`
}

type ItemsReport struct {
	Items          []ItemPerformance `json:"items"`
	TotalValue     decimal.Decimal   `json:"total_value"`
	LowStockCount  int               `json:"low_stock_count"`
	TotalItemKinds int               `json:"total_item_kinds"`
}

type LedgerSummary struct {
	TotalPurchases decimal.Decimal `json:"total_purchases"`
	SaleCount      int             `json:"sale_count"`
	FirstPurchase  *time.Time      `json:"first_purchase,omitempty"`
	LastPurchase   *time.Time      `json:"last_purchase,omitempty"`
}

type CustomerLedger struct {
	Customer Customer      `json:"customer"`
	Summary  LedgerSummary `json:"summary"`
	Sales    []Sale        `json:"sales"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type Actor struct {
	Username string
	Role     string
}

type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type EmailReportRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message,omitempty"`
}

type EmailReportResponse struct {
	Sent      bool   `json:"sent"`
	MessageID string `json:"message_id,omitempty"`
}

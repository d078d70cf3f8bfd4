package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopledger/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation failed")
)

// StockShortageError reports a reservation that could not be satisfied.
// Available is the quantity on hand at the moment the reservation failed.
type StockShortageError struct {
	ItemID    string
	Name      string
	Requested int
	Available int
}

func (e *StockShortageError) Error() string {
	return fmt.Sprintf("insufficient stock for item %s (%s): requested %d, available %d", e.ItemID, e.Name, e.Requested, e.Available)
}

func (e *StockShortageError) Unwrap() error {
	return ErrInsufficientStock
}

// LineError ties a sale commit failure to the zero-based index of the
// offending line in the submitted request.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

type Repository interface {
	CreateItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	GetItem(ctx context.Context, id string) (*domain.InventoryItem, error)
	UpdateItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	DeleteItem(ctx context.Context, id string) error
	ListItems(ctx context.Context, page int, limit int) (*domain.ItemList, error)
	SearchItems(ctx context.Context, query string) ([]domain.InventoryItem, error)

	// ReserveStock decrements the item quantity by qty only when enough
	// stock is on hand. The check and the decrement are one atomic step;
	// a failed reservation leaves the quantity untouched.
	ReserveStock(ctx context.Context, itemID string, qty int) error
	// RestoreStock adds qty back to the item quantity. Returns
	// ErrNotFound when the item no longer exists; the caller decides
	// whether that matters.
	RestoreStock(ctx context.Context, itemID string, qty int) error

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
	ListCustomers(ctx context.Context, page int, limit int, search string) (*domain.CustomerList, error)

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) (*domain.SaleList, error)
	ListSalesBetween(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
	UpdateSaleMeta(ctx context.Context, id string, date *time.Time, paymentMethod *string) (*domain.Sale, error)
	// DeleteSale restores stock for every line whose item still exists
	// and removes the record as one atomic unit. A line whose item was
	// deleted after the sale is skipped without failing the deletion.
	DeleteSale(ctx context.Context, id string) (*domain.Sale, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}

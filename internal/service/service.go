package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shopledger/backend/internal/cache"
	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/store"
	"shopledger/backend/internal/xid"
)

const reportCachePrefix = "reports:"

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Options carries the behavior knobs resolved from configuration.
type Options struct {
	LowStockThreshold      int
	ReportLocation         *time.Location
	ReportCacheTTL         time.Duration
	EnforceUniqueCustomers bool
	EnforceUniqueItems     bool
}

type Service struct {
	repo    store.Repository
	reports cache.ReportCache
	opts    Options
}

func New(repo store.Repository, reports cache.ReportCache, opts Options) *Service {
	if opts.LowStockThreshold < 0 {
		opts.LowStockThreshold = 10
	}
	if opts.ReportLocation == nil {
		opts.ReportLocation = time.UTC
	}
	if opts.ReportCacheTTL < time.Second {
		opts.ReportCacheTTL = time.Minute
	}

	return &Service{
		repo:    repo,
		reports: reports,
		opts:    opts,
	}
}

func (s *Service) CreateItem(ctx context.Context, req domain.ItemCreateRequest) (domain.InventoryItem, error) {
	actor, _ := ActorFromContext(ctx)

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" || req.Quantity < 0 || req.Price.IsNegative() {
		return domain.InventoryItem{}, store.ErrValidation
	}

	if s.opts.EnforceUniqueItems {
		if err := s.checkItemNameFree(ctx, req.Name, ""); err != nil {
			return domain.InventoryItem{}, err
		}
	}

	item := domain.InventoryItem{
		ID:          xid.New("item"),
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Quantity:    req.Quantity,
		Price:       req.Price,
		Category:    req.Category,
		CreatedBy:   actor.Username,
	}

	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	s.logAudit(ctx, "item_create", "item", created.ID, fmt.Sprintf("name=%s,quantity=%d,price=%s", created.Name, created.Quantity, created.Price))
	return *created, nil
}

func (s *Service) GetItem(ctx context.Context, id string) (domain.InventoryItem, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return *item, nil
}

func (s *Service) UpdateItem(ctx context.Context, id string, req domain.ItemUpdateRequest) (domain.InventoryItem, error) {
	existing, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.InventoryItem{}, store.ErrValidation
		}
		if s.opts.EnforceUniqueItems && !strings.EqualFold(name, existing.Name) {
			if err := s.checkItemNameFree(ctx, name, id); err != nil {
				return domain.InventoryItem{}, err
			}
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return domain.InventoryItem{}, store.ErrValidation
		}
		updated.Quantity = *req.Quantity
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return domain.InventoryItem{}, store.ErrValidation
		}
		updated.Price = *req.Price
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}

	saved, err := s.repo.UpdateItem(ctx, updated)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	s.logAudit(ctx, "item_update", "item", saved.ID, fmt.Sprintf("quantity=%d,price=%s", saved.Quantity, saved.Price))
	return *saved, nil
}

func (s *Service) DeleteItem(ctx context.Context, id string) error {
	if err := s.repo.DeleteItem(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "item_delete", "item", id, "")
	s.invalidateReports(ctx)
	return nil
}

func (s *Service) ListItems(ctx context.Context, page int, limit int) (domain.ItemList, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	list, err := s.repo.ListItems(ctx, page, limit)
	if err != nil {
		return domain.ItemList{}, err
	}
	return *list, nil
}

func (s *Service) SearchItems(ctx context.Context, query string) ([]domain.InventoryItem, error) {
	return s.repo.SearchItems(ctx, query)
}

func (s *Service) checkItemNameFree(ctx context.Context, name string, excludeID string) error {
	matches, err := s.repo.SearchItems(ctx, name)
	if err != nil {
		return err
	}
	for _, m := range matches {
		if m.ID != excludeID && strings.EqualFold(m.Name, name) {
			return fmt.Errorf("item name %q already exists: %w", name, store.ErrConflict)
		}
	}
	return nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	actor, _ := ActorFromContext(ctx)

	req.Name = strings.TrimSpace(req.Name)
	req.Mobile = strings.TrimSpace(req.Mobile)
	if req.Name == "" {
		return domain.Customer{}, store.ErrValidation
	}

	if s.opts.EnforceUniqueCustomers {
		if err := s.checkCustomerFree(ctx, req.Name, req.Mobile, ""); err != nil {
			return domain.Customer{}, err
		}
	}

	customer := domain.Customer{
		ID:        xid.New("cust"),
		Name:      req.Name,
		Address:   strings.TrimSpace(req.Address),
		Mobile:    req.Mobile,
		Email:     strings.TrimSpace(req.Email),
		CreatedBy: actor.Username,
	}

	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_create", "customer", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpdateRequest) (domain.Customer, error) {
	existing, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Customer{}, store.ErrValidation
		}
		updated.Name = name
	}
	if req.Address != nil {
		updated.Address = strings.TrimSpace(*req.Address)
	}
	if req.Mobile != nil {
		updated.Mobile = strings.TrimSpace(*req.Mobile)
	}
	if req.Email != nil {
		updated.Email = strings.TrimSpace(*req.Email)
	}

	if s.opts.EnforceUniqueCustomers && (updated.Name != existing.Name || updated.Mobile != existing.Mobile) {
		if err := s.checkCustomerFree(ctx, updated.Name, updated.Mobile, id); err != nil {
			return domain.Customer{}, err
		}
	}

	saved, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_update", "customer", saved.ID, "name="+saved.Name)
	return *saved, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "customer_delete", "customer", id, "")
	return nil
}

func (s *Service) ListCustomers(ctx context.Context, page int, limit int, search string) (domain.CustomerList, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	list, err := s.repo.ListCustomers(ctx, page, limit, search)
	if err != nil {
		return domain.CustomerList{}, err
	}
	return *list, nil
}

func (s *Service) checkCustomerFree(ctx context.Context, name string, mobile string, excludeID string) error {
	list, err := s.repo.ListCustomers(ctx, 1, 100, name)
	if err != nil {
		return err
	}
	for _, c := range list.Customers {
		if c.ID != excludeID && strings.EqualFold(c.Name, name) && c.Mobile == mobile {
			return fmt.Errorf("customer %q with mobile %q already exists: %w", name, mobile, store.ErrConflict)
		}
	}
	return nil
}

// CreateSale runs the sale commit: validate every line, reserve stock in
// submission order, price from the reservation-time snapshot, persist.
// Any failure after the first successful reservation rolls the reserved
// quantities back in reverse order, so a rejected sale never leaves a
// partial decrement behind.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	actor, _ := ActorFromContext(ctx)

	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentCash
	}
	if req.PaymentMethod != domain.PaymentCash && req.PaymentMethod != domain.PaymentCredit {
		return domain.Sale{}, fmt.Errorf("unknown payment method %q: %w", req.PaymentMethod, store.ErrValidation)
	}
	if len(req.Items) == 0 {
		return domain.Sale{}, fmt.Errorf("sale requires at least one line: %w", store.ErrValidation)
	}
	for i, line := range req.Items {
		if strings.TrimSpace(line.ItemID) == "" || line.Quantity < 1 {
			return domain.Sale{}, &store.LineError{Line: i, Err: store.ErrValidation}
		}
	}

	// Resolve the customer before touching stock. A dangling customer
	// reference fails the whole sale.
	customerName := domain.CashSaleLabel
	isCashSale := true
	if req.CustomerID != "" {
		customer, err := s.repo.GetCustomer(ctx, req.CustomerID)
		if err != nil {
			return domain.Sale{}, fmt.Errorf("customer %s: %w", req.CustomerID, err)
		}
		customerName = customer.Name
		isCashSale = false
	}

	type reserved struct {
		itemID string
		qty    int
	}
	undo := make([]reserved, 0, len(req.Items))
	rollback := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			if err := s.repo.RestoreStock(ctx, undo[i].itemID, undo[i].qty); err != nil {
				log.Printf("[service] WARN: rollback failed to restore stock item=%s qty=%d: %v", undo[i].itemID, undo[i].qty, err)
			}
		}
	}

	lines := make([]domain.SaleLine, 0, len(req.Items))
	total := decimal.Zero
	for i, lineReq := range req.Items {
		itemID := strings.TrimSpace(lineReq.ItemID)

		item, err := s.repo.GetItem(ctx, itemID)
		if err != nil {
			rollback()
			return domain.Sale{}, &store.LineError{Line: i, Err: err}
		}
		if err := s.repo.ReserveStock(ctx, itemID, lineReq.Quantity); err != nil {
			rollback()
			return domain.Sale{}, &store.LineError{Line: i, Err: err}
		}
		undo = append(undo, reserved{itemID: itemID, qty: lineReq.Quantity})

		subtotal := item.Price.Mul(decimal.NewFromInt(int64(lineReq.Quantity)))
		lines = append(lines, domain.SaleLine{
			ItemID:      itemID,
			Name:        item.Name,
			Quantity:    lineReq.Quantity,
			PriceAtSale: item.Price,
			Subtotal:    subtotal,
		})
		total = total.Add(subtotal)
	}

	now := time.Now().UTC()
	date := now
	if req.Date != nil {
		date = req.Date.UTC()
	}
	sale := domain.Sale{
		ID:            xid.New("sale"),
		Date:          date,
		CustomerID:    req.CustomerID,
		CustomerName:  customerName,
		IsCashSale:    isCashSale,
		Items:         lines,
		TotalAmount:   total,
		PaymentMethod: req.PaymentMethod,
		CreatedBy:     actor.Username,
		CreatedAt:     now,
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		rollback()
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "sale_create", "sale", created.ID, fmt.Sprintf("total=%s,lines=%d,customer=%s", created.TotalAmount, len(created.Items), created.CustomerName))
	s.invalidateReports(ctx)
	return *created, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) (domain.SaleList, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}
	list, err := s.repo.ListSales(ctx, filter)
	if err != nil {
		return domain.SaleList{}, err
	}
	return *list, nil
}

// UpdateSale touches only the mutable sale metadata. Line items, totals
// and the customer snapshot are frozen at commit.
func (s *Service) UpdateSale(ctx context.Context, id string, req domain.SaleUpdateRequest) (domain.Sale, error) {
	if req.Date == nil && req.PaymentMethod == nil {
		return domain.Sale{}, fmt.Errorf("nothing to update: %w", store.ErrValidation)
	}
	if req.PaymentMethod != nil && *req.PaymentMethod != domain.PaymentCash && *req.PaymentMethod != domain.PaymentCredit {
		return domain.Sale{}, fmt.Errorf("unknown payment method %q: %w", *req.PaymentMethod, store.ErrValidation)
	}

	updated, err := s.repo.UpdateSaleMeta(ctx, id, req.Date, req.PaymentMethod)
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "sale_update", "sale", updated.ID, fmt.Sprintf("date=%s,payment=%s", updated.Date.Format(time.RFC3339), updated.PaymentMethod))
	s.invalidateReports(ctx)
	return *updated, nil
}

// DeleteSale removes the record and puts the sold quantities back on the
// shelf. The repository does both in one atomic unit; lines whose item
// was deleted in the meantime are skipped.
func (s *Service) DeleteSale(ctx context.Context, id string) (domain.Sale, error) {
	deleted, err := s.repo.DeleteSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "sale_delete", "sale", deleted.ID, fmt.Sprintf("total=%s,lines=%d", deleted.TotalAmount, len(deleted.Items)))
	s.invalidateReports(ctx)
	return *deleted, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 || limit > 500 {
		limit = 200
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) invalidateReports(ctx context.Context) {
	if err := s.reports.Invalidate(ctx, reportCachePrefix); err != nil {
		log.Printf("[service] WARN: failed to invalidate report cache: %v", err)
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		Actor:      actor.Username,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

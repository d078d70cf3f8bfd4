package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/store"
	"shopledger/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	itemsByID       map[string]domain.InventoryItem
	customersByID   map[string]domain.Customer
	salesByID       map[string]domain.Sale
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"staff", staffPwd, domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		itemsByID:       make(map[string]domain.InventoryItem),
		customersByID:   make(map[string]domain.Customer),
		salesByID:       make(map[string]domain.Sale),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	items := []domain.InventoryItem{
		{ID: "item-seed-01", Name: "Copy Paper A4", Description: "500 sheet ream", Quantity: 80, Price: decimal.RequireFromString("4.50"), Category: "office"},
		{ID: "item-seed-02", Name: "Stapler", Description: "Desktop stapler", Quantity: 25, Price: decimal.RequireFromString("7.25"), Category: "office"},
		{ID: "item-seed-03", Name: "Ballpoint Pen", Description: "Blue ink, box of 12", Quantity: 140, Price: decimal.RequireFromString("3.10"), Category: "stationery"},
		{ID: "item-seed-04", Name: "Notebook", Description: "A5 ruled", Quantity: 60, Price: decimal.RequireFromString("2.80"), Category: "stationery"},
		{ID: "item-seed-05", Name: "Desk Lamp", Description: "LED, adjustable arm", Quantity: 8, Price: decimal.RequireFromString("19.90"), Category: "electronics"},
		{ID: "item-seed-06", Name: "USB Cable", Description: "1m USB-C", Quantity: 45, Price: decimal.RequireFromString("5.60"), Category: "electronics"},
	}
	customers := []domain.Customer{
		{ID: "cust-seed-01", Name: "Budi Santoso", Address: "Jl. Merdeka 4", Mobile: "0812-1111-2222", Email: "budi@example.com"},
		{ID: "cust-seed-02", Name: "Sari Dewi", Address: "Jl. Sudirman 18", Mobile: "0812-3333-4444", Email: "sari@example.com"},
	}

	s := New()
	for _, it := range items {
		it.CreatedAt = now
		it.UpdatedAt = now
		s.itemsByID[it.ID] = it
	}
	for _, c := range customers {
		c.CreatedAt = now
		s.customersByID[c.ID] = c
	}
	return s
}

func (s *Store) CreateItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.Name == "" || item.Quantity < 0 || item.Price.IsNegative() {
		return nil, store.ErrValidation
	}
	if item.ID == "" {
		item.ID = xid.New("item")
	}
	if _, exists := s.itemsByID[item.ID]; exists {
		return nil, store.ErrConflict
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	s.itemsByID[item.ID] = item
	created := item
	return &created, nil
}

func (s *Store) GetItem(_ context.Context, id string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.itemsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyItem := item
	return &copyItem, nil
}

func (s *Store) UpdateItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" || item.Name == "" || item.Quantity < 0 || item.Price.IsNegative() {
		return nil, store.ErrValidation
	}
	current, exists := s.itemsByID[item.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	item.CreatedAt = current.CreatedAt
	item.CreatedBy = current.CreatedBy
	item.UpdatedAt = time.Now().UTC()

	s.itemsByID[item.ID] = item
	updated := item
	return &updated, nil
}

func (s *Store) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.itemsByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.itemsByID, id)
	return nil
}

func (s *Store) ListItems(_ context.Context, page int, limit int) (*domain.ItemList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.InventoryItem, 0, len(s.itemsByID))
	for _, it := range s.itemsByID {
		items = append(items, it)
	}
	slices.SortFunc(items, func(a, b domain.InventoryItem) int {
		return cmpString(a.Name, b.Name)
	})

	total := len(items)
	items = paginate(items, page, limit)
	return &domain.ItemList{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func (s *Store) SearchItems(_ context.Context, query string) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query))
	result := make([]domain.InventoryItem, 0, 16)
	for _, it := range s.itemsByID {
		if needle == "" ||
			strings.Contains(strings.ToLower(it.Name), needle) ||
			strings.Contains(strings.ToLower(it.Description), needle) {
			result = append(result, it)
		}
	}
	slices.SortFunc(result, func(a, b domain.InventoryItem) int {
		return cmpString(a.Name, b.Name)
	})
	return result, nil
}

func (s *Store) ReserveStock(_ context.Context, itemID string, qty int) error {
	if qty < 1 {
		return store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.itemsByID[itemID]
	if !exists {
		return store.ErrNotFound
	}
	if item.Quantity < qty {
		return &store.StockShortageError{
			ItemID:    itemID,
			Name:      item.Name,
			Requested: qty,
			Available: item.Quantity,
		}
	}
	item.Quantity -= qty
	item.UpdatedAt = time.Now().UTC()
	s.itemsByID[itemID] = item
	return nil
}

func (s *Store) RestoreStock(_ context.Context, itemID string, qty int) error {
	if qty < 1 {
		return store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.itemsByID[itemID]
	if !exists {
		return store.ErrNotFound
	}
	item.Quantity += qty
	item.UpdatedAt = time.Now().UTC()
	s.itemsByID[itemID] = item
	return nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.Name == "" {
		return nil, store.ErrValidation
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if _, exists := s.customersByID[customer.ID]; exists {
		return nil, store.ErrConflict
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	s.customersByID[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" || customer.Name == "" {
		return nil, store.ErrValidation
	}
	current, exists := s.customersByID[customer.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	customer.CreatedAt = current.CreatedAt
	customer.CreatedBy = current.CreatedBy

	s.customersByID[customer.ID] = customer
	updated := customer
	return &updated, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customersByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.customersByID, id)
	return nil
}

func (s *Store) ListCustomers(_ context.Context, page int, limit int, search string) (*domain.CustomerList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(search))
	customers := make([]domain.Customer, 0, len(s.customersByID))
	for _, c := range s.customersByID {
		if needle != "" &&
			!strings.Contains(strings.ToLower(c.Name), needle) &&
			!strings.Contains(strings.ToLower(c.Mobile), needle) {
			continue
		}
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpString(a.Name, b.Name)
	})

	total := len(customers)
	customers = paginate(customers, page, limit)
	return &domain.CustomerList{Customers: customers, Total: total, Page: page, Limit: limit}, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.Items) == 0 || sale.PaymentMethod == "" {
		return nil, store.ErrValidation
	}
	sum := decimal.Zero
	for _, line := range sale.Items {
		if line.ItemID == "" || line.Quantity < 1 {
			return nil, store.ErrValidation
		}
		sum = sum.Add(line.Subtotal)
	}
	if !sum.Equal(sale.TotalAmount) {
		return nil, store.ErrValidation
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if _, exists := s.salesByID[sale.ID]; exists {
		return nil, store.ErrConflict
	}
	now := time.Now().UTC()
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	if sale.Date.IsZero() {
		sale.Date = now
	}

	s.salesByID[sale.ID] = cloneSale(sale)
	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySale := cloneSale(sale)
	return &copySale, nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) (*domain.SaleList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := s.collectSales(filter)
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.Date.Equal(b.Date) {
			return cmpString(b.ID, a.ID)
		}
		if a.Date.After(b.Date) {
			return -1
		}
		return 1
	})

	total := len(sales)
	sales = paginate(sales, filter.Page, filter.Limit)
	return &domain.SaleList{Sales: sales, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *Store) ListSalesBetween(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := s.collectSales(filter)
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.Date.Equal(b.Date) {
			return cmpString(a.ID, b.ID)
		}
		if a.Date.Before(b.Date) {
			return -1
		}
		return 1
	})
	return sales, nil
}

// collectSales must be called with s.mu held.
func (s *Store) collectSales(filter domain.SaleFilter) []domain.Sale {
	sales := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		if filter.From != nil && sale.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && sale.Date.After(*filter.To) {
			continue
		}
		if filter.CustomerID != "" && sale.CustomerID != filter.CustomerID {
			continue
		}
		if filter.ItemID != "" && !saleHasItem(sale, filter.ItemID) {
			continue
		}
		sales = append(sales, cloneSale(sale))
	}
	return sales
}

func saleHasItem(sale domain.Sale, itemID string) bool {
	for _, line := range sale.Items {
		if line.ItemID == itemID {
			return true
		}
	}
	return false
}

func (s *Store) UpdateSaleMeta(_ context.Context, id string, date *time.Time, paymentMethod *string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if date != nil {
		sale.Date = date.UTC()
	}
	if paymentMethod != nil {
		if *paymentMethod != domain.PaymentCash && *paymentMethod != domain.PaymentCredit {
			return nil, store.ErrValidation
		}
		sale.PaymentMethod = *paymentMethod
	}

	s.salesByID[id] = sale
	updated := cloneSale(sale)
	return &updated, nil
}

func (s *Store) DeleteSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}

	// Restore stock and remove the record under the same lock hold so no
	// reader observes restored stock with the sale still present. Items
	// deleted after the sale are skipped.
	now := time.Now().UTC()
	for _, line := range sale.Items {
		item, ok := s.itemsByID[line.ItemID]
		if !ok {
			continue
		}
		item.Quantity += line.Quantity
		item.UpdatedAt = now
		s.itemsByID[line.ItemID] = item
	}
	delete(s.salesByID, id)

	deleted := cloneSale(sale)
	return &deleted, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" || user.Password == "" || user.Role == "" {
		return store.ErrValidation
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrConflict
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 200
	}
	result := make([]domain.AuditLog, 0, limit)
	for _, entry := range s.auditLogs {
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && entry.CreatedAt.After(to) {
			continue
		}
		result = append(result, entry)
	}
	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func cloneSale(sale domain.Sale) domain.Sale {
	copySale := sale
	copySale.Items = make([]domain.SaleLine, len(sale.Items))
	copy(copySale.Items, sale.Items)
	return copySale
}

func paginate[T any](items []T, page int, limit int) []T {
	if limit < 1 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func cmpString(a, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

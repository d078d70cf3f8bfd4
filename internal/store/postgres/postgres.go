package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/store"
	"shopledger/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if item.Name == "" || item.Quantity < 0 || item.Price.IsNegative() {
		return nil, store.ErrValidation
	}
	if item.ID == "" {
		item.ID = xid.New("item")
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_items (id, name, description, quantity, price, category, created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, item.ID, item.Name, item.Description, item.Quantity, item.Price, item.Category, nullIfEmpty(item.CreatedBy), item.CreatedAt, item.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := item
	return &created, nil
}

func (s *Store) GetItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	var createdBy sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, quantity, price, category, created_by, created_at, updated_at
		FROM inventory_items
		WHERE id = $1
	`, id).Scan(&item.ID, &item.Name, &item.Description, &item.Quantity, &item.Price, &item.Category, &createdBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	item.CreatedBy = createdBy.String
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}

func (s *Store) UpdateItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if item.ID == "" || item.Name == "" || item.Quantity < 0 || item.Price.IsNegative() {
		return nil, store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE inventory_items
		SET name = $2, description = $3, quantity = $4, price = $5, category = $6, updated_at = now()
		WHERE id = $1
	`, item.ID, item.Name, item.Description, item.Quantity, item.Price, item.Category)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetItem(ctx, item.ID)
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListItems(ctx context.Context, page int, limit int) (*domain.ItemList, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM inventory_items`).Scan(&total); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, quantity, price, category, created_by, created_at, updated_at
		FROM inventory_items
		ORDER BY name, id
		LIMIT $1 OFFSET $2
	`, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanItems(rows)
	if err != nil {
		return nil, err
	}
	return &domain.ItemList{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func (s *Store) SearchItems(ctx context.Context, query string) ([]domain.InventoryItem, error) {
	pattern := "%" + strings.TrimSpace(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, quantity, price, category, created_by, created_at, updated_at
		FROM inventory_items
		WHERE name ILIKE $1 OR description ILIKE $1
		ORDER BY name, id
	`, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanItems(rows)
}

func (s *Store) ReserveStock(ctx context.Context, itemID string, qty int) error {
	if qty < 1 {
		return store.ErrValidation
	}

	// Conditional decrement: the quantity check and the subtraction are a
	// single statement, so concurrent reservations can never drive stock
	// below zero.
	res, err := s.db.ExecContext(ctx, `
		UPDATE inventory_items
		SET quantity = quantity - $2, updated_at = now()
		WHERE id = $1 AND quantity >= $2
	`, itemID, qty)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var name string
	var available int
	err = s.db.QueryRowContext(ctx, `
		SELECT name, quantity FROM inventory_items WHERE id = $1
	`, itemID).Scan(&name, &available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	return &store.StockShortageError{ItemID: itemID, Name: name, Requested: qty, Available: available}
}

func (s *Store) RestoreStock(ctx context.Context, itemID string, qty int) error {
	if qty < 1 {
		return store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE inventory_items
		SET quantity = quantity + $2, updated_at = now()
		WHERE id = $1
	`, itemID, qty)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Name == "" {
		return nil, store.ErrValidation
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, address, mobile, email, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, customer.ID, customer.Name, customer.Address, customer.Mobile, customer.Email, nullIfEmpty(customer.CreatedBy), customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := customer
	return &created, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var customer domain.Customer
	var createdBy sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, address, mobile, email, created_by, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&customer.ID, &customer.Name, &customer.Address, &customer.Mobile, &customer.Email, &createdBy, &customer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	customer.CreatedBy = createdBy.String
	customer.CreatedAt = customer.CreatedAt.UTC()
	return &customer, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" || customer.Name == "" {
		return nil, store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = $2, address = $3, mobile = $4, email = $5
		WHERE id = $1
	`, customer.ID, customer.Name, customer.Address, customer.Mobile, customer.Email)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetCustomer(ctx, customer.ID)
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListCustomers(ctx context.Context, page int, limit int, search string) (*domain.CustomerList, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	pattern := "%" + strings.TrimSpace(search) + "%"

	var total int
	if err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM customers WHERE name ILIKE $1 OR mobile ILIKE $1
	`, pattern).Scan(&total); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, mobile, email, created_by, created_at
		FROM customers
		WHERE name ILIKE $1 OR mobile ILIKE $1
		ORDER BY name, id
		LIMIT $2 OFFSET $3
	`, pattern, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, limit)
	for rows.Next() {
		var c domain.Customer
		var createdBy sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Address, &c.Mobile, &c.Email, &createdBy, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedBy = createdBy.String
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &domain.CustomerList{Customers: customers, Total: total, Page: page, Limit: limit}, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
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
	now := time.Now().UTC()
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	if sale.Date.IsZero() {
		sale.Date = now
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (id, date, customer_id, customer_name, is_cash_sale, total_amount, payment_method, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, sale.ID, sale.Date, nullIfEmpty(sale.CustomerID), sale.CustomerName, sale.IsCashSale,
		sale.TotalAmount, sale.PaymentMethod, nullIfEmpty(sale.CreatedBy), sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	for _, line := range sale.Items {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, item_id, name, quantity, price_at_sale, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, sale.ID, line.ItemID, line.Name, line.Quantity, line.PriceAtSale, line.Subtotal)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	created := sale
	return &created, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	sale, err := s.scanSaleRow(s.db.QueryRowContext(ctx, `
		SELECT id, date, customer_id, customer_name, is_cash_sale, total_amount, payment_method, created_by, created_at
		FROM sales
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, err
	}

	itemsBySale, err := s.loadSaleItems(ctx, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Items = itemsBySale[sale.ID]
	if sale.Items == nil {
		sale.Items = []domain.SaleLine{}
	}
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) (*domain.SaleList, error) {
	page := filter.Page
	limit := filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	where, args := buildSaleFilter(filter)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM sales`+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, date, customer_id, customer_name, is_cash_sale, total_amount, payment_method, created_by, created_at
		FROM sales%s
		ORDER BY date DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, limit, (page-1)*limit)

	sales, err := s.querySales(ctx, query, args)
	if err != nil {
		return nil, err
	}
	return &domain.SaleList{Sales: sales, Total: total, Page: page, Limit: limit}, nil
}

func (s *Store) ListSalesBetween(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	where, args := buildSaleFilter(filter)
	query := `
		SELECT id, date, customer_id, customer_name, is_cash_sale, total_amount, payment_method, created_by, created_at
		FROM sales` + where + `
		ORDER BY date ASC, id ASC
	`
	return s.querySales(ctx, query, args)
}

func (s *Store) UpdateSaleMeta(ctx context.Context, id string, date *time.Time, paymentMethod *string) (*domain.Sale, error) {
	if paymentMethod != nil && *paymentMethod != domain.PaymentCash && *paymentMethod != domain.PaymentCredit {
		return nil, store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sales
		SET date = COALESCE($2, date), payment_method = COALESCE($3, payment_method)
		WHERE id = $1
	`, id, nullTime(date), nullStringPtr(paymentMethod))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetSale(ctx, id)
}

func (s *Store) DeleteSale(ctx context.Context, id string) (*domain.Sale, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	sale, err := s.scanSaleRow(pgTx.QueryRowContext(ctx, `
		SELECT id, date, customer_id, customer_name, is_cash_sale, total_amount, payment_method, created_by, created_at
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return nil, err
	}

	itemRows, err := pgTx.QueryContext(ctx, `
		SELECT item_id, name, quantity, price_at_sale, subtotal
		FROM sale_items
		WHERE sale_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	lines := make([]domain.SaleLine, 0, 8)
	for itemRows.Next() {
		var line domain.SaleLine
		if err := itemRows.Scan(&line.ItemID, &line.Name, &line.Quantity, &line.PriceAtSale, &line.Subtotal); err != nil {
			_ = itemRows.Close()
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return nil, err
	}
	_ = itemRows.Close()

	// Restore stock for lines whose item still exists. RowsAffected 0
	// means the item was removed after the sale; the deletion proceeds
	// without it.
	for _, line := range lines {
		_, err := pgTx.ExecContext(ctx, `
			UPDATE inventory_items
			SET quantity = quantity + $2, updated_at = now()
			WHERE id = $1
		`, line.ItemID, line.Quantity)
		if err != nil {
			return nil, err
		}
	}

	if _, err := pgTx.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, id); err != nil {
		return nil, err
	}
	if _, err := pgTx.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	sale.Items = lines
	return sale, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" || user.Role == "" {
		return store.ErrValidation
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, entry.Actor, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 200
	}
	if to.IsZero() {
		to = time.Now().UTC().Add(time.Hour)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.Actor, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) querySales(ctx context.Context, query string, args []any) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	ids := make([]string, 0, 32)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	itemsBySale, err := s.loadSaleItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = itemsBySale[sales[i].ID]
		if sales[i].Items == nil {
			sales[i].Items = []domain.SaleLine{}
		}
	}
	return sales, nil
}

func (s *Store) loadSaleItems(ctx context.Context, saleIDs []string) (map[string][]domain.SaleLine, error) {
	result := make(map[string][]domain.SaleLine, len(saleIDs))
	if len(saleIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, item_id, name, quantity, price_at_sale, subtotal
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, item_id
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var saleID string
		var line domain.SaleLine
		if err := rows.Scan(&saleID, &line.ItemID, &line.Name, &line.Quantity, &line.PriceAtSale, &line.Subtotal); err != nil {
			return nil, err
		}
		result[saleID] = append(result[saleID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (*domain.Sale, error) {
	var sale domain.Sale
	var customerID, createdBy sql.NullString
	err := row.Scan(&sale.ID, &sale.Date, &customerID, &sale.CustomerName, &sale.IsCashSale,
		&sale.TotalAmount, &sale.PaymentMethod, &createdBy, &sale.CreatedAt)
	if err != nil {
		return nil, err
	}
	sale.CustomerID = customerID.String
	sale.CreatedBy = createdBy.String
	sale.Date = sale.Date.UTC()
	sale.CreatedAt = sale.CreatedAt.UTC()
	return &sale, nil
}

func (s *Store) scanSaleRow(row *sql.Row) (*domain.Sale, error) {
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return sale, nil
}

func scanItems(rows *sql.Rows) ([]domain.InventoryItem, error) {
	items := make([]domain.InventoryItem, 0, 32)
	for rows.Next() {
		var item domain.InventoryItem
		var createdBy sql.NullString
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.Quantity, &item.Price, &item.Category, &createdBy, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		item.CreatedBy = createdBy.String
		item.CreatedAt = item.CreatedAt.UTC()
		item.UpdatedAt = item.UpdatedAt.UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func buildSaleFilter(filter domain.SaleFilter) (string, []any) {
	conditions := make([]string, 0, 4)
	args := make([]any, 0, 4)
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)))
	}
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if filter.ItemID != "" {
		args = append(args, filter.ItemID)
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM sale_items si WHERE si.sale_id = sales.id AND si.item_id = $%d)", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullStringPtr(val *string) any {
	if val == nil {
		return nil
	}
	return *val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"shopledger/backend/internal/domain"
	"shopledger/backend/internal/store"
)

const (
	GroupByDay   = "day"
	GroupByWeek  = "week"
	GroupByMonth = "month"
)

// SalesReport aggregates committed sales over the repository's unpaged
// read. Aggregation happens here rather than in SQL so the memory and
// postgres stores report identical numbers.
func (s *Service) SalesReport(ctx context.Context, filter domain.SaleFilter, groupBy string) (domain.SalesReport, error) {
	if groupBy == "" {
		groupBy = GroupByDay
	}
	if groupBy != GroupByDay && groupBy != GroupByWeek && groupBy != GroupByMonth {
		return domain.SalesReport{}, fmt.Errorf("unknown group_by %q: %w", groupBy, store.ErrValidation)
	}

	cacheKey := reportCachePrefix + "sales:" + groupBy + ":" + filterCacheKey(filter)
	var cached domain.SalesReport
	if s.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	sales, err := s.repo.ListSalesBetween(ctx, filter)
	if err != nil {
		return domain.SalesReport{}, err
	}

	report := domain.SalesReport{
		Summary:   domain.SalesSummary{TotalRevenue: decimal.Zero},
		Breakdown: []domain.SalesBucket{},
		Sales:     sales,
	}
	if report.Sales == nil {
		report.Sales = []domain.Sale{}
	}

	buckets := make(map[string]*domain.SalesBucket)
	for _, sale := range sales {
		units := 0
		for _, line := range sale.Items {
			if filter.ItemID != "" && line.ItemID != filter.ItemID {
				continue
			}
			units += line.Quantity
		}

		report.Summary.TotalRevenue = report.Summary.TotalRevenue.Add(sale.TotalAmount)
		report.Summary.SaleCount++
		report.Summary.TotalUnits += units

		key := bucketKey(sale.Date.In(s.opts.ReportLocation), groupBy)
		bucket, ok := buckets[key]
		if !ok {
			bucket = &domain.SalesBucket{Period: key, Revenue: decimal.Zero}
			buckets[key] = bucket
		}
		bucket.Revenue = bucket.Revenue.Add(sale.TotalAmount)
		bucket.SaleCount++
		bucket.Units += units
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		report.Breakdown = append(report.Breakdown, *buckets[key])
	}

	s.cacheSet(ctx, cacheKey, report)
	return report, nil
}

// ItemsReport walks the full inventory and the full sale history to give
// per-item sales performance and stock valuation.
func (s *Service) ItemsReport(ctx context.Context) (domain.ItemsReport, error) {
	cacheKey := reportCachePrefix + "items"
	var cached domain.ItemsReport
	if s.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	items, err := s.repo.SearchItems(ctx, "")
	if err != nil {
		return domain.ItemsReport{}, err
	}
	sales, err := s.repo.ListSalesBetween(ctx, domain.SaleFilter{})
	if err != nil {
		return domain.ItemsReport{}, err
	}

	type soldStats struct {
		units    int
		revenue  decimal.Decimal
		lastSold time.Time
	}
	statsByItem := make(map[string]*soldStats, len(items))
	for _, sale := range sales {
		for _, line := range sale.Items {
			stats, ok := statsByItem[line.ItemID]
			if !ok {
				stats = &soldStats{revenue: decimal.Zero}
				statsByItem[line.ItemID] = stats
			}
			stats.units += line.Quantity
			stats.revenue = stats.revenue.Add(line.Subtotal)
			if sale.Date.After(stats.lastSold) {
				stats.lastSold = sale.Date
			}
		}
	}

	report := domain.ItemsReport{
		Items:          make([]domain.ItemPerformance, 0, len(items)),
		TotalValue:     decimal.Zero,
		TotalItemKinds: len(items),
	}
	for _, item := range items {
		perf := domain.ItemPerformance{
			ItemID:       item.ID,
			Name:         item.Name,
			Quantity:     item.Quantity,
			Price:        item.Price,
			StockValue:   item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
			TotalRevenue: decimal.Zero,
			IsLowStock:   item.Quantity < s.opts.LowStockThreshold,
		}
		if stats, ok := statsByItem[item.ID]; ok {
			perf.TotalSold = stats.units
			perf.TotalRevenue = stats.revenue
			lastSold := stats.lastSold
			perf.LastSold = &lastSold
		}
		if perf.IsLowStock {
			report.LowStockCount++
		}
		report.TotalValue = report.TotalValue.Add(perf.StockValue)
		report.Items = append(report.Items, perf)
	}

	s.cacheSet(ctx, cacheKey, report)
	return report, nil
}

// CustomerLedger lists one customer's purchase history in chronological
// order, with frozen line snapshots exactly as committed.
func (s *Service) CustomerLedger(ctx context.Context, customerID string, from *time.Time, to *time.Time) (domain.CustomerLedger, error) {
	customer, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return domain.CustomerLedger{}, err
	}

	sales, err := s.repo.ListSalesBetween(ctx, domain.SaleFilter{From: from, To: to, CustomerID: customerID})
	if err != nil {
		return domain.CustomerLedger{}, err
	}
	if sales == nil {
		sales = []domain.Sale{}
	}

	ledger := domain.CustomerLedger{
		Customer: *customer,
		Summary:  domain.LedgerSummary{TotalPurchases: decimal.Zero},
		Sales:    sales,
	}
	for _, sale := range sales {
		ledger.Summary.TotalPurchases = ledger.Summary.TotalPurchases.Add(sale.TotalAmount)
		ledger.Summary.SaleCount++
	}
	if len(sales) > 0 {
		first := sales[0].Date
		last := sales[len(sales)-1].Date
		ledger.Summary.FirstPurchase = &first
		ledger.Summary.LastPurchase = &last
	}

	return ledger, nil
}

// bucketKey formats the period key a sale falls into: "2025-03-14" for
// day grouping, "2025-W11" for ISO week grouping, "2025-03" for month
// grouping. The time must already be in the report timezone.
func bucketKey(t time.Time, groupBy string) string {
	switch groupBy {
	case GroupByWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case GroupByMonth:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

func filterCacheKey(filter domain.SaleFilter) string {
	from, to := "", ""
	if filter.From != nil {
		from = filter.From.UTC().Format(time.RFC3339)
	}
	if filter.To != nil {
		to = filter.To.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("%s:%s:%s:%s", from, to, filter.CustomerID, filter.ItemID)
}

func (s *Service) cacheGet(ctx context.Context, key string, out any) bool {
	payload, found, err := s.reports.Get(ctx, key)
	if err != nil {
		log.Printf("[service] WARN: report cache read failed key=%s: %v", key, err)
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		log.Printf("[service] WARN: report cache entry invalid key=%s: %v", key, err)
		return false
	}
	return true
}

func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		log.Printf("[service] WARN: report cache encode failed key=%s: %v", key, err)
		return
	}
	if err := s.reports.Set(ctx, key, payload, s.opts.ReportCacheTTL); err != nil {
		log.Printf("[service] WARN: report cache write failed key=%s: %v", key, err)
	}
}

// Package memory is an in-process store.Store. It backs tests and the
// STORE_DRIVER=memory demo mode; data is lost when the process exits.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/pricing"
	"stockledger/internal/store"
)

type Store struct {
	mu    sync.RWMutex
	locks *lockTable

	products    map[string]domain.Product
	variants    map[string]domain.Variant
	suppliers   map[string]domain.Supplier
	users       map[string]domain.User
	purchases   map[string]domain.Purchase
	sales       map[string]domain.Sale
	adjustments []domain.StockAdjustment
	settings    domain.Settings
	idempotency map[string]store.IdempotencyRecord
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		locks:       newLockTable(),
		products:    make(map[string]domain.Product),
		variants:    make(map[string]domain.Variant),
		suppliers:   make(map[string]domain.Supplier),
		users:       make(map[string]domain.User),
		purchases:   make(map[string]domain.Purchase),
		sales:       make(map[string]domain.Sale),
		adjustments: make([]domain.StockAdjustment, 0, 64),
		settings:    domain.DefaultSettings(),
		idempotency: make(map[string]store.IdempotencyRecord),
	}
}

func (s *Store) GetProduct(_ context.Context, id string) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.NotFoundf("product %s", id)
	}
	return product, nil
}

func (s *Store) ListProducts(_ context.Context, search string, limit, offset int) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search = strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.Product, 0, len(s.products))
	for _, product := range s.products {
		if search != "" && !strings.Contains(strings.ToLower(product.Name), search) {
			continue
		}
		out = append(out, product)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return page(out, limit, offset), nil
}

func (s *Store) GetVariant(_ context.Context, id string) (domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	variant, ok := s.variants[id]
	if !ok {
		return domain.Variant{}, domain.NotFoundf("variant %s", id)
	}
	return variant, nil
}

func (s *Store) FindVariantByCode(_ context.Context, code string) (domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Variant{}, domain.NotFoundf("variant with empty code")
	}
	for _, variant := range s.variants {
		if strings.EqualFold(variant.SKU, code) {
			return variant, nil
		}
	}
	for _, variant := range s.variants {
		if variant.Barcode != "" && strings.EqualFold(variant.Barcode, code) {
			return variant, nil
		}
	}
	return domain.Variant{}, domain.NotFoundf("variant with code %s", code)
}

func (s *Store) ListVariants(_ context.Context, filter store.VariantFilter) ([]domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]domain.Variant, 0, len(s.variants))
	for _, variant := range s.variants {
		if filter.ProductID != "" && variant.ProductID != filter.ProductID {
			continue
		}
		if filter.Status != "" && variant.Status != filter.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(variant.SKU), search) &&
			!strings.Contains(strings.ToLower(variant.Barcode), search) {
			continue
		}
		out = append(out, variant)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return page(out, filter.Limit, filter.Offset), nil
}

func (s *Store) ListLowStock(_ context.Context, threshold int) ([]domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Variant, 0)
	for _, variant := range s.variants {
		if variant.Status == domain.VariantActive && variant.StockQty <= threshold {
			out = append(out, variant)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StockQty != out[j].StockQty {
			return out[i].StockQty < out[j].StockQty
		}
		return out[i].SKU < out[j].SKU
	})
	return out, nil
}

func (s *Store) InventorySummary(_ context.Context) (domain.InventorySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var summary domain.InventorySummary
	for _, variant := range s.variants {
		summary.TotalVariants++
		summary.TotalQuantity += variant.StockQty
		summary.InventoryValue = pricing.Round2(summary.InventoryValue + pricing.LineTotal(variant.StockQty, variant.AvgCost))
	}
	return summary, nil
}

func (s *Store) GetSupplier(_ context.Context, id string) (domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supplier, ok := s.suppliers[id]
	if !ok {
		return domain.Supplier{}, domain.NotFoundf("supplier %s", id)
	}
	return supplier, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Supplier, 0, len(s.suppliers))
	for _, supplier := range s.suppliers {
		out = append(out, supplier)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetUser(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.NotFoundf("user %s", id)
	}
	return user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) GetPurchase(_ context.Context, id string) (domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchase, ok := s.purchases[id]
	if !ok {
		return domain.Purchase{}, domain.NotFoundf("purchase %s", id)
	}
	return clonePurchase(purchase), nil
}

func (s *Store) ListPurchases(_ context.Context, filter store.ListFilter) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Purchase, 0, len(s.purchases))
	for _, purchase := range s.purchases {
		if !inRange(purchase.PurchasedAt, filter) {
			continue
		}
		purchase.Items = nil
		out = append(out, purchase)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PurchasedAt.Equal(out[j].PurchasedAt) {
			return out[i].PurchasedAt.After(out[j].PurchasedAt)
		}
		return out[i].ID > out[j].ID
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (s *Store) GetSale(_ context.Context, id string) (domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return domain.Sale{}, domain.NotFoundf("sale %s", id)
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, filter store.ListFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if !inRange(sale.CreatedAt, filter) {
			continue
		}
		sale.Items = nil
		out = append(out, sale)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].BillNo > out[j].BillNo
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (s *Store) GetStockAdjustment(_ context.Context, id string) (domain.StockAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, adjustment := range s.adjustments {
		if adjustment.ID == id {
			return adjustment, nil
		}
	}
	return domain.StockAdjustment{}, domain.NotFoundf("stock adjustment %s", id)
}

func (s *Store) ListStockAdjustments(_ context.Context, variantID string, filter store.ListFilter) ([]domain.StockAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StockAdjustment, 0)
	for _, adjustment := range s.adjustments {
		if variantID != "" && adjustment.VariantID != variantID {
			continue
		}
		if !inRange(adjustment.CreatedAt, filter) {
			continue
		}
		out = append(out, adjustment)
	}
	sortAdjustments(out)
	return page(out, filter.Limit, filter.Offset), nil
}

func (s *Store) GetSettings(_ context.Context) (domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

func (s *Store) SalesStats(_ context.Context, filter store.ListFilter) (domain.SalesStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats domain.SalesStats
	for _, sale := range s.sales {
		if !inRange(sale.CreatedAt, filter) {
			continue
		}
		if sale.Status == domain.SaleVoided {
			stats.VoidedCount++
			continue
		}
		stats.SalesCount++
		stats.Revenue = pricing.Round2(stats.Revenue + sale.Total)
		stats.ItemProfit = pricing.Round2(stats.ItemProfit + pricing.SaleProfit(sale.Items))
		for _, item := range sale.Items {
			stats.ItemsSold += item.Qty
		}
	}
	return stats, nil
}

func (s *Store) VariantAdjustments(_ context.Context, variantID string) ([]domain.StockAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StockAdjustment, 0)
	for _, adjustment := range s.adjustments {
		if adjustment.VariantID == variantID {
			out = append(out, adjustment)
		}
	}
	sortAdjustments(out)
	return out, nil
}

func (s *Store) VariantPurchaseLines(_ context.Context, variantID string) ([]store.PurchaseLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.PurchaseLine, 0)
	for _, purchase := range s.purchases {
		for _, item := range purchase.Items {
			if item.VariantID != variantID {
				continue
			}
			out = append(out, store.PurchaseLine{
				Item:         item,
				SupplierID:   purchase.SupplierID,
				SupplierName: s.suppliers[purchase.SupplierID].Name,
				PurchasedAt:  purchase.PurchasedAt,
				InvoiceNo:    purchase.InvoiceNo,
				Notes:        purchase.Notes,
				CreatedBy:    purchase.CreatedBy,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PurchasedAt.Equal(out[j].PurchasedAt) {
			return out[i].PurchasedAt.After(out[j].PurchasedAt)
		}
		return out[i].Item.ID < out[j].Item.ID
	})
	return out, nil
}

func (s *Store) VariantSaleLines(_ context.Context, variantID string) ([]store.SaleLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.SaleLine, 0)
	for _, sale := range s.sales {
		for _, item := range sale.Items {
			if item.VariantID != variantID {
				continue
			}
			out = append(out, store.SaleLine{
				Item:      item,
				BillNo:    sale.BillNo,
				Status:    sale.Status,
				CreatedAt: sale.CreatedAt,
				CreatedBy: sale.CreatedBy,
				VoidedAt:  sale.VoidedAt,
				VoidedBy:  sale.VoidedBy,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Item.ID < out[j].Item.ID
	})
	return out, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return domain.Product{}, fmt.Errorf("%w: product id %s", domain.ErrDuplicateKey, product.ID)
	}
	s.products[product.ID] = product
	return product, nil
}

func (s *Store) CreateVariant(_ context.Context, variant domain.Variant) (domain.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[variant.ProductID]; !ok {
		return domain.Variant{}, domain.NotFoundf("product %s", variant.ProductID)
	}
	if _, exists := s.variants[variant.ID]; exists {
		return domain.Variant{}, fmt.Errorf("%w: variant id %s", domain.ErrDuplicateKey, variant.ID)
	}
	for _, existing := range s.variants {
		if strings.EqualFold(existing.SKU, variant.SKU) {
			return domain.Variant{}, fmt.Errorf("%w: sku %s", domain.ErrDuplicateKey, variant.SKU)
		}
		if variant.Barcode != "" && strings.EqualFold(existing.Barcode, variant.Barcode) {
			return domain.Variant{}, fmt.Errorf("%w: barcode %s", domain.ErrDuplicateKey, variant.Barcode)
		}
	}
	if variant.Version == 0 {
		variant.Version = 1
	}
	s.variants[variant.ID] = variant
	return variant, nil
}

func (s *Store) UpdateVariantMeta(_ context.Context, id string, patch store.VariantMetaPatch, at time.Time) (domain.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	variant, ok := s.variants[id]
	if !ok {
		return domain.Variant{}, domain.NotFoundf("variant %s", id)
	}
	if patch.SellingPrice != nil {
		variant.SellingPrice = *patch.SellingPrice
	}
	if patch.Status != nil {
		variant.Status = *patch.Status
	}
	if patch.Size != nil {
		variant.Size = patch.Size
	}
	if patch.Color != nil {
		variant.Color = patch.Color
	}
	variant.UpdatedAt = at
	s.variants[id] = variant
	return variant, nil
}

func (s *Store) DeleteVariant(ctx context.Context, id string) error {
	name := variantLock(id)
	if err := s.locks.acquire(ctx, name); err != nil {
		return err
	}
	defer s.locks.release(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.variants[id]; !ok {
		return domain.NotFoundf("variant %s", id)
	}
	if s.variantReferenced(id) {
		return fmt.Errorf("%w: variant %s has stock history", domain.ErrReferenced, id)
	}
	delete(s.variants, id)
	return nil
}

func (s *Store) variantReferenced(id string) bool {
	for _, purchase := range s.purchases {
		if slices.ContainsFunc(purchase.Items, func(item domain.PurchaseItem) bool { return item.VariantID == id }) {
			return true
		}
	}
	for _, sale := range s.sales {
		if slices.ContainsFunc(sale.Items, func(item domain.SaleItem) bool { return item.VariantID == id }) {
			return true
		}
	}
	return slices.ContainsFunc(s.adjustments, func(a domain.StockAdjustment) bool { return a.VariantID == id })
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.suppliers[supplier.ID]; exists {
		return domain.Supplier{}, fmt.Errorf("%w: supplier id %s", domain.ErrDuplicateKey, supplier.ID)
	}
	s.suppliers[supplier.ID] = supplier
	return supplier, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.ID == user.ID || strings.EqualFold(existing.Username, user.Username) {
			return domain.User{}, fmt.Errorf("%w: username %s", domain.ErrDuplicateKey, user.Username)
		}
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) UpdateSettings(_ context.Context, patch store.SettingsPatch, at time.Time) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := s.settings
	if patch.ShopName != nil {
		settings.ShopName = *patch.ShopName
	}
	if patch.Address != nil {
		settings.Address = patch.Address
	}
	if patch.Phone != nil {
		settings.Phone = patch.Phone
	}
	if patch.BillPrefix != nil {
		settings.BillPrefix = *patch.BillPrefix
	}
	if patch.LowStockThreshold != nil {
		settings.LowStockThreshold = *patch.LowStockThreshold
	}
	if patch.DefaultTaxPercent != nil {
		settings.DefaultTaxPercent = *patch.DefaultTaxPercent
	}
	settings.UpdatedAt = at
	s.settings = settings
	return settings, nil
}

func page[T any](items []T, limit, offset int) []T {
	limit = store.NormalizeLimit(limit)
	offset = store.NormalizeOffset(offset)
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func inRange(at time.Time, filter store.ListFilter) bool {
	if filter.From != nil && at.Before(*filter.From) {
		return false
	}
	if filter.To != nil && at.After(*filter.To) {
		return false
	}
	return true
}

func sortAdjustments(items []domain.StockAdjustment) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}

func clonePurchase(p domain.Purchase) domain.Purchase {
	p.Items = slices.Clone(p.Items)
	return p
}

func cloneSale(s domain.Sale) domain.Sale {
	s.Items = slices.Clone(s.Items)
	return s
}

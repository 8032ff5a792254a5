// Package store defines the persistence contract of the stock ledger.
//
// Every stock-affecting operation runs inside WithinTx: the function either
// commits all of its writes or none of them. Variant rows locked through a Tx
// stay locked until the transaction ends, which serializes operations on the
// same variant while leaving other variants independent.
package store

import (
	"context"
	"time"

	"stockledger/internal/domain"
)

// Idempotency kinds.
const (
	KindPurchase   = "purchase"
	KindSale       = "sale"
	KindAdjustment = "stock_adjustment"
)

type ListFilter struct {
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

type VariantFilter struct {
	ProductID string
	Search    string
	Status    domain.VariantStatus
	Limit     int
	Offset    int
}

// PurchaseLine is a purchase item joined to its purchase header.
type PurchaseLine struct {
	Item         domain.PurchaseItem
	SupplierID   string
	SupplierName string
	PurchasedAt  time.Time
	InvoiceNo    *string
	Notes        *string
	CreatedBy    string
}

// SaleLine is a sale item joined to its sale header.
type SaleLine struct {
	Item      domain.SaleItem
	BillNo    string
	Status    domain.SaleStatus
	CreatedAt time.Time
	CreatedBy string
	VoidedAt  *time.Time
	VoidedBy  *string
}

type VariantMetaPatch struct {
	SellingPrice *float64
	Status       *domain.VariantStatus
	Size         *string
	Color        *string
}

type SettingsPatch struct {
	ShopName          *string
	Address           *string
	Phone             *string
	BillPrefix        *string
	LowStockThreshold *int
	DefaultTaxPercent *float64
}

type IdempotencyRecord struct {
	Key       string
	Kind      string
	RecordID  string
	CreatedAt time.Time
}

type Reader interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	ListProducts(ctx context.Context, search string, limit, offset int) ([]domain.Product, error)
	GetVariant(ctx context.Context, id string) (domain.Variant, error)
	// FindVariantByCode matches a SKU or a barcode, case-insensitively.
	FindVariantByCode(ctx context.Context, code string) (domain.Variant, error)
	ListVariants(ctx context.Context, filter VariantFilter) ([]domain.Variant, error)
	ListLowStock(ctx context.Context, threshold int) ([]domain.Variant, error)
	InventorySummary(ctx context.Context) (domain.InventorySummary, error)
	GetSupplier(ctx context.Context, id string) (domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetPurchase(ctx context.Context, id string) (domain.Purchase, error)
	ListPurchases(ctx context.Context, filter ListFilter) ([]domain.Purchase, error)
	GetSale(ctx context.Context, id string) (domain.Sale, error)
	ListSales(ctx context.Context, filter ListFilter) ([]domain.Sale, error)
	GetStockAdjustment(ctx context.Context, id string) (domain.StockAdjustment, error)
	ListStockAdjustments(ctx context.Context, variantID string, filter ListFilter) ([]domain.StockAdjustment, error)
	GetSettings(ctx context.Context) (domain.Settings, error)
	SalesStats(ctx context.Context, filter ListFilter) (domain.SalesStats, error)

	VariantAdjustments(ctx context.Context, variantID string) ([]domain.StockAdjustment, error)
	VariantPurchaseLines(ctx context.Context, variantID string) ([]PurchaseLine, error)
	VariantSaleLines(ctx context.Context, variantID string) ([]SaleLine, error)
}

// Catalog covers metadata writes that never touch stockQty or avgCost.
type Catalog interface {
	CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error)
	CreateVariant(ctx context.Context, variant domain.Variant) (domain.Variant, error)
	UpdateVariantMeta(ctx context.Context, id string, patch VariantMetaPatch, at time.Time) (domain.Variant, error)
	// DeleteVariant fails with domain.ErrReferenced while any transaction
	// record points at the variant.
	DeleteVariant(ctx context.Context, id string) error
	CreateSupplier(ctx context.Context, supplier domain.Supplier) (domain.Supplier, error)
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	UpdateSettings(ctx context.Context, patch SettingsPatch, at time.Time) (domain.Settings, error)
}

// Tx is the unit of work handed to WithinTx.
type Tx interface {
	// ClaimIdempotencyKey reserves key for this transaction. When the key
	// was already committed by another transaction it returns that record
	// and claimed=false.
	ClaimIdempotencyKey(ctx context.Context, key, kind string, at time.Time) (IdempotencyRecord, bool, error)
	CompleteIdempotencyKey(ctx context.Context, key, recordID string) error

	// LockVariants locks the given variants in a deterministic order.
	LockVariants(ctx context.Context, ids []string) error
	GetVariantForUpdate(ctx context.Context, id string) (domain.Variant, error)
	// UpdateVariantStock persists StockQty, AvgCost and UpdatedAt of a
	// locked variant and returns it with its version advanced.
	UpdateVariantStock(ctx context.Context, variant domain.Variant) (domain.Variant, error)
	// TouchVariants advances versions without changing stock.
	TouchVariants(ctx context.Context, ids []string, at time.Time) error

	InsertPurchase(ctx context.Context, purchase domain.Purchase) error
	GetPurchaseForUpdate(ctx context.Context, id string) (domain.Purchase, error)
	DeletePurchase(ctx context.Context, id string) error

	InsertSale(ctx context.Context, sale domain.Sale) error
	GetSaleForUpdate(ctx context.Context, id string) (domain.Sale, error)
	MarkSaleVoided(ctx context.Context, id string, at time.Time, voidedBy, reason string) error
	// NextBillNumber atomically advances the bill counter. The increment is
	// rolled back with the transaction.
	NextBillNumber(ctx context.Context) (prefix string, number int64, err error)

	InsertStockAdjustment(ctx context.Context, adjustment domain.StockAdjustment) error
}

type Store interface {
	Reader
	Catalog
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func NormalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

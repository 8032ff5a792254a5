package domain

import "time"

type VariantStatus string

const (
	VariantActive   VariantStatus = "ACTIVE"
	VariantInactive VariantStatus = "INACTIVE"
)

func (s VariantStatus) Valid() bool {
	return s == VariantActive || s == VariantInactive
}

type SaleStatus string

const (
	SaleCompleted SaleStatus = "COMPLETED"
	SaleVoided    SaleStatus = "VOIDED"
)

type PaymentMode string

const (
	PaymentCash  PaymentMode = "CASH"
	PaymentCard  PaymentMode = "CARD"
	PaymentUPI   PaymentMode = "UPI"
	PaymentOther PaymentMode = "OTHER"
)

type AdjustmentReason string

const (
	ReasonOpeningStock AdjustmentReason = "OPENING_STOCK"
	ReasonDamage       AdjustmentReason = "DAMAGE"
	ReasonTheft        AdjustmentReason = "THEFT"
	ReasonCorrection   AdjustmentReason = "CORRECTION"
	ReasonReturn       AdjustmentReason = "RETURN"
	ReasonOther        AdjustmentReason = "OTHER"
)

type MovementType string

const (
	MovementPurchase    MovementType = "PURCHASE"
	MovementSale        MovementType = "SALE"
	MovementAdjustment  MovementType = "ADJUSTMENT"
	MovementVoidRestore MovementType = "VOID_RESTORE"
)

type UserRole string

const (
	RoleAdmin UserRole = "ADMIN"
	RoleStaff UserRole = "STAFF"
)

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    *string   `json:"category,omitempty"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Variant is one sellable unit of a product. StockQty and AvgCost are only
// ever changed by the ledger's stock primitive.
type Variant struct {
	ID           string        `json:"id"`
	ProductID    string        `json:"product_id"`
	SKU          string        `json:"sku"`
	Barcode      string        `json:"barcode"`
	Size         *string       `json:"size,omitempty"`
	Color        *string       `json:"color,omitempty"`
	SellingPrice float64       `json:"selling_price"`
	AvgCost      float64       `json:"avg_cost"`
	StockQty     int           `json:"stock_qty"`
	Status       VariantStatus `json:"status"`
	Version      int64         `json:"version"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     *string   `json:"phone,omitempty"`
	Address   *string   `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  *string   `json:"full_name,omitempty"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type Purchase struct {
	ID          string         `json:"id"`
	SupplierID  string         `json:"supplier_id"`
	PurchasedAt time.Time      `json:"purchased_at"`
	InvoiceNo   *string        `json:"invoice_no,omitempty"`
	Notes       *string        `json:"notes,omitempty"`
	TotalCost   float64        `json:"total_cost"`
	CreatedBy   string         `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	Items       []PurchaseItem `json:"items,omitempty"`
}

type PurchaseItem struct {
	ID         string  `json:"id"`
	PurchaseID string  `json:"purchase_id"`
	VariantID  string  `json:"variant_id"`
	Qty        int     `json:"qty"`
	UnitCost   float64 `json:"unit_cost"`
	LineTotal  float64 `json:"line_total"`
}

type Sale struct {
	ID              string      `json:"id"`
	BillNo          string      `json:"bill_no"`
	CustomerName    *string     `json:"customer_name,omitempty"`
	CustomerPhone   *string     `json:"customer_phone,omitempty"`
	PaymentMode     PaymentMode `json:"payment_mode"`
	Subtotal        float64     `json:"subtotal"`
	DiscountAmount  float64     `json:"discount_amount"`
	DiscountPercent float64     `json:"discount_percent"`
	TaxAmount       float64     `json:"tax_amount"`
	TaxPercent      float64     `json:"tax_percent"`
	Total           float64     `json:"total"`
	Status          SaleStatus  `json:"status"`
	VoidedAt        *time.Time  `json:"voided_at,omitempty"`
	VoidedBy        *string     `json:"voided_by,omitempty"`
	VoidReason      *string     `json:"void_reason,omitempty"`
	CreatedBy       string      `json:"created_by"`
	CreatedAt       time.Time   `json:"created_at"`
	Items           []SaleItem  `json:"items,omitempty"`
}

// SaleItem freezes the variant's cost basis at the moment of sale.
type SaleItem struct {
	ID             string  `json:"id"`
	SaleID         string  `json:"sale_id"`
	VariantID      string  `json:"variant_id"`
	Qty            int     `json:"qty"`
	UnitPrice      float64 `json:"unit_price"`
	UnitCostAtSale float64 `json:"unit_cost_at_sale"`
	LineTotal      float64 `json:"line_total"`
}

type StockAdjustment struct {
	ID        string           `json:"id"`
	VariantID string           `json:"variant_id"`
	DeltaQty  int              `json:"delta_qty"`
	Reason    AdjustmentReason `json:"reason"`
	Notes     *string          `json:"notes,omitempty"`
	CreatedBy string           `json:"created_by"`
	CreatedAt time.Time        `json:"created_at"`
}

type Settings struct {
	ShopName          string    `json:"shop_name"`
	Address           *string   `json:"address,omitempty"`
	Phone             *string   `json:"phone,omitempty"`
	BillPrefix        string    `json:"bill_prefix"`
	LastBillNumber    int64     `json:"last_bill_number"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	DefaultTaxPercent float64   `json:"default_tax_percent"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func DefaultSettings() Settings {
	return Settings{
		ShopName:          "Textile Shop",
		BillPrefix:        "MJT",
		LowStockThreshold: 5,
	}
}

// Movement is one reconstructed change to a variant's stock. It is derived
// from purchase, sale and adjustment records and never persisted.
type Movement struct {
	Type         MovementType      `json:"type"`
	Date         time.Time         `json:"date"`
	Qty          int               `json:"qty"`
	ReferenceID  string            `json:"reference_id"`
	ReferenceNo  *string           `json:"reference_no,omitempty"`
	SupplierID   *string           `json:"supplier_id,omitempty"`
	SupplierName *string           `json:"supplier_name,omitempty"`
	UnitCost     *float64          `json:"unit_cost,omitempty"`
	UnitPrice    *float64          `json:"unit_price,omitempty"`
	Reason       *AdjustmentReason `json:"reason,omitempty"`
	Notes        *string           `json:"notes,omitempty"`
	Actor        string            `json:"actor"`
}

// SupplierSummary aggregates one supplier's deliveries of a variant.
// AvgUnitCost is that supplier's historical average, not the variant's avgCost.
type SupplierSummary struct {
	SupplierID      string    `json:"supplier_id"`
	SupplierName    string    `json:"supplier_name"`
	TotalQty        int       `json:"total_qty"`
	PurchaseCount   int       `json:"purchase_count"`
	TotalCost       float64   `json:"total_cost"`
	AvgUnitCost     float64   `json:"avg_unit_cost"`
	LastPurchasedAt time.Time `json:"last_purchased_at"`
}

type MovementReport struct {
	Variant   Variant           `json:"variant"`
	Movements []Movement        `json:"movements"`
	Suppliers []SupplierSummary `json:"suppliers"`
	// NetQty sums the listed movements. It does not reconcile to
	// Variant.StockQty once a sale is voided or a purchase deleted.
	NetQty    int               `json:"net_qty"`
}

type InventorySummary struct {
	TotalVariants  int     `json:"total_variants"`
	TotalQuantity  int     `json:"total_quantity"`
	InventoryValue float64 `json:"inventory_value"`
}

type LowStockRow struct {
	VariantID    string  `json:"variant_id"`
	SKU          string  `json:"sku"`
	Barcode      string  `json:"barcode"`
	StockQty     int     `json:"stock_qty"`
	Threshold    int     `json:"threshold"`
	Needed       int     `json:"needed"`
	AvgCost      float64 `json:"avg_cost"`
	SellingPrice float64 `json:"selling_price"`
}

type OpeningStockRow struct {
	RowNumber int     `json:"row_number"`
	Code      string  `json:"code"`
	Qty       int     `json:"qty"`
	Notes     *string `json:"notes,omitempty"`
}

type OpeningStockResult struct {
	TotalRows    int      `json:"total_rows"`
	Applied      int      `json:"applied"`
	Skipped      int      `json:"skipped"`
	UnknownCodes []string `json:"unknown_codes,omitempty"`
}

// SalesStats summarizes sales created in a period. Revenue and ItemProfit
// cover COMPLETED sales only; ItemProfit ignores bill-level discounts.
type SalesStats struct {
	SalesCount  int     `json:"sales_count"`
	VoidedCount int     `json:"voided_count"`
	ItemsSold   int     `json:"items_sold"`
	Revenue     float64 `json:"revenue"`
	ItemProfit  float64 `json:"item_profit"`
}

// Package repository is the PostgreSQL implementation of store.Store.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Repository)(nil)

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithinTx runs fn in a single database transaction. Row locks taken by fn
// are held until commit or rollback.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Storage("begin tx", err)
	}
	defer tx.Rollback(context.WithoutCancel(ctx))

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Storage("commit tx", err)
	}
	return nil
}

const productColumns = `id, name, category, description, created_at, updated_at`

func (r *Repository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	product, err := scanProductRow(row)
	if err != nil {
		return domain.Product{}, mapError("get product "+id, err)
	}
	return product, nil
}

func (r *Repository) ListProducts(ctx context.Context, search string, limit, offset int) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
		ORDER BY name ASC, id ASC
		LIMIT $2 OFFSET $3
	`, strings.TrimSpace(search), store.NormalizeLimit(limit), store.NormalizeOffset(offset))
	if err != nil {
		return nil, mapError("list products", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, mapError("iterate products", err)
	}
	return products, nil
}

const variantColumns = `
	id, product_id, sku, barcode, size, color,
	selling_price::double precision, avg_cost::double precision,
	stock_qty, status, version, created_at, updated_at`

func (r *Repository) GetVariant(ctx context.Context, id string) (domain.Variant, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+variantColumns+` FROM variants WHERE id = $1`, id)
	variant, err := scanVariantRow(row)
	if err != nil {
		return domain.Variant{}, mapError("get variant "+id, err)
	}
	return variant, nil
}

func (r *Repository) FindVariantByCode(ctx context.Context, code string) (domain.Variant, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Variant{}, domain.NotFoundf("variant with empty code")
	}
	row := r.pool.QueryRow(ctx, `
		SELECT `+variantColumns+`
		FROM variants
		WHERE LOWER(sku) = LOWER($1) OR (barcode <> '' AND LOWER(barcode) = LOWER($1))
		ORDER BY (LOWER(sku) = LOWER($1)) DESC
		LIMIT 1
	`, code)
	variant, err := scanVariantRow(row)
	if err != nil {
		return domain.Variant{}, mapError("find variant with code "+code, err)
	}
	return variant, nil
}

func (r *Repository) ListVariants(ctx context.Context, filter store.VariantFilter) ([]domain.Variant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+variantColumns+`
		FROM variants
		WHERE ($1 = '' OR product_id = $1)
			AND ($2 = '' OR status = $2)
			AND ($3 = '' OR sku ILIKE '%' || $3 || '%' OR barcode ILIKE '%' || $3 || '%')
		ORDER BY sku ASC
		LIMIT $4 OFFSET $5
	`,
		filter.ProductID,
		string(filter.Status),
		strings.TrimSpace(filter.Search),
		store.NormalizeLimit(filter.Limit),
		store.NormalizeOffset(filter.Offset),
	)
	if err != nil {
		return nil, mapError("list variants", err)
	}
	variants, err := pgx.CollectRows(rows, scanVariant)
	if err != nil {
		return nil, mapError("iterate variants", err)
	}
	return variants, nil
}

func (r *Repository) ListLowStock(ctx context.Context, threshold int) ([]domain.Variant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+variantColumns+`
		FROM variants
		WHERE status = 'ACTIVE' AND stock_qty <= $1
		ORDER BY stock_qty ASC, sku ASC
	`, threshold)
	if err != nil {
		return nil, mapError("list low stock", err)
	}
	variants, err := pgx.CollectRows(rows, scanVariant)
	if err != nil {
		return nil, mapError("iterate low stock", err)
	}
	return variants, nil
}

func (r *Repository) InventorySummary(ctx context.Context) (domain.InventorySummary, error) {
	var summary domain.InventorySummary
	if err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(stock_qty), 0),
			COALESCE(SUM(ROUND(stock_qty * avg_cost, 2)), 0)::double precision
		FROM variants
	`).Scan(&summary.TotalVariants, &summary.TotalQuantity, &summary.InventoryValue); err != nil {
		return domain.InventorySummary{}, mapError("inventory summary", err)
	}
	return summary, nil
}

const supplierColumns = `id, name, phone, address, created_at`

func (r *Repository) GetSupplier(ctx context.Context, id string) (domain.Supplier, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, id)
	supplier, err := scanSupplierRow(row)
	if err != nil {
		return domain.Supplier{}, mapError("get supplier "+id, err)
	}
	return supplier, nil
}

func (r *Repository) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+supplierColumns+` FROM suppliers ORDER BY name ASC`)
	if err != nil {
		return nil, mapError("list suppliers", err)
	}
	suppliers, err := pgx.CollectRows(rows, scanSupplier)
	if err != nil {
		return nil, mapError("iterate suppliers", err)
	}
	return suppliers, nil
}

const userColumns = `id, username, full_name, role, created_at`

func (r *Repository) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUserRow(row)
	if err != nil {
		return domain.User{}, mapError("get user "+id, err)
	}
	return user, nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username ASC`)
	if err != nil {
		return nil, mapError("list users", err)
	}
	users, err := pgx.CollectRows(rows, scanUser)
	if err != nil {
		return nil, mapError("iterate users", err)
	}
	return users, nil
}

const purchaseColumns = `
	id, supplier_id, purchased_at, invoice_no, notes,
	total_cost::double precision, created_by, created_at`

func (r *Repository) GetPurchase(ctx context.Context, id string) (domain.Purchase, error) {
	return getPurchase(ctx, r.pool, id, false)
}

func (r *Repository) ListPurchases(ctx context.Context, filter store.ListFilter) ([]domain.Purchase, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+purchaseColumns+`
		FROM purchases
		WHERE ($1::timestamptz IS NULL OR purchased_at >= $1)
			AND ($2::timestamptz IS NULL OR purchased_at <= $2)
		ORDER BY purchased_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, filter.From, filter.To, store.NormalizeLimit(filter.Limit), store.NormalizeOffset(filter.Offset))
	if err != nil {
		return nil, mapError("list purchases", err)
	}
	purchases, err := pgx.CollectRows(rows, scanPurchase)
	if err != nil {
		return nil, mapError("iterate purchases", err)
	}
	return purchases, nil
}

const saleColumns = `
	id, bill_no, customer_name, customer_phone, payment_mode,
	subtotal::double precision, discount_amount::double precision, discount_percent::double precision,
	tax_amount::double precision, tax_percent::double precision, total::double precision,
	status, voided_at, voided_by, void_reason, created_by, created_at`

func (r *Repository) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	return getSale(ctx, r.pool, id, false)
}

func (r *Repository) ListSales(ctx context.Context, filter store.ListFilter) ([]domain.Sale, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
			AND ($2::timestamptz IS NULL OR created_at <= $2)
		ORDER BY created_at DESC, bill_no DESC
		LIMIT $3 OFFSET $4
	`, filter.From, filter.To, store.NormalizeLimit(filter.Limit), store.NormalizeOffset(filter.Offset))
	if err != nil {
		return nil, mapError("list sales", err)
	}
	sales, err := pgx.CollectRows(rows, scanSale)
	if err != nil {
		return nil, mapError("iterate sales", err)
	}
	return sales, nil
}

const adjustmentColumns = `id, variant_id, delta_qty, reason, notes, created_by, created_at`

func (r *Repository) GetStockAdjustment(ctx context.Context, id string) (domain.StockAdjustment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+adjustmentColumns+` FROM stock_adjustments WHERE id = $1`, id)
	adjustment, err := scanAdjustmentRow(row)
	if err != nil {
		return domain.StockAdjustment{}, mapError("get stock adjustment "+id, err)
	}
	return adjustment, nil
}

func (r *Repository) ListStockAdjustments(ctx context.Context, variantID string, filter store.ListFilter) ([]domain.StockAdjustment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+adjustmentColumns+`
		FROM stock_adjustments
		WHERE ($1 = '' OR variant_id = $1)
			AND ($2::timestamptz IS NULL OR created_at >= $2)
			AND ($3::timestamptz IS NULL OR created_at <= $3)
		ORDER BY created_at DESC, id ASC
		LIMIT $4 OFFSET $5
	`, variantID, filter.From, filter.To, store.NormalizeLimit(filter.Limit), store.NormalizeOffset(filter.Offset))
	if err != nil {
		return nil, mapError("list stock adjustments", err)
	}
	adjustments, err := pgx.CollectRows(rows, scanAdjustment)
	if err != nil {
		return nil, mapError("iterate stock adjustments", err)
	}
	return adjustments, nil
}

const settingsColumns = `
	shop_name, address, phone, bill_prefix, last_bill_number,
	low_stock_threshold, default_tax_percent::double precision, updated_at`

// GetSettings falls back to the defaults when the singleton row is missing.
func (r *Repository) GetSettings(ctx context.Context) (domain.Settings, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+settingsColumns+` FROM settings WHERE id = 1`)
	settings, err := scanSettingsRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultSettings(), nil
	}
	if err != nil {
		return domain.Settings{}, mapError("get settings", err)
	}
	return settings, nil
}

func (r *Repository) SalesStats(ctx context.Context, filter store.ListFilter) (domain.SalesStats, error) {
	var stats domain.SalesStats
	if err := r.pool.QueryRow(ctx, `
		WITH period AS (
			SELECT id, status, total
			FROM sales
			WHERE ($1::timestamptz IS NULL OR created_at >= $1)
				AND ($2::timestamptz IS NULL OR created_at <= $2)
		)
		SELECT
			COUNT(*) FILTER (WHERE status = 'COMPLETED')::int,
			COUNT(*) FILTER (WHERE status = 'VOIDED')::int,
			COALESCE((
				SELECT SUM(si.qty) FROM sale_items si
				JOIN period p ON p.id = si.sale_id AND p.status = 'COMPLETED'
			), 0)::int,
			COALESCE(SUM(total) FILTER (WHERE status = 'COMPLETED'), 0)::double precision,
			COALESCE((
				SELECT SUM(ROUND((si.unit_price - si.unit_cost_at_sale) * si.qty, 2)) FROM sale_items si
				JOIN period p ON p.id = si.sale_id AND p.status = 'COMPLETED'
			), 0)::double precision
		FROM period
	`, filter.From, filter.To).Scan(
		&stats.SalesCount,
		&stats.VoidedCount,
		&stats.ItemsSold,
		&stats.Revenue,
		&stats.ItemProfit,
	); err != nil {
		return domain.SalesStats{}, mapError("sales stats", err)
	}
	return stats, nil
}

func (r *Repository) VariantAdjustments(ctx context.Context, variantID string) ([]domain.StockAdjustment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+adjustmentColumns+`
		FROM stock_adjustments
		WHERE variant_id = $1
		ORDER BY created_at DESC, id ASC
	`, variantID)
	if err != nil {
		return nil, mapError("variant adjustments", err)
	}
	adjustments, err := pgx.CollectRows(rows, scanAdjustment)
	if err != nil {
		return nil, mapError("iterate variant adjustments", err)
	}
	return adjustments, nil
}

func (r *Repository) VariantPurchaseLines(ctx context.Context, variantID string) ([]store.PurchaseLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			pi.id, pi.purchase_id, pi.variant_id, pi.qty,
			pi.unit_cost::double precision, pi.line_total::double precision,
			p.supplier_id, COALESCE(s.name, ''), p.purchased_at, p.invoice_no, p.notes, p.created_by
		FROM purchase_items pi
		JOIN purchases p ON p.id = pi.purchase_id
		LEFT JOIN suppliers s ON s.id = p.supplier_id
		WHERE pi.variant_id = $1
		ORDER BY p.purchased_at DESC, pi.purchase_id ASC, pi.line_no ASC
	`, variantID)
	if err != nil {
		return nil, mapError("variant purchase lines", err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.PurchaseLine, error) {
		var line store.PurchaseLine
		err := row.Scan(
			&line.Item.ID, &line.Item.PurchaseID, &line.Item.VariantID, &line.Item.Qty,
			&line.Item.UnitCost, &line.Item.LineTotal,
			&line.SupplierID, &line.SupplierName, &line.PurchasedAt, &line.InvoiceNo, &line.Notes, &line.CreatedBy,
		)
		return line, err
	})
	if err != nil {
		return nil, mapError("iterate variant purchase lines", err)
	}
	return lines, nil
}

func (r *Repository) VariantSaleLines(ctx context.Context, variantID string) ([]store.SaleLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			si.id, si.sale_id, si.variant_id, si.qty,
			si.unit_price::double precision, si.unit_cost_at_sale::double precision, si.line_total::double precision,
			s.bill_no, s.status, s.created_at, s.created_by, s.voided_at, s.voided_by
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		WHERE si.variant_id = $1
		ORDER BY s.created_at DESC, si.sale_id ASC, si.line_no ASC
	`, variantID)
	if err != nil {
		return nil, mapError("variant sale lines", err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.SaleLine, error) {
		var (
			line   store.SaleLine
			status string
		)
		err := row.Scan(
			&line.Item.ID, &line.Item.SaleID, &line.Item.VariantID, &line.Item.Qty,
			&line.Item.UnitPrice, &line.Item.UnitCostAtSale, &line.Item.LineTotal,
			&line.BillNo, &status, &line.CreatedAt, &line.CreatedBy, &line.VoidedAt, &line.VoidedBy,
		)
		line.Status = domain.SaleStatus(status)
		return line, err
	})
	if err != nil {
		return nil, mapError("iterate variant sale lines", err)
	}
	return lines, nil
}

func (r *Repository) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO products (id, name, category, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+productColumns,
		product.ID, product.Name, product.Category, product.Description, product.CreatedAt, product.UpdatedAt,
	)
	created, err := scanProductRow(row)
	if err != nil {
		return domain.Product{}, mapError("create product", err)
	}
	return created, nil
}

func (r *Repository) CreateVariant(ctx context.Context, variant domain.Variant) (domain.Variant, error) {
	if variant.Version == 0 {
		variant.Version = 1
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO variants (
			id, product_id, sku, barcode, size, color,
			selling_price, avg_cost, stock_qty, status, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+variantColumns,
		variant.ID, variant.ProductID, variant.SKU, variant.Barcode, variant.Size, variant.Color,
		variant.SellingPrice, variant.AvgCost, variant.StockQty, string(variant.Status),
		variant.Version, variant.CreatedAt, variant.UpdatedAt,
	)
	created, err := scanVariantRow(row)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.Variant{}, domain.NotFoundf("product %s", variant.ProductID)
		}
		return domain.Variant{}, mapError("create variant", err)
	}
	return created, nil
}

// UpdateVariantMeta leaves stock_qty, avg_cost and version alone so that a
// concurrent stock transaction never loses its write.
func (r *Repository) UpdateVariantMeta(ctx context.Context, id string, patch store.VariantMetaPatch, at time.Time) (domain.Variant, error) {
	var status *string
	if patch.Status != nil {
		value := string(*patch.Status)
		status = &value
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE variants
		SET
			selling_price = COALESCE($2, selling_price),
			status = COALESCE($3, status),
			size = COALESCE($4, size),
			color = COALESCE($5, color),
			updated_at = $6
		WHERE id = $1
		RETURNING `+variantColumns,
		id, patch.SellingPrice, status, patch.Size, patch.Color, at,
	)
	variant, err := scanVariantRow(row)
	if err != nil {
		return domain.Variant{}, mapError("update variant "+id, err)
	}
	return variant, nil
}

func (r *Repository) DeleteVariant(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM variants WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: variant %s has stock history", domain.ErrReferenced, id)
		}
		return mapError("delete variant "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("variant %s", id)
	}
	return nil
}

func (r *Repository) CreateSupplier(ctx context.Context, supplier domain.Supplier) (domain.Supplier, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO suppliers (id, name, phone, address, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+supplierColumns,
		supplier.ID, supplier.Name, supplier.Phone, supplier.Address, supplier.CreatedAt,
	)
	created, err := scanSupplierRow(row)
	if err != nil {
		return domain.Supplier{}, mapError("create supplier", err)
	}
	return created, nil
}

func (r *Repository) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, full_name, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		user.ID, user.Username, user.FullName, string(user.Role), user.CreatedAt,
	)
	created, err := scanUserRow(row)
	if err != nil {
		return domain.User{}, mapError("create user", err)
	}
	return created, nil
}

func (r *Repository) UpdateSettings(ctx context.Context, patch store.SettingsPatch, at time.Time) (domain.Settings, error) {
	defaults := domain.DefaultSettings()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO settings (id, shop_name, address, phone, bill_prefix, low_stock_threshold, default_tax_percent, updated_at)
		VALUES (1, COALESCE($1, $7), $2, $3, COALESCE($4, $8), COALESCE($5::integer, $9::integer), COALESCE($6::numeric, 0), $10)
		ON CONFLICT (id) DO UPDATE SET
			shop_name = COALESCE($1, settings.shop_name),
			address = COALESCE($2, settings.address),
			phone = COALESCE($3, settings.phone),
			bill_prefix = COALESCE($4, settings.bill_prefix),
			low_stock_threshold = COALESCE($5::integer, settings.low_stock_threshold),
			default_tax_percent = COALESCE($6::numeric, settings.default_tax_percent),
			updated_at = $10
		RETURNING `+settingsColumns,
		patch.ShopName, patch.Address, patch.Phone, patch.BillPrefix,
		patch.LowStockThreshold, patch.DefaultTaxPercent,
		defaults.ShopName, defaults.BillPrefix, defaults.LowStockThreshold, at,
	)
	settings, err := scanSettingsRow(row)
	if err != nil {
		return domain.Settings{}, mapError("update settings", err)
	}
	return settings, nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getPurchase(ctx context.Context, q querier, id string, forUpdate bool) (domain.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	purchase, err := scanPurchaseRow(q.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Purchase{}, mapError("get purchase "+id, err)
	}

	rows, err := q.Query(ctx, `
		SELECT id, purchase_id, variant_id, qty, unit_cost::double precision, line_total::double precision
		FROM purchase_items
		WHERE purchase_id = $1
		ORDER BY line_no ASC
	`, id)
	if err != nil {
		return domain.Purchase{}, mapError("list purchase items", err)
	}
	purchase.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.PurchaseItem, error) {
		var item domain.PurchaseItem
		err := row.Scan(&item.ID, &item.PurchaseID, &item.VariantID, &item.Qty, &item.UnitCost, &item.LineTotal)
		return item, err
	})
	if err != nil {
		return domain.Purchase{}, mapError("iterate purchase items", err)
	}
	return purchase, nil
}

func getSale(ctx context.Context, q querier, id string, forUpdate bool) (domain.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	sale, err := scanSaleRow(q.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Sale{}, mapError("get sale "+id, err)
	}

	rows, err := q.Query(ctx, `
		SELECT
			id, sale_id, variant_id, qty, unit_price::double precision,
			unit_cost_at_sale::double precision, line_total::double precision
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY line_no ASC
	`, id)
	if err != nil {
		return domain.Sale{}, mapError("list sale items", err)
	}
	sale.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SaleItem, error) {
		var item domain.SaleItem
		err := row.Scan(&item.ID, &item.SaleID, &item.VariantID, &item.Qty, &item.UnitPrice, &item.UnitCostAtSale, &item.LineTotal)
		return item, err
	})
	if err != nil {
		return domain.Sale{}, mapError("iterate sale items", err)
	}
	return sale, nil
}

func scanProduct(rows pgx.CollectableRow) (domain.Product, error) {
	return scanProductRow(rows)
}

func scanProductRow(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanVariant(rows pgx.CollectableRow) (domain.Variant, error) {
	return scanVariantRow(rows)
}

func scanVariantRow(row pgx.Row) (domain.Variant, error) {
	var (
		v      domain.Variant
		status string
	)
	if err := row.Scan(
		&v.ID,
		&v.ProductID,
		&v.SKU,
		&v.Barcode,
		&v.Size,
		&v.Color,
		&v.SellingPrice,
		&v.AvgCost,
		&v.StockQty,
		&status,
		&v.Version,
		&v.CreatedAt,
		&v.UpdatedAt,
	); err != nil {
		return domain.Variant{}, err
	}
	v.Status = domain.VariantStatus(status)
	return v, nil
}

func scanSupplier(rows pgx.CollectableRow) (domain.Supplier, error) {
	return scanSupplierRow(rows)
}

func scanSupplierRow(row pgx.Row) (domain.Supplier, error) {
	var s domain.Supplier
	err := row.Scan(&s.ID, &s.Name, &s.Phone, &s.Address, &s.CreatedAt)
	return s, err
}

func scanUser(rows pgx.CollectableRow) (domain.User, error) {
	return scanUserRow(rows)
}

func scanUserRow(row pgx.Row) (domain.User, error) {
	var (
		u    domain.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.FullName, &role, &u.CreatedAt); err != nil {
		return domain.User{}, err
	}
	u.Role = domain.UserRole(role)
	return u, nil
}

func scanPurchase(rows pgx.CollectableRow) (domain.Purchase, error) {
	return scanPurchaseRow(rows)
}

func scanPurchaseRow(row pgx.Row) (domain.Purchase, error) {
	var p domain.Purchase
	err := row.Scan(&p.ID, &p.SupplierID, &p.PurchasedAt, &p.InvoiceNo, &p.Notes, &p.TotalCost, &p.CreatedBy, &p.CreatedAt)
	return p, err
}

func scanSale(rows pgx.CollectableRow) (domain.Sale, error) {
	return scanSaleRow(rows)
}

func scanSaleRow(row pgx.Row) (domain.Sale, error) {
	var (
		s       domain.Sale
		payment string
		status  string
	)
	if err := row.Scan(
		&s.ID,
		&s.BillNo,
		&s.CustomerName,
		&s.CustomerPhone,
		&payment,
		&s.Subtotal,
		&s.DiscountAmount,
		&s.DiscountPercent,
		&s.TaxAmount,
		&s.TaxPercent,
		&s.Total,
		&status,
		&s.VoidedAt,
		&s.VoidedBy,
		&s.VoidReason,
		&s.CreatedBy,
		&s.CreatedAt,
	); err != nil {
		return domain.Sale{}, err
	}
	s.PaymentMode = domain.PaymentMode(payment)
	s.Status = domain.SaleStatus(status)
	return s, nil
}

func scanAdjustment(rows pgx.CollectableRow) (domain.StockAdjustment, error) {
	return scanAdjustmentRow(rows)
}

func scanAdjustmentRow(row pgx.Row) (domain.StockAdjustment, error) {
	var (
		a      domain.StockAdjustment
		reason string
	)
	if err := row.Scan(&a.ID, &a.VariantID, &a.DeltaQty, &reason, &a.Notes, &a.CreatedBy, &a.CreatedAt); err != nil {
		return domain.StockAdjustment{}, err
	}
	a.Reason = domain.AdjustmentReason(reason)
	return a, nil
}

func scanSettingsRow(row pgx.Row) (domain.Settings, error) {
	var s domain.Settings
	err := row.Scan(
		&s.ShopName,
		&s.Address,
		&s.Phone,
		&s.BillPrefix,
		&s.LastBillNumber,
		&s.LowStockThreshold,
		&s.DefaultTaxPercent,
		&s.UpdatedAt,
	)
	return s, err
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/store"

	"github.com/jackc/pgx/v5"
)

type pgTx struct {
	tx pgx.Tx
}

var _ store.Tx = (*pgTx)(nil)

// ClaimIdempotencyKey inserts the key. A concurrent claimant blocks on the
// unique index until the first transaction ends, then either sees the
// committed record or takes the key over after a rollback.
func (t *pgTx) ClaimIdempotencyKey(ctx context.Context, key, kind string, at time.Time) (store.IdempotencyRecord, bool, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO idempotency_keys (key, kind, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO NOTHING
	`, key, kind, at)
	if err != nil {
		return store.IdempotencyRecord{}, false, mapError("claim idempotency key", err)
	}
	if tag.RowsAffected() == 1 {
		return store.IdempotencyRecord{Key: key, Kind: kind, CreatedAt: at}, true, nil
	}

	var record store.IdempotencyRecord
	if err := t.tx.QueryRow(ctx, `
		SELECT key, kind, record_id, created_at
		FROM idempotency_keys
		WHERE key = $1
	`, key).Scan(&record.Key, &record.Kind, &record.RecordID, &record.CreatedAt); err != nil {
		return store.IdempotencyRecord{}, false, mapError("load idempotency key", err)
	}
	return record, false, nil
}

func (t *pgTx) CompleteIdempotencyKey(ctx context.Context, key, recordID string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE idempotency_keys SET record_id = $2 WHERE key = $1`, key, recordID)
	if err != nil {
		return mapError("complete idempotency key", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("idempotency key %s was not claimed in this transaction", key)
	}
	return nil
}

func (t *pgTx) LockVariants(ctx context.Context, ids []string) error {
	sorted := slices.Compact(slices.Sorted(slices.Values(ids)))
	rows, err := t.tx.Query(ctx, `
		SELECT id FROM variants
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, sorted)
	if err != nil {
		return mapError("lock variants", err)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return mapError("lock variants", err)
	}
	return nil
}

func (t *pgTx) GetVariantForUpdate(ctx context.Context, id string) (domain.Variant, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+variantColumns+` FROM variants WHERE id = $1 FOR UPDATE`, id)
	variant, err := scanVariantRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Variant{}, domain.NotFoundf("variant %s", id)
	}
	if err != nil {
		return domain.Variant{}, mapError("lock variant "+id, err)
	}
	return variant, nil
}

func (t *pgTx) UpdateVariantStock(ctx context.Context, variant domain.Variant) (domain.Variant, error) {
	row := t.tx.QueryRow(ctx, `
		UPDATE variants
		SET
			stock_qty = $2,
			avg_cost = $3,
			updated_at = $4,
			version = version + 1
		WHERE id = $1
		RETURNING `+variantColumns,
		variant.ID, variant.StockQty, variant.AvgCost, variant.UpdatedAt,
	)
	updated, err := scanVariantRow(row)
	if err != nil {
		return domain.Variant{}, mapError("update variant stock "+variant.ID, err)
	}
	return updated, nil
}

func (t *pgTx) TouchVariants(ctx context.Context, ids []string, at time.Time) error {
	if err := t.LockVariants(ctx, ids); err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, `
		UPDATE variants
		SET version = version + 1, updated_at = $2
		WHERE id = ANY($1)
	`, ids, at); err != nil {
		return mapError("touch variants", err)
	}
	return nil
}

func (t *pgTx) InsertPurchase(ctx context.Context, purchase domain.Purchase) error {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO purchases (
			id, supplier_id, purchased_at, invoice_no, notes, total_cost, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		purchase.ID, purchase.SupplierID, purchase.PurchasedAt, purchase.InvoiceNo,
		purchase.Notes, purchase.TotalCost, purchase.CreatedBy, purchase.CreatedAt,
	); err != nil {
		if isForeignKeyViolation(err) {
			return domain.NotFoundf("supplier %s", purchase.SupplierID)
		}
		return mapError("insert purchase", err)
	}

	for i, item := range purchase.Items {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO purchase_items (id, purchase_id, line_no, variant_id, qty, unit_cost, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, purchase.ID, i+1, item.VariantID, item.Qty, item.UnitCost, item.LineTotal); err != nil {
			return mapError("insert purchase item", err)
		}
	}
	return nil
}

func (t *pgTx) GetPurchaseForUpdate(ctx context.Context, id string) (domain.Purchase, error) {
	return getPurchase(ctx, t.tx, id, true)
}

// DeletePurchase removes the header; items go with it through ON DELETE CASCADE.
func (t *pgTx) DeletePurchase(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM purchases WHERE id = $1`, id)
	if err != nil {
		return mapError("delete purchase "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("purchase %s", id)
	}
	return nil
}

func (t *pgTx) InsertSale(ctx context.Context, sale domain.Sale) error {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO sales (
			id, bill_no, customer_name, customer_phone, payment_mode,
			subtotal, discount_amount, discount_percent, tax_amount, tax_percent, total,
			status, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		sale.ID, sale.BillNo, sale.CustomerName, sale.CustomerPhone, string(sale.PaymentMode),
		sale.Subtotal, sale.DiscountAmount, sale.DiscountPercent, sale.TaxAmount, sale.TaxPercent, sale.Total,
		string(sale.Status), sale.CreatedBy, sale.CreatedAt,
	); err != nil {
		return mapError("insert sale", err)
	}

	batch := &pgx.Batch{}
	for i, item := range sale.Items {
		batch.Queue(`
			INSERT INTO sale_items (id, sale_id, line_no, variant_id, qty, unit_price, unit_cost_at_sale, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, item.ID, sale.ID, i+1, item.VariantID, item.Qty, item.UnitPrice, item.UnitCostAtSale, item.LineTotal)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return mapError("insert sale items", err)
	}
	return nil
}

func (t *pgTx) GetSaleForUpdate(ctx context.Context, id string) (domain.Sale, error) {
	return getSale(ctx, t.tx, id, true)
}

func (t *pgTx) MarkSaleVoided(ctx context.Context, id string, at time.Time, voidedBy, reason string) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE sales
		SET status = 'VOIDED', voided_at = $2, voided_by = $3, void_reason = $4
		WHERE id = $1
	`, id, at, voidedBy, reason)
	if err != nil {
		return mapError("void sale "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("sale %s", id)
	}
	return nil
}

// NextBillNumber increments the counter in place. The settings row stays
// locked until the transaction ends, so numbers are handed out in commit
// order and a rollback returns the number.
func (t *pgTx) NextBillNumber(ctx context.Context) (string, int64, error) {
	var (
		prefix string
		number int64
	)
	err := t.tx.QueryRow(ctx, `
		UPDATE settings
		SET last_bill_number = last_bill_number + 1
		WHERE id = 1
		RETURNING bill_prefix, last_bill_number
	`).Scan(&prefix, &number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", 0, domain.Storage("next bill number", errors.New("settings row is missing"))
	}
	if err != nil {
		return "", 0, mapError("next bill number", err)
	}
	return prefix, number, nil
}

func (t *pgTx) InsertStockAdjustment(ctx context.Context, adjustment domain.StockAdjustment) error {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO stock_adjustments (id, variant_id, delta_qty, reason, notes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		adjustment.ID, adjustment.VariantID, adjustment.DeltaQty, string(adjustment.Reason),
		adjustment.Notes, adjustment.CreatedBy, adjustment.CreatedAt,
	); err != nil {
		if isForeignKeyViolation(err) {
			return domain.NotFoundf("variant %s", adjustment.VariantID)
		}
		return mapError("insert stock adjustment", err)
	}
	return nil
}

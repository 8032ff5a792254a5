package ledger

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/pricing"
	"stockledger/internal/store"
)

type PurchaseItemInput struct {
	VariantID string  `json:"variant_id" validate:"required"`
	Qty       int     `json:"qty" validate:"gt=0"`
	UnitCost  float64 `json:"unit_cost" validate:"gte=0"`
}

type PurchaseInput struct {
	SupplierID     string              `json:"supplier_id" validate:"required"`
	PurchasedAt    *time.Time          `json:"purchased_at"`
	InvoiceNo      *string             `json:"invoice_no"`
	Notes          *string             `json:"notes"`
	CreatedBy      string              `json:"created_by" validate:"required"`
	IdempotencyKey string              `json:"idempotency_key" validate:"max=128"`
	Items          []PurchaseItemInput `json:"items" validate:"min=1,dive"`
}

// CreatePurchase receives stock. Lines are applied in order, so several lines
// of one variant at different costs are averaged sequentially.
func (l *Ledger) CreatePurchase(ctx context.Context, input PurchaseInput) (domain.Purchase, error) {
	if err := l.validate.Struct(input); err != nil {
		return domain.Purchase{}, err
	}
	if _, err := l.store.GetSupplier(ctx, input.SupplierID); err != nil {
		return domain.Purchase{}, err
	}

	now := l.now()
	purchase := domain.Purchase{
		ID:          l.newID(),
		SupplierID:  input.SupplierID,
		PurchasedAt: now,
		InvoiceNo:   input.InvoiceNo,
		Notes:       input.Notes,
		CreatedBy:   input.CreatedBy,
		CreatedAt:   now,
		Items:       make([]domain.PurchaseItem, 0, len(input.Items)),
	}
	if input.PurchasedAt != nil {
		purchase.PurchasedAt = input.PurchasedAt.UTC()
	}

	variantIDs := make([]string, 0, len(input.Items))
	for _, item := range input.Items {
		unitCost := pricing.Round2(item.UnitCost)
		line := domain.PurchaseItem{
			ID:         l.newID(),
			PurchaseID: purchase.ID,
			VariantID:  item.VariantID,
			Qty:        item.Qty,
			UnitCost:   unitCost,
			LineTotal:  pricing.LineTotal(item.Qty, unitCost),
		}
		purchase.TotalCost = pricing.Round2(purchase.TotalCost + line.LineTotal)
		purchase.Items = append(purchase.Items, line)
		variantIDs = append(variantIDs, item.VariantID)
	}

	var replayID string
	err := l.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		existing, err := claim(ctx, tx, input.IdempotencyKey, store.KindPurchase, now)
		if err != nil || existing != "" {
			replayID = existing
			return err
		}

		if err := tx.LockVariants(ctx, uniqueIDs(variantIDs)); err != nil {
			return err
		}
		for _, item := range purchase.Items {
			cost := item.UnitCost
			if _, err := adjustStock(ctx, tx, item.VariantID, item.Qty, &cost, now); err != nil {
				return err
			}
		}
		if err := tx.InsertPurchase(ctx, purchase); err != nil {
			return err
		}
		return complete(ctx, tx, input.IdempotencyKey, purchase.ID)
	})
	if err != nil {
		return domain.Purchase{}, fmt.Errorf("create purchase: %w", err)
	}
	if replayID != "" {
		return l.store.GetPurchase(ctx, replayID)
	}
	return purchase, nil
}

type DeletePurchaseOptions struct {
	// RetainStockEffect acknowledges that the stock and cost the purchase
	// added stay on the variants after the record is gone.
	RetainStockEffect bool
}

// DeletePurchase removes a purchase and its items without reversing their
// stock or cost effect. Use a stock adjustment to correct quantities.
func (l *Ledger) DeletePurchase(ctx context.Context, id string, opts DeletePurchaseOptions) error {
	if !opts.RetainStockEffect {
		return domain.Validationf("deleting purchase %s keeps the stock and cost it added; confirm with retain_stock_effect", id)
	}

	now := l.now()
	err := l.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		purchase, err := tx.GetPurchaseForUpdate(ctx, id)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(purchase.Items))
		for _, item := range purchase.Items {
			ids = append(ids, item.VariantID)
		}
		// History of these variants changed, so cached movement feeds keyed
		// by version must not be reused.
		if err := tx.TouchVariants(ctx, uniqueIDs(ids), now); err != nil {
			return err
		}
		return tx.DeletePurchase(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete purchase %s: %w", id, err)
	}
	return nil
}

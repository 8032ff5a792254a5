package ledger

import (
	"context"
	"fmt"

	"stockledger/internal/domain"
	"stockledger/internal/store"
)

type AdjustmentInput struct {
	VariantID      string                  `json:"variant_id" validate:"required"`
	DeltaQty       int                     `json:"delta_qty" validate:"ne=0"`
	Reason         domain.AdjustmentReason `json:"reason" validate:"required,oneof=OPENING_STOCK DAMAGE THEFT CORRECTION RETURN OTHER"`
	Notes          *string                 `json:"notes"`
	CreatedBy      string                  `json:"created_by" validate:"required"`
	IdempotencyKey string                  `json:"idempotency_key" validate:"max=128"`
}

// CreateStockAdjustment changes quantity only. Positive adjustments, opening
// stock included, never touch avgCost.
func (l *Ledger) CreateStockAdjustment(ctx context.Context, input AdjustmentInput) (domain.StockAdjustment, error) {
	if err := l.validate.Struct(input); err != nil {
		return domain.StockAdjustment{}, err
	}

	now := l.now()
	adjustment := domain.StockAdjustment{
		ID:        l.newID(),
		VariantID: input.VariantID,
		DeltaQty:  input.DeltaQty,
		Reason:    input.Reason,
		Notes:     input.Notes,
		CreatedBy: input.CreatedBy,
		CreatedAt: now,
	}

	var replayID string
	err := l.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		existing, err := claim(ctx, tx, input.IdempotencyKey, store.KindAdjustment, now)
		if err != nil || existing != "" {
			replayID = existing
			return err
		}
		if _, err := adjustStock(ctx, tx, input.VariantID, input.DeltaQty, nil, now); err != nil {
			return err
		}
		if err := tx.InsertStockAdjustment(ctx, adjustment); err != nil {
			return err
		}
		return complete(ctx, tx, input.IdempotencyKey, adjustment.ID)
	})
	if err != nil {
		return domain.StockAdjustment{}, fmt.Errorf("create stock adjustment: %w", err)
	}
	if replayID != "" {
		return l.store.GetStockAdjustment(ctx, replayID)
	}
	return adjustment, nil
}

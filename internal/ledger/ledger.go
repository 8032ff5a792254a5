// Package ledger records stock-affecting transactions: purchases, sales,
// sale voids and manual adjustments. Each recorder runs in a single store
// transaction and changes variant stock only through adjustStock, which is
// the one place the non-negative stock invariant is enforced.
package ledger

import (
	"context"
	"fmt"
	"slices"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/pricing"
	"stockledger/internal/store"
	"stockledger/internal/validation"

	"github.com/google/uuid"
)

type Ledger struct {
	store    store.Store
	validate *validation.Validator
	now      func() time.Time
	newID    func() string
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:    s,
		validate: validation.New(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// adjustStock applies qtyDelta to one variant. A positive delta with a unit
// cost folds that cost into the weighted average; every other change leaves
// avgCost untouched.
func adjustStock(ctx context.Context, tx store.Tx, variantID string, qtyDelta int, newUnitCost *float64, at time.Time) (domain.Variant, error) {
	variant, err := tx.GetVariantForUpdate(ctx, variantID)
	if err != nil {
		return domain.Variant{}, err
	}

	newQty := variant.StockQty + qtyDelta
	if newQty < 0 {
		return domain.Variant{}, fmt.Errorf("%w: %s has %d in stock, change of %d", domain.ErrInsufficientStock, variant.SKU, variant.StockQty, qtyDelta)
	}
	if qtyDelta > 0 && newUnitCost != nil {
		variant.AvgCost = pricing.WeightedAvgCost(variant.StockQty, variant.AvgCost, qtyDelta, *newUnitCost)
	}
	variant.StockQty = newQty
	variant.UpdatedAt = at

	return tx.UpdateVariantStock(ctx, variant)
}

// claim reserves an idempotency key. It returns the id of the record an
// earlier call already created with the same key, or "" when the caller
// should proceed.
func claim(ctx context.Context, tx store.Tx, key, kind string, at time.Time) (string, error) {
	if key == "" {
		return "", nil
	}
	record, claimed, err := tx.ClaimIdempotencyKey(ctx, key, kind, at)
	if err != nil {
		return "", err
	}
	if claimed {
		return "", nil
	}
	if record.Kind != kind {
		return "", domain.Validationf("idempotency key %s was already used for a %s", key, record.Kind)
	}
	if record.RecordID == "" {
		return "", fmt.Errorf("idempotency key %s has no recorded result", key)
	}
	return record.RecordID, nil
}

func complete(ctx context.Context, tx store.Tx, key, recordID string) error {
	if key == "" {
		return nil
	}
	return tx.CompleteIdempotencyKey(ctx, key, recordID)
}

func uniqueIDs(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

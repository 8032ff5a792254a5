package ledger

import (
	"context"
	"fmt"
	"strings"

	"stockledger/internal/domain"
	"stockledger/internal/pricing"
	"stockledger/internal/store"
)

type SaleItemInput struct {
	VariantID string  `json:"variant_id" validate:"required"`
	Qty       int     `json:"qty" validate:"gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

// SaleInput carries the bill as the till computed it. The amounts are checked
// against a server-side recomputation before anything is written.
type SaleInput struct {
	CustomerName    *string            `json:"customer_name"`
	CustomerPhone   *string            `json:"customer_phone"`
	PaymentMode     domain.PaymentMode `json:"payment_mode" validate:"required,oneof=CASH CARD UPI OTHER"`
	Subtotal        float64            `json:"subtotal" validate:"gte=0"`
	DiscountAmount  float64            `json:"discount_amount" validate:"gte=0"`
	DiscountPercent float64            `json:"discount_percent" validate:"gte=0,lte=100"`
	TaxAmount       float64            `json:"tax_amount" validate:"gte=0"`
	TaxPercent      float64            `json:"tax_percent" validate:"gte=0,lte=100"`
	Total           float64            `json:"total" validate:"gte=0"`
	CreatedBy       string             `json:"created_by" validate:"required"`
	IdempotencyKey  string             `json:"idempotency_key" validate:"max=128"`
	Items           []SaleItemInput    `json:"items" validate:"min=1,dive"`
}

func (l *Ledger) CreateSale(ctx context.Context, input SaleInput) (domain.Sale, error) {
	if err := l.validate.Struct(input); err != nil {
		return domain.Sale{}, err
	}
	totals, err := verifyTotals(input)
	if err != nil {
		return domain.Sale{}, err
	}

	now := l.now()
	sale := domain.Sale{
		ID:              l.newID(),
		CustomerName:    input.CustomerName,
		CustomerPhone:   input.CustomerPhone,
		PaymentMode:     input.PaymentMode,
		Subtotal:        totals.Subtotal,
		DiscountAmount:  totals.DiscountAmount,
		DiscountPercent: input.DiscountPercent,
		TaxAmount:       totals.TaxAmount,
		TaxPercent:      input.TaxPercent,
		Total:           totals.Total,
		Status:          domain.SaleCompleted,
		CreatedBy:       input.CreatedBy,
		CreatedAt:       now,
		Items:           make([]domain.SaleItem, 0, len(input.Items)),
	}
	variantIDs := make([]string, 0, len(input.Items))
	for _, item := range input.Items {
		unitPrice := pricing.Round2(item.UnitPrice)
		sale.Items = append(sale.Items, domain.SaleItem{
			ID:        l.newID(),
			SaleID:    sale.ID,
			VariantID: item.VariantID,
			Qty:       item.Qty,
			UnitPrice: unitPrice,
			LineTotal: pricing.LineTotal(item.Qty, unitPrice),
		})
		variantIDs = append(variantIDs, item.VariantID)
	}

	var replayID string
	err = l.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		existing, err := claim(ctx, tx, input.IdempotencyKey, store.KindSale, now)
		if err != nil || existing != "" {
			replayID = existing
			return err
		}

		if err := tx.LockVariants(ctx, uniqueIDs(variantIDs)); err != nil {
			return err
		}
		for i, item := range sale.Items {
			variant, err := tx.GetVariantForUpdate(ctx, item.VariantID)
			if err != nil {
				return err
			}
			sale.Items[i].UnitCostAtSale = variant.AvgCost
			if _, err := adjustStock(ctx, tx, item.VariantID, -item.Qty, nil, now); err != nil {
				return err
			}
		}

		// The counter is taken last so a sale that fails on stock never
		// holds it, and a rollback returns the number.
		prefix, number, err := tx.NextBillNumber(ctx)
		if err != nil {
			return err
		}
		sale.BillNo = FormatBillNo(prefix, number)

		if err := tx.InsertSale(ctx, sale); err != nil {
			return err
		}
		return complete(ctx, tx, input.IdempotencyKey, sale.ID)
	})
	if err != nil {
		return domain.Sale{}, fmt.Errorf("create sale: %w", err)
	}
	if replayID != "" {
		return l.store.GetSale(ctx, replayID)
	}
	return sale, nil
}

// verifyTotals recomputes the bill from its lines. A percent discount wins
// over the flat amount when both are given.
func verifyTotals(input SaleInput) (pricing.Totals, error) {
	lines := make([]pricing.Line, 0, len(input.Items))
	for _, item := range input.Items {
		lines = append(lines, pricing.Line{Qty: item.Qty, UnitPrice: item.UnitPrice})
	}
	totals := pricing.SaleTotals(lines, input.DiscountPercent, input.DiscountAmount, input.TaxPercent)

	if input.DiscountPercent == 0 && totals.DiscountAmount > totals.Subtotal {
		return pricing.Totals{}, domain.Validationf("discount %.2f exceeds subtotal %.2f", totals.DiscountAmount, totals.Subtotal)
	}

	checks := []struct {
		field     string
		got, want float64
	}{
		{"subtotal", input.Subtotal, totals.Subtotal},
		{"discount_amount", input.DiscountAmount, totals.DiscountAmount},
		{"tax_amount", input.TaxAmount, totals.TaxAmount},
		{"total", input.Total, totals.Total},
	}
	for _, c := range checks {
		if !pricing.WithinTolerance(c.got, c.want) {
			return pricing.Totals{}, fmt.Errorf("%w: %s is %.2f, expected %.2f", domain.ErrTotalsMismatch, c.field, c.got, c.want)
		}
	}
	return totals, nil
}

// VoidSale reverses a completed sale's stock effect. Restored units come back
// at the variant's current avgCost.
func (l *Ledger) VoidSale(ctx context.Context, id, voidedBy, reason string) (domain.Sale, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Sale{}, domain.Validationf("void reason is required")
	}
	if strings.TrimSpace(voidedBy) == "" {
		return domain.Sale{}, domain.Validationf("voided_by is required")
	}

	now := l.now()
	var voided domain.Sale
	err := l.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		sale, err := tx.GetSaleForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if sale.Status == domain.SaleVoided {
			return fmt.Errorf("%w: bill %s", domain.ErrAlreadyVoided, sale.BillNo)
		}

		ids := make([]string, 0, len(sale.Items))
		for _, item := range sale.Items {
			ids = append(ids, item.VariantID)
		}
		if err := tx.LockVariants(ctx, uniqueIDs(ids)); err != nil {
			return err
		}
		for _, item := range sale.Items {
			if _, err := adjustStock(ctx, tx, item.VariantID, item.Qty, nil, now); err != nil {
				return err
			}
		}
		if err := tx.MarkSaleVoided(ctx, id, now, voidedBy, reason); err != nil {
			return err
		}

		sale.Status = domain.SaleVoided
		sale.VoidedAt = &now
		sale.VoidedBy = &voidedBy
		sale.VoidReason = &reason
		voided = sale
		return nil
	})
	if err != nil {
		return domain.Sale{}, fmt.Errorf("void sale %s: %w", id, err)
	}
	return voided, nil
}

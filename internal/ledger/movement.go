package ledger

import (
	"context"
	"sort"

	"stockledger/internal/domain"
	"stockledger/internal/pricing"
)

// Movements rebuilds a variant's stock history, newest first. A voided sale
// appears once, as a VOID_RESTORE dated at the void.
func (l *Ledger) Movements(ctx context.Context, variantID string) ([]domain.Movement, error) {
	if _, err := l.store.GetVariant(ctx, variantID); err != nil {
		return nil, err
	}
	return l.movements(ctx, variantID)
}

func (l *Ledger) movements(ctx context.Context, variantID string) ([]domain.Movement, error) {
	adjustments, err := l.store.VariantAdjustments(ctx, variantID)
	if err != nil {
		return nil, err
	}
	purchases, err := l.store.VariantPurchaseLines(ctx, variantID)
	if err != nil {
		return nil, err
	}
	sales, err := l.store.VariantSaleLines(ctx, variantID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Movement, 0, len(adjustments)+len(purchases)+len(sales))
	for _, a := range adjustments {
		reason := a.Reason
		out = append(out, domain.Movement{
			Type:        domain.MovementAdjustment,
			Date:        a.CreatedAt,
			Qty:         a.DeltaQty,
			ReferenceID: a.ID,
			Reason:      &reason,
			Notes:       a.Notes,
			Actor:       a.CreatedBy,
		})
	}
	for _, line := range purchases {
		supplierID, supplierName, unitCost := line.SupplierID, line.SupplierName, line.Item.UnitCost
		out = append(out, domain.Movement{
			Type:         domain.MovementPurchase,
			Date:         line.PurchasedAt,
			Qty:          line.Item.Qty,
			ReferenceID:  line.Item.PurchaseID,
			ReferenceNo:  line.InvoiceNo,
			SupplierID:   &supplierID,
			SupplierName: &supplierName,
			UnitCost:     &unitCost,
			Notes:        line.Notes,
			Actor:        line.CreatedBy,
		})
	}
	for _, line := range sales {
		billNo, unitPrice := line.BillNo, line.Item.UnitPrice
		m := domain.Movement{
			Type:        domain.MovementSale,
			Date:        line.CreatedAt,
			Qty:         -line.Item.Qty,
			ReferenceID: line.Item.SaleID,
			ReferenceNo: &billNo,
			UnitPrice:   &unitPrice,
			Actor:       line.CreatedBy,
		}
		if line.Status == domain.SaleVoided {
			m.Type = domain.MovementVoidRestore
			m.Qty = line.Item.Qty
			if line.VoidedAt != nil {
				m.Date = *line.VoidedAt
			}
			if line.VoidedBy != nil {
				m.Actor = *line.VoidedBy
			}
		}
		out = append(out, m)
	}

	sortMovements(out)
	return out, nil
}

func sortMovements(items []domain.Movement) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.After(items[j].Date)
		}
		return items[i].ReferenceID < items[j].ReferenceID
	})
}

// SupplierSummary groups a variant's purchase lines by supplier, most recent
// supplier first. AvgUnitCost is the supplier's own historical average.
func (l *Ledger) SupplierSummary(ctx context.Context, variantID string) ([]domain.SupplierSummary, error) {
	if _, err := l.store.GetVariant(ctx, variantID); err != nil {
		return nil, err
	}
	return l.supplierSummary(ctx, variantID)
}

func (l *Ledger) supplierSummary(ctx context.Context, variantID string) ([]domain.SupplierSummary, error) {
	lines, err := l.store.VariantPurchaseLines(ctx, variantID)
	if err != nil {
		return nil, err
	}

	bySupplier := make(map[string]*domain.SupplierSummary)
	purchasesSeen := make(map[string]map[string]bool)
	for _, line := range lines {
		summary, ok := bySupplier[line.SupplierID]
		if !ok {
			summary = &domain.SupplierSummary{SupplierID: line.SupplierID, SupplierName: line.SupplierName}
			bySupplier[line.SupplierID] = summary
			purchasesSeen[line.SupplierID] = make(map[string]bool)
		}
		summary.TotalQty += line.Item.Qty
		summary.TotalCost = pricing.Round2(summary.TotalCost + line.Item.LineTotal)
		if !purchasesSeen[line.SupplierID][line.Item.PurchaseID] {
			purchasesSeen[line.SupplierID][line.Item.PurchaseID] = true
			summary.PurchaseCount++
		}
		if line.PurchasedAt.After(summary.LastPurchasedAt) {
			summary.LastPurchasedAt = line.PurchasedAt
		}
	}

	out := make([]domain.SupplierSummary, 0, len(bySupplier))
	for _, summary := range bySupplier {
		summary.AvgUnitCost = pricing.PerUnit(summary.TotalCost, summary.TotalQty)
		out = append(out, *summary)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastPurchasedAt.Equal(out[j].LastPurchasedAt) {
			return out[i].LastPurchasedAt.After(out[j].LastPurchasedAt)
		}
		return out[i].SupplierName < out[j].SupplierName
	})
	return out, nil
}

// MovementReport bundles the variant with its movements, supplier summary and
// NetQty, the sum of the listed movement quantities. NetQty is not a stock
// reconciliation: a voided sale lists only its restore, and a deleted
// purchase drops out while its stock stays, so NetQty and StockQty diverge
// after either.
func (l *Ledger) MovementReport(ctx context.Context, variantID string) (domain.MovementReport, error) {
	variant, err := l.store.GetVariant(ctx, variantID)
	if err != nil {
		return domain.MovementReport{}, err
	}
	movements, err := l.movements(ctx, variantID)
	if err != nil {
		return domain.MovementReport{}, err
	}
	suppliers, err := l.supplierSummary(ctx, variantID)
	if err != nil {
		return domain.MovementReport{}, err
	}

	report := domain.MovementReport{Variant: variant, Movements: movements, Suppliers: suppliers}
	for _, m := range movements {
		report.NetQty += m.Qty
	}
	return report, nil
}

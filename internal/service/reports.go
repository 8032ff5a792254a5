package service

import (
	"context"

	"stockledger/internal/domain"
	"stockledger/internal/pricing"
	"stockledger/internal/store"
)

type SaleItemDetail struct {
	domain.SaleItem
	Profit        float64 `json:"profit"`
	MarginPercent float64 `json:"margin_percent"`
}

// SaleDetail is a sale with profit computed from the cost frozen on each
// item. Profit ignores the bill-level discount, matching the till's report.
type SaleDetail struct {
	domain.Sale
	Items  []SaleItemDetail `json:"items"`
	Profit float64          `json:"profit"`
}

func newSaleDetail(sale domain.Sale) SaleDetail {
	detail := SaleDetail{
		Sale:   sale,
		Items:  make([]SaleItemDetail, 0, len(sale.Items)),
		Profit: pricing.SaleProfit(sale.Items),
	}
	for _, item := range sale.Items {
		detail.Items = append(detail.Items, SaleItemDetail{
			SaleItem:      item,
			Profit:        pricing.ItemProfit(item.UnitPrice, item.UnitCostAtSale, item.Qty),
			MarginPercent: pricing.MarginPercent(item.UnitPrice, item.UnitCostAtSale),
		})
	}
	return detail
}

// LowStock lists active variants at or under threshold. A nil threshold uses
// the shop setting.
func (s *Service) LowStock(ctx context.Context, threshold *int) ([]domain.LowStockRow, error) {
	limit := s.GetSettings(ctx).LowStockThreshold
	if threshold != nil {
		if *threshold < 0 {
			return nil, domain.Validationf("threshold: must be 0 or greater")
		}
		limit = *threshold
	}

	variants, err := s.store.ListLowStock(ctx, limit)
	if err != nil {
		return nil, err
	}
	rows := make([]domain.LowStockRow, 0, len(variants))
	for _, v := range variants {
		rows = append(rows, domain.LowStockRow{
			VariantID:    v.ID,
			SKU:          v.SKU,
			Barcode:      v.Barcode,
			StockQty:     v.StockQty,
			Threshold:    limit,
			Needed:       limit - v.StockQty,
			AvgCost:      v.AvgCost,
			SellingPrice: v.SellingPrice,
		})
	}
	return rows, nil
}

func (s *Service) InventorySummary(ctx context.Context) (domain.InventorySummary, error) {
	return s.store.InventorySummary(ctx)
}

func (s *Service) SalesStats(ctx context.Context, filter store.ListFilter) (domain.SalesStats, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return domain.SalesStats{}, domain.Validationf("to: must not be before from")
	}
	return s.store.SalesStats(ctx, filter)
}

func (s *Service) Movements(ctx context.Context, variantID string) ([]domain.Movement, error) {
	report, err := s.MovementReport(ctx, variantID)
	if err != nil {
		return nil, err
	}
	return report.Movements, nil
}

func (s *Service) SupplierSummary(ctx context.Context, variantID string) ([]domain.SupplierSummary, error) {
	report, err := s.MovementReport(ctx, variantID)
	if err != nil {
		return nil, err
	}
	return report.Suppliers, nil
}

// MovementReport serves the cached report for the variant's current version.
// Catalog edits do not advance the version, so the variant itself is always
// taken from the fresh read.
func (s *Service) MovementReport(ctx context.Context, variantID string) (domain.MovementReport, error) {
	variant, err := s.store.GetVariant(ctx, variantID)
	if err != nil {
		return domain.MovementReport{}, err
	}
	report, err := s.cache.Report(ctx, variantID, variant.Version, func(ctx context.Context) (domain.MovementReport, error) {
		return s.ledger.MovementReport(ctx, variantID)
	})
	if err != nil {
		return domain.MovementReport{}, err
	}
	report.Variant = variant
	return report, nil
}

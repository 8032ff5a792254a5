package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stockledger/internal/domain"
	"stockledger/internal/ledger"

	"go.uber.org/zap"
)

type OpeningStockOptions struct {
	CreatedBy string
	// DryRun resolves every code without writing anything.
	DryRun bool
	// BatchKey makes a re-run of the same file a no-op per row. Empty means
	// no idempotency.
	BatchKey string
}

// ImportOpeningStock records one OPENING_STOCK adjustment per row. Rows are
// independent: an unknown code or a non-positive quantity skips that row and
// the rest still apply. Storage failures stop the import.
func (s *Service) ImportOpeningStock(ctx context.Context, rows []domain.OpeningStockRow, opts OpeningStockOptions) (domain.OpeningStockResult, error) {
	if len(rows) == 0 {
		return domain.OpeningStockResult{}, domain.Validationf("import file has no data rows")
	}
	createdBy := strings.TrimSpace(opts.CreatedBy)
	if createdBy == "" {
		return domain.OpeningStockResult{}, domain.Validationf("created_by: is required")
	}

	result := domain.OpeningStockResult{TotalRows: len(rows)}
	unknown := make(map[string]bool)
	for _, row := range rows {
		code := strings.TrimSpace(row.Code)
		if row.Qty <= 0 {
			result.Skipped++
			continue
		}

		variant, err := s.store.FindVariantByCode(ctx, code)
		if errors.Is(err, domain.ErrNotFound) {
			result.Skipped++
			if !unknown[code] {
				unknown[code] = true
				result.UnknownCodes = append(result.UnknownCodes, code)
			}
			continue
		}
		if err != nil {
			return result, fmt.Errorf("row %d: %w", row.RowNumber, err)
		}
		if opts.DryRun {
			result.Applied++
			continue
		}

		input := ledger.AdjustmentInput{
			VariantID: variant.ID,
			DeltaQty:  row.Qty,
			Reason:    domain.ReasonOpeningStock,
			Notes:     normalizeNullable(row.Notes),
			CreatedBy: createdBy,
		}
		if opts.BatchKey != "" {
			input.IdempotencyKey = fmt.Sprintf("opening:%s:%d", opts.BatchKey, row.RowNumber)
		}
		if _, err := s.ledger.CreateStockAdjustment(ctx, input); err != nil {
			return result, fmt.Errorf("row %d: %w", row.RowNumber, err)
		}
		result.Applied++
	}

	s.log.Info("opening stock imported",
		zap.Int("rows", result.TotalRows),
		zap.Int("applied", result.Applied),
		zap.Int("skipped", result.Skipped),
		zap.Strings("unknown_codes", result.UnknownCodes),
		zap.Bool("dry_run", opts.DryRun),
	)
	return result, nil
}

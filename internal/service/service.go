// Package service is the application layer used by the HTTP API and the
// import CLI. Stock-affecting calls go through the ledger; everything else is
// catalog bookkeeping and read models.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"stockledger/internal/cache"
	"stockledger/internal/domain"
	"stockledger/internal/ledger"
	"stockledger/internal/store"
	"stockledger/internal/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	store    store.Store
	ledger   *ledger.Ledger
	cache    cache.MovementCache
	validate *validation.Validator
	log      *zap.Logger
	now      func() time.Time
	newID    func() string
}

type Option func(*Service)

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithMovementCache(c cache.MovementCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:    st,
		cache:    cache.Noop{},
		validate: validation.New(),
		log:      zap.NewNop(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("service")
	s.ledger = ledger.New(st, ledger.WithClock(s.now), ledger.WithIDGenerator(s.newID))
	return s
}

func (s *Service) CreatePurchase(ctx context.Context, input ledger.PurchaseInput) (domain.Purchase, error) {
	purchase, err := s.ledger.CreatePurchase(ctx, input)
	if err != nil {
		s.logFailure("create purchase", err, zap.String("supplier_id", input.SupplierID))
		return domain.Purchase{}, err
	}
	s.log.Info("purchase recorded",
		zap.String("purchase_id", purchase.ID),
		zap.String("supplier_id", purchase.SupplierID),
		zap.Int("items", len(purchase.Items)),
		zap.Float64("total_cost", purchase.TotalCost),
	)
	return purchase, nil
}

func (s *Service) DeletePurchase(ctx context.Context, id string, opts ledger.DeletePurchaseOptions) error {
	if err := s.ledger.DeletePurchase(ctx, id, opts); err != nil {
		s.logFailure("delete purchase", err, zap.String("purchase_id", id))
		return err
	}
	s.log.Warn("purchase deleted; stock effect retained", zap.String("purchase_id", id))
	return nil
}

func (s *Service) GetPurchase(ctx context.Context, id string) (domain.Purchase, error) {
	return s.store.GetPurchase(ctx, id)
}

func (s *Service) ListPurchases(ctx context.Context, filter store.ListFilter) ([]domain.Purchase, error) {
	return s.store.ListPurchases(ctx, filter)
}

func (s *Service) CreateSale(ctx context.Context, input ledger.SaleInput) (SaleDetail, error) {
	sale, err := s.ledger.CreateSale(ctx, input)
	if err != nil {
		s.logFailure("create sale", err, zap.Int("items", len(input.Items)))
		return SaleDetail{}, err
	}
	s.log.Info("sale recorded",
		zap.String("sale_id", sale.ID),
		zap.String("bill_no", sale.BillNo),
		zap.String("payment_mode", string(sale.PaymentMode)),
		zap.Float64("total", sale.Total),
	)
	return newSaleDetail(sale), nil
}

func (s *Service) VoidSale(ctx context.Context, id, voidedBy, reason string) (SaleDetail, error) {
	voidedBy = strings.TrimSpace(voidedBy)
	if voidedBy == "" {
		return SaleDetail{}, domain.Validationf("voided_by: is required")
	}
	sale, err := s.ledger.VoidSale(ctx, id, voidedBy, strings.TrimSpace(reason))
	if err != nil {
		s.logFailure("void sale", err, zap.String("sale_id", id))
		return SaleDetail{}, err
	}
	s.log.Info("sale voided",
		zap.String("sale_id", sale.ID),
		zap.String("bill_no", sale.BillNo),
		zap.String("voided_by", voidedBy),
	)
	return newSaleDetail(sale), nil
}

func (s *Service) GetSale(ctx context.Context, id string) (SaleDetail, error) {
	sale, err := s.store.GetSale(ctx, id)
	if err != nil {
		return SaleDetail{}, err
	}
	return newSaleDetail(sale), nil
}

func (s *Service) ListSales(ctx context.Context, filter store.ListFilter) ([]domain.Sale, error) {
	return s.store.ListSales(ctx, filter)
}

func (s *Service) CreateStockAdjustment(ctx context.Context, input ledger.AdjustmentInput) (domain.StockAdjustment, error) {
	adjustment, err := s.ledger.CreateStockAdjustment(ctx, input)
	if err != nil {
		s.logFailure("create stock adjustment", err, zap.String("variant_id", input.VariantID))
		return domain.StockAdjustment{}, err
	}
	s.log.Info("stock adjusted",
		zap.String("adjustment_id", adjustment.ID),
		zap.String("variant_id", adjustment.VariantID),
		zap.Int("delta_qty", adjustment.DeltaQty),
		zap.String("reason", string(adjustment.Reason)),
	)
	return adjustment, nil
}

func (s *Service) ListStockAdjustments(ctx context.Context, variantID string, filter store.ListFilter) ([]domain.StockAdjustment, error) {
	return s.store.ListStockAdjustments(ctx, variantID, filter)
}

// logFailure keeps caller mistakes out of the error log. Only storage
// failures and unclassified errors are reported at error level.
func (s *Service) logFailure(op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err), zap.String("code", domain.ErrorCode(err)))
	switch {
	case errors.Is(err, domain.ErrStorageFailure), domain.ErrorCode(err) == "INTERNAL":
		s.log.Error(op+" failed", fields...)
	default:
		s.log.Debug(op+" rejected", fields...)
	}
}

func normalizeNullable(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

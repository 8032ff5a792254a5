package ledger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/pricing"
	"stockledger/internal/store"
	"stockledger/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// stepClock advances one minute per reading so records created in sequence
// have distinct, ordered timestamps.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

type fixture struct {
	store  *memory.Store
	ledger *Ledger
	clock  *stepClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	s := memory.New()
	clock := &stepClock{t: epoch}
	var seq atomic.Int64
	l := New(s,
		WithClock(clock.Now),
		WithIDGenerator(func() string { return fmt.Sprintf("id-%05d", seq.Add(1)) }),
	)

	_, err := s.CreateProduct(ctx, domain.Product{ID: "p1", Name: "Silk Kurta", CreatedAt: epoch, UpdatedAt: epoch})
	require.NoError(t, err)
	for _, v := range []domain.Variant{
		{ID: "v1", ProductID: "p1", SKU: "KUR-M-RED", Barcode: "8901001", SellingPrice: 250, Status: domain.VariantActive},
		{ID: "v2", ProductID: "p1", SKU: "KUR-L-RED", Barcode: "8901002", SellingPrice: 300, Status: domain.VariantActive},
	} {
		_, err := s.CreateVariant(ctx, v)
		require.NoError(t, err)
	}
	for _, sup := range []domain.Supplier{
		{ID: "s1", Name: "Surat Mills"},
		{ID: "s2", Name: "Erode Weavers"},
	} {
		_, err := s.CreateSupplier(ctx, sup)
		require.NoError(t, err)
	}
	return &fixture{store: s, ledger: l, clock: clock}
}

func (f *fixture) variant(t *testing.T, id string) domain.Variant {
	t.Helper()
	v, err := f.store.GetVariant(context.Background(), id)
	require.NoError(t, err)
	return v
}

func (f *fixture) purchase(t *testing.T, supplierID, variantID string, qty int, cost float64) domain.Purchase {
	t.Helper()
	p, err := f.ledger.CreatePurchase(context.Background(), PurchaseInput{
		SupplierID: supplierID,
		CreatedBy:  "u1",
		Items:      []PurchaseItemInput{{VariantID: variantID, Qty: qty, UnitCost: cost}},
	})
	require.NoError(t, err)
	return p
}

func saleInput(items ...SaleItemInput) SaleInput {
	return discountedSale(0, 0, items...)
}

func discountedSale(discountPct, taxPct float64, items ...SaleItemInput) SaleInput {
	lines := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, pricing.Line{Qty: item.Qty, UnitPrice: item.UnitPrice})
	}
	totals := pricing.SaleTotals(lines, discountPct, 0, taxPct)
	return SaleInput{
		PaymentMode:     domain.PaymentCash,
		Subtotal:        totals.Subtotal,
		DiscountAmount:  totals.DiscountAmount,
		DiscountPercent: discountPct,
		TaxAmount:       totals.TaxAmount,
		TaxPercent:      taxPct,
		Total:           totals.Total,
		CreatedBy:       "u1",
		Items:           items,
	}
}

func (f *fixture) sell(t *testing.T, variantID string, qty int) domain.Sale {
	t.Helper()
	sale, err := f.ledger.CreateSale(context.Background(), saleInput(SaleItemInput{VariantID: variantID, Qty: qty, UnitPrice: 250}))
	require.NoError(t, err)
	return sale
}

func TestCreatePurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("weighted average cost across purchases", func(t *testing.T) {
		f := newFixture(t)

		f.purchase(t, "s1", "v1", 10, 100)
		v := f.variant(t, "v1")
		assert.Equal(t, 10, v.StockQty)
		assert.Equal(t, 100.0, v.AvgCost)

		f.purchase(t, "s1", "v1", 10, 200)
		v = f.variant(t, "v1")
		assert.Equal(t, 20, v.StockQty)
		assert.Equal(t, 150.0, v.AvgCost)
	})

	t.Run("lines of one variant average sequentially", func(t *testing.T) {
		f := newFixture(t)

		p, err := f.ledger.CreatePurchase(ctx, PurchaseInput{
			SupplierID: "s1",
			CreatedBy:  "u1",
			Items: []PurchaseItemInput{
				{VariantID: "v1", Qty: 10, UnitCost: 100},
				{VariantID: "v1", Qty: 10, UnitCost: 200},
				{VariantID: "v2", Qty: 4, UnitCost: 80.5},
			},
		})
		require.NoError(t, err)

		assert.Equal(t, 3322.0, p.TotalCost)
		assert.Len(t, p.Items, 3)
		assert.Equal(t, 150.0, f.variant(t, "v1").AvgCost)
		assert.Equal(t, 80.5, f.variant(t, "v2").AvgCost)

		stored, err := f.store.GetPurchase(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.Items, stored.Items)
	})

	t.Run("line total uses the rounded unit cost", func(t *testing.T) {
		f := newFixture(t)

		p := f.purchase(t, "s1", "v1", 3, 10.005)

		require.Len(t, p.Items, 1)
		assert.Equal(t, 10.01, p.Items[0].UnitCost)
		assert.Equal(t, 30.03, p.Items[0].LineTotal)
		assert.Equal(t, 30.03, p.TotalCost)
		assert.Equal(t, 10.01, f.variant(t, "v1").AvgCost)
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.ledger.CreatePurchase(ctx, PurchaseInput{SupplierID: "s1", CreatedBy: "u1"})
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = f.ledger.CreatePurchase(ctx, PurchaseInput{
			SupplierID: "s1", CreatedBy: "u1",
			Items: []PurchaseItemInput{{VariantID: "v1", Qty: 0, UnitCost: 10}},
		})
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = f.ledger.CreatePurchase(ctx, PurchaseInput{
			SupplierID: "s1", CreatedBy: "u1",
			Items: []PurchaseItemInput{{VariantID: "v1", Qty: 1, UnitCost: -1}},
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("unknown supplier", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.CreatePurchase(ctx, PurchaseInput{
			SupplierID: "ghost", CreatedBy: "u1",
			Items: []PurchaseItemInput{{VariantID: "v1", Qty: 1, UnitCost: 1}},
		})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("unknown variant leaves earlier lines unapplied", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.CreatePurchase(ctx, PurchaseInput{
			SupplierID: "s1", CreatedBy: "u1",
			Items: []PurchaseItemInput{
				{VariantID: "v1", Qty: 5, UnitCost: 10},
				{VariantID: "missing", Qty: 1, UnitCost: 1},
			},
		})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, 0, f.variant(t, "v1").StockQty)

		purchases, err := f.store.ListPurchases(ctx, store.ListFilter{})
		require.NoError(t, err)
		assert.Empty(t, purchases)
	})

	t.Run("idempotency key replays the first purchase", func(t *testing.T) {
		f := newFixture(t)
		input := PurchaseInput{
			SupplierID: "s1", CreatedBy: "u1", IdempotencyKey: "po-7",
			Items: []PurchaseItemInput{{VariantID: "v1", Qty: 5, UnitCost: 10}},
		}

		first, err := f.ledger.CreatePurchase(ctx, input)
		require.NoError(t, err)
		second, err := f.ledger.CreatePurchase(ctx, input)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 5, f.variant(t, "v1").StockQty)
	})
}

func TestDeletePurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("requires explicit acknowledgement", func(t *testing.T) {
		f := newFixture(t)
		p := f.purchase(t, "s1", "v1", 10, 100)

		err := f.ledger.DeletePurchase(ctx, p.ID, DeletePurchaseOptions{})
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = f.store.GetPurchase(ctx, p.ID)
		assert.NoError(t, err)
	})

	t.Run("keeps stock and cost but changes the version", func(t *testing.T) {
		f := newFixture(t)
		p := f.purchase(t, "s1", "v1", 10, 100)
		before := f.variant(t, "v1")

		require.NoError(t, f.ledger.DeletePurchase(ctx, p.ID, DeletePurchaseOptions{RetainStockEffect: true}))

		after := f.variant(t, "v1")
		assert.Equal(t, 10, after.StockQty)
		assert.Equal(t, 100.0, after.AvgCost)
		assert.Greater(t, after.Version, before.Version)

		_, err := f.store.GetPurchase(ctx, p.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		movements, err := f.ledger.Movements(ctx, "v1")
		require.NoError(t, err)
		assert.Empty(t, movements)
	})

	t.Run("unknown purchase", func(t *testing.T) {
		f := newFixture(t)
		err := f.ledger.DeletePurchase(ctx, "nope", DeletePurchaseOptions{RetainStockEffect: true})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestCreateSale(t *testing.T) {
	ctx := context.Background()

	t.Run("never changes avgCost and snapshots it", func(t *testing.T) {
		f := newFixture(t)
		f.purchase(t, "s1", "v1", 10, 100)
		f.purchase(t, "s1", "v1", 10, 200)

		sale := f.sell(t, "v1", 5)

		v := f.variant(t, "v1")
		assert.Equal(t, 15, v.StockQty)
		assert.Equal(t, 150.0, v.AvgCost)
		require.Len(t, sale.Items, 1)
		assert.Equal(t, 150.0, sale.Items[0].UnitCostAtSale)
		assert.Equal(t, domain.SaleCompleted, sale.Status)
		assert.Equal(t, 500.0, pricing.SaleProfit(sale.Items))
	})

	t.Run("cost snapshot survives later purchases", func(t *testing.T) {
		f := newFixture(t)
		f.purchase(t, "s1", "v1", 10, 100)
		sale := f.sell(t, "v1", 5)
		require.Equal(t, 100.0, sale.Items[0].UnitCostAtSale)
		profit := pricing.SaleProfit(sale.Items)
		assert.Equal(t, 750.0, profit)

		f.purchase(t, "s1", "v1", 5, 200)
		assert.Equal(t, 150.0, f.variant(t, "v1").AvgCost)

		stored, err := f.store.GetSale(ctx, sale.ID)
		require.NoError(t, err)
		require.Len(t, stored.Items, 1)
		assert.Equal(t, 100.0, stored.Items[0].UnitCostAtSale)
		assert.Equal(t, profit, pricing.SaleProfit(stored.Items))
	})

	t.Run("line total uses the rounded unit price", func(t *testing.T) {
		f := newFixture(t)
		f.purchase(t, "s1", "v1", 10, 5)

		sale, err := f.ledger.CreateSale(ctx, saleInput(SaleItemInput{VariantID: "v1", Qty: 3, UnitPrice: 10.005}))
		require.NoError(t, err)

		require.Len(t, sale.Items, 1)
		assert.Equal(t, 10.01, sale.Items[0].UnitPrice)
		assert.Equal(t, 30.03, sale.Items[0].LineTotal)
		assert.Equal(t, 30.03, sale.Subtotal)
		assert.Equal(t, 30.03, sale.Total)
	})

	t.Run("bill numbers increase without gaps", func(t *testing.T) {
		f := newFixture(t)
		f.purchase(t, "s1", "v1", 10, 100)

		first := f.sell(t, "v1", 1)
		_, err := f.ledger.CreateSale(ctx, saleInput(SaleItemInput{VariantID: "v1", Qty: 100, UnitPrice: 250}))
		require.ErrorIs(t, err, domain.ErrInsufficientStock)
		second := f.sell(t, "v1", 1)
		third := f.sell(t, "v1", 1)

		assert.Equal(t, "MJT000001", first.BillNo)
		assert.Equal(t, "MJT000002", second.BillNo)
		assert.Equal(t, "MJT000003", third.BillNo)
	})

	t.Run("insufficient stock on any line writes nothing", func(t *testing.T) {
		f := newFixture(t)
		f.purchase(t, "s1", "v1", 5, 100)
		f.purchase(t, "s1", "v2", 1, 100)

		_, err := f.ledger.CreateSale(ctx, saleInput(
			SaleItemInput{VariantID: "v1", Qty: 2, UnitPrice: 250},
			SaleItemInput{VariantID: "v2", Qty: 3, UnitPrice: 300},
		))
		require.ErrorIs(t, err, domain.ErrInsufficientStock)

		assert.Equal(t, 5, f.variant(t, "v1").StockQty)
		assert.Equal(t, 1, f.variant(t, "v2").StockQty)
		sales, err := f.store.ListSales(ctx, store.ListFilter{})
		require.NoError(t, err)
		assert.Empty(t, sales)
		settings, _ := f.store.GetSettings(ctx)
		assert.Equal(t, int64(0), settings.LastBillNumber)
	})

	t.Run("percent discount and tax", func(t *testing.T) {
		f := newFixture(t)
		f.purchase(t, "s1", "v1", 10, 100)

		sale, err := f.ledger.CreateSale(ctx, SaleInput{
			PaymentMode:     domain.PaymentUPI,
			Subtotal:        1000,
			DiscountAmount:  100,
			DiscountPercent: 10,
			TaxAmount:       45,
			TaxPercent:      5,
			Total:           945,
			CreatedBy:       "u1",
			Items:           []SaleItemInput{{VariantID: "v1", Qty: 4, UnitPrice: 250}},
		})
		require.NoError(t, err)
		assert.Equal(t, 945.0, sale.Total)
		assert.Equal(t, 45.0, sale.TaxAmount)
	})

	t.Run("caller totals off by a cent are accepted and replaced", func(t *testing.T) {
		f := newFixture(t)
		f.purchase(t, "s1", "v1", 10, 100)

		input := discountedSale(10, 5, SaleItemInput{VariantID: "v1", Qty: 4, UnitPrice: 250})
		input.Total = 945.01
		sale, err := f.ledger.CreateSale(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, 945.0, sale.Total)
	})

	t.Run("totals mismatch", func(t *testing.T) {
		f := newFixture(t)
		f.purchase(t, "s1", "v1", 10, 100)

		input := saleInput(SaleItemInput{VariantID: "v1", Qty: 2, UnitPrice: 250})
		input.Total = 400
		_, err := f.ledger.CreateSale(ctx, input)
		assert.ErrorIs(t, err, domain.ErrTotalsMismatch)
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Equal(t, 10, f.variant(t, "v1").StockQty)
	})

	t.Run("flat discount larger than subtotal", func(t *testing.T) {
		f := newFixture(t)
		f.purchase(t, "s1", "v1", 10, 100)

		input := saleInput(SaleItemInput{VariantID: "v1", Qty: 1, UnitPrice: 250})
		input.DiscountAmount = 300
		_, err := f.ledger.CreateSale(ctx, input)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("unknown payment mode", func(t *testing.T) {
		f := newFixture(t)
		input := saleInput(SaleItemInput{VariantID: "v1", Qty: 1, UnitPrice: 250})
		input.PaymentMode = "CHEQUE"
		_, err := f.ledger.CreateSale(ctx, input)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("idempotency key replays the first sale", func(t *testing.T) {
		f := newFixture(t)
		f.purchase(t, "s1", "v1", 10, 100)
		input := saleInput(SaleItemInput{VariantID: "v1", Qty: 2, UnitPrice: 250})
		input.IdempotencyKey = "till-1-0001"

		first, err := f.ledger.CreateSale(ctx, input)
		require.NoError(t, err)
		second, err := f.ledger.CreateSale(ctx, input)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.BillNo, second.BillNo)
		assert.Equal(t, 8, f.variant(t, "v1").StockQty)
	})

	t.Run("idempotency key of another kind is rejected", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.CreatePurchase(ctx, PurchaseInput{
			SupplierID: "s1", CreatedBy: "u1", IdempotencyKey: "shared",
			Items: []PurchaseItemInput{{VariantID: "v1", Qty: 5, UnitCost: 10}},
		})
		require.NoError(t, err)

		input := saleInput(SaleItemInput{VariantID: "v1", Qty: 1, UnitPrice: 250})
		input.IdempotencyKey = "shared"
		_, err = f.ledger.CreateSale(ctx, input)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestConcurrentSalesOnOneVariant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.purchase(t, "s1", "v1", 10, 100)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		billNos   []string
		succeeded atomic.Int32
		short     atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sale, err := f.ledger.CreateSale(ctx, saleInput(SaleItemInput{VariantID: "v1", Qty: 1, UnitPrice: 250}))
			switch {
			case err == nil:
				succeeded.Add(1)
				mu.Lock()
				billNos = append(billNos, sale.BillNo)
				mu.Unlock()
			case assert.ErrorIs(t, err, domain.ErrInsufficientStock):
				short.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), succeeded.Load())
	assert.Equal(t, int32(10), short.Load())
	assert.Equal(t, 0, f.variant(t, "v1").StockQty)

	want := make([]string, 0, 10)
	for n := int64(1); n <= 10; n++ {
		want = append(want, FormatBillNo("MJT", n))
	}
	assert.ElementsMatch(t, want, billNos)
}

func TestVoidSale(t *testing.T) {
	ctx := context.Background()

	t.Run("restores stock once", func(t *testing.T) {
		f := newFixture(t)
		f.purchase(t, "s1", "v1", 10, 100)
		sale := f.sell(t, "v1", 3)
		f.purchase(t, "s1", "v1", 3, 200)
		before := f.variant(t, "v1")

		voided, err := f.ledger.VoidSale(ctx, sale.ID, "u2", "customer returned")
		require.NoError(t, err)
		assert.Equal(t, domain.SaleVoided, voided.Status)
		require.NotNil(t, voided.VoidReason)
		assert.Equal(t, "customer returned", *voided.VoidReason)

		after := f.variant(t, "v1")
		assert.Equal(t, before.StockQty+3, after.StockQty)
		assert.Equal(t, before.AvgCost, after.AvgCost)

		_, err = f.ledger.VoidSale(ctx, sale.ID, "u2", "again")
		assert.ErrorIs(t, err, domain.ErrAlreadyVoided)
		assert.Equal(t, after.StockQty, f.variant(t, "v1").StockQty)

		stored, err := f.store.GetSale(ctx, sale.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SaleVoided, stored.Status)
		assert.NotNil(t, stored.VoidedAt)
	})

	t.Run("unknown sale", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.VoidSale(ctx, "nope", "u2", "typo")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("reason is required", func(t *testing.T) {
		f := newFixture(t)
		f.purchase(t, "s1", "v1", 10, 100)
		sale := f.sell(t, "v1", 3)

		_, err := f.ledger.VoidSale(ctx, sale.ID, "u2", "  ")
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Equal(t, 7, f.variant(t, "v1").StockQty)
	})
}

func TestCreateStockAdjustment(t *testing.T) {
	ctx := context.Background()

	t.Run("over-removal fails and leaves stock unchanged", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.CreateStockAdjustment(ctx, AdjustmentInput{VariantID: "v1", DeltaQty: 2, Reason: domain.ReasonOpeningStock, CreatedBy: "u1"})
		require.NoError(t, err)

		_, err = f.ledger.CreateStockAdjustment(ctx, AdjustmentInput{VariantID: "v1", DeltaQty: -5, Reason: domain.ReasonDamage, CreatedBy: "u1"})
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		assert.Equal(t, 2, f.variant(t, "v1").StockQty)

		adjustments, err := f.store.VariantAdjustments(ctx, "v1")
		require.NoError(t, err)
		assert.Len(t, adjustments, 1)
	})

	t.Run("positive adjustment keeps avgCost", func(t *testing.T) {
		f := newFixture(t)
		f.purchase(t, "s1", "v1", 10, 100)

		adj, err := f.ledger.CreateStockAdjustment(ctx, AdjustmentInput{VariantID: "v1", DeltaQty: 10, Reason: domain.ReasonCorrection, CreatedBy: "u1"})
		require.NoError(t, err)
		assert.Equal(t, 10, adj.DeltaQty)

		v := f.variant(t, "v1")
		assert.Equal(t, 20, v.StockQty)
		assert.Equal(t, 100.0, v.AvgCost)
	})

	t.Run("zero delta and bad reason are rejected", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.CreateStockAdjustment(ctx, AdjustmentInput{VariantID: "v1", DeltaQty: 0, Reason: domain.ReasonOther, CreatedBy: "u1"})
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = f.ledger.CreateStockAdjustment(ctx, AdjustmentInput{VariantID: "v1", DeltaQty: 1, Reason: "GIFT", CreatedBy: "u1"})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("unknown variant", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.CreateStockAdjustment(ctx, AdjustmentInput{VariantID: "nope", DeltaQty: 1, Reason: domain.ReasonOther, CreatedBy: "u1"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("idempotency key replays the first adjustment", func(t *testing.T) {
		f := newFixture(t)
		input := AdjustmentInput{VariantID: "v1", DeltaQty: 4, Reason: domain.ReasonOpeningStock, CreatedBy: "u1", IdempotencyKey: "open-v1"}

		first, err := f.ledger.CreateStockAdjustment(ctx, input)
		require.NoError(t, err)
		second, err := f.ledger.CreateStockAdjustment(ctx, input)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 4, f.variant(t, "v1").StockQty)
	})
}

func TestStockNeverNegative(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	adjust := func(delta int, reason domain.AdjustmentReason) func() error {
		return func() error {
			_, err := f.ledger.CreateStockAdjustment(ctx, AdjustmentInput{VariantID: "v1", DeltaQty: delta, Reason: reason, CreatedBy: "u1"})
			return err
		}
	}
	var sales []domain.Sale
	sell := func() error {
		sale, err := f.ledger.CreateSale(ctx, saleInput(SaleItemInput{VariantID: "v1", Qty: 2, UnitPrice: 99}))
		if err == nil {
			sales = append(sales, sale)
		}
		return err
	}

	steps := []func() error{
		adjust(-1, domain.ReasonTheft),
		func() error {
			f.purchase(t, "s1", "v1", 3, 50)
			return nil
		},
		sell,
		sell,
		func() error {
			_, err := f.ledger.VoidSale(ctx, sales[0].ID, "u1", "wrong size")
			return err
		},
		adjust(-3, domain.ReasonDamage),
		adjust(-1, domain.ReasonDamage),
	}
	for i, step := range steps {
		err := step()
		if err != nil {
			assert.ErrorIs(t, err, domain.ErrInsufficientStock, "step %d", i)
		}
		assert.GreaterOrEqual(t, f.variant(t, "v1").StockQty, 0, "step %d", i)
	}
	assert.Equal(t, 0, f.variant(t, "v1").StockQty)
}

func TestMovements(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	purchase := f.purchase(t, "s1", "v1", 20, 100)
	completed := f.sell(t, "v1", 3)
	voided := f.sell(t, "v1", 2)
	_, err := f.ledger.VoidSale(ctx, voided.ID, "u2", "card declined")
	require.NoError(t, err)
	adj, err := f.ledger.CreateStockAdjustment(ctx, AdjustmentInput{VariantID: "v1", DeltaQty: -1, Reason: domain.ReasonDamage, CreatedBy: "u1"})
	require.NoError(t, err)

	movements, err := f.ledger.Movements(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, movements, 4)

	net := 0
	for _, m := range movements {
		net += m.Qty
	}
	assert.Equal(t, 18, net)

	assert.Equal(t, domain.MovementAdjustment, movements[0].Type)
	assert.Equal(t, adj.ID, movements[0].ReferenceID)
	assert.Equal(t, -1, movements[0].Qty)

	assert.Equal(t, domain.MovementVoidRestore, movements[1].Type)
	assert.Equal(t, voided.ID, movements[1].ReferenceID)
	assert.Equal(t, 2, movements[1].Qty)
	assert.Equal(t, "u2", movements[1].Actor)

	assert.Equal(t, domain.MovementSale, movements[2].Type)
	assert.Equal(t, completed.ID, movements[2].ReferenceID)
	assert.Equal(t, -3, movements[2].Qty)
	require.NotNil(t, movements[2].ReferenceNo)
	assert.Equal(t, completed.BillNo, *movements[2].ReferenceNo)

	assert.Equal(t, domain.MovementPurchase, movements[3].Type)
	assert.Equal(t, purchase.ID, movements[3].ReferenceID)
	assert.Equal(t, 20, movements[3].Qty)
	require.NotNil(t, movements[3].SupplierName)
	assert.Equal(t, "Surat Mills", *movements[3].SupplierName)
	require.NotNil(t, movements[3].UnitCost)
	assert.Equal(t, 100.0, *movements[3].UnitCost)

	for i := 1; i < len(movements); i++ {
		assert.False(t, movements[i].Date.After(movements[i-1].Date))
	}

	// The voided sale lists only its restore, so the net overstates stock
	// by the voided quantity.
	report, err := f.ledger.MovementReport(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, 18, report.NetQty)
	assert.Equal(t, 16, report.Variant.StockQty)

	_, err = f.ledger.Movements(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSupplierSummaryAndReport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.purchase(t, "s1", "v1", 10, 100)
	f.purchase(t, "s1", "v1", 5, 130)
	f.purchase(t, "s2", "v1", 4, 90)
	f.purchase(t, "s2", "v2", 7, 10)

	summary, err := f.ledger.SupplierSummary(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, summary, 2)

	assert.Equal(t, "s2", summary[0].SupplierID)
	assert.Equal(t, 4, summary[0].TotalQty)
	assert.Equal(t, 1, summary[0].PurchaseCount)
	assert.Equal(t, 90.0, summary[0].AvgUnitCost)

	assert.Equal(t, "s1", summary[1].SupplierID)
	assert.Equal(t, "Surat Mills", summary[1].SupplierName)
	assert.Equal(t, 15, summary[1].TotalQty)
	assert.Equal(t, 2, summary[1].PurchaseCount)
	assert.Equal(t, 1650.0, summary[1].TotalCost)
	assert.Equal(t, 110.0, summary[1].AvgUnitCost)

	report, err := f.ledger.MovementReport(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", report.Variant.ID)
	assert.Len(t, report.Movements, 3)
	assert.Equal(t, 19, report.NetQty)
	assert.Equal(t, report.Variant.StockQty, report.NetQty)
	assert.Equal(t, summary, report.Suppliers)
}

func TestFormatBillNo(t *testing.T) {
	tests := []struct {
		prefix string
		number int64
		want   string
	}{
		{"MJT", 42, "MJT000042"},
		{"MJT", 1, "MJT000001"},
		{"", 999999, "999999"},
		{"INV-", 1234567, "INV-1234567"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBillNo(tt.prefix, tt.number))
	}
}

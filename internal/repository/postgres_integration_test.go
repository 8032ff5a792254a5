//go:build integration

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"stockledger/internal/db"
	"stockledger/internal/domain"
	"stockledger/internal/ledger"
	"stockledger/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := db.NewPool(ctx, dsn, db.DefaultPoolOptions())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	applied, err := db.RunMigrations(ctx, pool)
	require.NoError(t, err)
	require.NotEmpty(t, applied)

	again, err := db.RunMigrations(ctx, pool)
	require.NoError(t, err)
	assert.Empty(t, again)

	return New(pool)
}

func seedCatalog(t *testing.T, r *Repository) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := r.CreateProduct(ctx, domain.Product{ID: "p1", Name: "Cotton Saree", CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	_, err = r.CreateVariant(ctx, domain.Variant{
		ID: "v1", ProductID: "p1", SKU: "SAR-BLUE", Barcode: "8902001",
		SellingPrice: 1200, Status: domain.VariantActive, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	_, err = r.CreateSupplier(ctx, domain.Supplier{ID: "s1", Name: "Surat Mills", CreatedAt: now})
	require.NoError(t, err)
}

func TestRepositoryLedgerFlow(t *testing.T) {
	r := newTestRepository(t)
	seedCatalog(t, r)
	ctx := context.Background()
	l := ledger.New(r)

	purchase, err := l.CreatePurchase(ctx, ledger.PurchaseInput{
		SupplierID: "s1",
		CreatedBy:  "owner",
		Items:      []ledger.PurchaseItemInput{{VariantID: "v1", Qty: 10, UnitCost: 100}},
	})
	require.NoError(t, err)
	require.Len(t, purchase.Items, 1)

	_, err = l.CreatePurchase(ctx, ledger.PurchaseInput{
		SupplierID: "s1",
		CreatedBy:  "owner",
		Items:      []ledger.PurchaseItemInput{{VariantID: "v1", Qty: 10, UnitCost: 200}},
	})
	require.NoError(t, err)

	v, err := r.GetVariant(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, 20, v.StockQty)
	assert.InDelta(t, 150, v.AvgCost, 0.001)
	assert.Equal(t, int64(3), v.Version)

	sale, err := l.CreateSale(ctx, ledger.SaleInput{
		PaymentMode: domain.PaymentCash,
		Subtotal:    3600,
		Total:       3600,
		CreatedBy:   "cashier",
		Items:       []ledger.SaleItemInput{{VariantID: "v1", Qty: 3, UnitPrice: 1200}},
	})
	require.NoError(t, err)
	assert.Equal(t, "MJT000001", sale.BillNo)
	assert.InDelta(t, 150, sale.Items[0].UnitCostAtSale, 0.001)

	_, err = l.VoidSale(ctx, sale.ID, "owner", "customer returned")
	require.NoError(t, err)
	_, err = l.VoidSale(ctx, sale.ID, "owner", "again")
	assert.ErrorIs(t, err, domain.ErrAlreadyVoided)

	v, err = r.GetVariant(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, 20, v.StockQty)

	_, err = l.CreateStockAdjustment(ctx, ledger.AdjustmentInput{
		VariantID: "v1", DeltaQty: -25, Reason: domain.ReasonDamage, CreatedBy: "owner",
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	movements, err := l.Movements(ctx, "v1")
	require.NoError(t, err)
	assert.Len(t, movements, 3)
	assert.Equal(t, domain.MovementVoidRestore, movements[0].Type)

	stats, err := r.SalesStats(ctx, store.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.VoidedCount)
	assert.Equal(t, 0, stats.SalesCount)

	err = r.DeleteVariant(ctx, "v1")
	assert.ErrorIs(t, err, domain.ErrReferenced)
}

func TestRepositoryConcurrentSales(t *testing.T) {
	r := newTestRepository(t)
	seedCatalog(t, r)
	ctx := context.Background()
	l := ledger.New(r)

	_, err := l.CreateStockAdjustment(ctx, ledger.AdjustmentInput{
		VariantID: "v1", DeltaQty: 10, Reason: domain.ReasonOpeningStock, CreatedBy: "owner",
	})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		billNos   = make(map[string]bool)
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sale, err := l.CreateSale(ctx, ledger.SaleInput{
				PaymentMode: domain.PaymentUPI,
				Subtotal:    1200,
				Total:       1200,
				CreatedBy:   "cashier",
				Items:       []ledger.SaleItemInput{{VariantID: "v1", Qty: 1, UnitPrice: 1200}},
			})
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrInsufficientStock)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			succeeded++
			billNos[sale.BillNo] = true
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Len(t, billNos, 10)
	for n := int64(1); n <= 10; n++ {
		assert.True(t, billNos[ledger.FormatBillNo("MJT", n)], "bill %d missing", n)
	}

	v, err := r.GetVariant(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, 0, v.StockQty)

	settings, err := r.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), settings.LastBillNumber)
}

func TestRepositoryIdempotentPurchase(t *testing.T) {
	r := newTestRepository(t)
	seedCatalog(t, r)
	ctx := context.Background()
	now := time.Now().UTC()
	l := ledger.New(r)

	extra := []string{"v2", "v3", "v4", "v5", "v6"}
	for _, id := range extra {
		_, err := r.CreateVariant(ctx, domain.Variant{
			ID: id, ProductID: "p1", SKU: "SAR-" + id, SellingPrice: 900,
			Status: domain.VariantActive, CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)
	}

	// Lines are entered in an order that matches neither the variant ids
	// nor the generated item ids.
	order := []string{"v4", "v1", "v6", "v2", "v5", "v3"}
	items := make([]ledger.PurchaseItemInput, 0, len(order))
	for i, id := range order {
		items = append(items, ledger.PurchaseItemInput{VariantID: id, Qty: i + 1, UnitCost: float64(80 + i)})
	}
	input := ledger.PurchaseInput{
		SupplierID:     "s1",
		CreatedBy:      "owner",
		IdempotencyKey: "grn-42",
		Items:          items,
	}
	first, err := l.CreatePurchase(ctx, input)
	require.NoError(t, err)
	second, err := l.CreatePurchase(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Items, second.Items)

	stored, err := r.GetPurchase(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, len(order))
	for i, item := range stored.Items {
		assert.Equal(t, order[i], item.VariantID)
		assert.Equal(t, i+1, item.Qty)
	}

	v, err := r.GetVariant(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, 2, v.StockQty)

	sale, err := l.CreateSale(ctx, ledger.SaleInput{
		PaymentMode: domain.PaymentCash,
		Subtotal:    3600,
		Total:       3600,
		CreatedBy:   "cashier",
		Items: []ledger.SaleItemInput{
			{VariantID: "v6", Qty: 1, UnitPrice: 900},
			{VariantID: "v2", Qty: 1, UnitPrice: 900},
			{VariantID: "v5", Qty: 1, UnitPrice: 900},
			{VariantID: "v1", Qty: 1, UnitPrice: 900},
		},
	})
	require.NoError(t, err)

	storedSale, err := r.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, storedSale.Items, 4)
	for i, want := range []string{"v6", "v2", "v5", "v1"} {
		assert.Equal(t, want, storedSale.Items[i].VariantID)
	}
}

func TestRepositoryUpdateSettingsWithoutRow(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	_, err := r.pool.Exec(ctx, `DELETE FROM settings`)
	require.NoError(t, err)

	name := "Lakshmi Textiles"
	threshold := 8
	tax := 5.0
	settings, err := r.UpdateSettings(ctx, store.SettingsPatch{
		ShopName: &name, LowStockThreshold: &threshold, DefaultTaxPercent: &tax,
	}, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, "Lakshmi Textiles", settings.ShopName)
	assert.Equal(t, 8, settings.LowStockThreshold)
	assert.InDelta(t, 5, settings.DefaultTaxPercent, 0.001)
	assert.Equal(t, domain.DefaultSettings().BillPrefix, settings.BillPrefix)
}

func TestRepositoryCatalogConstraints(t *testing.T) {
	r := newTestRepository(t)
	seedCatalog(t, r)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := r.CreateVariant(ctx, domain.Variant{
		ID: "v2", ProductID: "p1", SKU: "sar-blue", Status: domain.VariantActive, CreatedAt: now, UpdatedAt: now,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	_, err = r.CreateVariant(ctx, domain.Variant{
		ID: "v3", ProductID: "missing", SKU: "X-1", Status: domain.VariantActive, CreatedAt: now, UpdatedAt: now,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	found, err := r.FindVariantByCode(ctx, "8902001")
	require.NoError(t, err)
	assert.Equal(t, "v1", found.ID)

	_, err = r.GetVariant(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	price := 999.0
	updated, err := r.UpdateVariantMeta(ctx, "v1", store.VariantMetaPatch{SellingPrice: &price}, now)
	require.NoError(t, err)
	assert.InDelta(t, 999, updated.SellingPrice, 0.001)
	assert.Equal(t, int64(1), updated.Version)

	prefix := "INV"
	settings, err := r.UpdateSettings(ctx, store.SettingsPatch{BillPrefix: &prefix}, now)
	require.NoError(t, err)
	assert.Equal(t, "INV", settings.BillPrefix)
	assert.Equal(t, 5, settings.LowStockThreshold)
}

package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func seed(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s := New()

	_, err := s.CreateProduct(ctx, domain.Product{ID: "p1", Name: "Cotton Saree", CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	_, err = s.CreateVariant(ctx, domain.Variant{ID: "v1", ProductID: "p1", SKU: "SAR-RED", Barcode: "890001", Status: domain.VariantActive, CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	_, err = s.CreateVariant(ctx, domain.Variant{ID: "v2", ProductID: "p1", SKU: "SAR-BLUE", Status: domain.VariantActive, CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	_, err = s.CreateSupplier(ctx, domain.Supplier{ID: "s1", Name: "Surat Mills", CreatedAt: now})
	require.NoError(t, err)
	return s
}

func setStock(ctx context.Context, tx store.Tx, id string, qty int) error {
	v, err := tx.GetVariantForUpdate(ctx, id)
	if err != nil {
		return err
	}
	v.StockQty = qty
	_, err = tx.UpdateVariantStock(ctx, v)
	return err
}

func TestWithinTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commit applies staged writes and bumps version", func(t *testing.T) {
		s := seed(t)

		err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return setStock(ctx, tx, "v1", 7)
		})
		require.NoError(t, err)

		v, err := s.GetVariant(ctx, "v1")
		require.NoError(t, err)
		assert.Equal(t, 7, v.StockQty)
		assert.Equal(t, int64(2), v.Version)
	})

	t.Run("error discards every staged write", func(t *testing.T) {
		s := seed(t)
		boom := errors.New("boom")

		err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if err := setStock(ctx, tx, "v1", 7); err != nil {
				return err
			}
			if err := tx.InsertStockAdjustment(ctx, domain.StockAdjustment{ID: "a1", VariantID: "v1", DeltaQty: 7}); err != nil {
				return err
			}
			if _, _, err := tx.NextBillNumber(ctx); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		v, _ := s.GetVariant(ctx, "v1")
		assert.Equal(t, 0, v.StockQty)
		adjustments, _ := s.VariantAdjustments(ctx, "v1")
		assert.Empty(t, adjustments)
		settings, _ := s.GetSettings(ctx)
		assert.Equal(t, int64(0), settings.LastBillNumber)
	})

	t.Run("update without lock is refused", func(t *testing.T) {
		s := seed(t)

		err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
			_, err := tx.UpdateVariantStock(ctx, domain.Variant{ID: "v1", StockQty: 1})
			return err
		})
		assert.Error(t, err)
	})

	t.Run("commit keeps concurrent catalog edits", func(t *testing.T) {
		s := seed(t)
		price := 499.0

		err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if err := setStock(ctx, tx, "v1", 3); err != nil {
				return err
			}
			_, err := s.UpdateVariantMeta(ctx, "v1", store.VariantMetaPatch{SellingPrice: &price}, now)
			return err
		})
		require.NoError(t, err)

		v, _ := s.GetVariant(ctx, "v1")
		assert.Equal(t, 3, v.StockQty)
		assert.Equal(t, 499.0, v.SellingPrice)
	})
}

func TestVariantLocksSerialize(t *testing.T) {
	ctx := context.Background()
	s := seed(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
				if err := tx.LockVariants(ctx, []string{"v2", "v1"}); err != nil {
					return err
				}
				for _, id := range []string{"v1", "v2"} {
					v, err := tx.GetVariantForUpdate(ctx, id)
					if err != nil {
						return err
					}
					if err := setStock(ctx, tx, id, v.StockQty+1); err != nil {
						return err
					}
				}
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, id := range []string{"v1", "v2"} {
		v, err := s.GetVariant(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 50, v.StockQty, id)
	}
}

func TestLockHonoursContext(t *testing.T) {
	s := seed(t)
	held := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = s.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
			if _, err := tx.GetVariantForUpdate(ctx, "v1"); err != nil {
				return err
			}
			close(held)
			<-done
			return nil
		})
	}()
	<-held
	defer close(done)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.GetVariantForUpdate(ctx, "v1")
		return err
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNextBillNumber(t *testing.T) {
	ctx := context.Background()
	s := seed(t)

	var got []int64
	for i := 0; i < 3; i++ {
		err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
			prefix, n, err := tx.NextBillNumber(ctx)
			assert.Equal(t, "MJT", prefix)
			got = append(got, n)
			return err
		})
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{1, 2, 3}, got)
}

func TestIdempotencyClaim(t *testing.T) {
	ctx := context.Background()
	s := seed(t)

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, claimed, err := tx.ClaimIdempotencyKey(ctx, "k1", store.KindSale, now)
		require.NoError(t, err)
		assert.True(t, claimed)
		return tx.CompleteIdempotencyKey(ctx, "k1", "sale-1")
	})
	require.NoError(t, err)

	err = s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		record, claimed, err := tx.ClaimIdempotencyKey(ctx, "k1", store.KindSale, now)
		require.NoError(t, err)
		assert.False(t, claimed)
		assert.Equal(t, "sale-1", record.RecordID)
		return nil
	})
	require.NoError(t, err)
}

func TestCatalogConstraints(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate sku is rejected case-insensitively", func(t *testing.T) {
		s := seed(t)
		_, err := s.CreateVariant(ctx, domain.Variant{ID: "v9", ProductID: "p1", SKU: "sar-red"})
		assert.ErrorIs(t, err, domain.ErrDuplicateKey)
	})

	t.Run("variant needs an existing product", func(t *testing.T) {
		s := seed(t)
		_, err := s.CreateVariant(ctx, domain.Variant{ID: "v9", ProductID: "nope", SKU: "X"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("referenced variant cannot be deleted", func(t *testing.T) {
		s := seed(t)
		err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.InsertStockAdjustment(ctx, domain.StockAdjustment{ID: "a1", VariantID: "v1", DeltaQty: 1, CreatedAt: now})
		})
		require.NoError(t, err)

		assert.ErrorIs(t, s.DeleteVariant(ctx, "v1"), domain.ErrReferenced)
		assert.NoError(t, s.DeleteVariant(ctx, "v2"))
		assert.ErrorIs(t, s.DeleteVariant(ctx, "v2"), domain.ErrNotFound)
	})

	t.Run("lookup by sku or barcode", func(t *testing.T) {
		s := seed(t)
		v, err := s.FindVariantByCode(ctx, "890001")
		require.NoError(t, err)
		assert.Equal(t, "v1", v.ID)

		v, err = s.FindVariantByCode(ctx, "sar-blue")
		require.NoError(t, err)
		assert.Equal(t, "v2", v.ID)

		_, err = s.FindVariantByCode(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("duplicate username", func(t *testing.T) {
		s := seed(t)
		_, err := s.CreateUser(ctx, domain.User{ID: "u1", Username: "Asha", Role: domain.RoleAdmin})
		require.NoError(t, err)
		_, err = s.CreateUser(ctx, domain.User{ID: "u2", Username: "asha", Role: domain.RoleStaff})
		assert.ErrorIs(t, err, domain.ErrDuplicateKey)
	})
}

func TestPurchaseNeedsSupplier(t *testing.T) {
	ctx := context.Background()
	s := seed(t)

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertPurchase(ctx, domain.Purchase{ID: "pu1", SupplierID: "ghost"})
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSalesStats(t *testing.T) {
	ctx := context.Background()
	s := seed(t)

	voidedAt := now.Add(time.Hour)
	by := "owner"
	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertSale(ctx, domain.Sale{
			ID: "sa1", BillNo: "MJT000001", Status: domain.SaleCompleted, Total: 945, CreatedAt: now,
			Items: []domain.SaleItem{{ID: "i1", SaleID: "sa1", VariantID: "v1", Qty: 2, UnitPrice: 500, UnitCostAtSale: 300}},
		}); err != nil {
			return err
		}
		return tx.InsertSale(ctx, domain.Sale{
			ID: "sa2", BillNo: "MJT000002", Status: domain.SaleVoided, Total: 250, CreatedAt: now,
			VoidedAt: &voidedAt, VoidedBy: &by,
			Items: []domain.SaleItem{{ID: "i2", SaleID: "sa2", VariantID: "v2", Qty: 1, UnitPrice: 250, UnitCostAtSale: 100}},
		})
	})
	require.NoError(t, err)

	stats, err := s.SalesStats(ctx, store.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, domain.SalesStats{SalesCount: 1, VoidedCount: 1, ItemsSold: 2, Revenue: 945, ItemProfit: 400}, stats)

	later := now.Add(time.Minute)
	stats, err = s.SalesStats(ctx, store.ListFilter{From: &later})
	require.NoError(t, err)
	assert.Zero(t, stats.SalesCount)
	assert.Zero(t, stats.VoidedCount)
}

package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/store"
)

// lockTable hands out one named lock per record. Locks are channels so that
// waiting honours context cancellation.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]chan struct{})}
}

func (t *lockTable) get(name string) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, ok := t.locks[name]
	if !ok {
		ch = make(chan struct{}, 1)
		t.locks[name] = ch
	}
	return ch
}

func (t *lockTable) acquire(ctx context.Context, name string) error {
	select {
	case t.get(name) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("lock %s: %w", name, ctx.Err())
	}
}

func (t *lockTable) release(name string) {
	<-t.get(name)
}

func variantLock(id string) string      { return "variant:" + id }
func saleLock(id string) string         { return "sale:" + id }
func purchaseLock(id string) string     { return "purchase:" + id }
func idempotencyLock(key string) string { return "idempotency:" + key }

const settingsLock = "settings"

// WithinTx runs fn against a transaction whose writes are staged and applied
// to the store only when fn returns nil. Record locks taken through the
// transaction are held until it ends.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	t := &tx{
		s:                s,
		held:             make(map[string]bool),
		variants:         make(map[string]domain.Variant),
		deletedPurchases: make(map[string]bool),
		voids:            make(map[string]domain.Sale),
		idempotency:      make(map[string]store.IdempotencyRecord),
	}
	defer t.release()

	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	t.commit()
	return nil
}

type tx struct {
	s *Store

	order []string
	held  map[string]bool

	variants         map[string]domain.Variant
	purchases        []domain.Purchase
	deletedPurchases map[string]bool
	sales            []domain.Sale
	voids            map[string]domain.Sale
	adjustments      []domain.StockAdjustment
	idempotency      map[string]store.IdempotencyRecord
	billNumber       int64
}

func (t *tx) lock(ctx context.Context, name string) error {
	if t.held[name] {
		return nil
	}
	if err := t.s.locks.acquire(ctx, name); err != nil {
		return err
	}
	t.held[name] = true
	t.order = append(t.order, name)
	return nil
}

func (t *tx) release() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.s.locks.release(t.order[i])
	}
	t.order = nil
	t.held = map[string]bool{}
}

func (t *tx) commit() {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	// Only stock fields are owned by the transaction; catalog edits made
	// meanwhile are kept.
	for id, staged := range t.variants {
		current, ok := s.variants[id]
		if !ok {
			continue
		}
		current.StockQty = staged.StockQty
		current.AvgCost = staged.AvgCost
		current.Version = staged.Version
		current.UpdatedAt = staged.UpdatedAt
		s.variants[id] = current
	}
	for _, purchase := range t.purchases {
		s.purchases[purchase.ID] = purchase
	}
	for id := range t.deletedPurchases {
		delete(s.purchases, id)
	}
	for _, sale := range t.sales {
		s.sales[sale.ID] = sale
	}
	for id, sale := range t.voids {
		s.sales[id] = sale
	}
	s.adjustments = append(s.adjustments, t.adjustments...)
	for key, record := range t.idempotency {
		s.idempotency[key] = record
	}
	if t.billNumber > s.settings.LastBillNumber {
		s.settings.LastBillNumber = t.billNumber
	}
}

func (t *tx) ClaimIdempotencyKey(ctx context.Context, key, kind string, at time.Time) (store.IdempotencyRecord, bool, error) {
	if err := t.lock(ctx, idempotencyLock(key)); err != nil {
		return store.IdempotencyRecord{}, false, err
	}
	if record, ok := t.idempotency[key]; ok {
		return record, false, nil
	}
	t.s.mu.RLock()
	record, ok := t.s.idempotency[key]
	t.s.mu.RUnlock()
	if ok {
		return record, false, nil
	}

	record = store.IdempotencyRecord{Key: key, Kind: kind, CreatedAt: at}
	t.idempotency[key] = record
	return record, true, nil
}

func (t *tx) CompleteIdempotencyKey(_ context.Context, key, recordID string) error {
	record, ok := t.idempotency[key]
	if !ok {
		return fmt.Errorf("idempotency key %s was not claimed in this transaction", key)
	}
	record.RecordID = recordID
	t.idempotency[key] = record
	return nil
}

func (t *tx) LockVariants(ctx context.Context, ids []string) error {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	for _, id := range slices.Compact(sorted) {
		if err := t.lock(ctx, variantLock(id)); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) GetVariantForUpdate(ctx context.Context, id string) (domain.Variant, error) {
	if err := t.lock(ctx, variantLock(id)); err != nil {
		return domain.Variant{}, err
	}
	if staged, ok := t.variants[id]; ok {
		return staged, nil
	}

	t.s.mu.RLock()
	variant, ok := t.s.variants[id]
	t.s.mu.RUnlock()
	if !ok {
		return domain.Variant{}, domain.NotFoundf("variant %s", id)
	}
	return variant, nil
}

func (t *tx) UpdateVariantStock(ctx context.Context, variant domain.Variant) (domain.Variant, error) {
	if !t.held[variantLock(variant.ID)] {
		return domain.Variant{}, fmt.Errorf("update variant %s: row not locked", variant.ID)
	}
	current, err := t.GetVariantForUpdate(ctx, variant.ID)
	if err != nil {
		return domain.Variant{}, err
	}
	current.StockQty = variant.StockQty
	current.AvgCost = variant.AvgCost
	current.UpdatedAt = variant.UpdatedAt
	current.Version++
	t.variants[current.ID] = current
	return current, nil
}

func (t *tx) TouchVariants(ctx context.Context, ids []string, at time.Time) error {
	if err := t.LockVariants(ctx, ids); err != nil {
		return err
	}
	for _, id := range slices.Compact(slices.Sorted(slices.Values(ids))) {
		current, err := t.GetVariantForUpdate(ctx, id)
		if err != nil {
			return err
		}
		current.Version++
		current.UpdatedAt = at
		t.variants[id] = current
	}
	return nil
}

func (t *tx) InsertPurchase(_ context.Context, purchase domain.Purchase) error {
	t.s.mu.RLock()
	_, supplierExists := t.s.suppliers[purchase.SupplierID]
	_, duplicate := t.s.purchases[purchase.ID]
	t.s.mu.RUnlock()

	if !supplierExists {
		return domain.NotFoundf("supplier %s", purchase.SupplierID)
	}
	if duplicate || slices.ContainsFunc(t.purchases, func(p domain.Purchase) bool { return p.ID == purchase.ID }) {
		return fmt.Errorf("%w: purchase id %s", domain.ErrDuplicateKey, purchase.ID)
	}
	t.purchases = append(t.purchases, clonePurchase(purchase))
	return nil
}

func (t *tx) GetPurchaseForUpdate(ctx context.Context, id string) (domain.Purchase, error) {
	if err := t.lock(ctx, purchaseLock(id)); err != nil {
		return domain.Purchase{}, err
	}
	if t.deletedPurchases[id] {
		return domain.Purchase{}, domain.NotFoundf("purchase %s", id)
	}
	for _, purchase := range t.purchases {
		if purchase.ID == id {
			return clonePurchase(purchase), nil
		}
	}

	t.s.mu.RLock()
	purchase, ok := t.s.purchases[id]
	t.s.mu.RUnlock()
	if !ok {
		return domain.Purchase{}, domain.NotFoundf("purchase %s", id)
	}
	return clonePurchase(purchase), nil
}

func (t *tx) DeletePurchase(ctx context.Context, id string) error {
	if _, err := t.GetPurchaseForUpdate(ctx, id); err != nil {
		return err
	}
	t.deletedPurchases[id] = true
	return nil
}

func (t *tx) InsertSale(_ context.Context, sale domain.Sale) error {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	if _, exists := t.s.sales[sale.ID]; exists {
		return fmt.Errorf("%w: sale id %s", domain.ErrDuplicateKey, sale.ID)
	}
	for _, existing := range t.s.sales {
		if existing.BillNo == sale.BillNo {
			return fmt.Errorf("%w: bill no %s", domain.ErrDuplicateKey, sale.BillNo)
		}
	}
	for _, staged := range t.sales {
		if staged.ID == sale.ID || staged.BillNo == sale.BillNo {
			return fmt.Errorf("%w: bill no %s", domain.ErrDuplicateKey, sale.BillNo)
		}
	}
	t.sales = append(t.sales, cloneSale(sale))
	return nil
}

func (t *tx) GetSaleForUpdate(ctx context.Context, id string) (domain.Sale, error) {
	if err := t.lock(ctx, saleLock(id)); err != nil {
		return domain.Sale{}, err
	}
	if voided, ok := t.voids[id]; ok {
		return cloneSale(voided), nil
	}
	for _, sale := range t.sales {
		if sale.ID == id {
			return cloneSale(sale), nil
		}
	}

	t.s.mu.RLock()
	sale, ok := t.s.sales[id]
	t.s.mu.RUnlock()
	if !ok {
		return domain.Sale{}, domain.NotFoundf("sale %s", id)
	}
	return cloneSale(sale), nil
}

func (t *tx) MarkSaleVoided(ctx context.Context, id string, at time.Time, voidedBy, reason string) error {
	sale, err := t.GetSaleForUpdate(ctx, id)
	if err != nil {
		return err
	}
	sale.Status = domain.SaleVoided
	sale.VoidedAt = &at
	sale.VoidedBy = &voidedBy
	sale.VoidReason = &reason
	t.voids[id] = sale
	return nil
}

func (t *tx) NextBillNumber(ctx context.Context) (string, int64, error) {
	if err := t.lock(ctx, settingsLock); err != nil {
		return "", 0, err
	}

	t.s.mu.RLock()
	prefix := t.s.settings.BillPrefix
	last := t.s.settings.LastBillNumber
	t.s.mu.RUnlock()

	if t.billNumber == 0 {
		t.billNumber = last
	}
	t.billNumber++
	return prefix, t.billNumber, nil
}

func (t *tx) InsertStockAdjustment(_ context.Context, adjustment domain.StockAdjustment) error {
	t.s.mu.RLock()
	_, ok := t.s.variants[adjustment.VariantID]
	t.s.mu.RUnlock()
	if !ok {
		return domain.NotFoundf("variant %s", adjustment.VariantID)
	}
	t.adjustments = append(t.adjustments, adjustment)
	return nil
}

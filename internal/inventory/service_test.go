package inventory_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/payment-fulfillment/internal/domain"
	"github.com/robertarktes/payment-fulfillment/internal/inventory"
	"github.com/robertarktes/payment-fulfillment/internal/lock"
	"github.com/robertarktes/payment-fulfillment/internal/observability"
	"golang.org/x/sync/errgroup"
)

// memLocks is an in-process lock.Manager with real mutual exclusion, so
// concurrency tests exercise the same contention the Redis leases would.
type memLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocks() *memLocks {
	return &memLocks{held: make(map[string]bool)}
}

func (m *memLocks) Obtain(key string) lock.Lease {
	return &memLease{m: m, key: key}
}

type memLease struct {
	m   *memLocks
	key string
}

func (l *memLease) TryAcquire(ctx context.Context, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		l.m.mu.Lock()
		if !l.m.held[l.key] {
			l.m.held[l.key] = true
			l.m.mu.Unlock()
			return true, nil
		}
		l.m.mu.Unlock()
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (l *memLease) Release(ctx context.Context) error {
	l.m.mu.Lock()
	delete(l.m.held, l.key)
	l.m.mu.Unlock()
	return nil
}

// blockedLocks never grants a lease; used to force lock-timeout paths.
type blockedLocks struct{}

func (blockedLocks) Obtain(key string) lock.Lease { return blockedLease{} }

type blockedLease struct{}

func (blockedLease) TryAcquire(ctx context.Context, timeout time.Duration) (bool, error) {
	return false, nil
}
func (blockedLease) Release(ctx context.Context) error { return nil }

type memStore struct {
	mu    sync.Mutex
	units map[uuid.UUID]*domain.InventoryUnit
}

func newMemStore() *memStore {
	return &memStore{units: make(map[uuid.UUID]*domain.InventoryUnit)}
}

func (s *memStore) addUnits(productID uuid.UUID, n int) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, n)
	base := time.Now().Add(-time.Duration(n) * time.Second)
	for i := 0; i < n; i++ {
		u := &domain.InventoryUnit{
			ID:        uuid.New(),
			ProductID: productID,
			SellerID:  uuid.New(),
			ShopID:    uuid.New(),
			StallID:   uuid.New(),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		s.units[u.ID] = u
		ids = append(ids, u.ID)
	}
	return ids
}

func (s *memStore) SelectEligible(ctx context.Context, productID uuid.UUID, limit int) ([]domain.InventoryUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var eligible []domain.InventoryUnit
	for _, u := range s.units {
		if u.ProductID == productID && u.Eligible() {
			eligible = append(eligible, *u)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].CreatedAt.Before(eligible[j].CreatedAt) })
	if len(eligible) > limit {
		eligible = eligible[:limit]
	}
	return eligible, nil
}

func (s *memStore) LockUnit(ctx context.Context, unitID uuid.UUID, lockedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[unitID]
	if !ok || !u.Eligible() {
		return domain.ErrConflict
	}
	u.Locked = true
	u.LockedBy = lockedBy
	u.LockedAt = &at
	return nil
}

func (s *memStore) UnlockUnit(ctx context.Context, unitID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[unitID]
	if !ok || !u.Locked || u.Consumed {
		return domain.ErrConflict
	}
	u.Locked = false
	u.LockedBy = ""
	u.LockedAt = nil
	return nil
}

func (s *memStore) ConsumeUnit(ctx context.Context, unitID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[unitID]
	if !ok || !u.Locked || u.Consumed {
		return domain.ErrConflict
	}
	u.Consumed = true
	return nil
}

func (s *memStore) lockedCount(productID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.units {
		if u.ProductID == productID && u.Locked {
			n++
		}
	}
	return n
}

func newService(store inventory.Store, locks lock.Manager) *inventory.Service {
	return inventory.NewService(store, locks, 2*time.Second, observability.NewLogger())
}

func TestReserveOldestFirst(t *testing.T) {
	store := newMemStore()
	product := uuid.New()
	ids := store.addUnits(product, 3)

	svc := newService(store, newMemLocks())
	res, err := svc.Reserve(context.Background(), map[uuid.UUID]int{product: 2}, "buyer-1")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if len(res.Units) != 2 {
		t.Fatalf("reserved %d units, want 2", len(res.Units))
	}
	// Oldest-created units win.
	if res.Units[0].ID != ids[0] || res.Units[1].ID != ids[1] {
		t.Error("expected the two oldest units to be selected")
	}
	if res.Units[0].LockedBy != "buyer-1" {
		t.Errorf("lockedBy = %q, want buyer-1", res.Units[0].LockedBy)
	}
}

func TestReserveSingleUnitContention(t *testing.T) {
	// Scenario: stock=1, two concurrent requests -> exactly one wins, the
	// loser fails with insufficient stock.
	store := newMemStore()
	product := uuid.New()
	store.addUnits(product, 1)
	svc := newService(store, newMemLocks())

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(buyer string) {
			defer wg.Done()
			_, err := svc.Reserve(context.Background(), map[uuid.UUID]int{product: 1}, buyer)
			results <- err
		}("buyer-" + string(rune('a'+i)))
	}
	wg.Wait()
	close(results)

	var wins, stockFailures int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrOutOfStock):
			stockFailures++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || stockFailures != 1 {
		t.Errorf("wins=%d stockFailures=%d, want 1 and 1", wins, stockFailures)
	}
}

func TestReserveNoOverselling(t *testing.T) {
	// Scenario: stock=5, five concurrent single-unit requests all succeed
	// and stock drains to exactly zero.
	store := newMemStore()
	product := uuid.New()
	store.addUnits(product, 5)
	svc := newService(store, newMemLocks())

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 5; i++ {
		g.Go(func() error {
			_, err := svc.Reserve(ctx, map[uuid.UUID]int{product: 1}, "buyer")
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("all five should succeed: %v", err)
	}
	if got := store.lockedCount(product); got != 5 {
		t.Errorf("locked %d units, want 5", got)
	}

	// A sixth request sees nothing.
	if _, err := svc.Reserve(context.Background(), map[uuid.UUID]int{product: 1}, "late"); !errors.Is(err, domain.ErrOutOfStock) {
		t.Errorf("expected out of stock, got %v", err)
	}
}

func TestReserveAllOrNothing(t *testing.T) {
	// Scenario: cart {A:2, B:1}, A has only 1 unit -> nothing stays locked.
	store := newMemStore()
	productA := uuid.New()
	productB := uuid.New()
	store.addUnits(productA, 1)
	store.addUnits(productB, 3)
	svc := newService(store, newMemLocks())

	_, err := svc.Reserve(context.Background(), map[uuid.UUID]int{productA: 2, productB: 1}, "buyer")
	if !errors.Is(err, domain.ErrOutOfStock) {
		t.Fatalf("expected out of stock, got %v", err)
	}
	if store.lockedCount(productA) != 0 || store.lockedCount(productB) != 0 {
		t.Errorf("partial reservation left standing: A=%d B=%d locked",
			store.lockedCount(productA), store.lockedCount(productB))
	}
}

func TestReserveLockTimeoutDistinctFromStock(t *testing.T) {
	store := newMemStore()
	product := uuid.New()
	store.addUnits(product, 1)
	svc := newService(store, blockedLocks{})

	_, err := svc.Reserve(context.Background(), map[uuid.UUID]int{product: 1}, "buyer")
	if !errors.Is(err, domain.ErrLockTimeout) {
		t.Fatalf("expected lock timeout, got %v", err)
	}
	if errors.Is(err, domain.ErrOutOfStock) {
		t.Error("lock timeout must not read as out of stock")
	}
}

func TestReserveRejectsNonPositiveQuantity(t *testing.T) {
	svc := newService(newMemStore(), newMemLocks())
	_, err := svc.Reserve(context.Background(), map[uuid.UUID]int{uuid.New(): 0}, "buyer")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestLockOneRoutesThroughReservation(t *testing.T) {
	store := newMemStore()
	product := uuid.New()
	ids := store.addUnits(product, 2)
	svc := newService(store, newMemLocks())

	unit, err := svc.LockOne(context.Background(), product, "legacy-buyer")
	if err != nil {
		t.Fatalf("lockOne: %v", err)
	}
	if unit.ID != ids[0] {
		t.Error("lockOne should take the oldest unit")
	}

	if _, err := svc.LockOne(context.Background(), uuid.New(), "legacy-buyer"); !errors.Is(err, domain.ErrOutOfStock) {
		t.Errorf("empty product should be out of stock, got %v", err)
	}
}

func TestLockManyRollsBackPartialSuccess(t *testing.T) {
	store := newMemStore()
	productA := uuid.New()
	productB := uuid.New()
	store.addUnits(productA, 1)
	// productB has no stock at all.
	svc := newService(store, newMemLocks())

	_, err := svc.LockMany(context.Background(), []uuid.UUID{productA, productB}, "legacy-buyer")
	if !errors.Is(err, domain.ErrOutOfStock) {
		t.Fatalf("expected out of stock, got %v", err)
	}
	if store.lockedCount(productA) != 0 {
		t.Error("partial lock not rolled back")
	}
}

func TestMarkDeliveredIsFinal(t *testing.T) {
	store := newMemStore()
	product := uuid.New()
	store.addUnits(product, 1)
	svc := newService(store, newMemLocks())

	unit, err := svc.LockOne(context.Background(), product, "buyer")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.MarkDelivered(context.Background(), unit.ID); err != nil {
		t.Fatalf("markDelivered: %v", err)
	}
	// A consumed unit cannot be unlocked back into stock.
	if err := svc.UnlockOne(context.Background(), unit.ID); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("unlocking a consumed unit should conflict, got %v", err)
	}
	// And it never comes back as eligible.
	if _, err := svc.LockOne(context.Background(), product, "next"); !errors.Is(err, domain.ErrOutOfStock) {
		t.Errorf("consumed unit resurfaced: %v", err)
	}
}

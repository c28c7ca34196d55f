package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhonier182/lista-mercado/internal/core"
	"github.com/jhonier182/lista-mercado/internal/entities/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.PriceHistoryEntry
	names  []string
	err    error
}

func (p *recordingPublisher) PublishPriceRecorded(_ context.Context, e core.PriceHistoryEntry, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	p.names = append(p.names, name)
	return p.err
}

type fixture struct {
	store      *memory.Store
	clock      *fakeClock
	publisher  *recordingPublisher
	categories *CategoryService
	stores     *StoreService
	history    *PriceHistoryRecorder
	products   *ProductService
	expenses   *ExpenseService
	comparison *ComparisonService
	dashboard  *DashboardService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.New(),
		clock:     &fakeClock{now: time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC)},
		publisher: &recordingPublisher{},
	}
	var (
		mu  sync.Mutex
		seq int
	)
	ids := func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}
	opts := []Option{WithClock(f.clock.Now), WithIDGenerator(ids)}

	f.categories = NewCategoryService(f.store, opts...)
	f.stores = NewStoreService(f.store, opts...)
	f.history = NewPriceHistoryRecorder(f.store, f.store, f.publisher, opts...)
	f.products = NewProductService(f.store, f.store, f.store, f.history, opts...)
	f.expenses = NewExpenseService(f.store, nil, opts...)
	f.comparison = NewComparisonService(f.store, f.store, opts...)
	f.dashboard = NewDashboardService(f.products, f.categories, f.stores, f.expenses, opts...)
	return f
}

func session(id string) *core.Session {
	return core.NewSession(core.User{ID: id, DisplayName: id, Email: id + "@example.com"})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// seed creates one category and one store for the owner.
func (f *fixture) seed(t *testing.T, sess *core.Session) (categoryID, storeID string) {
	t.Helper()
	ctx := context.Background()
	categoryID, err := f.categories.Add(ctx, sess, CategoryInput{Name: "Dairy"})
	require.NoError(t, err)
	storeID, err = f.stores.Add(ctx, sess, StoreInput{Name: "Corner Shop"})
	require.NoError(t, err)
	return categoryID, storeID
}

func (f *fixture) addProduct(t *testing.T, sess *core.Session, name, price, categoryID, storeID string) string {
	t.Helper()
	id, err := f.products.Add(context.Background(), sess, ProductInput{
		Name:       name,
		Price:      dec(price),
		CategoryID: categoryID,
		StoreID:    storeID,
	})
	require.NoError(t, err)
	return id
}

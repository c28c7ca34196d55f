package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhonier182/lista-mercado/internal/core"
	"github.com/jhonier182/lista-mercado/internal/entities"
	"github.com/jhonier182/lista-mercado/internal/entities/memory"
)

func TestEntryPointsRequireSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	calls := map[string]func(*core.Session) error{
		"category add": func(s *core.Session) error {
			_, err := f.categories.Add(ctx, s, CategoryInput{Name: "x"})
			return err
		},
		"category list": func(s *core.Session) error { _, err := f.categories.List(ctx, s); return err },
		"store add": func(s *core.Session) error {
			_, err := f.stores.Add(ctx, s, StoreInput{Name: "x"})
			return err
		},
		"store delete":   func(s *core.Session) error { return f.stores.Delete(ctx, s, "id") },
		"product list":   func(s *core.Session) error { _, err := f.products.List(ctx, s, ProductQuery{}); return err },
		"product update": func(s *core.Session) error { _, err := f.products.Update(ctx, s, "id", ProductPatch{}); return err },
		"history record": func(s *core.Session) error {
			_, err := f.history.Record(ctx, s, "id", dec("1"), "", f.clock.Now())
			return err
		},
		"monthly":    func(s *core.Session) error { _, err := f.expenses.Monthly(ctx, s, 2025, 9); return err },
		"comparison": func(s *core.Session) error { _, err := f.comparison.Compare(ctx, s, 3); return err },
		"dashboard":  func(s *core.Session) error { _, err := f.dashboard.Summary(ctx, s, f.clock.Now()); return err },
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, call(nil), core.ErrAuthRequired)
			assert.ErrorIs(t, call(&core.Session{}), core.ErrAuthRequired)
		})
	}
}

func TestCategoryLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := session("alice")

	_, err := f.categories.Add(ctx, alice, CategoryInput{Name: "  "})
	assert.Equal(t, core.KindValidation, core.KindOf(err))

	id, err := f.categories.Add(ctx, alice, CategoryInput{Name: "Fruit"})
	require.NoError(t, err)
	_, err = f.categories.Add(ctx, alice, CategoryInput{Name: "bakery"})
	require.NoError(t, err)

	list, err := f.categories.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "bakery", list[0].Name)

	name := "Fruits"
	f.clock.Advance(time.Minute)
	c, err := f.categories.Update(ctx, alice, id, CategoryPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Fruits", c.Name)
	require.NotNil(t, c.UpdatedAt)

	_, err = f.categories.Get(ctx, session("bob"), id)
	assert.ErrorIs(t, err, core.ErrNotFound, "other owners never see the record")

	require.NoError(t, f.categories.Delete(ctx, alice, id))
	_, err = f.categories.Update(ctx, alice, id, CategoryPatch{Name: &name})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, f.categories.Delete(ctx, alice, id), core.ErrNotFound)

	_, err = f.categories.Update(ctx, alice, "", CategoryPatch{Name: &name})
	assert.Equal(t, core.KindValidation, core.KindOf(err))
}

func TestStoreListScopedToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.stores.Add(ctx, session("alice"), StoreInput{Name: "Market"})
	require.NoError(t, err)
	_, err = f.stores.Add(ctx, session("bob"), StoreInput{Name: "Bazaar"})
	require.NoError(t, err)

	list, err := f.stores.List(ctx, session("alice"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Market", list[0].Name)
}

func TestProductAddDefaultsAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := session("alice")
	catID, storeID := f.seed(t, alice)

	id := f.addProduct(t, alice, "Milk", "1.20", catID, storeID)

	p, err := f.products.Get(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, core.UnitPiece, p.Unit)
	assert.True(t, p.Quantity.Equal(dec("1")))
	assert.Equal(t, "Dairy", p.CategoryName)
	assert.Equal(t, "Corner Shop", p.StoreName)
	assert.True(t, p.IsActive)

	entries, err := f.products.History(ctx, alice, id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Price.Equal(dec("1.20")))
	assert.Equal(t, "Corner Shop", entries[0].Store)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, "Milk", f.publisher.names[0])
}

func TestProductAddValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := session("alice")
	catID, storeID := f.seed(t, alice)

	cases := []struct {
		name  string
		in    ProductInput
		field string
	}{
		{"empty name", ProductInput{Price: dec("1"), CategoryID: catID, StoreID: storeID}, "name"},
		{"zero price", ProductInput{Name: "Milk", CategoryID: catID, StoreID: storeID}, "price"},
		{"negative quantity", ProductInput{Name: "Milk", Price: dec("1"), Quantity: decPtr("-1"), CategoryID: catID, StoreID: storeID}, "quantity"},
		{"zero quantity", ProductInput{Name: "Milk", Price: dec("1"), Quantity: decPtr("0"), CategoryID: catID, StoreID: storeID}, "quantity"},
		{"bad unit", ProductInput{Name: "Milk", Price: dec("1"), Unit: "lb", CategoryID: catID, StoreID: storeID}, "unit"},
		{"missing category", ProductInput{Name: "Milk", Price: dec("1"), StoreID: storeID}, "categoryId"},
		{"unknown category", ProductInput{Name: "Milk", Price: dec("1"), CategoryID: "nope", StoreID: storeID}, "categoryId"},
		{"unknown store", ProductInput{Name: "Milk", Price: dec("1"), CategoryID: catID, StoreID: "nope"}, "storeId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.products.Add(ctx, alice, tc.in)
			var ve *core.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tc.field, ve.Field)
		})
	}

	// References owned by someone else do not resolve.
	_, err := f.products.Add(ctx, session("bob"), ProductInput{Name: "Milk", Price: dec("1"), CategoryID: catID, StoreID: storeID})
	assert.Equal(t, core.KindValidation, core.KindOf(err))
}

func TestProductUpdateAppendsHistoryOnlyForPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := session("alice")
	catID, storeID := f.seed(t, alice)
	id := f.addProduct(t, alice, "Milk", "1.20", catID, storeID)

	notes := "lactose free"
	f.clock.Advance(time.Hour)
	_, err := f.products.Update(ctx, alice, id, ProductPatch{Notes: &notes})
	require.NoError(t, err)

	price := dec("1.50")
	f.clock.Advance(time.Hour)
	p, err := f.products.Update(ctx, alice, id, ProductPatch{Price: &price})
	require.NoError(t, err)
	assert.True(t, p.Price.Equal(price))
	assert.Equal(t, notes, p.Notes)

	// Same price again still appends.
	f.clock.Advance(time.Hour)
	_, err = f.products.Update(ctx, alice, id, ProductPatch{Price: &price})
	require.NoError(t, err)

	entries, err := f.products.History(ctx, alice, id)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Date.After(entries[1].Date))
	assert.True(t, entries[2].Price.Equal(dec("1.20")))

	zero := dec("0")
	_, err = f.products.Update(ctx, alice, id, ProductPatch{Price: &zero})
	assert.Equal(t, core.KindValidation, core.KindOf(err))
}

func TestProductUpdateReResolvesNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := session("alice")
	catID, storeID := f.seed(t, alice)
	id := f.addProduct(t, alice, "Milk", "1.20", catID, storeID)

	other, err := f.stores.Add(ctx, alice, StoreInput{Name: "Hypermarket"})
	require.NoError(t, err)

	p, err := f.products.Update(ctx, alice, id, ProductPatch{StoreID: &other})
	require.NoError(t, err)
	assert.Equal(t, "Hypermarket", p.StoreName)
	assert.Equal(t, "Dairy", p.CategoryName)

	require.NoError(t, f.stores.Delete(ctx, alice, storeID))
	_, err = f.products.Update(ctx, alice, id, ProductPatch{StoreID: &storeID})
	assert.Equal(t, core.KindValidation, core.KindOf(err), "inactive store")
}

func TestProductDeleteKeepsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := session("alice")
	catID, storeID := f.seed(t, alice)
	id := f.addProduct(t, alice, "Milk", "1.20", catID, storeID)

	require.NoError(t, f.products.Delete(ctx, alice, id))
	_, err := f.products.Get(ctx, alice, id)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, f.products.Delete(ctx, alice, id), core.ErrNotFound)

	all, err := f.history.All(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	list, err := f.products.List(ctx, alice, ProductQuery{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestProductListFilterSearchSort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := session("alice")
	catID, storeID := f.seed(t, alice)

	_, err := f.products.Add(ctx, alice, ProductInput{Name: "Milk", Brand: "Alpina", Price: dec("3.00"), CategoryID: catID, StoreID: storeID})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.products.Add(ctx, alice, ProductInput{Name: "Yogurt", Brand: "Colanta", Price: dec("1.00"), CategoryID: catID, StoreID: storeID})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.products.Add(ctx, alice, ProductInput{Name: "Cheese", Brand: "alpina", Price: dec("2.00"), CategoryID: catID, StoreID: storeID})
	require.NoError(t, err)

	names := func(ps []core.Product) []string {
		out := make([]string, 0, len(ps))
		for _, p := range ps {
			out = append(out, p.Name)
		}
		return out
	}

	list, err := f.products.List(ctx, alice, ProductQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Cheese", "Yogurt", "Milk"}, names(list), "default is createdAt desc")

	list, err = f.products.List(ctx, alice, ProductQuery{SortBy: SortByPrice, SortDir: SortAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"Yogurt", "Cheese", "Milk"}, names(list))

	list, err = f.products.List(ctx, alice, ProductQuery{Search: "ALP", SortBy: SortByName})
	require.NoError(t, err)
	assert.Equal(t, []string{"Cheese", "Milk"}, names(list))

	list, err = f.products.List(ctx, alice, ProductQuery{Brand: "Colanta"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Yogurt"}, names(list))

	_, err = f.products.List(ctx, alice, ProductQuery{SortBy: "color"})
	assert.Equal(t, core.KindValidation, core.KindOf(err))
	_, err = f.products.List(ctx, alice, ProductQuery{SortBy: SortByName, SortDir: "sideways"})
	assert.Equal(t, core.KindValidation, core.KindOf(err))
}

func TestRecordPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := session("alice")
	catID, storeID := f.seed(t, alice)
	id := f.addProduct(t, alice, "Milk", "1.20", catID, storeID)

	_, err := f.history.Record(ctx, alice, id, dec("-1"), "", time.Time{})
	assert.Equal(t, core.KindValidation, core.KindOf(err))

	_, err = f.history.Record(ctx, session("bob"), id, dec("1"), "", time.Time{})
	assert.ErrorIs(t, err, core.ErrNotFound)

	f.publisher.err = errors.New("broker down")
	e, err := f.history.Record(ctx, alice, id, dec("1.10"), " Kiosk ", time.Time{})
	require.NoError(t, err, "publish failures never fail the write")
	assert.Equal(t, "Kiosk", e.Store)
	assert.True(t, e.Date.Equal(f.clock.Now()))
}

// splitHistory keeps price entries apart from the product store and can be
// told to reject appends.
type splitHistory struct {
	mu      sync.Mutex
	fail    bool
	entries []core.PriceHistoryEntry
}

func (h *splitHistory) AppendPriceEntry(_ context.Context, e core.PriceHistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail {
		return errors.New("disk I/O error")
	}
	h.entries = append(h.entries, e)
	return nil
}

func (h *splitHistory) QueryPriceHistory(_ context.Context, ownerID string, f entities.HistoryFilter) ([]core.PriceHistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []core.PriceHistoryEntry
	for _, e := range h.entries {
		if e.OwnerID == ownerID && (f.ProductID == "" || e.ProductID == f.ProductID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (h *splitHistory) setFail(fail bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fail = fail
}

func TestProductWritesUndoneWhenHistoryFails(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	history := &splitHistory{}
	recorder := NewPriceHistoryRecorder(store, history, nil)
	products := NewProductService(store, store, store, recorder)
	alice := session("alice")

	catID, err := NewCategoryService(store).Add(ctx, alice, CategoryInput{Name: "Dairy"})
	require.NoError(t, err)
	storeID, err := NewStoreService(store).Add(ctx, alice, StoreInput{Name: "Corner Shop"})
	require.NoError(t, err)
	in := ProductInput{Name: "Milk", Price: dec("100"), CategoryID: catID, StoreID: storeID}

	history.setFail(true)
	_, err = products.Add(ctx, alice, in)
	assert.Equal(t, core.KindBackend, core.KindOf(err))

	listed, err := products.List(ctx, alice, ProductQuery{})
	require.NoError(t, err)
	assert.Empty(t, listed, "a product without its initial price entry must not be listed")

	history.setFail(false)
	id, err := products.Add(ctx, alice, in)
	require.NoError(t, err)

	history.setFail(true)
	price := dec("150")
	_, err = products.Update(ctx, alice, id, ProductPatch{Price: &price})
	assert.Equal(t, core.KindBackend, core.KindOf(err))

	got, err := products.Get(ctx, alice, id)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(dec("100")), "price = %s", got.Price)
	assert.Nil(t, got.UpdatedAt)

	entries, err := recorder.List(ctx, alice, id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Price.Equal(got.Price))
}

func TestProductAddQuantityDefault(t *testing.T) {
	f := newFixture(t)
	alice := session("alice")
	catID, storeID := f.seed(t, alice)

	id := f.addProduct(t, alice, "Milk", "1.20", catID, storeID)
	p, err := f.products.Get(context.Background(), alice, id)
	require.NoError(t, err)
	assert.True(t, p.Quantity.Equal(dec("1")))

	id, err = f.products.Add(context.Background(), alice, ProductInput{
		Name: "Rice", Price: dec("2"), Quantity: decPtr("2.5"), Unit: core.UnitKilogram, CategoryID: catID, StoreID: storeID,
	})
	require.NoError(t, err)
	p, err = f.products.Get(context.Background(), alice, id)
	require.NoError(t, err)
	assert.True(t, p.Quantity.Equal(dec("2.5")))
}

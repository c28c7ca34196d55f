package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhonier182/lista-mercado/internal/core"
	"github.com/jhonier182/lista-mercado/internal/entities"
)

func TestProductsAreOwnerScoped(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.InsertProduct(ctx, core.Product{ID: "p1", OwnerID: "alice", Name: "Milk", Price: decimal.NewFromInt(1), IsActive: true}))
	require.NoError(t, s.InsertProduct(ctx, core.Product{ID: "p2", OwnerID: "bob", Name: "Milk", Price: decimal.NewFromInt(1), IsActive: true}))

	got, err := s.QueryProducts(ctx, "alice", entities.ProductFilter{Active: entities.ActiveOnly()})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)

	_, err = s.GetProduct(ctx, "alice", "p2")
	assert.True(t, errors.Is(err, core.ErrNotFound))

	err = s.UpdateProduct(ctx, core.Product{ID: "p2", OwnerID: "alice"})
	assert.True(t, errors.Is(err, core.ErrNotFound), "cannot overwrite another owner's record")
}

func TestQueryProductsFilters(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.InsertProduct(ctx, core.Product{ID: "1", OwnerID: "o", CategoryID: "c1", StoreID: "s1", Brand: "Acme", IsActive: true}))
	require.NoError(t, s.InsertProduct(ctx, core.Product{ID: "2", OwnerID: "o", CategoryID: "c2", StoreID: "s1", IsActive: true}))
	require.NoError(t, s.InsertProduct(ctx, core.Product{ID: "3", OwnerID: "o", CategoryID: "c1", StoreID: "s2", IsActive: false}))

	cases := []struct {
		name   string
		filter entities.ProductFilter
		want   int
	}{
		{"all", entities.ProductFilter{}, 3},
		{"active", entities.ProductFilter{Active: entities.ActiveOnly()}, 2},
		{"category", entities.ProductFilter{CategoryID: "c1"}, 2},
		{"store+active", entities.ProductFilter{StoreID: "s1", Active: entities.ActiveOnly()}, 2},
		{"brand", entities.ProductFilter{Brand: "Acme"}, 1},
	}
	for _, tc := range cases {
		got, err := s.QueryProducts(ctx, "o", tc.filter)
		require.NoError(t, err)
		assert.Len(t, got, tc.want, tc.name)
	}
}

func TestPriceHistoryAppendOnly(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()
	require.NoError(t, s.AppendPriceEntry(ctx, core.PriceHistoryEntry{ID: "h1", ProductID: "p1", OwnerID: "o", Price: decimal.NewFromInt(2), Date: now}))
	require.NoError(t, s.AppendPriceEntry(ctx, core.PriceHistoryEntry{ID: "h2", ProductID: "p1", OwnerID: "o", Price: decimal.NewFromInt(3), Date: now}))
	require.NoError(t, s.AppendPriceEntry(ctx, core.PriceHistoryEntry{ID: "h3", ProductID: "p2", OwnerID: "o", Price: decimal.NewFromInt(3), Date: now}))

	got, err := s.QueryPriceHistory(ctx, "o", entities.HistoryFilter{ProductID: "p1"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.QueryPriceHistory(ctx, "other", entities.HistoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUsersAndRevocation(t *testing.T) {
	ctx := context.Background()
	s := New()
	rec := entities.UserRecord{User: core.User{ID: "u1", Email: "Ana@Example.com"}, PasswordHash: []byte("hash")}
	require.NoError(t, s.InsertUser(ctx, rec))

	err := s.InsertUser(ctx, entities.UserRecord{User: core.User{ID: "u2", Email: "ana@example.com"}})
	assert.True(t, errors.Is(err, entities.ErrDuplicate))

	got, err := s.GetUserByEmail(ctx, " ANA@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.User.ID)

	revoked, err := s.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
	require.NoError(t, s.RevokeToken(ctx, "jti-1", time.Now().Add(time.Hour)))
	revoked, err = s.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestPingAfterClose(t *testing.T) {
	s := New()
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
	assert.Equal(t, core.KindBackend, core.KindOf(s.Ping(context.Background())))
}

func TestProductWithPriceIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := core.Product{ID: "p1", OwnerID: "alice", Name: "Milk", Price: decimal.NewFromInt(1), IsActive: true}
	entry := func(id string, price int64) core.PriceHistoryEntry {
		return core.PriceHistoryEntry{ID: id, ProductID: "p1", OwnerID: "alice", Price: decimal.NewFromInt(price), Date: time.Now()}
	}

	require.NoError(t, s.InsertProductWithPrice(ctx, p, entry("h1", 1)))

	// A second insert of the same id fails and leaves the history alone.
	err := s.InsertProductWithPrice(ctx, p, entry("h2", 1))
	assert.True(t, errors.Is(err, entities.ErrDuplicate))

	p.Price = decimal.NewFromInt(2)
	require.NoError(t, s.UpdateProductWithPrice(ctx, p, entry("h3", 2)))

	err = s.UpdateProductWithPrice(ctx, core.Product{ID: "p1", OwnerID: "bob"}, entry("h4", 9))
	assert.True(t, errors.Is(err, core.ErrNotFound))

	got, err := s.QueryPriceHistory(ctx, "alice", entities.HistoryFilter{ProductID: "p1"})
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"h1", "h3"}, ids)
}

// Package entities defines the entity store boundary consumed by the record
// services. Stores only offer owner-scoped equality filters; sorting, search
// and date ranges are applied by the callers.
package entities

import (
	"context"
	"errors"
	"time"

	"github.com/jhonier182/lista-mercado/internal/core"
)

// ErrDuplicate is returned when a unique key (user email) is already taken.
var ErrDuplicate = errors.New("duplicate record")

type (
	// Filter holds the equality filters shared by every record kind.
	// A nil Active matches both active and soft-deleted records.
	Filter struct {
		Active *bool
	}

	ProductFilter struct {
		Active     *bool
		CategoryID string
		StoreID    string
		Brand      string
	}

	HistoryFilter struct {
		ProductID string
	}

	// UserRecord is a registered identity with its password hash.
	UserRecord struct {
		User         core.User
		PasswordHash []byte
		CreatedAt    time.Time
	}
)

// ActiveOnly is the filter used by every listing.
func ActiveOnly() *bool {
	v := true
	return &v
}

// Ports for the entity store.
type (
	ProductRepository interface {
		InsertProduct(ctx context.Context, p core.Product) error
		// UpdateProduct overwrites the stored record; ErrNotFound when the id
		// does not exist for the owner.
		UpdateProduct(ctx context.Context, p core.Product) error
		GetProduct(ctx context.Context, ownerID, id string) (core.Product, error)
		QueryProducts(ctx context.Context, ownerID string, f ProductFilter) ([]core.Product, error)
	}

	CategoryRepository interface {
		InsertCategory(ctx context.Context, c core.Category) error
		UpdateCategory(ctx context.Context, c core.Category) error
		GetCategory(ctx context.Context, ownerID, id string) (core.Category, error)
		QueryCategories(ctx context.Context, ownerID string, f Filter) ([]core.Category, error)
	}

	StoreRepository interface {
		InsertStore(ctx context.Context, s core.Store) error
		UpdateStore(ctx context.Context, s core.Store) error
		GetStore(ctx context.Context, ownerID, id string) (core.Store, error)
		QueryStores(ctx context.Context, ownerID string, f Filter) ([]core.Store, error)
	}

	// PriceHistoryRepository is append-only: entries are never updated or removed.
	PriceHistoryRepository interface {
		AppendPriceEntry(ctx context.Context, e core.PriceHistoryEntry) error
		QueryPriceHistory(ctx context.Context, ownerID string, f HistoryFilter) ([]core.PriceHistoryEntry, error)
	}

	// PricedProductWriter writes a product together with the price entry
	// for its current price; either both are stored or neither is.
	PricedProductWriter interface {
		InsertProductWithPrice(ctx context.Context, p core.Product, e core.PriceHistoryEntry) error
		UpdateProductWithPrice(ctx context.Context, p core.Product, e core.PriceHistoryEntry) error
	}

	UserRepository interface {
		InsertUser(ctx context.Context, u UserRecord) error
		GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
		GetUser(ctx context.Context, id string) (UserRecord, error)
		RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error
		IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
	}

	// Repository bundles every port a backend provides.
	Repository interface {
		ProductRepository
		CategoryRepository
		StoreRepository
		PriceHistoryRepository
		PricedProductWriter
		UserRepository
		Ping(ctx context.Context) error
		Close() error
	}
)

// MatchActive reports whether a record with the given flag passes filter.
func MatchActive(filter *bool, isActive bool) bool {
	return filter == nil || *filter == isActive
}

package services

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhonier182/lista-mercado/internal/core"
	"github.com/jhonier182/lista-mercado/internal/entities"
)

// PriceHistoryRecorder maintains the append-only price log of each product.
type PriceHistoryRecorder struct {
	products  entities.ProductRepository
	history   entities.PriceHistoryRepository
	publisher PriceEventPublisher
	settings
}

// NewPriceHistoryRecorder builds a recorder. publisher may be nil.
func NewPriceHistoryRecorder(products entities.ProductRepository, history entities.PriceHistoryRepository, publisher PriceEventPublisher, opts ...Option) *PriceHistoryRecorder {
	return &PriceHistoryRecorder{
		products:  products,
		history:   history,
		publisher: publisher,
		settings:  newSettings(opts),
	}
}

// Record appends a price observation for an active product of the session
// owner. A zero date means now.
func (r *PriceHistoryRecorder) Record(ctx context.Context, sess *core.Session, productID string, price decimal.Decimal, storeLabel string, date time.Time) (core.PriceHistoryEntry, error) {
	owner, err := sess.OwnerID()
	if err != nil {
		return core.PriceHistoryEntry{}, err
	}
	if err := requireID(productID); err != nil {
		return core.PriceHistoryEntry{}, err
	}
	if err := core.ValidatePrice(price); err != nil {
		return core.PriceHistoryEntry{}, err
	}
	p, err := r.products.GetProduct(ctx, owner, productID)
	if err != nil {
		return core.PriceHistoryEntry{}, core.WrapBackend("get product", err)
	}
	if !p.IsActive {
		return core.PriceHistoryEntry{}, core.ErrNotFound
	}
	if date.IsZero() {
		date = r.clock()
	}
	return r.append(ctx, p, price, strings.TrimSpace(storeLabel), date)
}

// List returns the product's entries, newest first.
func (r *PriceHistoryRecorder) List(ctx context.Context, sess *core.Session, productID string) ([]core.PriceHistoryEntry, error) {
	owner, err := sess.OwnerID()
	if err != nil {
		return nil, err
	}
	if err := requireID(productID); err != nil {
		return nil, err
	}
	out, err := r.history.QueryPriceHistory(ctx, owner, entities.HistoryFilter{ProductID: productID})
	if err != nil {
		return nil, core.WrapBackend("list price history", err)
	}
	sortByDateDesc(out)
	return out, nil
}

// All returns every entry of the owner, newest first.
func (r *PriceHistoryRecorder) All(ctx context.Context, sess *core.Session) ([]core.PriceHistoryEntry, error) {
	owner, err := sess.OwnerID()
	if err != nil {
		return nil, err
	}
	out, err := r.history.QueryPriceHistory(ctx, owner, entities.HistoryFilter{})
	if err != nil {
		return nil, core.WrapBackend("list price history", err)
	}
	sortByDateDesc(out)
	return out, nil
}

func (r *PriceHistoryRecorder) append(ctx context.Context, p core.Product, price decimal.Decimal, store string, date time.Time) (core.PriceHistoryEntry, error) {
	e, err := r.newEntry(p, price, store, date)
	if err != nil {
		return core.PriceHistoryEntry{}, err
	}
	if err := r.history.AppendPriceEntry(ctx, e); err != nil {
		return core.PriceHistoryEntry{}, core.WrapBackend("append price entry", err)
	}
	r.publish(ctx, e, p.Name)
	return e, nil
}

func (r *PriceHistoryRecorder) newEntry(p core.Product, price decimal.Decimal, store string, date time.Time) (core.PriceHistoryEntry, error) {
	e := core.PriceHistoryEntry{
		ID:        r.ids(),
		ProductID: p.ID,
		OwnerID:   p.OwnerID,
		Price:     price,
		Store:     store,
		Date:      date,
	}
	if err := e.Validate(); err != nil {
		return core.PriceHistoryEntry{}, err
	}
	return e, nil
}

// publish announces a stored entry. Failures are logged only.
func (r *PriceHistoryRecorder) publish(ctx context.Context, e core.PriceHistoryEntry, productName string) {
	if r.publisher == nil {
		slog.DebugContext(ctx, "Price publisher not configured, skipping event", "entry_id", e.ID)
		return
	}
	if err := r.publisher.PublishPriceRecorded(ctx, e, productName); err != nil {
		// The entry is already stored; only the export misses it.
		slog.ErrorContext(ctx, "Failed to publish price event", "entry_id", e.ID, "product_id", e.ProductID, "error", err)
	}
}

func sortByDateDesc(entries []core.PriceHistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.After(entries[j].Date)
	})
}

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

// Sort fields accepted by ProductService.List.
const (
	SortByName      = "name"
	SortByBrand     = "brand"
	SortByPrice     = "price"
	SortByQuantity  = "quantity"
	SortByCreatedAt = "createdAt"
	SortByUpdatedAt = "updatedAt"

	SortAsc  = "asc"
	SortDesc = "desc"
)

// ProductInput is a new product. An empty Unit means core.UnitPiece and a
// nil Quantity means 1.
type ProductInput struct {
	Name       string
	Brand      string
	Price      decimal.Decimal
	Unit       core.Unit
	Quantity   *decimal.Decimal
	CategoryID string
	StoreID    string
	Notes      string
}

// ProductPatch carries the fields to change; nil fields are left untouched.
// A non-nil Price always appends a history entry.
type ProductPatch struct {
	Name       *string
	Brand      *string
	Price      *decimal.Decimal
	Unit       *core.Unit
	Quantity   *decimal.Decimal
	CategoryID *string
	StoreID    *string
	Notes      *string
}

// ProductQuery narrows and orders a product listing. Equality filters go to
// the store; search and sort run here.
type ProductQuery struct {
	CategoryID string
	StoreID    string
	Brand      string
	Search     string
	SortBy     string
	SortDir    string
}

// ProductService manages the owner's products and keeps their price history
// in step with every price write.
type ProductService struct {
	products   entities.ProductRepository
	categories entities.CategoryRepository
	stores     entities.StoreRepository
	history    *PriceHistoryRecorder
	settings
}

// NewProductService builds a product service. history records the price
// entries written alongside products.
func NewProductService(products entities.ProductRepository, categories entities.CategoryRepository, stores entities.StoreRepository, history *PriceHistoryRecorder, opts ...Option) *ProductService {
	return &ProductService{
		products:   products,
		categories: categories,
		stores:     stores,
		history:    history,
		settings:   newSettings(opts),
	}
}

// Add creates the product and records its initial price.
func (s *ProductService) Add(ctx context.Context, sess *core.Session, in ProductInput) (string, error) {
	owner, err := sess.OwnerID()
	if err != nil {
		return "", err
	}

	p := core.Product{
		ID:         s.ids(),
		OwnerID:    owner,
		Name:       strings.TrimSpace(in.Name),
		Brand:      strings.TrimSpace(in.Brand),
		Price:      in.Price,
		Unit:       in.Unit,
		Quantity:   decimal.NewFromInt(1),
		CategoryID: strings.TrimSpace(in.CategoryID),
		StoreID:    strings.TrimSpace(in.StoreID),
		Notes:      strings.TrimSpace(in.Notes),
		CreatedAt:  s.clock(),
		IsActive:   true,
	}
	if p.Unit == "" {
		p.Unit = core.UnitPiece
	}
	if in.Quantity != nil {
		p.Quantity = *in.Quantity
	}
	if err := p.Validate(); err != nil {
		return "", err
	}
	if err := s.resolveReferences(ctx, &p, true, true); err != nil {
		return "", err
	}

	if err := s.savePriced(ctx, p, nil, p.CreatedAt); err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Product created", "id", p.ID, "owner_id", owner, "price", p.Price.String())
	return p.ID, nil
}

// Get returns an active product of the session owner.
func (s *ProductService) Get(ctx context.Context, sess *core.Session, id string) (core.Product, error) {
	owner, err := sess.OwnerID()
	if err != nil {
		return core.Product{}, err
	}
	if err := requireID(id); err != nil {
		return core.Product{}, err
	}
	p, err := s.products.GetProduct(ctx, owner, id)
	if err != nil {
		return core.Product{}, core.WrapBackend("get product", err)
	}
	if !p.IsActive {
		return core.Product{}, core.ErrNotFound
	}
	return p, nil
}

// Update merges patch into the stored product and re-validates the result.
func (s *ProductService) Update(ctx context.Context, sess *core.Session, id string, patch ProductPatch) (core.Product, error) {
	p, err := s.Get(ctx, sess, id)
	if err != nil {
		return core.Product{}, err
	}
	prev := p

	applyPatch(&p, patch)
	if err := p.Validate(); err != nil {
		return core.Product{}, err
	}
	if err := s.resolveReferences(ctx, &p, patch.CategoryID != nil, patch.StoreID != nil); err != nil {
		return core.Product{}, err
	}

	now := s.clock()
	p.UpdatedAt = &now
	if patch.Price != nil {
		if err := s.savePriced(ctx, p, &prev, now); err != nil {
			return core.Product{}, err
		}
		return p, nil
	}
	if err := s.products.UpdateProduct(ctx, p); err != nil {
		return core.Product{}, core.WrapBackend("update product", err)
	}
	return p, nil
}

// savePriced writes p together with a history entry for p.Price. prev is the
// stored product for an update and nil for an insert. When the product and
// history stores differ, a failed append undoes the product write.
func (s *ProductService) savePriced(ctx context.Context, p core.Product, prev *core.Product, date time.Time) error {
	e, err := s.history.newEntry(p, p.Price, p.StoreName, date)
	if err != nil {
		return err
	}

	if w, ok := s.pricedWriter(); ok {
		if prev == nil {
			err = core.WrapBackend("insert product with price", w.InsertProductWithPrice(ctx, p, e))
		} else {
			err = core.WrapBackend("update product with price", w.UpdateProductWithPrice(ctx, p, e))
		}
		if err != nil {
			return err
		}
	} else {
		if err := s.writeProduct(ctx, p, prev == nil); err != nil {
			return err
		}
		if err := s.history.history.AppendPriceEntry(ctx, e); err != nil {
			s.undoWrite(ctx, p, prev)
			return core.WrapBackend("append price entry", err)
		}
	}

	s.history.publish(ctx, e, p.Name)
	return nil
}

// pricedWriter returns the single store holding both products and history,
// if it can write them together.
func (s *ProductService) pricedWriter() (entities.PricedProductWriter, bool) {
	w, ok := s.products.(entities.PricedProductWriter)
	if !ok {
		return nil, false
	}
	h, ok := s.history.history.(entities.PricedProductWriter)
	return w, ok && h == w
}

func (s *ProductService) writeProduct(ctx context.Context, p core.Product, insert bool) error {
	if insert {
		return core.WrapBackend("insert product", s.products.InsertProduct(ctx, p))
	}
	return core.WrapBackend("update product", s.products.UpdateProduct(ctx, p))
}

// undoWrite reverts a product write whose price entry could not be stored.
// A new product is soft-deleted; an updated one gets its previous state back.
func (s *ProductService) undoWrite(ctx context.Context, p core.Product, prev *core.Product) {
	restore := p
	if prev != nil {
		restore = *prev
	} else {
		restore.IsActive = false
	}
	if err := s.products.UpdateProduct(ctx, restore); err != nil {
		slog.ErrorContext(ctx, "Failed to undo product write", "id", p.ID, "error", err)
		return
	}
	slog.WarnContext(ctx, "Product write undone after price entry failure", "id", p.ID)
}

// Delete soft-deletes the product; its price history stays.
func (s *ProductService) Delete(ctx context.Context, sess *core.Session, id string) error {
	p, err := s.Get(ctx, sess, id)
	if err != nil {
		return err
	}
	now := s.clock()
	p.IsActive = false
	p.UpdatedAt = &now
	if err := s.products.UpdateProduct(ctx, p); err != nil {
		return core.WrapBackend("delete product", err)
	}
	slog.InfoContext(ctx, "Product deleted", "id", p.ID, "owner_id", p.OwnerID)
	return nil
}

// List returns the owner's active products matching q.
func (s *ProductService) List(ctx context.Context, sess *core.Session, q ProductQuery) ([]core.Product, error) {
	owner, err := sess.OwnerID()
	if err != nil {
		return nil, err
	}
	less, err := productOrder(q.SortBy, q.SortDir)
	if err != nil {
		return nil, err
	}

	all, err := s.products.QueryProducts(ctx, owner, entities.ProductFilter{
		Active:     entities.ActiveOnly(),
		CategoryID: q.CategoryID,
		StoreID:    q.StoreID,
		Brand:      q.Brand,
	})
	if err != nil {
		return nil, core.WrapBackend("list products", err)
	}

	out := all[:0]
	term := strings.ToLower(strings.TrimSpace(q.Search))
	for _, p := range all {
		if term == "" ||
			strings.Contains(strings.ToLower(p.Name), term) ||
			strings.Contains(strings.ToLower(p.Brand), term) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, nil
}

// History returns the price entries of an active product, newest first.
func (s *ProductService) History(ctx context.Context, sess *core.Session, id string) ([]core.PriceHistoryEntry, error) {
	if _, err := s.Get(ctx, sess, id); err != nil {
		return nil, err
	}
	return s.history.List(ctx, sess, id)
}

// resolveReferences checks that the category and store exist and are active
// for the owner, and copies their names onto the product.
func (s *ProductService) resolveReferences(ctx context.Context, p *core.Product, category, store bool) error {
	if category {
		c, err := s.categories.GetCategory(ctx, p.OwnerID, p.CategoryID)
		if err != nil && core.KindOf(err) != core.KindNotFound {
			return core.WrapBackend("get category", err)
		}
		if err != nil || !c.IsActive {
			return core.NewValidationError("categoryId", "does not reference an active category")
		}
		p.CategoryName = c.Name
	}
	if store {
		st, err := s.stores.GetStore(ctx, p.OwnerID, p.StoreID)
		if err != nil && core.KindOf(err) != core.KindNotFound {
			return core.WrapBackend("get store", err)
		}
		if err != nil || !st.IsActive {
			return core.NewValidationError("storeId", "does not reference an active store")
		}
		p.StoreName = st.Name
	}
	return nil
}

func applyPatch(p *core.Product, patch ProductPatch) {
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Brand != nil {
		p.Brand = strings.TrimSpace(*patch.Brand)
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Unit != nil {
		p.Unit = *patch.Unit
	}
	if patch.Quantity != nil {
		p.Quantity = *patch.Quantity
	}
	if patch.CategoryID != nil {
		p.CategoryID = strings.TrimSpace(*patch.CategoryID)
	}
	if patch.StoreID != nil {
		p.StoreID = strings.TrimSpace(*patch.StoreID)
	}
	if patch.Notes != nil {
		p.Notes = strings.TrimSpace(*patch.Notes)
	}
}

func productOrder(field, dir string) (func(a, b core.Product) bool, error) {
	if field == "" {
		field = SortByCreatedAt
	}
	if dir == "" {
		dir = SortDesc
		if field == SortByName || field == SortByBrand {
			dir = SortAsc
		}
	}
	if dir != SortAsc && dir != SortDesc {
		return nil, core.NewValidationError("sortDir", "must be %q or %q", SortAsc, SortDesc)
	}

	var asc func(a, b core.Product) bool
	switch field {
	case SortByName:
		asc = func(a, b core.Product) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case SortByBrand:
		asc = func(a, b core.Product) bool { return strings.ToLower(a.Brand) < strings.ToLower(b.Brand) }
	case SortByPrice:
		asc = func(a, b core.Product) bool { return a.Price.LessThan(b.Price) }
	case SortByQuantity:
		asc = func(a, b core.Product) bool { return a.Quantity.LessThan(b.Quantity) }
	case SortByCreatedAt:
		asc = func(a, b core.Product) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case SortByUpdatedAt:
		asc = func(a, b core.Product) bool { return a.LastWrite().Before(b.LastWrite()) }
	default:
		return nil, core.NewValidationError("sortBy", "unknown sort field %q", field)
	}
	if dir == SortAsc {
		return asc, nil
	}
	return func(a, b core.Product) bool { return asc(b, a) }, nil
}

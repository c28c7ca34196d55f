package services

import (
	"context"

	"github.com/jhonier182/lista-mercado/internal/analytics"
	"github.com/jhonier182/lista-mercado/internal/core"
	"github.com/jhonier182/lista-mercado/internal/entities"
)

// DefaultComparisonMonths is the window the API uses when none is requested.
const DefaultComparisonMonths = 3

// ComparisonService feeds stored products and history to analytics.ComparePrices.
type ComparisonService struct {
	products entities.ProductRepository
	history  entities.PriceHistoryRepository
	settings
}

// NewComparisonService builds a comparison service.
func NewComparisonService(products entities.ProductRepository, history entities.PriceHistoryRepository, opts ...Option) *ComparisonService {
	return &ComparisonService{products: products, history: history, settings: newSettings(opts)}
}

// Compare summarizes price movement of each (name, category) series over the
// trailing monthsBack months, largest relative change first.
func (s *ComparisonService) Compare(ctx context.Context, sess *core.Session, monthsBack int) ([]core.PriceSummary, error) {
	owner, err := sess.OwnerID()
	if err != nil {
		return nil, err
	}
	now := s.clock()
	if _, _, err := analytics.TrailingWindow(monthsBack, now); err != nil {
		return nil, err
	}

	products, err := s.products.QueryProducts(ctx, owner, entities.ProductFilter{Active: entities.ActiveOnly()})
	if err != nil {
		return nil, core.WrapBackend("list products", err)
	}
	history, err := s.history.QueryPriceHistory(ctx, owner, entities.HistoryFilter{})
	if err != nil {
		return nil, core.WrapBackend("list price history", err)
	}
	return analytics.ComparePrices(products, history, monthsBack, now)
}

package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jhonier182/lista-mercado/internal/core"
)

// RecentProductsLimit caps DashboardSummary.RecentProducts.
const RecentProductsLimit = 5

// DashboardService assembles the landing summary from the other services.
type DashboardService struct {
	products   *ProductService
	categories *CategoryService
	stores     *StoreService
	expenses   *ExpenseService
	settings
}

// NewDashboardService builds a dashboard over the record and expense services.
func NewDashboardService(products *ProductService, categories *CategoryService, stores *StoreService, expenses *ExpenseService, opts ...Option) *DashboardService {
	return &DashboardService{
		products:   products,
		categories: categories,
		stores:     stores,
		expenses:   expenses,
		settings:   newSettings(opts),
	}
}

// Summary loads counts and the spend of the month containing now
// concurrently. A zero now means the service clock. Any failing load fails
// the whole summary.
func (s *DashboardService) Summary(ctx context.Context, sess *core.Session, now time.Time) (core.DashboardSummary, error) {
	if _, err := sess.OwnerID(); err != nil {
		return core.DashboardSummary{}, err
	}
	if now.IsZero() {
		now = s.clock()
	} else {
		now = now.In(s.loc)
	}
	year, month := now.Year(), int(now.Month())

	var (
		products   []core.Product
		categories []core.Category
		stores     []core.Store
		monthly    core.MonthlyExpenses
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		products, err = s.products.List(gctx, sess, ProductQuery{})
		return err
	})
	g.Go(func() (err error) {
		categories, err = s.categories.List(gctx, sess)
		return err
	})
	g.Go(func() (err error) {
		stores, err = s.stores.List(gctx, sess)
		return err
	})
	g.Go(func() (err error) {
		monthly, err = s.expenses.Monthly(gctx, sess, year, month)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.DashboardSummary{}, err
	}

	recent := monthly.Expenses
	if len(recent) > RecentProductsLimit {
		recent = recent[:RecentProductsLimit]
	}
	return core.DashboardSummary{
		Year:              year,
		Month:             month,
		Products:          len(products),
		Categories:        len(categories),
		Stores:            len(stores),
		MonthlyTotal:      monthly.Total,
		CategoryBreakdown: monthly.CategoryBreakdown,
		RecentProducts:    recent,
	}, nil
}

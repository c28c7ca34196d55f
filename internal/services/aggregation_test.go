package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhonier182/lista-mercado/internal/core"
	"github.com/jhonier182/lista-mercado/internal/entities"
)

type reportSink struct {
	owner  string
	report core.MonthlyExpenses
	err    error
}

func (r *reportSink) WriteMonthlyReport(_ context.Context, ownerID string, report core.MonthlyExpenses) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.owner = ownerID
	r.report = report
	return "Report!A1", nil
}

func TestMonthlyExpenses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := session("alice")
	catID, storeID := f.seed(t, alice)

	f.addProduct(t, alice, "Milk", "1.20", catID, storeID)
	f.clock.Advance(time.Hour)
	f.addProduct(t, alice, "Butter", "3.30", catID, storeID)
	f.clock.Advance(30 * 24 * time.Hour)
	f.addProduct(t, alice, "Cream", "9.99", catID, storeID)

	m, err := f.expenses.Monthly(ctx, alice, 2025, 9)
	require.NoError(t, err)
	assert.True(t, m.Total.Equal(dec("4.50")))
	require.Len(t, m.Expenses, 2)
	assert.Equal(t, "Butter", m.Expenses[0].Name)
	require.Len(t, m.CategoryBreakdown, 1)
	assert.Equal(t, "Dairy", m.CategoryBreakdown[0].CategoryName)

	_, err = f.expenses.Monthly(ctx, alice, 2025, 13)
	assert.Equal(t, core.KindValidation, core.KindOf(err))

	empty, err := f.expenses.Monthly(ctx, alice, 2024, 1)
	require.NoError(t, err)
	assert.NotNil(t, empty.Expenses)
	assert.NotNil(t, empty.CategoryBreakdown)
	assert.True(t, empty.Total.IsZero())
}

func TestExportMonthly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := session("alice")
	catID, storeID := f.seed(t, alice)
	f.addProduct(t, alice, "Milk", "1.20", catID, storeID)

	_, err := f.expenses.ExportMonthly(ctx, alice, 2025, 9)
	assert.Equal(t, core.KindBackend, core.KindOf(err), "no writer configured")

	sink := &reportSink{}
	svc := NewExpenseService(f.store, sink, WithClock(f.clock.Now))
	ref, err := svc.ExportMonthly(ctx, alice, 2025, 9)
	require.NoError(t, err)
	assert.Equal(t, "Report!A1", ref)
	assert.Equal(t, "alice", sink.owner)
	assert.Len(t, sink.report.Expenses, 1)

	sink.err = errors.New("quota exceeded")
	_, err = svc.ExportMonthly(ctx, alice, 2025, 9)
	var be *core.BackendError
	assert.True(t, errors.As(err, &be))
}

func TestCompareUsesRecordedHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := session("alice")
	catID, storeID := f.seed(t, alice)

	f.clock.Advance(-60 * 24 * time.Hour)
	milk := f.addProduct(t, alice, "Milk", "2.00", catID, storeID)
	f.addProduct(t, alice, "Bread", "1.00", catID, storeID)
	f.clock.Advance(60 * 24 * time.Hour)

	price := dec("3.00")
	_, err := f.products.Update(ctx, alice, milk, ProductPatch{Price: &price})
	require.NoError(t, err)

	summaries, err := f.comparison.Compare(ctx, alice, 3)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "Milk", summaries[0].Name)
	assert.True(t, summaries[0].CurrentPrice.Equal(dec("3.00")))
	assert.True(t, summaries[0].PriceChange.Equal(dec("1.00")))
	assert.InDelta(t, 50.0, summaries[0].PercentageChange, 1e-9)
	assert.Len(t, summaries[0].PriceHistory, 2)

	assert.Equal(t, "Bread", summaries[1].Name)
	assert.Zero(t, summaries[1].PercentageChange)

	_, err = f.comparison.Compare(ctx, alice, 0)
	assert.Equal(t, core.KindValidation, core.KindOf(err))
}

func TestDashboardSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := session("alice")
	catID, storeID := f.seed(t, alice)

	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		f.addProduct(t, alice, name, "1.00", catID, storeID)
		f.clock.Advance(time.Minute)
	}

	s, err := f.dashboard.Summary(ctx, alice, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2025, s.Year)
	assert.Equal(t, 9, s.Month)
	assert.Equal(t, 6, s.Products)
	assert.Equal(t, 1, s.Categories)
	assert.Equal(t, 1, s.Stores)
	assert.True(t, s.MonthlyTotal.Equal(dec("6.00")))
	require.Len(t, s.RecentProducts, RecentProductsLimit)
	assert.Equal(t, "f", s.RecentProducts[0].Name)

	other, err := f.dashboard.Summary(ctx, alice, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, other.Month)
	assert.Empty(t, other.RecentProducts)
	assert.Equal(t, 6, other.Products)
}

type failingProducts struct {
	entities.ProductRepository
}

func (failingProducts) QueryProducts(context.Context, string, entities.ProductFilter) ([]core.Product, error) {
	return nil, errors.New("disk I/O error")
}

func TestDashboardFailsWhenAnyLoadFails(t *testing.T) {
	f := newFixture(t)
	alice := session("alice")
	f.seed(t, alice)

	f.dashboard.expenses = NewExpenseService(failingProducts{}, nil)
	_, err := f.dashboard.Summary(context.Background(), alice, time.Time{})
	var be *core.BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "list products", be.Op)
}

// Package analytics holds the pure aggregation functions behind the monthly
// expense and price comparison views. Nothing here performs I/O; callers
// fetch the owner's records and pass them in.
package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhonier182/lista-mercado/internal/core"
)

// MonthWindow returns the half-open interval [start, end) covering the given
// calendar month in loc.
func MonthWindow(year, month int, loc *time.Location) (time.Time, time.Time, error) {
	if month < 1 || month > 12 {
		return time.Time{}, time.Time{}, core.NewValidationError("month", "must be between 1 and 12, got %d", month)
	}
	if year < 1 {
		return time.Time{}, time.Time{}, core.NewValidationError("year", "must be positive, got %d", year)
	}
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0), nil
}

// MonthlyExpenses totals the active products created inside the month and
// groups them by category. The total is the plain sum of prices; quantity is
// not factored in.
func MonthlyExpenses(products []core.Product, year, month int, loc *time.Location) (core.MonthlyExpenses, error) {
	start, end, err := MonthWindow(year, month, loc)
	if err != nil {
		return core.MonthlyExpenses{}, err
	}

	expenses := make([]core.Product, 0)
	for _, p := range products {
		if !p.IsActive {
			continue
		}
		if p.CreatedAt.Before(start) || !p.CreatedAt.Before(end) {
			continue
		}
		expenses = append(expenses, p)
	}
	sort.SliceStable(expenses, func(i, j int) bool {
		return expenses[i].CreatedAt.After(expenses[j].CreatedAt)
	})

	total := decimal.Zero
	breakdown := make([]core.CategoryExpense, 0)
	index := make(map[string]int)
	for _, p := range expenses {
		total = total.Add(p.Price)

		id, name := p.CategoryID, p.CategoryName
		if id == "" {
			id, name = core.UncategorizedID, core.UncategorizedName
		} else if name == "" {
			name = core.UncategorizedName
		}
		i, ok := index[id]
		if !ok {
			i = len(breakdown)
			index[id] = i
			breakdown = append(breakdown, core.CategoryExpense{
				CategoryID:   id,
				CategoryName: name,
				Total:        decimal.Zero,
			})
		}
		breakdown[i].Total = breakdown[i].Total.Add(p.Price)
		breakdown[i].Items = append(breakdown[i].Items, p)
	}
	sort.SliceStable(breakdown, func(i, j int) bool {
		return breakdown[i].Total.GreaterThan(breakdown[j].Total)
	})

	return core.MonthlyExpenses{
		Year:              year,
		Month:             month,
		Expenses:          expenses,
		Total:             total,
		CategoryBreakdown: breakdown,
	}, nil
}

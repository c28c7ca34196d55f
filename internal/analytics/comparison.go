package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhonier182/lista-mercado/internal/core"
)

var hundred = decimal.NewFromInt(100)

// TrailingWindow returns the closed interval [now - monthsBack months, now].
func TrailingWindow(monthsBack int, now time.Time) (time.Time, time.Time, error) {
	if monthsBack < 1 {
		return time.Time{}, time.Time{}, core.NewValidationError("months", "must be at least 1, got %d", monthsBack)
	}
	return now.AddDate(0, -monthsBack, 0), now, nil
}

type seriesKey struct {
	name       string
	categoryID string
}

type series struct {
	key     seriesKey
	current core.Product
	points  []core.PriceHistoryEntry
}

// ComparePrices builds one trend summary per (name, categoryId) series of
// active products. Points are the history entries of the series' products
// dated inside the trailing window. Summaries come back ordered by the
// absolute percentage change, largest first.
//
// PercentageChange is 0 when fewer than two points exist or when the oldest
// point is 0.
func ComparePrices(products []core.Product, history []core.PriceHistoryEntry, monthsBack int, now time.Time) ([]core.PriceSummary, error) {
	start, end, err := TrailingWindow(monthsBack, now)
	if err != nil {
		return nil, err
	}

	groups := make(map[seriesKey]*series)
	byProduct := make(map[string]*series)
	for _, p := range products {
		if !p.IsActive {
			continue
		}
		k := seriesKey{name: p.Name, categoryID: p.CategoryID}
		s, ok := groups[k]
		if !ok {
			s = &series{key: k, current: p}
			groups[k] = s
		} else if p.LastWrite().After(s.current.LastWrite()) {
			s.current = p
		}
		byProduct[p.ID] = s
	}

	for _, e := range history {
		s, ok := byProduct[e.ProductID]
		if !ok {
			continue
		}
		if e.Date.Before(start) || e.Date.After(end) {
			continue
		}
		s.points = append(s.points, e)
	}

	ordered := make([]*series, 0, len(groups))
	for _, s := range groups {
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].key.name != ordered[j].key.name {
			return ordered[i].key.name < ordered[j].key.name
		}
		return ordered[i].key.categoryID < ordered[j].key.categoryID
	})

	out := make([]core.PriceSummary, 0, len(ordered))
	for _, s := range ordered {
		out = append(out, summarize(s))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return abs(out[i].PercentageChange) > abs(out[j].PercentageChange)
	})
	return out, nil
}

func summarize(s *series) core.PriceSummary {
	current := s.current.Price
	sum := core.PriceSummary{
		Name:         s.key.name,
		CategoryID:   s.key.categoryID,
		CategoryName: s.current.CategoryName,
		StoreName:    s.current.StoreName,
		CurrentPrice: current,
		LowestPrice:  current,
		HighestPrice: current,
		PriceChange:  decimal.Zero,
	}

	points := append([]core.PriceHistoryEntry(nil), s.points...)
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.After(points[j].Date)
	})
	sum.PriceHistory = points
	if len(points) == 0 {
		sum.PriceHistory = []core.PriceHistoryEntry{}
		return sum
	}

	sum.LowestPrice = points[0].Price
	sum.HighestPrice = points[0].Price
	for _, pt := range points[1:] {
		if pt.Price.LessThan(sum.LowestPrice) {
			sum.LowestPrice = pt.Price
		}
		if pt.Price.GreaterThan(sum.HighestPrice) {
			sum.HighestPrice = pt.Price
		}
	}

	if len(points) < 2 {
		return sum
	}
	oldest := points[len(points)-1].Price
	sum.PriceChange = current.Sub(oldest)
	if !oldest.IsZero() {
		sum.PercentageChange = sum.PriceChange.Div(oldest).Mul(hundred).InexactFloat64()
	}
	return sum
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

package core

import "github.com/shopspring/decimal"

// Bucket used for products that carry no category reference.
const (
	UncategorizedID   = "uncategorized"
	UncategorizedName = "no category"
)

// CategoryExpense is the spend of one category within a month.
type CategoryExpense struct {
	CategoryID   string          `json:"categoryId"`
	CategoryName string          `json:"categoryName"`
	Total        decimal.Decimal `json:"total"`
	Items        []Product       `json:"items"`
}

// MonthlyExpenses is the spend summary for a specific year+month.
type MonthlyExpenses struct {
	Year              int               `json:"year"`
	Month             int               `json:"month"` // 1-12
	Expenses          []Product         `json:"expenses"`
	Total             decimal.Decimal   `json:"total"`
	CategoryBreakdown []CategoryExpense `json:"categoryBreakdown"`
}

// PriceSummary is the trend of one (name, category) series over a window.
type PriceSummary struct {
	Name             string              `json:"name"`
	CategoryID       string              `json:"categoryId"`
	CategoryName     string              `json:"categoryName"`
	StoreName        string              `json:"storeName"`
	CurrentPrice     decimal.Decimal     `json:"currentPrice"`
	LowestPrice      decimal.Decimal     `json:"lowestPrice"`
	HighestPrice     decimal.Decimal     `json:"highestPrice"`
	PriceChange      decimal.Decimal     `json:"priceChange"`
	PercentageChange float64             `json:"percentageChange"`
	PriceHistory     []PriceHistoryEntry `json:"priceHistory"`
}

// DashboardSummary feeds the landing view.
type DashboardSummary struct {
	Year              int               `json:"year"`
	Month             int               `json:"month"`
	Products          int               `json:"products"`
	Categories        int               `json:"categories"`
	Stores            int               `json:"stores"`
	MonthlyTotal      decimal.Decimal   `json:"monthlyTotal"`
	CategoryBreakdown []CategoryExpense `json:"categoryBreakdown"`
	RecentProducts    []Product         `json:"recentProducts"`
}

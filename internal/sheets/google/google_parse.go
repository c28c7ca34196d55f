package google

import (
	"fmt"
	"strings"
	"time"

	"github.com/jhonier182/lista-mercado/internal/core"
	ports "github.com/jhonier182/lista-mercado/internal/sheets"
)

var priceHeader = []string{"Date", "Product", "Price", "Store", "Product ID", "Entry ID", "Owner ID"}

// Column of "Entry ID" when the sheet has no header row.
const defaultEntryColumn = 5

func observationRow(obs ports.PriceObservation) []any {
	return []any{obs.Date, obs.ProductName, obs.Price, obs.Store, obs.ProductID, obs.EntryID, obs.OwnerID}
}

// findEntry looks for entryID in the values of a prices sheet and returns the
// A1 reference of its row.
func findEntry(values [][]any, sheet, entryID string) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	col := indexOf(toStrings(values[0]), "Entry ID")
	if col == -1 {
		col = defaultEntryColumn
	}
	for i, row := range values {
		if safeGet(toStrings(row), col) == entryID {
			return fmt.Sprintf("%s!A%d:G%d", sheet, i+1, i+1), true
		}
	}
	return "", false
}

// reportRows lays out a monthly report: a title row, the category
// breakdown, the itemized expenses and a closing total.
func reportRows(ownerID string, r core.MonthlyExpenses, generated time.Time) [][]any {
	rows := [][]any{
		{fmt.Sprintf("Report %04d-%02d", r.Year, r.Month), ownerID, "generated", generated.Format(time.RFC3339)},
		{"Category", "Total", "Items"},
	}
	for _, c := range r.CategoryBreakdown {
		rows = append(rows, []any{c.CategoryName, core.FormatPrice(c.Total), len(c.Items)})
	}
	rows = append(rows, []any{}, []any{"Date", "Product", "Brand", "Category", "Store", "Price"})
	for _, p := range r.Expenses {
		rows = append(rows, []any{
			p.CreatedAt.Format(time.DateOnly),
			p.Name,
			p.Brand,
			p.CategoryName,
			p.StoreName,
			core.FormatPrice(p.Price),
		})
	}
	rows = append(rows, []any{"Total", "", "", "", "", core.FormatPrice(r.Total)})
	return rows
}

func toRow(cols []string) []any {
	out := make([]any, len(cols))
	for i, v := range cols {
		out[i] = v
	}
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

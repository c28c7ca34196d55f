package sheets

import (
	"context"

	"github.com/jhonier182/lista-mercado/internal/core"
)

// Ports for outbound spreadsheet adapters.
type (
	// PriceExporter appends one price observation row.
	PriceExporter interface {
		AppendPriceObservation(ctx context.Context, obs PriceObservation) (rowRef string, err error)
	}

	// ReportWriter writes a monthly expense report and returns a reference
	// to where it landed (sheet range or key).
	ReportWriter interface {
		WriteMonthlyReport(ctx context.Context, ownerID string, report core.MonthlyExpenses) (ref string, err error)
	}
)

// PriceObservation is the flattened row exported for each recorded price.
type PriceObservation struct {
	EntryID     string
	OwnerID     string
	ProductID   string
	ProductName string
	Price       string
	Store       string
	Date        string
}

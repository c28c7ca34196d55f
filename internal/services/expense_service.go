package services

import (
	"context"
	"log/slog"

	"github.com/jhonier182/lista-mercado/internal/analytics"
	"github.com/jhonier182/lista-mercado/internal/core"
	"github.com/jhonier182/lista-mercado/internal/entities"
	"github.com/jhonier182/lista-mercado/internal/sheets"
)

// ExpenseService computes monthly spend over the owner's products.
type ExpenseService struct {
	products entities.ProductRepository
	reports  sheets.ReportWriter
	settings
}

// NewExpenseService builds the service. reports may be nil; ExportMonthly
// then fails with a backend error.
func NewExpenseService(products entities.ProductRepository, reports sheets.ReportWriter, opts ...Option) *ExpenseService {
	return &ExpenseService{
		products: products,
		reports:  reports,
		settings: newSettings(opts),
	}
}

// Monthly returns the spend for year/month. Month is 1-12.
func (s *ExpenseService) Monthly(ctx context.Context, sess *core.Session, year, month int) (core.MonthlyExpenses, error) {
	owner, err := sess.OwnerID()
	if err != nil {
		return core.MonthlyExpenses{}, err
	}
	if _, _, err := analytics.MonthWindow(year, month, s.loc); err != nil {
		return core.MonthlyExpenses{}, err
	}

	products, err := s.products.QueryProducts(ctx, owner, entities.ProductFilter{Active: entities.ActiveOnly()})
	if err != nil {
		return core.MonthlyExpenses{}, core.WrapBackend("list products", err)
	}
	return analytics.MonthlyExpenses(products, year, month, s.loc)
}

// Current returns the spend of the calendar month containing now.
func (s *ExpenseService) Current(ctx context.Context, sess *core.Session) (core.MonthlyExpenses, error) {
	now := s.clock()
	return s.Monthly(ctx, sess, now.Year(), int(now.Month()))
}

// ExportMonthly computes the month and hands it to the report writer.
func (s *ExpenseService) ExportMonthly(ctx context.Context, sess *core.Session, year, month int) (string, error) {
	report, err := s.Monthly(ctx, sess, year, month)
	if err != nil {
		return "", err
	}
	if s.reports == nil {
		return "", core.WrapBackend("export monthly report", errReportsDisabled)
	}

	ref, err := s.reports.WriteMonthlyReport(ctx, sess.User.ID, report)
	if err != nil {
		return "", core.WrapBackend("export monthly report", err)
	}
	slog.InfoContext(ctx, "Monthly report exported",
		"owner_id", sess.User.ID,
		"year", year,
		"month", month,
		"items", len(report.Expenses),
		"ref", ref)
	return ref, nil
}

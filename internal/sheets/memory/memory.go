package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jhonier182/lista-mercado/internal/core"
	ports "github.com/jhonier182/lista-mercado/internal/sheets"
)

// Store keeps exported rows in memory. It backs local runs without Google
// credentials and the worker tests.
type Store struct {
	mu      sync.Mutex
	rows    []ports.PriceObservation
	byEntry map[string]int
	reports map[string][]core.MonthlyExpenses
}

var (
	_ ports.PriceExporter = (*Store)(nil)
	_ ports.ReportWriter  = (*Store)(nil)
)

// New returns an empty report store.
func New() *Store {
	return &Store{
		byEntry: make(map[string]int),
		reports: make(map[string][]core.MonthlyExpenses),
	}
}

// AppendPriceObservation stores the observation once per entry id and
// returns a synthetic row reference.
func (s *Store) AppendPriceObservation(_ context.Context, obs ports.PriceObservation) (string, error) {
	if obs.EntryID == "" {
		return "", fmt.Errorf("observation has no entry id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.byEntry[obs.EntryID]; ok {
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	s.rows = append(s.rows, obs)
	s.byEntry[obs.EntryID] = len(s.rows) - 1
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Store) WriteMonthlyReport(_ context.Context, ownerID string, report core.MonthlyExpenses) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[ownerID] = append(s.reports[ownerID], report)
	return fmt.Sprintf("mem:report:%s:%04d-%02d", ownerID, report.Year, report.Month), nil
}

// Observations returns a copy of the exported rows in append order.
func (s *Store) Observations() []ports.PriceObservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.PriceObservation(nil), s.rows...)
}

// Reports returns the reports written for ownerID.
func (s *Store) Reports(ownerID string) []core.MonthlyExpenses {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.MonthlyExpenses(nil), s.reports[ownerID]...)
}

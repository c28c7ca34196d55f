package memory

import (
	"context"
	"testing"

	"github.com/jhonier182/lista-mercado/internal/core"
	ports "github.com/jhonier182/lista-mercado/internal/sheets"
)

func TestAppendPriceObservationIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	obs := ports.PriceObservation{EntryID: "e-1", ProductName: "Milk", Price: "1.20"}

	ref1, err := s.AppendPriceObservation(ctx, obs)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	ref2, err := s.AppendPriceObservation(ctx, obs)
	if err != nil {
		t.Fatalf("append again: %v", err)
	}
	if ref1 != ref2 {
		t.Errorf("refs differ: %q vs %q", ref1, ref2)
	}
	if got := len(s.Observations()); got != 1 {
		t.Errorf("stored %d rows, want 1", got)
	}

	if _, err := s.AppendPriceObservation(ctx, ports.PriceObservation{}); err == nil {
		t.Error("expected error for missing entry id")
	}
}

func TestWriteMonthlyReport(t *testing.T) {
	s := New()
	ref, err := s.WriteMonthlyReport(context.Background(), "alice", core.MonthlyExpenses{Year: 2025, Month: 3})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if ref != "mem:report:alice:2025-03" {
		t.Errorf("ref = %q", ref)
	}
	if len(s.Reports("alice")) != 1 || len(s.Reports("bob")) != 0 {
		t.Error("reports not scoped by owner")
	}
}

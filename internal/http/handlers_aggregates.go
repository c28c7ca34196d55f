package http

import (
	"fmt"
	"net/http"

	"github.com/jhonier182/lista-mercado/internal/core"
	"github.com/jhonier182/lista-mercado/internal/log"
	"github.com/jhonier182/lista-mercado/internal/services"
)

// Cache keys start with the owner id and a colon so one DeletePrefix drops
// everything an owner has cached.
func ownerPrefix(owner string) string { return owner + ":" }

func monthlyKey(owner string, year, month int) string {
	return fmt.Sprintf("%smonthly:%04d-%02d", ownerPrefix(owner), year, month)
}

func comparisonKey(owner string, months int) string {
	return fmt.Sprintf("%scomparison:%d", ownerPrefix(owner), months)
}

func dashboardKey(owner string, year, month int) string {
	return fmt.Sprintf("%sdashboard:%04d-%02d", ownerPrefix(owner), year, month)
}

func (s *Server) invalidateOwner(owner string) {
	prefix := ownerPrefix(owner)
	n := s.monthlyCache.DeletePrefix(prefix) +
		s.comparisonCache.DeletePrefix(prefix) +
		s.dashboardCache.DeletePrefix(prefix)
	if n > 0 {
		s.opts.Logger.WithComponent(log.ComponentCache).Debug("Owner cache invalidated",
			log.FieldOwnerID, owner, "entries", n)
	}
}

// invalidateOnWrite drops the owner's cached aggregates once a write
// request has been handled.
func (s *Server) invalidateOnWrite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			return
		}
		if sess := sessionFrom(r); sess != nil {
			s.invalidateOwner(sess.User.ID)
		}
	})
}

func (s *Server) handleMonthlyExpenses(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	owner, err := sess.OwnerID()
	if err != nil {
		writeError(w, r, err)
		return
	}
	year, month, err := s.monthParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := monthlyKey(owner, year, month)
	if cached, ok := s.monthlyCache.Get(key); ok {
		s.countCache(true)
		writeData(w, r, http.StatusOK, cached)
		return
	}
	s.countCache(false)

	out, err := s.svc.Expenses.Monthly(r.Context(), sess, year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.monthlyCache.Set(key, out)
	writeData(w, r, http.StatusOK, out)
}

func (s *Server) handleExportMonthly(w http.ResponseWriter, r *http.Request) {
	year, month, err := s.monthParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ref, err := s.svc.Expenses.ExportMonthly(r.Context(), sessionFrom(r), year, month)
	respond(w, r, http.StatusOK, map[string]any{"year": year, "month": month, "ref": ref}, err)
}

func (s *Server) handlePriceComparison(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	owner, err := sess.OwnerID()
	if err != nil {
		writeError(w, r, err)
		return
	}
	months, err := intParam(r, "months", services.DefaultComparisonMonths)
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := comparisonKey(owner, months)
	if cached, ok := s.comparisonCache.Get(key); ok {
		s.countCache(true)
		writeData(w, r, http.StatusOK, cached)
		return
	}
	s.countCache(false)

	out, err := s.svc.Comparison.Compare(r.Context(), sess, months)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out == nil {
		out = []core.PriceSummary{}
	}
	s.comparisonCache.Set(key, out)
	writeData(w, r, http.StatusOK, out)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	owner, err := sess.OwnerID()
	if err != nil {
		writeError(w, r, err)
		return
	}
	now := s.now()

	key := dashboardKey(owner, now.Year(), int(now.Month()))
	if cached, ok := s.dashboardCache.Get(key); ok {
		s.countCache(true)
		writeData(w, r, http.StatusOK, cached)
		return
	}
	s.countCache(false)

	out, err := s.svc.Dashboard.Summary(r.Context(), sess, now)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.dashboardCache.Set(key, out)
	writeData(w, r, http.StatusOK, out)
}

package http

import (
	"fmt"
	"net/http"
	"strconv"

	"moneybook/internal/core"
)

func reportKey(userID string, year, month int, typ core.TransactionType) string {
	return fmt.Sprintf("%s/%04d-%02d/%s", userID, year, month, typ)
}

// invalidateReports drops every cached report of userID and starts a new
// generation so that reports still being computed are not cached.
func (s *Server) invalidateReports(userID string) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.reportGens[userID]++
	s.reports.DeletePrefix(userID + "/")
}

func (s *Server) reportGeneration(userID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.reportGens[userID]
}

// cacheReport stores report unless userID wrote since gen was read.
func (s *Server) cacheReport(userID, key string, gen uint64, report core.MonthReport) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.reportGens[userID] != gen {
		return
	}
	s.reports.Set(key, report)
}

// handleMonthReport serves GET /api/reports/{year}/{month}?type=expense|income.
// Reports are cached per user until that user writes again; concurrent
// misses for the same key and generation share one computation.
func (s *Server) handleMonthReport(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	month, err := strconv.Atoi(r.PathValue("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month")
		return
	}
	typ := core.TransactionType(r.URL.Query().Get("type"))
	if typ == "" {
		typ = core.Expense
	}

	uid := userID(r)
	key := reportKey(uid, year, month, typ)
	if report, ok := s.reports.Get(key); ok {
		w.Header().Set("X-Cache", "HIT")
		writeJSON(w, http.StatusOK, report)
		return
	}

	gen := s.reportGeneration(uid)
	v, err, _ := s.reportsSF.Do(fmt.Sprintf("%s#%d", key, gen), func() (any, error) {
		report, err := s.svc.MonthReport(r.Context(), uid, year, month, typ)
		if err != nil {
			return nil, err
		}
		s.cacheReport(uid, key, gen, report)
		return report, nil
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	w.Header().Set("X-Cache", "MISS")
	writeJSON(w, http.StatusOK, v.(core.MonthReport))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r, s.svc.Location())
	if err != nil {
		fail(w, r, err)
		return
	}
	summary, err := s.svc.Summary(r.Context(), userID(r), year, month)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

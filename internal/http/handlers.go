package http

import (
	"net/http"

	"moneybook/internal/core"
)

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := s.svc.Wallets(r.Context(), userID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallets)
}

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	var in core.WalletInput
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, r, err)
		return
	}
	id, err := s.svc.CreateWallet(r.Context(), userID(r), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

func (s *Server) handleUpdateWallet(w http.ResponseWriter, r *http.Request) {
	var patch core.WalletPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		fail(w, r, err)
		return
	}
	if err := s.svc.UpdateWallet(r.Context(), userID(r), r.PathValue("id"), patch); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteWallet leaves the wallet's transactions in place; they show
// the fallback wallet label afterwards.
func (s *Server) handleDeleteWallet(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteWallet(r.Context(), userID(r), r.PathValue("id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.Categories(r.Context(), userID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in core.CategoryInput
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, r, err)
		return
	}
	id, err := s.svc.CreateCategory(r.Context(), userID(r), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

// Category changes alter report labels, so cached reports are dropped.
func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var patch core.CategoryPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		fail(w, r, err)
		return
	}
	uid := userID(r)
	if err := s.svc.UpdateCategory(r.Context(), uid, r.PathValue("id"), patch); err != nil {
		fail(w, r, err)
		return
	}
	s.invalidateReports(uid)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if err := s.svc.DeleteCategory(r.Context(), uid, r.PathValue("id")); err != nil {
		fail(w, r, err)
		return
	}
	s.invalidateReports(uid)
	w.WriteHeader(http.StatusNoContent)
}

// handleListTransactions returns every transaction newest first, or one
// month of them when year or month is given.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("year") && !q.Has("month") {
		txs, err := s.svc.Transactions(r.Context(), userID(r))
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, txs)
		return
	}

	year, month, err := yearMonth(r, s.svc.Location())
	if err != nil {
		fail(w, r, err)
		return
	}
	txs, err := s.svc.MonthTransactions(r.Context(), userID(r), year, month)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.svc.Transaction(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in core.TransactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, r, err)
		return
	}
	uid := userID(r)
	id, err := s.svc.CreateTransaction(r.Context(), uid, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	s.invalidateReports(uid)
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var patch core.TransactionPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		fail(w, r, err)
		return
	}
	uid := userID(r)
	if err := s.svc.UpdateTransaction(r.Context(), uid, r.PathValue("id"), patch); err != nil {
		fail(w, r, err)
		return
	}
	s.invalidateReports(uid)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if err := s.svc.DeleteTransaction(r.Context(), uid, r.PathValue("id")); err != nil {
		fail(w, r, err)
		return
	}
	s.invalidateReports(uid)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	drifts, err := s.svc.Audit(r.Context(), userID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, drifts)
}

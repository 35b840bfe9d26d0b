package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/course-coupons/internal/domain/receipt"
)

// Receipt returns the receipt page context of the order named in the query.
func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	src, err := receipt.ResolveSource(q)
	if err != nil {
		fail(w, r, "receipt", err)
		return
	}
	verified, _ := strconv.ParseBool(q.Get("verified"))

	page, err := h.receipts.Page(r.Context(), src, receipt.PageContext{
		PlatformName: h.cfg.PlatformName,
		LMSURL:       h.cfg.LMSURL,
		Verified:     verified,
		Username:     q.Get("username"),
	})
	if err != nil {
		fail(w, r, "receipt", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// CreditRequest asks a credit provider for the purchase form and returns it
// for the browser to submit.
func (h *Handler) CreditRequest(w http.ResponseWriter, r *http.Request) {
	var req receipt.CreditRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed credit request")
		return
	}
	req.ProviderID = chi.URLParam(r, "provider")
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.credits.CreateCreditRequest(r.Context(), req)
	if err != nil {
		fail(w, r, "credit request", err)
		return
	}
	writeJSON(w, http.StatusOK, receipt.NewForm(resp))
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/xenking/course-coupons/internal/domain/offer"
)

// ListOffers renders one page of the offers a voucher code applies to.
func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	page := 1
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		page = n
	}

	offers, err := h.offers.ListOffers(r.Context(), code)
	if err != nil {
		fail(w, r, "list offers", err)
		return
	}
	l := offer.NewListing(offers, h.cfg.PageSize, code)
	l.GoToPage(page)
	writeJSON(w, http.StatusOK, l.Render())
}

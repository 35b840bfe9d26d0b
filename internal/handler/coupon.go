package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/course-coupons/internal/domain/coupon"
	"github.com/xenking/course-coupons/internal/validation"
)

type checkResponse struct {
	Valid  bool              `json:"valid"`
	Coupon coupon.Coupon     `json:"coupon"`
	Errors validation.Errors `json:"errors"`
}

// readCoupon decodes a submitted coupon over the form defaults, then derives
// and validates it.
func (h *Handler) readCoupon(w http.ResponseWriter, r *http.Request) (coupon.Coupon, validation.Errors, bool) {
	c := coupon.New()
	if err := decode(w, r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "malformed coupon")
		return coupon.Coupon{}, nil, false
	}
	derived, errs, err := h.validator.Check(c, coupon.Submitted(c))
	if err != nil {
		fail(w, r, "check coupon", err)
		return coupon.Coupon{}, nil, false
	}
	return derived, errs, true
}

// ValidateCoupon derives the dependent fields of a submitted coupon and
// reports the per-field errors without saving.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	c, errs, ok := h.readCoupon(w, r)
	if !ok {
		return
	}
	if errs == nil {
		errs = validation.Errors{}
	}
	writeJSON(w, http.StatusOK, checkResponse{Valid: errs.Valid(), Coupon: c, Errors: errs})
}

// CreateCoupon validates a submitted coupon and creates it upstream.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	c, errs, ok := h.readCoupon(w, r)
	if !ok {
		return
	}
	if !errs.Valid() {
		writeInvalid(w, errs)
		return
	}

	p, err := coupon.NewCreatePayload(c)
	if err != nil {
		fail(w, r, "create coupon", err)
		return
	}
	created, err := h.coupons.CreateCoupon(r.Context(), p)
	if err != nil {
		fail(w, r, "create coupon", err)
		return
	}
	zctx.From(r.Context()).Info("Coupon created",
		zap.Int("coupon_id", created.ID),
		zap.String("title", created.Title),
	)
	writeJSON(w, http.StatusCreated, created)
}

// PatchCoupon validates the edited fields against the stored coupon and
// sends them upstream.
func (h *Handler) PatchCoupon(w http.ResponseWriter, r *http.Request) {
	id, ok := couponID(w, r)
	if !ok {
		return
	}
	var patch coupon.Patch
	if err := decode(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "malformed coupon")
		return
	}
	p, err := coupon.NewPatchPayload(patch)
	if err != nil {
		fail(w, r, "patch coupon", err)
		return
	}
	if p.Empty() {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	ctx := r.Context()

	current, err := h.coupons.GetCoupon(ctx, id)
	if err != nil {
		fail(w, r, "patch coupon", err)
		return
	}
	derived, err := deriveFetched(current)
	if err != nil {
		fail(w, r, "patch coupon", err)
		return
	}
	if errs := h.validator.CheckPatch(derived, patch); !errs.Valid() {
		writeInvalid(w, errs)
		return
	}

	updated, err := h.coupons.PatchCoupon(ctx, id, p)
	if err != nil {
		fail(w, r, "patch coupon", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// GetCoupon returns the detail view of a coupon.
func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	id, ok := couponID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	c, err := h.coupons.GetCoupon(ctx, id)
	if err != nil {
		fail(w, r, "get coupon", err)
		return
	}
	derived, err := deriveFetched(c)
	if err != nil {
		fail(w, r, "get coupon", err)
		return
	}

	var partner string
	if h.cfg.PartnerID > 0 && h.partners != nil {
		p, err := h.partners.GetPartner(ctx, h.cfg.PartnerID)
		if err != nil {
			zctx.From(ctx).Warn("Partner unavailable",
				zap.Int("partner_id", h.cfg.PartnerID),
				zap.Error(err),
			)
		} else {
			partner = p.Name
		}
	}
	writeJSON(w, http.StatusOK, coupon.NewDetail(derived, partner, h.cfg.Now()))
}

// CouponReport streams the coupon CSV report as a download.
func (h *Handler) CouponReport(w http.ResponseWriter, r *http.Request) {
	id, ok := couponID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	c, err := h.coupons.GetCoupon(ctx, id)
	if err != nil {
		fail(w, r, "coupon report", err)
		return
	}
	body, err := h.coupons.CouponReport(ctx, id)
	if err != nil {
		fail(w, r, "coupon report", err)
		return
	}
	defer func() { _ = body.Close() }()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+coupon.ReportFilename(c.Title)+`"`)
	if _, err := io.Copy(w, body); err != nil {
		zctx.From(ctx).Warn("Report copy interrupted", zap.Int("coupon_id", id), zap.Error(err))
	}
}

// deriveFetched derives a coupon read from upstream. A record that cannot be
// derived is an upstream fault, not a bad request.
func deriveFetched(c coupon.Coupon) (coupon.Coupon, error) {
	derived, err := coupon.Derive(c, coupon.Fetched(c))
	if err != nil {
		return coupon.Coupon{}, errors.Join(errMalformedRecord, err)
	}
	return derived, nil
}

func couponID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid coupon id")
		return 0, false
	}
	return id, true
}

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/course-coupons/internal/domain/coupon"
	"github.com/xenking/course-coupons/internal/domain/receipt"
	"github.com/xenking/course-coupons/internal/ecommerce"
	"github.com/xenking/course-coupons/internal/validation"
)

// msgUpstream is the single message shown in the page error region for any
// upstream failure.
const msgUpstream = "An error occurred while processing your request. Please try again."

// errMalformedRecord marks upstream records that cannot be derived.
var errMalformedRecord = errors.New("malformed upstream record")

// maxBody limits request bodies.
const maxBody = 1 << 20

type errorResponse struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Errors  validation.Errors `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Code: status, Message: msg})
}

func writeInvalid(w http.ResponseWriter, errs validation.Errors) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Code:    http.StatusBadRequest,
		Message: "validation failed",
		Errors:  errs,
	})
}

// decode reads a JSON request body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	d := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := d.Decode(v); err != nil {
		return errors.Wrap(err, "decode body")
	}
	return nil
}

// fail maps an operation error to a response. Input errors are reported as
// 400, missing upstream records as 404 and everything else as 502 with the
// generic message.
func fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	var (
		dateErr   *coupon.DateError
		statusErr *ecommerce.StatusError
	)
	switch {
	case errors.Is(err, errMalformedRecord):
		// Reported as an upstream failure below.
	case errors.Is(err, receipt.ErrNoOrderID):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.As(err, &dateErr):
		writeInvalid(w, validation.Errors{dateErr.Field: validation.MsgDate})
		return
	case errors.Is(err, coupon.ErrNoVouchers),
		errors.Is(err, coupon.ErrMissingBenefit),
		errors.Is(err, coupon.ErrMissingInvoice):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ecommerce.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	lg := zctx.From(r.Context())
	if errors.As(err, &statusErr) {
		lg.Warn("Upstream request failed",
			zap.String("op", op),
			zap.Int("upstream_status", statusErr.Code),
			zap.Error(err),
		)
	} else {
		lg.Error("Operation failed", zap.String("op", op), zap.Error(err))
	}
	writeError(w, http.StatusBadGateway, msgUpstream)
}

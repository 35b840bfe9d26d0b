// Package handler exposes the coupon, offer and receipt operations over HTTP.
package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/course-coupons/internal/domain/coupon"
	"github.com/xenking/course-coupons/internal/domain/offer"
	"github.com/xenking/course-coupons/internal/domain/receipt"
	"github.com/xenking/course-coupons/internal/ecommerce"
)

// Coupons is the upstream coupon API.
type Coupons interface {
	CreateCoupon(ctx context.Context, p coupon.CreatePayload) (coupon.Coupon, error)
	PatchCoupon(ctx context.Context, id int, p coupon.PatchPayload) (coupon.Coupon, error)
	GetCoupon(ctx context.Context, id int) (coupon.Coupon, error)
	CouponReport(ctx context.Context, id int) (io.ReadCloser, error)
}

// Partners resolves the site partner shown on coupon details.
type Partners interface {
	GetPartner(ctx context.Context, id int) (ecommerce.Partner, error)
}

// Offers lists the course offers of a voucher code.
type Offers interface {
	ListOffers(ctx context.Context, code string) ([]offer.Offer, error)
}

// Credits submits credit requests to a provider.
type Credits interface {
	CreateCreditRequest(ctx context.Context, req receipt.CreditRequest) (receipt.CreditResponse, error)
}

// Receipts builds receipt pages.
type Receipts interface {
	Page(ctx context.Context, src receipt.Source, pc receipt.PageContext) (*receipt.Page, error)
}

// Config holds non-dependency settings of the Handler.
type Config struct {
	PlatformName string
	LMSURL       string
	// PartnerID selects the partner named on coupon details; 0 skips it.
	PartnerID int
	// PageSize is the number of offers per listing page.
	PageSize int
	// CSRFCookie names the cookie holding the e-commerce CSRF token.
	CSRFCookie string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Deps are the collaborators of the Handler.
type Deps struct {
	Coupons   Coupons
	Partners  Partners
	Offers    Offers
	Credits   Credits
	Receipts  Receipts
	Validator *coupon.Validator
}

// Handler serves the JSON API consumed by the browser pages.
type Handler struct {
	cfg       Config
	coupons   Coupons
	partners  Partners
	offers    Offers
	credits   Credits
	receipts  Receipts
	validator *coupon.Validator
}

// New creates a Handler.
func New(cfg Config, deps Deps) *Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = offer.DefaultPageSize
	}
	if deps.Validator == nil {
		deps.Validator = coupon.NewValidator(nil)
	}
	return &Handler{
		cfg:       cfg,
		coupons:   deps.Coupons,
		partners:  deps.Partners,
		offers:    deps.Offers,
		credits:   deps.Credits,
		receipts:  deps.Receipts,
		validator: deps.Validator,
	}
}

// Routes returns the API router. Paths are relative to the /api prefix.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.session)

	r.Route("/coupons", func(r chi.Router) {
		r.Post("/", h.CreateCoupon)
		r.Post("/validate", h.ValidateCoupon)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetCoupon)
			r.Patch("/", h.PatchCoupon)
			r.Get("/report", h.CouponReport)
		})
	})
	r.Get("/offers", h.ListOffers)
	r.Get("/receipt", h.Receipt)
	r.Post("/credit/{provider}/request", h.CreditRequest)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// session forwards the browser credentials to upstream calls.
func (h *Handler) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := ecommerce.SessionFromRequest(r, h.cfg.CSRFCookie)
		if tok := r.Header.Get("X-CSRFToken"); tok != "" && s.CSRFToken == "" {
			s.CSRFToken = tok
		}
		next.ServeHTTP(w, r.WithContext(ecommerce.WithSession(r.Context(), s)))
	})
}

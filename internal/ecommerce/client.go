// Package ecommerce is a client for the e-commerce REST API and the LMS
// credit API.
package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/course-coupons/internal/domain/coupon"
	"github.com/xenking/course-coupons/internal/domain/offer"
	"github.com/xenking/course-coupons/internal/domain/receipt"
)

// maxOfferPages bounds how many result pages ListOffers follows.
const maxOfferPages = 100

// RetryPolicy retries idempotent GET requests answered with 404.
type RetryPolicy struct {
	// Times is the number of retries after the first attempt.
	Times int
	// Delay is the fixed pause between attempts.
	Delay time.Duration
}

// Config configures a Client.
type Config struct {
	BaseURL string
	LMSURL  string
	Timeout time.Duration
	Retry   RetryPolicy
}

type options struct {
	httpClient     *http.Client
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient replaces the HTTP client. Its transport is not instrumented.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithMeterProvider sets the meter provider for client metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithTracerProvider sets the tracer provider for outgoing requests.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// Client talks to the e-commerce API and the LMS.
type Client struct {
	http    *http.Client
	base    *url.URL
	lms     *url.URL
	retry   RetryPolicy
	retries metric.Int64Counter
}

// Partner is a site partner.
type Partner struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ShortCode string `json:"short_code"`
}

// New creates a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	o := options{meterProvider: noop.NewMeterProvider()}
	for _, opt := range opts {
		opt(&o)
	}

	base, err := parseBase(cfg.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "base url")
	}
	var lms *url.URL
	if cfg.LMSURL != "" {
		if lms, err = parseBase(cfg.LMSURL); err != nil {
			return nil, errors.Wrap(err, "lms url")
		}
	}

	hc := o.httpClient
	if hc == nil {
		var transportOpts []otelhttp.Option
		if o.tracerProvider != nil {
			transportOpts = append(transportOpts, otelhttp.WithTracerProvider(o.tracerProvider))
		}
		transportOpts = append(transportOpts, otelhttp.WithMeterProvider(o.meterProvider))
		hc = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, transportOpts...),
		}
	}

	retries, err := o.meterProvider.Meter("ecommerce").Int64Counter("ecommerce.client.retries",
		metric.WithDescription("GET requests retried after a 404 response"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "retries counter")
	}

	return &Client{
		http:    hc,
		base:    base,
		lms:     lms,
		retry:   cfg.Retry,
		retries: retries,
	}, nil
}

func parseBase(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("%q is not an absolute url", raw)
	}
	return u, nil
}

// CreateCoupon creates a coupon from the full record.
func (c *Client) CreateCoupon(ctx context.Context, p coupon.CreatePayload) (coupon.Coupon, error) {
	var out coupon.Coupon
	if err := c.send(ctx, http.MethodPost, c.endpoint("/api/v2/coupons/"), p.Encode, false, &out); err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "create coupon")
	}
	return out, nil
}

// PatchCoupon updates a subset of coupon fields.
func (c *Client) PatchCoupon(ctx context.Context, id int, p coupon.PatchPayload) (coupon.Coupon, error) {
	var out coupon.Coupon
	u := c.endpoint("/api/v2/coupons/" + strconv.Itoa(id) + "/")
	if err := c.send(ctx, http.MethodPatch, u, p.Encode, false, &out); err != nil {
		return coupon.Coupon{}, errors.Wrapf(err, "patch coupon %d", id)
	}
	return out, nil
}

// GetCoupon reads a coupon.
func (c *Client) GetCoupon(ctx context.Context, id int) (coupon.Coupon, error) {
	var out coupon.Coupon
	if err := c.get(ctx, c.endpoint("/api/v2/coupons/"+strconv.Itoa(id)+"/"), false, &out); err != nil {
		return coupon.Coupon{}, errors.Wrapf(err, "get coupon %d", id)
	}
	return out, nil
}

// CouponReport streams the CSV report of a coupon. The caller closes the
// returned body.
func (c *Client) CouponReport(ctx context.Context, id int) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodGet, c.endpoint(coupon.ReportURL(id)), nil, false)
	if err != nil {
		return nil, errors.Wrapf(err, "coupon report %d", id)
	}
	return resp.Body, nil
}

// GetOrder reads an order in the shape selected by src. Orders that are not
// yet visible are retried.
func (c *Client) GetOrder(ctx context.Context, src receipt.Source) (receipt.Order, error) {
	u := c.endpoint(src.Path())
	switch src.Shape {
	case receipt.ShapeModern:
		var o receipt.ModernOrder
		if err := c.getRetry(ctx, u, false, &o); err != nil {
			return receipt.Order{}, errors.Wrapf(err, "get order %s", src.ID())
		}
		return receipt.NewModern(o), nil
	case receipt.ShapeLegacy:
		var o receipt.LegacyOrder
		if err := c.getRetry(ctx, u, false, &o); err != nil {
			return receipt.Order{}, errors.Wrapf(err, "get order %s", src.ID())
		}
		return receipt.NewLegacy(o), nil
	default:
		return receipt.Order{}, errors.Errorf("unsupported order shape %s", src.Shape)
	}
}

// GetPartner reads a site partner.
func (c *Client) GetPartner(ctx context.Context, id int) (Partner, error) {
	var out Partner
	if err := c.get(ctx, c.endpoint("/api/v2/partners/"+strconv.Itoa(id)+"/"), false, &out); err != nil {
		return Partner{}, errors.Wrapf(err, "get partner %d", id)
	}
	return out, nil
}

// GetCreditProvider reads a credit provider from the LMS. Not found
// responses are retried like orders.
func (c *Client) GetCreditProvider(ctx context.Context, id string) (receipt.Provider, error) {
	u, err := c.lmsEndpoint("/api/credit/v1/providers/" + url.PathEscape(id))
	if err != nil {
		return receipt.Provider{}, err
	}
	var out receipt.Provider
	if err := c.getRetry(ctx, u, true, &out); err != nil {
		return receipt.Provider{}, errors.Wrapf(err, "get credit provider %q", id)
	}
	return out, nil
}

// CreateCreditRequest asks the provider for the form the browser posts to
// complete a credit purchase.
func (c *Client) CreateCreditRequest(ctx context.Context, req receipt.CreditRequest) (receipt.CreditResponse, error) {
	if err := req.Validate(); err != nil {
		return receipt.CreditResponse{}, err
	}
	u, err := c.lmsEndpoint("/api/credit/v1/providers/" + url.PathEscape(req.ProviderID) + "/request/")
	if err != nil {
		return receipt.CreditResponse{}, err
	}

	resp, err := c.do(ctx, http.MethodPost, u, req.Encode, true)
	if err != nil {
		return receipt.CreditResponse{}, errors.Wrap(err, "credit request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return receipt.CreditResponse{}, errors.Wrap(err, "read credit response")
	}
	var out receipt.CreditResponse
	if err := out.Decode(jx.DecodeBytes(body)); err != nil {
		return receipt.CreditResponse{}, errors.Wrap(err, "decode credit response")
	}
	return out, nil
}

type offersPage struct {
	Count   int           `json:"count"`
	Next    *string       `json:"next"`
	Results []offer.Offer `json:"results"`
}

// ListOffers returns every course offer a voucher code applies to,
// following the API pagination.
func (c *Client) ListOffers(ctx context.Context, code string) ([]offer.Offer, error) {
	u := c.endpoint("/api/v2/vouchers/offers/")
	u.RawQuery = url.Values{"code": {code}}.Encode()

	var out []offer.Offer
	for range maxOfferPages {
		var page offersPage
		if err := c.get(ctx, u, false, &page); err != nil {
			return nil, errors.Wrapf(err, "list offers for %q", code)
		}
		if out == nil {
			out = make([]offer.Offer, 0, page.Count)
		}
		out = append(out, page.Results...)

		if page.Next == nil || *page.Next == "" {
			return out, nil
		}
		next, err := u.Parse(*page.Next)
		if err != nil {
			return nil, errors.Wrap(err, "next page url")
		}
		u = next
	}
	return out, nil
}

// Ping checks that the e-commerce API answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, c.endpoint("/health/"), nil, false)
	if err != nil {
		return errors.Wrap(err, "ping")
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (c *Client) endpoint(path string) *url.URL {
	u := *c.base
	p, q, _ := strings.Cut(path, "?")
	u.Path = strings.TrimRight(c.base.Path, "/") + p
	u.RawQuery = q
	return &u
}

func (c *Client) lmsEndpoint(path string) (*url.URL, error) {
	if c.lms == nil {
		return nil, errors.New("lms url is not configured")
	}
	u := *c.lms
	u.Path = strings.TrimRight(c.lms.Path, "/") + path
	return &u, nil
}

// get reads u into out.
func (c *Client) get(ctx context.Context, u *url.URL, lms bool, out any) error {
	resp, err := c.do(ctx, http.MethodGet, u, nil, lms)
	if err != nil {
		return err
	}
	return decodeBody(resp, out)
}

// getRetry is get with 404 responses retried according to the policy. It
// is used for records that may not be visible yet, such as a just placed
// order.
func (c *Client) getRetry(ctx context.Context, u *url.URL, lms bool, out any) error {
	op := func() (*http.Response, error) {
		resp, err := c.do(ctx, http.MethodGet, u, nil, lms)
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	lg := zctx.From(ctx)
	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.retry.Delay)),
		backoff.WithMaxTries(uint(max(c.retry.Times, 0)+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("path", u.Path)))
			lg.Debug("Retrying request",
				zap.String("url", u.String()),
				zap.Duration("next", next),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		return err
	}
	return decodeBody(resp, out)
}

func decodeBody(resp *http.Response, out any) error {
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode")
	}
	return nil
}

// send writes a JSON body and reads the JSON response into out.
func (c *Client) send(ctx context.Context, method string, u *url.URL, body func(*jx.Encoder), lms bool, out any) error {
	resp, err := c.do(ctx, method, u, body, lms)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode")
	}
	return nil
}

// do performs a single request. Non-2xx responses are returned as
// *StatusError with the body closed.
func (c *Client) do(ctx context.Context, method string, u *url.URL, body func(*jx.Encoder), lms bool) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		var e jx.Encoder
		body(&e)
		r = bytes.NewReader(e.Bytes())
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	s := SessionFrom(ctx)
	if s.Cookie != "" {
		req.Header.Set("Cookie", s.Cookie)
	}
	token := s.CSRFToken
	if lms {
		token = s.LMSCSRFToken
	}
	if token != "" && (method != http.MethodGet || lms) {
		req.Header.Set("X-CSRFToken", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, u.Path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{
			Method: method,
			URL:    u.String(),
			Code:   resp.StatusCode,
			Body:   string(snippet),
		}
	}
	return resp, nil
}

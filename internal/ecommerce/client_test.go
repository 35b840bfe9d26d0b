package ecommerce

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/course-coupons/internal/domain/coupon"
	"github.com/xenking/course-coupons/internal/domain/receipt"
)

func newTestClient(t *testing.T, h http.Handler, retry RetryPolicy) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL: srv.URL,
		LMSURL:  srv.URL + "/lms",
		Timeout: 5 * time.Second,
		Retry:   retry,
	}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New(Config{BaseURL: "not a url"})
	require.Error(t, err)
}

func TestClient_GetOrder_RetriesNotFound(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v2/orders/EDX-100/", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{"number":"EDX-100","currency":"USD","total_excl_tax":"99.00","lines":[]}`)
	})
	c := newTestClient(t, mux, RetryPolicy{Times: 5, Delay: time.Millisecond})

	o, err := c.GetOrder(context.Background(), receipt.Source{Shape: receipt.ShapeModern, OrderNumber: "EDX-100"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "EDX-100", o.Number())
	require.NotNil(t, o.Modern)
	assert.Equal(t, "99.00", o.Modern.TotalExclTax.Raw())
}

func TestClient_GetOrder_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v2/orders/EDX-1/", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	})
	c := newTestClient(t, mux, RetryPolicy{Times: 2, Delay: time.Millisecond})

	_, err := c.GetOrder(context.Background(), receipt.Source{Shape: receipt.ShapeModern, OrderNumber: "EDX-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GetOrder_ServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v2/orders/EDX-1/", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := newTestClient(t, mux, RetryPolicy{Times: 5, Delay: time.Millisecond})

	_, err := c.GetOrder(context.Background(), receipt.Source{Shape: receipt.ShapeModern, OrderNumber: "EDX-1"})
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_NotFoundNotRetried(t *testing.T) {
	tests := []struct {
		name string
		call func(c *Client) error
	}{
		{name: "coupon", call: func(c *Client) error {
			_, err := c.GetCoupon(context.Background(), 404)
			return err
		}},
		{name: "partner", call: func(c *Client) error {
			_, err := c.GetPartner(context.Background(), 404)
			return err
		}},
		{name: "offers", call: func(c *Client) error {
			_, err := c.ListOffers(context.Background(), "GONE")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				http.NotFound(w, r)
			})
			c := newTestClient(t, h, RetryPolicy{Times: 5, Delay: time.Millisecond})

			err := tt.call(c)
			require.ErrorIs(t, err, ErrNotFound)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestClient_CreditProvider_RetriesNotFound(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /lms/api/credit/v1/providers/hogwarts", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{"id":"hogwarts","display_name":"Hogwarts"}`)
	})
	c := newTestClient(t, mux, RetryPolicy{Times: 5, Delay: time.Millisecond})

	p, err := c.GetCreditProvider(context.Background(), "hogwarts")
	require.NoError(t, err)
	assert.Equal(t, "hogwarts", p.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_GetOrder_Legacy(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v2/orders/77", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"orderNum":"77","currency":"usd","total_cost":"10.00","items":[{"line_desc":"Seat","line_cost":"10.00","course_key":"course-v1:a+b+c"}]}`)
	})
	c := newTestClient(t, mux, RetryPolicy{})

	o, err := c.GetOrder(context.Background(), receipt.Source{Shape: receipt.ShapeLegacy, PaymentNum: "77"})
	require.NoError(t, err)
	require.NotNil(t, o.Legacy)
	assert.Equal(t, "77", o.Number())
	require.Len(t, o.Legacy.Items, 1)
	assert.Equal(t, "course-v1:a+b+c", o.Legacy.Items[0].CourseKey)
}

func TestClient_CreateCoupon(t *testing.T) {
	var got map[string]any
	var headers http.Header
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v2/coupons/", func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":42,"title":"Spring","category":"Affiliate Promotion","price":100}`)
	})
	c := newTestClient(t, mux, RetryPolicy{})

	in := coupon.New()
	in.Title = "Spring"
	in.StartDate = "2024-01-01"
	in.EndDate = "2024-02-01"
	p, err := coupon.NewCreatePayload(in)
	require.NoError(t, err)

	ctx := WithSession(context.Background(), Session{Cookie: "sessionid=abc", CSRFToken: "tok"})
	out, err := c.CreateCoupon(ctx, p)
	require.NoError(t, err)

	assert.Equal(t, 42, out.ID)
	assert.Equal(t, "Affiliate Promotion", out.Category.Name)
	assert.Equal(t, coupon.Amount("100"), out.Price)
	assert.Equal(t, "Spring", got["title"])
	assert.Equal(t, "2024-01-01T00:00:00.000Z", got["start_datetime"])
	assert.Equal(t, "tok", headers.Get("X-CSRFToken"))
	assert.Equal(t, "sessionid=abc", headers.Get("Cookie"))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
}

func TestClient_PatchCoupon(t *testing.T) {
	var got map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /api/v2/coupons/7/", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"id":7,"title":"Renamed"}`)
	})
	c := newTestClient(t, mux, RetryPolicy{})

	title := "Renamed"
	p, err := coupon.NewPatchPayload(coupon.Patch{Title: &title})
	require.NoError(t, err)

	out, err := c.PatchCoupon(context.Background(), 7, p)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", out.Title)
	assert.Equal(t, map[string]any{"name": "Renamed", "title": "Renamed"}, got)
}

func TestClient_ListOffers_FollowsNext(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v2/vouchers/offers/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ABC", r.URL.Query().Get("code"))
		if r.URL.Query().Get("page") == "2" {
			_, _ = io.WriteString(w, `{"count":3,"next":null,"results":[{"id":"course-v1:x+c+1","title":"C"}]}`)
			return
		}
		_, _ = io.WriteString(w, `{"count":3,"next":"`+srvURL+`/api/v2/vouchers/offers/?code=ABC&page=2","results":[{"id":"course-v1:x+a+1","title":"A"},{"id":"course-v1:x+b+1","title":"B"}]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL

	c, err := New(Config{BaseURL: srv.URL}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	offers, err := c.ListOffers(context.Background(), "ABC")
	require.NoError(t, err)
	require.Len(t, offers, 3)
	assert.Equal(t, "A", offers[0].Title)
	assert.Equal(t, "C", offers[2].Title)
}

func TestClient_CreditProvider(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /lms/api/credit/v1/providers/hogwarts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "lms-tok", r.Header.Get("X-CSRFToken"))
		_, _ = io.WriteString(w, `{"id":"hogwarts","display_name":"Hogwarts","url":"https://hogwarts.example.com"}`)
	})
	mux.HandleFunc("POST /lms/api/credit/v1/providers/hogwarts/request/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "course-v1:a+b+c", body["course_key"])
		assert.Equal(t, "harry", body["username"])
		_, _ = io.WriteString(w, `{"url":"https://hogwarts.example.com/credit","parameters":{"signature":"xyz","timestamp":1454000000}}`)
	})
	c := newTestClient(t, mux, RetryPolicy{})
	ctx := WithSession(context.Background(), Session{LMSCSRFToken: "lms-tok"})

	p, err := c.GetCreditProvider(ctx, "hogwarts")
	require.NoError(t, err)
	assert.Equal(t, "Hogwarts", p.DisplayName)

	resp, err := c.CreateCreditRequest(ctx, receipt.CreditRequest{
		ProviderID: "hogwarts",
		CourseKey:  "course-v1:a+b+c",
		Username:   "harry",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://hogwarts.example.com/credit", resp.URL)
	assert.Equal(t, "xyz", resp.Parameters["signature"])
	assert.Equal(t, "1454000000", resp.Parameters["timestamp"])
}

func TestClient_NoLMS(t *testing.T) {
	c, err := New(Config{BaseURL: "http://localhost"})
	require.NoError(t, err)

	_, err = c.GetCreditProvider(context.Background(), "x")
	require.Error(t, err)
}

func TestClient_CouponReport(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v2/coupons/coupon_reports/9", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, "code,status\nABC,ACTIVE\n")
	})
	c := newTestClient(t, mux, RetryPolicy{})

	body, err := c.CouponReport(context.Background(), 9)
	require.NoError(t, err)
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "code,status\nABC,ACTIVE\n", string(data))
}

func TestClient_Ping(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/", func(w http.ResponseWriter, _ *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"overall_status":"OK"}`)
	})
	c := newTestClient(t, mux, RetryPolicy{})

	require.NoError(t, c.Ping(context.Background()))
	healthy.Store(false)
	require.Error(t, c.Ping(context.Background()))
}

func TestClient_GetPartner(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v2/partners/1/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"id":1,"name":"edX","short_code":"edx"}`)
	})
	c := newTestClient(t, mux, RetryPolicy{})

	p, err := c.GetPartner(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, Partner{ID: 1, Name: "edX", ShortCode: "edx"}, p)
}

package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type hit struct {
	remoteAddr string
	header     map[string]string
	want       int
}

func serve(h http.Handler, hh hit) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/offers?code=SPRING", nil)
	if hh.remoteAddr != "" {
		req.RemoteAddr = hh.remoteAddr
	}
	for k, v := range hh.header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name string
		cfg  RateLimitConfig
		hits []hit
	}{
		{
			name: "burst within limit",
			cfg:  RateLimitConfig{Max: 3, Window: time.Minute},
			hits: []hit{
				{remoteAddr: "192.0.2.1:1000", want: http.StatusOK},
				{remoteAddr: "192.0.2.1:1001", want: http.StatusOK},
				{remoteAddr: "192.0.2.1:1002", want: http.StatusOK},
				{remoteAddr: "192.0.2.1:1003", want: http.StatusTooManyRequests},
			},
		},
		{
			name: "clients are independent",
			cfg:  RateLimitConfig{Max: 1, Window: time.Minute},
			hits: []hit{
				{remoteAddr: "192.0.2.1:1000", want: http.StatusOK},
				{remoteAddr: "192.0.2.2:1000", want: http.StatusOK},
				{remoteAddr: "192.0.2.1:2000", want: http.StatusTooManyRequests},
			},
		},
		{
			name: "forwarded for wins over remote addr",
			cfg:  RateLimitConfig{Max: 1, Window: time.Minute},
			hits: []hit{
				{remoteAddr: "10.0.0.1:1", header: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, want: http.StatusOK},
				{remoteAddr: "10.0.0.2:1", header: map[string]string{"X-Forwarded-For": "203.0.113.7"}, want: http.StatusTooManyRequests},
				{remoteAddr: "10.0.0.2:1", header: map[string]string{"X-Real-IP": "203.0.113.8"}, want: http.StatusOK},
			},
		},
		{
			name: "custom key",
			cfg: RateLimitConfig{
				Max:    1,
				Window: time.Minute,
				KeyFunc: func(r *http.Request) string {
					return r.Header.Get("X-CSRFToken")
				},
			},
			hits: []hit{
				{header: map[string]string{"X-CSRFToken": "staff-a"}, want: http.StatusOK},
				{header: map[string]string{"X-CSRFToken": "staff-a"}, want: http.StatusTooManyRequests},
				{header: map[string]string{"X-CSRFToken": "staff-b"}, want: http.StatusOK},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RateLimit(tt.cfg)(okHandler())
			for i, hh := range tt.hits {
				w := serve(h, hh)
				assert.Equal(t, hh.want, w.Code, "hit %d", i)
			}
		})
	}
}

func TestRateLimit_Headers(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())
	addr := "198.51.100.4:4444"

	first := serve(h, hit{remoteAddr: addr})
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, first.Header().Get("X-RateLimit-Reset"))
	assert.Empty(t, first.Header().Get("Retry-After"))

	require.Equal(t, http.StatusOK, serve(h, hit{remoteAddr: addr}).Code)

	limited := serve(h, hit{remoteAddr: addr})
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "application/json", limited.Header().Get("Content-Type"))
	assert.Equal(t, "0", limited.Header().Get("X-RateLimit-Remaining"))
	// One token refills every 30s.
	assert.Equal(t, "30", limited.Header().Get("Retry-After"))

	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(limited.Body).Decode(&body))
	assert.Equal(t, http.StatusTooManyRequests, body.Code)
	assert.Equal(t, "rate limit exceeded", body.Message)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	now := time.Now()
	rl.limiter("idle", now)
	rl.limiter("active", now.Add(90*time.Second))

	rl.cleanup(now.Add(2 * time.Minute))

	assert.NotContains(t, rl.clients, "idle")
	assert.Contains(t, rl.clients, "active")
}

func TestRateLimiter_Defaults(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{})
	assert.Equal(t, 1, rl.cfg.Max)
	assert.Equal(t, time.Minute, rl.cfg.Window)
	require.NotNil(t, rl.cfg.KeyFunc)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "not-a-host-port"
	assert.Equal(t, "not-a-host-port", rl.cfg.KeyFunc(req))
}

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func passing() CheckFunc {
	return func(_ context.Context) error { return nil }
}

func failing(msg string) CheckFunc {
	return func(_ context.Context) error { return errors.New(msg) }
}

func serve(t *testing.T, fn http.HandlerFunc) (int, statusBody) {
	t.Helper()
	w := httptest.NewRecorder()
	fn(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body statusBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func runN(c *check, n int) {
	for range n {
		c.run(context.Background())
	}
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		check      CheckFunc
		runs       int
		wantCode   int
		wantChecks map[string]string
	}{
		{
			name:     "no runs yet",
			check:    failing("connection refused"),
			wantCode: http.StatusOK,
		},
		{
			name:     "below failure threshold",
			check:    failing("temporary"),
			runs:     2,
			wantCode: http.StatusOK,
		},
		{
			name:       "past failure threshold",
			check:      failing("connection refused"),
			runs:       3,
			wantCode:   http.StatusServiceUnavailable,
			wantChecks: map[string]string{"upstream": "connection refused"},
		},
		{
			name:     "passing",
			check:    passing(),
			runs:     3,
			wantCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			h.AddLivenessCheck("upstream", time.Second, tt.check)
			runN(h.liveness[0], tt.runs)

			code, body := serve(t, h.LiveEndpoint)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantChecks, body.Checks)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, "ok", body.Status)
			} else {
				assert.Equal(t, "unhealthy", body.Status)
			}
		})
	}
}

func TestReadyEndpoint_NotReady(t *testing.T) {
	h := New()
	h.AddReadinessCheck("ecommerce", time.Second, passing())

	code, body := serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "_readiness")

	h.SetReady(true)
	code, body = serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)

	h.SetReady(false)
	code, _ = serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReadyEndpoint_OneFailing(t *testing.T) {
	h := New()
	h.AddReadinessCheck("lms", time.Second, passing())
	h.AddReadinessCheck("ecommerce", time.Second, failing("502 Bad Gateway"))
	h.SetReady(true)
	runN(h.readiness[1], 3)

	code, body := serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]string{"ecommerce": "502 Bad Gateway"}, body.Checks)
	assert.False(t, h.IsReady())
}

func TestCheck_Recovery(t *testing.T) {
	down := true
	h := New()
	h.AddLivenessCheck("flaky", time.Second, func(_ context.Context) error {
		if down {
			return errors.New("down")
		}
		return nil
	}, WithThresholds(2, 2))
	c := h.liveness[0]

	assert.Nil(t, c.err())
	runN(c, 2)
	assert.False(t, c.healthy.Load())
	assert.EqualError(t, c.err(), "down")

	down = false
	runN(c, 1)
	assert.False(t, c.healthy.Load(), "one success is below the threshold")
	runN(c, 1)
	assert.True(t, c.healthy.Load())
}

func TestStartStop(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, passing())
	h.AddReadinessCheck("ecommerce", time.Second, failing("err"))
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 10*time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for range 50 {
				h.IsReady()
				h.LiveEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				h.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		})
	}
	wg.Wait()

	h.Stop()
	h.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

func TestPingCheck(t *testing.T) {
	ok := PingCheck("ecommerce", pingerFunc(func(context.Context) error { return nil }))
	assert.NoError(t, ok(context.Background()))

	bad := PingCheck("ecommerce", pingerFunc(func(context.Context) error { return errors.New("refused") }))
	err := bad(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ecommerce unreachable")
}
